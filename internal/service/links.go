package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"meshinv/internal/domain"
	"meshinv/internal/metrics"
	"meshinv/internal/repository"
)

const absentLinkNote = "Marked inactive because it no longer appears in UISP; probably deleted upstream"

// LinkReconciler merges external link records into the inventory
type LinkReconciler struct {
	store    repository.Store
	notifier Notifier
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewLinkReconciler creates a new link reconciler
func NewLinkReconciler(store repository.Store, notifier Notifier, logger *zap.Logger) *LinkReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkReconciler{
		store:    store,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger.Named("links"),
		now:      time.Now,
	}
}

// SetClock overrides the pass date source
func (r *LinkReconciler) SetClock(now func() time.Time) {
	r.now = now
}

// linkPass holds state shared by every record of one pass
type linkPass struct {
	date time.Time
	// present holds every external link id in the snapshot
	present map[string]bool
	// claimed holds internal link ids already matched by a record
	claimed map[string]bool
}

// Reconcile processes every record in its own transaction, then deactivates
// synced links missing from links.
func (r *LinkReconciler) Reconcile(ctx context.Context, links []domain.ExternalLink) (PhaseResult, error) {
	var result PhaseResult
	pass := &linkPass{
		date:    r.now().UTC(),
		present: make(map[string]bool, len(links)),
		claimed: make(map[string]bool),
	}

	valid := make([]domain.ExternalLink, 0, len(links))
	for _, ext := range links {
		if err := r.validate.Struct(ext); err != nil {
			r.logger.Warn("skipping invalid link record", zap.String("uisp_id", ext.ID), zap.Error(err))
			result.record(kindLink, metrics.OutcomeSkipped)
			continue
		}
		pass.present[ext.ID] = true
		valid = append(valid, ext)
	}

	for _, ext := range valid {
		outcome, duplicate, err := r.reconcileLink(ctx, ext, pass)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			r.reportFailure(ctx, ext, err)
			result.record(kindLink, metrics.OutcomeFailed)
			continue
		}
		if duplicate {
			result.Duplicates++
		}
		result.record(kindLink, outcome)
	}

	if err := r.deactivateMissing(ctx, pass, &result); err != nil {
		return result, err
	}

	r.logger.Info("link pass complete",
		zap.Int("records", len(links)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deactivated", result.Deactivated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	return result, nil
}

// reconcileLink matches one external record against the inventory
func (r *LinkReconciler) reconcileLink(ctx context.Context, ext domain.ExternalLink, pass *linkPass) (string, bool, error) {
	var (
		box        outbox
		outcome    string
		duplicate  bool
		unresolved string
		claimed    []string
	)

	err := r.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		box.reset()
		duplicate, unresolved, claimed = false, "", nil

		from, err := tx.FindDevicesByExternalID(ctx, ext.FromDeviceID)
		if err != nil {
			return err
		}
		to, err := tx.FindDevicesByExternalID(ctx, ext.ToDeviceID)
		if err != nil {
			return err
		}
		switch {
		case len(from) == 0:
			unresolved = ext.FromDeviceID
			return nil
		case len(to) == 0:
			unresolved = ext.ToDeviceID
			return nil
		}
		// duplicates among endpoint devices are reported by the device pass
		a, b := &from[0], &to[0]

		if err := tx.LockNamed(ctx, linkLockName(ext.ID)); err != nil {
			return err
		}

		matches, err := tx.FindLinksByExternalIDForUpdate(ctx, ext.ID)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			if matches, err = r.fallbackCandidates(ctx, tx, a, b, pass); err != nil {
				return err
			}
		}

		if len(matches) == 0 {
			outcome = metrics.OutcomeCreated
			l, err := r.createLink(ctx, tx, a, b, ext, pass, &box)
			if l != nil {
				claimed = append(claimed, l.ID)
			}
			return err
		}

		if len(matches) > 1 {
			duplicate = true
			r.reportDuplicateLinks(ext, matches, &box)
		}

		anyChanged := false
		for i := range matches {
			changed, err := r.updateLink(ctx, tx, &matches[i], a, b, ext, pass, &box)
			if err != nil {
				return err
			}
			anyChanged = anyChanged || changed
			claimed = append(claimed, matches[i].ID)
		}
		outcome = changedOutcome(anyChanged)
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("reconcile link %s: %w", ext.ID, err)
	}

	if unresolved != "" {
		r.logger.Warn("link endpoint not found",
			zap.String("uisp_id", ext.ID),
			zap.String("device_uisp_id", unresolved),
			zap.Error(domain.ErrUnresolvableReference))
		return metrics.OutcomeSkipped, false, nil
	}

	for _, id := range claimed {
		pass.claimed[id] = true
	}
	deliver(ctx, r.notifier, r.logger, box.pending)
	return outcome, duplicate, nil
}

// fallbackCandidates finds links between a and b whose external id has
// disappeared from the snapshot, which happens when UISP reissues ids for
// the same physical link.
func (r *LinkReconciler) fallbackCandidates(ctx context.Context, tx repository.Tx, a, b *domain.Device, pass *linkPass) ([]domain.Link, error) {
	byPair, err := tx.FindLinksByDevicePairForUpdate(ctx, a.ID, b.ID)
	if err != nil {
		return nil, err
	}

	candidates := byPair[:0]
	for _, l := range byPair {
		if pass.present[l.ExternalID] || pass.claimed[l.ID] {
			continue
		}
		candidates = append(candidates, l)
	}
	return candidates, nil
}

func linkStatusFor(ext domain.ExternalLink) domain.LinkStatus {
	if ext.Active() {
		return domain.LinkStatusActive
	}
	return domain.LinkStatusInactive
}

// createLink inserts a new link between a and b
func (r *LinkReconciler) createLink(ctx context.Context, tx repository.Tx, a, b *domain.Device, ext domain.ExternalLink, pass *linkPass, box *outbox) (*domain.Link, error) {
	linkType, guessed := domain.LinkTypeForExternal(ext.Type, ext.Frequency)
	status := linkStatusFor(ext)

	l := &domain.Link{
		FromDeviceID: a.ID,
		ToDeviceID:   b.ID,
		ExternalID:   ext.ID,
		Status:       status,
		Type:         linkType,
		Notes:        importNote(pass.date),
	}
	if status == domain.LinkStatusActive {
		date := pass.date
		l.LastFunctioningDateEstimate = &date
	}

	if err := tx.CreateLink(ctx, l); err != nil {
		return nil, err
	}

	var guesses []string
	guesses = append(guesses, "install date unknown")
	if guessed {
		guesses = append(guesses, fmt.Sprintf("type guessed as %s; UISP reported no frequency", linkType))
	}

	box.add(NotificationCreated, true,
		fmt.Sprintf("Created %s between %s and %s from UISP\nThe following fields were guessed or defaulted:%s",
			l, a, b, bulletList(guesses)),
		linkRef(l), deviceRef(a), deviceRef(b))

	if linkType == domain.LinkTypeEthernet {
		box.add(NotificationWarning, false,
			fmt.Sprintf("%s was imported as %s. UISP metadata cannot tell a cable apart from a VPN tunnel or fiber; please correct the type if needed",
				l, linkType),
			linkRef(l))
	}
	return l, nil
}

// updateLink applies the external record and reports every changed field
func (r *LinkReconciler) updateLink(ctx context.Context, tx repository.Tx, l *domain.Link, a, b *domain.Device, ext domain.ExternalLink, pass *linkPass, box *outbox) (bool, error) {
	var changes, warnings []string

	switch {
	case l.FromDeviceID == a.ID && l.ToDeviceID == b.ID:
	case l.Connects(a.ID, b.ID):
		changes = append(changes, "endpoints swapped to match UISP direction")
	default:
		oldFrom, err := deviceLabel(ctx, tx, l.FromDeviceID)
		if err != nil {
			return false, err
		}
		oldTo, err := deviceLabel(ctx, tx, l.ToDeviceID)
		if err != nil {
			return false, err
		}
		changes = append(changes, fmt.Sprintf("endpoints changed from %s / %s to %s / %s", oldFrom, oldTo, a, b))
	}
	l.FromDeviceID, l.ToDeviceID = a.ID, b.ID

	// a guessed type never overrides a recorded one
	if linkType, guessed := domain.LinkTypeForExternal(ext.Type, ext.Frequency); !guessed && l.Type != linkType {
		changes = append(changes, fmt.Sprintf("type changed from %s to %s", l.Type, linkType))
		l.Type = linkType
	}

	if l.ExternalID != ext.ID {
		changes = append(changes, fmt.Sprintf("UISP id changed from %q to %q", l.ExternalID, ext.ID))
		l.ExternalID = ext.ID
	}

	if status := linkStatusFor(ext); l.Status != status {
		changes = append(changes, fmt.Sprintf("status changed from %s to %s", l.Status, status))
		shift := statusShift{
			wasActive:   l.Status == domain.LinkStatusActive,
			wasInactive: l.Status == domain.LinkStatusInactive,
			nowActive:   status == domain.LinkStatusActive,
		}
		detail, warning := shift.apply(l.LastFunctioningDateEstimate, &l.AbandonDate)
		if detail != "" {
			changes = append(changes, detail)
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		l.Status = status
	}

	refreshed := false
	if l.Status == domain.LinkStatusActive {
		date := pass.date
		refreshed = l.LastFunctioningDateEstimate == nil || !l.LastFunctioningDateEstimate.Equal(date)
		l.LastFunctioningDateEstimate = &date
	}

	if len(changes) == 0 && !refreshed {
		return false, nil
	}
	if err := tx.UpdateLink(ctx, l); err != nil {
		return false, err
	}
	if len(changes) == 0 {
		return false, nil
	}

	box.add(NotificationUpdated, false,
		fmt.Sprintf("Updated %s from UISP link %s:%s", l, ext.ID, bulletList(changes)),
		linkRef(l))
	for _, w := range warnings {
		box.add(NotificationWarning, false, fmt.Sprintf("%s %s", l, w), linkRef(l))
	}
	return true, nil
}

func deviceLabel(ctx context.Context, tx repository.Tx, id string) (string, error) {
	d, err := tx.GetDevice(ctx, id)
	if err != nil {
		return "", err
	}
	if d == nil {
		return id, nil
	}
	return d.String(), nil
}

func (r *LinkReconciler) reportDuplicateLinks(ext domain.ExternalLink, matches []domain.Link, box *outbox) {
	refs := make([]ObjectRef, 0, len(matches))
	lines := make([]string, 0, len(matches))
	for i := range matches {
		refs = append(refs, linkRef(&matches[i]))
		lines = append(lines, matches[i].String())
	}

	r.logger.Warn("several links match one UISP link",
		zap.String("uisp_id", ext.ID), zap.Int("count", len(matches)))
	box.add(NotificationDuplicate, false,
		fmt.Sprintf("Possible duplicate objects detected: %d links match UISP link %s. Each is updated separately and none owns the id alone; please merge them by hand:%s",
			len(matches), ext.ID, bulletList(lines)),
		refs...)
}

// deactivateMissing marks synced links absent from the snapshot inactive
func (r *LinkReconciler) deactivateMissing(ctx context.Context, pass *linkPass, result *PhaseResult) error {
	var candidates []domain.Link
	err := r.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		links, err := tx.ListLinksWithExternalID(ctx)
		candidates = links
		return err
	})
	if err != nil {
		return fmt.Errorf("list synced links: %w", err)
	}

	for i := range candidates {
		l := candidates[i]
		if pass.present[l.ExternalID] || l.Status == domain.LinkStatusInactive {
			continue
		}

		var (
			box     outbox
			changed bool
		)
		err := r.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			box.reset()
			if err := tx.LockNamed(ctx, linkLockName(l.ExternalID)); err != nil {
				return err
			}
			current, err := tx.FindLinksByExternalIDForUpdate(ctx, l.ExternalID)
			if err != nil {
				return err
			}
			for j := range current {
				link := &current[j]
				if link.ID != l.ID || link.Status == domain.LinkStatusInactive {
					continue
				}
				link.Status = domain.LinkStatusInactive
				if link.AbandonDate == nil {
					abandon := pass.date
					if link.LastFunctioningDateEstimate != nil {
						abandon = *link.LastFunctioningDateEstimate
					}
					link.AbandonDate = &abandon
				}
				link.AppendNote(absentLinkNote)
				if err := tx.UpdateLink(ctx, link); err != nil {
					return err
				}
				changed = true
				box.add(NotificationDeactivated, false,
					fmt.Sprintf("Marked %s inactive: it no longer exists upstream", link),
					linkRef(link))
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("failed to deactivate link", zap.String("link_id", l.ID), zap.Error(err))
			result.record(kindLink, metrics.OutcomeFailed)
			continue
		}
		if changed {
			deliver(ctx, r.notifier, r.logger, box.pending)
			result.record(kindLink, outcomeDeactivated)
		}
	}
	return nil
}

func (r *LinkReconciler) reportFailure(ctx context.Context, ext domain.ExternalLink, err error) {
	r.logger.Error("link reconciliation failed", zap.String("uisp_id", ext.ID), zap.Error(err))
	deliver(ctx, r.notifier, r.logger, []Notification{{
		Kind:    NotificationWarning,
		Message: fmt.Sprintf("Could not reconcile UISP link %s: %v", ext.ID, err),
	}})
}
