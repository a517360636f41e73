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

const absentDeviceNote = "Marked inactive because it no longer appears in UISP; probably deleted upstream"

// SectorDefaults fills sector fields that device metadata cannot supply
type SectorDefaults struct {
	RadiusKm float64
	WidthDeg float64
}

// DefaultSectorDefaults returns the built-in sector geometry
func DefaultSectorDefaults() SectorDefaults {
	return SectorDefaults{RadiusKm: domain.DefaultSectorRadiusKm, WidthDeg: domain.DefaultSectorWidthDeg}
}

// DeviceReconciler merges external device records into the inventory
type DeviceReconciler struct {
	store    repository.Store
	notifier Notifier
	validate *validator.Validate
	sectors  SectorDefaults
	logger   *zap.Logger
	now      func() time.Time
}

// NewDeviceReconciler creates a new device reconciler
func NewDeviceReconciler(store repository.Store, notifier Notifier, sectors SectorDefaults, logger *zap.Logger) *DeviceReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceReconciler{
		store:    store,
		notifier: notifier,
		validate: validator.New(),
		sectors:  sectors,
		logger:   logger.Named("devices"),
		now:      time.Now,
	}
}

// SetClock overrides the pass date source
func (r *DeviceReconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Reconcile processes every record in its own transaction, then deactivates
// synced devices missing from devices. Per-record failures are counted and
// reported; only context cancellation stops the pass.
func (r *DeviceReconciler) Reconcile(ctx context.Context, devices []domain.ExternalDevice) (PhaseResult, error) {
	var result PhaseResult
	passDate := r.now().UTC()
	seen := make(map[string]bool, len(devices))

	for i := range devices {
		ext := devices[i]
		if err := r.validate.Struct(ext); err != nil {
			r.logger.Warn("skipping invalid device record", zap.String("name", ext.Name), zap.Error(err))
			result.record(kindDevice, metrics.OutcomeSkipped)
			continue
		}
		seen[ext.ID] = true

		outcome, duplicate, err := r.reconcileDevice(ctx, ext, passDate)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			r.reportFailure(ctx, ext, err)
			result.record(kindDevice, metrics.OutcomeFailed)
			continue
		}
		if duplicate {
			result.Duplicates++
		}
		result.record(kindDevice, outcome)
	}

	if err := r.deactivateMissing(ctx, seen, passDate, &result); err != nil {
		return result, err
	}

	r.logger.Info("device pass complete",
		zap.Int("records", len(devices)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deactivated", result.Deactivated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	return result, nil
}

// reconcileDevice matches one external record against the inventory
func (r *DeviceReconciler) reconcileDevice(ctx context.Context, ext domain.ExternalDevice, passDate time.Time) (string, bool, error) {
	log := r.logger.With(zap.String("uisp_id", ext.ID), zap.String("name", ext.Name))

	if !ext.IsNetworking() {
		log.Debug("skipping non-networking device", zap.String("category", ext.Category))
		return metrics.OutcomeSkipped, false, nil
	}

	nn, ok := domain.ExtractNetworkNumber(ext.Name)
	if !ok {
		log.Warn("no network number in device name")
		return metrics.OutcomeSkipped, false, nil
	}

	var (
		box        outbox
		outcome    string
		duplicate  bool
		unresolved bool
	)

	err := r.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		box.reset()
		duplicate, unresolved = false, false

		node, err := tx.GetNodeByNetworkNumber(ctx, nn)
		if err != nil {
			return err
		}
		if node == nil {
			unresolved = true
			return nil
		}

		if err := tx.LockNamed(ctx, deviceLockName(ext.ID)); err != nil {
			return err
		}
		existing, err := tx.FindDevicesByExternalIDForUpdate(ctx, ext.ID)
		if err != nil {
			return err
		}

		switch len(existing) {
		case 0:
			outcome = metrics.OutcomeCreated
			return r.createDevice(ctx, tx, node, ext, passDate, &box)
		case 1:
			changed, err := r.updateDevice(ctx, tx, &existing[0], node, ext, &box)
			outcome = changedOutcome(changed)
			return err
		}

		duplicate = true
		r.reportDuplicateDevices(ext, existing, &box)
		anyChanged := false
		for i := range existing {
			changed, err := r.updateDevice(ctx, tx, &existing[i], node, ext, &box)
			if err != nil {
				return err
			}
			anyChanged = anyChanged || changed
		}
		outcome = changedOutcome(anyChanged)
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("reconcile device %s: %w", ext.ID, err)
	}

	if unresolved {
		log.Warn("device names an unknown network number",
			zap.Int64("network_number", nn),
			zap.Error(domain.ErrUnresolvableReference))
		return metrics.OutcomeSkipped, false, nil
	}

	deliver(ctx, r.notifier, r.logger, box.pending)
	return outcome, duplicate, nil
}

func changedOutcome(changed bool) string {
	if changed {
		return metrics.OutcomeUpdated
	}
	return metrics.OutcomeUnchanged
}

func deviceStatusFor(ext domain.ExternalDevice) domain.DeviceStatus {
	if ext.Active() {
		return domain.DeviceStatusActive
	}
	return domain.DeviceStatusInactive
}

// createDevice inserts a device, or a sector for broadcast hardware
func (r *DeviceReconciler) createDevice(ctx context.Context, tx repository.Tx, node *domain.Node, ext domain.ExternalDevice, passDate time.Time, box *outbox) error {
	status := deviceStatusFor(ext)
	d := &domain.Device{
		NodeID:      node.ID,
		Name:        ext.Name,
		ExternalID:  ext.ID,
		Status:      status,
		InstallDate: ext.CreatedAt,
		Notes:       importNote(passDate),
	}
	if status == domain.DeviceStatusInactive {
		d.AbandonDate = ext.LastSeen
	}

	var guesses []string
	if ext.CreatedAt == nil {
		guesses = append(guesses, "install date unknown")
	}
	if status == domain.DeviceStatusInactive && ext.LastSeen == nil {
		guesses = append(guesses, "abandon date unknown")
	}

	if ext.IsBroadcast() {
		sector, sectorGuesses := r.guessSector(ext)
		d.Variant = sector
		guesses = append(guesses, sectorGuesses...)
	}

	if err := tx.CreateDevice(ctx, d); err != nil {
		return err
	}

	msg := fmt.Sprintf("Created %s on %s from UISP device %s", d, node, ext.ID)
	if len(guesses) > 0 {
		msg += "\nThe following fields were guessed or defaulted:" + bulletList(guesses)
	}
	box.add(NotificationCreated, true, msg, deviceRef(d), nodeRef(node))
	return nil
}

// guessSector derives sector geometry from the device name and model
func (r *DeviceReconciler) guessSector(ext domain.ExternalDevice) (*domain.SectorFields, []string) {
	var guesses []string
	sector := &domain.SectorFields{RadiusKm: r.sectors.RadiusKm}

	azimuth, ok := domain.GuessAzimuth(ext.Name)
	sector.AzimuthDeg, sector.AzimuthGuessed = azimuth, ok
	if ok {
		guesses = append(guesses, fmt.Sprintf("azimuth %.0f° guessed from the device name", azimuth))
	} else {
		r.logger.Warn("could not guess sector azimuth, defaulting to 0",
			zap.String("uisp_id", ext.ID), zap.String("name", ext.Name))
		guesses = append(guesses, "azimuth defaulted to 0°; no compass direction found in the device name")
	}

	if width, known := domain.BeamWidthForModel(ext.Model); known {
		sector.WidthDeg = width
		guesses = append(guesses, fmt.Sprintf("width %.0f° taken from model %s", width, ext.Model))
	} else {
		sector.WidthDeg = r.sectors.WidthDeg
		guesses = append(guesses, fmt.Sprintf("width defaulted to %.0f°; unknown model %q", r.sectors.WidthDeg, ext.Model))
	}

	guesses = append(guesses, fmt.Sprintf("radius defaulted to %g km", r.sectors.RadiusKm))
	return sector, guesses
}

// updateDevice applies the external record and reports every changed field
func (r *DeviceReconciler) updateDevice(ctx context.Context, tx repository.Tx, d *domain.Device, node *domain.Node, ext domain.ExternalDevice, box *outbox) (bool, error) {
	var changes, warnings []string

	if d.NodeID != node.ID {
		previous, err := tx.GetNode(ctx, d.NodeID)
		if err != nil {
			return false, err
		}
		from := d.NodeID
		if previous != nil {
			from = previous.String()
		}
		changes = append(changes, fmt.Sprintf("node changed from %s to %s", from, node))
		d.NodeID = node.ID
	}

	if d.Name != ext.Name {
		changes = append(changes, fmt.Sprintf("name changed from %q to %q", d.Name, ext.Name))
		d.Name = ext.Name
	}

	if status := deviceStatusFor(ext); d.Status != status {
		changes = append(changes, fmt.Sprintf("status changed from %s to %s", d.Status, status))
		shift := statusShift{
			wasActive:   d.Status == domain.DeviceStatusActive,
			wasInactive: d.Status == domain.DeviceStatusInactive,
			nowActive:   status == domain.DeviceStatusActive,
		}
		detail, warning := shift.apply(ext.LastSeen, &d.AbandonDate)
		if detail != "" {
			changes = append(changes, detail)
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		d.Status = status
	}

	if len(changes) == 0 {
		return false, nil
	}

	if err := tx.UpdateDevice(ctx, d); err != nil {
		return false, err
	}

	box.add(NotificationUpdated, false,
		fmt.Sprintf("Updated %s from UISP device %s:%s", d, ext.ID, bulletList(changes)),
		deviceRef(d))
	for _, w := range warnings {
		box.add(NotificationWarning, false, fmt.Sprintf("%s %s", d, w), deviceRef(d))
	}
	return true, nil
}

func (r *DeviceReconciler) reportDuplicateDevices(ext domain.ExternalDevice, existing []domain.Device, box *outbox) {
	refs := make([]ObjectRef, 0, len(existing))
	lines := make([]string, 0, len(existing))
	for i := range existing {
		refs = append(refs, deviceRef(&existing[i]))
		lines = append(lines, fmt.Sprintf("%s (id %s)", &existing[i], existing[i].ID))
	}

	r.logger.Warn("duplicate devices share a UISP id",
		zap.String("uisp_id", ext.ID), zap.Int("count", len(existing)))
	box.add(NotificationDuplicate, false,
		fmt.Sprintf("Possible duplicate objects detected: %d devices share UISP id %s. Each is updated separately; please merge them by hand:%s",
			len(existing), ext.ID, bulletList(lines)),
		refs...)
}

// deactivateMissing marks synced devices absent from the snapshot inactive
func (r *DeviceReconciler) deactivateMissing(ctx context.Context, seen map[string]bool, passDate time.Time, result *PhaseResult) error {
	var candidates []domain.Device
	err := r.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		devices, err := tx.ListDevicesWithExternalID(ctx)
		candidates = devices
		return err
	})
	if err != nil {
		return fmt.Errorf("list synced devices: %w", err)
	}

	for i := range candidates {
		d := candidates[i]
		if seen[d.ExternalID] || d.Status == domain.DeviceStatusInactive {
			continue
		}

		var (
			box     outbox
			changed bool
		)
		err := r.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			box.reset()
			if err := tx.LockNamed(ctx, deviceLockName(d.ExternalID)); err != nil {
				return err
			}
			current, err := tx.GetDevice(ctx, d.ID)
			if err != nil || current == nil || current.Status == domain.DeviceStatusInactive {
				return err
			}

			current.Status = domain.DeviceStatusInactive
			if current.AbandonDate == nil {
				current.AbandonDate = &passDate
			}
			current.AppendNote(absentDeviceNote)
			if err := tx.UpdateDevice(ctx, current); err != nil {
				return err
			}
			changed = true
			box.add(NotificationDeactivated, false,
				fmt.Sprintf("Marked %s inactive: UISP device %s no longer exists upstream", current, current.ExternalID),
				deviceRef(current))
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("failed to deactivate device", zap.String("device_id", d.ID), zap.Error(err))
			result.record(kindDevice, metrics.OutcomeFailed)
			continue
		}
		if changed {
			deliver(ctx, r.notifier, r.logger, box.pending)
			result.record(kindDevice, outcomeDeactivated)
		}
	}
	return nil
}

func (r *DeviceReconciler) reportFailure(ctx context.Context, ext domain.ExternalDevice, err error) {
	r.logger.Error("device reconciliation failed", zap.String("uisp_id", ext.ID), zap.Error(err))
	deliver(ctx, r.notifier, r.logger, []Notification{{
		Kind:    NotificationWarning,
		Message: fmt.Sprintf("Could not reconcile UISP device %s (%s): %v", ext.ID, ext.Name, err),
	}})
}
