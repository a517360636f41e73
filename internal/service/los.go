package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"meshinv/internal/domain"
	"meshinv/internal/metrics"
	"meshinv/internal/repository"
)

// LOSProjector derives line-of-sight records from active wireless links.
// It only creates and promotes; it never deletes.
type LOSProjector struct {
	store    repository.Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewLOSProjector creates a new projector
func NewLOSProjector(store repository.Store, notifier Notifier, logger *zap.Logger) *LOSProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LOSProjector{
		store:    store,
		notifier: notifier,
		logger:   logger.Named("los"),
		now:      time.Now,
	}
}

// SetClock overrides the pass date source
func (p *LOSProjector) SetClock(now func() time.Time) {
	p.now = now
}

// pairLinks gathers the active wireless links between one building pair
type pairLinks struct {
	pair     domain.BuildingPair
	from, to *domain.Building
	// link supplies the analysis date and is named in notes
	link *domain.Link
	date time.Time
}

// Project records line of sight for every building pair joined by an
// active wireless link
func (p *LOSProjector) Project(ctx context.Context) (PhaseResult, error) {
	var result PhaseResult
	passDate := p.now().UTC()

	var (
		links  []domain.Link
		groups []*pairLinks
	)
	err := p.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if links, err = tx.ListActiveLinks(ctx); err != nil {
			return err
		}
		groups, err = p.groupByBuildingPair(ctx, tx, links, passDate)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("resolve active links: %w", err)
	}

	for _, g := range groups {
		outcome, err := p.projectPair(ctx, g)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			p.logger.Error("line of sight projection failed",
				zap.String("building_a", g.pair.A),
				zap.String("building_b", g.pair.B),
				zap.String("link_id", g.link.ID),
				zap.Error(err))
			result.record(kindLOS, metrics.OutcomeFailed)
			continue
		}
		result.record(kindLOS, outcome)
	}

	p.logger.Info("line of sight pass complete",
		zap.Int("links", len(links)),
		zap.Int("pairs", len(groups)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated))

	return result, nil
}

// groupByBuildingPair maps eligible links to building pairs in first-seen
// order. Each pair is dated by the latest estimate among its links.
func (p *LOSProjector) groupByBuildingPair(ctx context.Context, tx repository.Tx, links []domain.Link, passDate time.Time) ([]*pairLinks, error) {
	var groups []*pairLinks
	byPair := make(map[domain.BuildingPair]*pairLinks)

	for i := range links {
		link := &links[i]
		if !link.Type.ImpliesLineOfSight() {
			continue
		}

		from, err := representativeBuilding(ctx, tx, link.FromDeviceID)
		if err != nil {
			return nil, err
		}
		to, err := representativeBuilding(ctx, tx, link.ToDeviceID)
		if err != nil {
			return nil, err
		}
		if from == nil || to == nil {
			p.logger.Debug("link endpoint has no building", zap.String("link_id", link.ID))
			continue
		}

		pair := domain.NewBuildingPair(from.ID, to.ID)
		if pair.SameBuilding() {
			continue
		}

		date := passDate
		if link.LastFunctioningDateEstimate != nil {
			date = link.LastFunctioningDateEstimate.UTC()
		}

		g, ok := byPair[pair]
		if !ok {
			g = &pairLinks{pair: pair, from: from, to: to, link: link, date: date}
			byPair[pair] = g
			groups = append(groups, g)
			continue
		}
		if date.After(g.date) {
			g.link, g.date = link, date
		}
	}
	return groups, nil
}

// projectPair creates or promotes the line of sight record for one pair
func (p *LOSProjector) projectPair(ctx context.Context, g *pairLinks) (string, error) {
	var (
		box     outbox
		outcome string
	)

	err := p.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		box.reset()

		if err := tx.LockNamed(ctx, "los:"+g.pair.A+":"+g.pair.B); err != nil {
			return err
		}
		existing, err := tx.FindLOSByBuildingPairForUpdate(ctx, g.pair.A, g.pair.B)
		if err != nil {
			return err
		}

		if len(existing) == 0 {
			los := &domain.LOS{
				FromBuildingID: g.from.ID,
				ToBuildingID:   g.to.ID,
				Source:         domain.LOSSourceExistingLink,
				AnalysisDate:   g.date,
				Notes:          fmt.Sprintf("Created automatically from link %s", g.link.ID),
			}
			if err := tx.CreateLOS(ctx, los); err != nil {
				return err
			}
			outcome = metrics.OutcomeCreated
			box.add(NotificationCreated, true,
				fmt.Sprintf("Created %s between %s and %s from %s", los, g.from, g.to, g.link),
				losRef(los), linkRef(g.link))
			return nil
		}

		if len(existing) > 1 {
			p.logger.Warn("several line of sight records for one building pair",
				zap.String("building_a", g.pair.A), zap.String("building_b", g.pair.B), zap.Int("count", len(existing)))
		}

		outcome = metrics.OutcomeUnchanged
		for i := range existing {
			los := &existing[i]
			switch los.Source {
			case domain.LOSSourceHumanAnnotated:
				los.Source = domain.LOSSourceExistingLink
				los.AnalysisDate = g.date
				los.Notes = appendLine(los.Notes, fmt.Sprintf("Confirmed by link %s", g.link.ID))
				if err := tx.UpdateLOS(ctx, los); err != nil {
					return err
				}
				outcome = metrics.OutcomeUpdated
				box.add(NotificationUpdated, false,
					fmt.Sprintf("Promoted %s from %s to %s: confirmed by %s",
						los, domain.LOSSourceHumanAnnotated, domain.LOSSourceExistingLink, g.link),
					losRef(los), linkRef(g.link))
			case domain.LOSSourceExistingLink:
				// analysis dates only move forward
				if !g.date.After(los.AnalysisDate) {
					continue
				}
				los.AnalysisDate = g.date
				if err := tx.UpdateLOS(ctx, los); err != nil {
					return err
				}
				outcome = metrics.OutcomeUpdated
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	deliver(ctx, p.notifier, p.logger, box.pending)
	return outcome, nil
}

// representativeBuilding resolves a device to the building its node serves.
// A building whose primary node is the device's node wins over the node's
// other buildings.
func representativeBuilding(ctx context.Context, tx repository.Tx, deviceID string) (*domain.Building, error) {
	device, err := tx.GetDevice(ctx, deviceID)
	if err != nil || device == nil {
		return nil, err
	}
	buildings, err := tx.NodeBuildings(ctx, device.NodeID)
	if err != nil || len(buildings) == 0 {
		return nil, err
	}
	return &buildings[0], nil
}

func appendLine(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n\n" + line
}
