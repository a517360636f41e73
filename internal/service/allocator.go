package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"meshinv/internal/domain"
	"meshinv/internal/metrics"
	"meshinv/internal/repository"
)

// AllocationResult reports the network number bound to an install
type AllocationResult struct {
	NetworkNumber int64  `json:"network_number"`
	NodeID        string `json:"node_id"`
	// Created is true only when a fresh number was consumed by this call
	Created bool `json:"created"`
}

// Allocator assigns network numbers to installs
type Allocator struct {
	store    repository.Store
	space    domain.NetworkNumberSpace
	notifier Notifier
	events   *EventBus
	logger   *zap.Logger
}

// NewAllocator creates a new allocator over space
func NewAllocator(store repository.Store, space domain.NetworkNumberSpace, notifier Notifier, events *EventBus, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		store:    store,
		space:    space,
		notifier: notifier,
		events:   events,
		logger:   logger.Named("allocator"),
	}
}

// Allocate binds a network number to the install. Calling it again for the
// same install returns the same number. Concurrent calls for different
// installs never return the same number.
func (a *Allocator) Allocate(ctx context.Context, installID string) (*AllocationResult, error) {
	var (
		result  *AllocationResult
		outcome string
		box     outbox
	)

	err := a.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		box.reset()
		var err error
		result, outcome, err = a.allocate(ctx, tx, installID, &box)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNetworkNumbersExhausted) {
			metrics.AllocationsTotal.WithLabelValues(metrics.OutcomeExhausted).Inc()
			a.logger.Error("network numbers exhausted",
				zap.String("install_id", installID),
				zap.Int64("min", a.space.Min),
				zap.Int64("max", a.space.Max))
		} else {
			metrics.AllocationsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
			a.logger.Error("allocation failed", zap.String("install_id", installID), zap.Error(err))
		}
		return nil, err
	}

	metrics.AllocationsTotal.WithLabelValues(outcome).Inc()
	a.logger.Info("network number allocated",
		zap.String("install_id", installID),
		zap.Int64("network_number", result.NetworkNumber),
		zap.String("node_id", result.NodeID),
		zap.String("outcome", outcome))

	deliver(ctx, a.notifier, a.logger, box.pending)
	if outcome != metrics.OutcomeExisting {
		a.events.Publish(Event{Type: EventNetworkNumberAssigned, Payload: result})
	}

	return result, nil
}

// allocate runs inside the allocation transaction
func (a *Allocator) allocate(ctx context.Context, tx repository.Tx, installID string, box *outbox) (*AllocationResult, string, error) {
	// The fast path reads without row locks. Install rows are only locked
	// while holding the assignment lock, so two allocations can never wait
	// on each other's rows.
	install, err := tx.GetInstall(ctx, installID)
	if err != nil {
		return nil, "", err
	}
	if install == nil {
		return nil, "", fmt.Errorf("install %s: %w", installID, domain.ErrNotFound)
	}

	if result, err := existingAssignment(ctx, tx, install); result != nil || err != nil {
		return result, metrics.OutcomeExisting, err
	}

	if err := tx.LockNamed(ctx, repository.NetworkNumberLock); err != nil {
		return nil, "", err
	}

	// A concurrent allocation for this install may have committed while we
	// waited for the lock.
	install, err = tx.GetInstallForUpdate(ctx, installID)
	if err != nil {
		return nil, "", err
	}
	if install == nil {
		return nil, "", fmt.Errorf("install %s: %w", installID, domain.ErrNotFound)
	}
	if result, err := existingAssignment(ctx, tx, install); result != nil || err != nil {
		return result, metrics.OutcomeExisting, err
	}

	var building *domain.Building
	if install.BuildingID != nil {
		building, err = tx.GetBuilding(ctx, *install.BuildingID)
		if err != nil {
			return nil, "", err
		}
	}

	if result, err := a.joinBuildingNode(ctx, tx, install, building, box); result != nil || err != nil {
		return result, metrics.OutcomeSticky, err
	}

	reserved, err := tx.ReservedNetworkNumbers(ctx)
	if err != nil {
		return nil, "", err
	}
	nn, ok := a.space.FirstFree(reserved)
	if !ok {
		return nil, "", fmt.Errorf("%d numbers in [%d, %d] all reserved: %w",
			a.space.Size(), a.space.Min, a.space.Max, domain.ErrNetworkNumbersExhausted)
	}

	if err := a.checkCandidate(ctx, tx, install, nn, box); err != nil {
		return nil, "", err
	}

	node, err := a.bindNode(ctx, tx, install, nn)
	if err != nil {
		return nil, "", err
	}

	if building != nil {
		if err := tx.AddNodeBuilding(ctx, node.ID, building.ID); err != nil {
			return nil, "", err
		}
		if building.PrimaryNodeID == nil {
			if err := tx.SetBuildingPrimaryNode(ctx, building.ID, node.ID); err != nil {
				return nil, "", err
			}
		}
	}

	install.NodeID = &node.ID
	if install.Status == domain.InstallStatusRequestReceived {
		install.Status = domain.InstallStatusPending
	}
	if err := tx.UpdateInstall(ctx, install); err != nil {
		return nil, "", err
	}

	box.add(NotificationCreated, true,
		fmt.Sprintf("Assigned network number %d to %s", nn, install),
		nodeRef(node), installRef(install))

	return &AllocationResult{NetworkNumber: nn, NodeID: node.ID, Created: true}, metrics.OutcomeCreated, nil
}

// existingAssignment returns the install's current number, if any
func existingAssignment(ctx context.Context, tx repository.Tx, install *domain.Install) (*AllocationResult, error) {
	if install.NodeID == nil {
		return nil, nil
	}
	node, err := tx.GetNode(ctx, *install.NodeID)
	if err != nil {
		return nil, err
	}
	if !node.HasNetworkNumber() {
		return nil, nil
	}
	return &AllocationResult{NetworkNumber: *node.NetworkNumber, NodeID: node.ID}, nil
}

// joinBuildingNode binds the install to its building's primary node when
// that node already holds a number. No fresh number is consumed.
func (a *Allocator) joinBuildingNode(ctx context.Context, tx repository.Tx, install *domain.Install, building *domain.Building, box *outbox) (*AllocationResult, error) {
	if building == nil || building.PrimaryNodeID == nil {
		return nil, nil
	}
	node, err := tx.GetNode(ctx, *building.PrimaryNodeID)
	if err != nil {
		return nil, err
	}
	if !node.HasNetworkNumber() {
		return nil, nil
	}

	install.NodeID = &node.ID
	if install.Status == domain.InstallStatusRequestReceived {
		install.Status = domain.InstallStatusPending
	}
	if err := tx.UpdateInstall(ctx, install); err != nil {
		return nil, err
	}

	box.add(NotificationUpdated, false,
		fmt.Sprintf("%s joined %s, the primary node of %s", install, node, building),
		installRef(install), nodeRef(node))

	return &AllocationResult{NetworkNumber: *node.NetworkNumber, NodeID: node.ID}, nil
}

// checkCandidate asserts nn is safe to hand out and retires its donor.
// Any failure here means the reserved set was wrong.
func (a *Allocator) checkCandidate(ctx context.Context, tx repository.Tx, install *domain.Install, nn int64, box *outbox) error {
	if !a.space.Contains(nn) {
		return fmt.Errorf("candidate %d outside [%d, %d]: %w", nn, a.space.Min, a.space.Max, domain.ErrPrecondition)
	}

	holder, err := tx.GetNodeByNetworkNumber(ctx, nn)
	if err != nil {
		return err
	}
	if holder != nil {
		return fmt.Errorf("candidate %d already held by node %s: %w", nn, holder.ID, domain.ErrPrecondition)
	}

	donor, err := tx.GetInstallByNumber(ctx, nn)
	if err != nil {
		return err
	}
	if donor == nil || donor.ID == install.ID {
		return nil
	}
	if donor.Status != domain.InstallStatusRequestReceived {
		numbered, err := existingAssignment(ctx, tx, donor)
		if err != nil {
			return err
		}
		if numbered == nil {
			return fmt.Errorf("candidate %d belongs to %s in status %q: %w",
				nn, donor, donor.Status, domain.ErrPrecondition)
		}
		// the donor already runs under another number, so its own is free
		return nil
	}

	donor.Status = domain.InstallStatusNNReassigned
	if err := tx.UpdateInstall(ctx, donor); err != nil {
		return err
	}

	a.logger.Info("recycled install number",
		zap.Int64("network_number", nn),
		zap.String("donor_install_id", donor.ID),
		zap.String("install_id", install.ID))
	box.add(NotificationUpdated, false,
		fmt.Sprintf("%s gave up its number %d to %s", donor, nn, install),
		installRef(donor), installRef(install))

	return nil
}

// bindNode numbers the install's unnumbered node or creates a new one
func (a *Allocator) bindNode(ctx context.Context, tx repository.Tx, install *domain.Install, nn int64) (*domain.Node, error) {
	if install.NodeID != nil {
		node, err := tx.GetNode(ctx, *install.NodeID)
		if err != nil {
			return nil, err
		}
		if node != nil {
			node.NetworkNumber = &nn
			if err := tx.UpdateNode(ctx, node); err != nil {
				return nil, err
			}
			return node, nil
		}
	}

	node := &domain.Node{
		NetworkNumber: &nn,
		Status:        domain.NodeStatusPlanned,
		Name:          fmt.Sprintf("NN%d", nn),
	}
	if err := tx.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}
