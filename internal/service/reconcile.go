package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"meshinv/internal/domain"
	"meshinv/internal/metrics"
)

// ErrPassInProgress is returned when a pass is requested while one runs
var ErrPassInProgress = errors.New("reconciliation pass already running")

// ErrEmptySnapshot is returned for a snapshot without devices. Reconciling
// one would deactivate every synced device and link.
var ErrEmptySnapshot = errors.New("snapshot contains no devices")

// Result summarizes one reconciliation pass
type Result struct {
	Source      string        `json:"source"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Devices     PhaseResult   `json:"devices"`
	Links       PhaseResult   `json:"links"`
	LineOfSight PhaseResult   `json:"line_of_sight"`
}

// ReconcileService runs the device, link and line of sight phases in order
type ReconcileService struct {
	devices *DeviceReconciler
	links   *LinkReconciler
	los     *LOSProjector
	events  *EventBus
	logger  *zap.Logger

	// running serializes passes within this process
	running sync.Mutex
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(devices *DeviceReconciler, links *LinkReconciler, los *LOSProjector, events *EventBus, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		devices: devices,
		links:   links,
		los:     los,
		events:  events,
		logger:  logger.Named("reconcile"),
	}
}

// Run reconciles snapshot against the inventory. Record-level failures are
// counted in the result; an error means a phase could not run at all.
func (s *ReconcileService) Run(ctx context.Context, snapshot *domain.Snapshot) (*Result, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	if len(snapshot.Devices) == 0 {
		s.logger.Warn("refusing empty snapshot", zap.String("source", snapshot.Source))
		return nil, ErrEmptySnapshot
	}
	if !s.running.TryLock() {
		return nil, ErrPassInProgress
	}
	defer s.running.Unlock()

	source := snapshot.Source
	if source == "" {
		source = "unknown"
	}

	result := &Result{Source: source, StartedAt: time.Now().UTC()}
	s.logger.Info("reconciliation pass started",
		zap.String("source", source),
		zap.Int("devices", len(snapshot.Devices)),
		zap.Int("links", len(snapshot.Links)))
	s.events.Publish(Event{Type: EventReconcileStarted, Payload: map[string]string{"source": source}})

	err := s.run(ctx, snapshot, result)
	result.Duration = time.Since(result.StartedAt)
	metrics.PassDuration.WithLabelValues(source).Observe(result.Duration.Seconds())

	if err != nil {
		metrics.PassesTotal.WithLabelValues(source, "error").Inc()
		s.logger.Error("reconciliation pass aborted", zap.String("source", source), zap.Error(err))
		return result, err
	}

	metrics.PassesTotal.WithLabelValues(source, "success").Inc()
	s.logger.Info("reconciliation pass complete",
		zap.String("source", source),
		zap.Duration("duration", result.Duration))
	s.events.Publish(Event{Type: EventReconcileCompleted, Payload: result})
	return result, nil
}

func (s *ReconcileService) run(ctx context.Context, snapshot *domain.Snapshot, result *Result) error {
	var err error
	if result.Devices, err = s.devices.Reconcile(ctx, snapshot.Devices); err != nil {
		return fmt.Errorf("device phase: %w", err)
	}
	if result.Links, err = s.links.Reconcile(ctx, snapshot.Links); err != nil {
		return fmt.Errorf("link phase: %w", err)
	}
	if result.LineOfSight, err = s.los.Project(ctx); err != nil {
		return fmt.Errorf("line of sight phase: %w", err)
	}
	return nil
}
