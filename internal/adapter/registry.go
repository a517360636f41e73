package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"meshinv/internal/domain"
)

// ReconcileFunc is called when an adapter produces a snapshot to be merged
type ReconcileFunc func(ctx context.Context, source string, snapshot *domain.Snapshot) error

// Registry manages all registered adapters and their lifecycle
type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]Adapter
	configs   map[string]AdapterConfig
	reconcile ReconcileFunc
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewRegistry creates a new adapter registry
func NewRegistry(reconcile ReconcileFunc, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		adapters:  make(map[string]Adapter),
		configs:   make(map[string]AdapterConfig),
		reconcile: reconcile,
		logger:    logger.Named("adapters"),
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter, config AdapterConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}

	r.adapters[name] = adapter
	r.configs[name] = config
	r.logger.Info("registered adapter",
		zap.String("adapter", name),
		zap.String("type", string(adapter.Type())),
		zap.Bool("enabled", config.Enabled),
		zap.Duration("poll_interval", config.PollInterval))

	return nil
}

// Start initializes all enabled adapters and begins their polling loops
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctx, r.cancel = context.WithCancel(ctx)

	for name, adapter := range r.adapters {
		config := r.configs[name]
		if !config.Enabled {
			r.logger.Info("adapter disabled, skipping", zap.String("adapter", name))
			continue
		}

		if err := adapter.Start(r.ctx); err != nil {
			r.logger.Error("failed to start adapter", zap.String("adapter", name), zap.Error(err))
			continue
		}

		if adapter.Type() == AdapterTypePolling {
			r.startPollingLoop(name, adapter, config)
		}
	}

	return nil
}

// Stop gracefully shuts down all adapters
func (r *Registry) Stop() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	// polling loops take the read lock in runSync
	r.wg.Wait()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, adapter := range r.adapters {
		if err := adapter.Stop(); err != nil {
			r.logger.Warn("error stopping adapter", zap.String("adapter", name), zap.Error(err))
		}
	}

	return nil
}

// TriggerSync manually runs one fetch and reconciliation for an adapter
func (r *Registry) TriggerSync(ctx context.Context, name string) error {
	r.mu.RLock()
	adapter, exists := r.adapters[name]
	config := r.configs[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("adapter %s: %w", name, domain.ErrNotFound)
	}

	if !config.Enabled {
		return fmt.Errorf("adapter %s is disabled", name)
	}

	return r.runSync(ctx, name, adapter)
}

// TriggerSyncAll manually runs every enabled adapter in name order
func (r *Registry) TriggerSyncAll(ctx context.Context) error {
	var errs []error
	for _, info := range r.ListAdapters() {
		if !info.Enabled {
			continue
		}
		if err := r.TriggerSync(ctx, info.Name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", info.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ListAdapters returns information about registered adapters
func (r *Registry) ListAdapters() []AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AdapterInfo, 0, len(r.adapters))
	for name, adapter := range r.adapters {
		config := r.configs[name]
		info := AdapterInfo{
			Name:    name,
			Type:    adapter.Type(),
			Enabled: config.Enabled,
		}
		if adapter.Type() == AdapterTypePolling {
			info.PollInterval = pollInterval(config).String()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// AdapterInfo provides read-only information about an adapter
type AdapterInfo struct {
	Name         string      `json:"name"`
	Type         AdapterType `json:"type"`
	Enabled      bool        `json:"enabled"`
	PollInterval string      `json:"poll_interval,omitempty"`
}

func pollInterval(config AdapterConfig) time.Duration {
	if config.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return config.PollInterval
}

// startPollingLoop starts a goroutine that polls the adapter on schedule
func (r *Registry) startPollingLoop(name string, adapter Adapter, config AdapterConfig) {
	interval := pollInterval(config)
	ctx := r.ctx

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := r.runSync(ctx, name, adapter); err != nil {
			r.logger.Error("initial sync failed", zap.String("adapter", name), zap.Error(err))
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("stopping polling loop", zap.String("adapter", name))
				return
			case <-ticker.C:
				if err := r.runSync(ctx, name, adapter); err != nil {
					r.logger.Error("sync failed", zap.String("adapter", name), zap.Error(err))
				}
			}
		}
	}()

	r.logger.Info("started polling loop", zap.String("adapter", name), zap.Duration("interval", interval))
}

// runSync fetches a snapshot and reconciles it. A failed fetch runs no pass.
func (r *Registry) runSync(ctx context.Context, name string, adapter Adapter) error {
	r.logger.Debug("running sync", zap.String("adapter", name))

	snapshot, err := adapter.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if snapshot == nil {
		return fmt.Errorf("adapter %s returned no snapshot", name)
	}
	// an empty view would deactivate every synced device and link
	if len(snapshot.Devices) == 0 {
		r.logger.Warn("adapter returned an empty snapshot, skipping pass", zap.String("adapter", name))
		return nil
	}
	if snapshot.Source == "" {
		snapshot.Source = name
	}

	if err := r.reconcile(ctx, name, snapshot); err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	r.logger.Info("sync complete",
		zap.String("adapter", name),
		zap.Int("devices", len(snapshot.Devices)),
		zap.Int("links", len(snapshot.Links)))

	return nil
}
