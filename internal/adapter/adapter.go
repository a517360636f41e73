package adapter

import (
	"context"
	"time"

	"meshinv/internal/domain"
)

// AdapterType defines how an adapter interacts with its data source
type AdapterType string

const (
	// AdapterTypePolling - adapter pulls a snapshot on a schedule
	AdapterTypePolling AdapterType = "polling"
	// AdapterTypeOneShot - manual trigger only (e.g., file import)
	AdapterTypeOneShot AdapterType = "oneshot"
)

// DefaultPollInterval is used when a polling adapter has no interval
const DefaultPollInterval = 15 * time.Minute

// AdapterConfig holds configuration for an adapter instance
type AdapterConfig struct {
	// Enabled determines if the adapter should run
	Enabled bool `json:"enabled"`
	// PollInterval for polling adapters
	PollInterval time.Duration `json:"poll_interval,omitempty"`
}

// Adapter is a source of external inventory snapshots
type Adapter interface {
	// Name returns the unique identifier for this adapter
	Name() string

	// Type returns how this adapter interacts with its source
	Type() AdapterType

	// Start initializes the adapter (called once on startup)
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter
	Stop() error

	// Fetch returns one complete view of the source. A partial view must be
	// reported as an error, since missing records would be deactivated.
	Fetch(ctx context.Context) (*domain.Snapshot, error)
}
