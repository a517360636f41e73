package adapter

import (
	"context"
	"fmt"
	"os"
	"time"

	"meshinv/internal/codec"
	"meshinv/internal/domain"
)

// FileAdapter reads a snapshot exported to disk. It only runs on demand.
type FileAdapter struct {
	path string
}

// NewFileAdapter creates an adapter for the snapshot file at path
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

// Name implements Adapter
func (a *FileAdapter) Name() string { return "file" }

// Type implements Adapter
func (a *FileAdapter) Type() AdapterType { return AdapterTypeOneShot }

// Start implements Adapter
func (a *FileAdapter) Start(context.Context) error { return nil }

// Stop implements Adapter
func (a *FileAdapter) Stop() error { return nil }

// Fetch implements Adapter
func (a *FileAdapter) Fetch(context.Context) (*domain.Snapshot, error) {
	c, err := codec.ForPath(a.path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snapshot, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", a.path, err)
	}
	if snapshot.Source == "" {
		snapshot.Source = a.Name()
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now().UTC()
	}
	return snapshot, nil
}
