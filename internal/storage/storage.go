package storage

import (
	"context"
	"errors"

	"github.com/spartanbot/spartanbot/pkg/providers"
)

// SnapshotName is the single named record the registry persists to.
const SnapshotName = "spartanbot-storage"

// Snapshot is the complete persisted representation of registry state at one
// point in time. Every write is a full replacement of the prior record.
type Snapshot struct {
	Settings        map[string]any     `json:"settings"`
	RentalProviders []providers.Config `json:"rental_providers"`
}

// ErrPersistence marks a read or write failure on the storage medium.
// Callers test for it with errors.Is.
var ErrPersistence = errors.New("persistence failure")

// Storage abstracts persistence for the registry snapshot.
type Storage interface {
	// LoadSnapshot returns the persisted snapshot, or (nil, nil) when no
	// snapshot has been written yet.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
	// SaveSnapshot replaces the persisted snapshot.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
