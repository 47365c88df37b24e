package storage

import (
	"context"
	"sync"

	"github.com/spartanbot/spartanbot/pkg/providers"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, nil
	}
	cp := Snapshot{
		Settings:        make(map[string]any, len(m.snap.Settings)),
		RentalProviders: append([]providers.Config(nil), m.snap.RentalProviders...),
	}
	for k, v := range m.snap.Settings {
		cp.Settings[k] = v
	}
	return &cp, nil
}

func (m *MemoryStorage) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := snap
	m.snap = &cp
	return nil
}
