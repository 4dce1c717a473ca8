// Package store is the persistence seam for room state. The engine only holds
// the in-memory authoritative copy for a room's lifetime; loading the starting
// parts and durably saving them on teardown belongs to whatever implements
// Store. The server ships with the in-memory implementation below.
package store

import (
	"context"
	"sync"

	"github.com/prottoy/tableproto-backend/pkg/board"
)

type Snapshot struct {
	Parts      []board.Part
	Properties []board.PartProperty
}

type Store interface {
	// Load returns the saved state for a prototype version, or an empty
	// snapshot if none exists.
	Load(ctx context.Context, prototypeVersionID string) (Snapshot, error)
	// Save overwrites the saved state for a prototype version.
	Save(ctx context.Context, prototypeVersionID string, snap Snapshot) error
}

type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]Snapshot)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.rooms[id]
	if !ok {
		return Snapshot{}, nil
	}
	out := Snapshot{
		Parts:      make([]board.Part, len(snap.Parts)),
		Properties: make([]board.PartProperty, len(snap.Properties)),
	}
	copy(out.Parts, snap.Parts)
	copy(out.Properties, snap.Properties)
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := Snapshot{
		Parts:      make([]board.Part, len(snap.Parts)),
		Properties: make([]board.PartProperty, len(snap.Properties)),
	}
	copy(kept.Parts, snap.Parts)
	copy(kept.Properties, snap.Properties)
	m.rooms[id] = kept
	return nil
}
