package playerdb

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory OfflineStore.
type MemoryStore struct {
	players map[uint64]OfflinePlayerEntry
	byUUID  map[uuid.UUID]uint64
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[uint64]OfflinePlayerEntry),
		byUUID:  make(map[uuid.UUID]uint64),
	}
}

// Upsert records a player in memory.
func (m *MemoryStore) Upsert(_ context.Context, e OfflinePlayerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.players[e.XUID]; ok && old.UUID != e.UUID {
		delete(m.byUUID, old.UUID)
	}
	m.players[e.XUID] = e
	m.byUUID[e.UUID] = e.XUID
	return nil
}

// ByXUID looks a player up by XUID.
func (m *MemoryStore) ByXUID(_ context.Context, xuid uint64) (OfflinePlayerEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.players[xuid]
	return e, ok, nil
}

// ByUUID looks a player up by UUID.
func (m *MemoryStore) ByUUID(_ context.Context, id uuid.UUID) (OfflinePlayerEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	xuid, ok := m.byUUID[id]
	if !ok {
		return OfflinePlayerEntry{}, false, nil
	}
	return m.players[xuid], true, nil
}

// ByName looks a player up by name, ignoring case.
func (m *MemoryStore) ByName(_ context.Context, name string) (OfflinePlayerEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.players {
		if strings.EqualFold(e.Name, name) {
			return e, true, nil
		}
	}
	return OfflinePlayerEntry{}, false, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
