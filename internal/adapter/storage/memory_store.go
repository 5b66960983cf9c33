// internal/adapter/storage/memory_store.go

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"geofinder/internal/domain/session"
)

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	sessions map[string]session.Session
	mutex    sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]session.Session),
	}
}

// Save stores a copy of the session
func (m *MemoryStore) Save(ctx context.Context, s session.Session) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sessions[s.ID] = s.Clone()
	return nil
}

// Get returns a copy of the stored session
func (m *MemoryStore) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, session.ErrSessionNotFound
	}

	c := s.Clone()
	return &c, nil
}

// Delete removes a session
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.sessions, id)
	return nil
}

// ListIdleSince returns the IDs of sessions not updated since t, oldest first
func (m *MemoryStore) ListIdleSince(ctx context.Context, t time.Time) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var idle []session.Session
	for _, s := range m.sessions {
		if s.UpdatedAt.Before(t) {
			idle = append(idle, s)
		}
	}

	sort.Slice(idle, func(i, j int) bool {
		return idle[i].UpdatedAt.Before(idle[j].UpdatedAt)
	})

	ids := make([]string, 0, len(idle))
	for _, s := range idle {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
