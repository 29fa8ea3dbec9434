package session

import (
	"context"
	"sync"

	"boekie.app/internal/access"
)

// MemStore implements Store in memory, for tests and dev mode.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemStore creates an empty in-memory session store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*Session)}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemStore) Find(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, access.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return access.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemStore) SetActiveCompany(ctx context.Context, id, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return access.ErrNotFound
	}
	s.ActiveCompanyID = companyID
	return nil
}

func (m *MemStore) ClearActiveCompany(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return access.ErrNotFound
	}
	s.ActiveCompanyID = ""
	return nil
}
