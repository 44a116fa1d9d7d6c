package identity

import (
	"context"
	"sync"
)

// Memory es un Store en memoria para dev y tests.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]*Record
	byEmail map[string]string
}

func NewMemory(records ...Record) *Memory {
	m := &Memory{byID: map[string]*Record{}, byEmail: map[string]string{}}
	for _, r := range records {
		m.Put(r)
	}
	return m
}

func (m *Memory) Put(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Email = NormalizeEmail(r.Email)
	m.byID[r.ID] = &r
	m.byEmail[r.Email] = r.ID
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (*Record, error) {
	m.mu.RLock()
	id, ok := m.byEmail[NormalizeEmail(email)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *Memory) FindByID(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.PasswordHash = passwordHash
	return nil
}

func (m *Memory) MarkEmailVerified(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.EmailVerified = true
	return nil
}
