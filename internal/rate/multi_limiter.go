package rate

import (
	"context"
	"sync"
)

// Multi enruta cada acción a la estrategia que le corresponde
// (sliding para los throttles de challenges, fixed para el resto).
type Multi struct {
	mu       sync.RWMutex
	fallback Limiter
	routes   map[string]Limiter
}

func NewMulti(fallback Limiter) *Multi {
	return &Multi{fallback: fallback, routes: make(map[string]Limiter)}
}

// Route asigna una estrategia a una acción.
func (m *Multi) Route(action string, l Limiter) *Multi {
	m.mu.Lock()
	m.routes[action] = l
	m.mu.Unlock()
	return m
}

func (m *Multi) Check(ctx context.Context, s Subject, action string) Result {
	m.mu.RLock()
	l, ok := m.routes[action]
	m.mu.RUnlock()
	if !ok {
		l = m.fallback
	}
	if l == nil {
		return Result{Allowed: true, Unlimited: true, Remaining: -1}
	}
	return l.Check(ctx, s, action)
}
