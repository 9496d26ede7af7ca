package handler

import (
	"sync"

	"github.com/rocjay1/easytax/internal/lifecycle"
)

// Workspaces keeps the calculator state of each user in memory.
type Workspaces struct {
	mu     sync.Mutex
	states map[string]lifecycle.State
}

// NewWorkspaces returns an empty registry.
func NewWorkspaces() *Workspaces {
	return &Workspaces{states: make(map[string]lifecycle.State)}
}

// Get returns the state of userID, if any.
func (ws *Workspaces) Get(userID string) (lifecycle.State, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	s, ok := ws.states[userID]
	return s, ok
}

// LoadOrStore returns the existing state of userID, or stores and returns s.
func (ws *Workspaces) LoadOrStore(userID string, s lifecycle.State) lifecycle.State {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if existing, ok := ws.states[userID]; ok {
		return existing
	}
	ws.states[userID] = s
	return s
}

// Update applies fn to the state of userID and stores the result. A missing
// workspace starts from lifecycle.New. On error nothing is stored and the
// previous state is returned.
func (ws *Workspaces) Update(userID string, fn func(lifecycle.State) (lifecycle.State, error)) (lifecycle.State, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	cur, ok := ws.states[userID]
	if !ok {
		cur = lifecycle.New()
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	ws.states[userID] = next
	return next, nil
}
