package storage

import (
	"sync"

	"github.com/Mrigank923/Voy/internal/models"
)

// TransitionStore is the audit trail the external persistence layer
// consumes: one row per ride request plus one per state transition.
type TransitionStore interface {
	SaveRequest(r models.RideRequest) error
	RecordTransition(ev models.TransitionEvent) error
}

type MemoryStore struct {
	mu          sync.RWMutex
	requests    map[string]models.RideRequest
	transitions map[string][]models.TransitionEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:    make(map[string]models.RideRequest),
		transitions: make(map[string][]models.TransitionEvent),
	}
}

func (m *MemoryStore) SaveRequest(r models.RideRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryStore) RecordTransition(ev models.TransitionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[ev.RequestID] = append(m.transitions[ev.RequestID], ev)
	return nil
}

// Transitions returns the recorded history for one request, oldest first.
func (m *MemoryStore) Transitions(requestID string) []models.TransitionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evs := m.transitions[requestID]
	out := make([]models.TransitionEvent, len(evs))
	copy(out, evs)
	return out
}
