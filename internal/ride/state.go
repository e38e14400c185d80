// Package ride owns the lifecycle of a single ride request. All state
// changes flow through Transition, which rejects anything not in the legal
// transition table and leaves the state untouched on failure.
package ride

import (
	"errors"
	"sync"
	"time"

	"github.com/Mrigank923/Voy/internal/models"
)

// ErrInvalidTransition signals caller misuse: the requested transition is not
// reachable from the current state. The ride is left unchanged.
var ErrInvalidTransition = errors.New("invalid ride state transition")

var legal = map[models.RideState][]models.RideState{
	models.RideRequested: {models.RideMatched, models.RideCancelled, models.RideExpired},
	models.RideMatched:   {models.RideAccepted, models.RideRequested, models.RideCancelled, models.RideExpired},
	models.RideAccepted:  {models.RideEnRoute, models.RideCancelled},
	models.RideEnRoute:   {models.RideCompleted},
}

// Terminal reports whether s admits no further transitions.
func Terminal(s models.RideState) bool {
	switch s {
	case models.RideCompleted, models.RideCancelled, models.RideExpired:
		return true
	}
	return false
}

func allowed(from, to models.RideState) bool {
	for _, s := range legal[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Ride pairs a request with its current state. Transitions for one ride are
// serialized by its mutex; distinct rides proceed independently.
type Ride struct {
	mu        sync.Mutex
	req       models.RideRequest
	state     models.RideState
	driverID  string
	updatedAt time.Time
}

func New(req models.RideRequest) *Ride {
	return &Ride{req: req, state: models.RideRequested, updatedAt: req.CreatedAt}
}

func (r *Ride) Request() models.RideRequest {
	return r.req
}

func (r *Ride) State() models.RideState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// DriverID returns the assigned driver, empty unless the ride is matched or
// further along.
func (r *Ride) DriverID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.driverID
}

// Transition applies a guarded state change and returns the event to persist.
// driverID is recorded when entering matched and cleared when falling back to
// requested (failed offer round) or into a terminal state without a trip.
func (r *Ride) Transition(to models.RideState, driverID string, at time.Time) (models.TransitionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !allowed(r.state, to) {
		return models.TransitionEvent{}, ErrInvalidTransition
	}

	ev := models.TransitionEvent{RequestID: r.req.ID, From: r.state, To: to, At: at}
	r.state = to
	r.updatedAt = at
	switch to {
	case models.RideMatched:
		r.driverID = driverID
	case models.RideRequested, models.RideExpired, models.RideCancelled:
		r.driverID = ""
	}
	return ev, nil
}

// Store is an arena of live rides keyed by request ID. Terminal rides are
// dropped from it once their final event is persisted.
type Store struct {
	mu    sync.RWMutex
	rides map[string]*Ride
}

func NewStore() *Store {
	return &Store{rides: make(map[string]*Ride)}
}

func (s *Store) Put(r *Ride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides[r.req.ID] = r
}

func (s *Store) Get(id string) (*Ride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	return r, ok
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rides, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rides)
}
