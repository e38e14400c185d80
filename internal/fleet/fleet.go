// Package fleet owns driver availability state. Every status change goes
// through a per-driver lock so transitions for one driver are linearizable
// while unrelated drivers proceed independently. Cross references to offers
// are held as IDs, never pointers, so releases can compare-and-swap against
// the driver's current offer.
package fleet

import (
	"sync"
	"time"

	"github.com/Mrigank923/Voy/internal/models"
)

// IdlePool mirrors the searchable driver set. The registry adds a driver
// whenever it turns idle and removes it when it is reserved, goes on trip,
// signs off, or is swept, so a radius query only ever sees drivers an offer
// could actually reserve.
type IdlePool interface {
	Add(d models.Driver)
	Remove(driverID string)
}

type Registry struct {
	mu      sync.RWMutex
	drivers map[string]*slot
	pool    IdlePool
}

type slot struct {
	mu      sync.Mutex
	d       models.Driver
	offerID string // outstanding offer, empty if none
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]*slot)}
}

// BindPool attaches the idle pool. Must be called during wiring, before any
// traffic reaches the registry.
func (r *Registry) BindPool(p IdlePool) { r.pool = p }

func (r *Registry) poolAdd(d models.Driver) {
	if r.pool != nil {
		r.pool.Add(d)
	}
}

func (r *Registry) poolRemove(driverID string) {
	if r.pool != nil {
		r.pool.Remove(driverID)
	}
}

func (r *Registry) get(id string) *slot {
	r.mu.RLock()
	s := r.drivers[id]
	r.mu.RUnlock()
	return s
}

func (r *Registry) getOrCreate(id string) *slot {
	if s := r.get(id); s != nil {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.drivers[id]; ok {
		return s
	}
	s := &slot{d: models.Driver{ID: id, Status: models.DriverOffline}}
	r.drivers[id] = s
	return s
}

// Get returns a snapshot of the driver record.
func (r *Registry) Get(id string) (models.Driver, bool) {
	s := r.get(id)
	if s == nil {
		return models.Driver{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d, true
}

// ApplyPing folds a location report into the driver record. A ping with a
// timestamp at or before the last accepted one is rejected, preserving a
// monotonic per-driver location history. Unknown or offline drivers come
// online idle. Only idle drivers are (re)published to the pool; a reserved
// or on-trip driver keeps its record fresh but stays out of the searchable
// set until released.
func (r *Registry) ApplyPing(p models.LocationPing) (models.Driver, bool) {
	s := r.getOrCreate(p.DriverID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.d.LastSeen.IsZero() && !p.Timestamp.After(s.d.LastSeen) {
		return s.d, false
	}
	s.d.Loc = p.Loc
	s.d.LastSeen = p.Timestamp
	if p.Class != models.ClassAny {
		s.d.Class = p.Class
	}
	if s.d.Status == models.DriverOffline {
		s.d.Status = models.DriverIdle
	}
	if s.d.Status == models.DriverIdle {
		r.poolAdd(s.d)
	}
	return s.d, true
}

// Reserve atomically moves an idle driver to online-reserved and records the
// offer as the driver's current one. It fails if the driver is unknown or in
// any other status, which is how concurrent match attempts racing for the
// same driver are resolved. A reserved driver leaves the pool so it cannot
// occupy candidate slots in other searches while it holds an offer.
func (r *Registry) Reserve(driverID, offerID string) bool {
	s := r.get(driverID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d.Status != models.DriverIdle {
		return false
	}
	s.d.Status = models.DriverReserved
	s.offerID = offerID
	r.poolRemove(driverID)
	return true
}

// Release returns a reserved driver to idle, but only if offerID is still the
// driver's current offer. An expiry firing just after an acceptance (or a
// cancellation racing a response) loses this compare-and-swap and becomes a
// no-op.
func (r *Registry) Release(driverID, offerID string) bool {
	s := r.get(driverID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offerID != offerID || s.d.Status != models.DriverReserved {
		return false
	}
	s.offerID = ""
	s.d.Status = models.DriverIdle
	r.poolAdd(s.d)
	return true
}

// ConfirmTrip consumes the offer and moves the driver to on-trip. Same
// compare-and-swap discipline as Release.
func (r *Registry) ConfirmTrip(driverID, offerID string) bool {
	s := r.get(driverID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offerID != offerID || s.d.Status != models.DriverReserved {
		return false
	}
	s.offerID = ""
	s.d.Status = models.DriverOnTrip
	return true
}

// EndTrip returns an on-trip driver to idle once the ride finishes.
func (r *Registry) EndTrip(driverID string) bool {
	s := r.get(driverID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d.Status != models.DriverOnTrip {
		return false
	}
	s.d.Status = models.DriverIdle
	r.poolAdd(s.d)
	return true
}

// SetOffline forces a driver offline regardless of current status and clears
// any offer reference. Used for explicit sign-off.
func (r *Registry) SetOffline(driverID string) bool {
	s := r.get(driverID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d.Status == models.DriverOffline {
		return false
	}
	s.d.Status = models.DriverOffline
	s.offerID = ""
	r.poolRemove(driverID)
	return true
}

// ExpireStale marks idle drivers whose last accepted ping is older than
// cutoff as offline and returns them. Drivers holding an offer or riding a
// trip are left alone; their engagement ends through the offer/ride path.
func (r *Registry) ExpireStale(cutoff time.Time) []models.Driver {
	r.mu.RLock()
	slots := make([]*slot, 0, len(r.drivers))
	for _, s := range r.drivers {
		slots = append(slots, s)
	}
	r.mu.RUnlock()

	var evicted []models.Driver
	for _, s := range slots {
		s.mu.Lock()
		if s.d.Status == models.DriverIdle && s.d.LastSeen.Before(cutoff) {
			s.d.Status = models.DriverOffline
			r.poolRemove(s.d.ID)
			evicted = append(evicted, s.d)
		}
		s.mu.Unlock()
	}
	return evicted
}

// CurrentOffer reports the driver's outstanding offer ID, empty if none.
func (r *Registry) CurrentOffer(driverID string) string {
	s := r.get(driverID)
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offerID
}
