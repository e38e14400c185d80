// Package match finds and reserves drivers for ride requests. Reservation is
// a compare-and-set against the fleet registry, so two requests racing for
// the same driver resolve locally: one wins, the other moves to its next
// candidate. All work for one request is serialized through its session;
// different requests proceed in parallel.
package match

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mrigank923/Voy/internal/config"
	"github.com/Mrigank923/Voy/internal/dispatch"
	"github.com/Mrigank923/Voy/internal/eta"
	"github.com/Mrigank923/Voy/internal/fleet"
	"github.com/Mrigank923/Voy/internal/geo"
	"github.com/Mrigank923/Voy/internal/models"
	"github.com/Mrigank923/Voy/internal/observability"
	"github.com/Mrigank923/Voy/internal/ride"
	"github.com/Mrigank923/Voy/internal/schedule"
)

var (
	// ErrNoDriversAvailable is the expected business outcome when the radius
	// ceiling and re-match attempts are exhausted.
	ErrNoDriversAvailable = errors.New("no drivers available")
	// ErrRequestCancelled terminates an in-flight match on rider request.
	ErrRequestCancelled = errors.New("ride request cancelled")
	// ErrOfferExpired is returned to a driver responding to an offer that is
	// no longer outstanding.
	ErrOfferExpired = errors.New("offer expired or no longer outstanding")
	// ErrUnknownRequest is returned for IDs the coordinator is not tracking.
	ErrUnknownRequest = errors.New("unknown ride request")
)

// Events receives every ride transition and rider-visible outcome. The
// engine persists transitions and forwards rider events; the coordinator
// never talks to storage directly.
type Events interface {
	Transition(ev models.TransitionEvent)
	Rider(ev models.RiderEvent)
}

// session serializes all matching work for one ride request.
type session struct {
	mu       sync.Mutex
	ride     *ride.Ride
	attempts int           // offer rounds ended without acceptance
	offer    *models.Offer // outstanding offer, nil between rounds
	timer    *schedule.Timer
	done     bool
}

type Coordinator struct {
	Cfg      config.DispatchConfig
	Geo      geo.Geo
	Fleet    *fleet.Registry
	Sched    *schedule.Scheduler
	Notifier dispatch.DriverNotifier
	Events   Events
	Logger   *slog.Logger

	// optional mapping-service client used to decorate offers
	ETAClient       eta.Client
	ETACache        *eta.Cache
	DefaultSpeedMps float64

	mu       sync.Mutex
	sessions map[string]*session // by request ID
	byOffer  map[string]*session // by outstanding offer ID
}

func NewCoordinator(cfg config.DispatchConfig, g geo.Geo, f *fleet.Registry, s *schedule.Scheduler, n dispatch.DriverNotifier, ev Events, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		Cfg:      cfg,
		Geo:      g,
		Fleet:    f,
		Sched:    s,
		Notifier: n,
		Events:   ev,
		Logger:   logger,
		sessions: make(map[string]*session),
		byOffer:  make(map[string]*session),
	}
}

// Start begins matching r asynchronously. The caller gets the request ID
// back immediately; progress is reported through Events.
func (c *Coordinator) Start(r *ride.Ride) {
	s := &session{ride: r}
	c.mu.Lock()
	c.sessions[r.Request().ID] = s
	c.mu.Unlock()
	go c.runRound(s)
}

// runRound performs one search round: widen the radius from the configured
// floor to the ceiling, attempting to reserve candidates in order. It either
// leaves the session with an outstanding offer or terminates the request.
func (c *Coordinator) runRound(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}

	req := s.ride.Request()
	radius := c.Cfg.InitialRadiusM
	for {
		// the index only holds idle drivers, so a failed reserve means the
		// candidate was taken between the query and the compare-and-set
		for _, cand := range c.Geo.QueryNearest(req.Pickup, radius, req.Class, c.Cfg.CandidateLimit) {
			offerID := uuid.NewString()
			if !c.Fleet.Reserve(cand.DriverID, offerID) {
				continue
			}
			c.extendOffer(s, cand, offerID)
			return
		}
		if radius >= c.Cfg.MaxRadiusM {
			break
		}
		radius *= c.Cfg.RadiusGrowthFactor
		if radius > c.Cfg.MaxRadiusM {
			radius = c.Cfg.MaxRadiusM
		}
	}

	c.failLocked(s)
}

// extendOffer records the reservation, notifies the driver, and arms the
// expiry timer. Called with s.mu held and the driver already reserved.
func (c *Coordinator) extendOffer(s *session, cand geo.Candidate, offerID string) {
	req := s.ride.Request()
	now := time.Now()
	offer := &models.Offer{
		ID:        offerID,
		RequestID: req.ID,
		DriverID:  cand.DriverID,
		Pickup:    req.Pickup,
		DistanceM: cand.DistanceM,
		ETASec:    c.pickupETA(cand.Loc, req.Pickup),
		CreatedAt: now,
		ExpiresAt: now.Add(c.Cfg.OfferExpiry),
	}

	ev, err := s.ride.Transition(models.RideMatched, cand.DriverID, now)
	if err != nil {
		// request reached a terminal state while we were searching
		c.Fleet.Release(cand.DriverID, offerID)
		return
	}
	c.Events.Transition(ev)

	s.offer = offer
	c.mu.Lock()
	c.byOffer[offerID] = s
	c.mu.Unlock()

	observability.OffersCreated.Inc()
	observability.MatchLatency.Observe(now.Sub(req.CreatedAt).Seconds())

	if err := c.Notifier.NotifyDriver(cand.DriverID, *offer); err != nil {
		c.Logger.Warn("driver notification failed", "driver_id", cand.DriverID, "offer_id", offerID, "error", err)
	}
	s.timer = c.Sched.At(offer.ExpiresAt, func() { c.expire(req.ID, offerID) })
}

// pickupETA consults the mapping service if configured, falling back to a
// straight-line estimate.
func (c *Coordinator) pickupETA(from, to models.Coord) float64 {
	if c.ETACache != nil {
		if v, ok := c.ETACache.Get(from, to); ok {
			return v
		}
	}
	if c.ETAClient != nil {
		if v, err := c.ETAClient.EstimateSeconds(from, to); err == nil {
			if c.ETACache != nil {
				c.ETACache.Set(from, to, v)
			}
			return v
		}
	}
	return eta.EstimateSeconds(from, to, c.DefaultSpeedMps)
}

// expire fires when an offer deadline passes. The fleet release is a
// compare-and-swap on the offer reference, so an acceptance that slipped in
// at the last instant wins and the expiry becomes a no-op.
func (c *Coordinator) expire(requestID, offerID string) {
	s := c.lookup(requestID)
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.done || s.offer == nil || s.offer.ID != offerID {
		s.mu.Unlock()
		return
	}
	observability.OffersExpired.Inc()
	c.endRoundLocked(s, offerID)
	s.mu.Unlock()
}

// Respond handles a driver's accept or decline for an outstanding offer.
func (c *Coordinator) Respond(offerID string, accept bool) error {
	c.mu.Lock()
	s := c.byOffer[offerID]
	c.mu.Unlock()
	if s == nil {
		return ErrOfferExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.offer == nil || s.offer.ID != offerID {
		return ErrOfferExpired
	}

	if !accept {
		observability.OffersDeclined.Inc()
		c.endRoundLocked(s, offerID)
		return nil
	}

	if !c.Fleet.ConfirmTrip(s.offer.DriverID, offerID) {
		// expiry won the race and already released the driver
		return ErrOfferExpired
	}
	if s.timer != nil {
		c.Sched.Cancel(s.timer)
	}
	driverID := s.offer.DriverID
	c.dropOffer(s, offerID)

	ev, err := s.ride.Transition(models.RideAccepted, driverID, time.Now())
	if err != nil {
		// cancellation raced the acceptance; put the driver back
		c.Fleet.EndTrip(driverID)
		return ErrRequestCancelled
	}
	c.Events.Transition(ev)
	observability.OffersAccepted.Inc()
	observability.MatchesTotal.Inc()
	c.Events.Rider(models.RiderEvent{RequestID: ev.RequestID, Event: "matched", DriverID: driverID, At: ev.At})

	c.finishLocked(s)
	return nil
}

// endRoundLocked closes an unaccepted offer round (decline or expiry),
// releases the driver, and either re-enters the search or terminates the
// request when attempts are exhausted. Called with s.mu held.
func (c *Coordinator) endRoundLocked(s *session, offerID string) {
	driverID := s.offer.DriverID
	if s.timer != nil {
		c.Sched.Cancel(s.timer)
	}
	c.Fleet.Release(driverID, offerID)
	c.dropOffer(s, offerID)
	s.attempts++

	now := time.Now()
	if s.attempts >= c.Cfg.MaxMatchAttempts {
		if ev, err := s.ride.Transition(models.RideExpired, "", now); err == nil {
			c.Events.Transition(ev)
			c.Events.Rider(models.RiderEvent{RequestID: ev.RequestID, Event: "expired", At: ev.At})
		}
		observability.MatchFailures.Inc()
		c.finishLocked(s)
		return
	}

	if ev, err := s.ride.Transition(models.RideRequested, "", now); err == nil {
		c.Events.Transition(ev)
	}
	go c.runRound(s)
}

// failLocked terminates a request that found no reservable driver at any
// radius. Called with s.mu held.
func (c *Coordinator) failLocked(s *session) {
	now := time.Now()
	c.Logger.Info("match exhausted", "request_id", s.ride.Request().ID, "error", ErrNoDriversAvailable)
	if ev, err := s.ride.Transition(models.RideExpired, "", now); err == nil {
		c.Events.Transition(ev)
		c.Events.Rider(models.RiderEvent{RequestID: ev.RequestID, Event: "no_driver_found", At: ev.At})
	}
	observability.MatchFailures.Inc()
	c.finishLocked(s)
}

// Cancel aborts a request on the rider's behalf. A reserved driver is
// released synchronously before the request reaches cancelled; an on-trip
// driver returns to idle.
func (c *Coordinator) Cancel(requestID string) error {
	s := c.lookup(requestID)
	if s == nil {
		return ErrUnknownRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		// the session finished (acceptance or terminal outcome) between the
		// lookup and the lock; the caller falls back to the ride itself,
		// which still accepts a cancel from accepted
		return ErrUnknownRequest
	}

	var reservedDriver string
	if s.offer != nil {
		reservedDriver = s.offer.DriverID
		if s.timer != nil {
			c.Sched.Cancel(s.timer)
		}
		c.Fleet.Release(reservedDriver, s.offer.ID)
		c.dropOffer(s, s.offer.ID)
	}

	onTripDriver := s.ride.DriverID()
	ev, err := s.ride.Transition(models.RideCancelled, "", time.Now())
	if err != nil {
		return err
	}
	if ev.From == models.RideAccepted && onTripDriver != "" {
		c.Fleet.EndTrip(onTripDriver)
	}
	c.Events.Transition(ev)
	c.Events.Rider(models.RiderEvent{RequestID: ev.RequestID, Event: "cancelled", At: ev.At})
	c.finishLocked(s)
	return nil
}

// Tracks reports whether the coordinator still owns the request's lifecycle
// (i.e. no acceptance or terminal outcome yet).
func (c *Coordinator) Tracks(requestID string) bool {
	return c.lookup(requestID) != nil
}

func (c *Coordinator) lookup(requestID string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[requestID]
}

// dropOffer clears the session's outstanding offer. Called with s.mu held.
func (c *Coordinator) dropOffer(s *session, offerID string) {
	s.offer = nil
	s.timer = nil
	c.mu.Lock()
	delete(c.byOffer, offerID)
	c.mu.Unlock()
}

// finishLocked ends the coordinator's ownership of the session. Called with
// s.mu held.
func (c *Coordinator) finishLocked(s *session) {
	s.done = true
	c.mu.Lock()
	delete(c.sessions, s.ride.Request().ID)
	c.mu.Unlock()
}
