// Package engine composes the geo index, location feed, match coordinator,
// and ride store behind the operations external callers see: submit, cancel,
// ping, respond, and the trip progress calls. It also fans lifecycle events
// out to the rider notifier and the transition store.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mrigank923/Voy/internal/config"
	"github.com/Mrigank923/Voy/internal/dispatch"
	"github.com/Mrigank923/Voy/internal/eta"
	"github.com/Mrigank923/Voy/internal/feed"
	"github.com/Mrigank923/Voy/internal/fleet"
	"github.com/Mrigank923/Voy/internal/geo"
	"github.com/Mrigank923/Voy/internal/match"
	"github.com/Mrigank923/Voy/internal/models"
	"github.com/Mrigank923/Voy/internal/ride"
	"github.com/Mrigank923/Voy/internal/schedule"
	"github.com/Mrigank923/Voy/internal/storage"
)

type Options struct {
	Dispatch        config.DispatchConfig
	Geo             geo.Geo
	Fleet           *fleet.Registry
	Scheduler       *schedule.Scheduler
	DriverNotifier  dispatch.DriverNotifier
	RiderNotifier   dispatch.RiderNotifier
	Store           storage.TransitionStore
	Publisher       feed.Publisher
	ETAClient       eta.Client
	ETACache        *eta.Cache
	DefaultSpeedMps float64
	Logger          *slog.Logger
}

type Engine struct {
	Rides       *ride.Store
	Feed        *feed.Feed
	Coordinator *match.Coordinator
	Fleet       *fleet.Registry
	Scheduler   *schedule.Scheduler

	store  storage.TransitionStore
	rider  dispatch.RiderNotifier
	logger *slog.Logger
}

func New(o Options) *Engine {
	e := &Engine{
		Rides:     ride.NewStore(),
		Fleet:     o.Fleet,
		Scheduler: o.Scheduler,
		store:     o.Store,
		rider:     o.RiderNotifier,
		logger:    o.Logger,
	}
	// the geo index only holds reservable drivers; the registry maintains
	// that set as drivers move between idle and engaged
	o.Fleet.BindPool(feed.IndexPool{Geo: o.Geo})
	e.Feed = &feed.Feed{
		Fleet:           o.Fleet,
		Geo:             o.Geo,
		Publisher:       o.Publisher,
		Logger:          o.Logger,
		StalenessWindow: o.Dispatch.StalenessWindow,
		SweepInterval:   o.Dispatch.SweepInterval,
	}
	e.Coordinator = match.NewCoordinator(o.Dispatch, o.Geo, o.Fleet, o.Scheduler, o.DriverNotifier, e, o.Logger)
	e.Coordinator.ETAClient = o.ETAClient
	e.Coordinator.ETACache = o.ETACache
	e.Coordinator.DefaultSpeedMps = o.DefaultSpeedMps
	return e
}

// SubmitRideRequest registers a new request and starts matching it
// asynchronously. The rider learns the outcome through rider events.
func (e *Engine) SubmitRideRequest(riderID string, pickup models.Coord, class models.VehicleClass) (string, error) {
	req := models.RideRequest{
		ID:        uuid.NewString(),
		RiderID:   riderID,
		Pickup:    pickup,
		Class:     class,
		CreatedAt: time.Now(),
	}
	if err := e.store.SaveRequest(req); err != nil {
		return "", err
	}

	r := ride.New(req)
	e.Rides.Put(r)
	e.Coordinator.Start(r)
	e.logger.Info("ride request submitted", "request_id", req.ID, "rider_id", riderID)
	return req.ID, nil
}

// CancelRideRequest aborts a request. While the coordinator owns the request
// (searching, or offer outstanding) the cancellation goes through it so a
// reserved driver is released first; after acceptance the engine cancels the
// ride directly and frees the on-trip driver.
func (e *Engine) CancelRideRequest(requestID string) error {
	err := e.Coordinator.Cancel(requestID)
	if err != match.ErrUnknownRequest {
		return err
	}

	r, ok := e.Rides.Get(requestID)
	if !ok {
		return match.ErrUnknownRequest
	}
	driverID := r.DriverID()
	ev, terr := r.Transition(models.RideCancelled, "", time.Now())
	if terr != nil {
		return terr
	}
	if driverID != "" {
		e.Fleet.EndTrip(driverID)
	}
	e.Transition(ev)
	e.Rider(models.RiderEvent{RequestID: requestID, Event: "cancelled", At: ev.At})
	return nil
}

// DriverPing feeds one location report into the engine.
func (e *Engine) DriverPing(p models.LocationPing) {
	e.Feed.OnPing(p)
}

// DriverRespond applies a driver's accept or decline to an outstanding offer.
func (e *Engine) DriverRespond(offerID string, accept bool) error {
	return e.Coordinator.Respond(offerID, accept)
}

// DriverOffline handles explicit sign-off: the driver leaves the idle pool
// immediately instead of waiting for the staleness sweep.
func (e *Engine) DriverOffline(driverID string) {
	if e.Fleet.SetOffline(driverID) {
		e.Feed.Remove(driverID)
	}
}

// StartTrip marks an accepted ride as underway (driver picked the rider up).
func (e *Engine) StartTrip(requestID string) error {
	r, ok := e.Rides.Get(requestID)
	if !ok {
		return match.ErrUnknownRequest
	}
	ev, err := r.Transition(models.RideEnRoute, "", time.Now())
	if err != nil {
		return err
	}
	e.Transition(ev)
	return nil
}

// CompleteTrip finishes a ride and returns the driver to the idle pool.
func (e *Engine) CompleteTrip(requestID string) error {
	r, ok := e.Rides.Get(requestID)
	if !ok {
		return match.ErrUnknownRequest
	}
	driverID := r.DriverID()
	ev, err := r.Transition(models.RideCompleted, "", time.Now())
	if err != nil {
		return err
	}
	if driverID != "" {
		e.Fleet.EndTrip(driverID)
	}
	e.Transition(ev)
	e.Rider(models.RiderEvent{RequestID: requestID, Event: "completed", DriverID: driverID, At: ev.At})
	return nil
}

// Run drives the timer wheel and the staleness sweeper until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	go e.Scheduler.Run(ctx)
	e.Feed.Run(ctx)
}

// Transition implements match.Events: persist every state change and archive
// rides that reached a terminal state.
func (e *Engine) Transition(ev models.TransitionEvent) {
	if err := e.store.RecordTransition(ev); err != nil {
		e.logger.Error("transition persist failed", "request_id", ev.RequestID, "from", ev.From, "to", ev.To, "error", err)
	}
	e.logger.Info("ride transition", "request_id", ev.RequestID, "from", ev.From, "to", ev.To)
	if ride.Terminal(ev.To) {
		e.Rides.Delete(ev.RequestID)
	}
}

// Rider implements match.Events.
func (e *Engine) Rider(ev models.RiderEvent) {
	if e.rider == nil {
		return
	}
	if err := e.rider.NotifyRider(ev); err != nil {
		e.logger.Warn("rider notification failed", "request_id", ev.RequestID, "event", ev.Event, "error", err)
	}
}
