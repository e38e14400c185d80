package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// VehicleClass tags a driver's vehicle; ride requests ask for one.
type VehicleClass string

const (
	ClassAny     VehicleClass = ""
	ClassEconomy VehicleClass = "economy"
	ClassComfort VehicleClass = "comfort"
	ClassXL      VehicleClass = "xl"
)

// DriverStatus is the driver-side availability lifecycle. Status transitions
// are owned by the fleet registry; the location feed only touches location
// and liveness.
type DriverStatus string

const (
	DriverOffline  DriverStatus = "offline"
	DriverIdle     DriverStatus = "online_idle"
	DriverReserved DriverStatus = "online_reserved"
	DriverOnTrip   DriverStatus = "on_trip"
)

type Driver struct {
	ID       string       `json:"id"`
	Loc      Coord        `json:"loc"`
	Class    VehicleClass `json:"class"`
	Status   DriverStatus `json:"status"`
	LastSeen time.Time    `json:"last_seen"` // timestamp of last accepted ping
}

// LocationPing is a raw driver location report. Pings may arrive late,
// duplicated, or out of order; the feed keeps only monotonic updates.
type LocationPing struct {
	DriverID  string       `json:"driver_id"`
	Loc       Coord        `json:"loc"`
	Class     VehicleClass `json:"class,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// RideState is the request-side lifecycle. Legal transitions are enforced by
// the ride package; completed, cancelled, and expired are terminal.
type RideState string

const (
	RideRequested RideState = "requested"
	RideMatched   RideState = "matched"
	RideAccepted  RideState = "accepted"
	RideEnRoute   RideState = "en_route"
	RideCompleted RideState = "completed"
	RideCancelled RideState = "cancelled"
	RideExpired   RideState = "expired"
)

type RideRequest struct {
	ID        string       `json:"id"`
	RiderID   string       `json:"rider_id"`
	Pickup    Coord        `json:"pickup"`
	Class     VehicleClass `json:"class"`
	CreatedAt time.Time    `json:"created_at"`
}

// Offer is the ephemeral, exclusive pairing of one request with one driver.
// It exists only between reservation and the driver's response or expiry.
type Offer struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	DriverID  string    `json:"driver_id"`
	Pickup    Coord     `json:"pickup"`
	DistanceM float64   `json:"distance_m"`
	ETASec    float64   `json:"eta_seconds,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TransitionEvent is emitted once per ride state change for the external
// persistence layer to consume.
type TransitionEvent struct {
	RequestID string    `json:"request_id"`
	From      RideState `json:"from"`
	To        RideState `json:"to"`
	At        time.Time `json:"at"`
}

// RiderEvent is the rider-visible view of dispatch progress. Internal retry
// and reservation detail never leaks into it.
type RiderEvent struct {
	RequestID string    `json:"request_id"`
	Event     string    `json:"event"` // matched, no_driver_found, cancelled, expired, driver_accepted, completed
	DriverID  string    `json:"driver_id,omitempty"`
	At        time.Time `json:"at"`
}
