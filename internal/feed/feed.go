// Package feed absorbs driver location pings and keeps the geo index
// current. Stale and duplicate pings are dropped silently; drivers that stop
// reporting are evicted by a sweeper that runs independently of traffic.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/Mrigank923/Voy/internal/fleet"
	"github.com/Mrigank923/Voy/internal/geo"
	"github.com/Mrigank923/Voy/internal/models"
	"github.com/Mrigank923/Voy/internal/observability"
)

// Publisher fans accepted pings out to the ingest pipeline. Optional.
type Publisher interface {
	PublishPing(p models.LocationPing) error
}

// IndexPool adapts the geo index to the fleet's idle-pool hook, so engaged
// drivers drop out of radius queries the moment they are reserved and
// reappear when released.
type IndexPool struct{ Geo geo.Geo }

func (p IndexPool) Add(d models.Driver) {
	p.Geo.Upsert(geo.Entry{DriverID: d.ID, Loc: d.Loc, Class: d.Class, UpdatedAt: d.LastSeen})
}

func (p IndexPool) Remove(driverID string) { p.Geo.Remove(driverID) }

type Feed struct {
	Fleet     *fleet.Registry
	Geo       geo.Geo
	Publisher Publisher
	Logger    *slog.Logger

	StalenessWindow time.Duration
	SweepInterval   time.Duration
}

// OnPing applies one location report. Rejected pings (older timestamp than
// the last accepted one for that driver) change nothing. A ping for an
// unknown driver creates it online-idle.
func (f *Feed) OnPing(p models.LocationPing) {
	_, accepted := f.Fleet.ApplyPing(p)
	if !accepted {
		observability.PingsStaleDropped.Inc()
		return
	}
	observability.PingsAccepted.Inc()

	// The registry indexes idle drivers through the pool hook; reserved and
	// on-trip drivers keep their record fresh but stay unsearchable.
	observability.DriversOnline.Set(float64(f.Geo.Size()))

	if f.Publisher != nil {
		if err := f.Publisher.PublishPing(p); err != nil {
			f.Logger.Warn("ping publish failed", "driver_id", p.DriverID, "error", err)
		}
	}
}

// SweepExpired evicts idle drivers whose last accepted ping is older than the
// staleness window. Returns the number evicted.
func (f *Feed) SweepExpired(now time.Time) int {
	evicted := f.Fleet.ExpireStale(now.Add(-f.StalenessWindow))
	for _, d := range evicted {
		observability.SweepEvictions.Inc()
		f.Logger.Info("driver evicted as stale", "driver_id", d.ID, "last_seen", d.LastSeen)
	}
	if len(evicted) > 0 {
		observability.DriversOnline.Set(float64(f.Geo.Size()))
	}
	return len(evicted)
}

// Remove drops a driver from the index on explicit sign-off and refreshes
// the online gauge. Idempotent with the registry's pool removal.
func (f *Feed) Remove(driverID string) {
	f.Geo.Remove(driverID)
	observability.DriversOnline.Set(float64(f.Geo.Size()))
}

// Run sweeps on a fixed interval until ctx is done, so silently-disconnected
// drivers are evicted even with no further ping traffic.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			f.SweepExpired(t)
		}
	}
}
