package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Mrigank923/Voy/internal/fleet"
	"github.com/Mrigank923/Voy/internal/geo"
	"github.com/Mrigank923/Voy/internal/models"
)

func newTestFeed() (*Feed, *fleet.Registry, *geo.Index) {
	reg := fleet.NewRegistry()
	idx := geo.NewIndex()
	reg.BindPool(IndexPool{Geo: idx})
	f := &Feed{
		Fleet:           reg,
		Geo:             idx,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		StalenessWindow: 30 * time.Second,
		SweepInterval:   time.Second,
	}
	return f, reg, idx
}

func TestOnPingCreatesAndIndexesDriver(t *testing.T) {
	f, reg, idx := newTestFeed()
	f.OnPing(models.LocationPing{DriverID: "d1", Loc: models.Coord{Lat: 0.001, Lon: 0.001}, Timestamp: time.Now()})

	d, ok := reg.Get("d1")
	if !ok || d.Status != models.DriverIdle {
		t.Fatalf("driver must exist online_idle, got %+v ok=%v", d, ok)
	}
	if idx.Size() != 1 {
		t.Fatalf("driver must be indexed, size=%d", idx.Size())
	}
}

func TestStalePingNeverChangesLocation(t *testing.T) {
	f, reg, idx := newTestFeed()
	now := time.Now()
	f.OnPing(models.LocationPing{DriverID: "d1", Loc: models.Coord{Lat: 1, Lon: 1}, Timestamp: now})
	f.OnPing(models.LocationPing{DriverID: "d1", Loc: models.Coord{Lat: 2, Lon: 2}, Timestamp: now.Add(-time.Second)})

	d, _ := reg.Get("d1")
	if d.Loc.Lat != 1 || d.Loc.Lon != 1 {
		t.Fatalf("stale ping moved the driver: %+v", d.Loc)
	}
	got := idx.QueryNearest(models.Coord{Lat: 1, Lon: 1}, 100, models.ClassAny, 1)
	if len(got) != 1 || got[0].DriverID != "d1" {
		t.Fatalf("index must keep the newer location, got %v", got)
	}
}

func TestSweepExpiredEvictsSilentDriver(t *testing.T) {
	f, reg, idx := newTestFeed()
	f.OnPing(models.LocationPing{DriverID: "d1", Loc: models.Coord{Lat: 0, Lon: 0}, Timestamp: time.Now().Add(-time.Minute)})

	if n := f.SweepExpired(time.Now()); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	d, _ := reg.Get("d1")
	if d.Status != models.DriverOffline {
		t.Fatalf("expected offline, got %s", d.Status)
	}
	if idx.Size() != 0 {
		t.Fatalf("evicted driver must leave the index, size=%d", idx.Size())
	}
}

func TestSweepExpiredKeepsFreshDriver(t *testing.T) {
	f, _, idx := newTestFeed()
	f.OnPing(models.LocationPing{DriverID: "d1", Loc: models.Coord{Lat: 0, Lon: 0}, Timestamp: time.Now()})

	if n := f.SweepExpired(time.Now()); n != 0 {
		t.Fatalf("fresh driver must not be evicted, got %d", n)
	}
	if idx.Size() != 1 {
		t.Fatalf("fresh driver must stay indexed, size=%d", idx.Size())
	}
}

type countingPublisher struct{ n int }

func (c *countingPublisher) PublishPing(models.LocationPing) error { c.n++; return nil }

func TestOnlyAcceptedPingsArePublished(t *testing.T) {
	f, _, _ := newTestFeed()
	pub := &countingPublisher{}
	f.Publisher = pub

	now := time.Now()
	f.OnPing(models.LocationPing{DriverID: "d1", Loc: models.Coord{Lat: 0, Lon: 0}, Timestamp: now})
	f.OnPing(models.LocationPing{DriverID: "d1", Loc: models.Coord{Lat: 0, Lon: 0}, Timestamp: now}) // duplicate

	if pub.n != 1 {
		t.Fatalf("expected one published ping, got %d", pub.n)
	}
}
