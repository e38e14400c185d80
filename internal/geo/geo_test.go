package geo

import (
	"testing"
	"time"

	"github.com/Mrigank923/Voy/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestQueryNearestOrdersByDistance(t *testing.T) {
	g := NewIndex()
	now := time.Now()
	g.Upsert(Entry{DriverID: "far", Loc: models.Coord{Lat: 0.01, Lon: 0.01}, Class: models.ClassEconomy, UpdatedAt: now})
	g.Upsert(Entry{DriverID: "near", Loc: models.Coord{Lat: 0.001, Lon: 0.001}, Class: models.ClassEconomy, UpdatedAt: now})
	g.Upsert(Entry{DriverID: "mid", Loc: models.Coord{Lat: 0.005, Lon: 0.005}, Class: models.ClassEconomy, UpdatedAt: now})

	got := g.QueryNearest(models.Coord{Lat: 0, Lon: 0}, 5000, models.ClassAny, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].DriverID != "near" || got[1].DriverID != "mid" || got[2].DriverID != "far" {
		t.Fatalf("wrong order: %s %s %s", got[0].DriverID, got[1].DriverID, got[2].DriverID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceM < got[i-1].DistanceM {
			t.Fatalf("distances not ascending")
		}
	}
}

func TestQueryNearestTieBreakPrefersFresher(t *testing.T) {
	g := NewIndex()
	loc := models.Coord{Lat: 0.001, Lon: 0.001}
	older := time.Now().Add(-10 * time.Second)
	newer := time.Now()
	g.Upsert(Entry{DriverID: "stale", Loc: loc, UpdatedAt: older})
	g.Upsert(Entry{DriverID: "fresh", Loc: loc, UpdatedAt: newer})

	got := g.QueryNearest(models.Coord{Lat: 0, Lon: 0}, 1000, models.ClassAny, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].DriverID != "fresh" {
		t.Fatalf("expected fresher entry first, got %s", got[0].DriverID)
	}
}

func TestQueryNearestFiltersClassAndRadius(t *testing.T) {
	g := NewIndex()
	now := time.Now()
	g.Upsert(Entry{DriverID: "xl", Loc: models.Coord{Lat: 0.001, Lon: 0.001}, Class: models.ClassXL, UpdatedAt: now})
	g.Upsert(Entry{DriverID: "eco", Loc: models.Coord{Lat: 0.001, Lon: 0.001}, Class: models.ClassEconomy, UpdatedAt: now})
	g.Upsert(Entry{DriverID: "outside", Loc: models.Coord{Lat: 1, Lon: 1}, Class: models.ClassEconomy, UpdatedAt: now})

	got := g.QueryNearest(models.Coord{Lat: 0, Lon: 0}, 1000, models.ClassEconomy, 10)
	if len(got) != 1 || got[0].DriverID != "eco" {
		t.Fatalf("expected only eco, got %v", got)
	}
}

func TestQueryNearestEmptyIsNotAnError(t *testing.T) {
	g := NewIndex()
	if got := g.QueryNearest(models.Coord{Lat: 50, Lon: 8}, 500, models.ClassAny, 5); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestUpsertMovesEntryAcrossCells(t *testing.T) {
	g := NewIndex()
	g.Upsert(Entry{DriverID: "d1", Loc: models.Coord{Lat: 0, Lon: 0}, UpdatedAt: time.Now()})
	// move well outside the original geohash cell
	g.Upsert(Entry{DriverID: "d1", Loc: models.Coord{Lat: 0.1, Lon: 0.1}, UpdatedAt: time.Now()})

	if g.Size() != 1 {
		t.Fatalf("expected one entry after move, got %d", g.Size())
	}
	if got := g.QueryNearest(models.Coord{Lat: 0, Lon: 0}, 500, models.ClassAny, 5); len(got) != 0 {
		t.Fatalf("entry should have left the old cell, got %v", got)
	}
	if got := g.QueryNearest(models.Coord{Lat: 0.1, Lon: 0.1}, 500, models.ClassAny, 5); len(got) != 1 {
		t.Fatalf("entry should be at the new location, got %v", got)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	g := NewIndex()
	g.Upsert(Entry{DriverID: "d1", Loc: models.Coord{Lat: 0, Lon: 0}, UpdatedAt: time.Now()})
	g.Remove("d1")
	g.Remove("d1") // no-op
	if g.Size() != 0 {
		t.Fatalf("expected empty index, got %d", g.Size())
	}
}

func TestQueryNearestRespectsLimit(t *testing.T) {
	g := NewIndex()
	now := time.Now()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.Upsert(Entry{DriverID: id, Loc: models.Coord{Lat: 0.001, Lon: 0.001}, UpdatedAt: now})
	}
	if got := g.QueryNearest(models.Coord{Lat: 0, Lon: 0}, 1000, models.ClassAny, 2); len(got) != 2 {
		t.Fatalf("expected limit 2, got %d", len(got))
	}
}
