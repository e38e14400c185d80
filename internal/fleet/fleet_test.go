package fleet

import (
	"sync"
	"testing"
	"time"

	"github.com/Mrigank923/Voy/internal/models"
)

func ping(id string, lat, lon float64, ts time.Time) models.LocationPing {
	return models.LocationPing{DriverID: id, Loc: models.Coord{Lat: lat, Lon: lon}, Timestamp: ts}
}

func TestApplyPingCreatesUnknownDriverIdle(t *testing.T) {
	r := NewRegistry()
	d, accepted := r.ApplyPing(ping("d1", 1, 2, time.Now()))
	if !accepted {
		t.Fatal("first ping must be accepted")
	}
	if d.Status != models.DriverIdle {
		t.Fatalf("expected online_idle, got %s", d.Status)
	}
}

func TestApplyPingRejectsOlderTimestamp(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.ApplyPing(ping("d1", 1, 1, now))
	d, accepted := r.ApplyPing(ping("d1", 9, 9, now.Add(-time.Second)))
	if accepted {
		t.Fatal("stale ping must be rejected")
	}
	if d.Loc.Lat != 1 || d.Loc.Lon != 1 {
		t.Fatalf("stale ping must not move the driver, got %+v", d.Loc)
	}

	// duplicate timestamp is also rejected
	if _, accepted := r.ApplyPing(ping("d1", 9, 9, now)); accepted {
		t.Fatal("duplicate ping must be rejected")
	}
}

func TestReserveOnlyFromIdle(t *testing.T) {
	r := NewRegistry()
	r.ApplyPing(ping("d1", 0, 0, time.Now()))

	if !r.Reserve("d1", "offer-1") {
		t.Fatal("reserve from idle must succeed")
	}
	if r.Reserve("d1", "offer-2") {
		t.Fatal("reserve of a reserved driver must fail")
	}
	if r.Reserve("ghost", "offer-3") {
		t.Fatal("reserve of unknown driver must fail")
	}
	d, _ := r.Get("d1")
	if d.Status != models.DriverReserved {
		t.Fatalf("expected online_reserved, got %s", d.Status)
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	r := NewRegistry()
	r.ApplyPing(ping("d1", 0, 0, time.Now()))

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if r.Reserve("d1", "offer") {
				wins <- n
			}
		}(i)
	}
	wg.Wait()
	close(wins)
	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func TestReleaseRequiresMatchingOffer(t *testing.T) {
	r := NewRegistry()
	r.ApplyPing(ping("d1", 0, 0, time.Now()))
	r.Reserve("d1", "offer-1")

	if r.Release("d1", "other-offer") {
		t.Fatal("release with wrong offer id must be a no-op")
	}
	if !r.Release("d1", "offer-1") {
		t.Fatal("release with current offer id must succeed")
	}
	d, _ := r.Get("d1")
	if d.Status != models.DriverIdle {
		t.Fatalf("expected online_idle after release, got %s", d.Status)
	}
}

func TestConfirmTripConsumesOffer(t *testing.T) {
	r := NewRegistry()
	r.ApplyPing(ping("d1", 0, 0, time.Now()))
	r.Reserve("d1", "offer-1")

	if !r.ConfirmTrip("d1", "offer-1") {
		t.Fatal("confirm with current offer must succeed")
	}
	if r.CurrentOffer("d1") != "" {
		t.Fatal("offer must be consumed")
	}
	// expiry firing after acceptance loses the compare-and-swap
	if r.Release("d1", "offer-1") {
		t.Fatal("release after confirm must be a no-op")
	}
	d, _ := r.Get("d1")
	if d.Status != models.DriverOnTrip {
		t.Fatalf("expected on_trip, got %s", d.Status)
	}

	if !r.EndTrip("d1") {
		t.Fatal("end trip must succeed")
	}
	d, _ = r.Get("d1")
	if d.Status != models.DriverIdle {
		t.Fatalf("expected online_idle after trip, got %s", d.Status)
	}
}

type recordingPool struct {
	mu      sync.Mutex
	adds    []string
	removes []string
}

func (p *recordingPool) Add(d models.Driver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adds = append(p.adds, d.ID)
}

func (p *recordingPool) Remove(driverID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removes = append(p.removes, driverID)
}

func TestPoolFollowsIdleTransitions(t *testing.T) {
	pool := &recordingPool{}
	r := NewRegistry()
	r.BindPool(pool)

	r.ApplyPing(ping("d1", 0, 0, time.Now())) // came online idle
	r.Reserve("d1", "offer-1")                // engaged, out of the pool
	r.Release("d1", "offer-1")                // back in
	r.Reserve("d1", "offer-2")
	r.ConfirmTrip("d1", "offer-2") // stays out for the trip
	r.EndTrip("d1")                // back in
	r.SetOffline("d1")             // gone

	if got := len(pool.adds); got != 3 {
		t.Fatalf("expected 3 pool adds (ping, release, end trip), got %d: %v", got, pool.adds)
	}
	if got := len(pool.removes); got != 3 {
		t.Fatalf("expected 3 pool removes (2 reserves, offline), got %d: %v", got, pool.removes)
	}
}

func TestStaleSweepRemovesFromPool(t *testing.T) {
	pool := &recordingPool{}
	r := NewRegistry()
	r.BindPool(pool)

	r.ApplyPing(ping("d1", 0, 0, time.Now().Add(-time.Minute)))
	r.ExpireStale(time.Now())

	if len(pool.removes) != 1 || pool.removes[0] != "d1" {
		t.Fatalf("swept driver must leave the pool, removes=%v", pool.removes)
	}
}

func TestExpireStaleSkipsEngagedDrivers(t *testing.T) {
	r := NewRegistry()
	old := time.Now().Add(-time.Minute)
	r.ApplyPing(ping("idle", 0, 0, old))
	r.ApplyPing(ping("busy", 0, 0, old))
	r.Reserve("busy", "offer-1")

	evicted := r.ExpireStale(time.Now().Add(-30 * time.Second))
	if len(evicted) != 1 || evicted[0].ID != "idle" {
		t.Fatalf("expected only the idle driver evicted, got %v", evicted)
	}
	d, _ := r.Get("idle")
	if d.Status != models.DriverOffline {
		t.Fatalf("expected offline, got %s", d.Status)
	}
	d, _ = r.Get("busy")
	if d.Status != models.DriverReserved {
		t.Fatalf("reserved driver must not be evicted, got %s", d.Status)
	}
}
