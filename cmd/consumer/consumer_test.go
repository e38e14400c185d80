package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mrigank923/Voy/internal/geo"
	"github.com/Mrigank923/Voy/internal/models"
)

// fakeMirror implements Mirror for tests
type fakeMirror struct {
	fail  int // number of times to fail before succeeding
	calls int
}

func (f *fakeMirror) Upsert(ctx context.Context, e geo.Entry) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("mirror fail")
	}
	return nil
}

func TestMirrorWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeMirror{fail: 2}
	e := geo.Entry{DriverID: "d1", Loc: models.Coord{Lat: 1, Lon: 2}, UpdatedAt: time.Now()}
	start := time.Now()
	if err := mirrorWithRetry(context.Background(), f, e, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestMirrorWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeMirror{fail: 5}
	e := geo.Entry{DriverID: "d1", Loc: models.Coord{Lat: 1, Lon: 2}, UpdatedAt: time.Now()}
	if err := mirrorWithRetry(context.Background(), f, e, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
