package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestFiresAtDeadline(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var fired atomic.Int32
	s.At(time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timer never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCancelPreventsCallback(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var fired atomic.Int32
	tm := s.At(time.Now().Add(50*time.Millisecond), func() { fired.Add(1) })
	if !s.Cancel(tm) {
		t.Fatal("cancel of pending timer must succeed")
	}
	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("cancelled timer must not fire")
	}
}

func TestOrdering(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	ch := make(chan int, 2)
	now := time.Now()
	s.At(now.Add(60*time.Millisecond), func() { ch <- 2 })
	s.At(now.Add(20*time.Millisecond), func() { ch <- 1 })

	first := <-ch
	second := <-ch
	if first != 1 || second != 2 {
		t.Fatalf("expected 1 then 2, got %d then %d", first, second)
	}
}
