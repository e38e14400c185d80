// Package schedule provides a deadline scheduler: callbacks registered
// against absolute times, drained by one run loop. Waiting for thousands of
// offer expiries costs one goroutine total instead of one each.
package schedule

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Timer is a handle to a scheduled callback.
type Timer struct {
	at        time.Time
	fn        func()
	index     int // heap index, -1 once popped or cancelled
	cancelled bool
}

type Scheduler struct {
	mu      sync.Mutex
	timers  timerHeap
	wake    chan struct{}
	running bool
}

func New() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

// At registers fn to run at t. Callbacks fire on their own goroutine so a
// slow one cannot delay the rest of the wheel.
func (s *Scheduler) At(t time.Time, fn func()) *Timer {
	tm := &Timer{at: t, fn: fn}
	s.mu.Lock()
	heap.Push(&s.timers, tm)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return tm
}

// Cancel removes the timer if it has not fired. Reports whether the callback
// is guaranteed not to run.
func (s *Scheduler) Cancel(t *Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.cancelled || t.index < 0 {
		return t.cancelled
	}
	t.cancelled = true
	heap.Remove(&s.timers, t.index)
	return true
}

// Run drains due timers until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		var wait time.Duration = time.Hour
		now := time.Now()
		for len(s.timers) > 0 {
			next := s.timers[0]
			if next.at.After(now) {
				wait = next.at.Sub(now)
				break
			}
			heap.Pop(&s.timers)
			go next.fn()
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) { t := x.(*Timer); t.index = len(*h); *h = append(*h, t) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
