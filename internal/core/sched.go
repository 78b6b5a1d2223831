package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/seentics/seentics-go/internal/logging"
)

// Scheduler defers work off the interaction path. OnIdle approximates the
// browser's requestIdleCallback: callbacks run after a short opportunistic
// delay, and the deadline guarantees they always eventually run even under
// sustained load.
type Scheduler struct {
	mu       sync.Mutex
	delay    time.Duration
	deadline time.Duration
	stopped  bool
	timers   []*time.Timer
}

// NewScheduler builds a scheduler with the given opportunistic delay and
// hard deadline.
func NewScheduler(delay, deadline time.Duration) *Scheduler {
	if deadline < delay {
		deadline = delay
	}
	return &Scheduler{delay: delay, deadline: deadline}
}

// OnIdle schedules fn to run once, soon. The function is panic-isolated.
func (s *Scheduler) OnIdle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	var once sync.Once
	run := func() { once.Do(func() { safeCall("idle callback", fn) }) }
	s.timers = append(s.timers,
		time.AfterFunc(s.delay, run),
		// Deadline fallback: if the first timer was somehow starved the
		// callback still runs before the deadline elapses.
		time.AfterFunc(s.deadline, run),
	)
}

// Stop cancels all pending callbacks. Used at teardown so scheduled work
// does not outlive the pipeline.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// Debounce returns a function that defers fn until interval has elapsed
// without further calls (trailing edge).
func Debounce(interval time.Duration, fn func()) func() {
	var mu sync.Mutex
	var timer *time.Timer
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(interval, func() { safeCall("debounced callback", fn) })
	}
}

// Throttle returns a function that runs fn at most once per interval
// (leading edge, intermediate calls dropped).
func Throttle(interval time.Duration, fn func()) func() {
	var mu sync.Mutex
	var last time.Time
	return func() {
		mu.Lock()
		now := time.Now()
		if now.Sub(last) < interval {
			mu.Unlock()
			return
		}
		last = now
		mu.Unlock()
		safeCall("throttled callback", fn)
	}
}

func safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("scheduled work panicked", "site", what, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
