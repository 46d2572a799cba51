package memory

import (
	"sync"
	"time"

	"photocontest/contexts/community-experience/photo-contest/ports"
)

// Clock is a settable clock for deterministic runs.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Timers hands out timers that only fire when told to.
type Timers struct {
	mu     sync.Mutex
	timers []*Timer
}

type Timer struct {
	mu      sync.Mutex
	Delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func NewTimers() *Timers {
	return &Timers{}
}

func (t *Timers) AfterFunc(d time.Duration, fn func()) ports.Timer {
	timer := &Timer{Delay: d, fn: fn}
	t.mu.Lock()
	t.timers = append(t.timers, timer)
	t.mu.Unlock()
	return timer
}

// Pending returns timers that were neither stopped nor fired.
func (t *Timers) Pending() []*Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	var items []*Timer
	for _, timer := range t.timers {
		if timer.Active() {
			items = append(items, timer)
		}
	}
	return items
}

// All returns every timer ever created, in creation order.
func (t *Timers) All() []*Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Timer(nil), t.timers...)
}

// FireAll runs every pending timer synchronously and returns how many ran.
func (t *Timers) FireAll() int {
	fired := 0
	for _, timer := range t.Pending() {
		if timer.Fire() {
			fired++
		}
	}
	return fired
}

func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

// Fire runs the callback as the runtime would on expiry.
func (t *Timer) Fire() bool {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	fn := t.fn
	t.mu.Unlock()
	fn()
	return true
}

// FireStale runs the callback even if the timer was stopped, the way a
// runtime timer can race a Stop call.
func (t *Timer) FireStale() {
	t.mu.Lock()
	t.fired = true
	fn := t.fn
	t.mu.Unlock()
	fn()
}
