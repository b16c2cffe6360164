package game

import (
	"sync"
	"time"
)

// Timer is a handle to one scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// timerSlot holds the single pending callback of a room. Arming replaces
// whatever was pending; each arm gets a new generation so a callback that
// already left the runtime's timer heap can tell it has been superseded.
type timerSlot struct {
	mu    sync.Mutex
	gen   uint64
	timer Timer
}

// arm cancels any pending callback and schedules fn, which receives the
// generation it was armed with.
func (t *timerSlot) arm(s Scheduler, d time.Duration, fn func(gen uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	gen := t.gen
	t.timer = s.AfterFunc(d, func() { fn(gen) })
}

// cancel drops the pending callback. Safe to call any number of times.
func (t *timerSlot) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
}

// claim is called by a firing callback. It reports whether gen is still the
// armed generation and, if so, empties the slot.
func (t *timerSlot) claim(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.timer == nil {
		return false
	}
	t.timer = nil
	return true
}

func (t *timerSlot) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *timerSlot) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
