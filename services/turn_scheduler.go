package services

import (
	"sync"
	"time"
)

// TurnScheduler keeps at most one armed timer per session code.
// Arming a code replaces any previously armed timer for it, so a real
// move always cancels the pending timeout before the new turn starts.
// Callbacks run on the timer goroutine and must take the per-session
// lock themselves.
type TurnScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTurnScheduler() *TurnScheduler {
	return &TurnScheduler{timers: make(map[string]*time.Timer)}
}

// Arm schedules fn after d, cancelling any timer already armed for the
// code.
func (ts *TurnScheduler) Arm(code string, d time.Duration, fn func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if t, ok := ts.timers[code]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		ts.mu.Lock()
		// A replacement may have been armed after this timer fired but
		// before its callback ran; only remove our own entry.
		if ts.timers[code] == t {
			delete(ts.timers, code)
		}
		ts.mu.Unlock()
		fn()
	})
	ts.timers[code] = t
}

// Cancel disarms the timer for a code, if any.
func (ts *TurnScheduler) Cancel(code string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if t, ok := ts.timers[code]; ok {
		t.Stop()
		delete(ts.timers, code)
	}
}

// Armed reports whether a timer is currently pending for the code.
func (ts *TurnScheduler) Armed(code string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.timers[code]
	return ok
}
