// Package pool recycles timers used on request timeout paths.
package pool

import (
	"sync"
	"time"
)

var timers sync.Pool

// GetTimer returns a timer that fires after d, reusing a pooled timer when
// one is available. Hand the timer back with PutTimer once done with it.
func GetTimer(d time.Duration) *time.Timer {
	v := timers.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t := v.(*time.Timer)
	if t.Reset(d) {
		// The timer was still counting down; a tick may already be buffered.
		drain(t)
	}

	return t
}

// PutTimer stops t and places it back into the pool. The caller must not
// touch t afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Already fired; clear any unread tick so the next GetTimer does not
		// observe a stale one.
		drain(t)
	}
	timers.Put(t)
}

func drain(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
