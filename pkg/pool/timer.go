package pool

import (
	"sync"
	"time"
)

var timerPool = sync.Pool{}

// GetTimer gets a timer from the pool, or a new one, armed to fire after d.
func GetTimer(d time.Duration) *time.Timer {
	t, ok := timerPool.Get().(*time.Timer)
	if !ok {
		return time.NewTimer(d)
	}
	ResetAndDrainTimer(t, d)
	return t
}

// ReleaseTimer stops the timer and returns it to the pool.
// The caller must not use t afterwards.
func ReleaseTimer(t *time.Timer) {
	if t == nil {
		return
	}
	stopAndDrain(t)
	timerPool.Put(t)
}

// ResetAndDrainTimer re-arms t to fire after d. A pending tick that was
// not received is discarded.
func ResetAndDrainTimer(t *time.Timer, d time.Duration) {
	if t == nil {
		return
	}
	stopAndDrain(t)
	t.Reset(d)
}

func stopAndDrain(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
