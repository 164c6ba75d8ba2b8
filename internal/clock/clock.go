package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Ticks counts timer interrupts since boot. The embedded mutex plays the role
// of the tick lock: sleepers waiting for a tick count release it while
// suspended.
type Ticks struct {
	sync.Mutex
	n atomic.Int64
}

// Now returns the current tick count.
func (t *Ticks) Now() int64 {
	return t.n.Load()
}

// Advance increments the tick count and returns the new value.
func (t *Ticks) Advance() int64 {
	return t.n.Add(1)
}

// Set overrides the tick count.
func (t *Ticks) Set(v int64) {
	t.n.Store(v)
}
