// Package transporttest holds helpers for exercising retry loops without real waits.
package transporttest

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RecordingTimer fires immediately and remembers every delay it was asked to wait.
// One RecordingTimer may back many loops; use Factory with transport.WithTimer.
type RecordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func NewRecordingTimer() *RecordingTimer {
	return &RecordingTimer{}
}

// Factory returns a constructor for transport.WithTimer.
func (r *RecordingTimer) Factory() func() backoff.Timer {
	return func() backoff.Timer {
		return &firingTimer{parent: r}
	}
}

// Delays returns the recorded waits in call order.
func (r *RecordingTimer) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

func (r *RecordingTimer) record(d time.Duration) {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
}

type firingTimer struct {
	parent *RecordingTimer
	c      chan time.Time
}

func (t *firingTimer) Start(d time.Duration) {
	t.parent.record(d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *firingTimer) Stop() {}

func (t *firingTimer) C() <-chan time.Time {
	return t.c
}
