// Package sessiontest provides a manually driven clock for session tests.
package sessiontest

import (
	"sync"
	"time"

	"github.com/victornm/coursequiz/internal/session"
)

// ManualTicker is a session.Ticker that only ticks when told to.
type ManualTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{c: make(chan time.Time)}
}

// Func returns a session.RunnerConfig.NewTickerFunc handing out t.
func (t *ManualTicker) Func() func(time.Duration) session.Ticker {
	return func(time.Duration) session.Ticker { return t }
}

func (t *ManualTicker) C() <-chan time.Time { return t.c }

func (t *ManualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *ManualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Tick delivers n ticks, each one blocking until the runner has received it.
// It gives up early when done is closed.
func (t *ManualTicker) Tick(n int, done <-chan struct{}) int {
	for i := 0; i < n; i++ {
		select {
		case t.c <- time.Now():
		case <-done:
			return i
		}
	}
	return n
}
