package session

import (
	"sync"
	"time"

	"github.com/victornm/coursequiz/internal/domain"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type RunnerConfig struct {
	Questions int
	// Duration defaults to domain.SessionDuration.
	Duration      time.Duration
	NewTickerFunc func(d time.Duration) Ticker
	// OnExpire is called once, from the ticking goroutine, when the clock runs out.
	OnExpire func(Snapshot)
}

// Runner owns a running State and its clock. All methods are safe for concurrent use.
// Exactly one caller observes the terminal transition: Next returns finished=true, or
// OnExpire is called, never both.
type Runner struct {
	mu     sync.Mutex
	state  *State
	ticker Ticker

	onExpire func(Snapshot)

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Start starts a session and its clock.
func Start(c RunnerConfig) (*Runner, error) {
	d := c.Duration
	if d == 0 {
		d = domain.SessionDuration
	}

	st := NewState(c.Questions)
	if err := st.Start(d); err != nil {
		return nil, err
	}

	newTicker := c.NewTickerFunc
	if newTicker == nil {
		newTicker = NewTicker
	}

	r := &Runner{
		state:    st,
		ticker:   newTicker(domain.TickInterval),
		onExpire: c.OnExpire,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go r.run()
	return r, nil
}

func (r *Runner) run() {
	defer close(r.done)
	defer r.ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C():
			r.mu.Lock()
			expired := r.state.Tick(domain.TickInterval)
			snap := r.state.Snapshot()
			r.mu.Unlock()

			if expired {
				if r.onExpire != nil {
					r.onExpire(snap)
				}
				return
			}
		}
	}
}

func (r *Runner) Answer(question, option int) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.Answer(question, option); err != nil {
		return Snapshot{}, err
	}
	return r.state.Snapshot(), nil
}

// Next advances the session. When it completes the session the clock is stopped and
// finished is true.
func (r *Runner) Next() (snap Snapshot, finished bool, err error) {
	r.mu.Lock()
	finished, err = r.state.Next()
	if err != nil {
		r.mu.Unlock()
		return Snapshot{}, false, err
	}
	snap = r.state.Snapshot()
	r.mu.Unlock()

	if finished {
		r.Close()
	}
	return snap, finished, nil
}

func (r *Runner) Previous() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.Previous(); err != nil {
		return Snapshot{}, err
	}
	return r.state.Snapshot(), nil
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.Snapshot()
}

// Close stops the clock without finalizing the session. It does not wait, see Done.
func (r *Runner) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done is closed once the clock goroutine has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

type timeTicker struct {
	t *time.Ticker
}

// NewTicker returns a Ticker backed by time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }
