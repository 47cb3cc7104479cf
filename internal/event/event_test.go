package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	finalized := domain.EventAttemptFinalized{Outcome: domain.Outcome{Result: domain.Result{ScorePercent: 100, Passed: true}}}
	started := domain.EventAttemptStarted{Attempt: domain.Attempt{AttemptID: "a1"}}
	failed := domain.EventAttemptFailed{Attempt: domain.Attempt{AttemptID: "a2"}}

	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber should only receive the events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{started, finalized},
					subscribers: []subscriber{
						{name: "leaderboard", subscribeTo: []string{domain.EventNameAttemptFinalized}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{finalized}, out.received["leaderboard"])
			},
		},

		"an event should be dispatched to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{finalized},
					subscribers: []subscriber{
						{name: "leaderboard", subscribeTo: []string{domain.EventNameAttemptFinalized}},
						{name: "notifier", subscribeTo: []string{domain.EventNameAttemptFinalized}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{finalized}, out.received["leaderboard"])
				assert.ElementsMatch(t, []event.Event{finalized}, out.received["notifier"])
			},
		},

		"multiple events should be dispatched correctly to multiple subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{started, finalized, failed, finalized},
					subscribers: []subscriber{
						{name: "metrics", subscribeTo: []string{domain.EventNameAttemptStarted}},
						{name: "notifier", subscribeTo: []string{domain.EventNameAttemptFinalized, domain.EventNameAttemptFailed}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{started}, out.received["metrics"])
				assert.ElementsMatch(t, []event.Event{finalized, failed, finalized}, out.received["notifier"])
			},
		},

		"no subscriber should receive nothing": {
			arrange: func() inputs {
				return inputs{published: []event.Event{started}}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.received)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_FailingHandlers(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(1), event.WithTimeout(time.Second))

	var calls atomic.Int32
	b.Subscribe(domain.EventNameAttemptFailed, func(context.Context, event.Event) error {
		calls.Add(1)
		panic("handler bug")
	})
	b.Subscribe(domain.EventNameAttemptFailed, func(context.Context, event.Event) error {
		calls.Add(1)
		return errors.New("redis down")
	})

	b.Publish(context.Background(), domain.EventAttemptFailed{})
	b.Publish(context.Background(), domain.EventAttemptFailed{})
	b.Stop()

	assert.EqualValues(t, 4, calls.Load(), "a failing handler should not stop other handlers")
}

func TestBus_HandlerOutlivesPublisherContext(t *testing.T) {
	b := event.NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	var handlerErr error
	b.Subscribe(domain.EventNameAttemptStarted, func(ctx context.Context, _ event.Event) error {
		time.Sleep(10 * time.Millisecond)
		handlerErr = ctx.Err()
		return nil
	})

	b.Publish(ctx, domain.EventAttemptStarted{})
	cancel()
	b.Stop()

	assert.NoError(t, handlerErr)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
