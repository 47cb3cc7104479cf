package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/errors"
	"github.com/victornm/coursequiz/internal/event"
	"github.com/victornm/coursequiz/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s := makeService(t)

	for _, e := range []domain.EventAttemptFinalized{
		finalized("c1", "u1", 60),
		finalized("c1", "u2", 90),
		finalized("c1", "u1", 80),
		finalized("c1", "u2", 40),
	} {
		require.NoError(t, s.UpdateLeaderboard(context.Background(), e))
	}

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{
		CourseID: "c1",
	})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		CourseID: "c1",
		Entries: []domain.LeaderboardEntry{
			{LearnerID: "u2", Score: 90},
			{LearnerID: "u1", Score: 80},
		},
	}
	require.Equal(t, want, resp, "only the best score of each learner should be kept")

	top, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{CourseID: "c1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, top.Entries, 1)
}

func TestService_GetLeaderboard_NotFound(t *testing.T) {
	s := makeService(t)

	_, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{CourseID: "nobody"})
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestServer_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventAttemptFinalized
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct event leaderboard.updated after receiving attempt.finalized": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAttemptFinalized{finalized("c1", "u1", 70)},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					CourseID: "c1",
					Entries: []domain.LeaderboardEntry{
						{LearnerID: "u1", Score: 70},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should publish 2 events leaderboard.updated for 2 different courses": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAttemptFinalized{
						finalized("c1", "u1", 70),
						finalized("c2", "u2", 100),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated event")
			},
		},

		"should publish 1 event leaderboard.updated for the same course within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAttemptFinalized{
						finalized("c1", "u1", 70),
						finalized("c1", "u2", 40),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToFinalizedAttempts(t *testing.T) {
	eb := event.NewBus()
	s := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), finalized("c1", "u1", 100))
	eb.Stop()

	l, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{CourseID: "c1"})
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{LearnerID: "u1", Score: 100}}, l.Entries)
}

func finalized(course, learner string, score int) domain.EventAttemptFinalized {
	return domain.EventAttemptFinalized{
		Outcome: domain.Outcome{
			Attempt: domain.Attempt{
				CourseID:   course,
				LearnerID:  learner,
				FinishTime: time.Now(),
			},
			Result: domain.Result{ScorePercent: score, Passed: score >= domain.PassPercent},
		},
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
