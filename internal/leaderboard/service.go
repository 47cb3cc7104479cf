package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/errors"
	"github.com/victornm/coursequiz/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameAttemptFinalized, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventAttemptFinalized))
	})

	return s
}

type GetLeaderboardRequest struct {
	CourseID string
	// Limit caps the number of entries, zero means all.
	Limit int64
}

// GetLeaderboard returns the best score of every learner who finished an attempt in the course.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	stop := int64(-1)
	if req.Limit > 0 {
		stop = req.Limit - 1
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.CourseID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: course=%s", req.CourseID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			LearnerID: z.Member.(string),
			Score:     z.Score,
		})
	}

	return &domain.Leaderboard{
		CourseID: req.CourseID,
		Entries:  entries,
	}, nil
}

// UpdateLeaderboard keeps the learner's best score of the course.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventAttemptFinalized) error {
	a := e.Outcome.Attempt

	if err := s.redis.ZAddArgs(ctx, s.getLeaderboardKey(a.CourseID), redis.ZAddArgs{
		GT: true,
		Members: []redis.Z{{
			Score:  float64(e.Outcome.Result.ScorePercent),
			Member: a.LearnerID,
		}},
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, a)
}

// schedulePublishLeaderboard publishes leaderboard changes at most once per interval and course,
// many attempts finishing together would otherwise flood subscribers.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, a domain.Attempt) error {
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(a.CourseID), a.FinishTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, a.CourseID)
}

func (s *Service) publishLeaderboard(ctx context.Context, courseID string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		CourseID: courseID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: course=%s: %w", courseID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardKey(course string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, course)
}

func (s *Service) getLeaderboardTimeKey(course string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, course)
}
