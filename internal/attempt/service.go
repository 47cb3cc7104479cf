// Package attempt limits learners to domain.MaxAttempts attempts per course and opens new attempts.
package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/coursequiz/internal/database"
	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/errors"
	"github.com/victornm/coursequiz/internal/telemetry"
)

const defaultLockTTL = 10 * time.Second

type Config struct {
	DB *sql.DB
	// Redis serializes Begin of the same learner and course across instances, it may be nil.
	Redis  redis.UniversalClient
	Prefix string
	// LockTTL bounds how long an unreleased lock blocks the learner.
	LockTTL time.Duration
	// FailOpen allows attempts when the attempt history cannot be read.
	FailOpen bool
	Now      func() time.Time
}

type Service struct {
	db       *sql.DB
	redis    redis.UniversalClient
	prefix   string
	lockTTL  time.Duration
	failOpen bool
	now      func() time.Time
}

func NewService(c Config) *Service {
	ttl := c.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		db:       c.DB,
		redis:    c.Redis,
		prefix:   c.Prefix,
		lockTTL:  ttl,
		failOpen: c.FailOpen,
		now:      now,
	}
}

type CheckRequest struct {
	LearnerID string
	CourseID  string
}

// Check reports whether the learner may start another attempt in the course, with the
// attempt history. When the history cannot be read the check fails open if configured so,
// with an empty history.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*domain.Eligibility, error) {
	if req.LearnerID == "" || req.CourseID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("learner and course are required"))
	}

	history, err := s.history(ctx, req.LearnerID, req.CourseID)
	if err != nil {
		if !s.failOpen {
			return nil, fmt.Errorf("attempt: read history: %w", err)
		}

		telemetry.GateFailOpen.Inc()
		slog.ErrorContext(ctx, "attempt: read history failed, allowing attempt",
			"learner", req.LearnerID,
			"course", req.CourseID,
			"error", err,
		)
		history = nil
	}

	used := len(history)
	return &domain.Eligibility{
		LearnerID:  req.LearnerID,
		CourseID:   req.CourseID,
		CanAttempt: used < domain.MaxAttempts,
		Used:       used,
		Remaining:  max(0, domain.MaxAttempts-used),
		History:    history,
	}, nil
}

func (s *Service) history(ctx context.Context, learnerID, courseID string) ([]domain.AttemptSummary, error) {
	const stmt = `
SELECT attempt_id, attempt_number, phase, score_percent, passed, start_time, finish_time
FROM quiz_attempts
WHERE learner_id = $1 AND course_id = $2
ORDER BY attempt_number;`

	rows, err := s.db.QueryContext(ctx, stmt, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.AttemptSummary, 0, domain.MaxAttempts)
	for rows.Next() {
		var (
			a      domain.AttemptSummary
			phase  string
			start  int64
			finish sql.NullInt64
		)
		if err := rows.Scan(&a.AttemptID, &a.Number, &phase, &a.ScorePercent, &a.Passed, &start, &finish); err != nil {
			return nil, err
		}
		a.Phase = domain.Phase(phase)
		a.StartTime = database.Time(start)
		a.FinishTime = database.NullTime(finish)
		history = append(history, a)
	}

	return history, rows.Err()
}

type BeginRequest struct {
	LearnerID string
	CourseID  string
	ModuleID  string
}

// Begin opens a new running attempt when the gate allows it.
func (s *Service) Begin(ctx context.Context, req BeginRequest) (*domain.Attempt, error) {
	if req.LearnerID == "" || req.CourseID == "" || req.ModuleID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("learner, course and module are required"))
	}

	unlock, err := s.lock(ctx, req.LearnerID, req.CourseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	el, err := s.Check(ctx, CheckRequest{LearnerID: req.LearnerID, CourseID: req.CourseID})
	if err != nil {
		return nil, err
	}
	if !el.CanAttempt {
		telemetry.GateDenied.Inc()
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("all %d attempts used for course %s", domain.MaxAttempts, req.CourseID))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("attempt: generate ID: %w", err)
	}

	a := &domain.Attempt{
		AttemptID: id.String(),
		LearnerID: req.LearnerID,
		CourseID:  req.CourseID,
		ModuleID:  req.ModuleID,
		Number:    el.Used + 1,
		Phase:     domain.PhaseRunning,
		Answers:   []int{},
		StartTime: s.now().UTC().Truncate(time.Millisecond),
	}

	if err := s.insert(ctx, a); err != nil {
		return nil, err
	}

	telemetry.AttemptsStarted.Inc()
	return a, nil
}

func (s *Service) insert(ctx context.Context, a *domain.Attempt) error {
	const stmt = `
INSERT INTO quiz_attempts (attempt_id, learner_id, course_id, module_id, attempt_number, phase, answers_json, start_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("attempt: marshal answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, stmt, a.AttemptID, a.LearnerID, a.CourseID, a.ModuleID, a.Number, string(a.Phase), string(answers), database.Millis(a.StartTime))
	if database.IsUniqueViolation(err) {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("attempt %s already exists", a.AttemptID), errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("attempt: insert: %w", err)
	}

	return nil
}

// lock takes the per learner and course lock. Without Redis there is nothing to take.
func (s *Service) lock(ctx context.Context, learnerID, courseID string) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	key := s.lockKey(learnerID, courseID)
	token := uuid.NewString()

	ok, err := s.redis.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("attempt: lock: %w", err)
	}
	if !ok {
		return nil, errors.New(errors.CodeAborted,
			errors.WithMessagef("another attempt is being opened for learner %s in course %s", learnerID, courseID))
	}

	return func() {
		// Only release our own lock, it may have expired and been taken by someone else.
		ctx := context.WithoutCancel(ctx)
		held, err := s.redis.Get(ctx, key).Result()
		if err != nil && !stderrors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "attempt: read lock failed", "key", key, "error", err)
			return
		}
		if held != token {
			return
		}
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			slog.WarnContext(ctx, "attempt: release lock failed", "key", key, "error", err)
		}
	}, nil
}

func (s *Service) lockKey(learnerID, courseID string) string {
	return fmt.Sprintf("%s:gate:%s:%s", s.prefix, learnerID, courseID)
}
