// Package question provides the fixed-size question set of a module quiz.
package question

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

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/errors"
	"github.com/victornm/coursequiz/internal/telemetry"
)

const defaultCacheTTL = 10 * time.Minute

type Config struct {
	DB *sql.DB
	// Redis caches loaded question sets, it may be nil.
	Redis    redis.UniversalClient
	Prefix   string
	CacheTTL time.Duration
}

type Service struct {
	db     *sql.DB
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewService(c Config) *Service {
	ttl := c.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &Service{
		db:     c.DB,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    ttl,
	}
}

// Load returns exactly domain.QuestionsPerQuiz questions for the module. Store failures and
// modules with fewer than domain.MinStoredQuestions stored questions get the synthetic set;
// other modules get their stored questions, topped up with synthetic ones when short.
func (s *Service) Load(ctx context.Context, moduleID string) []domain.Question {
	if qs, ok := s.cached(ctx, moduleID); ok {
		telemetry.QuestionLoads.WithLabelValues("cache").Inc()
		return qs
	}

	stored, err := s.query(ctx, moduleID)
	if err != nil {
		slog.WarnContext(ctx, "question: load stored questions failed, using synthetic questions",
			"module", moduleID,
			"error", err,
		)
		telemetry.QuestionLoads.WithLabelValues("synthetic").Inc()
		return Synthetic(moduleID, 0, domain.QuestionsPerQuiz)
	}

	if len(stored) < domain.MinStoredQuestions {
		slog.InfoContext(ctx, "question: module has too few stored questions, using synthetic questions",
			"module", moduleID,
			"stored", len(stored),
		)
		telemetry.QuestionLoads.WithLabelValues("synthetic").Inc()
		return Synthetic(moduleID, 0, domain.QuestionsPerQuiz)
	}

	qs := complete(moduleID, stored)
	s.cache(ctx, moduleID, qs)
	telemetry.QuestionLoads.WithLabelValues("store").Inc()
	return qs
}

func complete(moduleID string, stored []domain.Question) []domain.Question {
	if len(stored) >= domain.QuestionsPerQuiz {
		return stored[:domain.QuestionsPerQuiz]
	}
	return append(stored, Synthetic(moduleID, len(stored), domain.QuestionsPerQuiz-len(stored))...)
}

func (s *Service) query(ctx context.Context, moduleID string) ([]domain.Question, error) {
	const stmt = `
SELECT question_id, module_id, prompt, options_json, correct_index, explanation, points
FROM quiz_questions
WHERE module_id = $1
ORDER BY position, question_id
LIMIT $2;`

	rows, err := s.db.QueryContext(ctx, stmt, moduleID, domain.QuestionsPerQuiz)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	qs := make([]domain.Question, 0, domain.QuestionsPerQuiz)
	for rows.Next() {
		var (
			q    domain.Question
			opts string
		)
		if err := rows.Scan(&q.QuestionID, &q.ModuleID, &q.Prompt, &opts, &q.CorrectIndex, &q.Explanation, &q.Points); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("question %s: options: %w", q.QuestionID, err)
		}
		if !valid(q) {
			slog.WarnContext(ctx, "question: skipping malformed question", "question", q.QuestionID)
			continue
		}
		q.Points = domain.PointsPerQuestion
		qs = append(qs, q)
	}

	return qs, rows.Err()
}

func valid(q domain.Question) bool {
	return len(q.Options) == domain.OptionsPerQuestion && q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}

func (s *Service) cached(ctx context.Context, moduleID string) ([]domain.Question, bool) {
	if s.redis == nil {
		return nil, false
	}

	b, err := s.redis.Get(ctx, s.cacheKey(moduleID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.WarnContext(ctx, "question: read cache failed", "module", moduleID, "error", err)
		return nil, false
	}

	var qs []domain.Question
	if err := json.Unmarshal(b, &qs); err != nil || len(qs) != domain.QuestionsPerQuiz {
		slog.WarnContext(ctx, "question: discarding malformed cache entry", "module", moduleID, "error", err)
		return nil, false
	}

	return qs, true
}

func (s *Service) cache(ctx context.Context, moduleID string, qs []domain.Question) {
	if s.redis == nil {
		return
	}

	b, err := json.Marshal(qs)
	if err != nil {
		slog.WarnContext(ctx, "question: marshal cache entry failed", "module", moduleID, "error", err)
		return
	}

	if err := s.redis.Set(ctx, s.cacheKey(moduleID), b, s.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "question: write cache failed", "module", moduleID, "error", err)
	}
}

// Invalidate drops the cached question set of a module.
func (s *Service) Invalidate(ctx context.Context, moduleID string) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, s.cacheKey(moduleID)).Err(); err != nil {
		return fmt.Errorf("question: invalidate cache: %w", err)
	}
	return nil
}

func (s *Service) cacheKey(moduleID string) string {
	return fmt.Sprintf("%s:module:%s:questions", s.prefix, moduleID)
}

type SeedRequest struct {
	ModuleID string
	Count    int
}

type SeedResponse struct {
	ModuleID string
	Inserted int
	// Stored is the number of questions stored for the module after seeding.
	Stored int
}

// Seed stores Count generated questions for a module after the ones it already has.
func (s *Service) Seed(ctx context.Context, req SeedRequest) (_ *SeedResponse, err error) {
	if req.ModuleID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("module is required"))
	}
	if req.Count <= 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("count must be positive, got %d", req.Count))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("question: seed: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback())
		}
	}()

	var stored int
	const countStmt = `SELECT COUNT(*) FROM quiz_questions WHERE module_id = $1;`
	if err = tx.QueryRowContext(ctx, countStmt, req.ModuleID).Scan(&stored); err != nil {
		return nil, fmt.Errorf("question: seed: count: %w", err)
	}

	const insStmt = `
INSERT INTO quiz_questions (question_id, module_id, position, prompt, options_json, correct_index, explanation, points)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	for _, q := range Sample(req.ModuleID, stored, req.Count) {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("question: seed: generate ID: %w", err)
		}

		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("question: seed: marshal options: %w", err)
		}

		stored++
		if _, err = tx.ExecContext(ctx, insStmt, id.String(), req.ModuleID, stored, q.Prompt, string(opts), q.CorrectIndex, q.Explanation, q.Points); err != nil {
			return nil, fmt.Errorf("question: seed: insert: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("question: seed: commit: %w", err)
	}

	if err := s.Invalidate(ctx, req.ModuleID); err != nil {
		slog.WarnContext(ctx, "question: seed: stale cache left behind", "module", req.ModuleID, "error", err)
	}

	return &SeedResponse{ModuleID: req.ModuleID, Inserted: req.Count, Stored: stored}, nil
}
