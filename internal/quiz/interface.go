package quiz

import (
	"context"

	"github.com/victornm/coursequiz/internal/attempt"
	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/score"
)

//go:generate mockgen -source=interface.go -destination=../mocks/quiz/mock_interface.go -package=mock_quiz

// QuestionSource provides the question set of a module. It never fails, see question.Service.
type QuestionSource interface {
	Load(ctx context.Context, moduleID string) []domain.Question
}

// AttemptGate decides whether a learner may attempt a course and opens attempts.
type AttemptGate interface {
	Check(ctx context.Context, req attempt.CheckRequest) (*domain.Eligibility, error)
	Begin(ctx context.Context, req attempt.BeginRequest) (*domain.Attempt, error)
}

// ResultRecorder scores and persists finished attempts.
type ResultRecorder interface {
	Record(ctx context.Context, req score.RecordRequest) (*domain.Outcome, error)
}
