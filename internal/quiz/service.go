// Package quiz runs quiz attempts end to end: the attempt gate opens the attempt, the question
// source provides its questions, a session clock bounds it and the recorder scores it.
package quiz

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/victornm/coursequiz/internal/attempt"
	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/errors"
	"github.com/victornm/coursequiz/internal/event"
	"github.com/victornm/coursequiz/internal/score"
	"github.com/victornm/coursequiz/internal/session"
	"github.com/victornm/coursequiz/internal/telemetry"
)

const (
	defaultRecordTimeout = 30 * time.Second
	defaultRetention     = 15 * time.Minute
)

type Config struct {
	Questions QuestionSource
	Gate      AttemptGate
	Recorder  ResultRecorder
	EventBus  *event.Bus

	// Duration of a session, defaults to domain.SessionDuration.
	Duration      time.Duration
	NewTickerFunc func(time.Duration) session.Ticker
	// RecordTimeout bounds the recording of an expired attempt, which has no caller context.
	RecordTimeout time.Duration
	// Retention keeps finished sessions readable, with their summary, for a while.
	Retention time.Duration
	Now       func() time.Time
}

type Service struct {
	questions QuestionSource
	gate      AttemptGate
	recorder  ResultRecorder
	eb        *event.Bus

	duration      time.Duration
	newTicker     func(time.Duration) session.Ticker
	recordTimeout time.Duration
	retention     time.Duration
	now           func() time.Time

	mu       sync.Mutex
	closed   bool
	sessions map[string]*live
	courses  map[courseKey]*live
	starting map[courseKey]struct{}
}

type courseKey struct {
	learner string
	course  string
}

// live is a session held by this process. attempt and questions never change once the
// session is registered.
type live struct {
	attempt    domain.Attempt
	questions  []domain.Question
	runner     *session.Runner
	onComplete func(scorePercent int, passed bool)

	mu      sync.Mutex
	outcome *domain.Outcome
	failed  bool
}

func NewService(c Config) *Service {
	recordTimeout := c.RecordTimeout
	if recordTimeout <= 0 {
		recordTimeout = defaultRecordTimeout
	}

	retention := c.Retention
	if retention <= 0 {
		retention = defaultRetention
	}

	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		questions:     c.Questions,
		gate:          c.Gate,
		recorder:      c.Recorder,
		eb:            c.EventBus,
		duration:      c.Duration,
		newTicker:     c.NewTickerFunc,
		recordTimeout: recordTimeout,
		retention:     retention,
		now:           now,
		sessions:      make(map[string]*live),
		courses:       make(map[courseKey]*live),
		starting:      make(map[courseKey]struct{}),
	}
}

// Eligibility reports whether the learner may start another attempt of the course.
func (s *Service) Eligibility(ctx context.Context, learnerID, courseID string) (*domain.Eligibility, error) {
	return s.gate.Check(ctx, attempt.CheckRequest{LearnerID: learnerID, CourseID: courseID})
}

type StartRequest struct {
	LearnerID string
	CourseID  string
	ModuleID  string
	// OnComplete is called once, after the attempt has been recorded.
	OnComplete func(scorePercent int, passed bool)
}

// Start opens an attempt and starts its clock. A learner has at most one running session per course.
func (s *Service) Start(ctx context.Context, req StartRequest) (*View, error) {
	if req.LearnerID == "" || req.CourseID == "" || req.ModuleID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("learner, course and module are required"))
	}

	key := courseKey{learner: req.LearnerID, course: req.CourseID}
	if err := s.reserve(key); err != nil {
		return nil, err
	}
	defer s.release(key)

	a, err := s.gate.Begin(ctx, attempt.BeginRequest{
		LearnerID: req.LearnerID,
		CourseID:  req.CourseID,
		ModuleID:  req.ModuleID,
	})
	if err != nil {
		return nil, err
	}

	qs := s.questions.Load(ctx, req.ModuleID)

	l := &live{
		attempt:    *a,
		questions:  qs,
		onComplete: req.OnComplete,
	}

	r, err := session.Start(session.RunnerConfig{
		Questions:     len(qs),
		Duration:      s.duration,
		NewTickerFunc: s.newTicker,
		OnExpire: func(snap session.Snapshot) {
			s.expire(l, snap)
		},
	})
	if err != nil {
		return nil, err
	}
	l.runner = r

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		r.Close()
		return nil, errShuttingDown()
	}
	s.sessions[a.AttemptID] = l
	s.courses[key] = l
	s.mu.Unlock()

	telemetry.LiveSessions.Inc()
	go func() {
		<-r.Done()
		telemetry.LiveSessions.Dec()
	}()

	slog.InfoContext(ctx, "quiz: attempt started",
		"attempt", a.AttemptID,
		"learner", a.LearnerID,
		"course", a.CourseID,
		"module", a.ModuleID,
		"number", a.Number,
	)
	s.eb.Publish(ctx, domain.EventAttemptStarted{Attempt: *a})

	return l.view(r.Snapshot()), nil
}

func (s *Service) reserve(key courseKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errShuttingDown()
	}
	if _, ok := s.starting[key]; ok {
		return errors.New(errors.CodeAborted, errors.WithMessagef("an attempt of course %s is already being started", key.course))
	}
	if l, ok := s.courses[key]; ok && !l.runner.Snapshot().Phase.Terminal() {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("attempt %s of course %s is still running", l.attempt.AttemptID, key.course))
	}

	s.starting[key] = struct{}{}
	return nil
}

func (s *Service) release(key courseKey) {
	s.mu.Lock()
	delete(s.starting, key)
	s.mu.Unlock()
}

// SessionRequest addresses a session of a learner.
type SessionRequest struct {
	LearnerID string
	AttemptID string
}

func (s *Service) Get(_ context.Context, req SessionRequest) (*View, error) {
	l, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	return l.view(l.runner.Snapshot()), nil
}

type AnswerRequest struct {
	LearnerID string
	AttemptID string
	Question  int
	Option    int
}

// Answer selects an option for a question, replacing any earlier selection.
func (s *Service) Answer(_ context.Context, req AnswerRequest) (*View, error) {
	l, err := s.lookup(SessionRequest{LearnerID: req.LearnerID, AttemptID: req.AttemptID})
	if err != nil {
		return nil, err
	}

	snap, err := l.runner.Answer(req.Question, req.Option)
	if err != nil {
		return nil, err
	}

	return l.view(snap), nil
}

// Next moves to the following question. On the last question it completes the attempt and
// records it, the returned view then carries the summary. When recording a finished attempt
// failed before, Next records it again.
func (s *Service) Next(ctx context.Context, req SessionRequest) (*View, error) {
	l, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	snap, finished, err := l.runner.Next()
	if err != nil {
		snap = l.runner.Snapshot()
		if !snap.Phase.Terminal() || !l.pending() {
			return nil, err
		}
		finished = true
	}

	if finished {
		if err := s.finalize(ctx, l, snap); err != nil {
			return nil, err
		}
	}

	return l.view(snap), nil
}

func (s *Service) Previous(_ context.Context, req SessionRequest) (*View, error) {
	l, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	snap, err := l.runner.Previous()
	if err != nil {
		return nil, err
	}

	return l.view(snap), nil
}

// Shutdown stops the clocks of all sessions and waits for running finalizations.
// Stopped sessions are not finalized, their attempts stay counted by the gate.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ls := make([]*live, 0, len(s.sessions))
	for _, l := range s.sessions {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l.runner.Close()
	}

	for _, l := range ls {
		select {
		case <-l.runner.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (s *Service) lookup(req SessionRequest) (*live, error) {
	s.mu.Lock()
	l, ok := s.sessions[req.AttemptID]
	s.mu.Unlock()

	// Sessions of other learners are reported as missing.
	if !ok || l.attempt.LearnerID != req.LearnerID {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("attempt %s not found", req.AttemptID))
	}

	return l, nil
}

// expire finalizes a session whose clock ran out. It runs on the session clock goroutine.
func (s *Service) expire(l *live, snap session.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), s.recordTimeout)
	defer cancel()

	slog.InfoContext(ctx, "quiz: attempt expired",
		"attempt", l.attempt.AttemptID,
		"learner", l.attempt.LearnerID,
		"answered", snap.Answered,
	)

	// The failure is logged and published by finalize.
	_ = s.finalize(ctx, l, snap)
}

// finalize records a terminal session and then notifies the completion callback.
func (s *Service) finalize(ctx context.Context, l *live, snap session.Snapshot) error {
	out, err := s.record(ctx, l, snap)
	if err != nil || out == nil {
		return err
	}

	if l.onComplete != nil {
		l.onComplete(out.Result.ScorePercent, out.Result.Passed)
	}

	return nil
}

// record returns nil without error when the session was recorded already.
func (s *Service) record(ctx context.Context, l *live, snap session.Snapshot) (*domain.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.outcome != nil {
		return nil, nil
	}

	a := l.attempt
	a.Phase = snap.Phase
	a.Answers = snap.Answers
	a.FinishTime = s.now().UTC().Truncate(time.Millisecond)

	out, err := s.recorder.Record(ctx, score.RecordRequest{
		Attempt:   a,
		Questions: l.questions,
	})
	if err != nil {
		if !l.failed {
			s.retire(l)
		}
		l.failed = true

		slog.ErrorContext(ctx, "quiz: record attempt failed",
			"attempt", a.AttemptID,
			"learner", a.LearnerID,
			"phase", a.Phase,
			"error", err,
		)
		s.eb.Publish(ctx, domain.EventAttemptFailed{Attempt: a, Err: err})
		return nil, err
	}

	if !l.failed {
		s.retire(l)
	}
	l.failed = false
	l.outcome = out
	return out, nil
}

// retire forgets a finished session once the retention period is over.
func (s *Service) retire(l *live) {
	key := courseKey{learner: l.attempt.LearnerID, course: l.attempt.CourseID}

	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.sessions[l.attempt.AttemptID] == l {
			delete(s.sessions, l.attempt.AttemptID)
		}
		if s.courses[key] == l {
			delete(s.courses, key)
		}
	})
}

func (l *live) pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.failed && l.outcome == nil
}

func (l *live) view(snap session.Snapshot) *View {
	l.mu.Lock()
	out := l.outcome
	l.mu.Unlock()

	return newView(l.attempt, l.questions, snap, out)
}

func errShuttingDown() error {
	return errors.New(errors.CodeUnavailable, errors.WithMessagef("quiz service is shutting down"))
}
