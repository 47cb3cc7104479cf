// Package session implements the countdown-bounded quiz session: an explicit finite state
// machine (State) and a Runner that drives it with a single one-second ticker.
package session

import (
	"slices"
	"time"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/errors"
)

// State is the state of one quiz session. It is mutated only through Start, Answer, Next,
// Previous and Tick, and is not safe for concurrent use.
//
//	NotStarted -> Running -> Expired | Completed
type State struct {
	phase     domain.Phase
	remaining time.Duration
	answers   []int
	current   int
}

// Snapshot is a copy of a State at one point in time.
type Snapshot struct {
	Phase     domain.Phase
	Remaining time.Duration
	Answers   []int
	Current   int
	Answered  int
	Warning   bool
}

// NewState returns a not started session over n questions.
func NewState(n int) *State {
	answers := make([]int, n)
	for i := range answers {
		answers[i] = domain.Unanswered
	}

	return &State{
		phase:   domain.PhaseNotStarted,
		answers: answers,
	}
}

// Start runs the session for d.
func (s *State) Start(d time.Duration) error {
	if s.phase != domain.PhaseNotStarted {
		return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("session already %s", s.phase))
	}
	if len(s.answers) == 0 {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("session has no questions"))
	}
	if d <= 0 {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("session duration must be positive"))
	}

	s.phase = domain.PhaseRunning
	s.remaining = d
	s.current = 0
	return nil
}

// Answer records option as the selected option of question, replacing an earlier selection.
func (s *State) Answer(question, option int) error {
	if err := s.mustRun(); err != nil {
		return err
	}
	if question < 0 || question >= len(s.answers) {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("question %d out of range [0, %d)", question, len(s.answers)))
	}
	if option < 0 || option >= domain.OptionsPerQuestion {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("option %d out of range [0, %d)", option, domain.OptionsPerQuestion))
	}

	s.answers[question] = option
	return nil
}

// Next advances to the following question. Advancing from the answered last question
// completes the session, in which case finished is true.
func (s *State) Next() (finished bool, err error) {
	if err := s.mustRun(); err != nil {
		return false, err
	}
	if s.answers[s.current] == domain.Unanswered {
		return false, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("question %d is not answered", s.current))
	}

	if s.current == len(s.answers)-1 {
		s.phase = domain.PhaseCompleted
		return true, nil
	}

	s.current++
	return false, nil
}

// Previous moves back to the preceding question.
func (s *State) Previous() error {
	if err := s.mustRun(); err != nil {
		return err
	}
	if s.current == 0 {
		return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("already at the first question"))
	}

	s.current--
	return nil
}

// Tick takes d off the remaining time. It reports true when the tick expired the session.
// Ticks outside the running phase are ignored.
func (s *State) Tick(d time.Duration) (expired bool) {
	if s.phase != domain.PhaseRunning {
		return false
	}

	s.remaining -= d
	if s.remaining > 0 {
		return false
	}

	s.remaining = 0
	s.phase = domain.PhaseExpired
	return true
}

// Warning reports whether the session is running out of time.
func (s *State) Warning() bool {
	return s.phase == domain.PhaseRunning && s.remaining <= domain.WarningThreshold
}

func (s *State) Phase() domain.Phase {
	return s.phase
}

func (s *State) Snapshot() Snapshot {
	answered := 0
	for _, a := range s.answers {
		if a != domain.Unanswered {
			answered++
		}
	}

	return Snapshot{
		Phase:     s.phase,
		Remaining: s.remaining,
		Answers:   slices.Clone(s.answers),
		Current:   s.current,
		Answered:  answered,
		Warning:   s.Warning(),
	}
}

func (s *State) mustRun() error {
	switch s.phase {
	case domain.PhaseRunning:
		return nil
	case domain.PhaseNotStarted:
		return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("session not started"))
	default:
		return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("session %s", s.phase))
	}
}
