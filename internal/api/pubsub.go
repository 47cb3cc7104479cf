package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/quiz"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	AttemptFinalized struct {
		AttemptID         string       `json:"attempt_id"`
		CourseID          string       `json:"course_id"`
		Phase             domain.Phase `json:"phase"`
		ScorePercent      int          `json:"score_percent"`
		Passed            bool         `json:"passed"`
		RemainingAttempts int          `json:"remaining_attempts"`
		CertificateToken  string       `json:"certificate_token,omitempty"`
		Message           string       `json:"message"`
	}

	AttemptFailed struct {
		AttemptID string `json:"attempt_id"`
		CourseID  string `json:"course_id"`
		Message   string `json:"message"`
	}
)

// PublishAttemptFinalized tells the learner how the attempt went.
func (a *API) PublishAttemptFinalized(ctx context.Context, e domain.EventAttemptFinalized) error {
	o := e.Outcome

	data := AttemptFinalized{
		AttemptID:         o.Attempt.AttemptID,
		CourseID:          o.Attempt.CourseID,
		Phase:             o.Attempt.Phase,
		ScorePercent:      o.Result.ScorePercent,
		Passed:            o.Result.Passed,
		RemainingAttempts: o.RemainingAttempts,
		Message:           quiz.OutcomeMessage(o),
	}
	if o.Certificate != nil {
		data.CertificateToken = o.Certificate.VerificationToken
	}

	return a.publishNotification(ctx, o.Attempt.LearnerID, e.Name(), data)
}

// PublishAttemptFailed tells the learner that the attempt could not be submitted. The cause stays in the logs.
func (a *API) PublishAttemptFailed(ctx context.Context, e domain.EventAttemptFailed) error {
	return a.publishNotification(ctx, e.Attempt.LearnerID, e.Name(), AttemptFailed{
		AttemptID: e.Attempt.AttemptID,
		CourseID:  e.Attempt.CourseID,
		Message:   quiz.FailureMessage,
	})
}

// PublishLeaderboardUpdated sends the new leaderboard to every learner on it.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := newLeaderboard(e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, entry.LearnerID, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, learner, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, a.channel(learner), b).Err()
}

func (a *API) channel(learner string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, learner)
}

func newLeaderboard(l domain.Leaderboard) Leaderboard {
	data := Leaderboard{
		CourseID: l.CourseID,
		Entries:  make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			LearnerID: entry.LearnerID,
			Score:     strconv.FormatFloat(entry.Score, 'f', -1, 64),
		})
	}

	return data
}
