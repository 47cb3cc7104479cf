package quiz

import (
	"fmt"
	"time"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/session"
)

// FailureMessage is shown to the learner when a finished attempt could not be recorded.
const FailureMessage = "Failed to submit quiz. Please try again."

// View is what a learner sees of a session. The answer key is only part of it once the
// attempt has been recorded.
type View struct {
	AttemptID        string        `json:"attempt_id"`
	CourseID         string        `json:"course_id"`
	ModuleID         string        `json:"module_id"`
	Number           int           `json:"attempt_number"`
	Phase            domain.Phase  `json:"phase"`
	Current          int           `json:"current"`
	Total            int           `json:"total"`
	Question         *QuestionView `json:"question,omitempty"`
	Answers          []int         `json:"answers"`
	Answered         int           `json:"answered"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Warning          bool          `json:"warning"`
	Summary          *Summary      `json:"summary,omitempty"`
}

type QuestionView struct {
	Index      int      `json:"index"`
	QuestionID string   `json:"question_id"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	Points     int      `json:"points"`
}

// Summary is the result screen of a recorded attempt.
type Summary struct {
	Result            domain.Result    `json:"result"`
	Message           string           `json:"message"`
	Certificate       *CertificateView `json:"certificate,omitempty"`
	Badges            []string         `json:"badges,omitempty"`
	RemainingAttempts int              `json:"remaining_attempts"`
	Review            []ReviewItem     `json:"review"`
}

type CertificateView struct {
	CertificateID     string    `json:"certificate_id"`
	VerificationToken string    `json:"verification_token"`
	IssueTime         time.Time `json:"issue_time"`
}

type ReviewItem struct {
	QuestionID   string   `json:"question_id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	Selected     int      `json:"selected"`
	CorrectIndex int      `json:"correct_index"`
	Correct      bool     `json:"correct"`
	Explanation  string   `json:"explanation"`
}

// OutcomeMessage is the message shown to the learner for a recorded attempt.
func OutcomeMessage(o domain.Outcome) string {
	if o.Result.Passed {
		return fmt.Sprintf("Congratulations! You passed with %d%%. Your certificate is ready.", o.Result.ScorePercent)
	}

	return fmt.Sprintf("You scored %d%%. You need %d%% to pass. %d attempt(s) remaining.",
		o.Result.ScorePercent, domain.PassPercent, o.RemainingAttempts)
}

func newView(a domain.Attempt, qs []domain.Question, snap session.Snapshot, out *domain.Outcome) *View {
	v := &View{
		AttemptID:        a.AttemptID,
		CourseID:         a.CourseID,
		ModuleID:         a.ModuleID,
		Number:           a.Number,
		Phase:            snap.Phase,
		Current:          snap.Current,
		Total:            len(qs),
		Answers:          snap.Answers,
		Answered:         snap.Answered,
		RemainingSeconds: int(snap.Remaining / time.Second),
		Warning:          snap.Warning,
	}

	if snap.Phase == domain.PhaseRunning && snap.Current < len(qs) {
		q := qs[snap.Current]
		v.Question = &QuestionView{
			Index:      snap.Current,
			QuestionID: q.QuestionID,
			Prompt:     q.Prompt,
			Options:    q.Options,
			Points:     q.Points,
		}
	}

	if out != nil {
		v.Summary = newSummary(*out, qs)
	}

	return v
}

func newSummary(o domain.Outcome, qs []domain.Question) *Summary {
	s := &Summary{
		Result:            o.Result,
		Message:           OutcomeMessage(o),
		RemainingAttempts: o.RemainingAttempts,
		Review:            make([]ReviewItem, 0, len(qs)),
	}

	if c := o.Certificate; c != nil {
		s.Certificate = &CertificateView{
			CertificateID:     c.CertificateID,
			VerificationToken: c.VerificationToken,
			IssueTime:         c.IssueTime,
		}
	}

	for _, b := range o.Badges {
		s.Badges = append(s.Badges, b.BadgeType)
	}

	for i, q := range qs {
		selected := domain.Unanswered
		if i < len(o.Attempt.Answers) {
			selected = o.Attempt.Answers[i]
		}

		s.Review = append(s.Review, ReviewItem{
			QuestionID:   q.QuestionID,
			Prompt:       q.Prompt,
			Options:      q.Options,
			Selected:     selected,
			CorrectIndex: q.CorrectIndex,
			Correct:      selected == q.CorrectIndex,
			Explanation:  q.Explanation,
		})
	}

	return s
}
