package api

import (
	"time"

	"github.com/victornm/coursequiz/internal/domain"
)

type (
	Eligibility struct {
		CourseID   string           `json:"course_id"`
		CanAttempt bool             `json:"can_attempt"`
		Used       int              `json:"used"`
		Remaining  int              `json:"remaining"`
		History    []AttemptSummary `json:"history"`
	}

	AttemptSummary struct {
		AttemptID    string       `json:"attempt_id"`
		Number       int          `json:"attempt_number"`
		Phase        domain.Phase `json:"phase"`
		ScorePercent int          `json:"score_percent"`
		Passed       bool         `json:"passed"`
		StartTime    time.Time    `json:"start_time"`
		FinishTime   *time.Time   `json:"finish_time,omitempty"`
	}

	Certificate struct {
		CertificateID     string    `json:"certificate_id"`
		LearnerID         string    `json:"learner_id"`
		CourseID          string    `json:"course_id"`
		VerificationToken string    `json:"verification_token"`
		IssueTime         time.Time `json:"issue_time"`
	}

	Badge struct {
		BadgeType string    `json:"badge_type"`
		AwardTime time.Time `json:"award_time"`
	}

	Leaderboard struct {
		CourseID string             `json:"course_id"`
		Entries  []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		LearnerID string `json:"learner_id"`
		Score     string `json:"score"`
	}
)

func newEligibility(el *domain.Eligibility) Eligibility {
	resp := Eligibility{
		CourseID:   el.CourseID,
		CanAttempt: el.CanAttempt,
		Used:       el.Used,
		Remaining:  el.Remaining,
		History:    make([]AttemptSummary, 0, len(el.History)),
	}

	for _, h := range el.History {
		s := AttemptSummary{
			AttemptID:    h.AttemptID,
			Number:       h.Number,
			Phase:        h.Phase,
			ScorePercent: h.ScorePercent,
			Passed:       h.Passed,
			StartTime:    h.StartTime,
		}
		if !h.FinishTime.IsZero() {
			finish := h.FinishTime
			s.FinishTime = &finish
		}
		resp.History = append(resp.History, s)
	}

	return resp
}

func newCertificate(c domain.Certificate) Certificate {
	return Certificate{
		CertificateID:     c.CertificateID,
		LearnerID:         c.LearnerID,
		CourseID:          c.CourseID,
		VerificationToken: c.VerificationToken,
		IssueTime:         c.IssueTime,
	}
}
