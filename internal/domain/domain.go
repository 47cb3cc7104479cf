package domain

import (
	"time"
)

const (
	// QuestionsPerQuiz is the fixed size of the question set of a module quiz.
	QuestionsPerQuiz = 50
	// MinStoredQuestions is the least number of stored questions a module needs before they are used.
	MinStoredQuestions = 10
	PointsPerQuestion  = 2
	OptionsPerQuestion = 4

	// MaxAttempts is the number of attempts a learner has per course.
	MaxAttempts = 3
	PassPercent = 70

	SessionDuration  = time.Hour
	WarningThreshold = 5 * time.Minute
	TickInterval     = time.Second
)

// Unanswered marks a question without a selected option.
const Unanswered = -1

// Question is a single multiple choice question. It is immutable once loaded for an attempt.
type Question struct {
	QuestionID   string   `json:"question_id"`
	ModuleID     string   `json:"module_id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	Points       int      `json:"points"`
	// Synthetic is set on generated placeholder questions.
	Synthetic bool `json:"synthetic"`
}

// Phase is the lifecycle phase of an attempt.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
	PhaseExpired    Phase = "expired"
	PhaseCompleted  Phase = "completed"
)

// Terminal reports whether no further mutation is allowed in the phase.
func (p Phase) Terminal() bool {
	return p == PhaseExpired || p == PhaseCompleted
}

// Attempt is one run of a learner through a module quiz of a course.
type Attempt struct {
	AttemptID  string
	LearnerID  string
	CourseID   string
	ModuleID   string
	Number     int
	Phase      Phase
	Answers    []int
	StartTime  time.Time
	FinishTime time.Time
	Result     *Result
}

// Result is the score of a finalized attempt.
type Result struct {
	Correct      int  `json:"correct"`
	Total        int  `json:"total"`
	ScorePercent int  `json:"score_percent"`
	TotalMarks   int  `json:"total_marks"`
	Passed       bool `json:"passed"`
}

// AttemptSummary is a prior attempt as shown in the attempt history.
type AttemptSummary struct {
	AttemptID    string
	Number       int
	Phase        Phase
	ScorePercent int
	Passed       bool
	StartTime    time.Time
	FinishTime   time.Time
}

// Eligibility is the outcome of the attempt gate for a learner and a course.
type Eligibility struct {
	LearnerID  string
	CourseID   string
	CanAttempt bool
	Used       int
	Remaining  int
	History    []AttemptSummary
}

// Certificate is a proof of completion of a course, issued on a passing attempt.
type Certificate struct {
	CertificateID     string
	LearnerID         string
	CourseID          string
	VerificationToken string
	IssueTime         time.Time
}

const (
	BadgeCourseCompletion = "course_completion"
	BadgeQuizMaster       = "quiz_master"
)

type Badge struct {
	LearnerID string
	BadgeType string
	AwardTime time.Time
}

// Outcome is everything produced by finalizing an attempt.
type Outcome struct {
	Attempt           Attempt
	Result            Result
	Certificate       *Certificate
	Badges            []Badge
	RemainingAttempts int
}

// Leaderboard represents the best scores of learners within a course.
// The list is sorted by score in descending order.
type Leaderboard struct {
	CourseID string
	Entries  []LeaderboardEntry
}

type LeaderboardEntry struct {
	LearnerID string
	Score     float64
}
