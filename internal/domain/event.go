package domain

const (
	EventNameAttemptStarted     = "attempt.started"
	EventNameAttemptFinalized   = "attempt.finalized"
	EventNameAttemptFailed      = "attempt.failed"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventAttemptStarted struct {
	Attempt Attempt
}

func (EventAttemptStarted) Name() string { return EventNameAttemptStarted }

type EventAttemptFinalized struct {
	Outcome Outcome
}

func (EventAttemptFinalized) Name() string { return EventNameAttemptFinalized }

// EventAttemptFailed is published when the result of an attempt could not be recorded.
type EventAttemptFailed struct {
	Attempt Attempt
	Err     error
}

func (EventAttemptFailed) Name() string { return EventNameAttemptFailed }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
