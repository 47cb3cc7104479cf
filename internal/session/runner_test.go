package session_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/session"
	"github.com/victornm/coursequiz/internal/session/sessiontest"
)

func TestRunner_ExpiresAfterFullHour(t *testing.T) {
	ticker := sessiontest.NewManualTicker()

	var (
		calls atomic.Int32
		got   session.Snapshot
		mu    sync.Mutex
	)
	r, err := session.Start(session.RunnerConfig{
		Questions:     domain.QuestionsPerQuiz,
		NewTickerFunc: ticker.Func(),
		OnExpire: func(s session.Snapshot) {
			calls.Add(1)
			mu.Lock()
			got = s
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	n := ticker.Tick(3599, r.Done())
	require.Equal(t, 3599, n)
	require.Eventually(t, func() bool { return r.Snapshot().Remaining == time.Second }, time.Second, time.Millisecond)
	assert.Zero(t, calls.Load(), "should not expire before the last second")
	assert.True(t, r.Snapshot().Warning)

	ticker.Tick(1, r.Done())
	<-r.Done()

	assert.EqualValues(t, 1, calls.Load(), "finalization should fire exactly once")
	mu.Lock()
	assert.Equal(t, domain.PhaseExpired, got.Phase)
	assert.Zero(t, got.Answered)
	mu.Unlock()
	assert.True(t, ticker.Stopped())

	_, err = r.Answer(0, 0)
	assert.Error(t, err, "an expired session should reject answers")
}

func TestRunner_CompletionStopsClock(t *testing.T) {
	ticker := sessiontest.NewManualTicker()

	var expired atomic.Bool
	r, err := session.Start(session.RunnerConfig{
		Questions:     2,
		Duration:      10 * time.Second,
		NewTickerFunc: ticker.Func(),
		OnExpire:      func(session.Snapshot) { expired.Store(true) },
	})
	require.NoError(t, err)

	ticker.Tick(3, r.Done())
	require.Eventually(t, func() bool { return r.Snapshot().Remaining == 7*time.Second }, time.Second, time.Millisecond)

	_, err = r.Answer(0, 1)
	require.NoError(t, err)
	_, finished, err := r.Next()
	require.NoError(t, err)
	require.False(t, finished)

	_, err = r.Answer(1, 2)
	require.NoError(t, err)
	snap, finished, err := r.Next()
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, domain.PhaseCompleted, snap.Phase)
	assert.Equal(t, []int{1, 2}, snap.Answers)
	assert.Equal(t, 7*time.Second, snap.Remaining)

	<-r.Done()
	assert.False(t, expired.Load(), "a completed session should never expire")

	_, _, err = r.Next()
	assert.Error(t, err)
}

func TestRunner_CloseDoesNotFinalize(t *testing.T) {
	ticker := sessiontest.NewManualTicker()

	var expired atomic.Bool
	r, err := session.Start(session.RunnerConfig{
		Questions:     1,
		Duration:      time.Second,
		NewTickerFunc: ticker.Func(),
		OnExpire:      func(session.Snapshot) { expired.Store(true) },
	})
	require.NoError(t, err)

	r.Close()
	r.Close()
	<-r.Done()

	assert.False(t, expired.Load())
	assert.Equal(t, domain.PhaseRunning, r.Snapshot().Phase)
}

func TestStart_NoQuestions(t *testing.T) {
	_, err := session.Start(session.RunnerConfig{Questions: 0})
	assert.Error(t, err)
}
