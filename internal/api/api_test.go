package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/coursequiz/internal/api"
	"github.com/victornm/coursequiz/internal/attempt"
	"github.com/victornm/coursequiz/internal/database/dbtest"
	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/event"
	"github.com/victornm/coursequiz/internal/leaderboard"
	"github.com/victornm/coursequiz/internal/question"
	"github.com/victornm/coursequiz/internal/quiz"
	"github.com/victornm/coursequiz/internal/score"
)

const prefix = "test"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func TestAPI_AttemptFlow(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub := h.redis.Subscribe(ctx, prefix+":user:learner-1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "should subscribe to the learner channel")

	w := h.do(t, http.MethodGet, "/v1/courses/c1/eligibility", "learner-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	el := decode[api.Eligibility](t, w)
	assert.True(t, el.CanAttempt)
	assert.Equal(t, 3, el.Remaining)

	w = h.do(t, http.MethodPost, "/v1/attempts", "learner-1", gin.H{"course_id": "c1", "module_id": "m1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v := decode[quiz.View](t, w)
	assert.Equal(t, domain.QuestionsPerQuiz, v.Total)
	assert.Equal(t, 3600, v.RemainingSeconds)
	require.NotNil(t, v.Question)
	assert.Len(t, v.Question.Options, 4)
	assert.NotContains(t, w.Body.String(), "correct_index", "the answer key should not leak while running")

	for i := 0; i < domain.QuestionsPerQuiz; i++ {
		w = h.do(t, http.MethodPut, fmt.Sprintf("/v1/attempts/%s/answers/%d", v.AttemptID, i), "learner-1", gin.H{"option": 0})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = h.do(t, http.MethodPost, fmt.Sprintf("/v1/attempts/%s/next", v.AttemptID), "learner-1", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	v = decode[quiz.View](t, w)
	assert.Equal(t, domain.PhaseCompleted, v.Phase)
	require.NotNil(t, v.Summary)
	assert.Equal(t, 100, v.Summary.Result.ScorePercent)
	assert.Equal(t, 100, v.Summary.Result.TotalMarks)
	assert.True(t, v.Summary.Result.Passed)
	require.NotNil(t, v.Summary.Certificate)
	assert.ElementsMatch(t, []string{domain.BadgeCourseCompletion, domain.BadgeQuizMaster}, v.Summary.Badges)

	n := receive(t, ctx, sub, domain.EventNameAttemptFinalized)
	var data api.AttemptFinalized
	require.NoError(t, json.Unmarshal(n, &data))
	assert.Equal(t, "Congratulations! You passed with 100%. Your certificate is ready.", data.Message)
	assert.Equal(t, v.Summary.Certificate.VerificationToken, data.CertificateToken)

	w = h.do(t, http.MethodGet, "/v1/certificates/"+v.Summary.Certificate.VerificationToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "learner-1", decode[api.Certificate](t, w).LearnerID)

	w = h.do(t, http.MethodGet, "/v1/learners/me/badges", "learner-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[struct{ Badges []api.Badge }](t, w).Badges, 2)

	w = h.do(t, http.MethodGet, "/v1/learners/me/certificates", "learner-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[struct{ Certificates []api.Certificate }](t, w).Certificates, 1)

	h.eb.Stop()
	w = h.do(t, http.MethodGet, "/v1/courses/c1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []api.LeaderboardEntry{{LearnerID: "learner-1", Score: "100"}}, decode[api.Leaderboard](t, w).Entries)

	w = h.do(t, http.MethodGet, "/v1/courses/c1/eligibility", "learner-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	el = decode[api.Eligibility](t, w)
	assert.Equal(t, 2, el.Remaining)
	require.Len(t, el.History, 1)
	assert.Equal(t, domain.PhaseCompleted, el.History[0].Phase)
	assert.True(t, el.History[0].Passed)
	assert.NotNil(t, el.History[0].FinishTime)
}

func TestAPI_Errors(t *testing.T) {
	type inputs struct {
		method  string
		path    string
		learner string
		body    any
	}

	tests := map[string]struct {
		arrange    func(t *testing.T, h *harness, attemptID string) inputs
		wantStatus int
	}{
		"missing learner should be unauthenticated": {
			arrange: func(*testing.T, *harness, string) inputs {
				return inputs{method: http.MethodGet, path: "/v1/courses/c1/eligibility"}
			},
			wantStatus: http.StatusUnauthorized,
		},

		"another learner's attempt should not be found": {
			arrange: func(_ *testing.T, _ *harness, id string) inputs {
				return inputs{method: http.MethodGet, path: "/v1/attempts/" + id, learner: "learner-2"}
			},
			wantStatus: http.StatusNotFound,
		},

		"non numeric question should be a bad request": {
			arrange: func(_ *testing.T, _ *harness, id string) inputs {
				return inputs{method: http.MethodPut, path: "/v1/attempts/" + id + "/answers/first", learner: "learner-1", body: gin.H{"option": 0}}
			},
			wantStatus: http.StatusBadRequest,
		},

		"missing option should be a bad request": {
			arrange: func(_ *testing.T, _ *harness, id string) inputs {
				return inputs{method: http.MethodPut, path: "/v1/attempts/" + id + "/answers/0", learner: "learner-1", body: gin.H{}}
			},
			wantStatus: http.StatusBadRequest,
		},

		"option out of range should be a bad request": {
			arrange: func(_ *testing.T, _ *harness, id string) inputs {
				return inputs{method: http.MethodPut, path: "/v1/attempts/" + id + "/answers/0", learner: "learner-1", body: gin.H{"option": 4}}
			},
			wantStatus: http.StatusBadRequest,
		},

		"next on an unanswered question should be unprocessable": {
			arrange: func(_ *testing.T, _ *harness, id string) inputs {
				return inputs{method: http.MethodPost, path: "/v1/attempts/" + id + "/next", learner: "learner-1"}
			},
			wantStatus: http.StatusUnprocessableEntity,
		},

		"second running attempt of the course should conflict": {
			arrange: func(*testing.T, *harness, string) inputs {
				return inputs{method: http.MethodPost, path: "/v1/attempts", learner: "learner-1", body: gin.H{"course_id": "c1", "module_id": "m1"}}
			},
			wantStatus: http.StatusConflict,
		},

		"attempt without module should be a bad request": {
			arrange: func(*testing.T, *harness, string) inputs {
				return inputs{method: http.MethodPost, path: "/v1/attempts", learner: "learner-1", body: gin.H{"course_id": "c2"}}
			},
			wantStatus: http.StatusBadRequest,
		},

		"unknown certificate should not be found": {
			arrange: func(*testing.T, *harness, string) inputs {
				return inputs{method: http.MethodGet, path: "/v1/certificates/CERT-0000000000000000"}
			},
			wantStatus: http.StatusNotFound,
		},

		"empty leaderboard should not be found": {
			arrange: func(*testing.T, *harness, string) inputs {
				return inputs{method: http.MethodGet, path: "/v1/courses/c9/leaderboard"}
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			w := h.do(t, http.MethodPost, "/v1/attempts", "learner-1", gin.H{"course_id": "c1", "module_id": "m1"})
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

			in := tt.arrange(t, h, decode[quiz.View](t, w).AttemptID)
			w = h.do(t, in.method, in.path, in.learner, in.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

type harness struct {
	router *gin.Engine
	eb     *event.Bus
	redis  redis.UniversalClient
}

func newHarness(t *testing.T) *harness {
	db := dbtest.New(t)
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	eb := event.NewBus()

	ss := score.NewService(score.Config{EventBus: eb, DB: db})
	qs := quiz.NewService(quiz.Config{
		Questions: question.NewService(question.Config{DB: db, Redis: rc, Prefix: prefix}),
		Gate:      attempt.NewService(attempt.Config{DB: db, Redis: rc, Prefix: prefix, FailOpen: true}),
		Recorder:  ss,
		EventBus:  eb,
	})

	r := gin.New()
	api.New(api.Config{
		Router:       r,
		EventBus:     eb,
		Quiz:         qs,
		Score:        ss,
		Leaderboard:  leaderboard.NewService(leaderboard.Config{EventBus: eb, Redis: rc, Prefix: prefix}),
		Redis:        rc,
		PubsubPrefix: prefix,
	})

	t.Cleanup(func() {
		require.NoError(t, qs.Shutdown(context.Background()))
		eb.Stop()
		rc.Close()
	})

	return &harness{router: r, eb: eb, redis: rc}
}

func (h *harness) do(t *testing.T, method, path, learner string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if learner != "" {
		req.Header.Set(api.HeaderLearnerID, learner)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// receive waits for a notification of the given event and returns its data.
func receive(t *testing.T, ctx context.Context, sub *redis.PubSub, event string) json.RawMessage {
	t.Helper()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err, "should receive %s", event)

		var n struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		if n.Event == event {
			return n.Data
		}
	}
}
