package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/errors"
	"github.com/victornm/coursequiz/internal/event"
	"github.com/victornm/coursequiz/internal/leaderboard"
	"github.com/victornm/coursequiz/internal/quiz"
	"github.com/victornm/coursequiz/internal/score"
)

// HeaderLearnerID identifies the learner of a request. Authenticating it is left to the gateway.
const HeaderLearnerID = "X-Learner-ID"

const keyLearnerID = "learnerID"

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Quiz         *quiz.Service
	Score        *score.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	qs *quiz.Service
	ss *score.Service
	ls *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		qs:     c.Quiz,
		ss:     c.Score,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// HTTP APIs
	v1 := c.Router.Group("/v1")
	v1.GET("/certificates/:token", a.VerifyCertificate)
	v1.GET("/courses/:course/leaderboard", a.GetLeaderboard)

	me := v1.Group("", requireLearner())
	me.GET("/courses/:course/eligibility", a.GetEligibility)
	me.POST("/attempts", a.StartAttempt)
	me.GET("/attempts/:attempt", a.GetAttempt)
	me.PUT("/attempts/:attempt/answers/:question", a.SubmitAnswer)
	me.POST("/attempts/:attempt/next", a.NextQuestion)
	me.POST("/attempts/:attempt/previous", a.PreviousQuestion)
	me.GET("/learners/me/badges", a.ListBadges)
	me.GET("/learners/me/certificates", a.ListCertificates)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameAttemptFinalized, func(ctx context.Context, e event.Event) error {
		return a.PublishAttemptFinalized(ctx, e.(domain.EventAttemptFinalized))
	})
	c.EventBus.Subscribe(domain.EventNameAttemptFailed, func(ctx context.Context, e event.Event) error {
		return a.PublishAttemptFailed(ctx, e.(domain.EventAttemptFailed))
	})
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

func (a *API) GetEligibility(c *gin.Context) {
	el, err := a.qs.Eligibility(c.Request.Context(), learnerID(c), c.Param("course"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newEligibility(el))
}

type StartAttemptRequest struct {
	CourseID string `json:"course_id" binding:"required"`
	ModuleID string `json:"module_id" binding:"required"`
}

func (a *API) StartAttempt(c *gin.Context) {
	var req StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request: %v", err)))
		return
	}

	learner := learnerID(c)
	v, err := a.qs.Start(c.Request.Context(), quiz.StartRequest{
		LearnerID: learner,
		CourseID:  req.CourseID,
		ModuleID:  req.ModuleID,
		OnComplete: func(percent int, passed bool) {
			slog.Info("api: attempt completed",
				"learner", learner,
				"course", req.CourseID,
				"score", percent,
				"passed", passed,
			)
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, v)
}

func (a *API) GetAttempt(c *gin.Context) {
	v, err := a.qs.Get(c.Request.Context(), sessionRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

type SubmitAnswerRequest struct {
	// Option is a pointer so that the first option is not taken for a missing one.
	Option *int `json:"option" binding:"required"`
}

func (a *API) SubmitAnswer(c *gin.Context) {
	q, err := strconv.Atoi(c.Param("question"))
	if err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid question index %q", c.Param("question"))))
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request: %v", err)))
		return
	}

	v, err := a.qs.Answer(c.Request.Context(), quiz.AnswerRequest{
		LearnerID: learnerID(c),
		AttemptID: c.Param("attempt"),
		Question:  q,
		Option:    *req.Option,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) NextQuestion(c *gin.Context) {
	v, err := a.qs.Next(c.Request.Context(), sessionRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) PreviousQuestion(c *gin.Context) {
	v, err := a.qs.Previous(c.Request.Context(), sessionRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) GetLeaderboard(c *gin.Context) {
	var limit int64
	if s := c.Query("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid limit %q", s)))
			return
		}
		limit = n
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		CourseID: c.Param("course"),
		Limit:    limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLeaderboard(*l))
}

func (a *API) VerifyCertificate(c *gin.Context) {
	cert, err := a.ss.VerifyCertificate(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newCertificate(*cert))
}

func (a *API) ListCertificates(c *gin.Context) {
	certs, err := a.ss.ListCertificates(c.Request.Context(), learnerID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]Certificate, 0, len(certs))
	for _, cert := range certs {
		resp = append(resp, newCertificate(cert))
	}

	c.JSON(http.StatusOK, gin.H{"certificates": resp})
}

func (a *API) ListBadges(c *gin.Context) {
	badges, err := a.ss.ListBadges(c.Request.Context(), learnerID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]Badge, 0, len(badges))
	for _, b := range badges {
		resp = append(resp, Badge{BadgeType: b.BadgeType, AwardTime: b.AwardTime})
	}

	c.JSON(http.StatusOK, gin.H{"badges": resp})
}

// requireLearner rejects requests without a learner.
func requireLearner() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderLearnerID))
		if id == "" {
			writeError(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing %s header", HeaderLearnerID)))
			return
		}

		c.Set(keyLearnerID, id)
		c.Next()
	}
}

func learnerID(c *gin.Context) string {
	return c.GetString(keyLearnerID)
}

func sessionRequest(c *gin.Context) quiz.SessionRequest {
	return quiz.SessionRequest{
		LearnerID: learnerID(c),
		AttemptID: c.Param("attempt"),
	}
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}
