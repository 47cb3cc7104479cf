package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/coursequiz/internal/api"
	"github.com/victornm/coursequiz/internal/attempt"
	"github.com/victornm/coursequiz/internal/database"
	"github.com/victornm/coursequiz/internal/event"
	"github.com/victornm/coursequiz/internal/leaderboard"
	"github.com/victornm/coursequiz/internal/question"
	"github.com/victornm/coursequiz/internal/quiz"
	"github.com/victornm/coursequiz/internal/score"
	"github.com/victornm/coursequiz/internal/telemetry"
)

type RedisConfig struct {
	Addrs  []string `validate:"required,min=1"`
	Pass   string
	Prefix string
}

type Config struct {
	HTTP struct {
		Port int32 `validate:"required,min=1,max=65535"`
	}

	GRPC struct {
		Port int32 `validate:"required,min=1,max=65535"`
	}

	Log struct {
		Level string `validate:"omitempty,oneof=debug info warn error"`
	}

	Database struct {
		Driver       string `validate:"required,oneof=postgres sqlite"`
		DSN          string
		PingAttempts uint
	}

	Redis struct {
		Quiz            RedisConfig
		Leaderboard     RedisConfig
		Pubsub          RedisConfig
		ConnectAttempts uint
	}

	Quiz struct {
		CacheTTL      time.Duration
		LockTTL       time.Duration
		GateFailOpen  bool
		RecordTimeout time.Duration
	}

	CORS struct {
		AllowOrigins []string
	}
}

// DefaultConfig returns the config values used when neither the file nor the environment sets them.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log.Level = "info"
	c.Database.Driver = string(database.DriverSQLite)
	c.Database.PingAttempts = 5
	c.Redis.ConnectAttempts = 5
	c.Quiz.CacheTTL = 10 * time.Minute
	c.Quiz.LockTTL = 10 * time.Second
	c.Quiz.GateFailOpen = true
	c.Quiz.RecordTimeout = 30 * time.Second
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			quiz        redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		db *sql.DB
	}

	service struct {
		question    *question.Service
		attempt     *attempt.Service
		score       *score.Service
		quiz        *quiz.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initDatabase(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	var err error
	s.infra.redis.quiz, err = ConnectRedis(s.c.Redis.Quiz, s.c.Redis.ConnectAttempts)
	if err != nil {
		return fmt.Errorf("quiz: %w", err)
	}

	s.infra.redis.leaderboard, err = ConnectRedis(s.c.Redis.Leaderboard, s.c.Redis.ConnectAttempts)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = ConnectRedis(s.c.Redis.Pubsub, s.c.Redis.ConnectAttempts)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initDatabase() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s.infra.db, err = database.Open(ctx, database.Config{
		Driver:       s.c.Database.Driver,
		DSN:          s.c.Database.DSN,
		PingAttempts: s.c.Database.PingAttempts,
	})
	return err
}

// ConnectRedis returns an instrumented client once the server answers a ping.
func ConnectRedis(c RedisConfig, attempts uint) (redis.UniversalClient, error) {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    c.Addrs,
		Password: c.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return nil, err
	}

	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			return r.Ping(ctx).Err()
		},
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("redis: ping failed, retrying", "addrs", c.Addrs, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, errors.Join(err, r.Close())
	}

	return r, nil
}

func (s *Server) initService() {
	s.service.question = question.NewService(question.Config{
		DB:       s.infra.db,
		Redis:    s.infra.redis.quiz,
		Prefix:   s.c.Redis.Quiz.Prefix,
		CacheTTL: s.c.Quiz.CacheTTL,
	})

	s.service.attempt = attempt.NewService(attempt.Config{
		DB:       s.infra.db,
		Redis:    s.infra.redis.quiz,
		Prefix:   s.c.Redis.Quiz.Prefix,
		LockTTL:  s.c.Quiz.LockTTL,
		FailOpen: s.c.Quiz.GateFailOpen,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		DB:       s.infra.db,
	})

	s.service.quiz = quiz.NewService(quiz.Config{
		Questions:     s.service.question,
		Gate:          s.service.attempt,
		Recorder:      s.service.score,
		EventBus:      s.eb,
		RecordTimeout: s.c.Quiz.RecordTimeout,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(cors.New(s.corsConfig()))
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	pprof.Register(e, "/debug/pprof")

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Quiz:         s.service.quiz,
		Score:        s.service.score,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, api.HeaderLearnerID)
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}

	if len(s.c.CORS.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = s.c.CORS.AllowOrigins
	}

	return c
}

func (s *Server) Start() error {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc server: listen: %w", err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, "server: gRPC listening", "port", s.c.GRPC.Port)
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, "server: HTTP listening", "port", s.c.HTTP.Port)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// Running sessions are stopped, expiries already in flight are recorded.
	if err := s.service.quiz.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown quiz sessions failed", "error", err)
	}

	s.eb.Stop()

	if err := errors.Join(
		s.infra.redis.quiz.Close(),
		s.infra.redis.leaderboard.Close(),
		s.infra.redis.pubsub.Close(),
		s.infra.db.Close(),
	); err != nil {
		slog.ErrorContext(ctx, "server: close infra failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
