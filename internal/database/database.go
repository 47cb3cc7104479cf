// Package database opens the SQL store shared by the question source, the attempt gate
// and the recorder. The same schema and statements run on Postgres and SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Config struct {
	Driver string
	DSN    string
	// PingAttempts is the number of connection attempts before giving up. Zero means 1.
	PingAttempts uint
}

// Open opens a DB, waits for it to answer and ensures the schema exists.
func Open(ctx context.Context, c Config) (*sql.DB, error) {
	drvName, dsn := "", c.DSN
	switch Driver(c.Driver) {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:coursequiz.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/coursequiz?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("database: unsupported driver: %q", c.Driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	attempts := c.PingAttempts
	if attempts == 0 {
		attempts = 1
	}

	err = retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.WarnContext(ctx, "database: ping failed, retrying", "driver", c.Driver, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("database: ensure schema: %w", err)
	}
	return nil
}

// Times are stored as unix milliseconds so both dialects share the DDL.
const schema = `
CREATE TABLE IF NOT EXISTS quiz_questions (
  question_id   TEXT PRIMARY KEY,
  module_id     TEXT NOT NULL,
  position      INTEGER NOT NULL DEFAULT 0,
  prompt        TEXT NOT NULL,
  options_json  TEXT NOT NULL,
  correct_index INTEGER NOT NULL,
  explanation   TEXT NOT NULL DEFAULT '',
  points        INTEGER NOT NULL DEFAULT 2
);

CREATE INDEX IF NOT EXISTS quiz_questions_module_idx ON quiz_questions (module_id, position);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  attempt_id     TEXT PRIMARY KEY,
  learner_id     TEXT NOT NULL,
  course_id      TEXT NOT NULL,
  module_id      TEXT NOT NULL,
  attempt_number INTEGER NOT NULL,
  phase          TEXT NOT NULL,
  answers_json   TEXT NOT NULL DEFAULT '[]',
  correct_count  INTEGER NOT NULL DEFAULT 0,
  score_percent  INTEGER NOT NULL DEFAULT 0,
  total_marks    INTEGER NOT NULL DEFAULT 0,
  passed         BOOLEAN NOT NULL DEFAULT FALSE,
  start_time     BIGINT NOT NULL,
  finish_time    BIGINT
);

CREATE INDEX IF NOT EXISTS quiz_attempts_learner_course_idx ON quiz_attempts (learner_id, course_id);

CREATE TABLE IF NOT EXISTS enrollments (
  learner_id   TEXT NOT NULL,
  course_id    TEXT NOT NULL,
  progress     INTEGER NOT NULL DEFAULT 0,
  completed_at BIGINT,
  update_time  BIGINT NOT NULL,
  PRIMARY KEY (learner_id, course_id)
);

CREATE TABLE IF NOT EXISTS certificates (
  certificate_id     TEXT PRIMARY KEY,
  learner_id         TEXT NOT NULL,
  course_id          TEXT NOT NULL,
  verification_token TEXT NOT NULL UNIQUE,
  issue_time         BIGINT NOT NULL,
  UNIQUE (learner_id, course_id)
);

CREATE TABLE IF NOT EXISTS badges (
  learner_id TEXT NOT NULL,
  badge_type TEXT NOT NULL,
  award_time BIGINT NOT NULL,
  PRIMARY KEY (learner_id, badge_type)
);
`

// Millis converts t to the stored representation.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Time converts a stored timestamp back, zero stays zero.
func Time(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// NullTime converts a nullable stored timestamp.
func NullTime(ms sql.NullInt64) time.Time {
	if !ms.Valid {
		return time.Time{}
	}
	return Time(ms.Int64)
}

// NullMillis is the nullable stored form of t, zero becomes NULL.
func NullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
