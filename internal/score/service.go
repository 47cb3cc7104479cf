package score

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/coursequiz/internal/database"
	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/errors"
	"github.com/victornm/coursequiz/internal/event"
	"github.com/victornm/coursequiz/internal/telemetry"
)

type Config struct {
	EventBus *event.Bus
	DB       *sql.DB
	Now      func() time.Time
}

type Service struct {
	eb  *event.Bus
	db  *sql.DB
	now func() time.Time
}

func NewService(c Config) *Service {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		eb:  c.EventBus,
		db:  c.DB,
		now: now,
	}
}

type RecordRequest struct {
	// Attempt must be in a terminal phase. Answers are aligned with Questions.
	Attempt   domain.Attempt
	Questions []domain.Question
}

// Record scores a finalized attempt and persists its progress, attempt record, and on a pass
// the certificate and badges, all in one transaction. On success attempt.finalized is published.
// Recording the same attempt twice fails with CodeAlreadyExists.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*domain.Outcome, error) {
	a := req.Attempt
	if !a.Phase.Terminal() {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("attempt %s is %s, only finished attempts can be recorded", a.AttemptID, a.Phase))
	}

	res := Compute(req.Questions, a.Answers)
	a.Result = &res
	if a.FinishTime.IsZero() {
		a.FinishTime = s.now()
	}

	out := &domain.Outcome{
		Attempt:           a,
		Result:            res,
		RemainingAttempts: max(0, domain.MaxAttempts-a.Number),
	}

	if err := s.persist(ctx, out); err != nil {
		return nil, fmt.Errorf("score: record attempt %s: %w", a.AttemptID, err)
	}

	telemetry.AttemptsFinalized.WithLabelValues(string(a.Phase), outcomeLabel(res.Passed)).Inc()
	telemetry.AttemptScore.Observe(float64(res.ScorePercent))
	slog.InfoContext(ctx, "score: attempt recorded",
		"attempt", a.AttemptID,
		"learner", a.LearnerID,
		"course", a.CourseID,
		"phase", a.Phase,
		"score", res.ScorePercent,
		"passed", res.Passed,
	)

	s.eb.Publish(ctx, domain.EventAttemptFinalized{Outcome: *out})
	return out, nil
}

func (s *Service) persist(ctx context.Context, out *domain.Outcome) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback())
		}
	}()

	a, res := out.Attempt, out.Result

	if err = upsertEnrollment(ctx, tx, a, res); err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}

	if err = finalizeAttempt(ctx, tx, a, res); err != nil {
		return err
	}

	if res.Passed {
		out.Certificate, err = s.issueCertificate(ctx, tx, a)
		if err != nil {
			return fmt.Errorf("issue certificate: %w", err)
		}

		out.Badges, err = awardBadges(ctx, tx, a)
		if err != nil {
			return fmt.Errorf("award badges: %w", err)
		}
	}

	return tx.Commit()
}

func upsertEnrollment(ctx context.Context, tx *sql.Tx, a domain.Attempt, res domain.Result) error {
	const stmt = `
INSERT INTO enrollments (learner_id, course_id, progress, completed_at, update_time)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (learner_id, course_id) DO UPDATE SET
	progress = EXCLUDED.progress,
	completed_at = COALESCE(enrollments.completed_at, EXCLUDED.completed_at),
	update_time = EXCLUDED.update_time;`

	var completedAt sql.NullInt64
	if res.Passed {
		completedAt = database.NullMillis(a.FinishTime)
	}

	_, err := tx.ExecContext(ctx, stmt, a.LearnerID, a.CourseID, res.ScorePercent, completedAt, database.Millis(a.FinishTime))
	return err
}

func finalizeAttempt(ctx context.Context, tx *sql.Tx, a domain.Attempt, res domain.Result) error {
	const stmt = `
INSERT INTO quiz_attempts (
	attempt_id, learner_id, course_id, module_id, attempt_number, phase, answers_json,
	correct_count, score_percent, total_marks, passed, start_time, finish_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (attempt_id) DO UPDATE SET
	phase = EXCLUDED.phase,
	answers_json = EXCLUDED.answers_json,
	correct_count = EXCLUDED.correct_count,
	score_percent = EXCLUDED.score_percent,
	total_marks = EXCLUDED.total_marks,
	passed = EXCLUDED.passed,
	finish_time = EXCLUDED.finish_time
WHERE quiz_attempts.phase NOT IN ('completed', 'expired');`

	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	r, err := tx.ExecContext(ctx, stmt,
		a.AttemptID, a.LearnerID, a.CourseID, a.ModuleID, a.Number, string(a.Phase), string(answers),
		res.Correct, res.ScorePercent, res.TotalMarks, res.Passed,
		database.Millis(a.StartTime), database.Millis(a.FinishTime),
	)
	if err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}

	n, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize attempt: rows affected: %w", err)
	}
	if n == 0 {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("attempt %s is already finalized", a.AttemptID))
	}

	return nil
}

// issueCertificate issues the course certificate of the learner. A learner holds at most one
// certificate per course, an earlier one is returned as is.
func (s *Service) issueCertificate(ctx context.Context, tx *sql.Tx, a domain.Attempt) (*domain.Certificate, error) {
	const insStmt = `
INSERT INTO certificates (certificate_id, learner_id, course_id, verification_token, issue_time)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (learner_id, course_id) DO NOTHING;`

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate certificate ID: %w", err)
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, insStmt, id.String(), a.LearnerID, a.CourseID, token, database.Millis(a.FinishTime))
	if database.IsUniqueViolation(err) {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("verification token collision"),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, err
	}

	const selStmt = `
SELECT certificate_id, learner_id, course_id, verification_token, issue_time
FROM certificates
WHERE learner_id = $1 AND course_id = $2;`

	return scanCertificate(tx.QueryRowContext(ctx, selStmt, a.LearnerID, a.CourseID))
}

func awardBadges(ctx context.Context, tx *sql.Tx, a domain.Attempt) ([]domain.Badge, error) {
	const insStmt = `
INSERT INTO badges (learner_id, badge_type, award_time)
VALUES ($1, $2, $3)
ON CONFLICT (learner_id, badge_type) DO NOTHING;`

	types := []string{domain.BadgeCourseCompletion, domain.BadgeQuizMaster}
	for _, bt := range types {
		if _, err := tx.ExecContext(ctx, insStmt, a.LearnerID, bt, database.Millis(a.FinishTime)); err != nil {
			return nil, fmt.Errorf("badge %s: %w", bt, err)
		}
	}

	const selStmt = `
SELECT learner_id, badge_type, award_time
FROM badges
WHERE learner_id = $1 AND badge_type IN ($2, $3)
ORDER BY badge_type;`

	rows, err := tx.QueryContext(ctx, selStmt, a.LearnerID, types[0], types[1])
	if err != nil {
		return nil, err
	}
	return collectBadges(rows)
}

// VerifyCertificate looks a certificate up by its verification token.
func (s *Service) VerifyCertificate(ctx context.Context, token string) (*domain.Certificate, error) {
	const stmt = `
SELECT certificate_id, learner_id, course_id, verification_token, issue_time
FROM certificates
WHERE verification_token = $1;`

	c, err := scanCertificate(s.db.QueryRowContext(ctx, stmt, token))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("certificate not found: token=%s", token))
	}
	if err != nil {
		return nil, fmt.Errorf("score: verify certificate: %w", err)
	}

	return c, nil
}

func (s *Service) ListCertificates(ctx context.Context, learnerID string) ([]domain.Certificate, error) {
	const stmt = `
SELECT certificate_id, learner_id, course_id, verification_token, issue_time
FROM certificates
WHERE learner_id = $1
ORDER BY issue_time;`

	rows, err := s.db.QueryContext(ctx, stmt, learnerID)
	if err != nil {
		return nil, fmt.Errorf("score: list certificates: %w", err)
	}
	defer rows.Close()

	certs := make([]domain.Certificate, 0)
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("score: list certificates: %w", err)
		}
		certs = append(certs, *c)
	}

	return certs, rows.Err()
}

func (s *Service) ListBadges(ctx context.Context, learnerID string) ([]domain.Badge, error) {
	const stmt = `
SELECT learner_id, badge_type, award_time
FROM badges
WHERE learner_id = $1
ORDER BY award_time, badge_type;`

	rows, err := s.db.QueryContext(ctx, stmt, learnerID)
	if err != nil {
		return nil, fmt.Errorf("score: list badges: %w", err)
	}

	badges, err := collectBadges(rows)
	if err != nil {
		return nil, fmt.Errorf("score: list badges: %w", err)
	}
	return badges, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCertificate(r scanner) (*domain.Certificate, error) {
	var (
		c  domain.Certificate
		ms int64
	)
	if err := r.Scan(&c.CertificateID, &c.LearnerID, &c.CourseID, &c.VerificationToken, &ms); err != nil {
		return nil, err
	}
	c.IssueTime = database.Time(ms)
	return &c, nil
}

func collectBadges(rows *sql.Rows) ([]domain.Badge, error) {
	defer rows.Close()

	badges := make([]domain.Badge, 0)
	for rows.Next() {
		var (
			b  domain.Badge
			ms int64
		)
		if err := rows.Scan(&b.LearnerID, &b.BadgeType, &ms); err != nil {
			return nil, err
		}
		b.AwardTime = database.Time(ms)
		badges = append(badges, b)
	}

	return badges, rows.Err()
}

func newVerificationToken() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return "CERT-" + strings.ToUpper(hex.EncodeToString(b)), nil
}

func outcomeLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
