package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

const sessionColumns = `id, student_id, student_wallet, tutor_id, tutor_wallet, course_id, scheduled_time, session_end_time,
        duration_minutes, amount, status, escrow_status, escrow_account, payment_released, confirmed_by_student,
        confirmed_by_tutor, student_confirmed_at, tutor_confirmed_at, confirmation_deadline, auto_release_triggered,
        transaction_hash, completed_at, dispute_reason, disputed_by, disputed_at, version, created_at, updated_at`

// SessionRepository persists tutoring sessions in Postgres.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID returns a session or sql.ErrNoRows.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM tutoring_sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// Create inserts a new session at version 1.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.Version == 0 {
		session.Version = 1
	}
	query := `INSERT INTO tutoring_sessions (` + sessionColumns + `) VALUES (:id, :student_id, :student_wallet, :tutor_id,
        :tutor_wallet, :course_id, :scheduled_time, :session_end_time, :duration_minutes, :amount, :status, :escrow_status,
        :escrow_account, :payment_released, :confirmed_by_student, :confirmed_by_tutor, :student_confirmed_at,
        :tutor_confirmed_at, :confirmation_deadline, :auto_release_triggered, :transaction_hash, :completed_at,
        :dispute_reason, :disputed_by, :disputed_at, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", mapUniqueViolation(err))
	}
	return nil
}

// Update writes every mutable column when the stored version still matches
// session.Version. On success session.Version is advanced; otherwise
// ErrStaleVersion is returned and nothing is written.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	query := `UPDATE tutoring_sessions SET status = :status, escrow_status = :escrow_status, escrow_account = :escrow_account,
        payment_released = :payment_released, confirmed_by_student = :confirmed_by_student, confirmed_by_tutor = :confirmed_by_tutor,
        student_confirmed_at = :student_confirmed_at, tutor_confirmed_at = :tutor_confirmed_at,
        confirmation_deadline = :confirmation_deadline, auto_release_triggered = :auto_release_triggered,
        transaction_hash = :transaction_hash, completed_at = :completed_at, dispute_reason = :dispute_reason,
        disputed_by = :disputed_by, disputed_at = :disputed_at, updated_at = :updated_at, version = version + 1
        WHERE id = :id AND version = :version`
	res, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update session %s at version %d: %w", session.ID, session.Version, ErrStaleVersion)
	}
	session.Version++
	return nil
}

// List returns sessions where the wallet is either party, newest first.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Wallet != "" {
		args = append(args, filter.Wallet)
		conditions = append(conditions, fmt.Sprintf("(student_wallet = $%d OR tutor_wallet = $%d)", len(args), len(args)))
	}
	if filter.TutorID != "" {
		args = append(args, filter.TutorID)
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM tutoring_sessions WHERE %s ORDER BY scheduled_time DESC LIMIT %d`,
		sessionColumns, strings.Join(conditions, " AND "), limit)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListAwaitingRelease returns unreleased sessions awaiting confirmation whose
// deadline is strictly before the given instant.
func (r *SessionRepository) ListAwaitingRelease(ctx context.Context, before time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM tutoring_sessions
        WHERE status = $1 AND payment_released = FALSE AND confirmation_deadline IS NOT NULL AND confirmation_deadline < $2
        ORDER BY confirmation_deadline ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, models.SessionStatusAwaitingConfirmation, before); err != nil {
		return nil, fmt.Errorf("list sessions awaiting release: %w", err)
	}
	return sessions, nil
}

// HasReleasedSession reports whether the student has a completed, released
// session with the tutor.
func (r *SessionRepository) HasReleasedSession(ctx context.Context, studentWallet, tutorID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM tutoring_sessions WHERE student_wallet = $1 AND tutor_id = $2
        AND status = $3 AND escrow_status = $4 AND payment_released = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentWallet, tutorID, models.SessionStatusCompleted, models.EscrowStatusReleased); err != nil {
		return false, fmt.Errorf("check released session: %w", err)
	}
	return exists, nil
}
