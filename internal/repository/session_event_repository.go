package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

// SessionEventRepository appends escrow audit records.
type SessionEventRepository struct {
	db *sqlx.DB
}

// NewSessionEventRepository constructs a SessionEventRepository.
func NewSessionEventRepository(db *sqlx.DB) *SessionEventRepository {
	return &SessionEventRepository{db: db}
}

// Append stores an event.
func (r *SessionEventRepository) Append(ctx context.Context, event *models.SessionEvent) error {
	query := `INSERT INTO session_events (id, session_id, type, actor, payload, created_at)
        VALUES (:id, :session_id, :type, :actor, :payload, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append session event: %w", err)
	}
	return nil
}

// ListBySession returns a session's events oldest first.
func (r *SessionEventRepository) ListBySession(ctx context.Context, sessionID string) ([]models.SessionEvent, error) {
	query := `SELECT id, session_id, type, actor, payload, created_at FROM session_events WHERE session_id = $1 ORDER BY created_at ASC`
	var events []models.SessionEvent
	if err := r.db.SelectContext(ctx, &events, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	return events, nil
}
