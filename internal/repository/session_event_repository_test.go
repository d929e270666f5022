package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

func TestSessionEventRepositoryAppendAndList(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewSessionEventRepository(db)

	mock.ExpectExec("INSERT INTO session_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM session_events WHERE session_id = \\$1 ORDER BY created_at ASC").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "type", "actor", "payload", "created_at"}).
			AddRow("e1", "sess-1", "escrow.created", "student-wallet", []byte(`{"amount":25}`), time.Now()))

	err := repo.Append(context.Background(), &models.SessionEvent{
		ID: "e1", SessionID: "sess-1", Type: "escrow.created", Actor: "student-wallet",
		Payload: json.RawMessage(`{"amount":25}`), CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	events, err := repo.ListBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"amount":25}`, string(events[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}
