package models

import (
	"encoding/json"
	"time"
)

// SessionEvent is an append-only audit record of an escrow transition.
type SessionEvent struct {
	ID        string          `db:"id" json:"id"`
	SessionID string          `db:"session_id" json:"session_id"`
	Type      string          `db:"type" json:"type"`
	Actor     string          `db:"actor" json:"actor"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
