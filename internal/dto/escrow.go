package dto

import (
	"time"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

// EscrowResult is the outcome of every escrow operation. Message is meant to
// be shown to the user verbatim.
type EscrowResult struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	EscrowAccount   string          `json:"escrow_account,omitempty"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
	Session         *models.Session `json:"session,omitempty"`
}

// CreateEscrowRequest locks a session payment.
type CreateEscrowRequest struct {
	StudentWallet string  `json:"student_wallet" validate:"required"`
	TutorWallet   string  `json:"tutor_wallet" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	SessionID     string  `json:"session_id" validate:"required"`
}

// BookSessionRequest books a session and locks its payment in escrow.
// StudentID and StudentWallet are taken from the caller's token.
type BookSessionRequest struct {
	StudentID       string    `json:"-"`
	StudentWallet   string    `json:"-" validate:"required"`
	TutorID         string    `json:"tutor_id" validate:"required,max=128"`
	TutorWallet     string    `json:"tutor_wallet" validate:"required,max=128"`
	CourseID        string    `json:"course_id" validate:"omitempty,max=64"`
	ScheduledTime   time.Time `json:"scheduled_time" validate:"required"`
	DurationMinutes int       `json:"duration" validate:"required,min=15,max=480"`
	Amount          float64   `json:"amount" validate:"gt=0,lte=100000"`
}

// ConfirmSessionRequest records one party's confirmation.
type ConfirmSessionRequest struct {
	SessionID       string             `json:"-" validate:"required"`
	ConfirmerWallet string             `json:"-" validate:"required"`
	Role            models.ConfirmRole `json:"role" validate:"required,oneof=student tutor"`
}

// ReportIssueRequest opens a dispute.
type ReportIssueRequest struct {
	SessionID      string `json:"-" validate:"required"`
	ReporterWallet string `json:"-" validate:"required"`
	Reason         string `json:"reason" validate:"required,min=3,max=1000"`
}

// ReleaseEscrowRequest is the operator override payload.
type ReleaseEscrowRequest struct {
	Reason models.ReleaseReason `json:"reason" validate:"omitempty,oneof=both_confirmed deadline_reached admin_override"`
}

// AutoReleaseResult summarises one sweep.
type AutoReleaseResult struct {
	Processed  int      `json:"processed"`
	SessionIDs []string `json:"session_ids"`
	Failed     []string `json:"failed,omitempty"`
}

// SessionListQuery binds list filters from the query string.
type SessionListQuery struct {
	TutorID string `form:"tutor_id"`
	Status  string `form:"status"`
	Limit   int    `form:"limit"`
}

// ReceiptLink is a shareable download link for a settlement receipt.
type ReceiptLink struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
