package models

import "time"

// SessionStatus is the lifecycle state of a tutoring session.
type SessionStatus string

const (
	SessionStatusScheduled            SessionStatus = "scheduled"
	SessionStatusInProgress           SessionStatus = "in-progress"
	SessionStatusAwaitingConfirmation SessionStatus = "awaiting-confirmation"
	SessionStatusCompleted            SessionStatus = "completed"
	SessionStatusCancelled            SessionStatus = "cancelled"
	SessionStatusDisputed             SessionStatus = "disputed"
)

// Valid reports whether s is a known lifecycle state.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusAwaitingConfirmation,
		SessionStatusCompleted, SessionStatusCancelled, SessionStatusDisputed:
		return true
	}
	return false
}

// Terminal reports whether no further escrow transition may start from s.
// Disputed sessions are terminal until resolved by an operator.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusCancelled, SessionStatusDisputed:
		return true
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusAwaitingConfirmation:
		return false
	}
	return true
}

// EscrowStatus tracks the notional custody of the session payment.
type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusLocked   EscrowStatus = "locked"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// Valid reports whether s is a known escrow state.
func (s EscrowStatus) Valid() bool {
	switch s {
	case EscrowStatusPending, EscrowStatusLocked, EscrowStatusReleased, EscrowStatusRefunded:
		return true
	}
	return false
}

// ConfirmRole identifies which party confirms a session.
type ConfirmRole string

const (
	ConfirmRoleStudent ConfirmRole = "student"
	ConfirmRoleTutor   ConfirmRole = "tutor"
)

// Valid reports whether r is student or tutor.
func (r ConfirmRole) Valid() bool {
	return r == ConfirmRoleStudent || r == ConfirmRoleTutor
}

// ReleaseReason explains why escrowed funds moved to the tutor.
type ReleaseReason string

const (
	ReleaseReasonBothConfirmed   ReleaseReason = "both_confirmed"
	ReleaseReasonDeadlineReached ReleaseReason = "deadline_reached"
	ReleaseReasonAdminOverride   ReleaseReason = "admin_override"
)

// Valid reports whether r is a known release reason.
func (r ReleaseReason) Valid() bool {
	switch r {
	case ReleaseReasonBothConfirmed, ReleaseReasonDeadlineReached, ReleaseReasonAdminOverride:
		return true
	}
	return false
}

// Session models one booked tutoring engagement and its escrow.
type Session struct {
	ID                   string        `db:"id" json:"id"`
	StudentID            string        `db:"student_id" json:"student_id"`
	StudentWallet        string        `db:"student_wallet" json:"student_wallet"`
	TutorID              string        `db:"tutor_id" json:"tutor_id"`
	TutorWallet          string        `db:"tutor_wallet" json:"tutor_wallet"`
	CourseID             string        `db:"course_id" json:"course_id"`
	ScheduledTime        time.Time     `db:"scheduled_time" json:"scheduled_time"`
	SessionEndTime       time.Time     `db:"session_end_time" json:"session_end_time"`
	DurationMinutes      int           `db:"duration_minutes" json:"duration"`
	Amount               float64       `db:"amount" json:"amount"`
	Status               SessionStatus `db:"status" json:"status"`
	EscrowStatus         EscrowStatus  `db:"escrow_status" json:"escrow_status"`
	EscrowAccount        *string       `db:"escrow_account" json:"escrow_account,omitempty"`
	PaymentReleased      bool          `db:"payment_released" json:"payment_released"`
	ConfirmedByStudent   bool          `db:"confirmed_by_student" json:"confirmed_by_student"`
	ConfirmedByTutor     bool          `db:"confirmed_by_tutor" json:"confirmed_by_tutor"`
	StudentConfirmedAt   *time.Time    `db:"student_confirmed_at" json:"student_confirmed_at,omitempty"`
	TutorConfirmedAt     *time.Time    `db:"tutor_confirmed_at" json:"tutor_confirmed_at,omitempty"`
	ConfirmationDeadline *time.Time    `db:"confirmation_deadline" json:"confirmation_deadline,omitempty"`
	AutoReleaseTriggered bool          `db:"auto_release_triggered" json:"auto_release_triggered"`
	TransactionHash      *string       `db:"transaction_hash" json:"transaction_hash,omitempty"`
	CompletedAt          *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	DisputeReason        *string       `db:"dispute_reason" json:"dispute_reason,omitempty"`
	DisputedBy           *string       `db:"disputed_by" json:"disputed_by,omitempty"`
	DisputedAt           *time.Time    `db:"disputed_at" json:"disputed_at,omitempty"`
	Version              int64         `db:"version" json:"version"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy so stores never share pointers with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.EscrowAccount = cloneString(s.EscrowAccount)
	cp.StudentConfirmedAt = cloneTime(s.StudentConfirmedAt)
	cp.TutorConfirmedAt = cloneTime(s.TutorConfirmedAt)
	cp.ConfirmationDeadline = cloneTime(s.ConfirmationDeadline)
	cp.TransactionHash = cloneString(s.TransactionHash)
	cp.CompletedAt = cloneTime(s.CompletedAt)
	cp.DisputeReason = cloneString(s.DisputeReason)
	cp.DisputedBy = cloneString(s.DisputedBy)
	cp.DisputedAt = cloneTime(s.DisputedAt)
	return &cp
}

// ConfirmedBy reports whether the given role has confirmed.
func (s *Session) ConfirmedBy(role ConfirmRole) bool {
	if role == ConfirmRoleStudent {
		return s.ConfirmedByStudent
	}
	return s.ConfirmedByTutor
}

// BothConfirmed reports whether student and tutor have both confirmed.
func (s *Session) BothConfirmed() bool {
	return s.ConfirmedByStudent && s.ConfirmedByTutor
}

// Reviewable reports whether the session unlocks a review of its tutor.
func (s *Session) Reviewable() bool {
	return s.Status == SessionStatusCompleted && s.EscrowStatus == EscrowStatusReleased && s.PaymentReleased
}

// AwaitingAutoRelease reports whether the sweep should release the session at now.
func (s *Session) AwaitingAutoRelease(now time.Time) bool {
	return s.Status == SessionStatusAwaitingConfirmation &&
		!s.PaymentReleased &&
		s.ConfirmationDeadline != nil &&
		now.After(*s.ConfirmationDeadline)
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	Wallet  string
	TutorID string
	Status  SessionStatus
	Limit   int
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
