package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	"github.com/noah-isme/badger-tutors-api/internal/repository"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/events"
)

type sessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	ListAwaitingRelease(ctx context.Context, before time.Time) ([]models.Session, error)
}

type sessionEventStore interface {
	Append(ctx context.Context, event *models.SessionEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]models.SessionEvent, error)
}

// EventPublisher hands domain events to the broker pipeline.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, data map[string]interface{}) error
}

// EscrowConfig tunes the escrow state machine.
type EscrowConfig struct {
	ConfirmationWindow time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

const systemActor = "system"

// EscrowService drives the session lifecycle and the escrow held for it.
// Every mutation of a session runs under that session's mutex and is
// persisted with a version check, so the check of PaymentReleased and the
// write that sets it cannot interleave with another release.
type EscrowService struct {
	sessions  sessionStore
	audit     sessionEventStore
	publisher EventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	window    time.Duration
	now       func() time.Time

	locks sync.Map
}

// NewEscrowService constructs an EscrowService. audit, publisher and metrics
// may be nil.
func NewEscrowService(sessions sessionStore, audit sessionEventStore, publisher EventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg EscrowConfig) *EscrowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ConfirmationWindow <= 0 {
		cfg.ConfirmationWindow = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &EscrowService{
		sessions:  sessions,
		audit:     audit,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		window:    cfg.ConfirmationWindow,
		now:       func() time.Time { return cfg.Now().UTC() },
	}
}

// CreateEscrow locks a session payment and returns its escrow reference.
func (s *EscrowService) CreateEscrow(ctx context.Context, req dto.CreateEscrowRequest) (*dto.EscrowResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid escrow payload")
	}
	account := opaqueRef("escrow", req.SessionID, s.now())
	s.metrics.escrowLocked()
	s.logger.Info("escrow locked",
		zap.String("session_id", req.SessionID),
		zap.Float64("amount", req.Amount),
		zap.String("escrow_ref", shortRef(account)))
	return &dto.EscrowResult{
		Success:       true,
		Message:       fmt.Sprintf("Escrow created: $%s locked until session confirmation", formatAmount(req.Amount)),
		EscrowAccount: account,
	}, nil
}

// BookSession persists a new scheduled session with its payment locked.
func (s *EscrowService) BookSession(ctx context.Context, req dto.BookSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if req.StudentWallet == req.TutorWallet {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot book a session with your own wallet")
	}

	now := s.now()
	id := uuid.NewString()
	escrow, err := s.CreateEscrow(ctx, dto.CreateEscrowRequest{
		StudentWallet: req.StudentWallet,
		TutorWallet:   req.TutorWallet,
		Amount:        req.Amount,
		SessionID:     id,
	})
	if err != nil {
		return nil, err
	}

	scheduled := req.ScheduledTime.UTC()
	session := &models.Session{
		ID:              id,
		StudentID:       req.StudentID,
		StudentWallet:   req.StudentWallet,
		TutorID:         req.TutorID,
		TutorWallet:     req.TutorWallet,
		CourseID:        req.CourseID,
		ScheduledTime:   scheduled,
		SessionEndTime:  scheduled.Add(time.Duration(req.DurationMinutes) * time.Minute),
		DurationMinutes: req.DurationMinutes,
		Amount:          req.Amount,
		Status:          models.SessionStatusScheduled,
		EscrowStatus:    models.EscrowStatusLocked,
		EscrowAccount:   &escrow.EscrowAccount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.record(ctx, session, events.TypeEscrowCreated, req.StudentWallet, map[string]interface{}{
		"amount":   session.Amount,
		"tutor_id": session.TutorID,
	})
	return session, nil
}

// ConfirmSession records that one party considers the session complete. The
// second confirmation releases the escrow in the same call.
func (s *EscrowService) ConfirmSession(ctx context.Context, req dto.ConfirmSessionRequest) (*dto.EscrowResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirmation payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be student or tutor")
	}

	unlock := s.lock(req.SessionID)
	defer unlock()

	session, err := s.load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case models.SessionStatusCompleted:
		return nil, appErrors.Clone(appErrors.ErrAlreadyCompleted, "Session already completed")
	case models.SessionStatusDisputed:
		return nil, appErrors.Clone(appErrors.ErrSessionDisputed, "Session is disputed. Escrow is frozen pending review.")
	case models.SessionStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "Session was cancelled")
	case models.SessionStatusScheduled, models.SessionStatusInProgress, models.SessionStatusAwaitingConfirmation:
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "unknown session status")
	}

	if expected := partyWallet(session, req.Role); expected != "" && expected != req.ConfirmerWallet {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("wallet is not the %s of this session", req.Role))
	}

	if session.ConfirmedBy(req.Role) {
		return &dto.EscrowResult{
			Success: true,
			Message: fmt.Sprintf("Session already confirmed by %s. Waiting for other party", req.Role),
			Session: session,
		}, nil
	}

	now := s.now()
	switch req.Role {
	case models.ConfirmRoleStudent:
		session.ConfirmedByStudent = true
		session.StudentConfirmedAt = &now
	case models.ConfirmRoleTutor:
		session.ConfirmedByTutor = true
		session.TutorConfirmedAt = &now
	}
	s.metrics.confirmed(string(req.Role))

	if session.BothConfirmed() {
		return s.release(ctx, session, models.ReleaseReasonBothConfirmed, req.ConfirmerWallet, now)
	}

	if session.ConfirmationDeadline == nil {
		deadline := now.Add(s.window)
		session.ConfirmationDeadline = &deadline
		session.Status = models.SessionStatusAwaitingConfirmation
	}
	session.UpdatedAt = now
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	s.record(ctx, session, events.TypeSessionConfirmed, req.ConfirmerWallet, map[string]interface{}{
		"role":                  req.Role,
		"confirmation_deadline": session.ConfirmationDeadline,
	})
	return &dto.EscrowResult{
		Success: true,
		Message: fmt.Sprintf("Session confirmed by %s. Waiting for other party (auto-release in %s)", req.Role, formatWindow(s.window)),
		Session: session,
	}, nil
}

// ReleaseEscrow moves the locked payment to the tutor. It is the only path
// that sets PaymentReleased.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, sessionID string, reason models.ReleaseReason, actor string) (*dto.EscrowResult, error) {
	if !reason.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown release reason")
	}
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if actor == "" {
		actor = systemActor
	}
	return s.release(ctx, session, reason, actor, s.now())
}

// ProcessAutoRelease releases every session whose confirmation deadline has
// passed. Sessions released concurrently are skipped and a failure on one
// session does not stop the sweep.
func (s *EscrowService) ProcessAutoRelease(ctx context.Context) (*dto.AutoReleaseResult, error) {
	start := time.Now()
	now := s.now()
	due, err := s.sessions.ListAwaitingRelease(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions awaiting release")
	}

	result := &dto.AutoReleaseResult{SessionIDs: make([]string, 0, len(due))}
	for _, candidate := range due {
		if ctx.Err() != nil {
			break
		}
		released, err := s.releaseIfDue(ctx, candidate.ID, now)
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrAlreadyReleased.Code) {
				continue
			}
			s.logger.Warn("auto-release failed", zap.String("session_id", candidate.ID), zap.Error(err))
			result.Failed = append(result.Failed, candidate.ID)
			continue
		}
		if released {
			result.Processed++
			result.SessionIDs = append(result.SessionIDs, candidate.ID)
		}
	}

	s.metrics.sweep(time.Since(start), result.Processed, len(result.Failed))
	if result.Processed > 0 || len(result.Failed) > 0 {
		s.logger.Info("auto-release sweep finished",
			zap.Int("candidates", len(due)),
			zap.Int("released", result.Processed),
			zap.Int("failed", len(result.Failed)))
	}
	return result, nil
}

// StartAutoRelease runs ProcessAutoRelease on every tick until ctx is done.
func (s *EscrowService) StartAutoRelease(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ProcessAutoRelease(ctx); err != nil {
					s.logger.Warn("auto-release sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// ReportSessionIssue freezes the escrow by moving the session to disputed.
func (s *EscrowService) ReportSessionIssue(ctx context.Context, req dto.ReportIssueRequest) (*dto.EscrowResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	unlock := s.lock(req.SessionID)
	defer unlock()

	session, err := s.load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !isParty(session, req.ReporterWallet) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only session participants can report an issue")
	}
	if session.Status == models.SessionStatusCompleted || session.PaymentReleased {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCompleted, "Session already completed. Completed sessions cannot be disputed.")
	}

	message := "Issue reported. Escrow is frozen pending review. Support will contact you within 24 hours."
	if session.Status == models.SessionStatusDisputed {
		return &dto.EscrowResult{Success: true, Message: message, Session: session}, nil
	}

	now := s.now()
	reason := req.Reason
	reporter := req.ReporterWallet
	session.Status = models.SessionStatusDisputed
	session.DisputeReason = &reason
	session.DisputedBy = &reporter
	session.DisputedAt = &now
	session.UpdatedAt = now
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.disputed()
	s.logger.Warn("session disputed", zap.String("session_id", session.ID), zap.String("reporter", reporter))

	s.record(ctx, session, events.TypeSessionDisputed, reporter, map[string]interface{}{"reason": reason})
	return &dto.EscrowResult{Success: true, Message: message, Session: session}, nil
}

// CancelSession cancels a session that has not been released and marks its
// escrow refunded.
func (s *EscrowService) CancelSession(ctx context.Context, sessionID, actorWallet string) (*dto.EscrowResult, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !isParty(session, actorWallet) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only session participants can cancel")
	}

	switch session.Status {
	case models.SessionStatusScheduled, models.SessionStatusAwaitingConfirmation:
	case models.SessionStatusCompleted:
		return nil, appErrors.Clone(appErrors.ErrAlreadyCompleted, "Session already completed")
	case models.SessionStatusDisputed:
		return nil, appErrors.Clone(appErrors.ErrSessionDisputed, "Session is disputed. Escrow is frozen pending review.")
	case models.SessionStatusCancelled, models.SessionStatusInProgress:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot cancel a session that is %s", session.Status))
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "unknown session status")
	}
	if session.EscrowStatus != models.EscrowStatusLocked || session.PaymentReleased {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "escrow is not locked")
	}

	now := s.now()
	session.Status = models.SessionStatusCancelled
	session.EscrowStatus = models.EscrowStatusRefunded
	session.ConfirmationDeadline = nil
	session.UpdatedAt = now
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.cancelled()

	s.record(ctx, session, events.TypeSessionCancelled, actorWallet, map[string]interface{}{"amount": session.Amount})
	return &dto.EscrowResult{
		Success: true,
		Message: fmt.Sprintf("Session cancelled. $%s refunded to student.", formatAmount(session.Amount)),
		Session: session,
	}, nil
}

// GetSession returns a session by ID.
func (s *EscrowService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.load(ctx, id)
}

// ListSessions returns sessions matching the filter.
func (s *EscrowService) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown session status")
	}
	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// SessionHistory returns the audit trail of a session.
func (s *EscrowService) SessionHistory(ctx context.Context, id string) ([]models.SessionEvent, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []models.SessionEvent{}, nil
	}
	history, err := s.audit.ListBySession(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session history")
	}
	return history, nil
}

// release applies and persists a release on a session already loaded under
// its lock.
func (s *EscrowService) release(ctx context.Context, session *models.Session, reason models.ReleaseReason, actor string, now time.Time) (*dto.EscrowResult, error) {
	if err := checkReleasable(session); err != nil {
		return nil, err
	}

	tx := opaqueRef("tx", session.ID, now)
	session.PaymentReleased = true
	session.EscrowStatus = models.EscrowStatusReleased
	session.Status = models.SessionStatusCompleted
	session.CompletedAt = &now
	session.AutoReleaseTriggered = reason == models.ReleaseReasonDeadlineReached
	session.ConfirmationDeadline = nil
	session.TransactionHash = &tx
	session.UpdatedAt = now

	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.released(string(reason))
	s.logger.Info("escrow released",
		zap.String("session_id", session.ID),
		zap.String("reason", string(reason)),
		zap.String("tx_ref", shortRef(tx)))

	s.record(ctx, session, events.TypeEscrowReleased, actor, map[string]interface{}{
		"reason":           reason,
		"amount":           session.Amount,
		"transaction_hash": tx,
	})
	return &dto.EscrowResult{
		Success:         true,
		Message:         fmt.Sprintf("Payment of $%s released to tutor. Transaction: %s...", formatAmount(session.Amount), shortRef(tx)),
		TransactionHash: tx,
		Session:         session,
	}, nil
}

func (s *EscrowService) releaseIfDue(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session.PaymentReleased {
		return false, appErrors.ErrAlreadyReleased
	}
	if !session.AwaitingAutoRelease(now) {
		return false, nil
	}
	if _, err := s.release(ctx, session, models.ReleaseReasonDeadlineReached, systemActor, now); err != nil {
		return false, err
	}
	return true, nil
}

func checkReleasable(session *models.Session) error {
	if session.PaymentReleased {
		return appErrors.Clone(appErrors.ErrAlreadyReleased, "Payment already released")
	}
	switch session.Status {
	case models.SessionStatusDisputed:
		return appErrors.Clone(appErrors.ErrSessionDisputed, "Session is disputed. Escrow is frozen pending review.")
	case models.SessionStatusCancelled:
		return appErrors.Clone(appErrors.ErrInvalidState, "Session was cancelled and its escrow refunded")
	case models.SessionStatusCompleted:
		return appErrors.Clone(appErrors.ErrAlreadyCompleted, "Session already completed")
	case models.SessionStatusScheduled, models.SessionStatusInProgress, models.SessionStatusAwaitingConfirmation:
	default:
		return appErrors.Clone(appErrors.ErrInvalidState, "unknown session status")
	}
	if session.EscrowStatus != models.EscrowStatusLocked {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("escrow is %s, not locked", session.EscrowStatus))
	}
	return nil
}

func (s *EscrowService) load(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *EscrowService) persist(ctx context.Context, session *models.Session) error {
	if err := s.sessions.Update(ctx, session); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "session was modified concurrently, retry")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return nil
}

// record appends the audit entry and publishes the event. The transition is
// already durable at this point, so failures are logged, not returned.
func (s *EscrowService) record(ctx context.Context, session *models.Session, eventType, actor string, data map[string]interface{}) {
	data["session_id"] = session.ID
	data["status"] = session.Status
	data["escrow_status"] = session.EscrowStatus

	if s.audit != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			s.logger.Warn("encode session event failed", zap.String("session_id", session.ID), zap.Error(err))
		} else if err := s.audit.Append(ctx, &models.SessionEvent{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Type:      eventType,
			Actor:     actor,
			Payload:   payload,
			CreatedAt: s.now(),
		}); err != nil {
			s.logger.Warn("append session event failed", zap.String("session_id", session.ID), zap.String("type", eventType), zap.Error(err))
		}
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, eventType, session.ID, data)
		s.metrics.event(eventType, err)
		if err != nil {
			s.logger.Warn("publish session event failed", zap.String("session_id", session.ID), zap.String("type", eventType), zap.Error(err))
		}
	}
}

func (s *EscrowService) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func partyWallet(session *models.Session, role models.ConfirmRole) string {
	if role == models.ConfirmRoleStudent {
		return session.StudentWallet
	}
	return session.TutorWallet
}

func isParty(session *models.Session, wallet string) bool {
	return wallet != "" && (wallet == session.StudentWallet || wallet == session.TutorWallet)
}

func opaqueRef(kind, sessionID string, at time.Time) string {
	raw := kind + "-" + sessionID + "-" + strconv.FormatInt(at.UnixMilli(), 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func shortRef(ref string) string {
	if len(ref) <= 8 {
		return ref
	}
	return ref[:8]
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
	return d.String()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
