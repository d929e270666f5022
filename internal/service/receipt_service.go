package service

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/export"
	"github.com/noah-isme/badger-tutors-api/pkg/storage"
)

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type receiptRenderer interface {
	RenderReceipt(r export.Receipt) ([]byte, error)
}

type receiptArchive interface {
	Save(name string, data []byte) error
	Load(name string) ([]byte, error)
}

type linkSigner interface {
	Generate(sessionID, name string) (string, time.Time, error)
	Parse(token string) (storage.Link, error)
}

// ReceiptService renders settlement receipts for released sessions, archives
// them and issues expiring share links.
type ReceiptService struct {
	sessions sessionReader
	renderer receiptRenderer
	archive  receiptArchive
	signer   linkSigner
	logger   *zap.Logger
	now      func() time.Time
}

// NewReceiptService constructs a ReceiptService. A nil archive renders on
// every request; a nil signer disables share links.
func NewReceiptService(sessions sessionReader, renderer receiptRenderer, archive receiptArchive, signer linkSigner, logger *zap.Logger, now func() time.Time) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	if now == nil {
		now = time.Now
	}
	return &ReceiptService{sessions: sessions, renderer: renderer, archive: archive, signer: signer, logger: logger, now: now}
}

// Receipt returns the PDF receipt of a released session to one of its parties.
func (s *ReceiptService) Receipt(ctx context.Context, sessionID, wallet string) ([]byte, error) {
	session, err := s.releasedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !isParty(session, wallet) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only session participants can access the receipt")
	}
	return s.document(session)
}

// ShareLink issues a signed link to the receipt. baseURL is the public API
// prefix the link is rooted at.
func (s *ReceiptService) ShareLink(ctx context.Context, sessionID, wallet, baseURL string) (*dto.ReceiptLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "receipt links are disabled")
	}
	session, err := s.releasedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !isParty(session, wallet) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only session participants can share the receipt")
	}
	if _, err := s.document(session); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(session.ID, receiptName(session.ID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}
	return &dto.ReceiptLink{
		URL:       strings.TrimRight(baseURL, "/") + "/receipts/" + token,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// OpenLink resolves a share token to the receipt bytes and its file name.
func (s *ReceiptService) OpenLink(ctx context.Context, token string) ([]byte, string, error) {
	if s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "receipt links are disabled")
	}
	link, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "receipt link expired")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid receipt link")
	}
	session, err := s.releasedSession(ctx, link.SessionID)
	if err != nil {
		return nil, "", err
	}
	data, err := s.document(session)
	if err != nil {
		return nil, "", err
	}
	return data, "receipt-" + session.ID + ".pdf", nil
}

func (s *ReceiptService) releasedSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.PaymentReleased {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "Receipt is available once payment has been released")
	}
	return session, nil
}

// document loads the archived receipt, rendering and archiving it on first use.
func (s *ReceiptService) document(session *models.Session) ([]byte, error) {
	name := receiptName(session.ID)
	if s.archive != nil {
		data, err := s.archive.Load(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("receipt archive read failed", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	data, err := s.renderer.RenderReceipt(buildReceipt(session, s.now().UTC()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	if s.archive != nil {
		if err := s.archive.Save(name, data); err != nil {
			s.logger.Warn("receipt archive write failed", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	return data, nil
}

func buildReceipt(session *models.Session, issuedAt time.Time) export.Receipt {
	r := export.Receipt{
		SessionID:       session.ID,
		CourseID:        session.CourseID,
		StudentWallet:   session.StudentWallet,
		TutorID:         session.TutorID,
		TutorWallet:     session.TutorWallet,
		ScheduledTime:   session.ScheduledTime,
		DurationMinutes: session.DurationMinutes,
		Amount:          session.Amount,
		ReleaseReason:   string(releaseReasonOf(session)),
		IssuedAt:        issuedAt,
	}
	if session.TransactionHash != nil {
		r.TransactionHash = *session.TransactionHash
	}
	if session.EscrowAccount != nil {
		r.EscrowAccount = *session.EscrowAccount
	}
	if session.CompletedAt != nil {
		r.CompletedAt = *session.CompletedAt
	}
	return r
}

// releaseReasonOf infers why a released session was paid out.
func releaseReasonOf(session *models.Session) models.ReleaseReason {
	switch {
	case session.AutoReleaseTriggered:
		return models.ReleaseReasonDeadlineReached
	case session.BothConfirmed():
		return models.ReleaseReasonBothConfirmed
	default:
		return models.ReleaseReasonAdminOverride
	}
}

func receiptName(sessionID string) string {
	return sessionID + "/receipt.pdf"
}
