package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/internal/middleware"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
)

func newContext(method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{StudentID: "stu-1", Wallet: "student-wallet", Role: models.RegistryRoleStudent}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type sessionServiceMock struct {
	bookReq    dto.BookSessionRequest
	confirmReq dto.ConfirmSessionRequest
	reportReq  dto.ReportIssueRequest
	filter     models.SessionFilter
	session    *models.Session
	result     *dto.EscrowResult
	err        error
}

func (m *sessionServiceMock) BookSession(_ context.Context, req dto.BookSessionRequest) (*models.Session, error) {
	m.bookReq = req
	return m.session, m.err
}

func (m *sessionServiceMock) ConfirmSession(_ context.Context, req dto.ConfirmSessionRequest) (*dto.EscrowResult, error) {
	m.confirmReq = req
	return m.result, m.err
}

func (m *sessionServiceMock) ReportSessionIssue(_ context.Context, req dto.ReportIssueRequest) (*dto.EscrowResult, error) {
	m.reportReq = req
	return m.result, m.err
}

func (m *sessionServiceMock) CancelSession(_ context.Context, _, _ string) (*dto.EscrowResult, error) {
	return m.result, m.err
}

func (m *sessionServiceMock) GetSession(_ context.Context, _ string) (*models.Session, error) {
	return m.session, m.err
}

func (m *sessionServiceMock) ListSessions(_ context.Context, filter models.SessionFilter) ([]models.Session, error) {
	m.filter = filter
	if m.session == nil {
		return []models.Session{}, m.err
	}
	return []models.Session{*m.session}, m.err
}

func (m *sessionServiceMock) SessionHistory(_ context.Context, _ string) ([]models.SessionEvent, error) {
	return []models.SessionEvent{{Type: "escrow.created"}}, m.err
}

func TestSessionHandlerBookUsesTokenIdentity(t *testing.T) {
	svc := &sessionServiceMock{session: &models.Session{ID: "s1"}}
	h := NewSessionHandler(svc)

	body, _ := json.Marshal(map[string]interface{}{
		"tutor_id": "tutor-1", "tutor_wallet": "tutor-wallet", "scheduled_time": time.Now().Add(time.Hour),
		"duration": 60, "amount": 30, "student_wallet": "spoofed",
	})
	c, w := newContext(http.MethodPost, "/sessions", body, studentClaims())
	h.Book(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "student-wallet", svc.bookReq.StudentWallet)
	assert.Equal(t, "stu-1", svc.bookReq.StudentID)
	assert.Equal(t, 60, svc.bookReq.DurationMinutes)
}

func TestSessionHandlerRequiresClaims(t *testing.T) {
	h := NewSessionHandler(&sessionServiceMock{})
	c, w := newContext(http.MethodPost, "/sessions/s1/confirm", []byte(`{"role":"student"}`), nil)
	h.Confirm(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionHandlerConfirm(t *testing.T) {
	svc := &sessionServiceMock{result: &dto.EscrowResult{Success: true, Message: "Session confirmed by student. Waiting for other party (auto-release in 24h)"}}
	h := NewSessionHandler(svc)

	c, w := newContext(http.MethodPost, "/sessions/s1/confirm", []byte(`{"role":"student"}`), studentClaims())
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	h.Confirm(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", svc.confirmReq.SessionID)
	assert.Equal(t, "student-wallet", svc.confirmReq.ConfirmerWallet)
	assert.Equal(t, models.ConfirmRoleStudent, svc.confirmReq.Role)
	assert.Equal(t, svc.result.Message, decodeEnvelope(t, w)["message"])
}

func TestSessionHandlerMapsDomainErrors(t *testing.T) {
	svc := &sessionServiceMock{err: appErrors.Clone(appErrors.ErrSessionDisputed, "Session is disputed. Escrow is frozen pending review.")}
	h := NewSessionHandler(svc)

	c, w := newContext(http.MethodPost, "/sessions/s1/confirm", []byte(`{"role":"tutor"}`), studentClaims())
	h.Confirm(c)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "SESSION_DISPUTED", errBody["code"])
}

func TestSessionHandlerReportRequiresReason(t *testing.T) {
	svc := &sessionServiceMock{}
	h := NewSessionHandler(svc)
	c, w := newContext(http.MethodPost, "/sessions/s1/report", []byte(`{}`), studentClaims())
	h.Report(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.reportReq.SessionID)
}

func TestSessionHandlerGetRejectsOutsiders(t *testing.T) {
	svc := &sessionServiceMock{session: &models.Session{ID: "s1", StudentWallet: "other", TutorWallet: "tutor-wallet"}}
	h := NewSessionHandler(svc)

	c, w := newContext(http.MethodGet, "/sessions/s1", nil, studentClaims())
	h.Get(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	svc.session.StudentWallet = "student-wallet"
	c, w = newContext(http.MethodGet, "/sessions/s1/history", nil, studentClaims())
	h.History(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHandlerListScopesToCaller(t *testing.T) {
	svc := &sessionServiceMock{session: &models.Session{ID: "s1"}}
	h := NewSessionHandler(svc)

	c, w := newContext(http.MethodGet, "/sessions?status=completed&limit=5", nil, studentClaims())
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-wallet", svc.filter.Wallet)
	assert.Equal(t, models.SessionStatusCompleted, svc.filter.Status)
	assert.Equal(t, 5, svc.filter.Limit)
	meta := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["count"])
}

type reviewServiceMock struct {
	submitted dto.SubmitReviewRequest
	hit       bool
	err       error
}

func (m *reviewServiceMock) CanSubmitReview(_ context.Context, _, _ string) (*dto.ReviewEligibility, error) {
	return &dto.ReviewEligibility{CanReview: false, Reason: "You can only review after your first completed session and payment release from escrow."}, m.err
}

func (m *reviewServiceMock) SubmitReview(_ context.Context, req dto.SubmitReviewRequest) (*dto.ReviewResult, error) {
	m.submitted = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ReviewResult{Success: true, Message: "Review submitted successfully! Tutor's rating updated to 5.0 stars."}, nil
}

func (m *reviewServiceMock) LookupTutorRating(_ context.Context, tutorID string) (models.TutorRating, bool, error) {
	return models.TutorRating{TutorID: tutorID, AverageRating: 4.5, ReviewCount: 2, ReputationScore: 90}, m.hit, m.err
}

func (m *reviewServiceMock) ListTutorReviews(_ context.Context, _ string) ([]models.Review, error) {
	return []models.Review{}, m.err
}

func (m *reviewServiceMock) ExportTutorReviews(_ context.Context, _ string) ([]byte, error) {
	return []byte("created_at,session_id\n"), m.err
}

func TestReviewHandlerSubmit(t *testing.T) {
	svc := &reviewServiceMock{}
	h := NewReviewHandler(svc)

	c, w := newContext(http.MethodPost, "/tutors/tutor-1/reviews", []byte(`{"session_id":"s1","rating":5,"review_text":"Great tutor, very patient."}`), studentClaims())
	c.Params = gin.Params{{Key: "tutorId", Value: "tutor-1"}}
	h.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "tutor-1", svc.submitted.TutorID)
	assert.Equal(t, "student-wallet", svc.submitted.StudentWallet)
	assert.Equal(t, 5, svc.submitted.Rating)
}

func TestReviewHandlerSubmitInvalidRating(t *testing.T) {
	h := NewReviewHandler(&reviewServiceMock{err: appErrors.ErrInvalidRating})
	c, w := newContext(http.MethodPost, "/tutors/tutor-1/reviews", []byte(`{"session_id":"s1","rating":6,"review_text":"Great tutor, very patient."}`), studentClaims())
	h.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "Rating must be between 1 and 5 stars", errBody["message"])
}

func TestReviewHandlerRatingReportsCacheHit(t *testing.T) {
	h := NewReviewHandler(&reviewServiceMock{hit: true})
	c, w := newContext(http.MethodGet, "/tutors/tutor-1/rating", nil, nil)
	c.Params = gin.Params{{Key: "tutorId", Value: "tutor-1"}}
	h.Rating(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env["meta"].(map[string]interface{})["cache_hit"])
	assert.Equal(t, float64(90), env["data"].(map[string]interface{})["reputation_score"])
}

func TestReviewHandlerExportCSV(t *testing.T) {
	h := NewReviewHandler(&reviewServiceMock{})
	c, w := newContext(http.MethodGet, "/tutors/tutor-1/reviews/export", nil, nil)
	c.Params = gin.Params{{Key: "tutorId", Value: "tutor-1"}}
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reviews-tutor-1.csv")
}

type receiptServiceMock struct {
	baseURL string
	err     error
}

func (m *receiptServiceMock) Receipt(_ context.Context, _, _ string) ([]byte, error) {
	return []byte("%PDF-1.3"), m.err
}

func (m *receiptServiceMock) ShareLink(_ context.Context, _, _, baseURL string) (*dto.ReceiptLink, error) {
	m.baseURL = baseURL
	return &dto.ReceiptLink{URL: baseURL + "/receipts/tok", Token: "tok"}, m.err
}

func (m *receiptServiceMock) OpenLink(_ context.Context, _ string) ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return []byte("%PDF-1.3"), "receipt-s1.pdf", nil
}

func TestReceiptHandler(t *testing.T) {
	svc := &receiptServiceMock{}
	h := NewReceiptHandler(svc, "/api/v1")

	c, w := newContext(http.MethodGet, "/sessions/s1/receipt", nil, studentClaims())
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	c, w = newContext(http.MethodPost, "/sessions/s1/receipt/link", nil, studentClaims())
	c.Request.Host = "api.example.test"
	c.Request.Header.Set("X-Forwarded-Proto", "https")
	h.ShareLink(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://api.example.test/api/v1", svc.baseURL)

	svc.err = appErrors.Clone(appErrors.ErrUnauthorized, "receipt link expired")
	c, w = newContext(http.MethodGet, "/receipts/tok", nil, nil)
	h.Open(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type adminServiceMock struct {
	reason models.ReleaseReason
	actor  string
	err    error
}

func (m *adminServiceMock) ReleaseEscrow(_ context.Context, _ string, reason models.ReleaseReason, actor string) (*dto.EscrowResult, error) {
	m.reason = reason
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &dto.EscrowResult{Success: true, Message: "Payment of $30 released to tutor. Transaction: ZXNjcm93..."}, nil
}

func (m *adminServiceMock) ProcessAutoRelease(_ context.Context) (*dto.AutoReleaseResult, error) {
	return &dto.AutoReleaseResult{Processed: 2, SessionIDs: []string{"a", "b"}}, m.err
}

func (m *adminServiceMock) GetSession(_ context.Context, id string) (*models.Session, error) {
	return &models.Session{ID: id}, m.err
}

func (m *adminServiceMock) SessionHistory(_ context.Context, _ string) ([]models.SessionEvent, error) {
	return nil, m.err
}

func TestAdminHandlerReleaseDefaultsToOverride(t *testing.T) {
	svc := &adminServiceMock{}
	h := NewAdminHandler(svc)

	c, w := newContext(http.MethodPost, "/admin/sessions/s1/release", nil, nil)
	h.Release(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReleaseReasonAdminOverride, svc.reason)
	assert.Contains(t, svc.actor, "admin@")

	c, w = newContext(http.MethodPost, "/admin/sessions/s1/release", []byte(`{"reason":"deadline_reached"}`), nil)
	h.Release(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReleaseReasonDeadlineReached, svc.reason)
}

func TestAdminHandlerReleaseAlreadyReleased(t *testing.T) {
	h := NewAdminHandler(&adminServiceMock{err: appErrors.Clone(appErrors.ErrAlreadyReleased, "Payment already released")})
	c, w := newContext(http.MethodPost, "/admin/sessions/s1/release", []byte(`{}`), nil)
	h.Release(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminHandlerSweep(t *testing.T) {
	h := NewAdminHandler(&adminServiceMock{})
	c, w := newContext(http.MethodPost, "/admin/escrow/sweep", nil, nil)
	h.Sweep(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["processed"])
}

type registryServiceMock struct {
	err error
}

func (m *registryServiceMock) Register(_ context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RegisterResponse{Message: "Successfully registered with BadgerTutors Registry", Student: &models.Student{WalletAddress: req.WalletAddress}}, nil
}

func (m *registryServiceMock) Login(_ context.Context, _ dto.LoginRequest) (*dto.LoginResponse, error) {
	return &dto.LoginResponse{AccessToken: "token"}, m.err
}

func TestRegistryHandler(t *testing.T) {
	h := NewRegistryHandler(&registryServiceMock{})
	c, w := newContext(http.MethodPost, "/registry/register", []byte(`{"wallet_address":"w","email":"a@wisc.edu","student_id":"1234567890"}`), nil)
	h.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Successfully registered with BadgerTutors Registry", decodeEnvelope(t, w)["message"])

	c, w = newContext(http.MethodPost, "/registry/register", []byte(`{"wallet_address":`), nil)
	h.Register(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h = NewRegistryHandler(&registryServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "Student ID already registered in the system")})
	c, w = newContext(http.MethodPost, "/registry/login", []byte(`{"wallet_address":"w"}`), nil)
	h.Login(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	c, w := newContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "unavailable", body["status"])

	c, w = newContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
