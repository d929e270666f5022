package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/internal/middleware"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/response"
)

type sessionService interface {
	BookSession(ctx context.Context, req dto.BookSessionRequest) (*models.Session, error)
	ConfirmSession(ctx context.Context, req dto.ConfirmSessionRequest) (*dto.EscrowResult, error)
	ReportSessionIssue(ctx context.Context, req dto.ReportIssueRequest) (*dto.EscrowResult, error)
	CancelSession(ctx context.Context, sessionID, actorWallet string) (*dto.EscrowResult, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	SessionHistory(ctx context.Context, id string) ([]models.SessionEvent, error)
}

// SessionHandler exposes booking and the participant side of the escrow
// lifecycle.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler builds a new handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Book godoc
// @Summary Book a session and lock its payment in escrow
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BookSessionRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Book(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.BookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	req.StudentID = claims.StudentID
	req.StudentWallet = claims.Wallet

	session, err := h.service.BookSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List godoc
// @Summary List the caller's sessions
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param tutor_id query string false "Tutor filter"
// @Param status query string false "Status filter"
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.SessionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	sessions, err := h.service.ListSessions(c.Request.Context(), models.SessionFilter{
		Wallet:  claims.Wallet,
		TutorID: query.TutorID,
		Status:  models.SessionStatus(query.Status),
		Limit:   query.Limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(sessions))
	response.JSON(c, http.StatusOK, sessions, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a session the caller takes part in
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !participant(session, claims.Wallet) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this session"))
		return
	}
	response.JSON(c, http.StatusOK, session)
}

// History godoc
// @Summary Audit trail of a session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/history [get]
func (h *SessionHandler) History(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !participant(session, claims.Wallet) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this session"))
		return
	}
	history, err := h.service.SessionHistory(c.Request.Context(), session.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history)
}

type confirmPayload struct {
	Role models.ConfirmRole `json:"role" binding:"required"`
}

// Confirm godoc
// @Summary Confirm that a session took place
// @Description The second confirmation releases the escrow to the tutor
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body dto.ConfirmSessionRequest true "Confirming role"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/confirm [post]
func (h *SessionHandler) Confirm(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var payload confirmPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirmation payload"))
		return
	}
	res, err := h.service.ConfirmSession(c.Request.Context(), dto.ConfirmSessionRequest{
		SessionID:       c.Param("id"),
		ConfirmerWallet: claims.Wallet,
		Role:            payload.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, res.Message, res)
}

type reportPayload struct {
	Reason string `json:"reason" binding:"required"`
}

// Report godoc
// @Summary Report an issue and freeze the escrow
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body dto.ReportIssueRequest true "Issue description"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/report [post]
func (h *SessionHandler) Report(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var payload reportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}
	res, err := h.service.ReportSessionIssue(c.Request.Context(), dto.ReportIssueRequest{
		SessionID:      c.Param("id"),
		ReporterWallet: claims.Wallet,
		Reason:         payload.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, res.Message, res)
}

// Cancel godoc
// @Summary Cancel a session and refund the student
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	res, err := h.service.CancelSession(c.Request.Context(), c.Param("id"), claims.Wallet)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, res.Message, res)
}

func participant(session *models.Session, wallet string) bool {
	return wallet != "" && (session.StudentWallet == wallet || session.TutorWallet == wallet)
}
