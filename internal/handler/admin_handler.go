package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/response"
)

type escrowAdminService interface {
	ReleaseEscrow(ctx context.Context, sessionID string, reason models.ReleaseReason, actor string) (*dto.EscrowResult, error)
	ProcessAutoRelease(ctx context.Context) (*dto.AutoReleaseResult, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SessionHistory(ctx context.Context, id string) ([]models.SessionEvent, error)
}

// AdminHandler exposes operator overrides guarded by the admin key.
type AdminHandler struct {
	service escrowAdminService
}

// NewAdminHandler builds a new handler.
func NewAdminHandler(service escrowAdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// Release godoc
// @Summary Release a session's escrow to the tutor
// @Description Defaults to admin_override. Disputed sessions stay frozen.
// @Tags Admin
// @Accept json
// @Produce json
// @Param X-Admin-Key header string true "Operator key"
// @Param id path string true "Session ID"
// @Param payload body dto.ReleaseEscrowRequest false "Release reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/sessions/{id}/release [post]
func (h *AdminHandler) Release(c *gin.Context) {
	var req dto.ReleaseEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid release payload"))
		return
	}
	if req.Reason == "" {
		req.Reason = models.ReleaseReasonAdminOverride
	}
	res, err := h.service.ReleaseEscrow(c.Request.Context(), c.Param("id"), req.Reason, "admin@"+c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, res.Message, res)
}

// Sweep godoc
// @Summary Run the auto-release sweep now
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Operator key"
// @Success 200 {object} response.Envelope
// @Router /admin/escrow/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	res, err := h.service.ProcessAutoRelease(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Session godoc
// @Summary Inspect any session with its audit trail
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Operator key"
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{id} [get]
func (h *AdminHandler) Session(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.service.SessionHistory(c.Request.Context(), session.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"session": session, "history": history})
}
