package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/response"
)

type registryService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
}

// RegistryHandler wires the student registry endpoints.
type RegistryHandler struct {
	service registryService
}

// NewRegistryHandler creates a new handler.
func NewRegistryHandler(svc registryService) *RegistryHandler {
	return &RegistryHandler{service: svc}
}

// Register godoc
// @Summary Register a wallet with the student registry
// @Description Only digests of the email and student ID are stored
// @Tags Registry
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registry/register [post]
func (h *RegistryHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, res.Message, res.Student)
}

// Login godoc
// @Summary Log in with registry identifiers
// @Tags Registry
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /registry/login [post]
func (h *RegistryHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
