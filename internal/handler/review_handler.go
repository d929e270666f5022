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

type reviewService interface {
	CanSubmitReview(ctx context.Context, studentWallet, tutorID string) (*dto.ReviewEligibility, error)
	SubmitReview(ctx context.Context, req dto.SubmitReviewRequest) (*dto.ReviewResult, error)
	LookupTutorRating(ctx context.Context, tutorID string) (models.TutorRating, bool, error)
	ListTutorReviews(ctx context.Context, tutorID string) ([]models.Review, error)
	ExportTutorReviews(ctx context.Context, tutorID string) ([]byte, error)
}

// ReviewHandler exposes the review gate and tutor ratings.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler builds a new handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Eligibility godoc
// @Summary Check whether the caller may review a tutor
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Param tutorId path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{tutorId}/reviews/eligibility [get]
func (h *ReviewHandler) Eligibility(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	res, err := h.service.CanSubmitReview(c.Request.Context(), claims.Wallet, c.Param("tutorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Submit godoc
// @Summary Review a tutor after a released session
// @Description One review per student and tutor, ever
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tutorId path string true "Tutor ID"
// @Param payload body dto.SubmitReviewRequest true "Review payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tutors/{tutorId}/reviews [post]
func (h *ReviewHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	req.StudentWallet = claims.Wallet
	req.TutorID = c.Param("tutorId")

	res, err := h.service.SubmitReview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, res.Message, res)
}

// List godoc
// @Summary List a tutor's reviews
// @Tags Reviews
// @Produce json
// @Param tutorId path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{tutorId}/reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	reviews, err := h.service.ListTutorReviews(c.Request.Context(), c.Param("tutorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews)
}

// Rating godoc
// @Summary Aggregate rating of a tutor
// @Tags Reviews
// @Produce json
// @Param tutorId path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{tutorId}/rating [get]
func (h *ReviewHandler) Rating(c *gin.Context) {
	rating, hit, err := h.service.LookupTutorRating(c.Request.Context(), c.Param("tutorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, rating, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export a tutor's reviews as CSV
// @Tags Reviews
// @Produce text/csv
// @Param tutorId path string true "Tutor ID"
// @Success 200 {file} file
// @Router /tutors/{tutorId}/reviews/export [get]
func (h *ReviewHandler) Export(c *gin.Context) {
	tutorID := c.Param("tutorId")
	data, err := h.service.ExportTutorReviews(c.Request.Context(), tutorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reviews-`+tutorID+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
