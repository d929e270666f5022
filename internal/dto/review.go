package dto

import "github.com/noah-isme/badger-tutors-api/internal/models"

// ReviewEligibility answers whether a student may review a tutor. Reason is
// set whenever CanReview is false.
type ReviewEligibility struct {
	CanReview bool   `json:"can_review"`
	Reason    string `json:"reason,omitempty"`
}

// SubmitReviewRequest carries a new review. StudentWallet comes from the token.
type SubmitReviewRequest struct {
	StudentWallet string `json:"-" validate:"required"`
	TutorID       string `json:"-" validate:"required"`
	SessionID     string `json:"session_id" validate:"required"`
	Rating        int    `json:"rating"`
	ReviewText    string `json:"review_text"`
}

// ReviewResult is returned after a successful submission.
type ReviewResult struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Review  *models.Review     `json:"review,omitempty"`
	Rating  models.TutorRating `json:"rating"`
}
