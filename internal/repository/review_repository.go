package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

// ReviewRepository persists tutor reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs a ReviewRepository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. A second review for the same student and tutor is
// rejected by uq_tutor_reviews_student_tutor and surfaces as ErrDuplicate.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	query := `INSERT INTO tutor_reviews (id, session_id, student_wallet, tutor_id, rating, review_text, content_hash, reviewer_hash, created_at)
        VALUES (:id, :session_id, :student_wallet, :tutor_id, :rating, :review_text, :content_hash, :reviewer_hash, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create review: %w", mapUniqueViolation(err))
	}
	return nil
}

// ExistsForPair reports whether the student already reviewed the tutor.
func (r *ReviewRepository) ExistsForPair(ctx context.Context, studentWallet, tutorID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM tutor_reviews WHERE student_wallet = $1 AND tutor_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, studentWallet, tutorID); err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return exists, nil
}

// ListByTutor returns every review of a tutor, newest first.
func (r *ReviewRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error) {
	query := `SELECT id, session_id, student_wallet, tutor_id, rating, review_text, content_hash, reviewer_hash, created_at
        FROM tutor_reviews WHERE tutor_id = $1 ORDER BY created_at DESC`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, tutorID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
