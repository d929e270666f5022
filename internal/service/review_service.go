package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	"github.com/noah-isme/badger-tutors-api/internal/repository"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/events"
	"github.com/noah-isme/badger-tutors-api/pkg/export"
	"github.com/noah-isme/badger-tutors-api/pkg/hashing"
)

// Reasons returned when a review is not allowed.
const (
	ReasonNoReleasedSession = "You can only review after your first completed session and payment release from escrow."
	ReasonAlreadyReviewed   = "You have already reviewed this tutor. Only one review per tutor is allowed - ever."
)

type reviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	ExistsForPair(ctx context.Context, studentWallet, tutorID string) (bool, error)
	ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error)
}

type releasedSessionLookup interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	HasReleasedSession(ctx context.Context, studentWallet, tutorID string) (bool, error)
}

type ratingCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string) error
}

// ReviewConfig bounds review bodies and rating caching.
type ReviewConfig struct {
	MinTextLength  int
	MaxTextLength  int
	RatingCacheTTL time.Duration
	Now            func() time.Time
}

// ReviewService gates and records tutor reviews.
type ReviewService struct {
	reviews   reviewStore
	sessions  releasedSessionLookup
	cache     ratingCache
	hasher    *hashing.Hasher
	publisher EventPublisher
	metrics   *MetricsService
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReviewConfig

	pairLocks sync.Map
}

// NewReviewService constructs a ReviewService. cache, publisher and metrics
// may be nil.
func NewReviewService(reviews reviewStore, sessions releasedSessionLookup, cache ratingCache, hasher *hashing.Hasher, publisher EventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ReviewConfig) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 10
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 500
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReviewService{
		reviews:   reviews,
		sessions:  sessions,
		cache:     cache,
		hasher:    hasher,
		publisher: publisher,
		metrics:   metrics,
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CanSubmitReview reports whether the student may review the tutor. The
// student needs a completed session with released payment and must not have
// reviewed the tutor before.
func (s *ReviewService) CanSubmitReview(ctx context.Context, studentWallet, tutorID string) (*dto.ReviewEligibility, error) {
	if strings.TrimSpace(studentWallet) == "" || strings.TrimSpace(tutorID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student wallet and tutor id are required")
	}
	released, err := s.sessions.HasReleasedSession(ctx, studentWallet, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session history")
	}
	if !released {
		return &dto.ReviewEligibility{CanReview: false, Reason: ReasonNoReleasedSession}, nil
	}
	reviewed, err := s.reviews.ExistsForPair(ctx, studentWallet, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing reviews")
	}
	if reviewed {
		return &dto.ReviewEligibility{CanReview: false, Reason: ReasonAlreadyReviewed}, nil
	}
	return &dto.ReviewEligibility{CanReview: true}, nil
}

// SubmitReview stores a review after re-checking eligibility and returns the
// tutor's updated rating.
func (s *ReviewService) SubmitReview(ctx context.Context, req dto.SubmitReviewRequest) (*dto.ReviewResult, error) {
	if req.Rating < 1 || req.Rating > 5 {
		s.metrics.review("invalid")
		return nil, appErrors.ErrInvalidRating
	}
	req.ReviewText = strings.TrimSpace(req.ReviewText)
	if n := utf8.RuneCountInString(req.ReviewText); n < s.cfg.MinTextLength || n > s.cfg.MaxTextLength {
		s.metrics.review("invalid")
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("Review must be between %d and %d characters", s.cfg.MinTextLength, s.cfg.MaxTextLength))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	unlock := s.lockPair(req.StudentWallet, req.TutorID)
	defer unlock()

	eligibility, err := s.CanSubmitReview(ctx, req.StudentWallet, req.TutorID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanReview {
		s.metrics.review("ineligible")
		return nil, appErrors.Clone(appErrors.ErrIneligibleReview, eligibility.Reason)
	}
	if err := s.checkSession(ctx, req); err != nil {
		s.metrics.review("ineligible")
		return nil, err
	}

	now := s.cfg.Now().UTC()
	review := &models.Review{
		ID:            uuid.NewString(),
		SessionID:     req.SessionID,
		StudentWallet: req.StudentWallet,
		TutorID:       req.TutorID,
		Rating:        req.Rating,
		ReviewText:    req.ReviewText,
		ReviewerHash:  s.hasher.ReviewerHash(req.StudentWallet, req.TutorID),
		CreatedAt:     now,
	}
	review.ContentHash = s.hasher.ContentHash(review.TutorID, review.SessionID, strconv.Itoa(review.Rating), review.ReviewText, now.Format(time.RFC3339Nano))

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.review("ineligible")
			return nil, appErrors.Clone(appErrors.ErrIneligibleReview, ReasonAlreadyReviewed)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review")
	}
	s.metrics.review("accepted")

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ratingCacheKey(req.TutorID)); err != nil {
			s.logger.Warn("rating cache invalidation failed", zap.String("tutor_id", req.TutorID), zap.Error(err))
		}
	}
	rating, err := s.computeRating(ctx, req.TutorID)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, events.TypeReviewSubmitted, req.TutorID, map[string]interface{}{
			"review_id":     review.ID,
			"tutor_id":      review.TutorID,
			"rating":        review.Rating,
			"reviewer_hash": review.ReviewerHash,
			"average":       rating.AverageRating,
		})
		s.metrics.event(events.TypeReviewSubmitted, err)
		if err != nil {
			s.logger.Warn("publish review event failed", zap.String("review_id", review.ID), zap.Error(err))
		}
	}

	return &dto.ReviewResult{
		Success: true,
		Message: fmt.Sprintf("Review submitted successfully! Tutor's rating updated to %.1f stars.", rating.AverageRating),
		Review:  review,
		Rating:  rating,
	}, nil
}

// TutorRating returns the aggregate rating, served from cache when possible.
func (s *ReviewService) TutorRating(ctx context.Context, tutorID string) (models.TutorRating, error) {
	rating, _, err := s.LookupTutorRating(ctx, tutorID)
	return rating, err
}

// LookupTutorRating is TutorRating that also reports whether the cache served it.
func (s *ReviewService) LookupTutorRating(ctx context.Context, tutorID string) (models.TutorRating, bool, error) {
	if strings.TrimSpace(tutorID) == "" {
		return models.TutorRating{}, false, appErrors.Clone(appErrors.ErrValidation, "tutor id is required")
	}
	if s.cache != nil {
		var cached models.TutorRating
		if s.cache.Get(ctx, ratingCacheKey(tutorID), &cached) {
			return cached, true, nil
		}
	}
	rating, err := s.computeRating(ctx, tutorID)
	return rating, false, err
}

// ListTutorReviews returns a tutor's reviews, newest first.
func (s *ReviewService) ListTutorReviews(ctx context.Context, tutorID string) ([]models.Review, error) {
	reviews, err := s.reviews.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// ExportTutorReviews renders a tutor's reviews as CSV. Student wallets are
// replaced by their reviewer digest.
func (s *ReviewService) ExportTutorReviews(ctx context.Context, tutorID string) ([]byte, error) {
	reviews, err := s.ListTutorReviews(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{Headers: []string{"created_at", "session_id", "reviewer_hash", "rating", "review_text", "content_hash"}}
	for _, r := range reviews {
		data.Rows = append(data.Rows, map[string]string{
			"created_at":    r.CreatedAt.UTC().Format(time.RFC3339),
			"session_id":    r.SessionID,
			"reviewer_hash": r.ReviewerHash,
			"rating":        strconv.Itoa(r.Rating),
			"review_text":   r.ReviewText,
			"content_hash":  r.ContentHash,
		})
	}
	out, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render reviews export")
	}
	return out, nil
}

// checkSession ensures the referenced session is the student's released
// session with this tutor.
func (s *ReviewService) checkSession(ctx context.Context, req dto.SubmitReviewRequest) error {
	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrIneligibleReview, ReasonNoReleasedSession)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.StudentWallet != req.StudentWallet || session.TutorID != req.TutorID || !session.Reviewable() {
		return appErrors.Clone(appErrors.ErrIneligibleReview, ReasonNoReleasedSession)
	}
	return nil
}

func (s *ReviewService) computeRating(ctx context.Context, tutorID string) (models.TutorRating, error) {
	reviews, err := s.reviews.ListByTutor(ctx, tutorID)
	if err != nil {
		return models.TutorRating{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate rating")
	}
	rating := models.NewTutorRating(tutorID, reviews)
	if s.cache != nil {
		s.cache.Set(ctx, ratingCacheKey(tutorID), rating, s.cfg.RatingCacheTTL)
	}
	return rating, nil
}

func (s *ReviewService) lockPair(studentWallet, tutorID string) func() {
	v, _ := s.pairLocks.LoadOrStore(studentWallet+"\x00"+tutorID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func ratingCacheKey(tutorID string) string {
	return "tutor-rating:" + tutorID
}
