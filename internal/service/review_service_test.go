package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	"github.com/noah-isme/badger-tutors-api/internal/repository"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/events"
	"github.com/noah-isme/badger-tutors-api/pkg/hashing"
)

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.deletes++
	return nil
}

type reviewFixture struct {
	svc       *ReviewService
	reviews   *repository.MemoryReviewRepository
	sessions  *repository.MemorySessionRepository
	cacheRepo *memoryCacheRepo
	publisher *recordingPublisher
	clock     *fakeClock
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := &reviewFixture{
		reviews:   repository.NewMemoryReviewRepository(),
		sessions:  repository.NewMemorySessionRepository(),
		cacheRepo: newMemoryCacheRepo(),
		publisher: &recordingPublisher{},
		clock:     newFakeClock(),
	}
	metrics := NewMetricsService()
	cache := NewCacheService(f.cacheRepo, metrics, time.Minute, nil)
	f.svc = NewReviewService(f.reviews, f.sessions, cache, hashing.New("test-salt"), f.publisher, metrics, nil, nil, ReviewConfig{Now: f.clock.Now})
	return f
}

func (f *reviewFixture) addSession(t *testing.T, id, wallet, tutorID string, released bool) {
	t.Helper()
	s := &models.Session{
		ID:            id,
		StudentWallet: wallet,
		TutorID:       tutorID,
		TutorWallet:   tutorID + "-wallet",
		Amount:        30,
		Status:        models.SessionStatusScheduled,
		EscrowStatus:  models.EscrowStatusLocked,
	}
	if released {
		s.Status = models.SessionStatusCompleted
		s.EscrowStatus = models.EscrowStatusReleased
		s.PaymentReleased = true
	}
	require.NoError(t, f.sessions.Create(context.Background(), s))
}

func validReview(sessionID, wallet, tutorID string, rating int) dto.SubmitReviewRequest {
	return dto.SubmitReviewRequest{
		StudentWallet: wallet,
		TutorID:       tutorID,
		SessionID:     sessionID,
		Rating:        rating,
		ReviewText:    "Clear explanations and well prepared.",
	}
}

func TestCanSubmitReviewRequiresReleasedSession(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "s-locked", "alice", "tutor-1", false)

	res, err := f.svc.CanSubmitReview(context.Background(), "alice", "tutor-1")
	require.NoError(t, err)
	assert.False(t, res.CanReview)
	assert.Equal(t, ReasonNoReleasedSession, res.Reason)

	f.addSession(t, "s-done", "alice", "tutor-1", true)
	res, err = f.svc.CanSubmitReview(context.Background(), "alice", "tutor-1")
	require.NoError(t, err)
	assert.True(t, res.CanReview)
	assert.Empty(t, res.Reason)

	_, err = f.svc.CanSubmitReview(context.Background(), " ", "tutor-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestSubmitReviewOncePerTutor(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "s1", "alice", "tutor-1", true)
	f.addSession(t, "s2", "alice", "tutor-1", true)

	res, err := f.svc.SubmitReview(context.Background(), validReview("s1", "alice", "tutor-1", 4))
	require.NoError(t, err)
	assert.Equal(t, "Review submitted successfully! Tutor's rating updated to 4.0 stars.", res.Message)
	assert.Equal(t, 1, res.Rating.ReviewCount)
	assert.Equal(t, 80, res.Rating.ReputationScore)
	require.NotNil(t, res.Review)
	assert.True(t, hashing.IsDigest(res.Review.ReviewerHash))
	assert.True(t, hashing.IsDigest(res.Review.ContentHash))
	assert.Equal(t, []string{events.TypeReviewSubmitted}, f.publisher.types())

	eligibility, err := f.svc.CanSubmitReview(context.Background(), "alice", "tutor-1")
	require.NoError(t, err)
	assert.False(t, eligibility.CanReview)
	assert.Equal(t, ReasonAlreadyReviewed, eligibility.Reason)

	_, err = f.svc.SubmitReview(context.Background(), validReview("s2", "alice", "tutor-1", 5))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIneligibleReview.Code))
	assert.Equal(t, ReasonAlreadyReviewed, appErrors.FromError(err).Message)

	reviews, err := f.reviews.ListByTutor(context.Background(), "tutor-1")
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestSubmitReviewRejectsOutOfRangeRating(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "s1", "alice", "tutor-1", true)

	for _, rating := range []int{0, 6, -1} {
		_, err := f.svc.SubmitReview(context.Background(), validReview("s1", "alice", "tutor-1", rating))
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidRating))
		assert.Equal(t, "Rating must be between 1 and 5 stars", appErrors.FromError(err).Message)
	}
	reviews, err := f.reviews.ListByTutor(context.Background(), "tutor-1")
	require.NoError(t, err)
	assert.Empty(t, reviews)
	assert.Empty(t, f.publisher.types())
}

func TestSubmitReviewTextBounds(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "s1", "alice", "tutor-1", true)

	cases := []string{"too short", "   short   ", strings.Repeat("a", 501)}
	for _, text := range cases {
		req := validReview("s1", "alice", "tutor-1", 5)
		req.ReviewText = text
		_, err := f.svc.SubmitReview(context.Background(), req)
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
		assert.Equal(t, "Review must be between 10 and 500 characters", appErrors.FromError(err).Message)
	}

	req := validReview("s1", "alice", "tutor-1", 5)
	req.ReviewText = strings.Repeat("é", 500)
	_, err := f.svc.SubmitReview(context.Background(), req)
	require.NoError(t, err)
}

func TestSubmitReviewWithoutReleasedSession(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "s1", "alice", "tutor-1", false)

	_, err := f.svc.SubmitReview(context.Background(), validReview("s1", "alice", "tutor-1", 5))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIneligibleReview.Code))
	assert.Equal(t, ReasonNoReleasedSession, appErrors.FromError(err).Message)
}

func TestSubmitReviewRejectsForeignSession(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "mine", "alice", "tutor-1", true)
	f.addSession(t, "theirs", "bob", "tutor-1", true)

	_, err := f.svc.SubmitReview(context.Background(), validReview("theirs", "alice", "tutor-1", 5))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIneligibleReview.Code))

	_, err = f.svc.SubmitReview(context.Background(), validReview("missing", "alice", "tutor-1", 5))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIneligibleReview.Code))
}

func TestConcurrentSubmissionsStoreOneReview(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "s1", "alice", "tutor-1", true)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.SubmitReview(context.Background(), validReview("s1", "alice", "tutor-1", 5)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}

func TestTutorRatingUsesCacheAndInvalidates(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "a1", "alice", "tutor-1", true)
	f.addSession(t, "b1", "bob", "tutor-1", true)

	empty, err := f.svc.TutorRating(context.Background(), "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.ReviewCount)
	assert.Contains(t, f.cacheRepo.entries, ratingCacheKey("tutor-1"))

	_, err = f.svc.SubmitReview(context.Background(), validReview("a1", "alice", "tutor-1", 5))
	require.NoError(t, err)
	_, err = f.svc.SubmitReview(context.Background(), validReview("b1", "bob", "tutor-1", 4))
	require.NoError(t, err)
	assert.Equal(t, 2, f.cacheRepo.deletes)

	rating, err := f.svc.TutorRating(context.Background(), "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rating.ReviewCount)
	assert.InDelta(t, 4.5, rating.AverageRating, 0.0001)
	assert.Equal(t, 90, rating.ReputationScore)

	_, err = f.svc.TutorRating(context.Background(), "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestExportTutorReviewsHidesWallets(t *testing.T) {
	f := newReviewFixture(t)
	f.addSession(t, "s1", "alice", "tutor-1", true)
	req := validReview("s1", "alice", "tutor-1", 3)
	req.ReviewText = "=HYPERLINK(\"x\") but otherwise fine"
	_, err := f.svc.SubmitReview(context.Background(), req)
	require.NoError(t, err)

	out, err := f.svc.ExportTutorReviews(context.Background(), "tutor-1")
	require.NoError(t, err)
	body := string(out)
	assert.True(t, strings.HasPrefix(body, "created_at,session_id,reviewer_hash,rating,review_text,content_hash"))
	assert.NotContains(t, body, "alice")
	assert.Contains(t, body, "'=HYPERLINK")
}

func TestSubmitReviewPublisherFailureDoesNotFail(t *testing.T) {
	f := newReviewFixture(t)
	f.publisher.err = errors.New("broker down")
	f.addSession(t, "s1", "alice", "tutor-1", true)

	res, err := f.svc.SubmitReview(context.Background(), validReview("s1", "alice", "tutor-1", 5))
	require.NoError(t, err)
	assert.True(t, res.Success)
}
