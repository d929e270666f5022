package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

func TestMetricsHandlerExposesEscrowCounters(t *testing.T) {
	f := newEscrowFixture(t)
	metrics := NewMetricsService()
	f.svc.metrics = metrics

	s := f.book(t, 30)
	_, err := f.confirm(models.ConfirmRoleStudent, s.ID)
	require.NoError(t, err)
	_, err = f.confirm(models.ConfirmRoleTutor, s.ID)
	require.NoError(t, err)
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/sessions/:id/confirm", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.escrowCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.escrowReleased.WithLabelValues(string(models.ReleaseReasonBothConfirmed))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.confirmations.WithLabelValues("tutor")))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "escrow_releases_total")
	assert.Contains(t, string(body), "http_requests_total")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.RecordCacheLookup(true, time.Millisecond)
	m.released("admin_override")
	m.event("escrow.released", errors.New("x"))
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type brokenCacheRepo struct{}

func (brokenCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func (brokenCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenCacheRepo) Delete(context.Context, ...string) error {
	return errors.New("connection refused")
}

func TestCacheServiceHitMissAndFaults(t *testing.T) {
	metrics := NewMetricsService()
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, metrics, 0, nil)

	var out models.TutorRating
	assert.False(t, cache.Get(context.Background(), "k", &out))
	cache.Set(context.Background(), "k", models.TutorRating{TutorID: "t", ReviewCount: 2}, 0)
	require.True(t, cache.Get(context.Background(), "k", &out))
	assert.Equal(t, 2, out.ReviewCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("miss")))

	require.NoError(t, cache.Invalidate(context.Background(), "k"))
	assert.False(t, cache.Get(context.Background(), "k", &out))

	broken := NewCacheService(brokenCacheRepo{}, nil, time.Minute, nil)
	assert.False(t, broken.Get(context.Background(), "k", &out))
	broken.Set(context.Background(), "k", 1, 0)
	assert.Error(t, broken.Invalidate(context.Background(), "k"))

	var disabled *CacheService
	assert.False(t, disabled.Enabled())
	assert.False(t, disabled.Get(context.Background(), "k", &out))
	assert.NoError(t, disabled.Invalidate(context.Background(), "k"))
}
