package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/badger-tutors-api/internal/models"
	"github.com/noah-isme/badger-tutors-api/internal/service"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/middleware/requestid"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })...)
	return r
}

func serve(r http.Handler, header, value string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	validator := stubValidator{claims: &models.JWTClaims{Wallet: "w", Role: models.RegistryRoleStudent}}
	r := newTestRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Authorization", "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Authorization", "Bearer bad").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "Authorization", "bearer good").Code)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	validator := stubValidator{claims: &models.JWTClaims{Wallet: "w"}}
	var seen bool
	r := newTestRouter(OptionalJWT(validator), func(c *gin.Context) {
		_, seen = c.Get(ContextUserKey)
	})

	assert.Equal(t, http.StatusNoContent, serve(r, "Authorization", "Bearer bad").Code)
	assert.False(t, seen)
	assert.Equal(t, http.StatusNoContent, serve(r, "Authorization", "Bearer good").Code)
	assert.True(t, seen)
}

func TestRequireRoles(t *testing.T) {
	tutor := stubValidator{claims: &models.JWTClaims{Wallet: "w", Role: models.RegistryRoleTutor}}
	r := newTestRouter(JWT(tutor), RequireRoles(models.RegistryRoleStudent))
	assert.Equal(t, http.StatusForbidden, serve(r, "Authorization", "Bearer good").Code)

	student := stubValidator{claims: &models.JWTClaims{Wallet: "w", Role: models.RegistryRoleStudent}}
	r = newTestRouter(JWT(student), RequireRoles(models.RegistryRoleStudent, models.RegistryRoleTutor))
	assert.Equal(t, http.StatusNoContent, serve(r, "Authorization", "Bearer good").Code)

	r = newTestRouter(RequireRoles(models.RegistryRoleStudent))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "", "").Code)
}

func TestAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-key"), bcrypt.MinCost)
	require.NoError(t, err)
	r := newTestRouter(AdminKey(string(hash)))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, AdminKeyHeader, "guess").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, AdminKeyHeader, "operator-key").Code)

	disabled := newTestRouter(AdminKey(""))
	assert.Equal(t, http.StatusForbidden, serve(disabled, AdminKeyHeader, "operator-key").Code)
}

func TestMetricsMiddlewareRecordsRoute(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newTestRouter(Metrics(metrics))
	serve(r, "", "")

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, family := range families {
		if family.GetName() == "http_requests_total" {
			found = len(family.GetMetric()) == 1
		}
	}
	assert.True(t, found)
}

func TestResponseMeta(t *testing.T) {
	var meta map[string]interface{}
	r := newTestRouter(requestid.Middleware(), WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		SetMeta(c, "count", 3)
		meta = ExtractMeta(c)
	})
	serve(r, "", "")

	assert.Equal(t, true, meta[cacheHitKey])
	assert.Equal(t, 3, meta["count"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.NotEmpty(t, meta["request_id"])
}
