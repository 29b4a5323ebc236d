package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobhive/jobhive-api/internal/models"
	"github.com/jobhive/jobhive-api/internal/service"
	"github.com/jobhive/jobhive-api/pkg/config"
	"github.com/jobhive/jobhive-api/pkg/ratelimit"
	"github.com/jobhive/jobhive-api/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthService(codec *token.Codec) *service.AuthService {
	return service.NewAuthService(nil, nil, nil, nil, nil, codec, nil, zap.NewNop(), service.AuthConfig{})
}

func protectedRouter(t *testing.T, codec *token.Codec, guards ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	router := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(newAuthService(codec), nil)}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/protected", handlers...)
	return router
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	codec := token.NewCodec("secret", "jobhive")
	router := protectedRouter(t, codec)

	cases := map[string]string{
		"missing":      "",
		"no scheme":    "some-token",
		"wrong scheme": "Basic abc123",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestJWTAcceptsValidAccessToken(t *testing.T) {
	codec := token.NewCodec("secret", "jobhive")
	router := protectedRouter(t, codec)

	access, _, err := codec.Issue("u1", "u@example.com", "SEEKER", token.TypeAccess, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTRejectsRefreshTokenOnProtectedRoute(t *testing.T) {
	codec := token.NewCodec("secret", "jobhive")
	router := protectedRouter(t, codec)

	refresh, _, err := codec.Issue("u1", "u@example.com", "SEEKER", token.TypeRefresh, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRBACAllowsAndDeniesByRole(t *testing.T) {
	codec := token.NewCodec("secret", "jobhive")
	router := protectedRouter(t, codec, RequireRoles(models.RoleAdmin))

	adminToken, _, err := codec.Issue("u1", "a@example.com", "ADMIN", token.TypeAccess, time.Minute)
	require.NoError(t, err)
	seekerToken, _, err := codec.Issue("u2", "s@example.com", "SEEKER", token.TypeAccess, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+seekerToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func rateLimitedRouter(limiter *ratelimit.Limiter, max int) *gin.Engine {
	router := gin.New()
	router.GET("/ping",
		RateLimit(limiter, "auth", time.Minute, max, nil, zap.NewNop()),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	return router
}

func TestRateLimitRejectsTheCrossingRequest(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	router := rateLimitedRouter(limiter, 5)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestGuardsServeConfiguredBuckets(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	guards := NewGuards(limiter, config.RateLimitConfig{
		Auth:   config.RateLimitBucket{Window: time.Minute, Max: 5},
		API:    config.RateLimitBucket{Window: time.Minute, Max: 100},
		Search: config.RateLimitBucket{Window: time.Minute, Max: 2},
		Upload: config.RateLimitBucket{Window: time.Minute, Max: 1},
	}, nil, zap.NewNop())

	router := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/jobs", guards.Bucket("search"), ok)
	router.POST("/resumes", guards.Bucket("upload"), ok)
	router.GET("/other", guards.Bucket("unknown"), ok)

	send := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, send(http.MethodGet, "/jobs").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodGet, "/jobs").Code)

	// Buckets are independent: the search budget being spent leaves upload
	// untouched, and its own budget applies.
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/resumes").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/resumes").Code)

	// Unnamed classes get the general API budget.
	rec := send(http.MethodGet, "/other")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitKeysClientsIndependently(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	router := rateLimitedRouter(limiter, 1)

	first := httptest.NewRequest(http.MethodGet, "/ping", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	blocked := httptest.NewRequest(http.MethodGet, "/ping", nil)
	blocked.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, blocked)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	other := httptest.NewRequest(http.MethodGet, "/ping", nil)
	other.Header.Set("X-Forwarded-For", "198.51.100.7")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type recordingSink struct {
	events []*models.AuditEvent
}

func (s *recordingSink) Create(_ context.Context, event *models.AuditEvent) error {
	s.events = append(s.events, event)
	return nil
}

func TestAuditRecordsOnlySuccessfulRequests(t *testing.T) {
	codec := token.NewCodec("secret", "jobhive")
	sink := &recordingSink{}

	router := gin.New()
	router.POST("/action", JWT(newAuthService(codec), nil), Audit(sink, models.AuditActionLogin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Unauthenticated request fails before the handler; nothing is recorded.
	req := httptest.NewRequest(http.MethodPost, "/action", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sink.events)

	access, _, err := codec.Issue("u1", "u@example.com", "SEEKER", token.TypeAccess, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/action", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, models.AuditActionLogin, event.Action)
	require.NotNil(t, event.UserID)
	assert.Equal(t, "u1", *event.UserID)
	assert.NotEmpty(t, event.IPAddress)
}

func TestRateLimitUsesFirstForwardedHop(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	router := rateLimitedRouter(limiter, 1)

	first := httptest.NewRequest(http.MethodGet, "/ping", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same caller, different proxy chain tail: still one client.
	second := httptest.NewRequest(http.MethodGet, "/ping", nil)
	second.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
