package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"social-login/internal/account"
	"social-login/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		AppPort:             "0",
		PublicBaseURL:       "https://app.example.com",
		LoginSuccessURL:     "/",
		LoginProvider:       "google",
		GoogleClientID:      "cid",
		GoogleClientSecret:  "secret",
		ProviderHTTPTimeout: time.Second,
		StoreDriver:         config.StoreDriverMemory,
		CredentialKind:      config.CredentialJWT,
		JWTSecret:           "test-secret",
		JWTIssuer:           "social-login",
		JWTTTL:              time.Minute,
		AuthCookieName:      "auth",
		LoginRatePerMinute:  60,
		LoginRateBurst:      5,
	}
}

func newTestRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	router, err := newRouter(context.Background(), cfg, &Infra{Accounts: account.NewMemoryStore()})
	require.NoError(t, err)
	return router
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouterPublicRoutes(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := serve(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = serve(router, http.MethodGet, "/login/")
	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://accounts.google.com/"))
	assert.Contains(t, loc, "redirect_uri=https%3A%2F%2Fapp.example.com%2Flogin%2Fcallback%2F")

	rec = serve(router, http.MethodGet, "/login/cancelled/")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterProtectsAPI(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := serve(router, http.MethodGet, "/api/me")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterRateLimitsLogin(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRatePerMinute = 1
	cfg.LoginRateBurst = 1
	router := newTestRouter(t, cfg)

	assert.Equal(t, http.StatusFound, serve(router, http.MethodGet, "/login/").Code)
	rec := serve(router, http.MethodGet, "/login/")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Terminal pages are not limited.
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/login/error/").Code)
}

func TestRouterRateLimitIgnoresUntrustedForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRatePerMinute = 1
	cfg.LoginRateBurst = 1

	login := func(router http.Handler, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/login/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	router := newTestRouter(t, cfg)
	assert.Equal(t, http.StatusFound, login(router, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, login(router, "203.0.113.2"))

	// Behind a configured proxy the forwarded address is the client.
	cfg.TrustedProxies = []string{"192.0.2.1"}
	router = newTestRouter(t, cfg)
	assert.Equal(t, http.StatusFound, login(router, "203.0.113.1"))
	assert.Equal(t, http.StatusFound, login(router, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, login(router, "203.0.113.1"))
}

func TestBuildRegistryRequiresLoginProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LoginProvider = "keycloak"

	_, err := buildRegistry(context.Background(), cfg, http.DefaultClient)
	assert.Error(t, err)
}

func TestNewCredentialsNeedsRedisForSessions(t *testing.T) {
	cfg := testConfig()
	cfg.CredentialKind = config.CredentialSession

	_, err := newCredentials(cfg, &Infra{})
	assert.Error(t, err)
}
