package routes

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/gatehouse/internal/auth"
	"github.com/BradenHooton/gatehouse/internal/counterstore"
	"github.com/BradenHooton/gatehouse/internal/handlers"
	"github.com/BradenHooton/gatehouse/internal/middleware"
	"github.com/BradenHooton/gatehouse/internal/models"
	"github.com/BradenHooton/gatehouse/internal/observability"
	"github.com/BradenHooton/gatehouse/internal/services"
	pkgauth "github.com/BradenHooton/gatehouse/pkg/auth"
	pkghttp "github.com/BradenHooton/gatehouse/pkg/http"
	pkglogger "github.com/BradenHooton/gatehouse/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Passw0rd!"

func newTestServer(t *testing.T, limit int) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := pkgauth.NewHasher(bcrypt.MinCost)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	qq := "123456"
	repo := &services.StaticPrincipalRepository{Principals: []*models.Principal{
		{ID: 1, Username: "userA", QQ: &qq, PasswordHash: hash, IsActive: true},
	}}

	store, err := counterstore.NewMemoryStore(100, nil)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	tracker := services.NewAttemptTracker(store, services.AttemptTrackerConfig{
		Limit:     limit,
		Lockout:   15 * time.Minute,
		KeyPrefix: "mctp",
	})
	loginService := services.NewLoginService(
		tracker,
		services.NewAuthenticator(repo, hasher, logger),
		auth.NewTimingDelay(auth.TimingConfig{}),
		logger,
		pkglogger.NewAuditLogger(logger),
		metrics,
		services.LoginServiceConfig{},
	)

	ipConfig, err := pkghttp.NewIPConfig(nil)
	require.NoError(t, err)

	return NewRouter(Dependencies{
		Logger:         logger,
		IPConfig:       ipConfig,
		Env:            "development",
		LoginRateLimit: middleware.RateLimitConfig{RequestsPerMinute: 100},
		LoginHandler:   handlers.NewLoginHandler(loginService, ipConfig, logger),
		HealthHandler:  handlers.NewHealthHandler(nil, store),
		Metrics:        metrics,
	})
}

func postLogin(t *testing.T, srv http.Handler, path, username, password string) (*httptest.ResponseRecorder, pkghttp.Envelope) {
	t.Helper()

	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var env pkghttp.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestLogin_ThrottleScenario(t *testing.T) {
	srv := newTestServer(t, 3)

	for _, remaining := range []float64{2, 1, 0} {
		w, env := postLogin(t, srv, "/api/login/", "userA", "wrong")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, env.Success)
		assert.Equal(t, map[string]any{"remaining_attempts": remaining}, env.Data)
	}

	w, env := postLogin(t, srv, "/api/login/", "userA", "wrong")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))

	w, _ = postLogin(t, srv, "/api/login/", "userA", testPassword)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "correct password is still locked out")
}

func TestLogin_ByUsernameAndQQ(t *testing.T) {
	srv := newTestServer(t, 5)

	w, byUsername := postLogin(t, srv, "/api/login", "userA", testPassword)
	require.Equal(t, http.StatusOK, w.Code)

	w, byQQ := postLogin(t, srv, "/api/login", "123456", testPassword)
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, byQQ.Success)
	assert.Equal(t, byUsername.Data, byQQ.Data)
	assert.Equal(t, map[string]any{"id": float64(1), "username": "userA"}, byQQ.Data)
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, 5)

	for _, path := range []string{"/api/ping", "/api/ping/"} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.JSONEq(t, `{"success":true,"data":{"pong":true},"message":"OK"}`, w.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, 5)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	postLogin(t, srv, "/api/login", "userA", "wrong")

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `gatehouse_login_attempts_total{outcome="invalid_credentials"} 1`)
	assert.Contains(t, w.Body.String(), `gatehouse_http_requests_total{method="POST",route="/api/login",status="401"} 1`)
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	srv := newTestServer(t, 5)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/login", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
