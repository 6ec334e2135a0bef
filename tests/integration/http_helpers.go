//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/gatehouse/internal/auth"
	"github.com/BradenHooton/gatehouse/internal/database"
	"github.com/BradenHooton/gatehouse/internal/handlers"
	"github.com/BradenHooton/gatehouse/internal/middleware"
	"github.com/BradenHooton/gatehouse/internal/observability"
	"github.com/BradenHooton/gatehouse/internal/repositories"
	"github.com/BradenHooton/gatehouse/internal/routes"
	"github.com/BradenHooton/gatehouse/internal/services"
	pkgauth "github.com/BradenHooton/gatehouse/pkg/auth"
	pkghttp "github.com/BradenHooton/gatehouse/pkg/http"
	pkglogger "github.com/BradenHooton/gatehouse/pkg/logger"
)

// TestServer wraps httptest.Server with the postgres-backed login stack
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
}

// NewTestServer wires principals and attempt counters to postgres
func NewTestServer(db *database.DB, attemptLimit int) (*TestServer, error) {
	logger := quietLogger()

	principals := repositories.NewPrincipalRepository(db)
	counters := repositories.NewAttemptCounterRepository(db)

	tracker := services.NewAttemptTracker(counters, services.AttemptTrackerConfig{
		Limit:     attemptLimit,
		Lockout:   15 * time.Minute,
		KeyPrefix: "test",
	})
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	loginService := services.NewLoginService(
		tracker,
		services.NewAuthenticator(principals, pkgauth.NewHasher(bcrypt.MinCost), logger),
		auth.NewTimingDelay(auth.TimingConfig{}),
		logger,
		pkglogger.NewAuditLogger(logger),
		metrics,
		services.LoginServiceConfig{},
	)

	ipConfig, err := pkghttp.NewIPConfig(nil)
	if err != nil {
		return nil, err
	}

	router := routes.NewRouter(routes.Dependencies{
		Logger:         logger,
		IPConfig:       ipConfig,
		Env:            "test",
		LoginRateLimit: middleware.RateLimitConfig{RequestsPerMinute: 1000},
		RequestTimeout: 30 * time.Second,
		LoginHandler:   handlers.NewLoginHandler(loginService, ipConfig, logger),
		HealthHandler:  handlers.NewHealthHandler(principals, counters),
		Metrics:        metrics,
	})

	return &TestServer{Server: httptest.NewServer(router), DB: db}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Login posts a form-encoded login to the test server
func (ts *TestServer) Login(username, password string) (*http.Response, error) {
	form := url.Values{"username": {username}, "password": {password}}
	return http.Post(ts.Server.URL+"/api/login/", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

// Get issues a GET request against the test server
func (ts *TestServer) Get(path string) (*http.Response, error) {
	return http.Get(ts.Server.URL + path)
}

// ParseEnvelope decodes the response envelope and closes the body
func ParseEnvelope(resp *http.Response) (pkghttp.Envelope, error) {
	defer resp.Body.Close()

	var env pkghttp.Envelope
	err := json.NewDecoder(resp.Body).Decode(&env)
	return env, err
}
