package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/gatehouse/internal/handlers"
	"github.com/BradenHooton/gatehouse/internal/middleware"
	"github.com/BradenHooton/gatehouse/internal/observability"
	pkghttp "github.com/BradenHooton/gatehouse/pkg/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Dependencies holds everything the router needs
type Dependencies struct {
	Logger         *slog.Logger
	IPConfig       *pkghttp.IPConfig
	Env            string
	LoginRateLimit middleware.RateLimitConfig
	RequestTimeout time.Duration

	LoginHandler  *handlers.LoginHandler
	HealthHandler *handlers.HealthHandler
	Metrics       *observability.Metrics
}

// NewRouter builds the HTTP router with the global middleware stack
func NewRouter(deps Dependencies) chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecureLogger(deps.Logger, deps.IPConfig))
	router.Use(middleware.Recoverer(deps.Logger))
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: deps.Env}))
	router.Use(chimiddleware.StripSlashes)
	if deps.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}
	if deps.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(deps.RequestTimeout))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteMethodNotAllowed(w, "Method not allowed")
	})

	RegisterRoutes(router, deps)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	router.Get("/health", deps.HealthHandler.Health)
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Get("/ping", deps.HealthHandler.Ping)
		r.With(middleware.RateLimitByIP(deps.LoginRateLimit, deps.IPConfig)).Post("/login", deps.LoginHandler.Login)
	})
}
