package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/gatehouse/pkg/http"
)

// Pinger is implemented by the principal and counter stores
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and dependency health endpoints
type HealthHandler struct {
	principals Pinger
	counters   Pinger
	timeout    time.Duration
}

func NewHealthHandler(principals, counters Pinger) *HealthHandler {
	return &HealthHandler{
		principals: principals,
		counters:   counters,
		timeout:    2 * time.Second,
	}
}

// Ping handles GET /api/ping
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteSuccess(w, map[string]bool{"pong": true}, "OK")
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := map[string]string{
		"principal_store": check(ctx, h.principals),
		"counter_store":   check(ctx, h.counters),
	}

	for _, s := range status {
		if s != "ok" {
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "unhealthy", status)
			return
		}
	}
	pkghttp.WriteSuccess(w, status, "healthy")
}

func check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "ok"
	}
	if err := p.Ping(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}
