package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/gatehouse/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logOnce(t *testing.T, target string, status int) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ipConfig, err := pkghttp.NewIPConfig(nil)
	require.NoError(t, err)

	handler := SecureLogger(logger, ipConfig)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.10:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSecureLogger_LogsRequest(t *testing.T) {
	entry := logOnce(t, "/api/ping?page=2", http.StatusOK)

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "/api/ping?page=2", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(2), entry["bytes"])
	assert.Equal(t, "203.0.113.10", entry["client_ip"])
}

func TestSecureLogger_RedactsCredentialQueries(t *testing.T) {
	entry := logOnce(t, "/api/login?username=userA&password=secret", http.StatusUnauthorized)

	assert.Equal(t, "/api/login?[REDACTED]", entry["path"])
	assert.Equal(t, "WARN", entry["level"])
}

func TestSecureLogger_ServerErrorsLogAtError(t *testing.T) {
	entry := logOnce(t, "/health", http.StatusServiceUnavailable)
	assert.Equal(t, "ERROR", entry["level"])
}
