package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/gatehouse/internal/models"
	pkghttp "github.com/BradenHooton/gatehouse/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoginHandler(t *testing.T, fn func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error)) *LoginHandler {
	t.Helper()

	ipConfig, err := pkghttp.NewIPConfig(nil)
	require.NoError(t, err)
	return NewLoginHandler(&MockLoginService{LoginFunc: fn}, ipConfig, discardLogger())
}

func TestLoginHandler_Success(t *testing.T) {
	var got models.LoginAttempt
	h := newTestLoginHandler(t, func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
		got = attempt
		return &models.LoginOutcome{Kind: models.LoginSucceeded, PrincipalID: 7, Username: "userA"}, nil
	})

	req := NewFormRequest(http.MethodPost, "/api/login", url.Values{"username": {"123456"}, "password": {"Passw0rd!"}})
	req.RemoteAddr = "203.0.113.10:51234"
	w := httptest.NewRecorder()

	h.Login(w, req)

	env := decodeEnvelope(t, w, http.StatusOK)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"id": float64(7), "username": "userA"}, env.Data)
	assert.Equal(t, models.LoginAttempt{Identifier: "123456", Secret: "Passw0rd!", Origin: "203.0.113.10"}, got)
}

func TestLoginHandler_AcceptsJSON(t *testing.T) {
	var got models.LoginAttempt
	h := newTestLoginHandler(t, func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
		got = attempt
		return &models.LoginOutcome{Kind: models.LoginSucceeded, PrincipalID: 1, Username: "userA"}, nil
	})

	w := httptest.NewRecorder()
	h.Login(w, NewJSONRequest(t, http.MethodPost, "/api/login", LoginRequest{Username: "userA", Password: "Passw0rd!"}))

	decodeEnvelope(t, w, http.StatusOK)
	assert.Equal(t, "userA", got.Identifier)
	assert.Equal(t, "Passw0rd!", got.Secret)
}

func TestLoginHandler_AcceptsNumericQQInJSON(t *testing.T) {
	var got models.LoginAttempt
	h := newTestLoginHandler(t, func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
		got = attempt
		return &models.LoginOutcome{Kind: models.LoginSucceeded, PrincipalID: 1, Username: "userA"}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username": 123456, "password": "Passw0rd!"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Login(w, req)

	decodeEnvelope(t, w, http.StatusOK)
	assert.Equal(t, "123456", got.Identifier)
}

func TestLoginHandler_RejectsNonScalarUsernameInJSON(t *testing.T) {
	h := newTestLoginHandler(t, nil)

	for _, body := range []string{
		`{"username": true, "password": "x"}`,
		`{"username": ["userA"], "password": "x"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.Login(w, req)

		env := decodeEnvelope(t, w, http.StatusBadRequest)
		assert.Equal(t, "Invalid request body", env.Message, body)
	}
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	h := newTestLoginHandler(t, func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
		return &models.LoginOutcome{Kind: models.LoginInvalidCredentials, RemainingAttempts: 2}, nil
	})

	w := httptest.NewRecorder()
	h.Login(w, NewFormRequest(http.MethodPost, "/api/login", url.Values{"username": {"userA"}, "password": {"wrong"}}))

	env := decodeEnvelope(t, w, http.StatusUnauthorized)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "2 attempts remaining")
	assert.Equal(t, map[string]any{"remaining_attempts": float64(2)}, env.Data)
}

func TestLoginHandler_Blocked(t *testing.T) {
	h := newTestLoginHandler(t, func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
		return &models.LoginOutcome{Kind: models.LoginBlocked, RetryAfter: 15 * time.Minute}, nil
	})

	w := httptest.NewRecorder()
	h.Login(w, NewFormRequest(http.MethodPost, "/api/login", url.Values{"username": {"userA"}, "password": {"x"}}))

	env := decodeEnvelope(t, w, http.StatusTooManyRequests)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "15 minutes")
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
	assert.Equal(t, map[string]any{"retry_after_minutes": float64(15)}, env.Data)
}

func TestLoginHandler_MissingInput(t *testing.T) {
	called := false
	h := newTestLoginHandler(t, func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
		called = true
		return nil, nil
	})

	tests := []struct {
		name string
		form url.Values
	}{
		{"no fields", url.Values{}},
		{"no password", url.Values{"username": {"userA"}}},
		{"no username", url.Values{"password": {"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Login(w, NewFormRequest(http.MethodPost, "/api/login", tt.form))

			env := decodeEnvelope(t, w, http.StatusBadRequest)
			assert.Equal(t, "Username or password missing", env.Message)
			assert.Nil(t, env.Data)
		})
	}
	assert.False(t, called, "service must not run without input")
}

func TestLoginHandler_UsernameTooLong(t *testing.T) {
	h := newTestLoginHandler(t, nil)

	w := httptest.NewRecorder()
	h.Login(w, NewFormRequest(http.MethodPost, "/api/login", url.Values{
		"username": {strings.Repeat("u", 151)},
		"password": {"x"},
	}))

	env := decodeEnvelope(t, w, http.StatusBadRequest)
	assert.Contains(t, env.Message, "maximum of 150")
}

func TestLoginHandler_MalformedJSON(t *testing.T) {
	h := newTestLoginHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	h.Login(w, req)

	env := decodeEnvelope(t, w, http.StatusBadRequest)
	assert.Equal(t, "Invalid request body", env.Message)
}

func TestLoginHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"missing input", models.ErrMissingInput, http.StatusBadRequest},
		{"store unavailable", fmt.Errorf("%w: redis down", models.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestLoginHandler(t, func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
				return nil, tt.err
			})

			w := httptest.NewRecorder()
			h.Login(w, NewFormRequest(http.MethodPost, "/api/login", url.Values{"username": {"userA"}, "password": {"x"}}))

			env := decodeEnvelope(t, w, tt.status)
			assert.False(t, env.Success)
			assert.NotContains(t, env.Message, "redis")
		})
	}
}

func TestLoginHandler_OriginFromTrustedProxy(t *testing.T) {
	var got string
	ipConfig, err := pkghttp.NewIPConfig([]string{"10.0.0.1"})
	require.NoError(t, err)
	h := NewLoginHandler(&MockLoginService{LoginFunc: func(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
		got = attempt.Origin
		return &models.LoginOutcome{Kind: models.LoginInvalidCredentials}, nil
	}}, ipConfig, discardLogger())

	req := NewFormRequest(http.MethodPost, "/api/login", url.Values{"username": {"userA"}, "password": {"x"}})
	req.RemoteAddr = "10.0.0.1:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.23, 10.0.0.1")

	h.Login(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.23", got)
}
