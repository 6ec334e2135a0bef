package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/gatehouse/internal/models"
	pkghttp "github.com/BradenHooton/gatehouse/pkg/http"
)

const maxLoginBodyBytes = 64 << 10

// LoginServiceInterface defines the interface for the login flow
type LoginServiceInterface interface {
	Login(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error)
}

// LoginHandler handles login requests
type LoginHandler struct {
	service  LoginServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewLoginHandler(service LoginServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// LoginRequest accepts the username or the QQ number in the username field
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=1024"`
}

// LoginResponse is the data of a successful login
type LoginResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// InvalidCredentialsResponse is the data of a 401 login response
type InvalidCredentialsResponse struct {
	RemainingAttempts int `json:"remaining_attempts"`
}

// BlockedResponse is the data of a 429 login response
type BlockedResponse struct {
	RetryAfterMinutes int `json:"retry_after_minutes"`
}

// Login handles POST /api/login with a form or JSON body
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)

	req, err := decodeLoginRequest(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		msg := err.Error()
		if req.Username == "" || req.Password == "" {
			msg = "Username or password missing"
		}
		pkghttp.WriteBadRequest(w, msg)
		return
	}

	outcome, err := h.service.Login(r.Context(), models.LoginAttempt{
		Identifier: req.Username,
		Secret:     req.Password,
		Origin:     pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMissingInput):
			pkghttp.WriteBadRequest(w, "Username or password missing")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Login is temporarily unavailable, please try again later")
		default:
			h.logger.Error("unexpected login error", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	switch outcome.Kind {
	case models.LoginSucceeded:
		pkghttp.WriteSuccess(w, LoginResponse{ID: outcome.PrincipalID, Username: outcome.Username}, "Login successful")
	case models.LoginInvalidCredentials:
		pkghttp.WriteUnauthorized(w,
			fmt.Sprintf("Invalid username or password, %d attempts remaining", outcome.RemainingAttempts),
			InvalidCredentialsResponse{RemainingAttempts: outcome.RemainingAttempts},
		)
	case models.LoginBlocked:
		minutes := outcome.RetryAfterMinutes()
		pkghttp.WriteTooManyRequests(w,
			fmt.Sprintf("Too many failed login attempts, please try again in %d minutes", minutes),
			outcome.RetryAfter,
			BlockedResponse{RetryAfterMinutes: minutes},
		)
	default:
		h.logger.Error("unknown login outcome", slog.String("kind", string(outcome.Kind)))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func decodeLoginRequest(r *http.Request) (LoginRequest, error) {
	var req LoginRequest

	if pkghttp.IsJSONRequest(r) {
		var body struct {
			Username identifierField `json:"username"`
			Password string          `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return req, err
		}
		req.Username = string(body.Username)
		req.Password = body.Password
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	return req, nil
}

// identifierField accepts a JSON string or a bare JSON number, since clients
// commonly send QQ numbers unquoted.
type identifierField string

func (f *identifierField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = identifierField(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("username must be a string or a number: %w", err)
	}
	*f = identifierField(n.String())
	return nil
}
