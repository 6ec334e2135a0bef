package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/gatehouse/internal/auth"
	"github.com/BradenHooton/gatehouse/internal/models"
	pkglogger "github.com/BradenHooton/gatehouse/pkg/logger"
	"github.com/google/uuid"
)

// LoginMetrics receives one observation per login transaction
type LoginMetrics interface {
	ObserveLogin(outcome string, duration time.Duration)
	IncStoreError(operation string)
}

type noopLoginMetrics struct{}

func (noopLoginMetrics) ObserveLogin(string, time.Duration) {}
func (noopLoginMetrics) IncStoreError(string) {}

const outcomeError = "error"

// LoginServiceConfig holds the behaviour switches of the login flow
type LoginServiceConfig struct {
	// FailOpen lets logins through when the counter store cannot be read or written.
	FailOpen bool
}

// LoginService runs one login transaction: check the throttle, authenticate,
// then record the failure or clear the account counter.
type LoginService struct {
	tracker       *AttemptTracker
	authenticator *Authenticator
	timing        *auth.TimingDelay
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
	metrics       LoginMetrics
	config        LoginServiceConfig
	newAttemptID  func() string
}

func NewLoginService(
	tracker *AttemptTracker,
	authenticator *Authenticator,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	metrics LoginMetrics,
	config LoginServiceConfig,
) *LoginService {
	if metrics == nil {
		metrics = noopLoginMetrics{}
	}

	return &LoginService{
		tracker:       tracker,
		authenticator: authenticator,
		timing:        timing,
		logger:        logger,
		auditLogger:   auditLogger,
		metrics:       metrics,
		config:        config,
		newAttemptID:  uuid.NewString,
	}
}

// Login returns a business outcome for the attempt. Errors are reserved for
// missing input (models.ErrMissingInput) and store faults (models.ErrStoreUnavailable).
func (s *LoginService) Login(ctx context.Context, attempt models.LoginAttempt) (*models.LoginOutcome, error) {
	start := time.Now()

	if attempt.Identifier == "" || attempt.Secret == "" {
		return nil, models.ErrMissingInput
	}

	attemptID := s.newAttemptID()
	logger := s.logger.With(slog.String("attempt_id", attemptID))
	accountKey, originKey := s.tracker.Keys(attempt.Identifier, attempt.Origin)

	blocked, err := s.tracker.IsBlocked(ctx, accountKey, originKey)
	if err != nil {
		s.metrics.IncStoreError("check")
		if !s.config.FailOpen {
			logger.Error("attempt counters unavailable", slog.Any("error", err))
			return nil, s.fault(ctx, attemptID, attempt, start, err)
		}
		logger.Warn("attempt counters unavailable, proceeding without throttle", slog.Any("error", err))
		blocked = false
	}

	if blocked {
		outcome := &models.LoginOutcome{
			Kind:       models.LoginBlocked,
			RetryAfter: s.tracker.Lockout(),
		}
		s.auditLogger.LogLoginAttempt(ctx, pkglogger.AuditEvent{
			EventType:     "login_blocked",
			AttemptID:     attemptID,
			Identifier:    attempt.Identifier,
			IPAddress:     attempt.Origin,
			FailureReason: "too_many_attempts",
		})
		return s.finish(ctx, start, outcome), nil
	}

	principal, err := s.authenticator.Authenticate(ctx, attempt.Identifier, attempt.Secret)
	switch {
	case err == nil:
		return s.succeed(ctx, logger, attemptID, attempt, accountKey, principal, start), nil
	case errors.Is(err, models.ErrInvalidCredentials):
	default:
		s.metrics.IncStoreError("principal")
		logger.Error("principal store unavailable", slog.Any("error", err))
		return nil, s.fault(ctx, attemptID, attempt, start, err)
	}

	count, err := s.tracker.RecordFailure(ctx, accountKey, originKey)
	if err != nil {
		s.metrics.IncStoreError("record")
		if !s.config.FailOpen {
			logger.Error("failed to record login failure", slog.Any("error", err))
			return nil, s.fault(ctx, attemptID, attempt, start, err)
		}
		logger.Warn("failed to record login failure, proceeding", slog.Any("error", err))
	}

	remaining := s.tracker.Remaining(count)
	outcome := &models.LoginOutcome{
		Kind:              models.LoginInvalidCredentials,
		RemainingAttempts: remaining,
	}
	s.auditLogger.LogLoginAttempt(ctx, pkglogger.AuditEvent{
		EventType:         "login_failed",
		AttemptID:         attemptID,
		Identifier:        attempt.Identifier,
		IPAddress:         attempt.Origin,
		FailureReason:     "invalid_credentials",
		RemainingAttempts: &remaining,
	})
	return s.finish(ctx, start, outcome), nil
}

func (s *LoginService) succeed(ctx context.Context, logger *slog.Logger, attemptID string, attempt models.LoginAttempt, accountKey string, p *models.Principal, start time.Time) *models.LoginOutcome {
	// the login stands even if the counter cannot be cleared; it will expire
	if err := s.tracker.ClearAccount(ctx, accountKey); err != nil {
		s.metrics.IncStoreError("clear")
		logger.Warn("failed to clear account counter", slog.Any("error", err))
	}

	s.auditLogger.LogLoginAttempt(ctx, pkglogger.AuditEvent{
		EventType:   "login_success",
		AttemptID:   attemptID,
		PrincipalID: p.ID,
		Identifier:  attempt.Identifier,
		IPAddress:   attempt.Origin,
		Success:     true,
	})

	return s.finish(ctx, start, &models.LoginOutcome{
		Kind:        models.LoginSucceeded,
		PrincipalID: p.ID,
		Username:    p.Username,
	})
}

func (s *LoginService) finish(ctx context.Context, start time.Time, outcome *models.LoginOutcome) *models.LoginOutcome {
	s.timing.WaitFrom(ctx, start, outcome.Kind == models.LoginSucceeded)
	s.metrics.ObserveLogin(string(outcome.Kind), time.Since(start))
	return outcome
}

func (s *LoginService) fault(ctx context.Context, attemptID string, attempt models.LoginAttempt, start time.Time, err error) error {
	s.auditLogger.LogLoginAttempt(ctx, pkglogger.AuditEvent{
		EventType:     "login_error",
		AttemptID:     attemptID,
		Identifier:    attempt.Identifier,
		IPAddress:     attempt.Origin,
		FailureReason: "store_unavailable",
	})
	s.metrics.ObserveLogin(outcomeError, time.Since(start))
	return err
}
