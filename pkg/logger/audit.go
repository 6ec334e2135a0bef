package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event for one login transaction
type AuditEvent struct {
	EventType         string // login_success, login_failed, login_blocked, login_error
	AttemptID         string
	PrincipalID       int64
	Identifier        string // masked before logging
	IPAddress         string
	Success           bool
	FailureReason     string
	RemainingAttempts *int
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogLoginAttempt logs the outcome of an authentication attempt
func (al *AuditLogger) LogLoginAttempt(ctx context.Context, event AuditEvent) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.AttemptID != "" {
		attrs = append(attrs, slog.String("attempt_id", event.AttemptID))
	}
	if event.PrincipalID != 0 {
		attrs = append(attrs, slog.Int64("principal_id", event.PrincipalID))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	if event.RemainingAttempts != nil {
		attrs = append(attrs, slog.Int("remaining_attempts", *event.RemainingAttempts))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogAccountAction logs general account actions such as bootstrap provisioning
func (al *AuditLogger) LogAccountAction(ctx context.Context, eventType string, principalID int64, metadata map[string]string) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.Int64("principal_id", principalID),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
