package models

import "time"

// LoginAttempt is a single login transaction. It is never persisted.
type LoginAttempt struct {
	Identifier string
	Secret     string
	Origin     string
}

// LoginOutcomeKind enumerates the business outcomes of a login attempt.
type LoginOutcomeKind string

const (
	LoginSucceeded          LoginOutcomeKind = "success"
	LoginInvalidCredentials LoginOutcomeKind = "invalid_credentials"
	LoginBlocked            LoginOutcomeKind = "blocked"
)

// LoginOutcome is the tri-state result handed back to the HTTP layer.
// Only the fields relevant to Kind are populated.
type LoginOutcome struct {
	Kind LoginOutcomeKind

	// Success
	PrincipalID int64
	Username    string

	// InvalidCredentials
	RemainingAttempts int

	// Blocked
	RetryAfter time.Duration
}

// RetryAfterMinutes rounds the retry hint up to whole minutes.
func (o *LoginOutcome) RetryAfterMinutes() int {
	if o.RetryAfter <= 0 {
		return 0
	}
	minutes := int(o.RetryAfter / time.Minute)
	if o.RetryAfter%time.Minute != 0 {
		minutes++
	}
	return minutes
}
