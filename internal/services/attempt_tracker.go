package services

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/gatehouse/internal/models"
)

// CounterStore is a key/value store of integer counters with per-key expiry.
// A missing or expired key reads as zero. Increment must be atomic per key.
type CounterStore interface {
	Get(ctx context.Context, key string) (int, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int, error)
	Delete(ctx context.Context, key string) error
}

// AttemptTrackerConfig holds the throttling thresholds
type AttemptTrackerConfig struct {
	Limit     int           // account threshold; the origin threshold is twice this
	Lockout   time.Duration // sliding window applied on every failure
	KeyPrefix string
}

// AttemptTracker owns the failed-attempt counters for accounts and origins.
type AttemptTracker struct {
	store  CounterStore
	config AttemptTrackerConfig
}

func NewAttemptTracker(store CounterStore, config AttemptTrackerConfig) *AttemptTracker {
	return &AttemptTracker{
		store:  store,
		config: config,
	}
}

func (t *AttemptTracker) Limit() int {
	return t.config.Limit
}

func (t *AttemptTracker) Lockout() time.Duration {
	return t.config.Lockout
}

// Keys derives the account and origin counter keys for a login transaction.
// The identifier is used exactly as supplied.
func (t *AttemptTracker) Keys(identifier, origin string) (accountKey, originKey string) {
	base := "login:attempts:"
	if t.config.KeyPrefix != "" {
		base = t.config.KeyPrefix + ":" + base
	}
	return base + "user:" + identifier, base + "ip:" + origin
}

// IsBlocked reports whether the account has reached the limit or the origin
// has reached twice the limit. It never modifies counters.
func (t *AttemptTracker) IsBlocked(ctx context.Context, accountKey, originKey string) (bool, error) {
	accountCount, err := t.store.Get(ctx, accountKey)
	if err != nil {
		return false, fmt.Errorf("%w: read account counter: %v", models.ErrStoreUnavailable, err)
	}

	originCount, err := t.store.Get(ctx, originKey)
	if err != nil {
		return false, fmt.Errorf("%w: read origin counter: %v", models.ErrStoreUnavailable, err)
	}

	return accountCount >= t.config.Limit || originCount >= 2*t.config.Limit, nil
}

// RecordFailure increments both counters and slides their expiry to now+lockout.
// It returns the account count after the increment.
func (t *AttemptTracker) RecordFailure(ctx context.Context, accountKey, originKey string) (int, error) {
	accountCount, err := t.store.Increment(ctx, accountKey, t.config.Lockout)
	if err != nil {
		return 0, fmt.Errorf("%w: increment account counter: %v", models.ErrStoreUnavailable, err)
	}

	if _, err := t.store.Increment(ctx, originKey, t.config.Lockout); err != nil {
		return accountCount, fmt.Errorf("%w: increment origin counter: %v", models.ErrStoreUnavailable, err)
	}

	return accountCount, nil
}

// ClearAccount removes the account counter. The origin counter is left to expire.
func (t *AttemptTracker) ClearAccount(ctx context.Context, accountKey string) error {
	if err := t.store.Delete(ctx, accountKey); err != nil {
		return fmt.Errorf("%w: clear account counter: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (t *AttemptTracker) Remaining(count int) int {
	if remaining := t.config.Limit - count; remaining > 0 {
		return remaining
	}
	return 0
}
