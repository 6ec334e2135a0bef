package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/gatehouse/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptCounterRepository stores attempt counters in postgres for deployments
// that share a database but no cache.
type AttemptCounterRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewAttemptCounterRepository(db *database.DB) *AttemptCounterRepository {
	return &AttemptCounterRepository{pool: db.Pool, now: time.Now}
}

func (r *AttemptCounterRepository) Get(ctx context.Context, key string) (int, error) {
	query := `SELECT count FROM attempt_counters WHERE key = $1 AND expires_at > $2`

	var count int
	err := r.pool.QueryRow(ctx, query, key, r.now().UTC()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return count, nil
}

// Increment upserts the counter in one statement. An expired row restarts at 1.
func (r *AttemptCounterRepository) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	now := r.now().UTC()

	query := `
		INSERT INTO attempt_counters (key, count, expires_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (key) DO UPDATE SET
			count = CASE
				WHEN attempt_counters.expires_at <= $3 THEN 1
				ELSE attempt_counters.count + 1
			END,
			expires_at = EXCLUDED.expires_at
		RETURNING count
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, key, now.Add(ttl), now).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return count, nil
}

func (r *AttemptCounterRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM attempt_counters WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete counter: %w", err)
	}
	return nil
}

// PurgeExpired removes counters whose window has closed
func (r *AttemptCounterRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM attempt_counters WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge counters: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *AttemptCounterRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
