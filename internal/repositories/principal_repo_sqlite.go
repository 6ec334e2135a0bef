package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BradenHooton/gatehouse/internal/database"
	"github.com/BradenHooton/gatehouse/internal/models"
)

// SQLitePrincipalRepository is the principal store for single-node deployments
type SQLitePrincipalRepository struct {
	db *sql.DB
}

func NewSQLitePrincipalRepository(db *sql.DB) *SQLitePrincipalRepository {
	return &SQLitePrincipalRepository{db: db}
}

func (r *SQLitePrincipalRepository) FindByEitherIdentifier(ctx context.Context, username, qq string) (*models.Principal, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE username = ? OR qq = ?
		ORDER BY id ASC
		LIMIT 1
	`

	p, err := scanPrincipal(r.db.QueryRowContext(ctx, query, username, qq))
	if err != nil {
		return nil, database.MapSQLiteError(err)
	}
	return p, nil
}

func (r *SQLitePrincipalRepository) GetByID(ctx context.Context, id int64) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = ?`

	p, err := scanPrincipal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, database.MapSQLiteError(err)
	}
	return p, nil
}

func (r *SQLitePrincipalRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO principals (username, qq, nickname, password_hash, is_active, is_staff, is_whitelisted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		p.Username, p.QQ, p.Nickname, p.PasswordHash,
		p.IsActive, p.IsStaff, p.IsWhitelisted,
		now, now,
	)
	if err != nil {
		return nil, database.MapSQLiteError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *SQLitePrincipalRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
