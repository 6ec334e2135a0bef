package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/gatehouse/internal/database"
	"github.com/BradenHooton/gatehouse/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const principalColumns = `id, username, qq, nickname, password_hash, is_active, is_staff, is_whitelisted, created_at, updated_at`

// PrincipalRepository reads and provisions principals in postgres
type PrincipalRepository struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepository(db *database.DB) *PrincipalRepository {
	return &PrincipalRepository{pool: db.Pool}
}

// rowScanner interface for scanning principal rows (pgx.Row and *sql.Row both satisfy it)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrincipal(scanner rowScanner) (*models.Principal, error) {
	var p models.Principal

	err := scanner.Scan(
		&p.ID, &p.Username, &p.QQ, &p.Nickname, &p.PasswordHash,
		&p.IsActive, &p.IsStaff, &p.IsWhitelisted,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// FindByEitherIdentifier returns the principal whose username equals username
// or whose QQ equals qq. When both columns match different rows the lowest id wins.
func (r *PrincipalRepository) FindByEitherIdentifier(ctx context.Context, username, qq string) (*models.Principal, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE username = $1 OR qq = $2
		ORDER BY id ASC
		LIMIT 1
	`

	p, err := scanPrincipal(r.pool.QueryRow(ctx, query, username, qq))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return p, nil
}

func (r *PrincipalRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO principals (username, qq, nickname, password_hash, is_active, is_staff, is_whitelisted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + principalColumns

	created, err := scanPrincipal(r.pool.QueryRow(ctx, query,
		p.Username, p.QQ, p.Nickname, p.PasswordHash,
		p.IsActive, p.IsStaff, p.IsWhitelisted,
		now, now,
	))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return created, nil
}

func (r *PrincipalRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
