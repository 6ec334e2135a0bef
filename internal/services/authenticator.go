package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/gatehouse/internal/models"
	pkgauth "github.com/BradenHooton/gatehouse/pkg/auth"
)

// PrincipalRepository is the read side of the principal store used for login
type PrincipalRepository interface {
	FindByEitherIdentifier(ctx context.Context, username, qq string) (*models.Principal, error)
}

// Authenticator resolves a principal by username or QQ and checks its secret.
type Authenticator struct {
	repo   PrincipalRepository
	hasher *pkgauth.Hasher
	logger *slog.Logger
}

func NewAuthenticator(repo PrincipalRepository, hasher *pkgauth.Hasher, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// Resolve returns the principal whose username or QQ equals identifier.
// When the identifier matches more than one principal the lowest ID wins.
func (a *Authenticator) Resolve(ctx context.Context, identifier string) (*models.Principal, error) {
	p, err := a.repo.FindByEitherIdentifier(ctx, identifier, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%w: principal lookup: %v", models.ErrStoreUnavailable, err)
	}
	return p, nil
}

// Verify compares secret against the principal's stored hash. A nil principal
// or one without a usable hash still pays for a full comparison and fails.
func (a *Authenticator) Verify(p *models.Principal, secret string) bool {
	if p == nil || p.PasswordHash == "" {
		a.hasher.CompareDummy(secret)
		return false
	}
	return a.hasher.Compare(p.PasswordHash, secret)
}

// Authenticate returns the principal when it exists, the secret matches and
// the account is active. Every other combination is ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, secret string) (*models.Principal, error) {
	p, err := a.Resolve(ctx, identifier)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// p may be nil here; Verify still runs so both paths cost one bcrypt compare
	matched := a.Verify(p, secret)
	if p == nil || !matched || !p.IsActive {
		if p != nil && matched && !p.IsActive {
			a.logger.Info("login rejected for inactive principal", slog.Int64("principal_id", p.ID))
		}
		return nil, models.ErrInvalidCredentials
	}

	return p, nil
}
