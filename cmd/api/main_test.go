package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/BradenHooton/gatehouse/internal/config"
	"github.com/BradenHooton/gatehouse/internal/models"
	pkgauth "github.com/BradenHooton/gatehouse/pkg/auth"
	pkglogger "github.com/BradenHooton/gatehouse/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakePrincipalStore struct {
	principals []*models.Principal
	createErr  error
}

func (f *fakePrincipalStore) FindByEitherIdentifier(ctx context.Context, username, qq string) (*models.Principal, error) {
	for _, p := range f.principals {
		if p.Username == username || p.QQValue() == qq {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakePrincipalStore) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	created := *p
	created.ID = int64(len(f.principals) + 1)
	f.principals = append(f.principals, &created)
	return &created, nil
}

func (f *fakePrincipalStore) Ping(ctx context.Context) error {
	return nil
}

func bootstrapWith(t *testing.T, cfg config.BootstrapConfig, env string, store *fakePrincipalStore) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	err := ensureBootstrapPrincipal(
		context.Background(), cfg, env, store,
		pkgauth.NewHasher(bcrypt.MinCost), pkglogger.NewAuditLogger(logger), logger,
	)
	return buf.String(), err
}

func TestEnsureBootstrapPrincipal_CreatesStaffPrincipal(t *testing.T) {
	store := &fakePrincipalStore{}

	logs, err := bootstrapWith(t, config.BootstrapConfig{Username: "warden", Password: "Str0ng!Pass", QQ: "10001"}, "production", store)
	require.NoError(t, err)

	require.Len(t, store.principals, 1)
	p := store.principals[0]
	assert.True(t, p.IsStaff)
	assert.True(t, p.IsActive)
	assert.Equal(t, "10001", p.QQValue())
	assert.True(t, pkgauth.NewHasher(bcrypt.MinCost).Compare(p.PasswordHash, "Str0ng!Pass"))

	assert.Contains(t, logs, `"qq_linked":"true"`)
	assert.Contains(t, logs, `"username":"[REDACTED]"`)
	assert.NotContains(t, logs, "warden")
}

func TestEnsureBootstrapPrincipal_Disabled(t *testing.T) {
	store := &fakePrincipalStore{}

	_, err := bootstrapWith(t, config.BootstrapConfig{}, "development", store)
	require.NoError(t, err)
	assert.Empty(t, store.principals)
}

func TestEnsureBootstrapPrincipal_WeakPasswordRejected(t *testing.T) {
	store := &fakePrincipalStore{}

	_, err := bootstrapWith(t, config.BootstrapConfig{Username: "warden", Password: "weak"}, "development", store)
	require.Error(t, err)
	assert.Empty(t, store.principals)
}

func TestEnsureBootstrapPrincipal_ExistingAndConflict(t *testing.T) {
	cfg := config.BootstrapConfig{Username: "warden", Password: "Str0ng!Pass"}

	existing := &fakePrincipalStore{principals: []*models.Principal{{ID: 1, Username: "warden"}}}
	_, err := bootstrapWith(t, cfg, "development", existing)
	require.NoError(t, err)
	assert.Len(t, existing.principals, 1)

	racing := &fakePrincipalStore{createErr: models.ErrConflict}
	_, err = bootstrapWith(t, cfg, "development", racing)
	assert.NoError(t, err)

	broken := &fakePrincipalStore{createErr: errors.New("disk full")}
	_, err = bootstrapWith(t, cfg, "development", broken)
	assert.Error(t, err)
}
