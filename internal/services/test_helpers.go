package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/gatehouse/internal/models"
)

// MockPrincipalRepository implements PrincipalRepository for testing
type MockPrincipalRepository struct {
	FindByEitherIdentifierFunc func(ctx context.Context, username, qq string) (*models.Principal, error)
}

func (m *MockPrincipalRepository) FindByEitherIdentifier(ctx context.Context, username, qq string) (*models.Principal, error) {
	if m.FindByEitherIdentifierFunc != nil {
		return m.FindByEitherIdentifierFunc(ctx, username, qq)
	}
	return nil, models.ErrNotFound
}

// StaticPrincipalRepository resolves against a fixed slice, lowest ID first
type StaticPrincipalRepository struct {
	Principals []*models.Principal
}

func (r *StaticPrincipalRepository) FindByEitherIdentifier(ctx context.Context, username, qq string) (*models.Principal, error) {
	var match *models.Principal
	for _, p := range r.Principals {
		if p.Username == username || (p.QQ != nil && *p.QQ == qq) {
			if match == nil || p.ID < match.ID {
				match = p
			}
		}
	}
	if match == nil {
		return nil, models.ErrNotFound
	}
	copied := *match
	return &copied, nil
}

// MockCounterStore implements CounterStore for testing. Unset funcs fall back
// to an in-memory map without expiry.
type MockCounterStore struct {
	GetFunc       func(ctx context.Context, key string) (int, error)
	IncrementFunc func(ctx context.Context, key string, ttl time.Duration) (int, error)
	DeleteFunc    func(ctx context.Context, key string) error

	mu     sync.Mutex
	counts map[string]int
}

func (m *MockCounterStore) Get(ctx context.Context, key string) (int, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func (m *MockCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	if m.IncrementFunc != nil {
		return m.IncrementFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *MockCounterStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, key)
	return nil
}

// RecordingLoginMetrics captures metric observations for assertions
type RecordingLoginMetrics struct {
	mu          sync.Mutex
	Outcomes    []string
	StoreErrors []string
}

func (m *RecordingLoginMetrics) ObserveLogin(outcome string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, outcome)
}

func (m *RecordingLoginMetrics) IncStoreError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StoreErrors = append(m.StoreErrors, operation)
}
