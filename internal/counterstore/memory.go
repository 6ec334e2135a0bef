package counterstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type counterEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryStore keeps attempt counters in a bounded LRU. When the capacity is
// reached the least recently touched counter is evicted.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, counterEntry]
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most capacity counters.
// A nil clock defaults to time.Now.
func NewMemoryStore(capacity int, now func() time.Time) (*MemoryStore, error) {
	cache, err := lru.New[string, counterEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter cache: %w", err)
	}

	if now == nil {
		now = time.Now
	}

	return &MemoryStore{cache: cache, now: now}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache.Get(key)
	if !ok {
		return 0, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.cache.Remove(key)
		return 0, nil
	}
	return entry.count, nil
}

// Increment adds one to the counter and moves its expiry to now+ttl.
// An absent or expired counter restarts at 1.
func (s *MemoryStore) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.cache.Get(key)
	if !ok || !now.Before(entry.expiresAt) {
		entry = counterEntry{}
	}

	entry.count++
	entry.expiresAt = now.Add(ttl)
	s.cache.Add(key, entry)

	return entry.count, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Remove(key)
	return nil
}

// PurgeExpired drops every expired counter and returns how many were removed.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for _, key := range s.cache.Keys() {
		entry, ok := s.cache.Peek(key)
		if ok && !now.Before(entry.expiresAt) {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
