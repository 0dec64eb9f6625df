package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store guarded by a RWMutex. Expiry is
// checked lazily on read; the optional cleanup worker only reclaims memory.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	defaultTTL time.Duration
	now        func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock replaces the time source, for tests
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty store; a non-positive defaultTTL means DefaultTTL
func NewMemoryStore(defaultTTL time.Duration, opts ...MemoryOption) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	s := &MemoryStore{
		entries:    make(map[string]Entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores token for owner, replacing any previous entry
func (s *MemoryStore) Put(_ context.Context, owner, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[owner] = Entry{
		Owner:     owner,
		Token:     token,
		ExpiresAt: s.now().Add(ttl),
	}
	return nil
}

// Get returns the owner's token while now < expiresAt
func (s *MemoryStore) Get(_ context.Context, owner string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[owner]
	s.mu.RUnlock()

	if !ok || !s.now().Before(entry.ExpiresAt) {
		return "", false, nil
	}
	return entry.Token, true, nil
}

// Remove deletes the owner's entry; removing an absent entry is not an error
func (s *MemoryStore) Remove(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, owner)
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Reset drops every entry
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry)
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// CleanupExpired removes expired entries and returns how many were removed
func (s *MemoryStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for owner, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, owner)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker sweeps expired entries every interval until stopCh closes
func (s *MemoryStore) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.CleanupExpired()
			case <-stopCh:
				return
			}
		}
	}()
}
