package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and redis-less dev setups.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore constructs a MemoryStore. A nil now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return 0, false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return 0, false, nil
	}
	return entry.count, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, count int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		if entry, ok := s.entries[key]; ok {
			entry.count = count
			return nil
		}
		ttl = time.Minute
	}
	s.entries[key] = &memoryEntry{
		count:     count,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
