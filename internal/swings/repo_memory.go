package swings

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for tests and db-less dev setups.
type MemoryRepo struct {
	mu     sync.RWMutex
	swings map[string]Swing
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{swings: make(map[string]Swing)}
}

func (r *MemoryRepo) Create(ctx context.Context, swing Swing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if swing.Status == "" {
		swing.Status = StatusQueued
	}
	if swing.CreatedAt.IsZero() {
		swing.CreatedAt = time.Now().UTC()
	}
	swing.UpdatedAt = swing.CreatedAt
	r.swings[swing.ID] = swing
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, swingID string) (Swing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	swing, ok := r.swings[swingID]
	if !ok {
		return Swing{}, ErrNotFound
	}
	return swing, nil
}

func (r *MemoryRepo) GetByUser(ctx context.Context, userID, swingID string) (Swing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	swing, ok := r.swings[swingID]
	if !ok || swing.UserID != userID {
		return Swing{}, ErrNotFound
	}
	return swing, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Swing, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var out []Swing
	for _, swing := range r.swings {
		if swing.UserID == userID {
			out = append(out, swing)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, swingID, status, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	swing, ok := r.swings[swingID]
	if !ok {
		return ErrNotFound
	}
	swing.Status = status
	if lastError != "" {
		swing.LastError = lastError
	}
	swing.UpdatedAt = time.Now().UTC()
	r.swings[swingID] = swing
	return nil
}

func (r *MemoryRepo) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, swing := range r.swings {
		if swing.UserID == userID && !swing.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) CountInFlight(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, swing := range r.swings {
		if swing.UserID == userID && InFlight(swing.Status) {
			count++
		}
	}
	return count, nil
}

var _ Repo = (*MemoryRepo)(nil)
