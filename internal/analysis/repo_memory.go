package analysis

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryRepo is an in-memory result store for tests and db-less dev setups.
type MemoryRepo struct {
	mu      sync.RWMutex
	results map[string]json.RawMessage
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{results: make(map[string]json.RawMessage)}
}

func (r *MemoryRepo) SaveResult(_ context.Context, swingID string, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[swingID] = append(json.RawMessage(nil), payload...)
	return nil
}

func (r *MemoryRepo) GetBySwingID(_ context.Context, swingID string) (json.RawMessage, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	payload, ok := r.results[swingID]
	if !ok {
		return nil, false, nil
	}
	return payload, true, nil
}
