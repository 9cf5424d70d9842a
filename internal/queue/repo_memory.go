package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repo for local development and tests. Claim
// holds the repo mutex across the whole candidate walk, which gives the same
// exactly-one-winner guarantee as the advisory-lock path.
type MemoryRepo struct {
	mu    sync.Mutex
	items map[string]*Item

	// now is injectable for lease tests.
	now func() time.Time
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		items: make(map[string]*Item),
		now:   time.Now,
	}
}

func (r *MemoryRepo) Enqueue(_ context.Context, swingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := &Item{
		ID:        uuid.NewString(),
		SwingID:   swingID,
		CreatedAt: r.now(),
	}
	r.items[item.ID] = item
	return nil
}

func (r *MemoryRepo) Claim(_ context.Context, lease time.Duration) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var eligible []*Item
	for _, item := range r.items {
		if item.NotBefore == nil || !item.NotBefore.After(now) {
			eligible = append(eligible, item)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	item := eligible[0]
	expires := now.Add(lease)
	item.NotBefore = &expires

	claimed := *item
	return &claimed, nil
}

func (r *MemoryRepo) MarkFailed(_ context.Context, itemID, lastError string, notBefore time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return 0, ErrItemGone
	}
	item.Attempts++
	item.LastError = lastError
	nb := notBefore
	item.NotBefore = &nb
	return item.Attempts, nil
}

func (r *MemoryRepo) Delete(_ context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, itemID)
	return nil
}

// Len reports the number of outstanding items.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

var _ Repo = (*MemoryRepo)(nil)
