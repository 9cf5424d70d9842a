package queue

import (
	"context"
	"errors"
	"time"
)

// ErrItemGone is returned when an operation targets an item that no longer
// exists, usually because another worker completed or exhausted it.
var ErrItemGone = errors.New("queue item gone")

// Repo persists queue items and owns the claim primitive.
//
// Claim must be race-safe under concurrent workers: for a given item exactly
// one claimer wins, and losers move on to the next candidate. A claim places
// a lease (not_before) on the item rather than holding a lock for the item's
// lifetime, so a crashed worker's item becomes eligible again once the lease
// expires.
type Repo interface {
	Enqueue(ctx context.Context, swingID string) error
	Claim(ctx context.Context, lease time.Duration) (*Item, error)
	MarkFailed(ctx context.Context, itemID, lastError string, notBefore time.Time) (attempts int, err error)
	Delete(ctx context.Context, itemID string) error
}
