package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// claimBatchSize bounds how many eligible candidates one claim attempt
// inspects before giving up the poll.
const claimBatchSize = 10

// PGRepo implements Repo using Postgres. The claim primitive uses
// transaction-scoped advisory locks keyed by item id, so a worker that dies
// mid-claim releases its lock with the aborted transaction.
type PGRepo struct {
	DB *sql.DB
}

// Enqueue inserts a work ticket for the swing.
func (r *PGRepo) Enqueue(ctx context.Context, swingID string) error {
	const query = `
INSERT INTO queue_items (id, swing_id, created_at)
VALUES ($1, $2, now())`
	_, err := r.DB.ExecContext(ctx, query, uuid.NewString(), swingID)
	return err
}

// Claim atomically acquires the oldest eligible item. It returns (nil, nil)
// when no item is available.
//
// Candidates are walked oldest-first; for each, pg_try_advisory_xact_lock
// decides the race: exactly one of N concurrent claimers gets the lock, and
// the rest skip to the next candidate. The winner leases the item by pushing
// not_before past now, then commits, releasing the lock. Ordering is
// therefore best-effort FIFO, not strict.
func (r *PGRepo) Claim(ctx context.Context, lease time.Duration) (*Item, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	const candidates = `
SELECT id, swing_id, attempts, COALESCE(last_error, ''), created_at
FROM queue_items
WHERE not_before IS NULL OR not_before <= now()
ORDER BY created_at ASC
LIMIT $1`

	rows, err := tx.QueryContext(ctx, candidates, claimBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list claim candidates: %w", err)
	}
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.SwingID, &item.Attempts, &item.LastError, &item.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, item := range items {
		var locked bool
		if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, lockID(item.ID)).Scan(&locked); err != nil {
			return nil, fmt.Errorf("try advisory lock: %w", err)
		}
		if !locked {
			continue
		}

		// Re-check eligibility under the lock: a prior holder may have
		// leased or deleted the item between our snapshot and now.
		const leaseQuery = `
UPDATE queue_items
SET not_before = now() + make_interval(secs => $1)
WHERE id = $2 AND (not_before IS NULL OR not_before <= now())
RETURNING attempts, COALESCE(last_error, '')`
		claimed := item
		err := tx.QueryRowContext(ctx, leaseQuery, lease.Seconds(), item.ID).Scan(&claimed.Attempts, &claimed.LastError)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lease item: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit claim: %w", err)
		}
		return &claimed, nil
	}

	return nil, nil
}

// MarkFailed records a failed attempt and schedules the next one.
func (r *PGRepo) MarkFailed(ctx context.Context, itemID, lastError string, notBefore time.Time) (int, error) {
	const query = `
UPDATE queue_items
SET attempts = attempts + 1, last_error = $1, not_before = $2
WHERE id = $3
RETURNING attempts`
	var attempts int
	if err := r.DB.QueryRowContext(ctx, query, lastError, notBefore, itemID).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrItemGone
		}
		return 0, err
	}
	return attempts, nil
}

// Delete removes a work ticket.
func (r *PGRepo) Delete(ctx context.Context, itemID string) error {
	const query = `DELETE FROM queue_items WHERE id = $1`
	_, err := r.DB.ExecContext(ctx, query, itemID)
	return err
}

// lockID maps an item id onto the advisory lock keyspace.
func lockID(itemID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("queue-item:"))
	_, _ = h.Write([]byte(itemID))
	return int64(h.Sum64())
}

var _ Repo = (*PGRepo)(nil)
