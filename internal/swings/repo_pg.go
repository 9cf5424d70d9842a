package swings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new swing.
func (r *PGRepo) Create(ctx context.Context, swing Swing) error {
	const query = `
INSERT INTO swings (
    id,
    user_id,
    category,
    mode,
    status,
    object_keys,
    upload_session_id,
    content_hash,
    size_bytes,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	status := swing.Status
	if status == "" {
		status = StatusQueued
	}
	keysJSON, err := json.Marshal(swing.ObjectKeys)
	if err != nil {
		return fmt.Errorf("marshal object keys: %w", err)
	}
	var contentHash sql.NullString
	if swing.ContentHash != "" {
		contentHash = sql.NullString{String: swing.ContentHash, Valid: true}
	}
	createdAt := swing.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		swing.ID,
		swing.UserID,
		swing.Category,
		swing.Mode,
		status,
		keysJSON,
		swing.UploadSessionID,
		contentHash,
		swing.SizeBytes,
		createdAt,
	)
	return err
}

// Get fetches a swing by ID regardless of owner, for the worker path.
func (r *PGRepo) Get(ctx context.Context, swingID string) (Swing, error) {
	const query = `
SELECT id, user_id, category, mode, status, object_keys, upload_session_id, content_hash, size_bytes, last_error, created_at, updated_at
FROM swings
WHERE id = $1
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, swingID))
}

// GetByUser fetches a swing by ID scoped to its owner.
func (r *PGRepo) GetByUser(ctx context.Context, userID, swingID string) (Swing, error) {
	const query = `
SELECT id, user_id, category, mode, status, object_keys, upload_session_id, content_hash, size_bytes, last_error, created_at, updated_at
FROM swings
WHERE user_id = $1 AND id = $2
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID, swingID))
}

// ListByUser lists swings ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Swing, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, user_id, category, mode, status, object_keys, upload_session_id, content_hash, size_bytes, last_error, created_at, updated_at
FROM swings
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Swing
	for rows.Next() {
		swing, err := scanSwing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, swing)
	}
	return out, rows.Err()
}

// UpdateStatus sets the swing's status and, when non-empty, its last error.
func (r *PGRepo) UpdateStatus(ctx context.Context, swingID, status, lastError string) error {
	const query = `
UPDATE swings
SET status = $1, last_error = NULLIF($2, ''), updated_at = now()
WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, status, lastError, swingID)
	if err != nil {
		return err
	}
	if updated, err := res.RowsAffected(); err == nil && updated == 0 {
		return ErrNotFound
	}
	return nil
}

// CountCreatedSince counts swings created by the user at or after since.
func (r *PGRepo) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM swings
WHERE user_id = $1 AND created_at >= $2`
	var count int
	if err := r.DB.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountInFlight counts the user's swings still queued or processing.
func (r *PGRepo) CountInFlight(ctx context.Context, userID string) (int, error) {
	const query = `
SELECT COUNT(*)
FROM swings
WHERE user_id = $1 AND status IN ('queued', 'processing')`
	var count int
	if err := r.DB.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanOne(row rowScanner) (Swing, error) {
	swing, err := scanSwing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Swing{}, ErrNotFound
		}
		return Swing{}, err
	}
	return swing, nil
}

func scanSwing(row rowScanner) (Swing, error) {
	var swing Swing
	var keysJSON []byte
	var contentHash sql.NullString
	var lastError sql.NullString
	if err := row.Scan(
		&swing.ID,
		&swing.UserID,
		&swing.Category,
		&swing.Mode,
		&swing.Status,
		&keysJSON,
		&swing.UploadSessionID,
		&contentHash,
		&swing.SizeBytes,
		&lastError,
		&swing.CreatedAt,
		&swing.UpdatedAt,
	); err != nil {
		return Swing{}, err
	}
	if len(keysJSON) > 0 {
		if err := json.Unmarshal(keysJSON, &swing.ObjectKeys); err != nil {
			return Swing{}, fmt.Errorf("unmarshal object keys: %w", err)
		}
	}
	if contentHash.Valid {
		swing.ContentHash = contentHash.String
	}
	if lastError.Valid {
		swing.LastError = lastError.String
	}
	return swing, nil
}

var _ Repo = (*PGRepo)(nil)
