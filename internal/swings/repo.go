package swings

import (
	"context"
	"time"
)

// Repo persists swings. The count methods double as the quota guard's
// usage source.
type Repo interface {
	Create(ctx context.Context, swing Swing) error
	Get(ctx context.Context, swingID string) (Swing, error)
	GetByUser(ctx context.Context, userID, swingID string) (Swing, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Swing, error)
	UpdateStatus(ctx context.Context, swingID, status, lastError string) error
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountInFlight(ctx context.Context, userID string) (int, error)
}
