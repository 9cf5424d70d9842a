package swings

import "time"

// Swing lifecycle statuses.
const (
	StatusQueued       = "queued"
	StatusProcessing   = "processing"
	StatusMetricsReady = "metrics_ready"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
)

// Swing is the durable record of one accepted submission: one clip for
// quick mode, three angle-tagged clips for training mode.
type Swing struct {
	ID              string
	UserID          string
	Category        string
	Mode            string
	Status          string
	ObjectKeys      map[string]string
	UploadSessionID string
	ContentHash     string
	SizeBytes       int64
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InFlight reports whether the swing still occupies a concurrent-processing
// slot for quota purposes.
func InFlight(status string) bool {
	return status == StatusQueued || status == StatusProcessing
}
