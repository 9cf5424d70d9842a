package swings

import (
	"errors"
	"fmt"

	"swing-backend/internal/quota"
)

// ErrNotFound indicates the swing does not exist or belongs to another user.
var ErrNotFound = errors.New("swing not found")

// ErrRateLimited indicates the caller exceeded the admission window.
var ErrRateLimited = errors.New("rate limit exceeded")

// ValidationError carries a caller-facing message for a rejected submission.
type ValidationError struct {
	Msg     string
	Details any
}

func (e *ValidationError) Error() string { return e.Msg }

// QuotaError wraps the denial decision from the quota guard.
type QuotaError struct {
	Decision quota.Decision
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.Decision.Reason)
}
