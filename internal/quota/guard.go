// Package quota enforces per-plan upload ceilings. Unlike the rate limiter,
// the guard fails closed: if the usage aggregates cannot be read, admission
// is denied, because unmetered uploads during a data-layer outage are the
// worse failure mode for billing-relevant limits.
package quota

import (
	"context"
	"fmt"
	"time"

	"swing-backend/internal/keys"
	"swing-backend/internal/shared/telemetry"
)

// averageObjectBytes is the planning estimate for one stored clip, used to
// project monthly storage from upload counts.
const averageObjectBytes = 25 << 20

// UsageSource provides the live aggregates the guard evaluates. Implemented
// by the swings repository.
type UsageSource interface {
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountInFlight(ctx context.Context, userID string) (int, error)
}

// Remaining reports headroom for the caller, for client display.
type Remaining struct {
	DailyUploads int   `json:"dailyUploads"`
	Concurrent   int   `json:"concurrent"`
	StorageBytes int64 `json:"storageBytes"`
}

// UpgradeSuggestion names the next tier and the benefit it unlocks.
type UpgradeSuggestion struct {
	Plan    string `json:"plan"`
	Benefit string `json:"benefit"`
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool               `json:"allowed"`
	Reason    string             `json:"reason,omitempty"`
	Remaining *Remaining         `json:"remaining,omitempty"`
	Upgrade   *UpgradeSuggestion `json:"upgradeSuggestion,omitempty"`
}

// Guard evaluates upload admission against plan ceilings.
type Guard struct {
	usage UsageSource
	now   func() time.Time
}

// NewGuard constructs a Guard. A nil now defaults to time.Now.
func NewGuard(usage UsageSource, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{usage: usage, now: now}
}

// CheckUpload evaluates, in order: training capability, daily upload count,
// concurrent in-flight count, and projected monthly storage. It
// short-circuits on the first failed check.
func (g *Guard) CheckUpload(ctx context.Context, userID, planName, mode string) Decision {
	plan := PlanByName(planName)

	if mode == keys.ModeTraining && !plan.TrainingMode {
		return Decision{
			Allowed: false,
			Reason:  "training mode is not included in your plan",
			Upgrade: g.suggest(plan, "training-mode analysis with three camera angles"),
		}
	}

	now := g.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	daily, err := g.usage.CountCreatedSince(ctx, userID, dayStart)
	if err != nil {
		return g.denyUnverifiable(userID, err)
	}
	if daily >= plan.DailyUploads {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("daily upload limit of %d reached", plan.DailyUploads),
			Remaining: &Remaining{
				DailyUploads: 0,
				Concurrent:   plan.ConcurrentCap,
				StorageBytes: plan.StorageCapBytes,
			},
			Upgrade: g.suggest(plan, "a higher daily upload limit"),
		}
	}

	inFlight, err := g.usage.CountInFlight(ctx, userID)
	if err != nil {
		return g.denyUnverifiable(userID, err)
	}
	if inFlight >= plan.ConcurrentCap {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("concurrent processing limit of %d reached", plan.ConcurrentCap),
			Upgrade: g.suggest(plan, "more swings analyzed at once"),
		}
	}

	monthly, err := g.usage.CountCreatedSince(ctx, userID, monthStart)
	if err != nil {
		return g.denyUnverifiable(userID, err)
	}
	estimatedStorage := int64(monthly) * averageObjectBytes
	if estimatedStorage >= plan.StorageCapBytes {
		return Decision{
			Allowed: false,
			Reason:  "monthly storage limit reached",
			Upgrade: g.suggest(plan, "a larger storage allowance"),
		}
	}

	return Decision{
		Allowed: true,
		Remaining: &Remaining{
			DailyUploads: plan.DailyUploads - daily,
			Concurrent:   plan.ConcurrentCap - inFlight,
			StorageBytes: plan.StorageCapBytes - estimatedStorage,
		},
	}
}

func (g *Guard) suggest(plan Plan, benefit string) *UpgradeSuggestion {
	next, ok := nextTier[plan.Name]
	if !ok {
		return nil
	}
	return &UpgradeSuggestion{Plan: next, Benefit: benefit}
}

func (g *Guard) denyUnverifiable(userID string, err error) Decision {
	telemetry.Error("quota.check_failed", map[string]any{
		"user_id": userID,
		"error":   err.Error(),
	})
	return Decision{
		Allowed: false,
		Reason:  "unable to verify quota",
	}
}
