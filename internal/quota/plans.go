package quota

import "strings"

// Plan defines the ceilings for one subscription tier.
type Plan struct {
	Name            string
	DailyUploads    int
	ConcurrentCap   int
	StorageCapBytes int64
	TrainingMode    bool
}

const (
	PlanStarter = "starter"
	PlanPro     = "pro"
	PlanElite   = "elite"
)

var plans = map[string]Plan{
	PlanStarter: {
		Name:            PlanStarter,
		DailyUploads:    3,
		ConcurrentCap:   1,
		StorageCapBytes: 1 << 30,
		TrainingMode:    false,
	},
	PlanPro: {
		Name:            PlanPro,
		DailyUploads:    25,
		ConcurrentCap:   3,
		StorageCapBytes: 10 << 30,
		TrainingMode:    true,
	},
	PlanElite: {
		Name:            PlanElite,
		DailyUploads:    100,
		ConcurrentCap:   10,
		StorageCapBytes: 50 << 30,
		TrainingMode:    true,
	},
}

var nextTier = map[string]string{
	PlanStarter: PlanPro,
	PlanPro:     PlanElite,
}

// PlanByName resolves a plan name, defaulting unknown or empty names to the
// starter tier.
func PlanByName(name string) Plan {
	if plan, ok := plans[strings.ToLower(strings.TrimSpace(name))]; ok {
		return plan
	}
	return plans[PlanStarter]
}
