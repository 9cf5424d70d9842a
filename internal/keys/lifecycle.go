package keys

// LifecycleRule declares the retention policy for one key prefix. The rules
// are data for the object store's own lifecycle engine; nothing in this
// backend enforces them directly.
type LifecycleRule struct {
	Prefix        string `json:"prefix"`
	RetentionDays int    `json:"retentionDays"`
	// ArchiveDays is the day count after which objects move to the cold
	// tier; zero means no archival step.
	ArchiveDays int `json:"archiveDays,omitempty"`
}

// LifecycleRules returns the declarative retention policy per prefix.
func LifecycleRules() []LifecycleRule {
	return []LifecycleRule{
		{Prefix: quickPrefix, RetentionDays: 30},
		{Prefix: trainPrefix, RetentionDays: 365, ArchiveDays: 90},
	}
}

// LifecycleRuleFor returns the rule applying to the given key, or nil when
// the key matches no managed prefix.
func LifecycleRuleFor(key string) *LifecycleRule {
	for _, rule := range LifecycleRules() {
		if len(key) >= len(rule.Prefix) && key[:len(rule.Prefix)] == rule.Prefix {
			r := rule
			return &r
		}
	}
	return nil
}
