package analysis

import (
	"context"
	"fmt"

	"swing-backend/internal/shared/metrics"
	"swing-backend/internal/shared/telemetry"
	"swing-backend/internal/swings"
)

// Notifier receives a signal once a swing's metrics become readable, for
// push channels like websockets or mobile notifications.
type Notifier interface {
	MetricsReady(ctx context.Context, swingID string) error
}

// StatusPropagator moves a swing to metrics_ready once its result row is
// durable, then fires the optional notifier.
type StatusPropagator struct {
	Swings   swings.Repo
	Notifier Notifier
}

// OnResult propagates a persisted result to the swing record.
func (p *StatusPropagator) OnResult(ctx context.Context, swingID string) error {
	if err := p.Swings.UpdateStatus(ctx, swingID, swings.StatusMetricsReady, ""); err != nil {
		return fmt.Errorf("propagate status: %w", err)
	}
	metrics.IncStatusTransitions()
	telemetry.Info("analysis.metrics_ready", map[string]any{"swing_id": swingID})

	if p.Notifier != nil {
		if err := p.Notifier.MetricsReady(ctx, swingID); err != nil {
			// The status is already durable; notification failures must not
			// fail the pipeline.
			telemetry.Warn("analysis.notify_failed", map[string]any{
				"swing_id": swingID,
				"error":    err.Error(),
			})
		}
	}
	return nil
}
