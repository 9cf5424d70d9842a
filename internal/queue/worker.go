package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"swing-backend/internal/shared/metrics"
	"swing-backend/internal/shared/telemetry"
	"swing-backend/internal/swings"
)

// Analyzer produces metrics for a swing's clips.
type Analyzer interface {
	Analyze(ctx context.Context, swing swings.Swing) (json.RawMessage, error)
}

// ResultSink persists analysis results.
type ResultSink interface {
	SaveResult(ctx context.Context, swingID string, payload json.RawMessage) error
}

// Propagator reacts to a persisted result, moving the swing forward and
// firing any downstream notification.
type Propagator interface {
	OnResult(ctx context.Context, swingID string) error
}

// Worker drains the queue: claim, analyze, persist, propagate. Failures are
// retried with exponential backoff until MaxAttempts, then the swing is
// marked failed with the final error preserved.
type Worker struct {
	Queue      Repo
	Swings     swings.Repo
	Analyzer   Analyzer
	Results    ResultSink
	Propagator Propagator

	PollInterval   time.Duration
	MaxAttempts    int
	AnalyzeTimeout time.Duration
	Lease          time.Duration
}

const (
	defaultPollInterval   = 30 * time.Second
	defaultMaxAttempts    = 3
	defaultAnalyzeTimeout = 60 * time.Second
	defaultLease          = 5 * time.Minute
)

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval > 0 {
		return w.PollInterval
	}
	return defaultPollInterval
}

func (w *Worker) maxAttempts() int {
	if w.MaxAttempts > 0 {
		return w.MaxAttempts
	}
	return defaultMaxAttempts
}

func (w *Worker) analyzeTimeout() time.Duration {
	if w.AnalyzeTimeout > 0 {
		return w.AnalyzeTimeout
	}
	return defaultAnalyzeTimeout
}

func (w *Worker) lease() time.Duration {
	if w.Lease > 0 {
		return w.Lease
	}
	return defaultLease
}

// Run polls until ctx is cancelled. After a processed item it immediately
// polls again; the interval only applies when the queue is drained.
func (w *Worker) Run(ctx context.Context) {
	telemetry.Info("worker.start", map[string]any{
		"poll_interval_ms": w.pollInterval().Milliseconds(),
		"max_attempts":     w.maxAttempts(),
	})
	ticker := time.NewTicker(w.pollInterval())
	defer ticker.Stop()

	for {
		processed, err := w.ProcessOne(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			telemetry.Error("worker.process", map[string]any{"error": err.Error()})
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			telemetry.Info("worker.stop", nil)
			return
		case <-ticker.C:
		}
	}
}

// ProcessOne claims and processes a single item. It reports whether an item
// was claimed, so callers can poll eagerly while work remains.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	item, err := w.Queue.Claim(ctx, w.lease())
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	if item == nil {
		return false, nil
	}
	metrics.IncQueueJobsClaimed()

	swing, err := w.Swings.Get(ctx, item.SwingID)
	if err != nil {
		if errors.Is(err, swings.ErrNotFound) {
			// Orphaned ticket; drop it rather than retry forever.
			telemetry.Warn("worker.orphan_item", map[string]any{"item_id": item.ID, "swing_id": item.SwingID})
			return true, w.Queue.Delete(ctx, item.ID)
		}
		return true, w.retryOrFail(ctx, item, swings.Swing{ID: item.SwingID}, fmt.Errorf("load swing: %w", err))
	}

	if err := w.Swings.UpdateStatus(ctx, swing.ID, swings.StatusProcessing, ""); err != nil {
		return true, w.retryOrFail(ctx, item, swing, fmt.Errorf("mark processing: %w", err))
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, w.analyzeTimeout())
	started := time.Now()
	payload, err := w.Analyzer.Analyze(analyzeCtx, swing)
	cancel()
	metrics.ObserveAnalysisDurationMs(float64(time.Since(started).Milliseconds()))
	if err != nil {
		return true, w.retryOrFail(ctx, item, swing, fmt.Errorf("analyze: %w", err))
	}

	if err := w.Results.SaveResult(ctx, swing.ID, payload); err != nil {
		return true, w.retryOrFail(ctx, item, swing, fmt.Errorf("save result: %w", err))
	}
	if err := w.Queue.Delete(ctx, item.ID); err != nil {
		telemetry.Error("worker.delete_item", map[string]any{"item_id": item.ID, "error": err.Error()})
	}
	metrics.IncQueueJobsCompleted()

	if w.Propagator != nil {
		if err := w.Propagator.OnResult(ctx, swing.ID); err != nil {
			// The result is durable; propagation is best-effort here and can
			// be repaired by re-reading the result row.
			telemetry.Error("worker.propagate", map[string]any{"swing_id": swing.ID, "error": err.Error()})
		}
	}

	telemetry.Info("worker.completed", map[string]any{
		"swing_id":    swing.ID,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return true, nil
}

// retryOrFail records the failed attempt. Below the attempt ceiling the item
// is rescheduled with exponential backoff and the swing returns to queued;
// at the ceiling the item is removed and the swing fails with the final
// error preserved.
func (w *Worker) retryOrFail(ctx context.Context, item *Item, swing swings.Swing, cause error) error {
	attempts, err := w.Queue.MarkFailed(ctx, item.ID, cause.Error(), time.Now().Add(backoff(item.Attempts+1)))
	if errors.Is(err, ErrItemGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	if attempts >= w.maxAttempts() {
		if err := w.Queue.Delete(ctx, item.ID); err != nil {
			telemetry.Error("worker.delete_item", map[string]any{"item_id": item.ID, "error": err.Error()})
		}
		metrics.IncQueueJobsFailed()
		telemetry.Error("worker.exhausted", map[string]any{
			"swing_id": swing.ID,
			"attempts": attempts,
			"error":    cause.Error(),
		})
		return w.Swings.UpdateStatus(ctx, swing.ID, swings.StatusFailed, cause.Error())
	}

	metrics.IncQueueJobsRetried()
	telemetry.Warn("worker.retry", map[string]any{
		"swing_id": swing.ID,
		"attempts": attempts,
		"error":    cause.Error(),
	})
	return w.Swings.UpdateStatus(ctx, swing.ID, swings.StatusQueued, cause.Error())
}

// backoff returns the delay before the next attempt: 2^attempts seconds.
func backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 10 {
		attempts = 10
	}
	return time.Duration(1<<attempts) * time.Second
}
