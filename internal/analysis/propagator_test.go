package analysis

import (
	"context"
	"errors"
	"testing"

	"swing-backend/internal/swings"
)

type stubNotifier struct {
	calls int
	err   error
}

func (n *stubNotifier) MetricsReady(context.Context, string) error {
	n.calls++
	return n.err
}

func TestOnResultMovesSwingToMetricsReady(t *testing.T) {
	repo := swings.NewMemoryRepo()
	if err := repo.Create(context.Background(), swings.Swing{ID: "swing-1", Status: swings.StatusProcessing}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	notifier := &stubNotifier{}
	p := &StatusPropagator{Swings: repo, Notifier: notifier}

	if err := p.OnResult(context.Background(), "swing-1"); err != nil {
		t.Fatalf("on result: %v", err)
	}

	swing, err := repo.Get(context.Background(), "swing-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if swing.Status != swings.StatusMetricsReady {
		t.Fatalf("expected status %q, got %q", swings.StatusMetricsReady, swing.Status)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected 1 notification, got %d", notifier.calls)
	}
}

func TestOnResultToleratesNotifierFailure(t *testing.T) {
	repo := swings.NewMemoryRepo()
	if err := repo.Create(context.Background(), swings.Swing{ID: "swing-1", Status: swings.StatusProcessing}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p := &StatusPropagator{Swings: repo, Notifier: &stubNotifier{err: errors.New("push channel down")}}

	if err := p.OnResult(context.Background(), "swing-1"); err != nil {
		t.Fatalf("notifier failure must not fail propagation: %v", err)
	}

	swing, _ := repo.Get(context.Background(), "swing-1")
	if swing.Status != swings.StatusMetricsReady {
		t.Fatalf("expected status %q, got %q", swings.StatusMetricsReady, swing.Status)
	}
}

func TestOnResultSurfacesMissingSwing(t *testing.T) {
	p := &StatusPropagator{Swings: swings.NewMemoryRepo()}
	if err := p.OnResult(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing swing")
	}
}
