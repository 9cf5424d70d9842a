package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"swing-backend/internal/shared/telemetry"
	"swing-backend/internal/swings"
)

const retryBaseDelay = 300 * time.Millisecond

// HTTPClient calls the analyzer service over HTTP. One transient failure is
// retried after a short delay; everything else surfaces to the worker, which
// owns the broader retry schedule.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient constructs an HTTPClient.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ANALYZER_URL is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type analyzeRequest struct {
	SwingID    string            `json:"swingId"`
	Mode       string            `json:"mode"`
	Category   string            `json:"category"`
	ObjectKeys map[string]string `json:"objectKeys"`
}

// Analyze submits the swing's clips for analysis and returns the raw metrics
// payload.
func (c *HTTPClient) Analyze(ctx context.Context, swing swings.Swing) (json.RawMessage, error) {
	payload, err := c.analyzeOnce(ctx, swing)
	if err == nil || !shouldRetry(err) {
		return payload, err
	}

	telemetry.Warn("analysis.retry", map[string]any{
		"swing_id": swing.ID,
		"error":    err.Error(),
	})
	select {
	case <-time.After(retryBaseDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.analyzeOnce(ctx, swing)
}

func (c *HTTPClient) analyzeOnce(ctx context.Context, swing swings.Swing) (json.RawMessage, error) {
	body, err := json.Marshal(analyzeRequest{
		SwingID:    swing.ID,
		Mode:       swing.Mode,
		Category:   swing.Category,
		ObjectKeys: swing.ObjectKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read analyzer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer http status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON from analyzer")
	}
	return raw, nil
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "client.timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
