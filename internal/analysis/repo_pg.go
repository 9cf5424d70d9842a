package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo persists analysis results in Postgres. It feeds both the worker
// (saving results) and the swing status endpoint (reading them back).
type PGRepo struct {
	DB *sql.DB
}

// SaveResult upserts the metrics payload for a swing. Re-running an analysis
// replaces the previous result.
func (r *PGRepo) SaveResult(ctx context.Context, swingID string, payload json.RawMessage) error {
	const query = `
INSERT INTO swing_metrics (swing_id, payload, analyzer_version, created_at)
VALUES ($1, $2, NULLIF($3, ''), now())
ON CONFLICT (swing_id)
DO UPDATE SET payload = EXCLUDED.payload, analyzer_version = EXCLUDED.analyzer_version, created_at = now()`
	_, err := r.DB.ExecContext(ctx, query, swingID, []byte(payload), analyzerVersion(payload))
	return err
}

// GetBySwingID loads the metrics payload for a swing.
func (r *PGRepo) GetBySwingID(ctx context.Context, swingID string) (json.RawMessage, bool, error) {
	const query = `SELECT payload FROM swing_metrics WHERE swing_id = $1`
	var payload []byte
	err := r.DB.QueryRowContext(ctx, query, swingID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(payload), true, nil
}

// analyzerVersion pulls the version tag out of the payload when the analyzer
// includes one.
func analyzerVersion(payload json.RawMessage) string {
	var probe struct {
		AnalyzerVersion string `json:"analyzerVersion"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.AnalyzerVersion
}
