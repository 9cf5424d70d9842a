package analysis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoSaveResultUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	payload := json.RawMessage(`{"tempo":3.0,"analyzerVersion":"v2"}`)
	mock.ExpectExec("INSERT INTO swing_metrics").
		WithArgs("swing-1", []byte(payload), "v2").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := &PGRepo{DB: db}
	if err := repo.SaveResult(context.Background(), "swing-1", payload); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetBySwingID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT payload FROM swing_metrics").
		WithArgs("swing-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"tempo":3.0}`)))

	repo := &PGRepo{DB: db}
	payload, found, err := repo.GetBySwingID(context.Background(), "swing-1")
	if err != nil {
		t.Fatalf("GetBySwingID: %v", err)
	}
	if !found || !json.Valid(payload) {
		t.Fatalf("expected valid payload, found=%v payload=%s", found, payload)
	}
}

func TestPGRepoGetBySwingIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT payload FROM swing_metrics").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	repo := &PGRepo{DB: db}
	_, found, err := repo.GetBySwingID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetBySwingID: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestAnalyzerVersionProbe(t *testing.T) {
	if got := analyzerVersion(json.RawMessage(`{"analyzerVersion":"v3"}`)); got != "v3" {
		t.Fatalf("expected v3, got %q", got)
	}
	if got := analyzerVersion(json.RawMessage(`{"tempo":3.0}`)); got != "" {
		t.Fatalf("expected empty version, got %q", got)
	}
	if got := analyzerVersion(json.RawMessage(`not json`)); got != "" {
		t.Fatalf("expected empty version for invalid payload, got %q", got)
	}
}
