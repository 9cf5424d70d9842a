package quota

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"swing-backend/internal/shared/server/middleware"
)

type stubUsage struct {
	daily    int
	monthly  int
	inFlight int
	err      error

	calls int
}

// The handler asks for the daily window first and the monthly window second.
func (s *stubUsage) CountCreatedSince(_ context.Context, _ string, _ time.Time) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.calls++
	if s.calls == 1 {
		return s.daily, nil
	}
	return s.monthly, nil
}

func (s *stubUsage) CountInFlight(context.Context, string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.inFlight, nil
}

func quotaRouter(usage UsageSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Auth())
	NewHandler(usage, nil).RegisterRoutes(api)
	return r
}

func TestQuotaEndpoint(t *testing.T) {
	r := quotaRouter(&stubUsage{daily: 1, monthly: 2, inFlight: 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	req.Header.Set("X-Guest-Id", "tester")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Plan struct {
			Name         string `json:"name"`
			TrainingMode bool   `json:"trainingMode"`
		} `json:"plan"`
		Usage struct {
			DailyUploads   int `json:"dailyUploads"`
			InFlight       int `json:"inFlight"`
			MonthlyUploads int `json:"monthlyUploads"`
		} `json:"usage"`
		Remaining   Remaining `json:"remaining"`
		UpgradePlan string    `json:"upgradePlan"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Plan.Name != PlanStarter || body.Plan.TrainingMode {
		t.Fatalf("expected starter plan for guests, got %+v", body.Plan)
	}
	if body.Usage.DailyUploads != 1 || body.Usage.InFlight != 1 || body.Usage.MonthlyUploads != 2 {
		t.Fatalf("unexpected usage: %+v", body.Usage)
	}
	if body.Remaining.DailyUploads != 2 || body.Remaining.Concurrent != 0 {
		t.Fatalf("unexpected remaining: %+v", body.Remaining)
	}
	if body.UpgradePlan != PlanPro {
		t.Fatalf("expected pro upgrade path, got %q", body.UpgradePlan)
	}
}

func TestQuotaEndpointRequiresIdentity(t *testing.T) {
	r := quotaRouter(&stubUsage{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestQuotaEndpointUsageFailure(t *testing.T) {
	r := quotaRouter(&stubUsage{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	req.Header.Set("X-Guest-Id", "tester")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
