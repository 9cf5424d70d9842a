package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"swing-backend/internal/quota"
	"swing-backend/internal/shared/auth"
	"swing-backend/internal/shared/config"
	"swing-backend/internal/swings"
)

func testDeps() Deps {
	repo := swings.NewMemoryRepo()
	svc := &swings.Service{
		Repo:                repo,
		AllowedContentTypes: []string{"video/mp4"},
	}
	return Deps{
		Swings: swings.NewHandler(svc, nil),
		Quota:  quota.NewHandler(repo, nil),
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := NewRouter(config.Config{Env: "dev"}, testDeps())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewRouter(config.Config{Env: "dev"}, testDeps())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "uploads_accepted_total") {
		t.Fatalf("expected counter exposition, got %q", rec.Body.String())
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	r := NewRouter(config.Config{Env: "dev"}, testDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/swings", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBearerTokenCarriesPlan(t *testing.T) {
	t.Setenv("SWING_JWT_SECRET", "test-secret")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Plan: quota.PlanPro,
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	r := NewRouter(config.Config{Env: "dev"}, testDeps())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Plan struct {
			Name string `json:"name"`
		} `json:"plan"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Plan.Name != quota.PlanPro {
		t.Fatalf("expected pro plan from token claim, got %q", body.Plan.Name)
	}
}
