package swings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"swing-backend/internal/keys"
	"swing-backend/internal/quota"
	"swing-backend/internal/ratelimit"
	"swing-backend/internal/shared/server/middleware"
)

type stubMetricsSource struct {
	payload json.RawMessage
	found   bool
	err     error
}

func (s *stubMetricsSource) GetBySwingID(context.Context, string) (json.RawMessage, bool, error) {
	return s.payload, s.found, s.err
}

func newTestRouter(svc *Service, metricsSource MetricsSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Auth())
	NewHandler(svc, metricsSource).RegisterRoutes(api)
	return r
}

func addVideoPart(t *testing.T, w *multipart.Writer, field, fileName, contentType string, size int) {
	t.Helper()
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(bytes.Repeat([]byte("x"), size)); err != nil {
		t.Fatalf("write part: %v", err)
	}
}

func postSwing(t *testing.T, r *gin.Engine, build func(w *multipart.Writer)) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	build(w)
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/swings", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Guest-Id", "tester")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestSubmitEndpointQuick(t *testing.T) {
	svc, repo := newTestService(newFakeStore(), &fakeEnqueuer{})
	r := newTestRouter(svc, nil)

	rec := postSwing(t, r, func(w *multipart.Writer) {
		w.WriteField("mode", "quick")
		w.WriteField("category", "iron")
		addVideoPart(t, w, "video", "swing.mp4", "video/mp4", 256)
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	swingID, _ := body["submissionId"].(string)
	if swingID == "" {
		t.Fatalf("expected submissionId, got %v", body)
	}
	lifecycle, _ := body["lifecycle"].(map[string]any)
	if lifecycle == nil || lifecycle["retentionDays"] != float64(30) {
		t.Fatalf("expected lifecycle in response, got %v", body)
	}

	swing, err := repo.Get(context.Background(), swingID)
	if err != nil {
		t.Fatalf("get swing: %v", err)
	}
	if swing.UserID != "guest:tester" {
		t.Fatalf("expected guest identity, got %q", swing.UserID)
	}
}

func TestSubmitEndpointPartialUpload(t *testing.T) {
	store := newFakeStore()
	store.failSubstr = "overhead"
	svc, _ := newTestService(store, &fakeEnqueuer{})
	r := newTestRouter(svc, nil)

	rec := postSwing(t, r, func(w *multipart.Writer) {
		w.WriteField("mode", "training")
		w.WriteField("category", "iron")
		for _, angle := range keys.TrainingAngles {
			addVideoPart(t, w, angle, angle+".mp4", "video/mp4", 64)
		}
	})

	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Fatalf("expected success=false, got %v", body)
	}
	perFile, _ := body["perFile"].(map[string]any)
	overhead, _ := perFile["overhead"].(map[string]any)
	if overhead == nil || overhead["uploaded"] != false {
		t.Fatalf("expected failed overhead part, got %v", body)
	}
}

func TestSubmitEndpointValidationError(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), &fakeEnqueuer{})
	r := newTestRouter(svc, nil)

	rec := postSwing(t, r, func(w *multipart.Writer) {
		w.WriteField("mode", "quick")
		w.WriteField("category", "laser")
		addVideoPart(t, w, "video", "swing.mp4", "video/mp4", 64)
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitEndpointRateLimited(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), &fakeEnqueuer{})
	svc.Limiter = ratelimit.New(ratelimit.NewMemoryStore(nil), 90*time.Second, 1)
	r := newTestRouter(svc, nil)

	build := func(w *multipart.Writer) {
		w.WriteField("mode", "quick")
		w.WriteField("category", "iron")
		addVideoPart(t, w, "video", "swing.mp4", "video/mp4", 64)
	}
	if rec := postSwing(t, r, build); rec.Code != http.StatusOK {
		t.Fatalf("first submit: expected 200, got %d", rec.Code)
	}

	rec := postSwing(t, r, build)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Retry-After"); got != "90" {
		t.Fatalf("expected Retry-After 90, got %q", got)
	}
}

func TestSubmitEndpointQuotaExceeded(t *testing.T) {
	svc, repo := newTestService(newFakeStore(), &fakeEnqueuer{})
	svc.Guard = quota.NewGuard(repo, nil)
	r := newTestRouter(svc, nil)

	// Guests resolve to the starter plan, which has no training mode.
	rec := postSwing(t, r, func(w *multipart.Writer) {
		w.WriteField("mode", "training")
		w.WriteField("category", "iron")
		for _, angle := range keys.TrainingAngles {
			addVideoPart(t, w, angle, angle+".mp4", "video/mp4", 64)
		}
	})

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	errObj, _ := body["error"].(map[string]any)
	if errObj == nil || errObj["code"] != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded envelope, got %v", body)
	}
	details, _ := errObj["details"].(map[string]any)
	if details == nil || details["upgradeSuggestion"] == nil {
		t.Fatalf("expected upgrade suggestion, got %v", body)
	}
}

func TestSubmitEndpointRequiresIdentity(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), &fakeEnqueuer{})
	r := newTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/swings", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetSwingIncludesMetricsWhenReady(t *testing.T) {
	svc, repo := newTestService(newFakeStore(), &fakeEnqueuer{})
	source := &stubMetricsSource{payload: json.RawMessage(`{"tempo":3.0}`), found: true}
	r := newTestRouter(svc, source)

	seed := Swing{
		ID:        "swing-1",
		UserID:    "guest:tester",
		Mode:      keys.ModeQuick,
		Category:  "iron",
		Status:    StatusMetricsReady,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/swings/swing-1", nil)
	req.Header.Set("X-Guest-Id", "tester")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != StatusMetricsReady {
		t.Fatalf("expected metrics_ready, got %v", body)
	}
	metricsPayload, _ := body["metrics"].(map[string]any)
	if metricsPayload == nil || metricsPayload["tempo"] != float64(3.0) {
		t.Fatalf("expected metrics payload, got %v", body)
	}
}

func TestGetSwingHidesOtherUsers(t *testing.T) {
	svc, repo := newTestService(newFakeStore(), &fakeEnqueuer{})
	r := newTestRouter(svc, nil)

	if err := repo.Create(context.Background(), Swing{ID: "swing-1", UserID: "guest:someone-else", Status: StatusQueued}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/swings/swing-1", nil)
	req.Header.Set("X-Guest-Id", "tester")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign swing, got %d", rec.Code)
	}
}

func TestListSwings(t *testing.T) {
	svc, repo := newTestService(newFakeStore(), &fakeEnqueuer{})
	r := newTestRouter(svc, nil)

	for i := 0; i < 3; i++ {
		err := repo.Create(context.Background(), Swing{
			ID:        fmt.Sprintf("swing-%d", i),
			UserID:    "guest:tester",
			Status:    StatusQueued,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/swings?limit=2", nil)
	req.Header.Set("X-Guest-Id", "tester")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	list, _ := body["swings"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 swings, got %v", body)
	}
	first, _ := list[0].(map[string]any)
	if first["swingId"] != "swing-2" {
		t.Fatalf("expected newest first, got %v", list)
	}
}
