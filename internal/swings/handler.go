package swings

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"swing-backend/internal/keys"
	"swing-backend/internal/shared/server/middleware"
	"swing-backend/internal/shared/server/respond"
	"swing-backend/internal/shared/util"
)

// MetricsSource exposes analysis results for the status endpoint.
// Implemented by the analysis repository.
type MetricsSource interface {
	GetBySwingID(ctx context.Context, swingID string) (payload json.RawMessage, found bool, err error)
}

// Handler serves the swing endpoints.
type Handler struct {
	svc     *Service
	metrics MetricsSource
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, metrics MetricsSource) *Handler {
	return &Handler{svc: svc, metrics: metrics}
}

// RegisterRoutes registers swing routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/swings", h.submit)
	rg.GET("/swings", h.list)
	rg.GET("/swings/:id", h.get)
}

func (h *Handler) submit(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid multipart body", nil)
		return
	}

	mode := strings.TrimSpace(c.PostForm("mode"))
	category := strings.TrimSpace(c.PostForm("category"))

	files := collectFiles(form, mode)

	result, err := h.svc.Submit(c.Request.Context(), SubmitInput{
		UserID:    userID,
		Plan:      middleware.UserPlanFromContext(c),
		Mode:      mode,
		Category:  category,
		Files:     files,
		RequestID: c.GetString("requestId"),
	})
	if err != nil {
		h.submitError(c, err)
		return
	}

	if !result.Success {
		respond.JSON(c, http.StatusMultiStatus, gin.H{
			"success": false,
			"error":   "some files failed to upload; retry the failed angles",
			"perFile": result.PerFile,
		})
		return
	}

	c.Set("swingId", result.SwingID)
	payload := gin.H{
		"success":      true,
		"submissionId": result.SwingID,
		"perFile":      result.PerFile,
	}
	if result.Lifecycle != nil {
		lifecycle := gin.H{"retentionDays": result.Lifecycle.RetentionDays}
		if result.Lifecycle.ArchiveDays > 0 {
			lifecycle["archiveDays"] = result.Lifecycle.ArchiveDays
		}
		payload["lifecycle"] = lifecycle
	}
	respond.OK(c, payload)
}

func (h *Handler) submitError(c *gin.Context, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		respond.Error(c, http.StatusBadRequest, "validation_error", validationErr.Msg, validationErr.Details)
		return
	}
	if errors.Is(err, ErrRateLimited) {
		window := 60 * time.Second
		if h.svc.Limiter != nil {
			window = h.svc.Limiter.Window()
		}
		c.Header("Retry-After", strconv.Itoa(int(window/time.Second)))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many uploads; retry later", nil)
		return
	}
	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		details := gin.H{}
		if quotaErr.Decision.Remaining != nil {
			details["remaining"] = quotaErr.Decision.Remaining
		}
		if quotaErr.Decision.Upgrade != nil {
			details["upgradeSuggestion"] = quotaErr.Decision.Upgrade
		}
		respond.Error(c, http.StatusPaymentRequired, "quota_exceeded", quotaErr.Decision.Reason, details)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to accept submission", nil)
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	swingID := c.Param("id")

	swing, err := h.svc.GetForUser(c.Request.Context(), userID, swingID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "swing not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load swing", nil)
		return
	}

	payload := swingResponse(swing)
	if h.metrics != nil && (swing.Status == StatusMetricsReady || swing.Status == StatusCompleted) {
		if metricsPayload, found, err := h.metrics.GetBySwingID(c.Request.Context(), swing.ID); err == nil && found {
			payload["metrics"] = metricsPayload
		}
	}
	respond.OK(c, payload)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	swings, err := h.svc.ListForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list swings", nil)
		return
	}

	out := make([]gin.H, 0, len(swings))
	for _, swing := range swings {
		out = append(out, swingResponse(swing))
	}
	respond.OK(c, gin.H{"swings": out})
}

func swingResponse(swing Swing) gin.H {
	payload := gin.H{
		"swingId":   swing.ID,
		"category":  swing.Category,
		"mode":      swing.Mode,
		"status":    swing.Status,
		"createdAt": swing.CreatedAt.UTC().Format(time.RFC3339),
	}
	if swing.Status == StatusFailed && swing.LastError != "" {
		payload["lastError"] = swing.LastError
	}
	return payload
}

// collectFiles pulls the mode's expected parts out of the form: a single
// "video" part for quick mode, one part per angle for training mode. Parts
// the form does not carry are simply absent; the service validates the set.
func collectFiles(form *multipart.Form, mode string) []FileUpload {
	var files []FileUpload
	add := func(angle string, headers []*multipart.FileHeader) {
		if len(headers) == 0 {
			return
		}
		header := headers[0]
		fileName, err := util.SanitizeFileName(header.Filename)
		if err != nil {
			fileName = "upload"
		}
		files = append(files, FileUpload{
			Angle:       angle,
			FileName:    fileName,
			ContentType: header.Header.Get("Content-Type"),
			SizeBytes:   header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		})
	}

	if mode == keys.ModeTraining {
		for _, angle := range keys.TrainingAngles {
			add(angle, form.File[angle])
		}
		return files
	}
	add("", form.File["video"])
	return files
}
