package quota

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"swing-backend/internal/shared/server/middleware"
	"swing-backend/internal/shared/server/respond"
)

// Handler serves the quota inspection endpoint.
type Handler struct {
	usage UsageSource
	now   func() time.Time
}

// NewHandler constructs a Handler. A nil now defaults to time.Now.
func NewHandler(usage UsageSource, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{usage: usage, now: now}
}

// RegisterRoutes registers quota routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/quota", h.get)
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		return
	}
	plan := PlanByName(middleware.UserPlanFromContext(c))

	now := h.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	daily, err := h.usage.CountCreatedSince(c.Request.Context(), userID, dayStart)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unable to load usage", nil)
		return
	}
	inFlight, err := h.usage.CountInFlight(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unable to load usage", nil)
		return
	}
	monthly, err := h.usage.CountCreatedSince(c.Request.Context(), userID, monthStart)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unable to load usage", nil)
		return
	}

	remaining := Remaining{
		DailyUploads: max(plan.DailyUploads-daily, 0),
		Concurrent:   max(plan.ConcurrentCap-inFlight, 0),
		StorageBytes: max(plan.StorageCapBytes-int64(monthly)*averageObjectBytes, 0),
	}

	payload := gin.H{
		"plan": gin.H{
			"name":            plan.Name,
			"dailyUploads":    plan.DailyUploads,
			"concurrentCap":   plan.ConcurrentCap,
			"storageCapBytes": plan.StorageCapBytes,
			"trainingMode":    plan.TrainingMode,
		},
		"usage": gin.H{
			"dailyUploads":   daily,
			"inFlight":       inFlight,
			"monthlyUploads": monthly,
		},
		"remaining": remaining,
	}
	if next, ok := nextTier[plan.Name]; ok {
		payload["upgradePlan"] = next
	}
	respond.OK(c, payload)
}
