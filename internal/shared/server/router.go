package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"swing-backend/internal/quota"
	"swing-backend/internal/shared/config"
	"swing-backend/internal/shared/metrics"
	"swing-backend/internal/shared/server/middleware"
	"swing-backend/internal/swings"
)

// Deps carries the handlers the router mounts.
type Deps struct {
	Swings *swings.Handler
	Quota  *quota.Handler
}

// NewRouter builds the gin engine with the full middleware chain and all
// routes mounted under /api/v1.
func NewRouter(cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSAllowOrigin))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.Auth())
	deps.Swings.RegisterRoutes(api)
	deps.Quota.RegisterRoutes(api)

	return r
}

// Addr formats the listen address for a port.
func Addr(port string) string {
	return ":" + port
}
