package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lsuits/ues-sync/pkg/config"
)

// NewRouter wires the ops surface: health, metrics, run control, and the
// error queue.
func NewRouter(cfg *config.Config, sync *SyncHandler, errors *ErrorHandler, metrics *MetricsHandler) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", metrics.Health)
	r.GET("/metrics", metrics.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.POST("/runs", sync.Trigger)
	api.GET("/runs/latest", sync.Latest)
	api.GET("/errors", errors.List)
	api.POST("/errors/:id/replay", errors.Replay)
	api.DELETE("/errors/:id", errors.Discard)

	return r
}
