package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"routepulse/internal/handler/api"
	"routepulse/internal/maps"
	"routepulse/internal/middleware"
	"routepulse/internal/repository"
	"routepulse/internal/scheduler"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	sched *scheduler.Scheduler,
	mapsClient *maps.Client,
	logger *zap.Logger,
	apiKey string,
	previewThrottle middleware.PreviewThrottle,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	// Repositories
	repos := &api.Repos{
		Job:      repository.NewJobRepository(db),
		Snapshot: repository.NewSnapshotRepository(db),
	}

	// Handlers
	jobHandler := api.NewJobHandler(repos, sched, logger)
	snapshotHandler := api.NewSnapshotHandler(repos, logger)
	previewHandler := api.NewPreviewHandler(mapsClient, logger)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// API group behind key auth
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))

	apiGroup.GET("/jobs", jobHandler.List)
	apiGroup.POST("/jobs", jobHandler.Create)
	apiGroup.GET("/jobs/:id", jobHandler.Get)
	apiGroup.PUT("/jobs/:id", jobHandler.Update)
	apiGroup.DELETE("/jobs/:id", jobHandler.Delete)

	apiGroup.POST("/jobs/:id/start", jobHandler.Start)
	apiGroup.POST("/jobs/:id/pause", jobHandler.Pause)
	apiGroup.POST("/jobs/:id/resume", jobHandler.Resume)
	apiGroup.POST("/jobs/:id/stop", jobHandler.Stop)
	apiGroup.POST("/jobs/:id/cycle", jobHandler.Cycle)
	apiGroup.GET("/scheduler/active", jobHandler.Active)

	apiGroup.GET("/jobs/:id/snapshots", snapshotHandler.List)
	apiGroup.GET("/jobs/:id/export", snapshotHandler.Export)

	apiGroup.GET("/routes/preview", previewHandler.Preview, middleware.ThrottlePreview(previewThrottle))
	apiGroup.GET("/geocode", previewHandler.Geocode)
	apiGroup.GET("/geocode/reverse", previewHandler.ReverseGeocode)
}
