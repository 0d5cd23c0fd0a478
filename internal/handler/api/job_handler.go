package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"routepulse/internal/maps"
	"routepulse/internal/models"
	"routepulse/internal/scheduler"
)

// JobHandler serves collection job CRUD and lifecycle endpoints.
type JobHandler struct {
	repos     *Repos
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

func NewJobHandler(repos *Repos, sched *scheduler.Scheduler, logger *zap.Logger) *JobHandler {
	return &JobHandler{repos: repos, scheduler: sched, logger: logger}
}

// List handles GET /api/jobs.
func (h *JobHandler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	page := queryInt(c, "page", 1)
	status := c.QueryParam("status")

	jobs, total, err := h.repos.Job.FindAll(limit, page, status)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to list jobs")
	}
	return successResponse(c, "ok", paginatedResponse(jobs, total, page, limit))
}

// Get handles GET /api/jobs/:id.
func (h *JobHandler) Get(c echo.Context) error {
	job, err := h.repos.Job.FindByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "Job not found")
		}
		h.logger.Error("Failed to load job", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to load job")
	}
	return successResponse(c, "ok", job)
}

// Create handles POST /api/jobs.
func (h *JobHandler) Create(c echo.Context) error {
	var req models.CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.StartLocation) == "" || strings.TrimSpace(req.EndLocation) == "" {
		return errorResponse(c, http.StatusBadRequest, "start_location and end_location are required")
	}

	var endTime *time.Time
	if strings.TrimSpace(req.EndTime) != "" {
		t, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, "end_time must be RFC3339")
		}
		endTime = &t
	}

	job := &models.CollectionJob{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(req.Name),
		StartLocation:    strings.TrimSpace(req.StartLocation),
		EndLocation:      strings.TrimSpace(req.EndLocation),
		StartName:        strings.TrimSpace(req.StartName),
		EndName:          strings.TrimSpace(req.EndName),
		CycleSeconds:     req.CycleSeconds,
		CycleMinutes:     valueOr(req.CycleMinutes, models.DefaultCycleMinutes),
		DurationDays:     valueOr(req.DurationDays, models.DefaultDurationDays),
		EndTime:          endTime,
		NavigationType:   req.NavigationType,
		AvoidHighways:    req.AvoidHighways,
		AvoidTolls:       req.AvoidTolls,
		AdditionalRoutes: clampAdditional(req.AdditionalRoutes),
		Status:           models.JobStatusPending,
	}

	if err := h.repos.Job.Create(job); err != nil {
		h.logger.Error("Failed to create job", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to create job")
	}

	if req.Autostart {
		if err := h.scheduler.Start(job.ID); err != nil {
			h.logger.Error("Failed to autostart job", zap.String("job_id", job.ID), zap.Error(err))
			return errorResponse(c, http.StatusBadGateway, "Job created but failed to start: "+err.Error())
		}
	}

	created, err := h.repos.Job.FindByID(job.ID)
	if err != nil {
		created = job
	}
	return successResponse(c, "Job created", created)
}

// Update handles PUT /api/jobs/:id. Running jobs only accept display-name
// edits; cadence and routing changes require a pause first so the live
// timer can never drift from the stored definition.
func (h *JobHandler) Update(c echo.Context) error {
	id := c.Param("id")
	job, err := h.repos.Job.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "Job not found")
		}
		return errorResponse(c, http.StatusInternalServerError, "Failed to load job")
	}

	var req models.UpdateJobRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.StartName != nil {
		updates["start_name"] = strings.TrimSpace(*req.StartName)
	}
	if req.EndName != nil {
		updates["end_name"] = strings.TrimSpace(*req.EndName)
	}

	scheduleChanged := false
	if req.CycleSeconds != nil {
		updates["cycle_seconds"] = *req.CycleSeconds
		scheduleChanged = true
	}
	if req.CycleMinutes != nil {
		updates["cycle_minutes"] = *req.CycleMinutes
		scheduleChanged = true
	}
	if req.DurationDays != nil {
		updates["duration_days"] = *req.DurationDays
		scheduleChanged = true
	}
	if req.EndTime != nil {
		if strings.TrimSpace(*req.EndTime) == "" {
			updates["end_time"] = nil
		} else {
			t, err := time.Parse(time.RFC3339, *req.EndTime)
			if err != nil {
				return errorResponse(c, http.StatusBadRequest, "end_time must be RFC3339")
			}
			updates["end_time"] = t
		}
		scheduleChanged = true
	}
	if req.NavigationType != nil {
		updates["navigation_type"] = *req.NavigationType
		scheduleChanged = true
	}
	if req.AvoidHighways != nil {
		updates["avoid_highways"] = *req.AvoidHighways
		scheduleChanged = true
	}
	if req.AvoidTolls != nil {
		updates["avoid_tolls"] = *req.AvoidTolls
		scheduleChanged = true
	}
	if req.AdditionalRoutes != nil {
		updates["additional_routes"] = clampAdditional(*req.AdditionalRoutes)
		scheduleChanged = true
	}

	if scheduleChanged && job.Status == models.JobStatusRunning {
		return errorResponse(c, http.StatusConflict, "Pause the job before changing its schedule or route settings")
	}
	if len(updates) == 0 {
		return successResponse(c, "Nothing to update", job)
	}

	if err := h.repos.Job.UpdateFields(id, updates); err != nil {
		h.logger.Error("Failed to update job", zap.String("job_id", id), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to update job")
	}

	updated, err := h.repos.Job.FindByID(id)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, "Failed to reload job")
	}
	return successResponse(c, "Job updated", updated)
}

// Delete handles DELETE /api/jobs/:id. The timer is cancelled first, then
// the job and its snapshots go away in bulk.
func (h *JobHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.scheduler.Stop(id); err != nil {
		h.logger.Error("Failed to stop job before delete", zap.String("job_id", id), zap.Error(err))
	}
	if err := h.repos.Job.Delete(id); err != nil {
		h.logger.Error("Failed to delete job", zap.String("job_id", id), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to delete job")
	}
	return successResponse(c, "Job deleted", nil)
}

// Start handles POST /api/jobs/:id/start.
func (h *JobHandler) Start(c echo.Context) error {
	return h.lifecycle(c, "start", h.scheduler.Start)
}

// Pause handles POST /api/jobs/:id/pause.
func (h *JobHandler) Pause(c echo.Context) error {
	return h.lifecycle(c, "pause", h.scheduler.Pause)
}

// Resume handles POST /api/jobs/:id/resume.
func (h *JobHandler) Resume(c echo.Context) error {
	return h.lifecycle(c, "resume", h.scheduler.Resume)
}

// Stop handles POST /api/jobs/:id/stop.
func (h *JobHandler) Stop(c echo.Context) error {
	return h.lifecycle(c, "stop", h.scheduler.Stop)
}

func (h *JobHandler) lifecycle(c echo.Context, op string, fn func(string) error) error {
	id := c.Param("id")
	if err := fn(id); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			return errorResponse(c, http.StatusNotFound, "Job not found")
		}
		if errors.Is(err, maps.ErrMissingAPIKey) {
			return errorResponse(c, http.StatusBadGateway, "Routing service is not configured")
		}
		h.logger.Error("Lifecycle operation failed",
			zap.String("op", op),
			zap.String("job_id", id),
			zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to "+op+" job")
	}
	return successResponse(c, "ok", map[string]interface{}{"id": id, "operation": op})
}

// Cycle handles POST /api/jobs/:id/cycle, a manually triggered collection
// cycle.
func (h *JobHandler) Cycle(c echo.Context) error {
	id := c.Param("id")
	if err := h.scheduler.RunCycle(c.Request().Context(), id); err != nil {
		if errors.Is(err, maps.ErrMissingAPIKey) {
			return errorResponse(c, http.StatusBadGateway, "Routing service is not configured")
		}
		h.logger.Error("Manual cycle failed", zap.String("job_id", id), zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "Collection cycle failed: "+err.Error())
	}
	return successResponse(c, "Cycle completed", map[string]interface{}{"id": id})
}

// Active handles GET /api/scheduler/active.
func (h *JobHandler) Active(c echo.Context) error {
	return successResponse(c, "ok", h.scheduler.ActiveJobs())
}

func valueOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func clampAdditional(v int) int {
	if v < 0 {
		return 0
	}
	if v > models.MaxAdditionalRoutes {
		return models.MaxAdditionalRoutes
	}
	return v
}
