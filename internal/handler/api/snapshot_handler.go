package api

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SnapshotHandler serves a job's recorded measurements.
type SnapshotHandler struct {
	repos  *Repos
	logger *zap.Logger
}

func NewSnapshotHandler(repos *Repos, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{repos: repos, logger: logger}
}

// List handles GET /api/jobs/:id/snapshots.
func (h *SnapshotHandler) List(c echo.Context) error {
	jobID := c.Param("id")
	if _, err := h.repos.Job.FindByID(jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "Job not found")
		}
		return errorResponse(c, http.StatusInternalServerError, "Failed to load job")
	}

	limit := queryInt(c, "limit", 200)
	page := queryInt(c, "page", 1)

	snapshots, total, err := h.repos.Snapshot.FindByJob(jobID, limit, page)
	if err != nil {
		h.logger.Error("Failed to list snapshots", zap.String("job_id", jobID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to list snapshots")
	}
	return successResponse(c, "ok", paginatedResponse(snapshots, total, page, limit))
}

// Export handles GET /api/jobs/:id/export, streaming the job's snapshots
// as a CSV download. An optional since=RFC3339 query narrows the range.
func (h *SnapshotHandler) Export(c echo.Context) error {
	jobID := c.Param("id")
	job, err := h.repos.Job.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "Job not found")
		}
		return errorResponse(c, http.StatusInternalServerError, "Failed to load job")
	}

	since := time.Time{}
	if raw := c.QueryParam("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, "since must be RFC3339")
		}
	}

	snapshots, err := h.repos.Snapshot.FindByJobSince(jobID, since)
	if err != nil {
		h.logger.Error("Failed to export snapshots", zap.String("job_id", jobID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to export snapshots")
	}

	filename := job.ID + "-snapshots.csv"
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"id", "job_id", "route_index", "collected_at", "duration_seconds", "distance_meters"}); err != nil {
		return err
	}
	for _, s := range snapshots {
		record := []string{
			strconv.FormatUint(uint64(s.ID), 10),
			s.JobID,
			strconv.Itoa(s.RouteIndex),
			s.CollectedAt.Format(time.RFC3339),
			formatNullableInt(s.DurationSeconds),
			formatNullableInt(s.DistanceMeters),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatNullableInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
