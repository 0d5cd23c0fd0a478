package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"routepulse/internal/maps"
	"routepulse/internal/models"
)

// RunCycle executes exactly one collection cycle for a job: load, check it
// is still running and unexpired, fetch routes, append one snapshot per
// returned route, stamp the job. It is invoked by the recurring timers,
// by Start's synchronous first cycle, and by the manual trigger endpoint.
//
// A missing job or a non-running status aborts silently: both mean the
// timer fired across a delete/pause/stop race, which is expected.
func (s *Scheduler) RunCycle(ctx context.Context, jobID string) error {
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusRunning {
		return nil
	}

	now := time.Now()
	if now.After(job.ExpiresAt()) {
		s.logger.Info("Job expired, completing",
			zap.String("job_id", jobID),
			zap.Time("expired_at", job.ExpiresAt()))
		// No snapshot is written on the terminating cycle.
		return s.Stop(jobID)
	}

	additional := job.AdditionalRoutes
	if additional < 0 {
		additional = 0
	}
	if additional > models.MaxAdditionalRoutes {
		additional = models.MaxAdditionalRoutes
	}

	routes, err := s.routes.Directions(ctx, maps.RouteRequest{
		Origin:           job.StartLocation,
		Destination:      job.EndLocation,
		Mode:             job.Mode(),
		AvoidHighways:    job.AvoidHighways,
		AvoidTolls:       job.AvoidTolls,
		AdditionalRoutes: additional,
	})
	if err != nil {
		return fmt.Errorf("fetch routes for job %s: %w", jobID, err)
	}
	if len(routes) == 0 {
		// Keep the job running; the next tick retries naturally.
		s.logger.Warn("No routes returned", zap.String("job_id", jobID))
		return nil
	}

	for index, route := range routes {
		details, err := json.Marshal(route)
		if err != nil {
			return fmt.Errorf("marshal route details for job %s: %w", jobID, err)
		}
		snapshot := &models.RouteSnapshot{
			JobID:           jobID,
			RouteIndex:      index,
			CollectedAt:     now,
			DurationSeconds: route.DurationSeconds,
			DistanceMeters:  route.DistanceMeters,
			RouteDetails:    string(details),
		}
		if err := s.snapshots.Create(snapshot); err != nil {
			return fmt.Errorf("persist snapshot for job %s: %w", jobID, err)
		}
	}

	if err := s.jobs.UpdateFields(jobID, map[string]interface{}{"updated_at": now}); err != nil {
		return fmt.Errorf("stamp job %s: %w", jobID, err)
	}

	s.logger.Debug("Collection cycle completed",
		zap.String("job_id", jobID),
		zap.Int("routes", len(routes)))
	return nil
}
