package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"routepulse/internal/maps"
	"routepulse/internal/models"
)

// ErrJobNotFound is returned by Start/Resume for an id absent from the store.
var ErrJobNotFound = errors.New("collection job not found")

// JobStore is the persistence surface the scheduler needs for jobs.
type JobStore interface {
	FindByID(id string) (*models.CollectionJob, error)
	FindByStatus(status string) ([]models.CollectionJob, error)
	UpdateFields(id string, updates map[string]interface{}) error
}

// SnapshotStore persists collected route measurements.
type SnapshotStore interface {
	Create(snapshot *models.RouteSnapshot) error
}

// RouteFetcher is the live-collection routing surface. It is distinct from
// the preview path on purpose: collection cycles must never be answered
// from the preview cache.
type RouteFetcher interface {
	Directions(ctx context.Context, req maps.RouteRequest) ([]maps.Route, error)
}

// Scheduler owns the registry of live collection timers, one per running
// job, and the lifecycle transitions between pending, running, paused and
// completed. A job has at most one live timer at any instant; arming a new
// one cancels any stale entry first.
//
// Pause and Stop cancel the timer synchronously but never an in-flight
// upstream call, so a cycle that was already running may still write one
// snapshot after the status flip. That window is accepted, not a bug.
type Scheduler struct {
	cron      *cron.Cron
	logger    *zap.Logger
	jobs      JobStore
	snapshots SnapshotStore
	routes    RouteFetcher
	floor     time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a scheduler. floor is the minimum collection interval;
// requested cadences below it are silently clamped up.
func New(jobs JobStore, snapshots SnapshotStore, routes RouteFetcher, floor time.Duration, logger *zap.Logger) *Scheduler {
	if floor <= 0 {
		floor = 5 * time.Minute
	}
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger,
		jobs:      jobs,
		snapshots: snapshots,
		routes:    routes,
		floor:     floor,
		entries:   make(map[string]cron.EntryID),
	}
}

// Run starts the underlying cron engine.
func (s *Scheduler) Run() {
	s.cron.Start()
	s.logger.Info("Collection scheduler started")
}

// Shutdown stops the cron engine; the returned context completes when all
// in-flight cycles have drained.
func (s *Scheduler) Shutdown() context.Context {
	return s.cron.Stop()
}

// Start transitions a job to running, arms its recurring timer and
// synchronously runs one collection cycle before returning, so the caller
// observes at least one attempt without waiting a full interval. Calling
// Start on a job that is already running with a live timer is a no-op.
func (s *Scheduler) Start(jobID string) error {
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	s.mu.Lock()
	_, live := s.entries[jobID]
	s.mu.Unlock()
	if job.Status == models.JobStatusRunning && live {
		return nil
	}

	if err := s.jobs.UpdateFields(jobID, map[string]interface{}{"status": models.JobStatusRunning}); err != nil {
		return err
	}
	s.arm(jobID, job.EffectiveInterval(s.floor))

	return s.initialCycle(jobID)
}

// Pause cancels the job's timer and persists paused. The cadence position
// is not preserved: resuming restarts the interval from zero. Pausing
// anything not running is a no-op.
func (s *Scheduler) Pause(jobID string) error {
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if job.Status != models.JobStatusRunning {
		return nil
	}

	s.disarm(jobID)
	return s.jobs.UpdateFields(jobID, map[string]interface{}{"status": models.JobStatusPaused})
}

// Resume restarts a paused job via Start. Anything not exactly paused is a
// no-op, except a missing id which is an error.
func (s *Scheduler) Resume(jobID string) error {
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}
	if job.Status != models.JobStatusPaused {
		return nil
	}
	return s.Start(jobID)
}

// Stop cancels the timer if present and persists completed. Stopping an
// already-completed or unknown job is a no-op. The expiry check inside a
// cycle ends up here too.
func (s *Scheduler) Stop(jobID string) error {
	s.disarm(jobID)

	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if job.Status != models.JobStatusRunning && job.Status != models.JobStatusPaused {
		return nil
	}
	return s.jobs.UpdateFields(jobID, map[string]interface{}{"status": models.JobStatusCompleted})
}

// ActiveJobs lists the ids with a live timer, sorted for stable output.
func (s *Scheduler) ActiveJobs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// RestoreRunningJobs re-arms a timer and runs an immediate cycle for every
// job the store still marks running, exactly as Start would but without
// re-writing the status. One job failing to recover does not stop the rest.
func (s *Scheduler) RestoreRunningJobs() error {
	jobs, err := s.jobs.FindByStatus(models.JobStatusRunning)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		s.arm(job.ID, job.EffectiveInterval(s.floor))
		if err := s.RunCycle(context.Background(), job.ID); err != nil {
			s.logger.Warn("Recovery cycle failed",
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("Restored running jobs", zap.Int("count", len(jobs)))
	return nil
}

// initialCycle runs the synchronous first cycle of Start. Only a
// configuration error is the caller's problem; anything else is contained
// here so a freshly started job survives a bad first tick.
func (s *Scheduler) initialCycle(jobID string) error {
	err := s.RunCycle(context.Background(), jobID)
	if err == nil {
		return nil
	}
	if errors.Is(err, maps.ErrMissingAPIKey) {
		return err
	}
	s.logger.Error("Initial collection cycle failed",
		zap.String("job_id", jobID),
		zap.Error(err))
	return nil
}

// arm replaces any existing timer for the job with a fresh recurring one.
func (s *Scheduler) arm(jobID string, interval time.Duration) {
	tick := cron.FuncJob(func() {
		defer s.recoverFromPanic(jobID)
		if err := s.RunCycle(context.Background(), jobID); err != nil {
			// Contained here: the job stays running and the next tick
			// retries at its natural cadence.
			s.logger.Error("Collection cycle failed",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if stale, ok := s.entries[jobID]; ok {
		s.cron.Remove(stale)
	}
	s.entries[jobID] = s.cron.Schedule(cron.Every(interval), tick)

	s.logger.Info("Armed collection timer",
		zap.String("job_id", jobID),
		zap.Duration("interval", interval))
}

func (s *Scheduler) disarm(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[jobID]
	if !ok {
		return
	}
	s.cron.Remove(entry)
	delete(s.entries, jobID)
}

func (s *Scheduler) recoverFromPanic(jobID string) {
	if r := recover(); r != nil {
		s.logger.Error("Collection cycle panicked",
			zap.String("job_id", jobID),
			zap.Any("error", r))
	}
}
