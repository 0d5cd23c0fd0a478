package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"routepulse/internal/maps"
	"routepulse/internal/models"
)

type fakeJobStore struct {
	mu           sync.Mutex
	jobs         map[string]*models.CollectionJob
	statusWrites int
}

func newFakeJobStore(jobs ...*models.CollectionJob) *fakeJobStore {
	store := &fakeJobStore{jobs: make(map[string]*models.CollectionJob)}
	for _, job := range jobs {
		store.jobs[job.ID] = job
	}
	return store
}

func (f *fakeJobStore) FindByID(id string) (*models.CollectionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStore) FindByStatus(status string) ([]models.CollectionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CollectionJob
	for _, job := range f.jobs {
		if job.Status == status {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobStore) UpdateFields(id string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(string); ok {
		job.Status = status
		f.statusWrites++
	}
	if stamp, ok := updates["updated_at"].(time.Time); ok {
		job.UpdatedAt = stamp
	}
	return nil
}

func (f *fakeJobStore) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Status
}

type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots []models.RouteSnapshot
}

func (f *fakeSnapshotStore) Create(snapshot *models.RouteSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, *snapshot)
	return nil
}

func (f *fakeSnapshotStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

type fakeRouteFetcher struct {
	mu     sync.Mutex
	calls  int
	routes []maps.Route
	err    error
}

func (f *fakeRouteFetcher) Directions(_ context.Context, _ maps.RouteRequest) ([]maps.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.routes, f.err
}

func (f *fakeRouteFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func intPtr(v int) *int { return &v }

func oneRoute(durationSeconds int) []maps.Route {
	return []maps.Route{{
		Summary:         "test route",
		DurationSeconds: intPtr(durationSeconds),
		DistanceMeters:  intPtr(5000),
	}}
}

func testJob(id, status string) *models.CollectionJob {
	return &models.CollectionJob{
		ID:            id,
		StartLocation: "1 Main St",
		EndLocation:   "2 Side St",
		CycleSeconds:  30,
		DurationDays:  7,
		Status:        status,
		CreatedAt:     time.Now(),
	}
}

func newTestScheduler(jobs *fakeJobStore, snapshots *fakeSnapshotStore, routes *fakeRouteFetcher) *Scheduler {
	// The cron engine is deliberately never started: every test drives
	// cycles explicitly so nothing fires in the background.
	return New(jobs, snapshots, routes, 300*time.Second, zap.NewNop())
}

func TestStartArmsExactlyOneTimer(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPending))
	snapshots := &fakeSnapshotStore{}
	routes := &fakeRouteFetcher{routes: oneRoute(600)}
	s := newTestScheduler(jobs, snapshots, routes)

	require.NoError(t, s.Start("job-1"))
	assert.Equal(t, []string{"job-1"}, s.ActiveJobs())
	assert.Equal(t, models.JobStatusRunning, jobs.status("job-1"))

	// The synchronous first cycle already recorded a snapshot.
	assert.Equal(t, 1, snapshots.count())

	// Starting again is idempotent: still one timer, no extra cycle.
	require.NoError(t, s.Start("job-1"))
	assert.Equal(t, []string{"job-1"}, s.ActiveJobs())
	assert.Equal(t, 1, snapshots.count())
	assert.Equal(t, 1, routes.callCount())
}

func TestStartClampsIntervalToFloor(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPending))
	s := newTestScheduler(jobs, &fakeSnapshotStore{}, &fakeRouteFetcher{routes: oneRoute(600)})

	require.NoError(t, s.Start("job-1"))

	s.mu.Lock()
	entryID := s.entries["job-1"]
	s.mu.Unlock()

	schedule, ok := s.cron.Entry(entryID).Schedule.(cron.ConstantDelaySchedule)
	require.True(t, ok)
	assert.Equal(t, 300*time.Second, schedule.Delay)
}

func TestStartUnknownJob(t *testing.T) {
	s := newTestScheduler(newFakeJobStore(), &fakeSnapshotStore{}, &fakeRouteFetcher{})

	assert.ErrorIs(t, s.Start("ghost"), ErrJobNotFound)
	assert.ErrorIs(t, s.Resume("ghost"), ErrJobNotFound)
}

func TestStartSurfacesConfigurationError(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPending))
	routes := &fakeRouteFetcher{err: maps.ErrMissingAPIKey}
	s := newTestScheduler(jobs, &fakeSnapshotStore{}, routes)

	assert.ErrorIs(t, s.Start("job-1"), maps.ErrMissingAPIKey)
}

func TestStartContainsUpstreamError(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPending))
	routes := &fakeRouteFetcher{err: &maps.UpstreamError{Status: "OVER_QUERY_LIMIT"}}
	s := newTestScheduler(jobs, &fakeSnapshotStore{}, routes)

	// A transient upstream failure on the first cycle must not fail Start:
	// the job stays running and the next tick retries.
	require.NoError(t, s.Start("job-1"))
	assert.Equal(t, models.JobStatusRunning, jobs.status("job-1"))
	assert.Equal(t, []string{"job-1"}, s.ActiveJobs())
}

func TestPauseCancelsTimer(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPending))
	s := newTestScheduler(jobs, &fakeSnapshotStore{}, &fakeRouteFetcher{routes: oneRoute(600)})

	require.NoError(t, s.Start("job-1"))
	require.NoError(t, s.Pause("job-1"))

	assert.Empty(t, s.ActiveJobs())
	assert.Equal(t, models.JobStatusPaused, jobs.status("job-1"))
}

func TestPauseIdempotent(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPaused))
	s := newTestScheduler(jobs, &fakeSnapshotStore{}, &fakeRouteFetcher{})

	require.NoError(t, s.Pause("job-1"))
	assert.Equal(t, models.JobStatusPaused, jobs.status("job-1"))

	// Pausing an unknown id is also a silent no-op.
	require.NoError(t, s.Pause("ghost"))
}

func TestResumeOnlyActsOnPausedJobs(t *testing.T) {
	jobs := newFakeJobStore(
		testJob("paused", models.JobStatusPaused),
		testJob("done", models.JobStatusCompleted),
	)
	routes := &fakeRouteFetcher{routes: oneRoute(600)}
	s := newTestScheduler(jobs, &fakeSnapshotStore{}, routes)

	require.NoError(t, s.Resume("paused"))
	assert.Equal(t, models.JobStatusRunning, jobs.status("paused"))
	assert.Equal(t, []string{"paused"}, s.ActiveJobs())

	require.NoError(t, s.Resume("done"))
	assert.Equal(t, models.JobStatusCompleted, jobs.status("done"))
	assert.Equal(t, []string{"paused"}, s.ActiveJobs())
}

func TestStopIdempotent(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPending))
	s := newTestScheduler(jobs, &fakeSnapshotStore{}, &fakeRouteFetcher{routes: oneRoute(600)})

	require.NoError(t, s.Start("job-1"))
	require.NoError(t, s.Stop("job-1"))
	assert.Empty(t, s.ActiveJobs())
	assert.Equal(t, models.JobStatusCompleted, jobs.status("job-1"))

	// Stopping again changes nothing and raises no error.
	require.NoError(t, s.Stop("job-1"))
	assert.Equal(t, models.JobStatusCompleted, jobs.status("job-1"))
	require.NoError(t, s.Stop("ghost"))
}

func TestExpiredJobCompletesWithoutSnapshot(t *testing.T) {
	job := testJob("job-1", models.JobStatusRunning)
	past := time.Now().Add(-time.Hour)
	job.EndTime = &past
	jobs := newFakeJobStore(job)
	snapshots := &fakeSnapshotStore{}
	routes := &fakeRouteFetcher{routes: oneRoute(600)}
	s := newTestScheduler(jobs, snapshots, routes)

	require.NoError(t, s.RunCycle(context.Background(), "job-1"))

	assert.Equal(t, models.JobStatusCompleted, jobs.status("job-1"))
	assert.Equal(t, 0, snapshots.count())
	assert.Equal(t, 0, routes.callCount())
}

func TestCycleRecordsSnapshotPerRoute(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPending))
	snapshots := &fakeSnapshotStore{}
	routes := &fakeRouteFetcher{routes: []maps.Route{
		{DurationSeconds: intPtr(600), DistanceMeters: intPtr(5000)},
		{DurationSeconds: intPtr(720), DistanceMeters: intPtr(5400)},
	}}
	s := newTestScheduler(jobs, snapshots, routes)

	require.NoError(t, s.Start("job-1"))

	require.Equal(t, 2, snapshots.count())
	assert.Equal(t, 0, snapshots.snapshots[0].RouteIndex)
	assert.Equal(t, 1, snapshots.snapshots[1].RouteIndex)
	assert.Equal(t, 600, *snapshots.snapshots[0].DurationSeconds)
	assert.NotEmpty(t, snapshots.snapshots[0].RouteDetails)
}

func TestManualCycleAppendsSnapshot(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPending))
	snapshots := &fakeSnapshotStore{}
	s := newTestScheduler(jobs, snapshots, &fakeRouteFetcher{routes: oneRoute(600)})

	require.NoError(t, s.Start("job-1"))
	require.Equal(t, 1, snapshots.count())

	require.NoError(t, s.RunCycle(context.Background(), "job-1"))
	require.Equal(t, 2, snapshots.count())
	assert.Equal(t, 0, snapshots.snapshots[1].RouteIndex)
}

func TestCycleSilentlySkipsNonRunningJob(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusPaused))
	snapshots := &fakeSnapshotStore{}
	routes := &fakeRouteFetcher{routes: oneRoute(600)}
	s := newTestScheduler(jobs, snapshots, routes)

	require.NoError(t, s.RunCycle(context.Background(), "job-1"))
	require.NoError(t, s.RunCycle(context.Background(), "ghost"))

	assert.Equal(t, 0, snapshots.count())
	assert.Equal(t, 0, routes.callCount())
}

func TestCycleWithZeroRoutesKeepsJobRunning(t *testing.T) {
	jobs := newFakeJobStore(testJob("job-1", models.JobStatusRunning))
	snapshots := &fakeSnapshotStore{}
	s := newTestScheduler(jobs, snapshots, &fakeRouteFetcher{})

	require.NoError(t, s.RunCycle(context.Background(), "job-1"))

	assert.Equal(t, models.JobStatusRunning, jobs.status("job-1"))
	assert.Equal(t, 0, snapshots.count())
}

func TestRestoreRunningJobs(t *testing.T) {
	jobs := newFakeJobStore(
		testJob("running-1", models.JobStatusRunning),
		testJob("running-2", models.JobStatusRunning),
		testJob("paused-1", models.JobStatusPaused),
	)
	snapshots := &fakeSnapshotStore{}
	s := newTestScheduler(jobs, snapshots, &fakeRouteFetcher{routes: oneRoute(600)})

	require.NoError(t, s.RestoreRunningJobs())

	assert.Equal(t, []string{"running-1", "running-2"}, s.ActiveJobs())
	assert.Equal(t, 2, snapshots.count())

	// Recovery re-arms without re-writing the already-running status; the
	// only writes are the updated_at stamps, which the fake ignores for
	// status counting.
	assert.Equal(t, 0, jobs.statusWrites)
}
