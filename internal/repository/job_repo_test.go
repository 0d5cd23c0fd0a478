package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"routepulse/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      conn,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return db, mock
}

func jobColumns() []string {
	return []string{
		"id", "name", "start_location", "end_location", "start_name", "end_name",
		"cycle_seconds", "cycle_minutes", "duration_days", "end_time",
		"navigation_type", "avoid_highways", "avoid_tolls", "additional_routes",
		"status", "created_at", "updated_at",
	}
}

func jobRow(id, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(jobColumns()).AddRow(
		id, "commute", "1 Main St", "2 Side St", "Home", "Office",
		0, 60, 7, nil,
		"driving", false, false, 0,
		status, now, now,
	)
}

func TestJobRepositoryFindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `collection_jobs` WHERE id = \\?.*").
		WithArgs("job-1", 1).
		WillReturnRows(jobRow("job-1", models.JobStatusRunning))

	job, err := repo.FindByID("job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, models.JobStatusRunning, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `collection_jobs` WHERE id = \\?.*").
		WithArgs("ghost", 1).
		WillReturnRows(sqlmock.NewRows(jobColumns()))

	_, err := repo.FindByID("ghost")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryFindAllWithStatusFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `collection_jobs` WHERE status = \\?").
		WithArgs(models.JobStatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT \\* FROM `collection_jobs` WHERE status = \\?.*ORDER BY created_at DESC.*").
		WithArgs(models.JobStatusRunning, 10).
		WillReturnRows(jobRow("job-1", models.JobStatusRunning).AddRow(
			"job-2", "errand", "3 Oak St", "4 Elm St", "", "",
			0, 30, 7, nil,
			"walking", false, false, 0,
			models.JobStatusRunning, time.Now(), time.Now(),
		))

	jobs, total, err := repo.FindAll(10, 1, models.JobStatusRunning)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, jobs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryFindByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `collection_jobs` WHERE status = \\?").
		WithArgs(models.JobStatusRunning).
		WillReturnRows(jobRow("job-1", models.JobStatusRunning))

	jobs, err := repo.FindByStatus(models.JobStatusRunning)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `collection_jobs`.*").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(&models.CollectionJob{
		ID:            "job-1",
		StartLocation: "1 Main St",
		EndLocation:   "2 Side St",
		CycleMinutes:  60,
		DurationDays:  7,
		Status:        models.JobStatusPending,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryUpdateFields(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectBegin()
	// gorm appends updated_at automatically and orders columns alphabetically.
	mock.ExpectExec("UPDATE `collection_jobs` SET `status`=\\?,`updated_at`=\\? WHERE id = \\?").
		WithArgs(models.JobStatusPaused, sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateFields("job-1", map[string]interface{}{"status": models.JobStatusPaused})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryDeleteRemovesSnapshotsFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `route_snapshots` WHERE job_id = \\?").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM `collection_jobs` WHERE id = \\?").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete("job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
