package repository

import (
	"time"

	"gorm.io/gorm"

	"routepulse/internal/models"
)

// SnapshotRepository handles route snapshot database operations.
// Snapshots are append-only: there is no update path.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts a new snapshot.
func (r *SnapshotRepository) Create(snapshot *models.RouteSnapshot) error {
	return r.db.Create(snapshot).Error
}

// FindByJob returns a job's snapshots with pagination, oldest first.
func (r *SnapshotRepository) FindByJob(jobID string, limit, page int) ([]models.RouteSnapshot, int64, error) {
	var snapshots []models.RouteSnapshot
	var total int64

	db := r.db.Model(&models.RouteSnapshot{}).Where("job_id = ?", jobID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 200
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("collected_at ASC").Find(&snapshots).Error; err != nil {
		return nil, 0, err
	}
	return snapshots, total, nil
}

// FindByJobSince returns a job's snapshots collected at or after since,
// oldest first. Used by the CSV export.
func (r *SnapshotRepository) FindByJobSince(jobID string, since time.Time) ([]models.RouteSnapshot, error) {
	var snapshots []models.RouteSnapshot
	err := r.db.Where("job_id = ? AND collected_at >= ?", jobID, since).
		Order("collected_at ASC").
		Find(&snapshots).Error
	return snapshots, err
}

// CountByJob counts a job's snapshots.
func (r *SnapshotRepository) CountByJob(jobID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.RouteSnapshot{}).Where("job_id = ?", jobID).Count(&count).Error
	return count, err
}
