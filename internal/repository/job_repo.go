package repository

import (
	"gorm.io/gorm"

	"routepulse/internal/models"
)

// JobRepository handles collection job database operations.
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// FindAll returns jobs with pagination and optional status filter.
func (r *JobRepository) FindAll(limit, page int, status string) ([]models.CollectionJob, int64, error) {
	var jobs []models.CollectionJob
	var total int64

	db := r.db.Model(&models.CollectionJob{})
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// FindByID finds a job by its id.
func (r *JobRepository) FindByID(id string) (*models.CollectionJob, error) {
	var job models.CollectionJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByStatus returns every job in the given status. Used by recovery to
// pick up jobs still marked running after a restart.
func (r *JobRepository) FindByStatus(status string) ([]models.CollectionJob, error) {
	var jobs []models.CollectionJob
	err := r.db.Where("status = ?", status).Find(&jobs).Error
	return jobs, err
}

// Create inserts a new job.
func (r *JobRepository) Create(job *models.CollectionJob) error {
	return r.db.Create(job).Error
}

// UpdateFields updates job fields.
func (r *JobRepository) UpdateFields(id string, updates map[string]interface{}) error {
	return r.db.Model(&models.CollectionJob{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes a job and all of its snapshots in one transaction.
func (r *JobRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&models.RouteSnapshot{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.CollectionJob{}).Error
	})
}
