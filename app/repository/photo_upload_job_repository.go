package repository

import (
	"fmt"
	"time"

	"github.com/carsalesplatform/carsales/app/models"
	"gorm.io/gorm"
)

type photoUploadJobRepository struct {
	db *gorm.DB
}

func NewPhotoUploadJobRepository(db *gorm.DB) PhotoUploadJobRepository {
	return &photoUploadJobRepository{db: db}
}

// Create stores the job and its items in one transaction. Item JobIDs are
// overwritten with the job id.
func (r *photoUploadJobRepository) Create(job *models.PhotoUploadJob, items []models.PhotoUploadItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("failed to create photo upload job: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].JobID = job.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create photo upload items: %w", err)
		}
		return nil
	})
}

func (r *photoUploadJobRepository) GetByID(id string) (*models.PhotoUploadJob, error) {
	var job models.PhotoUploadJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetWithItems loads a job and its items in insertion order.
func (r *photoUploadJobRepository) GetWithItems(id string) (*models.PhotoUploadJob, []models.PhotoUploadItem, error) {
	job, err := r.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	items, err := models.FindItemsByJobID(r.db, id)
	if err != nil {
		return nil, nil, err
	}
	return job, items, nil
}

func (r *photoUploadJobRepository) GetForOwner(id, ownerID string) (*models.PhotoUploadJob, error) {
	var job models.PhotoUploadJob
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimPending moves job from pending to processing with a conditional
// update, so only one worker wins a job that was queued more than once.
// It returns false when the row is no longer pending; job is then left as is.
func (r *photoUploadJobRepository) ClaimPending(job *models.PhotoUploadJob) (bool, error) {
	claimed := *job
	if err := claimed.MarkAsProcessing(); err != nil {
		return false, err
	}

	result := r.db.Model(&models.PhotoUploadJob{}).
		Where("id = ? AND status = ?", job.ID, models.PhotoJobStatusPending).
		Updates(map[string]interface{}{
			"status":     claimed.Status,
			"started_at": claimed.StartedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim photo job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	*job = claimed
	return true, nil
}

// UpdateStatus writes only the lifecycle columns so zero values are stored too.
func (r *photoUploadJobRepository) UpdateStatus(job *models.PhotoUploadJob) error {
	return r.db.Model(job).
		Select("status", "error", "started_at", "completed_at").
		Updates(job).Error
}

func (r *photoUploadJobRepository) ListIDsByStatus(status models.PhotoJobStatus) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.PhotoUploadJob{}).
		Where("status = ?", status).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ListStaleProcessing returns processing jobs started before the cutoff.
// Jobs without a start time count by creation time.
func (r *photoUploadJobRepository) ListStaleProcessing(startedBefore time.Time) ([]models.PhotoUploadJob, error) {
	var jobs []models.PhotoUploadJob
	err := r.db.Where("status = ?", models.PhotoJobStatusProcessing).
		Where("(started_at IS NOT NULL AND started_at < ?) OR (started_at IS NULL AND created_at < ?)", startedBefore, startedBefore).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}
