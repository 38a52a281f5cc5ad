package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhotoJobStatus is the lifecycle state of a photo upload batch.
type PhotoJobStatus string

const (
	PhotoJobStatusPending    PhotoJobStatus = "pending"
	PhotoJobStatusProcessing PhotoJobStatus = "processing"
	PhotoJobStatusCompleted  PhotoJobStatus = "completed"
	PhotoJobStatusFailed     PhotoJobStatus = "failed"
)

var ErrInvalidTransition = errors.New("invalid photo job status transition")

// IsTerminal reports whether no further transitions are allowed.
func (s PhotoJobStatus) IsTerminal() bool {
	return s == PhotoJobStatusCompleted || s == PhotoJobStatusFailed
}

// PhotoUploadJob is one upload request. It is kept after processing as an
// audit record; only its temp files are removed.
type PhotoUploadJob struct {
	ID          string         `gorm:"type:char(36);primaryKey" json:"id"`
	VehicleID   uint           `gorm:"index;not null" json:"vehicle_id"`
	OwnerID     string         `gorm:"type:varchar(64);index;not null" json:"owner_id"`
	Status      PhotoJobStatus `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	Error       *string        `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

func (PhotoUploadJob) TableName() string {
	return "photo_upload_jobs"
}

func (j *PhotoUploadJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = PhotoJobStatusPending
	}
	return nil
}

// MarkAsProcessing moves a pending job to processing.
func (j *PhotoUploadJob) MarkAsProcessing() error {
	if j.Status != PhotoJobStatusPending {
		return ErrInvalidTransition
	}
	now := time.Now()
	j.Status = PhotoJobStatusProcessing
	j.StartedAt = &now
	return nil
}

// MarkAsCompleted moves a processing job to completed.
func (j *PhotoUploadJob) MarkAsCompleted() error {
	if j.Status != PhotoJobStatusProcessing {
		return ErrInvalidTransition
	}
	now := time.Now()
	j.Status = PhotoJobStatusCompleted
	j.CompletedAt = &now
	j.Error = nil
	return nil
}

// MarkAsFailed records msg and moves any non-terminal job to failed.
func (j *PhotoUploadJob) MarkAsFailed(msg string) error {
	if j.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	if msg == "" {
		msg = "unknown error"
	}
	now := time.Now()
	j.Status = PhotoJobStatusFailed
	j.Error = &msg
	j.CompletedAt = &now
	return nil
}

// ErrorMessage returns the failure message or "".
func (j *PhotoUploadJob) ErrorMessage() string {
	if j.Error == nil {
		return ""
	}
	return *j.Error
}

// PhotoUploadItem is one file of a job, parked in temp storage until the
// worker picks it up.
type PhotoUploadItem struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	JobID            string `gorm:"type:char(36);index;not null" json:"job_id"`
	TempPath         string `gorm:"type:varchar(500);not null" json:"-"`
	ContentType      string `gorm:"type:varchar(100)" json:"content_type"`
	Length           int64  `gorm:"not null" json:"length"`
	OriginalFileName string `gorm:"type:varchar(255)" json:"original_file_name"`
}

func (PhotoUploadItem) TableName() string {
	return "photo_upload_items"
}

// FindItemsByJobID returns the items of a job in insertion order.
func FindItemsByJobID(db *gorm.DB, jobID string) ([]PhotoUploadItem, error) {
	var items []PhotoUploadItem
	result := db.Where("job_id = ?", jobID).Order("id ASC").Find(&items)
	return items, result.Error
}
