package repository

import (
	"time"

	"github.com/carsalesplatform/carsales/app/models"
	"gorm.io/gorm"
)

// VehicleRepository defines the interface for vehicle listings
type VehicleRepository interface {
	Create(vehicle *models.Vehicle) error
	GetByID(id uint) (*models.Vehicle, error)
	GetByIDAndOwner(id uint, ownerID string) (*models.Vehicle, error)
	ListByOwner(ownerID string) ([]models.Vehicle, error)
	Update(vehicle *models.Vehicle) error
	Delete(id uint) error
}

// LookupRepository resolves make/model/trim names to ids, creating them on first use
type LookupRepository interface {
	GetOrCreateMake(name string) (*models.Make, error)
	GetOrCreateModel(makeID uint, name string) (*models.VehicleModel, error)
	GetOrCreateTrim(modelID uint, name string, level *string) (*models.Trim, error)
	ListMakes() ([]models.Make, error)
	ListModels(makeID uint) ([]models.VehicleModel, error)
	ListTrims(modelID uint) ([]models.Trim, error)
}

// PhotoUploadJobRepository persists upload batches and their items
type PhotoUploadJobRepository interface {
	Create(job *models.PhotoUploadJob, items []models.PhotoUploadItem) error
	GetByID(id string) (*models.PhotoUploadJob, error)
	GetWithItems(id string) (*models.PhotoUploadJob, []models.PhotoUploadItem, error)
	GetForOwner(id, ownerID string) (*models.PhotoUploadJob, error)
	ClaimPending(job *models.PhotoUploadJob) (bool, error)
	UpdateStatus(job *models.PhotoUploadJob) error
	ListIDsByStatus(status models.PhotoJobStatus) ([]string, error)
	ListStaleProcessing(startedBefore time.Time) ([]models.PhotoUploadJob, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Vehicle        VehicleRepository
	Lookup         LookupRepository
	PhotoUploadJob PhotoUploadJobRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Vehicle:        NewVehicleRepository(db),
		Lookup:         NewLookupRepository(db),
		PhotoUploadJob: NewPhotoUploadJobRepository(db),
	}
}
