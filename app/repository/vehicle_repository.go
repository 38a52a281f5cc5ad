package repository

import (
	"github.com/carsalesplatform/carsales/app/models"
	"gorm.io/gorm"
)

type vehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) Create(vehicle *models.Vehicle) error {
	return r.db.Create(vehicle).Error
}

func (r *vehicleRepository) GetByID(id uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := r.db.First(&vehicle, id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// GetByIDAndOwner returns gorm.ErrRecordNotFound both for unknown ids and
// for vehicles of another owner.
func (r *vehicleRepository) GetByIDAndOwner(id uint, ownerID string) (*models.Vehicle, error) {
	return models.FindVehicleForOwner(r.db, id, ownerID)
}

func (r *vehicleRepository) ListByOwner(ownerID string) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&vehicles).Error
	return vehicles, err
}

func (r *vehicleRepository) Update(vehicle *models.Vehicle) error {
	return r.db.Save(vehicle).Error
}

// Delete removes the vehicle row only. Photos must be removed first.
func (r *vehicleRepository) Delete(id uint) error {
	return r.db.Delete(&models.Vehicle{}, id).Error
}
