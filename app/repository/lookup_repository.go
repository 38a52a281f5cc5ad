package repository

import (
	"fmt"
	"strings"

	"github.com/carsalesplatform/carsales/app/models"
	"gorm.io/gorm"
)

type lookupRepository struct {
	db *gorm.DB
}

func NewLookupRepository(db *gorm.DB) LookupRepository {
	return &lookupRepository{db: db}
}

// GetOrCreateMake returns the make with this name, creating it if needed.
// Names are matched after trimming surrounding whitespace.
func (r *lookupRepository) GetOrCreateMake(name string) (*models.Make, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("make name is required")
	}
	var mk models.Make
	err := r.firstOrCreate(&mk, models.Make{Name: name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve make %q: %w", name, err)
	}
	return &mk, nil
}

func (r *lookupRepository) GetOrCreateModel(makeID uint, name string) (*models.VehicleModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	var model models.VehicleModel
	err := r.firstOrCreate(&model, models.VehicleModel{MakeID: makeID, Name: name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model %q: %w", name, err)
	}
	return &model, nil
}

// GetOrCreateTrim fills in Level on an existing trim that has none.
func (r *lookupRepository) GetOrCreateTrim(modelID uint, name string, level *string) (*models.Trim, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("trim name is required")
	}
	var trim models.Trim
	err := r.firstOrCreate(&trim, models.Trim{ModelID: modelID, Name: name}, models.Trim{Level: level})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve trim %q: %w", name, err)
	}
	if trim.Level == nil && level != nil {
		trim.Level = level
		if err := r.db.Model(&trim).Update("level", *level).Error; err != nil {
			return nil, err
		}
	}
	return &trim, nil
}

// firstOrCreate retries the lookup once when a concurrent insert wins the
// unique index.
func (r *lookupRepository) firstOrCreate(dest, where, attrs interface{}) error {
	query := r.db.Where(where)
	if attrs != nil {
		query = query.Attrs(attrs)
	}
	err := query.FirstOrCreate(dest).Error
	if err == nil {
		return nil
	}
	if retry := r.db.Where(where).First(dest).Error; retry == nil {
		return nil
	}
	return err
}

func (r *lookupRepository) ListMakes() ([]models.Make, error) {
	var makes []models.Make
	err := r.db.Order("name ASC").Find(&makes).Error
	return makes, err
}

func (r *lookupRepository) ListModels(makeID uint) ([]models.VehicleModel, error) {
	var vehicleModels []models.VehicleModel
	err := r.db.Where("make_id = ?", makeID).Order("name ASC").Find(&vehicleModels).Error
	return vehicleModels, err
}

func (r *lookupRepository) ListTrims(modelID uint) ([]models.Trim, error) {
	var trims []models.Trim
	err := r.db.Where("model_id = ?", modelID).Order("name ASC").Find(&trims).Error
	return trims, err
}
