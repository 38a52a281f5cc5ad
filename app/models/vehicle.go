package models

import (
	"time"

	"gorm.io/gorm"
)

type MileageUnit string

const (
	MileageUnitMiles      MileageUnit = "miles"
	MileageUnitKilometres MileageUnit = "km"
)

type FuelType string

const (
	FuelTypePetrol   FuelType = "petrol"
	FuelTypeDiesel   FuelType = "diesel"
	FuelTypeHybrid   FuelType = "hybrid"
	FuelTypeElectric FuelType = "electric"
)

type TransmissionType string

const (
	TransmissionManual    TransmissionType = "manual"
	TransmissionAutomatic TransmissionType = "automatic"
)

type BodyType string

const (
	BodyTypeHatchback   BodyType = "hatchback"
	BodyTypeSaloon      BodyType = "saloon"
	BodyTypeEstate      BodyType = "estate"
	BodyTypeSUV         BodyType = "suv"
	BodyTypeMPV         BodyType = "mpv"
	BodyTypeCoupe       BodyType = "coupe"
	BodyTypeConvertible BodyType = "convertible"
)

// Vehicle is a listing owned by a user of the external identity provider.
// Photos reference it by VehicleID only.
type Vehicle struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	OwnerID      string           `gorm:"type:varchar(64);index;not null" json:"owner_id"`
	MakeID       uint             `gorm:"index;not null" json:"make_id"`
	ModelID      uint             `gorm:"index;not null" json:"model_id"`
	TrimID       *uint            `gorm:"index" json:"trim_id,omitempty"`
	Year         int              `gorm:"not null" json:"year"`
	Mileage      int              `gorm:"not null;default:0" json:"mileage"`
	MileageUnit  MileageUnit      `gorm:"type:varchar(10);not null;default:'miles'" json:"mileage_unit"`
	EngineLiters float64          `gorm:"type:decimal(4,1)" json:"engine_liters"`
	FuelType     FuelType         `gorm:"type:varchar(20);not null" json:"fuel_type"`
	Transmission TransmissionType `gorm:"type:varchar(20);not null" json:"transmission"`
	BodyType     BodyType         `gorm:"type:varchar(20);not null" json:"body_type"`
	Seats        int              `json:"seats"`
	Doors        int              `json:"doors"`
	Colour       string           `gorm:"type:varchar(60)" json:"colour"`
	TotalOwners  int              `json:"total_owners"`
	NctExpiry    *time.Time       `gorm:"type:date" json:"nct_expiry,omitempty"`
	Price        float64          `gorm:"type:decimal(12,2)" json:"price"`
	IsPublished  bool             `gorm:"not null;default:false" json:"is_published"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// IsOwnedBy reports whether ownerID is the listing owner. Empty ids never match.
func (v *Vehicle) IsOwnedBy(ownerID string) bool {
	return ownerID != "" && v.OwnerID == ownerID
}

// FindVehicleForOwner loads a vehicle only when it belongs to ownerID.
func FindVehicleForOwner(db *gorm.DB, vehicleID uint, ownerID string) (*Vehicle, error) {
	var vehicle Vehicle
	result := db.Where("id = ? AND owner_id = ?", vehicleID, ownerID).First(&vehicle)
	if result.Error != nil {
		return nil, result.Error
	}
	return &vehicle, nil
}
