package models

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// MaxPhotosPerVehicle is the hard cap on photos per listing.
const MaxPhotosPerVehicle = 10

// VehiclePhoto stores the URL of the large variant only. Medium and thumb
// URLs are derived from it by filename suffix.
type VehiclePhoto struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VehicleID uint      `gorm:"uniqueIndex:idx_vehicle_photos_vehicle_sort;not null" json:"vehicle_id"`
	URL       string    `gorm:"column:url;type:varchar(500);not null" json:"url"`
	SortOrder int       `gorm:"uniqueIndex:idx_vehicle_photos_vehicle_sort;not null" json:"sort_order"`
	IsCover   bool      `gorm:"not null;default:false" json:"is_cover"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (VehiclePhoto) TableName() string {
	return "vehicle_photos"
}

// FindPhotosByVehicleID returns a vehicle's photos in ascending sort order.
func FindPhotosByVehicleID(db *gorm.DB, vehicleID uint) ([]VehiclePhoto, error) {
	var photos []VehiclePhoto
	result := db.Where("vehicle_id = ?", vehicleID).Order("sort_order ASC").Find(&photos)
	return photos, result.Error
}

// FindPhotoForVehicle returns a photo only if it belongs to vehicleID.
func FindPhotoForVehicle(db *gorm.DB, vehicleID, photoID uint) (*VehiclePhoto, error) {
	var photo VehiclePhoto
	result := db.Where("id = ? AND vehicle_id = ?", photoID, vehicleID).First(&photo)
	if result.Error != nil {
		return nil, result.Error
	}
	return &photo, nil
}

func CountPhotosByVehicleID(db *gorm.DB, vehicleID uint) (int64, error) {
	var count int64
	result := db.Model(&VehiclePhoto{}).Where("vehicle_id = ?", vehicleID).Count(&count)
	return count, result.Error
}

// NextSortOrder returns max(sort_order)+1, or 0 when the vehicle has no photos.
func NextSortOrder(db *gorm.DB, vehicleID uint) (int, error) {
	var top sql.NullInt64
	err := db.Model(&VehiclePhoto{}).Where("vehicle_id = ?", vehicleID).
		Select("MAX(sort_order)").Row().Scan(&top)
	if err != nil {
		return 0, err
	}
	if !top.Valid {
		return 0, nil
	}
	return int(top.Int64) + 1, nil
}

// CoverPhoto picks the cover from an ordered photo list, falling back to the
// first photo when none is flagged.
func CoverPhoto(photos []VehiclePhoto) *VehiclePhoto {
	for i := range photos {
		if photos[i].IsCover {
			return &photos[i]
		}
	}
	if len(photos) > 0 {
		return &photos[0]
	}
	return nil
}
