package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/internal/pkg/imageprocessor"
)

var (
	ErrPhotoNotFound = errors.New("photo not found for vehicle")
	ErrGalleryFull   = errors.New("vehicle already has the maximum number of photos")
)

// Mirror receives copies of variant files, e.g. an object store backup.
// Failures are logged and never undo local changes.
type Mirror interface {
	PutVariants(ctx context.Context, vehicleID uint, paths []string) error
	DeleteVariants(ctx context.Context, vehicleID uint, paths []string) error
}

// Manager owns a vehicle's photo set: cap, eviction, sort order and cover.
// Every method runs in its own transaction scoped to one vehicle.
type Manager struct {
	db     *gorm.DB
	layout imageprocessor.Layout
	mirror Mirror
	max    int
}

func NewManager(db *gorm.DB, layout imageprocessor.Layout) *Manager {
	return &Manager{db: db, layout: layout, max: models.MaxPhotosPerVehicle}
}

// WithMirror sets an optional mirror for variant files.
func (m *Manager) WithMirror(mirror Mirror) *Manager {
	m.mirror = mirror
	return m
}

func (m *Manager) Layout() imageprocessor.Layout {
	return m.layout
}

// List returns the vehicle's photos by ascending sort order.
func (m *Manager) List(ctx context.Context, vehicleID uint) ([]models.VehiclePhoto, error) {
	return models.FindPhotosByVehicleID(m.db.WithContext(ctx), vehicleID)
}

// Admit computes which existing photos must go so that incoming new photos
// fit under the cap. The oldest (lowest sort order) are chosen.
func (m *Manager) Admit(ctx context.Context, vehicleID uint, incoming int) ([]models.VehiclePhoto, error) {
	if incoming <= 0 {
		return nil, nil
	}
	if incoming > m.max {
		incoming = m.max
	}

	photos, err := m.List(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos for vehicle %d: %w", vehicleID, err)
	}

	overflow := len(photos) + incoming - m.max
	if overflow <= 0 {
		return nil, nil
	}
	return photos[:overflow], nil
}

// Evict removes the given photos of a vehicle and re-establishes the cover.
// Rows are committed before any file is touched.
func (m *Manager) Evict(ctx context.Context, vehicleID uint, photos []models.VehiclePhoto) error {
	if len(photos) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(photos))
	for _, p := range photos {
		if p.VehicleID != vehicleID {
			return fmt.Errorf("%w: photo %d", ErrPhotoNotFound, p.ID)
		}
		ids = append(ids, p.ID)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vehicle_id = ? AND id IN ?", vehicleID, ids).Delete(&models.VehiclePhoto{}).Error; err != nil {
			return err
		}
		return ensureCover(tx, vehicleID)
	})
	if err != nil {
		return fmt.Errorf("failed to evict photos of vehicle %d: %w", vehicleID, err)
	}

	for _, p := range photos {
		m.removeFiles(ctx, vehicleID, p.URL)
	}
	log.Infof("[Gallery] Evicted %d photo(s) from vehicle %d", len(photos), vehicleID)
	return nil
}

// Append adds a photo at the end of the vehicle's order and re-establishes
// the cover in the same transaction.
func (m *Manager) Append(ctx context.Context, vehicleID uint, url string) (*models.VehiclePhoto, error) {
	photo := &models.VehiclePhoto{VehicleID: vehicleID, URL: url}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := models.CountPhotosByVehicleID(tx, vehicleID)
		if err != nil {
			return err
		}
		if count >= int64(m.max) {
			return ErrGalleryFull
		}

		next, err := models.NextSortOrder(tx, vehicleID)
		if err != nil {
			return err
		}
		photo.SortOrder = next
		if err := tx.Create(photo).Error; err != nil {
			return err
		}
		if err := ensureCover(tx, vehicleID); err != nil {
			return err
		}
		// reload the flag ensureCover may have set
		return tx.First(photo, photo.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append photo to vehicle %d: %w", vehicleID, err)
	}

	if m.mirror != nil {
		if paths, perr := m.layout.VariantDiskPaths(url); perr == nil {
			if merr := m.mirror.PutVariants(ctx, vehicleID, paths); merr != nil {
				log.Warnf("[Gallery] Mirror upload failed for %s: %v", url, merr)
			}
		}
	}
	return photo, nil
}

// EnsureCover flags the lowest sort order photo as cover when none is.
// It is a no-op for an empty set and for a set that already has a cover;
// the schema allows at most one.
func (m *Manager) EnsureCover(ctx context.Context, vehicleID uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ensureCover(tx, vehicleID)
	})
}

// SetCover makes photoID the vehicle's only cover.
func (m *Manager) SetCover(ctx context.Context, vehicleID, photoID uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := models.FindPhotoForVehicle(tx, vehicleID, photoID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPhotoNotFound
			}
			return err
		}
		if err := tx.Model(&models.VehiclePhoto{}).
			Where("vehicle_id = ? AND is_cover = ?", vehicleID, true).
			Update("is_cover", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.VehiclePhoto{}).
			Where("id = ?", photoID).
			Update("is_cover", true).Error
	})
}

// Delete removes a photo and its variant files.
func (m *Manager) Delete(ctx context.Context, photoID uint) error {
	var photo models.VehiclePhoto
	if err := m.db.WithContext(ctx).First(&photo, photoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhotoNotFound
		}
		return err
	}
	return m.delete(ctx, &photo)
}

// DeleteForVehicle is Delete restricted to photos of vehicleID.
func (m *Manager) DeleteForVehicle(ctx context.Context, vehicleID, photoID uint) error {
	photo, err := models.FindPhotoForVehicle(m.db.WithContext(ctx), vehicleID, photoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhotoNotFound
		}
		return err
	}
	return m.delete(ctx, photo)
}

// RemoveAllForVehicle deletes every photo of a vehicle, rows first, then
// their variant files and the vehicle directory. It returns how many photos
// were removed.
func (m *Manager) RemoveAllForVehicle(ctx context.Context, vehicleID uint) (int, error) {
	var photos []models.VehiclePhoto
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if photos, err = models.FindPhotosByVehicleID(tx, vehicleID); err != nil {
			return err
		}
		return tx.Where("vehicle_id = ?", vehicleID).Delete(&models.VehiclePhoto{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to remove photos of vehicle %d: %w", vehicleID, err)
	}

	for _, p := range photos {
		m.removeFiles(ctx, vehicleID, p.URL)
	}
	imageprocessor.RemoveDirIfEmpty(m.layout.VehicleDir(vehicleID))
	log.Infof("[Gallery] Removed %d photo(s) of vehicle %d", len(photos), vehicleID)
	return len(photos), nil
}

func (m *Manager) delete(ctx context.Context, photo *models.VehiclePhoto) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.VehiclePhoto{}, photo.ID).Error; err != nil {
			return err
		}
		if photo.IsCover {
			return ensureCover(tx, photo.VehicleID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo %d: %w", photo.ID, err)
	}

	m.removeFiles(ctx, photo.VehicleID, photo.URL)
	return nil
}

func (m *Manager) removeFiles(ctx context.Context, vehicleID uint, url string) {
	paths, err := m.layout.VariantDiskPaths(url)
	if err != nil {
		log.Warnf("[Gallery] Not removing files for %s: %v", url, err)
		return
	}
	if err := imageprocessor.RemoveAll(paths...); err != nil {
		log.Errorf("[Gallery] Failed to remove variants of %s: %v", url, err)
	}
	if m.mirror != nil {
		if err := m.mirror.DeleteVariants(ctx, vehicleID, paths); err != nil {
			log.Warnf("[Gallery] Mirror delete failed for %s: %v", url, err)
		}
	}
}

// ensureCover must run inside the caller's transaction.
func ensureCover(tx *gorm.DB, vehicleID uint) error {
	photos, err := models.FindPhotosByVehicleID(tx, vehicleID)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return nil
	}

	for _, p := range photos {
		if p.IsCover {
			return nil
		}
	}
	return tx.Model(&models.VehiclePhoto{}).Where("id = ?", photos[0].ID).Update("is_cover", true).Error
}
