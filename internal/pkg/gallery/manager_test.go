package gallery

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/internal/pkg/database"
	"github.com/carsalesplatform/carsales/internal/pkg/imageprocessor"
	"github.com/carsalesplatform/carsales/internal/pkg/testutil"
)

type fakeMirror struct {
	mu      sync.Mutex
	puts    [][]string
	deletes [][]string
}

func (f *fakeMirror) PutVariants(_ context.Context, _ uint, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, paths)
	return nil
}

func (f *fakeMirror) DeleteVariants(_ context.Context, _ uint, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, paths)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *gorm.DB) {
	t.Helper()
	db := database.NewTestDB(t)
	layout := imageprocessor.Layout{UploadRoot: t.TempDir(), PublicPrefix: imageprocessor.DefaultPublicPrefix}
	return NewManager(db, layout), db
}

// addPhoto writes placeholder variant files and appends the photo.
func addPhoto(t *testing.T, m *Manager, vehicleID uint) *models.VehiclePhoto {
	t.Helper()
	base := imageprocessor.NewBaseName()
	dir := m.layout.VehicleDir(vehicleID)
	testutil.WriteFile(t, dir, base+imageprocessor.LargeSuffix, []byte("l"))
	testutil.WriteFile(t, dir, base+imageprocessor.MediumSuffix, []byte("m"))
	testutil.WriteFile(t, dir, base+imageprocessor.ThumbSuffix, []byte("t"))

	photo, err := m.Append(context.Background(), vehicleID, m.layout.URLFor(vehicleID, base+imageprocessor.LargeSuffix))
	require.NoError(t, err)
	return photo
}

func variantFiles(t *testing.T, m *Manager, url string) []string {
	t.Helper()
	paths, err := m.layout.VariantDiskPaths(url)
	require.NoError(t, err)
	return paths
}

func assertCoverInvariant(t *testing.T, m *Manager, vehicleID uint) []models.VehiclePhoto {
	t.Helper()
	photos, err := m.List(context.Background(), vehicleID)
	require.NoError(t, err)

	covers := 0
	for _, p := range photos {
		if p.IsCover {
			covers++
		}
	}
	if len(photos) == 0 {
		assert.Equal(t, 0, covers)
	} else {
		assert.Equal(t, 1, covers)
	}
	assert.LessOrEqual(t, len(photos), models.MaxPhotosPerVehicle)
	return photos
}

func TestAppendAssignsSortOrderAndCover(t *testing.T) {
	m, _ := newTestManager(t)

	first := addPhoto(t, m, 1)
	second := addPhoto(t, m, 1)
	other := addPhoto(t, m, 2)

	assert.Equal(t, 0, first.SortOrder)
	assert.True(t, first.IsCover)
	assert.Equal(t, 1, second.SortOrder)
	assert.False(t, second.IsCover)
	assert.Equal(t, 0, other.SortOrder)
	assert.True(t, other.IsCover)

	assertCoverInvariant(t, m, 1)
	assertCoverInvariant(t, m, 2)
}

func TestAppendRefusesBeyondCap(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 0; i < models.MaxPhotosPerVehicle; i++ {
		addPhoto(t, m, 1)
	}

	_, err := m.Append(context.Background(), 1, "/uploads/vehicles/1/extra_large.jpg")
	assert.ErrorIs(t, err, ErrGalleryFull)
	assertCoverInvariant(t, m, 1)
}

func TestAdmitSelectsOldestPhotos(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < models.MaxPhotosPerVehicle; i++ {
		addPhoto(t, m, 1)
	}

	evict, err := m.Admit(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, evict, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{evict[0].SortOrder, evict[1].SortOrder, evict[2].SortOrder})

	none, err := m.Admit(ctx, 2, 4)
	require.NoError(t, err)
	assert.Empty(t, none)

	zero, err := m.Admit(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, zero)

	all, err := m.Admit(ctx, 1, 25)
	require.NoError(t, err)
	assert.Len(t, all, models.MaxPhotosPerVehicle)
}

func TestEvictRemovesRowsFilesAndMovesCover(t *testing.T) {
	m, _ := newTestManager(t)
	mirror := &fakeMirror{}
	m.WithMirror(mirror)
	ctx := context.Background()

	for i := 0; i < models.MaxPhotosPerVehicle; i++ {
		addPhoto(t, m, 1)
	}
	evict, err := m.Admit(ctx, 1, 3)
	require.NoError(t, err)

	require.NoError(t, m.Evict(ctx, 1, evict))

	for _, p := range evict {
		for _, f := range variantFiles(t, m, p.URL) {
			assert.NoFileExists(t, f)
		}
	}

	photos := assertCoverInvariant(t, m, 1)
	require.Len(t, photos, 7)
	assert.Equal(t, 3, photos[0].SortOrder)
	assert.True(t, photos[0].IsCover)

	next := addPhoto(t, m, 1)
	assert.Equal(t, 10, next.SortOrder)

	assert.Len(t, mirror.deletes, 3)
	assert.Len(t, mirror.puts, 1)
}

func TestEvictRejectsForeignPhotos(t *testing.T) {
	m, _ := newTestManager(t)
	p := addPhoto(t, m, 2)

	err := m.Evict(context.Background(), 1, []models.VehiclePhoto{*p})
	assert.ErrorIs(t, err, ErrPhotoNotFound)
	assert.Len(t, assertCoverInvariant(t, m, 2), 1)
}

func TestEnsureCoverIsIdempotent(t *testing.T) {
	m, db := newTestManager(t)
	ctx := context.Background()

	addPhoto(t, m, 1)
	addPhoto(t, m, 1)
	require.NoError(t, db.Model(&models.VehiclePhoto{}).Where("vehicle_id = ?", 1).Update("is_cover", false).Error)

	require.NoError(t, m.EnsureCover(ctx, 1))
	once, err := m.List(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, m.EnsureCover(ctx, 1))
	twice, err := m.List(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.True(t, twice[0].IsCover)
}

func TestEnsureCoverOnEmptySet(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.EnsureCover(context.Background(), 42))
	assert.Empty(t, assertCoverInvariant(t, m, 42))
}

func TestSchemaRejectsSecondCover(t *testing.T) {
	m, db := newTestManager(t)
	addPhoto(t, m, 1)
	second := addPhoto(t, m, 1)
	other := addPhoto(t, m, 2)

	err := db.Model(&models.VehiclePhoto{}).Where("id = ?", second.ID).Update("is_cover", true).Error
	require.Error(t, err)

	// covers on different vehicles do not collide
	assert.True(t, other.IsCover)
	photos := assertCoverInvariant(t, m, 1)
	assert.True(t, photos[0].IsCover)
	assert.False(t, photos[1].IsCover)
}

func TestRemoveAllForVehicle(t *testing.T) {
	m, _ := newTestManager(t)
	mirror := &fakeMirror{}
	m.WithMirror(mirror)
	ctx := context.Background()

	var files []string
	for i := 0; i < 3; i++ {
		files = append(files, variantFiles(t, m, addPhoto(t, m, 1).URL)...)
	}
	kept := addPhoto(t, m, 2)

	n, err := m.RemoveAllForVehicle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Empty(t, assertCoverInvariant(t, m, 1))
	for _, f := range files {
		assert.NoFileExists(t, f)
	}
	assert.NoDirExists(t, m.layout.VehicleDir(1))
	assert.Len(t, mirror.deletes, 3)

	assert.Len(t, assertCoverInvariant(t, m, 2), 1)
	for _, f := range variantFiles(t, m, kept.URL) {
		assert.FileExists(t, f)
	}

	n, err = m.RemoveAllForVehicle(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetCover(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	addPhoto(t, m, 1)
	second := addPhoto(t, m, 1)
	foreign := addPhoto(t, m, 2)

	require.NoError(t, m.SetCover(ctx, 1, second.ID))
	photos := assertCoverInvariant(t, m, 1)
	assert.False(t, photos[0].IsCover)
	assert.True(t, photos[1].IsCover)

	assert.ErrorIs(t, m.SetCover(ctx, 1, foreign.ID), ErrPhotoNotFound)
	assert.ErrorIs(t, m.SetCover(ctx, 1, 9999), ErrPhotoNotFound)
	assert.True(t, assertCoverInvariant(t, m, 2)[0].IsCover)
}

func TestDeleteReassignsCoverAndRemovesFiles(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first := addPhoto(t, m, 1)
	second := addPhoto(t, m, 1)

	require.NoError(t, m.Delete(ctx, first.ID))
	for _, f := range variantFiles(t, m, first.URL) {
		assert.NoFileExists(t, f)
	}
	photos := assertCoverInvariant(t, m, 1)
	require.Len(t, photos, 1)
	assert.Equal(t, second.ID, photos[0].ID)

	require.NoError(t, m.Delete(ctx, second.ID))
	assert.Empty(t, assertCoverInvariant(t, m, 1))

	assert.ErrorIs(t, m.Delete(ctx, second.ID), ErrPhotoNotFound)
}

func TestDeleteForVehicleChecksOwnership(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	p := addPhoto(t, m, 2)
	assert.ErrorIs(t, m.DeleteForVehicle(ctx, 1, p.ID), ErrPhotoNotFound)
	for _, f := range variantFiles(t, m, p.URL) {
		assert.FileExists(t, f)
	}

	require.NoError(t, m.DeleteForVehicle(ctx, 2, p.ID))
	assert.Empty(t, assertCoverInvariant(t, m, 2))
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 60; step++ {
		photos, err := m.List(ctx, 1)
		require.NoError(t, err)

		switch op := rng.Intn(4); {
		case op == 0 && len(photos) > 0:
			require.NoError(t, m.Delete(ctx, photos[rng.Intn(len(photos))].ID))
		case op == 1 && len(photos) > 0:
			require.NoError(t, m.SetCover(ctx, 1, photos[rng.Intn(len(photos))].ID))
		default:
			incoming := 1 + rng.Intn(4)
			evict, err := m.Admit(ctx, 1, incoming)
			require.NoError(t, err)
			require.NoError(t, m.Evict(ctx, 1, evict))
			for i := 0; i < incoming; i++ {
				addPhoto(t, m, 1)
			}
		}

		assertCoverInvariant(t, m, 1)
	}

	entries, err := filepath.Glob(filepath.Join(m.layout.VehicleDir(1), "*"+imageprocessor.LargeSuffix))
	require.NoError(t, err)
	photos, err := m.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, len(photos))
}
