package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/internal/pkg/database"
)

func TestPhotoUploadJobRepositoryLifecycle(t *testing.T) {
	repos := NewRepositories(database.NewTestDB(t))
	jobs := repos.PhotoUploadJob

	job := &models.PhotoUploadJob{VehicleID: 3, OwnerID: "owner-a"}
	items := []models.PhotoUploadItem{
		{TempPath: "/tmp/a.jpg", ContentType: "image/jpeg", Length: 10, OriginalFileName: "a.jpg"},
		{TempPath: "/tmp/b.jpg", ContentType: "image/jpeg", Length: 20, OriginalFileName: "b.jpg"},
	}
	require.NoError(t, jobs.Create(job, items))
	require.NotEmpty(t, job.ID)
	assert.Equal(t, models.PhotoJobStatusPending, job.Status)

	loaded, loadedItems, err := jobs.GetWithItems(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	require.Len(t, loadedItems, 2)
	assert.Equal(t, "a.jpg", loadedItems[0].OriginalFileName)
	assert.Equal(t, job.ID, loadedItems[1].JobID)

	ids, err := jobs.ListIDsByStatus(models.PhotoJobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, ids)

	require.NoError(t, loaded.MarkAsProcessing())
	require.NoError(t, jobs.UpdateStatus(loaded))
	require.NoError(t, loaded.MarkAsFailed("boom"))
	require.NoError(t, jobs.UpdateStatus(loaded))

	stored, err := jobs.GetForOwner(job.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, models.PhotoJobStatusFailed, stored.Status)
	assert.Equal(t, "boom", stored.ErrorMessage())
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)

	_, err = jobs.GetForOwner(job.ID, "owner-b")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, _, err = jobs.GetWithItems("00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestClaimPendingOnlyOnce(t *testing.T) {
	jobs := NewRepositories(database.NewTestDB(t)).PhotoUploadJob

	job := &models.PhotoUploadJob{VehicleID: 1, OwnerID: "owner-a"}
	require.NoError(t, jobs.Create(job, nil))

	first, err := jobs.GetByID(job.ID)
	require.NoError(t, err)
	second, err := jobs.GetByID(job.ID)
	require.NoError(t, err)

	ok, err := jobs.ClaimPending(first)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.PhotoJobStatusProcessing, first.Status)
	assert.NotNil(t, first.StartedAt)

	// a second worker holding a stale pending copy loses
	ok, err = jobs.ClaimPending(second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.PhotoJobStatusPending, second.Status)
	assert.Nil(t, second.StartedAt)

	stored, err := jobs.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhotoJobStatusProcessing, stored.Status)
	require.NotNil(t, stored.StartedAt)

	// only pending jobs can be claimed at all
	_, err = jobs.ClaimPending(stored)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestListStaleProcessing(t *testing.T) {
	repos := NewRepositories(database.NewTestDB(t))
	jobs := repos.PhotoUploadJob

	old := time.Now().Add(-2 * time.Hour)
	stale := &models.PhotoUploadJob{VehicleID: 1, OwnerID: "o", Status: models.PhotoJobStatusProcessing, StartedAt: &old}
	fresh := &models.PhotoUploadJob{VehicleID: 1, OwnerID: "o", Status: models.PhotoJobStatusProcessing}
	require.NoError(t, jobs.Create(stale, nil))
	require.NoError(t, jobs.Create(fresh, nil))
	now := time.Now()
	fresh.StartedAt = &now
	require.NoError(t, jobs.UpdateStatus(fresh))

	found, err := jobs.ListStaleProcessing(time.Now().Add(-30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
}

func TestVehicleRepositoryOwnership(t *testing.T) {
	repos := NewRepositories(database.NewTestDB(t))

	v := &models.Vehicle{OwnerID: "owner-a", MakeID: 1, ModelID: 1, Year: 2019,
		FuelType: models.FuelTypeDiesel, Transmission: models.TransmissionManual, BodyType: models.BodyTypeHatchback}
	require.NoError(t, repos.Vehicle.Create(v))

	got, err := repos.Vehicle.GetByIDAndOwner(v.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, models.MileageUnitMiles, got.MileageUnit)

	_, err = repos.Vehicle.GetByIDAndOwner(v.ID, "owner-b")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	list, err := repos.Vehicle.ListByOwner("owner-a")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got.Year = 2020
	got.IsPublished = true
	require.NoError(t, repos.Vehicle.Update(got))
	reloaded, err := repos.Vehicle.GetByID(v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2020, reloaded.Year)
	assert.True(t, reloaded.IsPublished)

	require.NoError(t, repos.Vehicle.Delete(v.ID))
	_, err = repos.Vehicle.GetByID(v.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLookupGetOrCreate(t *testing.T) {
	repos := NewRepositories(database.NewTestDB(t))
	lookups := repos.Lookup

	vw, err := lookups.GetOrCreateMake("Volkswagen")
	require.NoError(t, err)
	again, err := lookups.GetOrCreateMake("  Volkswagen ")
	require.NoError(t, err)
	assert.Equal(t, vw.ID, again.ID)

	golf, err := lookups.GetOrCreateModel(vw.ID, "Golf")
	require.NoError(t, err)

	trim, err := lookups.GetOrCreateTrim(golf.ID, "GTI", nil)
	require.NoError(t, err)
	assert.Nil(t, trim.Level)

	level := "Performance"
	withLevel, err := lookups.GetOrCreateTrim(golf.ID, "GTI", &level)
	require.NoError(t, err)
	assert.Equal(t, trim.ID, withLevel.ID)
	require.NotNil(t, withLevel.Level)
	assert.Equal(t, "Performance", *withLevel.Level)

	_, err = lookups.GetOrCreateMake(" ")
	assert.Error(t, err)

	trims, err := lookups.ListTrims(golf.ID)
	require.NoError(t, err)
	assert.Len(t, trims, 1)

	makes, err := lookups.ListMakes()
	require.NoError(t, err)
	assert.Len(t, makes, 1)
}

func TestFactoryReturnsSingletons(t *testing.T) {
	f := NewFactory(database.NewTestDB(t))

	repos := f.GetRepositories()
	assert.Same(t, repos, f.GetRepositories())
	assert.Equal(t, repos.Vehicle, f.GetVehicleRepository())
	assert.Equal(t, repos.Lookup, f.GetLookupRepository())
	assert.Equal(t, repos.PhotoUploadJob, f.GetPhotoUploadJobRepository())
}
