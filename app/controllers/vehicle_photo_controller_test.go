package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/app/repository"
	"github.com/carsalesplatform/carsales/internal/pkg/database"
	"github.com/carsalesplatform/carsales/internal/pkg/gallery"
	"github.com/carsalesplatform/carsales/internal/pkg/imageprocessor"
	"github.com/carsalesplatform/carsales/internal/pkg/jobqueue"
	"github.com/carsalesplatform/carsales/internal/pkg/middleware"
	"github.com/carsalesplatform/carsales/internal/pkg/testutil"
	"github.com/carsalesplatform/carsales/internal/pkg/usercontext"
)

type photoAPI struct {
	app     *fiber.App
	repos   *repository.Repositories
	gallery *gallery.Manager
	queue   *jobqueue.MemoryQueue
	worker  *jobqueue.Worker
	cfg     PhotoUploadConfig
}

type formFile struct {
	name string
	data []byte
}

func newPhotoAPI(t *testing.T) *photoAPI {
	t.Helper()
	db := database.NewTestDB(t)
	repos := repository.NewRepositories(db)
	layout := imageprocessor.Layout{UploadRoot: t.TempDir(), PublicPrefix: imageprocessor.DefaultPublicPrefix}
	photos := gallery.NewManager(db, layout)
	queue := jobqueue.NewMemoryQueue()
	cfg := PhotoUploadConfig{TempRoot: t.TempDir(), MaxFileBytes: 1 << 20}

	pc := NewVehiclePhotoController(repos, photos, queue, cfg)
	app := fiber.New()
	app.Use(middleware.UserContextMiddleware)
	app.Post("/vehicles/:id/photos", pc.HandleUploadPhotos)
	app.Get("/vehicles/:id/photos", pc.HandleListPhotos)
	app.Put("/vehicles/:id/photos/:photoId/cover", pc.HandleSetCover)
	app.Delete("/vehicles/:id/photos/:photoId", pc.HandleDeletePhoto)
	app.Get("/photo-jobs/:id", pc.HandleGetPhotoJob)

	return &photoAPI{
		app:     app,
		repos:   repos,
		gallery: photos,
		queue:   queue,
		worker:  jobqueue.NewWorker(queue, repos.PhotoUploadJob, repos.Vehicle, photos, imageprocessor.NewGenerator(layout), cfg.TempRoot),
		cfg:     cfg,
	}
}

func (a *photoAPI) vehicle(t *testing.T, owner string, published bool) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{
		OwnerID: owner, MakeID: 1, ModelID: 1, Year: 2019, IsPublished: published,
		FuelType: models.FuelTypeDiesel, Transmission: models.TransmissionManual, BodyType: models.BodyTypeHatchback,
	}
	require.NoError(t, a.repos.Vehicle.Create(v))
	return v
}

func (a *photoAPI) do(t *testing.T, req *http.Request, user string) (*http.Response, map[string]any) {
	t.Helper()
	if user != "" {
		req.Header.Set(usercontext.HeaderUserID, user)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func uploadRequest(t *testing.T, vehicleID uint, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile(PhotoFormField, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/vehicles/%d/photos", vehicleID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (a *photoAPI) queued(t *testing.T) int64 {
	t.Helper()
	n, err := a.queue.Len(context.Background())
	require.NoError(t, err)
	return n
}

func tempEntries(t *testing.T, root string) int {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	return len(entries)
}

func TestUploadPhotosQueuesJob(t *testing.T) {
	a := newPhotoAPI(t)
	v := a.vehicle(t, "owner-1", false)

	resp, body := a.do(t, uploadRequest(t, v.ID,
		formFile{"front.jpg", testutil.JPEG(t, 64, 48)},
		formFile{"side.webp", testutil.WebP(t, 64, 48)},
	), "owner-1")
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode, body)
	assert.Equal(t, string(models.PhotoJobStatusPending), body["status"])

	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, int64(1), a.queued(t))

	job, items, err := a.repos.PhotoUploadJob.GetWithItems(jobID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, job.VehicleID)
	assert.Equal(t, "owner-1", job.OwnerID)
	require.Len(t, items, 2)
	assert.Equal(t, "image/jpeg", items[0].ContentType)
	assert.Equal(t, "image/webp", items[1].ContentType)
	assert.Equal(t, "side.webp", items[1].OriginalFileName)
	for _, item := range items {
		assert.FileExists(t, item.TempPath)
	}
}

func TestUploadPhotosRejections(t *testing.T) {
	a := newPhotoAPI(t)
	v := a.vehicle(t, "owner-1", true)
	jpeg := testutil.JPEG(t, 32, 32)

	tooMany := make([]formFile, 0, models.MaxPhotosPerVehicle+1)
	for i := 0; i <= models.MaxPhotosPerVehicle; i++ {
		tooMany = append(tooMany, formFile{fmt.Sprintf("%d.jpg", i), jpeg})
	}

	tests := []struct {
		name   string
		user   string
		req    *http.Request
		status int
	}{
		{"anonymous", "", uploadRequest(t, v.ID, formFile{"a.jpg", jpeg}), fiber.StatusNotFound},
		{"not the owner", "owner-2", uploadRequest(t, v.ID, formFile{"a.jpg", jpeg}), fiber.StatusNotFound},
		{"unknown vehicle", "owner-1", uploadRequest(t, v.ID+100, formFile{"a.jpg", jpeg}), fiber.StatusNotFound},
		{"bad vehicle id", "owner-1", httptest.NewRequest(http.MethodPost, "/vehicles/abc/photos", nil), fiber.StatusBadRequest},
		{"no files", "owner-1", uploadRequest(t, v.ID), fiber.StatusBadRequest},
		{"too many files", "owner-1", uploadRequest(t, v.ID, tooMany...), fiber.StatusBadRequest},
		{"file too large", "owner-1", uploadRequest(t, v.ID, formFile{"big.jpg", make([]byte, 2<<20)}), fiber.StatusBadRequest},
		{"not an image", "owner-1", uploadRequest(t, v.ID, formFile{"a.jpg", jpeg}, formFile{"notes.jpg", []byte("just some text")}), fiber.StatusUnsupportedMediaType},
		{"html payload", "owner-1", uploadRequest(t, v.ID, formFile{"x.png", []byte("<html><script>alert(1)</script></html>")}), fiber.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := a.do(t, tt.req, tt.user)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			code, ok := body["error"].(string)
			assert.True(t, ok, "error must be a flat code string: %v", body)
			assert.NotEmpty(t, code)
			assert.NotEmpty(t, body["message"])
		})
	}

	assert.Zero(t, a.queued(t))
	assert.Zero(t, tempEntries(t, a.cfg.TempRoot))
}

func TestGetPhotoJob(t *testing.T) {
	a := newPhotoAPI(t)
	v := a.vehicle(t, "owner-1", false)
	job := &models.PhotoUploadJob{VehicleID: v.ID, OwnerID: "owner-1"}
	require.NoError(t, a.repos.PhotoUploadJob.Create(job, nil))

	resp, body := a.do(t, httptest.NewRequest(http.MethodGet, "/photo-jobs/"+job.ID, nil), "owner-1")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, job.ID, body["id"])
	assert.Equal(t, "pending", body["status"])
	assert.NotContains(t, body, "error")

	resp, _ = a.do(t, httptest.NewRequest(http.MethodGet, "/photo-jobs/"+job.ID, nil), "owner-2")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, httptest.NewRequest(http.MethodGet, "/photo-jobs/not-a-uuid", nil), "owner-1")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUploadThenProcess(t *testing.T) {
	a := newPhotoAPI(t)
	v := a.vehicle(t, "owner-1", false)

	resp, body := a.do(t, uploadRequest(t, v.ID,
		formFile{"one.jpg", testutil.JPEG(t, 200, 150)},
		formFile{"two.jpg", testutil.JPEG(t, 150, 200)},
	), "owner-1")
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode, body)
	jobID := body["job_id"].(string)

	queued, err := a.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, jobID, queued)
	require.NoError(t, a.worker.ProcessJob(context.Background(), queued))

	resp, body = a.do(t, httptest.NewRequest(http.MethodGet, "/photo-jobs/"+jobID, nil), "owner-1")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	assert.NotEmpty(t, body["completed_at"])

	resp, body = a.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/vehicles/%d/photos", v.ID), nil), "owner-1")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	photos := body["photos"].([]any)
	require.Len(t, photos, 2)
	first := photos[0].(map[string]any)
	assert.Equal(t, true, first["is_cover"])
	assert.Contains(t, first["large_url"], "_large.jpg")
	assert.Contains(t, first["medium_url"], "_medium.jpg")
	assert.Contains(t, first["thumb_url"], "_thumb.jpg")
	assert.Zero(t, tempEntries(t, a.cfg.TempRoot))
}

func TestListPhotosVisibility(t *testing.T) {
	a := newPhotoAPI(t)
	draft := a.vehicle(t, "owner-1", false)
	live := a.vehicle(t, "owner-1", true)

	list := func(id uint, user string) int {
		resp, _ := a.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/vehicles/%d/photos", id), nil), user)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, list(draft.ID, "owner-1"))
	assert.Equal(t, fiber.StatusNotFound, list(draft.ID, "owner-2"))
	assert.Equal(t, fiber.StatusNotFound, list(draft.ID, ""))
	assert.Equal(t, fiber.StatusOK, list(live.ID, ""))
	assert.Equal(t, fiber.StatusNotFound, list(live.ID+100, "owner-1"))
}

func TestSetCoverAndDelete(t *testing.T) {
	a := newPhotoAPI(t)
	v := a.vehicle(t, "owner-1", false)
	ctx := context.Background()

	first, err := a.gallery.Append(ctx, v.ID, imageprocessor.DefaultPublicPrefix+fmt.Sprintf("/%d/a_large.jpg", v.ID))
	require.NoError(t, err)
	second, err := a.gallery.Append(ctx, v.ID, imageprocessor.DefaultPublicPrefix+fmt.Sprintf("/%d/b_large.jpg", v.ID))
	require.NoError(t, err)
	require.True(t, first.IsCover)

	coverURL := func(photoID uint) string {
		return fmt.Sprintf("/vehicles/%d/photos/%d/cover", v.ID, photoID)
	}

	resp, _ := a.do(t, httptest.NewRequest(http.MethodPut, coverURL(second.ID), nil), "owner-2")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, httptest.NewRequest(http.MethodPut, coverURL(second.ID+100), nil), "owner-1")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, httptest.NewRequest(http.MethodPut, coverURL(second.ID), nil), "owner-1")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	photos, err := a.gallery.List(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, photos[0].IsCover)
	assert.True(t, photos[1].IsCover)

	deleteURL := fmt.Sprintf("/vehicles/%d/photos/%d", v.ID, second.ID)
	resp, _ = a.do(t, httptest.NewRequest(http.MethodDelete, deleteURL, nil), "owner-2")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, httptest.NewRequest(http.MethodDelete, deleteURL, nil), "owner-1")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	photos, err = a.gallery.List(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, first.ID, photos[0].ID)
	assert.True(t, photos[0].IsCover)

	resp, _ = a.do(t, httptest.NewRequest(http.MethodDelete, deleteURL, nil), "owner-1")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
