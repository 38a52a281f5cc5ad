package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/app/repository"
	"github.com/carsalesplatform/carsales/internal/pkg/env"
	"github.com/carsalesplatform/carsales/internal/pkg/gallery"
	"github.com/carsalesplatform/carsales/internal/pkg/jobqueue"
	"github.com/carsalesplatform/carsales/internal/pkg/upload"
	"github.com/carsalesplatform/carsales/internal/pkg/usercontext"
)

// PhotoFormField is the multipart field carrying the uploaded photos.
const PhotoFormField = "photos"

// DefaultMaxFileBytes caps a single uploaded photo.
const DefaultMaxFileBytes int64 = 15 << 20

// PhotoUploadConfig configures the upload endpoint
type PhotoUploadConfig struct {
	TempRoot     string
	MaxFileBytes int64
}

func LoadPhotoUploadConfig() PhotoUploadConfig {
	maxBytes := int64(env.GetEnvInt("PHOTO_MAX_FILE_BYTES", int(DefaultMaxFileBytes)))
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return PhotoUploadConfig{
		TempRoot:     env.GetEnv("PHOTO_TEMP_ROOT", jobqueue.DefaultTempRoot),
		MaxFileBytes: maxBytes,
	}
}

// BodyLimit is the request size the fiber app must accept for a full batch.
func (c PhotoUploadConfig) BodyLimit() int {
	return int(c.MaxFileBytes)*models.MaxPhotosPerVehicle + 1<<20
}

type photoUploadFile struct {
	Name string `validate:"required,max=255"`
	Size int64  `validate:"gt=0,within_file_limit"`
}

type photoUploadRequest struct {
	VehicleID uint              `validate:"required"`
	Files     []photoUploadFile `validate:"required,min=1,max=10,dive"`
}

type photoJobResponse struct {
	ID          string                `json:"id"`
	VehicleID   uint                  `json:"vehicle_id"`
	Status      models.PhotoJobStatus `json:"status"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

type vehiclePhotoResponse struct {
	ID        uint      `json:"id"`
	SortOrder int       `json:"sort_order"`
	IsCover   bool      `json:"is_cover"`
	LargeURL  string    `json:"large_url"`
	MediumURL string    `json:"medium_url"`
	ThumbURL  string    `json:"thumb_url"`
	CreatedAt time.Time `json:"created_at"`
}

// VehiclePhotoController accepts photo batches and manages a vehicle's photo set
type VehiclePhotoController struct {
	vehicles repository.VehicleRepository
	jobs     repository.PhotoUploadJobRepository
	photos   *gallery.Manager
	queue    jobqueue.Queue
	cfg      PhotoUploadConfig
	validate *validator.Validate
}

func NewVehiclePhotoController(repos *repository.Repositories, photos *gallery.Manager, queue jobqueue.Queue, cfg PhotoUploadConfig) *VehiclePhotoController {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	v := validator.New()
	_ = v.RegisterValidation("within_file_limit", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= cfg.MaxFileBytes
	})

	return &VehiclePhotoController{
		vehicles: repos.Vehicle,
		jobs:     repos.PhotoUploadJob,
		photos:   photos,
		queue:    queue,
		cfg:      cfg,
		validate: v,
	}
}

// HandleUploadPhotos parks the uploaded files and queues a processing job.
// Responds 202 with the job id the client polls.
func (vc *VehiclePhotoController) HandleUploadPhotos(c *fiber.Ctx) error {
	ownerID := usercontext.GetUserID(c)

	vehicleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	if _, err := vc.vehicles.GetByIDAndOwner(vehicleID, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondNotFound(c, "vehicle")
		}
		fiberlog.Errorf("[PhotoUpload] Vehicle lookup failed: %v", err)
		return respondInternal(c)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "bad_request", "expected a multipart form")
	}
	defer form.RemoveAll()

	files := form.File[PhotoFormField]
	req := photoUploadRequest{VehicleID: vehicleID, Files: make([]photoUploadFile, 0, len(files))}
	for _, fh := range files {
		req.Files = append(req.Files, photoUploadFile{Name: fh.Filename, Size: fh.Size})
	}
	if err := vc.validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "validation_failed", validationMessage(err))
	}

	mimes := make([]string, len(files))
	for i, fh := range files {
		mime, err := sniff(fh)
		if err != nil {
			return respondError(c, fiber.StatusUnsupportedMediaType, "unsupported_media_type", fmt.Sprintf("%s: %v", fh.Filename, err))
		}
		mimes[i] = mime
	}

	job := &models.PhotoUploadJob{ID: uuid.NewString(), VehicleID: vehicleID, OwnerID: ownerID}
	items, err := vc.saveTempFiles(c, job.ID, files, mimes)
	if err != nil {
		fiberlog.Errorf("[PhotoUpload] Failed to store temp files for vehicle %d: %v", vehicleID, err)
		return respondInternal(c)
	}

	if err := vc.jobs.Create(job, items); err != nil {
		vc.discardTemp(job.ID)
		fiberlog.Errorf("[PhotoUpload] Failed to create job for vehicle %d: %v", vehicleID, err)
		return respondInternal(c)
	}

	if err := vc.queue.Enqueue(c.Context(), job.ID); err != nil {
		fiberlog.Errorf("[PhotoUpload] Failed to enqueue job %s: %v", job.ID, err)
		if ferr := job.MarkAsFailed("could not be queued"); ferr == nil {
			_ = vc.jobs.UpdateStatus(job)
		}
		vc.discardTemp(job.ID)
		return respondError(c, fiber.StatusServiceUnavailable, "service_unavailable", "photo processing is unavailable, try again later")
	}

	fiberlog.Infof("[PhotoUpload] Queued job %s for vehicle %d (%d file(s))", job.ID, vehicleID, len(items))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func sniff(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, upload.SniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return upload.ValidateImageBySniff(fh.Filename, head[:n])
}

func (vc *VehiclePhotoController) saveTempFiles(c *fiber.Ctx, jobID string, files []*multipart.FileHeader, mimes []string) ([]models.PhotoUploadItem, error) {
	dir := jobqueue.TempDirFor(vc.cfg.TempRoot, jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	items := make([]models.PhotoUploadItem, 0, len(files))
	for i, fh := range files {
		dest := filepath.Join(dir, fmt.Sprintf("%d%s", i, strings.ToLower(filepath.Ext(fh.Filename))))
		if err := c.SaveFile(fh, dest); err != nil {
			vc.discardTemp(jobID)
			return nil, err
		}
		items = append(items, models.PhotoUploadItem{
			TempPath:         dest,
			ContentType:      mimes[i],
			Length:           fh.Size,
			OriginalFileName: filepath.Base(fh.Filename),
		})
	}
	return items, nil
}

func (vc *VehiclePhotoController) discardTemp(jobID string) {
	if err := os.RemoveAll(jobqueue.TempDirFor(vc.cfg.TempRoot, jobID)); err != nil {
		fiberlog.Warnf("[PhotoUpload] Failed to remove temp files of job %s: %v", jobID, err)
	}
}

// HandleGetPhotoJob reports the state of one of the caller's jobs.
func (vc *VehiclePhotoController) HandleGetPhotoJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if _, err := uuid.Parse(jobID); err != nil {
		return respondError(c, fiber.StatusBadRequest, "bad_request", "invalid job id")
	}

	job, err := vc.jobs.GetForOwner(jobID, usercontext.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondNotFound(c, "photo job")
		}
		fiberlog.Errorf("[PhotoUpload] Job lookup failed: %v", err)
		return respondInternal(c)
	}

	return c.JSON(photoJobResponse{
		ID:          job.ID,
		VehicleID:   job.VehicleID,
		Status:      job.Status,
		Error:       job.ErrorMessage(),
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	})
}

// HandleListPhotos lists a vehicle's photos. Unpublished vehicles are only
// visible to their owner.
func (vc *VehiclePhotoController) HandleListPhotos(c *fiber.Ctx) error {
	vehicleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	vehicle, err := vc.vehicles.GetByID(vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondNotFound(c, "vehicle")
		}
		return respondInternal(c)
	}
	if !vehicle.IsPublished && !vehicle.IsOwnedBy(usercontext.GetUserID(c)) {
		return respondNotFound(c, "vehicle")
	}

	photos, err := vc.photos.List(c.Context(), vehicleID)
	if err != nil {
		fiberlog.Errorf("[PhotoUpload] Listing photos of vehicle %d failed: %v", vehicleID, err)
		return respondInternal(c)
	}

	return c.JSON(fiber.Map{"vehicle_id": vehicleID, "photos": photoResponses(photos)})
}

// HandleSetCover makes a photo the vehicle's cover.
func (vc *VehiclePhotoController) HandleSetCover(c *fiber.Ctx) error {
	vehicleID, photoID, err := vc.ownedPhotoParams(c)
	if err != nil {
		if errors.Is(err, errResponseHandled) {
			return nil
		}
		return err
	}
	if err := vc.photos.SetCover(c.Context(), vehicleID, photoID); err != nil {
		if errors.Is(err, gallery.ErrPhotoNotFound) {
			return respondNotFound(c, "photo")
		}
		fiberlog.Errorf("[PhotoUpload] Setting cover %d on vehicle %d failed: %v", photoID, vehicleID, err)
		return respondInternal(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleDeletePhoto removes a photo and its files.
func (vc *VehiclePhotoController) HandleDeletePhoto(c *fiber.Ctx) error {
	vehicleID, photoID, err := vc.ownedPhotoParams(c)
	if err != nil {
		if errors.Is(err, errResponseHandled) {
			return nil
		}
		return err
	}
	if err := vc.photos.DeleteForVehicle(c.Context(), vehicleID, photoID); err != nil {
		if errors.Is(err, gallery.ErrPhotoNotFound) {
			return respondNotFound(c, "photo")
		}
		fiberlog.Errorf("[PhotoUpload] Deleting photo %d of vehicle %d failed: %v", photoID, vehicleID, err)
		return respondInternal(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

var errResponseHandled = errors.New("response already handled")

// ownedPhotoParams parses :id and :photoId and checks the caller owns the
// vehicle. errResponseHandled means the error response is already written.
func (vc *VehiclePhotoController) ownedPhotoParams(c *fiber.Ctx) (uint, uint, error) {
	vehicleID, err := paramID(c, "id")
	if err != nil {
		return 0, 0, handled(respondError(c, fiber.StatusBadRequest, "bad_request", err.Error()))
	}
	photoID, err := paramID(c, "photoId")
	if err != nil {
		return 0, 0, handled(respondError(c, fiber.StatusBadRequest, "bad_request", err.Error()))
	}
	if _, err := vc.vehicles.GetByIDAndOwner(vehicleID, usercontext.GetUserID(c)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, handled(respondNotFound(c, "vehicle"))
		}
		return 0, 0, handled(respondInternal(c))
	}
	return vehicleID, photoID, nil
}

func handled(err error) error {
	if err != nil {
		return err
	}
	return errResponseHandled
}
