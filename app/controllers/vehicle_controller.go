package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/app/repository"
	"github.com/carsalesplatform/carsales/internal/pkg/gallery"
	"github.com/carsalesplatform/carsales/internal/pkg/imageprocessor"
	"github.com/carsalesplatform/carsales/internal/pkg/usercontext"
)

const nctDateLayout = "2006-01-02"

// vehicleRequest is the body of create and update. Make, model and trim are
// given by name and created on first use.
type vehicleRequest struct {
	MakeName     string  `json:"make_name" validate:"required,max=80"`
	ModelName    string  `json:"model_name" validate:"required,max=80"`
	TrimName     string  `json:"trim_name" validate:"omitempty,max=80"`
	Year         int     `json:"year" validate:"required,min=1950,max=2100"`
	Mileage      int     `json:"mileage" validate:"min=0,max=2000000"`
	MileageUnit  string  `json:"mileage_unit" validate:"omitempty,oneof=miles km"`
	EngineLiters float64 `json:"engine_liters" validate:"omitempty,min=0.5,max=10"`
	FuelType     string  `json:"fuel_type" validate:"required,oneof=petrol diesel hybrid electric"`
	Transmission string  `json:"transmission" validate:"required,oneof=manual automatic"`
	BodyType     string  `json:"body_type" validate:"required,oneof=hatchback saloon estate suv mpv coupe convertible"`
	Seats        int     `json:"seats" validate:"omitempty,min=1,max=12"`
	Doors        int     `json:"doors" validate:"omitempty,min=1,max=10"`
	Colour       string  `json:"colour" validate:"max=60"`
	TotalOwners  int     `json:"total_owners" validate:"min=0,max=50"`
	NctExpiry    string  `json:"nct_expiry" validate:"omitempty,datetime=2006-01-02"`
	Price        float64 `json:"price" validate:"min=0,max=999999999"`
	IsPublished  bool    `json:"is_published"`
}

func (r *vehicleRequest) normalize() {
	r.MakeName = strings.TrimSpace(r.MakeName)
	r.ModelName = strings.TrimSpace(r.ModelName)
	r.TrimName = strings.TrimSpace(r.TrimName)
	r.Colour = strings.TrimSpace(r.Colour)
	if r.MileageUnit == "" {
		r.MileageUnit = string(models.MileageUnitMiles)
	}
}

type vehicleResponse struct {
	*models.Vehicle
	Photos []vehiclePhotoResponse `json:"photos"`
	Cover  *vehiclePhotoResponse  `json:"cover"`
}

// VehicleController manages listings. Writes are limited to the owner.
type VehicleController struct {
	vehicles repository.VehicleRepository
	lookups  repository.LookupRepository
	photos   *gallery.Manager
	validate *validator.Validate
}

func NewVehicleController(repos *repository.Repositories, photos *gallery.Manager) *VehicleController {
	return &VehicleController{
		vehicles: repos.Vehicle,
		lookups:  repos.Lookup,
		photos:   photos,
		validate: validator.New(),
	}
}

// HandleCreate creates a listing owned by the caller.
func (vc *VehicleController) HandleCreate(c *fiber.Ctx) error {
	req, err := vc.parseRequest(c)
	if err != nil {
		return handledOnly(err)
	}

	vehicle := &models.Vehicle{OwnerID: usercontext.GetUserID(c)}
	if err := vc.apply(req, vehicle); err != nil {
		fiberlog.Errorf("[Vehicle] Resolving make/model failed: %v", err)
		return respondInternal(c)
	}
	if err := vc.vehicles.Create(vehicle); err != nil {
		fiberlog.Errorf("[Vehicle] Create failed: %v", err)
		return respondInternal(c)
	}

	fiberlog.Infof("[Vehicle] Created vehicle %d for %s", vehicle.ID, vehicle.OwnerID)
	return vc.render(c, fiber.StatusCreated, vehicle)
}

// HandleGet returns a listing with its photos. Unpublished listings are only
// visible to their owner.
func (vc *VehicleController) HandleGet(c *fiber.Ctx) error {
	vehicleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	vehicle, err := vc.vehicles.GetByID(vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondNotFound(c, "vehicle")
		}
		fiberlog.Errorf("[Vehicle] Lookup of %d failed: %v", vehicleID, err)
		return respondInternal(c)
	}
	if !vehicle.IsPublished && !vehicle.IsOwnedBy(usercontext.GetUserID(c)) {
		return respondNotFound(c, "vehicle")
	}

	return vc.render(c, fiber.StatusOK, vehicle)
}

// render writes the vehicle with its photos and cover.
func (vc *VehicleController) render(c *fiber.Ctx, status int, vehicle *models.Vehicle) error {
	photos, err := vc.photos.List(c.Context(), vehicle.ID)
	if err != nil {
		fiberlog.Errorf("[Vehicle] Listing photos of vehicle %d failed: %v", vehicle.ID, err)
		return respondInternal(c)
	}

	out := vehicleResponse{Vehicle: vehicle, Photos: photoResponses(photos)}
	if cover := models.CoverPhoto(photos); cover != nil {
		r := photoResponse(*cover)
		out.Cover = &r
	}
	return c.Status(status).JSON(out)
}

// HandleUpdate replaces the editable fields of one of the caller's listings.
func (vc *VehicleController) HandleUpdate(c *fiber.Ctx) error {
	vehicle, err := vc.ownedVehicle(c)
	if err != nil {
		return handledOnly(err)
	}
	req, err := vc.parseRequest(c)
	if err != nil {
		return handledOnly(err)
	}

	if err := vc.apply(req, vehicle); err != nil {
		fiberlog.Errorf("[Vehicle] Resolving make/model failed: %v", err)
		return respondInternal(c)
	}
	if err := vc.vehicles.Update(vehicle); err != nil {
		fiberlog.Errorf("[Vehicle] Update of %d failed: %v", vehicle.ID, err)
		return respondInternal(c)
	}
	return vc.render(c, fiber.StatusOK, vehicle)
}

// HandleDelete removes a listing together with every photo and its files.
func (vc *VehicleController) HandleDelete(c *fiber.Ctx) error {
	vehicle, err := vc.ownedVehicle(c)
	if err != nil {
		return handledOnly(err)
	}

	removed, err := vc.photos.RemoveAllForVehicle(c.Context(), vehicle.ID)
	if err != nil {
		fiberlog.Errorf("[Vehicle] Removing photos of vehicle %d failed: %v", vehicle.ID, err)
		return respondInternal(c)
	}
	if err := vc.vehicles.Delete(vehicle.ID); err != nil {
		fiberlog.Errorf("[Vehicle] Delete of %d failed: %v", vehicle.ID, err)
		return respondInternal(c)
	}

	fiberlog.Infof("[Vehicle] Deleted vehicle %d and %d photo(s)", vehicle.ID, removed)
	return c.SendStatus(fiber.StatusNoContent)
}

func (vc *VehicleController) ownedVehicle(c *fiber.Ctx) (*models.Vehicle, error) {
	vehicleID, err := paramID(c, "id")
	if err != nil {
		return nil, handled(respondError(c, fiber.StatusBadRequest, "bad_request", err.Error()))
	}
	vehicle, err := vc.vehicles.GetByIDAndOwner(vehicleID, usercontext.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, handled(respondNotFound(c, "vehicle"))
		}
		fiberlog.Errorf("[Vehicle] Lookup of %d failed: %v", vehicleID, err)
		return nil, handled(respondInternal(c))
	}
	return vehicle, nil
}

func (vc *VehicleController) parseRequest(c *fiber.Ctx) (*vehicleRequest, error) {
	var req vehicleRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, handled(respondError(c, fiber.StatusBadRequest, "bad_request", "expected a JSON vehicle"))
	}
	req.normalize()
	if err := vc.validate.Struct(req); err != nil {
		return nil, handled(respondError(c, fiber.StatusBadRequest, "validation_failed", validationMessage(err)))
	}
	return &req, nil
}

// apply resolves the lookup names and copies the request onto v.
func (vc *VehicleController) apply(req *vehicleRequest, v *models.Vehicle) error {
	mk, err := vc.lookups.GetOrCreateMake(req.MakeName)
	if err != nil {
		return fmt.Errorf("make %q: %w", req.MakeName, err)
	}
	model, err := vc.lookups.GetOrCreateModel(mk.ID, req.ModelName)
	if err != nil {
		return fmt.Errorf("model %q: %w", req.ModelName, err)
	}
	v.TrimID = nil
	if req.TrimName != "" {
		trim, err := vc.lookups.GetOrCreateTrim(model.ID, req.TrimName, nil)
		if err != nil {
			return fmt.Errorf("trim %q: %w", req.TrimName, err)
		}
		v.TrimID = &trim.ID
	}

	v.NctExpiry = nil
	if req.NctExpiry != "" {
		// already checked by the datetime validator
		expiry, _ := time.Parse(nctDateLayout, req.NctExpiry)
		v.NctExpiry = &expiry
	}

	v.MakeID = mk.ID
	v.ModelID = model.ID
	v.Year = req.Year
	v.Mileage = req.Mileage
	v.MileageUnit = models.MileageUnit(req.MileageUnit)
	v.EngineLiters = req.EngineLiters
	v.FuelType = models.FuelType(req.FuelType)
	v.Transmission = models.TransmissionType(req.Transmission)
	v.BodyType = models.BodyType(req.BodyType)
	v.Seats = req.Seats
	v.Doors = req.Doors
	v.Colour = req.Colour
	v.TotalOwners = req.TotalOwners
	v.Price = req.Price
	v.IsPublished = req.IsPublished
	return nil
}

func photoResponse(p models.VehiclePhoto) vehiclePhotoResponse {
	return vehiclePhotoResponse{
		ID:        p.ID,
		SortOrder: p.SortOrder,
		IsCover:   p.IsCover,
		LargeURL:  p.URL,
		MediumURL: imageprocessor.MediumFromLarge(p.URL),
		ThumbURL:  imageprocessor.ThumbFromLarge(p.URL),
		CreatedAt: p.CreatedAt,
	}
}

func photoResponses(photos []models.VehiclePhoto) []vehiclePhotoResponse {
	out := make([]vehiclePhotoResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, photoResponse(p))
	}
	return out
}

// handledOnly swallows errResponseHandled once the response is written.
func handledOnly(err error) error {
	if errors.Is(err, errResponseHandled) {
		return nil
	}
	return err
}
