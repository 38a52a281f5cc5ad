package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carsalesplatform/carsales/app/controllers"
)

// Pong is the ping response body
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer binds the v1 operations to their controllers
type APIServer struct {
	vehicles *controllers.VehicleController
	photos   *controllers.VehiclePhotoController
	lookups  *controllers.LookupController
	pipeline *controllers.PipelineController
}

func NewAPIServer(
	vehicles *controllers.VehicleController,
	photos *controllers.VehiclePhotoController,
	lookups *controllers.LookupController,
	pipeline *controllers.PipelineController,
) *APIServer {
	return &APIServer{vehicles: vehicles, photos: photos, lookups: lookups, pipeline: pipeline}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

func (s *APIServer) CreateVehicle(c *fiber.Ctx) error {
	return s.vehicles.HandleCreate(c)
}

func (s *APIServer) GetVehicle(c *fiber.Ctx) error {
	return s.vehicles.HandleGet(c)
}

func (s *APIServer) UpdateVehicle(c *fiber.Ctx) error {
	return s.vehicles.HandleUpdate(c)
}

func (s *APIServer) DeleteVehicle(c *fiber.Ctx) error {
	return s.vehicles.HandleDelete(c)
}

func (s *APIServer) UploadVehiclePhotos(c *fiber.Ctx) error {
	return s.photos.HandleUploadPhotos(c)
}

func (s *APIServer) ListVehiclePhotos(c *fiber.Ctx) error {
	return s.photos.HandleListPhotos(c)
}

func (s *APIServer) SetVehicleCoverPhoto(c *fiber.Ctx) error {
	return s.photos.HandleSetCover(c)
}

func (s *APIServer) DeleteVehiclePhoto(c *fiber.Ctx) error {
	return s.photos.HandleDeletePhoto(c)
}

func (s *APIServer) GetPhotoJob(c *fiber.Ctx) error {
	return s.photos.HandleGetPhotoJob(c)
}

func (s *APIServer) ListMakes(c *fiber.Ctx) error {
	return s.lookups.HandleListMakes(c)
}

func (s *APIServer) ListModels(c *fiber.Ctx) error {
	return s.lookups.HandleListModels(c)
}

func (s *APIServer) ListTrims(c *fiber.Ctx) error {
	return s.lookups.HandleListTrims(c)
}

func (s *APIServer) GetPipelineStats(c *fiber.Ctx) error {
	return s.pipeline.HandleStats(c)
}
