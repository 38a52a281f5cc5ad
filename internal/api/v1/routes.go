package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carsalesplatform/carsales/internal/pkg/middleware"
)

// Route is one v1 operation, relative to the /api/v1 group.
type Route struct {
	Method      string
	Path        string
	OperationID string
	// Auth marks routes that need a caller identity.
	Auth bool
	// Upload marks routes behind the upload rate limiter.
	Upload  bool
	handler func(*APIServer) fiber.Handler
}

// Routes lists every v1 operation. It is the single source for
// RegisterHandlers and for checking the OpenAPI document.
func Routes() []Route {
	return []Route{
		{Method: fiber.MethodGet, Path: "/ping", OperationID: "getPing", handler: func(s *APIServer) fiber.Handler { return s.GetPing }},
		{Method: fiber.MethodPost, Path: "/vehicles", OperationID: "createVehicle", Auth: true, handler: func(s *APIServer) fiber.Handler { return s.CreateVehicle }},
		{Method: fiber.MethodGet, Path: "/vehicles/:id", OperationID: "getVehicle", handler: func(s *APIServer) fiber.Handler { return s.GetVehicle }},
		{Method: fiber.MethodPut, Path: "/vehicles/:id", OperationID: "updateVehicle", Auth: true, handler: func(s *APIServer) fiber.Handler { return s.UpdateVehicle }},
		{Method: fiber.MethodDelete, Path: "/vehicles/:id", OperationID: "deleteVehicle", Auth: true, handler: func(s *APIServer) fiber.Handler { return s.DeleteVehicle }},
		{Method: fiber.MethodPost, Path: "/vehicles/:id/photos", OperationID: "uploadVehiclePhotos", Auth: true, Upload: true, handler: func(s *APIServer) fiber.Handler { return s.UploadVehiclePhotos }},
		{Method: fiber.MethodGet, Path: "/vehicles/:id/photos", OperationID: "listVehiclePhotos", handler: func(s *APIServer) fiber.Handler { return s.ListVehiclePhotos }},
		{Method: fiber.MethodPut, Path: "/vehicles/:id/photos/:photoId/cover", OperationID: "setVehicleCoverPhoto", Auth: true, handler: func(s *APIServer) fiber.Handler { return s.SetVehicleCoverPhoto }},
		{Method: fiber.MethodDelete, Path: "/vehicles/:id/photos/:photoId", OperationID: "deleteVehiclePhoto", Auth: true, handler: func(s *APIServer) fiber.Handler { return s.DeleteVehiclePhoto }},
		{Method: fiber.MethodGet, Path: "/photo-jobs/:id", OperationID: "getPhotoJob", Auth: true, handler: func(s *APIServer) fiber.Handler { return s.GetPhotoJob }},
		{Method: fiber.MethodGet, Path: "/photo-pipeline/stats", OperationID: "getPipelineStats", handler: func(s *APIServer) fiber.Handler { return s.GetPipelineStats }},
		{Method: fiber.MethodGet, Path: "/makes", OperationID: "listMakes", handler: func(s *APIServer) fiber.Handler { return s.ListMakes }},
		{Method: fiber.MethodGet, Path: "/makes/:id/models", OperationID: "listModels", handler: func(s *APIServer) fiber.Handler { return s.ListModels }},
		{Method: fiber.MethodGet, Path: "/models/:id/trims", OperationID: "listTrims", handler: func(s *APIServer) fiber.Handler { return s.ListTrims }},
	}
}

// Options carries middlewares applied to subsets of the routes
type Options struct {
	UploadLimiter fiber.Handler
}

// RegisterHandlers installs every v1 route on router.
func RegisterHandlers(router fiber.Router, s *APIServer, opts Options) {
	for _, r := range Routes() {
		handlers := make([]fiber.Handler, 0, 3)
		if r.Auth {
			handlers = append(handlers, middleware.RequireAPIAuth)
		}
		if r.Upload && opts.UploadLimiter != nil {
			handlers = append(handlers, opts.UploadLimiter)
		}
		handlers = append(handlers, r.handler(s))
		router.Add(r.Method, r.Path, handlers...)
	}
}
