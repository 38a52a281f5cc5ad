package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/carsalesplatform/carsales/app/controllers"
	"github.com/carsalesplatform/carsales/app/repository"
	apiv1 "github.com/carsalesplatform/carsales/internal/api/v1"
	"github.com/carsalesplatform/carsales/internal/pkg/cache"
	"github.com/carsalesplatform/carsales/internal/pkg/database"
	"github.com/carsalesplatform/carsales/internal/pkg/env"
	"github.com/carsalesplatform/carsales/internal/pkg/gallery"
	"github.com/carsalesplatform/carsales/internal/pkg/imageprocessor"
	"github.com/carsalesplatform/carsales/internal/pkg/jobqueue"
	"github.com/carsalesplatform/carsales/internal/pkg/router"
	"github.com/carsalesplatform/carsales/internal/pkg/s3backup"
	"github.com/carsalesplatform/carsales/internal/pkg/seed"
)

const shutdownTimeout = 30 * time.Second

type application struct {
	app     *fiber.App
	workers *jobqueue.Manager
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := NewApplication(ctx)
	if err := a.workers.Start(ctx); err != nil {
		log.Fatalf("failed to start photo worker: %v", err)
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := a.app.Listen(addr); err != nil {
			fiberlog.Errorf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	fiberlog.Info("Shutting down...")

	if err := a.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		fiberlog.Errorf("HTTP shutdown: %v", err)
	}
	a.workers.Stop()
	if err := cache.Close(); err != nil {
		fiberlog.Warnf("Closing cache: %v", err)
	}
}

func NewApplication(ctx context.Context) *application {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	basePath := findBasePath()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalFactory().GetRepositories()

	if env.IsDev() && env.GetEnvBool("SEED_DEMO_DATA", true) {
		if err := seed.Run(repos, env.GetEnv("SEED_OWNER_ID", "demo-owner")); err != nil {
			fiberlog.Warnf("Seeding dev data failed: %v", err)
		}
	}

	layout := imageprocessor.LoadLayout()
	photos := gallery.NewManager(database.GetDB(), layout)
	if mirror := newMirror(ctx); mirror != nil {
		photos.WithMirror(mirror)
	}

	queueCfg := jobqueue.LoadConfig()
	queue := jobqueue.NewQueue(queueCfg)
	worker := jobqueue.NewWorker(queue, repos.PhotoUploadJob, repos.Vehicle, photos, imageprocessor.NewGenerator(layout), queueCfg.TempRoot).
		WithCounter(jobqueue.NewCounter(queueCfg))
	workers := jobqueue.NewManager(queueCfg, queue, worker, repos.PhotoUploadJob)

	uploadCfg := controllers.LoadPhotoUploadConfig()
	uploadCfg.TempRoot = queueCfg.TempRoot
	server := apiv1.NewAPIServer(
		controllers.NewVehicleController(repos, photos),
		controllers.NewVehiclePhotoController(repos, photos, queue, uploadCfg),
		controllers.NewLookupController(repos.Lookup),
		controllers.NewPipelineController(queue, worker.Counters()),
	)

	app := fiber.New(fiber.Config{
		BodyLimit: uploadCfg.BodyLimit(),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// processed vehicle photos
	app.Static(layout.PublicPrefix, layout.UploadRoot, fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800, // 7 days
	})

	// SWAGGER / OPENAPI
	specFile := basePath + "public/docs/v1/openapi.yml"
	if _, err := apiv1.LoadSpec(ctx, specFile); err != nil {
		fiberlog.Warnf("OpenAPI document problem: %v", err)
	}
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: specFile,
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.NewApiRouter(server, router.LoadLimiterConfig()))

	return &application{app: app, workers: workers}
}

// newMirror returns the S3 mirror when enabled and reachable.
func newMirror(ctx context.Context) gallery.Mirror {
	cfg, err := s3backup.LoadConfig()
	if err != nil {
		fiberlog.Warnf("[S3Backup] Invalid configuration, mirror disabled: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := s3backup.NewClient(ctx, cfg)
	if err != nil {
		fiberlog.Warnf("[S3Backup] Mirror disabled: %v", err)
		return nil
	}
	return client
}

func findBasePath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/carsales to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			return path
		}
	}
	panic("Could not find project root directory")
}
