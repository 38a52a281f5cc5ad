package jobqueue

import (
	"context"
	"errors"
	"time"

	"github.com/carsalesplatform/carsales/internal/pkg/env"
)

// Queue carries photo job ids from request handlers to the worker.
//
// Enqueue never blocks on capacity and accepts duplicates. Dequeue waits
// until an id is available or ctx is done; a cancelled Dequeue consumes
// nothing.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context) (string, error)
	Len(ctx context.Context) (int64, error)
}

var (
	// ErrVehicleNotFound fails a job whose vehicle is missing or owned by someone else.
	ErrVehicleNotFound = errors.New("vehicle not found or access denied")
	ErrEmptyJobID      = errors.New("job id is empty")
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DefaultTempRoot   = "./data/temp_uploads"
	DefaultStuckAfter = 30 * time.Minute

	interruptedMessage = "interrupted before completion"
)

// Config holds photo worker settings
type Config struct {
	Backend        string
	TempRoot       string
	StuckAfter     time.Duration
	RecoverOnStart bool
}

// LoadConfig loads worker configuration from environment variables
func LoadConfig() Config {
	cfg := Config{
		Backend:        env.GetEnv("PHOTO_QUEUE_BACKEND", BackendMemory),
		TempRoot:       env.GetEnv("PHOTO_TEMP_ROOT", DefaultTempRoot),
		StuckAfter:     env.GetEnvDuration("PHOTO_STUCK_AFTER", DefaultStuckAfter),
		RecoverOnStart: env.GetEnvBool("PHOTO_RECOVER_ON_START", true),
	}
	if cfg.Backend != BackendRedis {
		cfg.Backend = BackendMemory
	}
	return cfg
}
