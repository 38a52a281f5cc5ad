package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/carsalesplatform/carsales/internal/pkg/cache"
	"github.com/carsalesplatform/carsales/internal/pkg/env"
	"github.com/carsalesplatform/carsales/internal/pkg/usercontext"
)

// limiterDatabase keeps limiter counters apart from the queue and cache keys.
const limiterDatabase = 2

// LimiterConfig bounds how many upload requests one caller may send.
type LimiterConfig struct {
	Max        int
	Expiration time.Duration
	// Storage is used when set; otherwise Redis when configured, else memory.
	Storage fiber.Storage
}

func LoadLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Max:        env.GetEnvInt("PHOTO_UPLOAD_RATE_MAX", 20),
		Expiration: env.GetEnvDuration("PHOTO_UPLOAD_RATE_WINDOW", time.Minute),
	}
}

// NewUploadLimiter limits upload requests per caller id, falling back to
// the client IP for anonymous requests.
func NewUploadLimiter(cfg LimiterConfig) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 20
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = time.Minute
	}
	storage := cfg.Storage
	if storage == nil && cache.IsConfigured() {
		storage = newRedisStorage()
	}

	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := usercontext.GetUserID(c); id != "" {
				return "upload:user:" + id
			}
			return "upload:ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "upload rate limit reached, try again later",
			})
		},
		Storage: storage,
	})
}

func newRedisStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(cache.Addr()); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	log.Infof("[Router] Upload limiter uses Redis at %s:%d (db %d)", host, port, limiterDatabase)
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: limiterDatabase,
		Reset:    false,
	})
}
