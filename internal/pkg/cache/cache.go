package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/carsalesplatform/carsales/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis server
func SetupCache() {
	client = redis.NewClient(&redis.Options{
		Addr:     Addr(),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to Redis at %s: %v", Addr(), err)
	} else {
		log.Infof("[Cache] Connected to Redis: %s", pong)
	}
}

// Addr returns host:port from CACHE_HOST and CACHE_PORT.
func Addr() string {
	return fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
}

// IsConfigured reports whether a cache host was set explicitly.
func IsConfigured() bool {
	return env.GetEnv("CACHE_HOST", "") != ""
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Ping checks the connection with a short timeout.
func Ping(c context.Context) error {
	pingCtx, cancel := context.WithTimeout(c, time.Second)
	defer cancel()
	return GetClient().Ping(pingCtx).Err()
}

// Close releases the client; the next GetClient reconnects.
func Close() error {
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	return err
}
