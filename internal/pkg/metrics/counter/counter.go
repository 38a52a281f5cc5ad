package counter

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// PhotoPipelineKey is the Redis hash holding the pipeline counters.
const PhotoPipelineKey = "photo_jobs:counters"

const (
	JobsCompleted = "jobs_completed"
	JobsFailed    = "jobs_failed"
	PhotosAdded   = "photos_added"
	PhotosEvicted = "photos_evicted"
	ItemsSkipped  = "items_skipped"
)

// Counter accumulates named totals.
type Counter interface {
	Add(ctx context.Context, field string, n int64) error
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// MemoryCounter keeps totals for the lifetime of the process
type MemoryCounter struct {
	mu     sync.Mutex
	totals map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{totals: map[string]int64{}}
}

func (m *MemoryCounter) Add(_ context.Context, field string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[field] += n
	return nil
}

func (m *MemoryCounter) Snapshot(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.totals))
	for k, v := range m.totals {
		out[k] = v
	}
	return out, nil
}

// RedisCounter keeps totals in a Redis hash shared by every process
type RedisCounter struct {
	client *redis.Client
	key    string
}

func NewRedisCounter(client *redis.Client, key string) *RedisCounter {
	return &RedisCounter{client: client, key: key}
}

func (r *RedisCounter) Add(ctx context.Context, field string, n int64) error {
	return r.client.HIncrBy(ctx, r.key, field, n).Err()
}

func (r *RedisCounter) Snapshot(ctx context.Context) (map[string]int64, error) {
	data, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for field, raw := range data {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[field] = v
	}
	return out, nil
}
