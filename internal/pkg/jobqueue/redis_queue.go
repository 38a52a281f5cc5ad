package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	// PhotoQueueKey is the Redis list holding pending photo job ids
	PhotoQueueKey = "photo_jobs:queue"

	DefaultPollTimeout = time.Second
)

// RedisQueue shares the job queue between processes through a Redis list.
// Producers LPUSH, the worker BRPOPs, so the list is FIFO.
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = PhotoQueueKey
	}
	return &RedisQueue{client: client, key: key, pollTimeout: DefaultPollTimeout}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrEmptyJobID
	}
	if err := q.client.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue photo job %s: %w", jobID, err)
	}
	return nil
}

// Dequeue polls with a short server-side timeout. The pop itself never runs
// on ctx: cancelling a request after Redis removed the id would drop it.
func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		res, err := q.client.BRPop(context.Background(), q.pollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			log.Errorf("[PhotoQueue] BRPOP on %s failed: %v", q.key, err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(q.pollTimeout):
			}
			continue
		}
		if len(res) == 2 {
			return res[1], nil
		}
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
