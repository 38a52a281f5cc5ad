package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/app/repository"
	"github.com/carsalesplatform/carsales/internal/pkg/cache"
	"github.com/carsalesplatform/carsales/internal/pkg/metrics/counter"
)

// Manager owns the worker goroutine and startup recovery.
type Manager struct {
	cfg     Config
	queue   Queue
	worker  *Worker
	jobs    repository.PhotoUploadJobRepository
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

func NewManager(cfg Config, queue Queue, worker *Worker, jobs repository.PhotoUploadJobRepository) *Manager {
	return &Manager{cfg: cfg, queue: queue, worker: worker, jobs: jobs}
}

// NewQueue builds the queue selected by cfg.Backend.
func NewQueue(cfg Config) Queue {
	if cfg.Backend == BackendRedis {
		log.Infof("[PhotoQueue] Using Redis list %s", PhotoQueueKey)
		return NewRedisQueue(cache.GetClient(), PhotoQueueKey)
	}
	log.Info("[PhotoQueue] Using in-memory queue")
	return NewMemoryQueue()
}

// NewCounter builds the pipeline counters matching cfg.Backend, so every
// process sharing the Redis queue also shares the totals.
func NewCounter(cfg Config) counter.Counter {
	if cfg.Backend == BackendRedis {
		return counter.NewRedisCounter(cache.GetClient(), counter.PhotoPipelineKey)
	}
	return counter.NewMemoryCounter()
}

// Queue returns the queue producers should enqueue to
func (m *Manager) Queue() Queue {
	return m.queue
}

// Start runs recovery (if enabled) and launches the worker.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if m.cfg.RecoverOnStart {
		if _, _, err := m.Recover(ctx); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go func(done chan struct{}) {
		defer close(done)
		m.worker.Run(runCtx)
	}(m.done)

	log.Info("[PhotoWorker Manager] Started")
	return nil
}

// Stop stops dequeuing and waits for the current job to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[PhotoWorker Manager] Stopping...")
	m.cancel()
	<-m.done
	m.running = false
	log.Info("[PhotoWorker Manager] Stopped")
}

// IsRunning returns whether the worker is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Recover re-enqueues pending jobs and fails processing jobs older than
// cfg.StuckAfter. Duplicated queue entries are harmless: the worker skips
// jobs that are no longer pending.
func (m *Manager) Recover(ctx context.Context) (requeued int, failed int, err error) {
	ids, err := m.jobs.ListIDsByStatus(models.PhotoJobStatusPending)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list pending photo jobs: %w", err)
	}
	for _, id := range ids {
		if err := m.queue.Enqueue(ctx, id); err != nil {
			return requeued, failed, err
		}
		requeued++
	}

	if m.cfg.StuckAfter > 0 {
		stale, err := m.jobs.ListStaleProcessing(time.Now().Add(-m.cfg.StuckAfter))
		if err != nil {
			return requeued, failed, fmt.Errorf("failed to list stuck photo jobs: %w", err)
		}
		for i := range stale {
			job := &stale[i]
			if err := job.MarkAsFailed(interruptedMessage); err != nil {
				continue
			}
			if err := m.jobs.UpdateStatus(job); err != nil {
				log.Errorf("[PhotoWorker Manager] Failed to mark stuck job %s: %v", job.ID, err)
				continue
			}
			if _, items, err := m.jobs.GetWithItems(job.ID); err == nil {
				m.worker.cleanupTemp(job, items)
			}
			failed++
		}
	}

	if requeued > 0 || failed > 0 {
		log.Infof("[PhotoWorker Manager] Recovery: %d pending job(s) re-enqueued, %d stuck job(s) failed", requeued, failed)
	}
	return requeued, failed, nil
}
