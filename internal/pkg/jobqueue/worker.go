package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/app/repository"
	"github.com/carsalesplatform/carsales/internal/pkg/gallery"
	"github.com/carsalesplatform/carsales/internal/pkg/imageprocessor"
	"github.com/carsalesplatform/carsales/internal/pkg/metrics/counter"
)

// VariantGenerator turns one uploaded image into its stored variants.
type VariantGenerator interface {
	Generate(r io.Reader, vehicleID uint) (*imageprocessor.VariantSet, error)
}

// Worker consumes photo job ids one at a time.
type Worker struct {
	queue     Queue
	jobs      repository.PhotoUploadJobRepository
	vehicles  repository.VehicleRepository
	gallery   *gallery.Manager
	generator VariantGenerator
	tempRoot  string
	counters  counter.Counter
}

func NewWorker(
	queue Queue,
	jobs repository.PhotoUploadJobRepository,
	vehicles repository.VehicleRepository,
	photos *gallery.Manager,
	generator VariantGenerator,
	tempRoot string,
) *Worker {
	return &Worker{
		queue:     queue,
		jobs:      jobs,
		vehicles:  vehicles,
		gallery:   photos,
		generator: generator,
		tempRoot:  tempRoot,
		counters:  counter.NewMemoryCounter(),
	}
}

// WithCounter replaces the in-process counters, e.g. with a Redis-backed one.
func (w *Worker) WithCounter(c counter.Counter) *Worker {
	if c != nil {
		w.counters = c
	}
	return w
}

// Counters exposes the pipeline totals
func (w *Worker) Counters() counter.Counter {
	return w.counters
}

func (w *Worker) count(ctx context.Context, field string, n int64) {
	if n == 0 {
		return
	}
	if err := w.counters.Add(ctx, field, n); err != nil {
		log.Debugf("[PhotoWorker] Counter %s not updated: %v", field, err)
	}
}

// TempDirFor is where the upload handler parks a job's files.
func TempDirFor(tempRoot, jobID string) string {
	return filepath.Join(tempRoot, strings.ReplaceAll(jobID, "-", ""))
}

// Run processes jobs until ctx is cancelled. A job that is already running
// when ctx ends is finished first.
func (w *Worker) Run(ctx context.Context) {
	log.Info("[PhotoWorker] Started")
	for {
		jobID, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("[PhotoWorker] Stopping")
				return
			}
			log.Errorf("[PhotoWorker] Dequeue failed: %v", err)
			continue
		}

		if err := w.ProcessJob(context.WithoutCancel(ctx), jobID); err != nil {
			log.Errorf("[PhotoWorker] %v", err)
		}
	}
}

// ProcessJob runs one job to Completed or Failed. Unknown ids and jobs that
// are no longer pending are skipped without error.
func (w *Worker) ProcessJob(ctx context.Context, jobID string) (err error) {
	job, items, err := w.jobs.GetWithItems(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[PhotoWorker] Job %s not found, dropping", jobID)
			return nil
		}
		return fmt.Errorf("failed to load photo job %s: %w", jobID, err)
	}
	if job.Status != models.PhotoJobStatusPending {
		log.Warnf("[PhotoWorker] Job %s is %s, skipping", jobID, job.Status)
		return nil
	}

	claimed, err := w.jobs.ClaimPending(job)
	if err != nil {
		return fmt.Errorf("failed to mark photo job %s as processing: %w", jobID, err)
	}
	if !claimed {
		log.Warnf("[PhotoWorker] Job %s was claimed by another worker, skipping", jobID)
		return nil
	}
	log.Infof("[PhotoWorker] Processing job %s for vehicle %d (%d item(s))", job.ID, job.VehicleID, len(items))

	defer w.cleanupTemp(job, items)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			w.fail(job, err)
			err = fmt.Errorf("photo job %s failed: %w", job.ID, err)
		}
	}()

	return w.process(ctx, job, items)
}

func (w *Worker) process(ctx context.Context, job *models.PhotoUploadJob, items []models.PhotoUploadItem) error {
	vehicle, err := w.vehicles.GetByIDAndOwner(job.VehicleID, job.OwnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVehicleNotFound
		}
		return fmt.Errorf("failed to load vehicle %d: %w", job.VehicleID, err)
	}

	valid := make([]models.PhotoUploadItem, 0, len(items))
	for _, item := range items {
		if _, err := os.Stat(item.TempPath); err != nil {
			log.Warnf("[PhotoWorker] Job %s: temp file for %q is gone, ignoring", job.ID, item.OriginalFileName)
			continue
		}
		valid = append(valid, item)
	}

	evict, err := w.gallery.Admit(ctx, vehicle.ID, len(valid))
	if err != nil {
		return err
	}
	if err := w.gallery.Evict(ctx, vehicle.ID, evict); err != nil {
		return err
	}

	added := 0
	for _, item := range valid {
		if w.processItem(ctx, job, vehicle.ID, item) {
			added++
		}
	}

	if err := w.gallery.EnsureCover(ctx, vehicle.ID); err != nil {
		return err
	}

	done := *job
	if err := done.MarkAsCompleted(); err != nil {
		return err
	}
	if err := w.jobs.UpdateStatus(&done); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	*job = done

	w.count(ctx, counter.JobsCompleted, 1)
	w.count(ctx, counter.PhotosAdded, int64(added))
	w.count(ctx, counter.PhotosEvicted, int64(len(evict)))
	w.count(ctx, counter.ItemsSkipped, int64(len(valid)-added))
	log.Infof("[PhotoWorker] Job %s completed: %d/%d photo(s) added, %d evicted", job.ID, added, len(valid), len(evict))
	return nil
}

// processItem turns one temp file into a photo. Failures only skip the item.
func (w *Worker) processItem(ctx context.Context, job *models.PhotoUploadJob, vehicleID uint, item models.PhotoUploadItem) bool {
	defer func() {
		if err := imageprocessor.SafeRemove(item.TempPath); err != nil {
			log.Warnf("[PhotoWorker] Failed to remove temp file %s: %v", item.TempPath, err)
		}
	}()

	f, err := os.Open(item.TempPath)
	if err != nil {
		log.Warnf("[PhotoWorker] Job %s: cannot open %q: %v", job.ID, item.OriginalFileName, err)
		return false
	}
	defer f.Close()

	set, err := w.generator.Generate(f, vehicleID)
	if err != nil {
		log.Warnf("[PhotoWorker] Job %s: skipping %q: %v", job.ID, item.OriginalFileName, err)
		return false
	}

	if _, err := w.gallery.Append(ctx, vehicleID, set.URL); err != nil {
		_ = imageprocessor.RemoveAll(set.Paths()...)
		log.Warnf("[PhotoWorker] Job %s: could not store %q: %v", job.ID, item.OriginalFileName, err)
		return false
	}
	return true
}

func (w *Worker) fail(job *models.PhotoUploadJob, cause error) {
	w.count(context.Background(), counter.JobsFailed, 1)
	if err := job.MarkAsFailed(cause.Error()); err != nil {
		log.Errorf("[PhotoWorker] Job %s: cannot mark failed from %s", job.ID, job.Status)
		return
	}
	if err := w.jobs.UpdateStatus(job); err != nil {
		log.Errorf("[PhotoWorker] Job %s: failed to persist failure: %v", job.ID, err)
	}
}

// cleanupTemp deletes whatever temp files are left and the job directory if
// it ended up empty. Failed jobs are not retried.
func (w *Worker) cleanupTemp(job *models.PhotoUploadJob, items []models.PhotoUploadItem) {
	for _, item := range items {
		_ = imageprocessor.SafeRemove(item.TempPath)
	}
	if w.tempRoot == "" {
		return
	}
	imageprocessor.RemoveDirIfEmpty(TempDirFor(w.tempRoot, job.ID))
}
