package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/carsalesplatform/carsales/internal/pkg/jobqueue"
	"github.com/carsalesplatform/carsales/internal/pkg/metrics/counter"
)

// PipelineController reports photo pipeline health
type PipelineController struct {
	queue    jobqueue.Queue
	counters counter.Counter
}

func NewPipelineController(queue jobqueue.Queue, counters counter.Counter) *PipelineController {
	return &PipelineController{queue: queue, counters: counters}
}

// HandleStats returns the queue depth and the worker totals.
func (pc *PipelineController) HandleStats(c *fiber.Ctx) error {
	depth, err := pc.queue.Len(c.UserContext())
	if err != nil {
		fiberlog.Errorf("[PhotoQueue] Reading queue length failed: %v", err)
		return respondInternal(c)
	}
	totals, err := pc.counters.Snapshot(c.UserContext())
	if err != nil {
		fiberlog.Errorf("[PhotoQueue] Reading counters failed: %v", err)
		return respondInternal(c)
	}

	out := fiber.Map{"queue_length": depth}
	for _, field := range []string{
		counter.JobsCompleted, counter.JobsFailed, counter.PhotosAdded, counter.PhotosEvicted, counter.ItemsSkipped,
	} {
		out[field] = totals[field]
	}
	return c.JSON(out)
}
