package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/issuetracker/issues-api/internal/core/ports"
)

const (
	defaultWorkers = 2
	channelBuffer  = 64
)

// ErrQueueFull is returned by Enqueue when the buffer is exhausted.
var ErrQueueFull = errors.New("job queue is full")

// RunRecorder observes finished job runs.
type RunRecorder interface {
	RecordJobRun(job string, err error, took time.Duration)
}

// Dispatcher runs background jobs on a fixed pool of workers. A job that
// panics is logged and counted as failed; the worker keeps going.
type Dispatcher struct {
	jobs     chan ports.Job
	workers  int
	recorder RunRecorder
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, recorder RunRecorder, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	return &Dispatcher{
		jobs:     make(chan ports.Job, channelBuffer),
		workers:  numWorkers,
		recorder: recorder,
		log:      log,
	}
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands a job to the pool without blocking.
func (d *Dispatcher) Enqueue(job ports.Job) error {
	select {
	case d.jobs <- job:
		return nil
	default:
		d.log.Warn().Str("job", job.Name).Msg("job dropped, queue full")
		return ErrQueueFull
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			d.execute(ctx, id, job)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, id int, job ports.Job) {
	start := time.Now()
	err := safeRun(ctx, job)
	took := time.Since(start)

	if err != nil {
		d.log.Error().Err(err).
			Str("job", job.Name).
			Int("worker_id", id).
			Msg("job failed")
	} else {
		d.log.Debug().Str("job", job.Name).Dur("took", took).Msg("job finished")
	}
	if d.recorder != nil {
		d.recorder.RecordJobRun(job.Name, err, took)
	}
}

func safeRun(ctx context.Context, job ports.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}
