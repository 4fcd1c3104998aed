// Package worker provides an asynchronous worker pool that feeds captured
// activity to a memory.Driver.
//
// The pool decouples capture decisions from the caller's hot path: the file
// watcher and the REST API's async capture enqueue activity and return
// immediately.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Activity memory.Activity
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Memory captures each job's activity.
	Memory memory.Driver

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnOutcome is called from the worker goroutine after each capture.
	OnOutcome func(Job, *memory.CaptureOutcome, error)

	Logger *slog.Logger
}

// Stats counts jobs by fate.
type Stats struct {
	Queued    int64 `json:"queued"`
	Dropped   int64 `json:"dropped"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Pool processes capture jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	queued, dropped, processed, failed atomic.Int64

	closeMu sync.RWMutex
	closed  bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Memory == nil {
		return nil, memory.ErrNotConfigured
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger.OrNop(c.Logger),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		p.logger.Warn("job not queued, pool closed",
			"source", job.Activity.Source,
			"file", job.Activity.FilePath,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.queued.Add(1)
		p.logger.Debug("job queued",
			"source", job.Activity.Source,
			"file", job.Activity.FilePath,
		)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("job not queued, queue full, job dropped",
			"source", job.Activity.Source,
			"file", job.Activity.FilePath,
		)
		return false
	}
}

// Stats returns the job counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Queued:    p.queued.Load(),
		Dropped:   p.dropped.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Jobs enqueued afterwards are dropped.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.closeMu.Unlock()
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("capture worker stopped", "worker_id", id)
}

// processJob captures a job's activity. Errors are logged and handed to
// OnOutcome; they never stop the worker.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	out, err := p.config.Memory.Capture(ctx, job.Activity)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("async capture failed",
			"source", job.Activity.Source,
			"error", err,
		)
	} else {
		p.processed.Add(1)
		p.logger.Info("activity captured",
			"source", job.Activity.Source,
			"state", out.State,
			"record_id", out.RecordID,
		)
	}

	if p.config.OnOutcome != nil {
		p.config.OnOutcome(job, out, err)
	}
}
