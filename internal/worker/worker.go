// Package worker provides a bounded worker pool for media analysis jobs.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"knowledge-acquisition-api/internal/analysis"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Result carries the outcome of one job.
type Result struct {
	Analysis *analysis.Analysis
	Err      error
}

// Job represents a task to be executed by a worker.
type Job struct {
	Request    analysis.Request
	ResultChan chan Result
	Context    context.Context
}

// WorkerPool manages a pool of workers and a queue of jobs.
type WorkerPool struct {
	JobQueue chan Job
	Analyzer analysis.Analyzer
	PoolSize int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. Call Start before submitting.
func NewWorkerPool(analyzer analysis.Analyzer, poolSize int, queueSize int) *WorkerPool {
	if poolSize <= 0 {
		poolSize = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		JobQueue: make(chan Job, queueSize),
		Analyzer: analyzer,
		PoolSize: poolSize,
	}
}

// Start initializes the worker pool and starts the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.PoolSize; i++ {
		wp.wg.Add(1)
		go func(workerID int) {
			defer wp.wg.Done()
			slog.Debug("Worker started", "worker", workerID)
			for job := range wp.JobQueue {
				// The caller already gave up; skip the upstream call.
				if err := job.Context.Err(); err != nil {
					job.ResultChan <- Result{Err: err}
					continue
				}
				slog.Debug("Worker processing job", "worker", workerID, "type", job.Request.Type, "bytes", len(job.Request.Data))
				res, err := wp.Analyzer.Analyze(job.Context, job.Request)
				job.ResultChan <- Result{Analysis: res, Err: err}
			}
			slog.Debug("Worker stopped", "worker", workerID)
		}(i)
	}
}

// Submit queues req and waits for its result or for ctx to end.
func (wp *WorkerPool) Submit(ctx context.Context, req analysis.Request) (*analysis.Analysis, error) {
	job := Job{
		Request:    req,
		ResultChan: make(chan Result, 1),
		Context:    ctx,
	}

	wp.mu.RLock()
	if wp.stopped {
		wp.mu.RUnlock()
		return nil, ErrPoolStopped
	}
	select {
	case wp.JobQueue <- job:
		wp.mu.RUnlock()
	case <-ctx.Done():
		wp.mu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-job.ResultChan:
		return res.Analysis, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop gracefully shuts down the worker pool, letting queued jobs drain.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.JobQueue)
	wp.mu.Unlock()

	slog.Info("Stopping worker pool...")
	wp.wg.Wait()
}
