package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clipvault/pkg/asset"
	"clipvault/pkg/logger"
	"clipvault/pkg/ratelimit"
)

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      asset.Job
	Result   asset.Result
	Success  bool
	Error    error
	Duration time.Duration
}

// AssetFetcher snapshots and downloads a single item
type AssetFetcher interface {
	Fetch(ctx context.Context, job asset.Job) (asset.Result, error)
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan asset.Job
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     AssetFetcher
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. Cancelling parent stops
// workers after their current job.
func NewWorkerPool(
	parent context.Context,
	numWorkers int,
	fetcher AssetFetcher,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	if numWorkers < 1 {
		numWorkers = 1
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan asset.Job, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results
func (wp *WorkerPool) Stop() {
	wp.logger.Debug("Stopping worker pool")

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job asset.Job) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"id":     job.ID,
			"author": job.AuthorID,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result DownloadResult
		if err := wp.ctx.Err(); err != nil {
			// drain so Stop does not block on a full queue
			result = DownloadResult{Job: job, Error: err}
		} else {
			result = wp.processJob(job, id)
		}

		// results are always delivered; Stop closes the channel only after
		// every worker has returned
		wp.resultQueue <- result
	}
}

func (wp *WorkerPool) processJob(job asset.Job, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}

	if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	res, err := wp.fetcher.Fetch(wp.ctx, job)
	result.Result = res
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("download %s: %w", job.ID, err)
		wp.logger.ErrorWithFields("Worker failed to download item", map[string]interface{}{
			"worker_id": workerID,
			"id":        job.ID,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
		return result
	}

	result.Success = true
	wp.logger.DebugWithFields("Worker completed job", map[string]interface{}{
		"worker_id": workerID,
		"id":        job.ID,
		"skipped":   res.Skipped,
		"duration":  result.Duration,
	})
	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}
