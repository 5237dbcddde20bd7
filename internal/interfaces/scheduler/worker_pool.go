package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	jobTracer          = otel.Tracer("tavola/scheduler")
	jobMeter           = otel.Meter("tavola/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

var (
	// ErrQueueFull is returned by Submit when the job buffer is full.
	ErrQueueFull = errors.New("job queue full")
	// ErrDuplicateJob is returned by Submit while a job with the same key is queued or running.
	ErrDuplicateJob = errors.New("job already queued")
)

// DefaultJobTimeout bounds a single job.
const DefaultJobTimeout = 5 * time.Minute

// WorkerPool runs jobs on a fixed number of goroutines, pausing jobDelay between the
// jobs of each worker.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobTimeout  time.Duration
	jobs        chan Job
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger
	closeOnce   sync.Once

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewWorkerPool(workerCount int, jobDelay time.Duration, queueSize int, logger *zap.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobDelay:    jobDelay,
		jobTimeout:  DefaultJobTimeout,
		jobs:        make(chan Job, queueSize),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("worker_pool"),
		pending:     make(map[string]struct{}),
	}
}

func (wp *WorkerPool) Start() {
	wp.logger.Info("starting worker pool", zap.Int("workers", wp.workerCount))

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}

			wp.processJob(id, job)

			if wp.jobDelay > 0 {
				select {
				case <-time.After(wp.jobDelay):
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job Job) {
	defer wp.release(job.Key())

	ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.key", job.Key()),
		),
	)
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	jobDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		wp.logger.Error("job failed",
			zap.Int("worker", workerID),
			zap.String("job", job.Description()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	wp.logger.Debug("job completed",
		zap.Int("worker", workerID),
		zap.String("job", job.Description()),
		zap.Duration("duration", time.Since(start)),
	)
}

// Submit queues a job without blocking. A full queue drops the job with ErrQueueFull, and
// a job whose key is already queued or running is dropped with ErrDuplicateJob.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	default:
	}

	if !wp.claim(job.Key()) {
		wp.logger.Debug("job already pending", zap.String("job", job.Description()))
		return ErrDuplicateJob
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		wp.release(job.Key())
		jobQueueDropped.Add(context.Background(), 1)
		wp.logger.Warn("job queue full, dropping job", zap.String("job", job.Description()))
		return ErrQueueFull
	}
}

func (wp *WorkerPool) claim(key string) bool {
	if key == "" {
		return true
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if _, ok := wp.pending[key]; ok {
		return false
	}
	wp.pending[key] = struct{}{}
	return true
}

func (wp *WorkerPool) release(key string) {
	if key == "" {
		return
	}
	wp.mu.Lock()
	delete(wp.pending, key)
	wp.mu.Unlock()
}

// SubmitBatch queues jobs and returns how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	submitted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			continue
		}
		submitted++
	}
	wp.logger.Info("submitted jobs", zap.Int("submitted", submitted), zap.Int("total", len(jobs)))
	return submitted
}

// ShutdownWithTimeout stops accepting jobs and waits for queued ones. When the timeout
// expires first, running jobs are cancelled through their context.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	wp.closeOnce.Do(func() { close(wp.jobs) })

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Info("worker pool drained")
	case <-time.After(timeout):
		wp.logger.Warn("worker pool shutdown timed out, cancelling jobs")
		wp.cancel()
		<-done
	}
	wp.cancel()
}
