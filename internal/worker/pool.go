package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"seolab-api/internal/crew"
	"seolab-api/internal/models"
	"seolab-api/internal/repository"
	"seolab-api/internal/services"
)

const (
	popTimeout = 30 * time.Second
	lockTTL    = 10 * time.Minute
	errorPause = time.Second
)

type Generator interface {
	GenerateWithTrace(ctx context.Context, req models.GenerateRequest, traceID string, progress crew.ProgressFunc) (*services.GenerateResult, error)
	Steps() int
}

type JobStore interface {
	Save(ctx context.Context, j *models.Job) error
	Enqueue(ctx context.Context, j *models.Job) error
}

type ProgressPublisher interface {
	Publish(ctx context.Context, event models.ProgressEvent)
}

// Pool runs queued generation jobs on a fixed number of goroutines.
type Pool struct {
	redis       *redis.Client
	generator   Generator
	jobs        JobStore
	progress    ProgressPublisher
	logger      *zap.Logger
	workerCount int
	backoff     func(retry int) time.Duration

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup

	retryMu sync.Mutex
	retries map[uuid.UUID]pendingRetry
	stopped bool
}

// pendingRetry is a failed job waiting for its backoff before requeue.
type pendingRetry struct {
	timer *time.Timer
	job   models.Job
}

func NewPool(
	redisClient *redis.Client,
	generator Generator,
	jobs JobStore,
	progress ProgressPublisher,
	logger *zap.Logger,
	workerCount int,
) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		generator:   generator,
		jobs:        jobs,
		progress:    progress,
		logger:      logger,
		workerCount: workerCount,
		retries:     make(map[uuid.UUID]pendingRetry),
		backoff: func(retry int) time.Duration {
			return time.Duration(1<<uint(retry)) * time.Second
		},
	}
}

func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.logger.Info("started generation workers", zap.Int("count", p.workerCount))
}

// Stop stops taking new jobs and waits for in-flight jobs until ctx ends.
// Retries still waiting for their backoff are requeued immediately.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	p.flushRetries(ctx)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker", id))

	for {
		if ctx.Err() != nil {
			logger.Info("worker shutting down")
			return
		}

		result, err := p.redis.BLPop(ctx, popTimeout, repository.GenerationQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				logger.Warn("queue pop failed", zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(errorPause):
				}
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			logger.Error("failed to parse job", zap.Error(err))
			continue
		}

		// In-flight jobs finish even when the pool is stopping.
		jobCtx := context.WithoutCancel(ctx)

		locked, err := p.claim(jobCtx, &job)
		if err != nil {
			select {
			case <-ctx.Done():
			case <-time.After(errorPause):
			}
			continue
		}
		if !locked {
			continue
		}

		logger.Info("processing job", zap.String("job_id", job.ID.String()), zap.String("trace_id", job.TraceID))
		p.Process(jobCtx, &job)

		p.redis.Del(jobCtx, lockKey(job.ID))
	}
}

func lockKey(id uuid.UUID) string {
	return fmt.Sprintf("job_lock:%s", id)
}

// claim takes the job lock. BLPOP already removed the job from the queue,
// so when Redis fails to answer the job is pushed back, or marked failed if
// that fails too.
func (p *Pool) claim(ctx context.Context, job *models.Job) (bool, error) {
	locked, err := p.redis.SetNX(ctx, lockKey(job.ID), "1", lockTTL).Result()
	if err == nil {
		return locked, nil
	}

	p.logger.Warn("failed to lock job, requeueing", zap.String("job_id", job.ID.String()), zap.Error(err))
	if qErr := p.jobs.Enqueue(ctx, job); qErr != nil {
		p.logger.Error("failed to requeue job", zap.String("job_id", job.ID.String()), zap.Error(qErr))
		p.fail(ctx, job, fmt.Sprintf("job could not be locked: %v", err))
	}
	return false, err
}

// Process runs one job to completion or to its next retry.
func (p *Pool) Process(ctx context.Context, job *models.Job) {
	job.Status = models.JobProcessing
	p.save(ctx, job)

	total := p.generator.Steps()
	p.progress.Publish(ctx, models.ProgressEvent{
		Type:       models.EventStatusUpdate,
		JobID:      job.ID,
		TotalSteps: total,
		Message:    "Job started",
	})

	res, err := p.generator.GenerateWithTrace(ctx, job.Request, job.TraceID, func(pr crew.Progress) {
		p.progress.Publish(ctx, models.ProgressEvent{
			Type:       models.EventStatusUpdate,
			JobID:      job.ID,
			Step:       pr.Step,
			TotalSteps: pr.Total,
			Task:       pr.Task,
			Agent:      pr.Agent,
		})
	})
	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job, res.Response)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, resp *models.GenerateResponse) {
	now := time.Now().UTC()
	job.Status = models.JobCompleted
	job.Result = resp
	job.Error = nil
	job.CompletedAt = &now
	p.save(ctx, job)

	p.progress.Publish(ctx, models.ProgressEvent{
		Type:    models.EventCompleted,
		JobID:   job.ID,
		Message: resp.TraceID,
	})

	p.logger.Info("job completed", zap.String("job_id", job.ID.String()))
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()
	job.Error = &errMsg

	var vErr *services.ValidationError
	retryable := !errors.As(err, &vErr)

	if retryable && job.RetryCount < job.MaxRetries {
		p.logger.Warn("job failed, retrying",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.RetryCount),
			zap.String("error", errMsg),
		)
		job.Status = models.JobPending
		p.save(ctx, job)

		p.scheduleRetry(*job, p.backoff(job.RetryCount))
		return
	}

	p.logger.Error("job failed permanently", zap.String("job_id", job.ID.String()), zap.String("error", errMsg))
	p.fail(ctx, job, errMsg)
}

func (p *Pool) fail(ctx context.Context, job *models.Job, errMsg string) {
	now := time.Now().UTC()
	job.Status = models.JobFailed
	job.Error = &errMsg
	job.CompletedAt = &now
	p.save(ctx, job)

	p.progress.Publish(ctx, models.ProgressEvent{
		Type:    models.EventError,
		JobID:   job.ID,
		Message: errMsg,
	})
}

// scheduleRetry requeues job after delay. Once the pool is stopped the job
// is requeued at once.
func (p *Pool) scheduleRetry(job models.Job, delay time.Duration) {
	p.retryMu.Lock()
	defer p.retryMu.Unlock()

	if p.stopped {
		p.requeue(context.Background(), &job)
		return
	}

	timer := time.AfterFunc(delay, func() {
		p.retryMu.Lock()
		_, pending := p.retries[job.ID]
		delete(p.retries, job.ID)
		p.retryMu.Unlock()

		// Stop already took this one over
		if !pending {
			return
		}
		p.requeue(context.Background(), &job)
	})
	p.retries[job.ID] = pendingRetry{timer: timer, job: job}
}

// flushRetries cancels every backoff timer and requeues its job.
func (p *Pool) flushRetries(ctx context.Context) {
	p.retryMu.Lock()
	p.stopped = true
	pending := make([]models.Job, 0, len(p.retries))
	for id, r := range p.retries {
		// A timer that already fired requeues its own job
		if r.timer.Stop() {
			pending = append(pending, r.job)
			delete(p.retries, id)
		}
	}
	p.retryMu.Unlock()

	for i := range pending {
		p.requeue(context.WithoutCancel(ctx), &pending[i])
	}
}

func (p *Pool) requeue(ctx context.Context, job *models.Job) {
	if err := p.jobs.Enqueue(ctx, job); err != nil {
		p.logger.Error("failed to requeue job", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

// pendingRetries reports how many jobs wait for their backoff.
func (p *Pool) pendingRetries() int {
	p.retryMu.Lock()
	defer p.retryMu.Unlock()
	return len(p.retries)
}

func (p *Pool) save(ctx context.Context, job *models.Job) {
	if err := p.jobs.Save(ctx, job); err != nil {
		p.logger.Error("failed to save job", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}
