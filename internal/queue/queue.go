// Package queue implements the persistent job queue: enqueueing, workers
// with bounded concurrency, retries with backoff and stalled-job recovery.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/metrics"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// QueueHealth reports the state of one queue
type QueueHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Stalled   int    `json:"stalled"`
	Error     string `json:"error,omitempty"`
}

// Config holds the queue dependencies and per-job defaults
type Config struct {
	Store       storage.JobStore
	Notifier    Notifier
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	MaxAttempts int
	Backoff     domain.BackoffPolicy
	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

// Queue is the producer-side handle shared by every component that enqueues
type Queue struct {
	store       storage.JobStore
	notifier    Notifier
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	backoff     domain.BackoffPolicy
	now         func() time.Time
}

// New creates a Queue, filling unset defaults
func New(cfg Config) *Queue {
	q := &Queue{
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		now:         cfg.Now,
	}
	if q.maxAttempts < 1 {
		q.maxAttempts = domain.DefaultMaxAttempts
	}
	if q.backoff.Delay <= 0 {
		q.backoff = domain.DefaultBackoff()
	}
	if q.backoff.Type == "" {
		q.backoff.Type = domain.BackoffExponential
	}
	if q.now == nil {
		q.now = time.Now
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	return q
}

// Enqueue persists a job carrying payload on queue and signals workers.
// A failed signal is logged only; pollers still pick the job up.
func (q *Queue) Enqueue(ctx context.Context, queue string, payload domain.JobPayload, opts ...Option) (*domain.Job, error) {
	if !domain.IsKnownQueue(queue) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownQueue, queue)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", domain.ErrInvalidPayload)
	}

	options := enqueueOptions{maxAttempts: q.maxAttempts, backoff: q.backoff}
	for _, opt := range opts {
		opt(&options)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	now := q.now()
	job := &domain.Job{
		ID:           uuid.NewString(),
		Queue:        queue,
		Type:         payload.JobType(),
		Payload:      body,
		MaxAttempts:  options.maxAttempts,
		BackoffType:  options.backoff.Type,
		BackoffDelay: options.backoff.Delay,
		State:        domain.JobStateWaiting,
		RunAt:        now.Add(options.delay),
		EnqueuedAt:   now,
	}

	if err := q.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	q.metrics.JobEnqueued(queue, job.Type)

	q.logger.Debug("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("queue", queue),
		slog.String("job_type", job.Type),
		slog.Duration("delay", options.delay),
	)

	// delayed jobs are picked up by the poller once due
	if options.delay == 0 {
		q.signal(ctx, job)
	}
	return job, nil
}

func (q *Queue) signal(ctx context.Context, job *domain.Job) {
	if q.notifier == nil {
		return
	}
	if err := q.notifier.Notify(ctx, domain.JobMessage{JobID: job.ID, Queue: job.Queue}); err != nil {
		q.logger.Warn("Failed to signal job, relying on polling",
			slog.String("job_id", job.ID),
			slog.String("queue", job.Queue),
			slog.String("error", err.Error()),
		)
	}
}

// Counts returns per-state totals for queue
func (q *Queue) Counts(ctx context.Context, queue string) (domain.Counts, error) {
	if !domain.IsKnownQueue(queue) {
		return domain.Counts{}, fmt.Errorf("%w: %s", domain.ErrUnknownQueue, queue)
	}
	return q.store.CountJobs(ctx, queue)
}

// Health reports every known queue. A queue whose counts cannot be read is
// unhealthy and carries the error text.
func (q *Queue) Health(ctx context.Context) []QueueHealth {
	queues := domain.AllQueues()
	out := make([]QueueHealth, 0, len(queues))

	for _, name := range queues {
		counts, err := q.store.CountJobs(ctx, name)
		if err != nil {
			out = append(out, QueueHealth{Name: name, Status: StatusUnhealthy, Error: err.Error()})
			continue
		}
		out = append(out, QueueHealth{
			Name:      name,
			Status:    StatusHealthy,
			Waiting:   counts.Waiting,
			Active:    counts.Active,
			Completed: counts.Completed,
			Failed:    counts.Failed,
			Stalled:   counts.Stalled,
		})
	}
	return out
}

// Get returns a job by id
func (q *Queue) Get(ctx context.Context, id string) (*domain.Job, error) {
	return q.store.GetJob(ctx, id)
}

// List returns one page of jobs plus one extra row when more exist
func (q *Queue) List(ctx context.Context, filter storage.JobFilter) ([]*domain.Job, error) {
	return q.store.ListJobs(ctx, filter)
}

// Retry moves a failed job back to waiting with a fresh attempt budget
func (q *Queue) Retry(ctx context.Context, id string) (*domain.Job, error) {
	job, err := q.store.RetryJob(ctx, id, q.now())
	if err != nil {
		return nil, err
	}

	q.logger.Info("Job manually retried",
		slog.String("job_id", job.ID),
		slog.String("queue", job.Queue),
	)
	q.signal(ctx, job)
	return job, nil
}
