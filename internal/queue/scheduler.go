package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// SchedulerConfig holds maintenance settings
type SchedulerConfig struct {
	Queues          []string
	Interval        time.Duration
	StalledInterval time.Duration
	KeepCompleted   int
	KeepFailed      int
	Logger          *slog.Logger
}

// Scheduler recovers stalled jobs, prunes finished ones and enqueues
// repeatable jobs on cron schedules.
type Scheduler struct {
	queue  *Queue
	cfg    SchedulerConfig
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates a scheduler for the given queues
func NewScheduler(q *Queue, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.StalledInterval <= 0 {
		cfg.StalledInterval = 30 * time.Second
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = domain.AllQueues()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = q.logger
	}
	return &Scheduler{
		queue:  q,
		cfg:    cfg,
		cron:   cron.New(),
		logger: logger,
	}
}

// Repeat enqueues payload on queue at every activation of the cron spec
func (s *Scheduler) Repeat(spec, queue string, payload domain.JobPayload, opts ...Option) error {
	if !domain.IsKnownQueue(queue) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownQueue, queue)
	}

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := s.queue.Enqueue(ctx, queue, payload, opts...); err != nil {
			s.logger.Error("Failed to enqueue repeatable job",
				slog.String("queue", queue),
				slog.String("job_type", payload.JobType()),
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s.logger.Info("Repeatable job scheduled",
		slog.String("queue", queue),
		slog.String("job_type", payload.JobType()),
		slog.String("spec", spec),
	)
	return nil
}

// Run performs maintenance every interval until ctx is canceled
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	defer func() {
		<-s.cron.Stop().Done()
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("stalled_interval", s.cfg.StalledInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one maintenance pass over every queue
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.queue.now()
	for _, name := range s.cfg.Queues {
		s.recoverStalled(ctx, name, now)
		s.prune(ctx, name)
		s.observe(ctx, name)
	}
}

func (s *Scheduler) recoverStalled(ctx context.Context, queue string, now time.Time) {
	jobs, err := s.queue.store.RecoverStalled(ctx, queue, now.Add(-s.cfg.StalledInterval), now)
	if err != nil {
		s.logger.Error("Failed to recover stalled jobs",
			slog.String("queue", queue),
			slog.String("error", err.Error()),
		)
		return
	}

	s.queue.metrics.JobsStalled(queue, len(jobs))
	for _, job := range jobs {
		if job.State == domain.JobStateFailed {
			s.logger.Error("Stalled job exceeded max attempts",
				slog.String("job_id", job.ID),
				slog.String("queue", queue),
				slog.Int("attempts_made", job.AttemptsMade),
			)
			continue
		}
		s.logger.Warn("Stalled job moved back for another attempt",
			slog.String("job_id", job.ID),
			slog.String("queue", queue),
			slog.Int("attempts_made", job.AttemptsMade),
		)
		s.queue.signal(ctx, job)
	}
}

func (s *Scheduler) prune(ctx context.Context, queue string) {
	if s.cfg.KeepCompleted <= 0 && s.cfg.KeepFailed <= 0 {
		return
	}
	removed, err := s.queue.store.PruneJobs(ctx, queue, s.cfg.KeepCompleted, s.cfg.KeepFailed)
	if err != nil {
		s.logger.Error("Failed to prune jobs",
			slog.String("queue", queue),
			slog.String("error", err.Error()),
		)
		return
	}
	if removed > 0 {
		s.logger.Debug("Pruned finished jobs",
			slog.String("queue", queue),
			slog.Int64("removed", removed),
		)
	}
}

func (s *Scheduler) observe(ctx context.Context, queue string) {
	if s.queue.metrics == nil {
		return
	}
	counts, err := s.queue.store.CountJobs(ctx, queue)
	if err != nil {
		return
	}
	s.queue.metrics.SetQueueJobs(queue, domain.JobStateWaiting, counts.Waiting)
	s.queue.metrics.SetQueueJobs(queue, domain.JobStateActive, counts.Active)
	s.queue.metrics.SetQueueJobs(queue, domain.JobStateCompleted, counts.Completed)
	s.queue.metrics.SetQueueJobs(queue, domain.JobStateFailed, counts.Failed)
	s.queue.metrics.SetQueueJobs(queue, domain.JobStateStalled, counts.Stalled)
}
