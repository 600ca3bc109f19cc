package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/metrics"
)

// processJob claims the signalled job and runs it
func (w *Worker) processJob(ctx context.Context, reg *registration, msg domain.JobMessage) error {
	job, err := w.store.ClaimJob(ctx, msg.JobID, w.workerID, w.queue.now())
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			reg.logger.Debug("Job already claimed or not due, skipping", slog.String("job_id", msg.JobID))
			return fmt.Errorf("job already claimed: %w", err)
		}
		reg.logger.Error("Failed to claim job",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	return w.runJob(ctx, reg, job)
}

// runJob executes a claimed job and records the outcome. It returns an error
// only when the outcome could not be recorded.
func (w *Worker) runJob(ctx context.Context, reg *registration, job *domain.Job) error {
	// in-flight jobs finish on shutdown; the timeout still bounds them
	runCtx := context.WithoutCancel(ctx)
	jobCtx, cancel := context.WithTimeout(runCtx, w.jobTimeout)
	defer cancel()

	logger := reg.logger.With(
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
	)
	logger.Info("Processing job",
		slog.Int("attempt", job.AttemptsMade+1),
		slog.Int("max_attempts", job.MaxAttempts),
	)

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, logger, job.ID, heartbeatDone)

	start := time.Now()
	err := w.execute(jobCtx, reg.handler, job)
	close(heartbeatDone)
	elapsed := time.Since(start)

	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("job timed out after %s: %w", w.jobTimeout, err)
	}

	if err == nil {
		return w.completeJob(runCtx, logger, job, elapsed)
	}
	return w.failJob(runCtx, logger, job, err, elapsed)
}

// execute runs the handler, turning a panic into an error
func (w *Worker) execute(ctx context.Context, h Handler, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, job)
}

func (w *Worker) completeJob(ctx context.Context, logger *slog.Logger, job *domain.Job, elapsed time.Duration) error {
	if err := w.store.CompleteJob(ctx, job.ID, w.workerID, w.queue.now()); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) || errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Job finished after it was no longer active", slog.String("error", err.Error()))
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("failed to complete job: %w", err))
	}

	w.metrics.JobProcessed(job.Queue, metrics.OutcomeCompleted, elapsed)
	logger.Info("Job completed successfully", slog.Duration("duration", elapsed))
	return nil
}

// failJob records a failed attempt: retried after backoff, or failed for
// good when the error is permanent or the attempt cap is reached.
func (w *Worker) failJob(ctx context.Context, logger *slog.Logger, job *domain.Job, jobErr error, elapsed time.Duration) error {
	attempts := job.AttemptsMade + 1
	now := w.queue.now()

	var retryAt *time.Time
	if !domain.IsPermanent(jobErr) && attempts < job.MaxAttempts {
		t := now.Add(job.Backoff().DelayFor(attempts))
		retryAt = &t
	}

	if _, err := w.store.FailJob(ctx, job.ID, w.workerID, jobErr.Error(), retryAt, now); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) || errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Job failed after it was no longer active", slog.String("error", err.Error()))
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("failed to record job failure: %w", err))
	}

	if retryAt != nil {
		w.metrics.JobProcessed(job.Queue, metrics.OutcomeRetried, elapsed)
		logger.Warn("Job failed, will be retried",
			slog.Int("attempts_made", attempts),
			slog.Int("max_attempts", job.MaxAttempts),
			slog.Time("retry_at", *retryAt),
			slog.String("error", jobErr.Error()),
		)
		return nil
	}

	w.metrics.JobProcessed(job.Queue, metrics.OutcomeFailed, elapsed)
	logger.Error("Job failed permanently",
		slog.Int("attempts_made", attempts),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.Bool("permanent", domain.IsPermanent(jobErr)),
		slog.String("error", jobErr.Error()),
	)
	return nil
}

// sendJobHeartbeat periodically refreshes the job's heartbeat
func (w *Worker) sendJobHeartbeat(ctx context.Context, logger *slog.Logger, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, jobID, w.workerID, w.queue.now()); err != nil {
				logger.Warn("Failed to update job heartbeat", slog.String("error", err.Error()))
			}
		}
	}
}
