package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// spawnWorkerPool spawns reg.concurrency goroutines for one queue
func (w *Worker) spawnWorkerPool(ctx context.Context, reg *registration) {
	for i := 0; i < reg.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, reg, i)
	}

	reg.logger.Info("Worker pool spawned",
		slog.Int("worker_count", reg.concurrency),
		slog.String("worker_id", w.workerID),
	)
}

// workerLoop serves signalled jobs and polls for due ones between signals
func (w *Worker) workerLoop(ctx context.Context, reg *registration, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%s-%d", w.workerID, reg.queue, workerNum)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			reg.logger.Debug("Worker goroutine stopping", slog.String("worker_name", workerName))
			return

		case <-ctx.Done():
			reg.logger.Debug("Worker goroutine stopping - context canceled", slog.String("worker_name", workerName))
			return

		case msg := <-reg.jobsChan:
			err := w.processJob(ctx, reg, msg.msg)
			w.settle(reg, msg, err)

		case <-ticker.C:
			w.drain(ctx, reg)
		}
	}
}

// settle acknowledges the signal once the job outcome is recorded
func (w *Worker) settle(reg *registration, msg *jobMessage, err error) {
	if err == nil {
		if ackErr := msg.signal.Ack(); ackErr != nil {
			reg.logger.Error("Failed to ACK message",
				slog.String("job_id", msg.msg.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := w.shouldRequeueJob(err)
	if requeue {
		reg.logger.Warn("Job not processed, requeueing signal",
			slog.String("job_id", msg.msg.JobID),
			slog.String("error", err.Error()),
		)
	} else {
		reg.logger.Debug("Dropping signal",
			slog.String("job_id", msg.msg.JobID),
			slog.String("reason", err.Error()),
		)
	}
	w.nack(reg, msg.signal, msg.msg.JobID, requeue)
}

// drain claims due jobs until none are left or the worker stops
func (w *Worker) drain(ctx context.Context, reg *registration) {
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.store.ClaimNext(ctx, reg.queue, w.workerID, w.queue.now())
		if err != nil {
			if !errors.Is(err, domain.ErrNoJobAvailable) {
				reg.logger.Error("Failed to claim next job", slog.String("error", err.Error()))
			}
			return
		}

		if err := w.runJob(ctx, reg, job); err != nil {
			reg.logger.Error("Failed to record job outcome",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// shouldRequeueJob determines if a signal should be requeued based on the error type
func (w *Worker) shouldRequeueJob(err error) bool {
	// another worker owns the job, or it is not due yet
	if errors.Is(err, domain.ErrJobAlreadyClaimed) {
		return false
	}

	if errors.Is(err, domain.ErrNotFound) {
		return false
	}

	if errors.Is(err, domain.ErrInvalidPayload) {
		return false
	}

	// store failures are transient
	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	return false
}
