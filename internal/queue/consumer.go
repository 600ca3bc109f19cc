package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// startMessageDispatcher parses signals and hands them to the pool
func (w *Worker) startMessageDispatcher(ctx context.Context, reg *registration, signals <-chan Signal) {
	defer w.wg.Done()

	reg.logger.Info("Message dispatcher started", slog.String("worker_id", w.workerID))

	for {
		select {
		case <-w.stopChan:
			reg.logger.Info("Message dispatcher stopped")
			return

		case <-ctx.Done():
			reg.logger.Info("Message dispatcher stopped - context canceled")
			return

		case sig, ok := <-signals:
			if !ok {
				reg.logger.Warn("Signal channel closed, continuing with polling only")
				return
			}

			var msg domain.JobMessage
			if err := json.Unmarshal(sig.Body, &msg); err != nil {
				reg.logger.Error("Failed to parse message JSON",
					slog.String("error", err.Error()),
					slog.String("body", string(sig.Body)),
				)
				// malformed messages are dropped
				w.nack(reg, sig, msg.JobID, false)
				continue
			}

			if _, err := uuid.Parse(msg.JobID); err != nil {
				reg.logger.Error("Invalid job_id format - not a UUID",
					slog.String("job_id", msg.JobID),
					slog.String("error", err.Error()),
				)
				w.nack(reg, sig, msg.JobID, false)
				continue
			}

			select {
			case reg.jobsChan <- &jobMessage{msg: msg, signal: sig}:
				reg.logger.Debug("Job dispatched to worker pool", slog.String("job_id", msg.JobID))
			case <-w.stopChan:
				w.nack(reg, sig, msg.JobID, true)
				return
			case <-ctx.Done():
				// let another consumer pick it up
				w.nack(reg, sig, msg.JobID, true)
				return
			}
		}
	}
}

func (w *Worker) nack(reg *registration, sig Signal, jobID string, requeue bool) {
	if err := sig.Nack(requeue); err != nil {
		reg.logger.Error("Failed to NACK message",
			slog.String("job_id", jobID),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
	}
}
