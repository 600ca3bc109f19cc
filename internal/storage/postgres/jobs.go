package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

const jobColumns = `id, queue, job_type, payload, attempts_made, max_attempts,
	backoff_type, backoff_delay, state, worker_id, last_error,
	run_at, enqueued_at, started_at, heartbeat_at, finished_at`

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (
			:id, :queue, :job_type, :payload, :attempts_made, :max_attempts,
			:backoff_type, :backoff_delay, :state, :worker_id, :last_error,
			:run_at, :enqueued_at, :started_at, :heartbeat_at, :finished_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	if err := s.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, notFoundOr(err, "get job")
	}
	return &job, nil
}

// ClaimJob attempts to claim a job using optimistic locking
func (s *Store) ClaimJob(ctx context.Context, id, workerID string, now time.Time) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET state = $1,
		    worker_id = $2,
		    started_at = $3,
		    heartbeat_at = $3
		WHERE id = $4
		  AND state IN ($5, $6)
		  AND run_at <= $3
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStateActive, workerID, now, id, domain.JobStateWaiting, domain.JobStateStalled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("Job not claimable",
				slog.String("job_id", id),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return &job, nil
}

// ClaimNext claims the oldest due job of queue, skipping rows other workers hold
func (s *Store) ClaimNext(ctx context.Context, queue, workerID string, now time.Time) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET state = $1,
		    worker_id = $2,
		    started_at = $3,
		    heartbeat_at = $3
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = $4
			  AND state IN ($5, $6)
			  AND run_at <= $3
			ORDER BY run_at, enqueued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStateActive, workerID, now, queue, domain.JobStateWaiting, domain.JobStateStalled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoJobAvailable
		}
		return nil, fmt.Errorf("failed to claim next job: %w", err)
	}
	return &job, nil
}

func (s *Store) Heartbeat(ctx context.Context, id, workerID string, now time.Time) error {
	query := `
		UPDATE jobs
		SET heartbeat_at = $1
		WHERE id = $2 AND state = $3 AND worker_id = $4
	`

	result, err := s.db.ExecContext(ctx, query, now, id, domain.JobStateActive, workerID)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobAlreadyClaimed
	}
	return nil
}

// finishErr distinguishes a missing job from one that is no longer running
func (s *Store) finishErr(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check job: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrJobAlreadyClaimed
}

func (s *Store) CompleteJob(ctx context.Context, id, workerID string, now time.Time) error {
	query := `
		UPDATE jobs
		SET state = $1, finished_at = $2, last_error = ''
		WHERE id = $3 AND state = $4 AND worker_id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStateCompleted, now, id, domain.JobStateActive, workerID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return s.finishErr(ctx, id)
	}
	return nil
}

func (s *Store) FailJob(ctx context.Context, id, workerID, errMsg string, retryAt *time.Time, now time.Time) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET attempts_made = attempts_made + 1,
		    last_error = $1,
		    worker_id = '',
		    state = CASE WHEN $2::timestamptz IS NULL THEN $3 ELSE $4 END,
		    run_at = COALESCE($2::timestamptz, run_at),
		    finished_at = CASE WHEN $2::timestamptz IS NULL THEN $5 ELSE finished_at END
		WHERE id = $6 AND state = $7 AND worker_id = $8
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		errMsg, retryAt, domain.JobStateFailed, domain.JobStateWaiting, now,
		id, domain.JobStateActive, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.finishErr(ctx, id)
		}
		return nil, fmt.Errorf("failed to fail job: %w", err)
	}
	return &job, nil
}

// RecoverStalled charges an attempt to every job whose worker stopped
// heartbeating. Jobs at their cap fail; the rest become claimable again.
func (s *Store) RecoverStalled(ctx context.Context, queue string, staleBefore, now time.Time) ([]*domain.Job, error) {
	query := `
		UPDATE jobs
		SET attempts_made = attempts_made + 1,
		    worker_id = '',
		    last_error = 'job stalled',
		    state = CASE WHEN attempts_made + 1 >= max_attempts THEN $1 ELSE $2 END,
		    finished_at = CASE WHEN attempts_made + 1 >= max_attempts THEN $3 ELSE finished_at END,
		    run_at = CASE WHEN attempts_made + 1 >= max_attempts THEN run_at ELSE $3 END
		WHERE queue = $4 AND state = $5 AND heartbeat_at < $6
		RETURNING ` + jobColumns

	var jobs []*domain.Job
	err := s.db.SelectContext(ctx, &jobs, query,
		domain.JobStateFailed, domain.JobStateStalled, now, queue, domain.JobStateActive, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to recover stalled jobs: %w", err)
	}
	return jobs, nil
}

func (s *Store) RetryJob(ctx context.Context, id string, now time.Time) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET state = $1, attempts_made = 0, run_at = $2, finished_at = NULL, last_error = ''
		WHERE id = $3 AND state = $4
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, domain.JobStateWaiting, now, id, domain.JobStateFailed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetJob(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrJobNotRetryable
		}
		return nil, fmt.Errorf("failed to retry job: %w", err)
	}
	return &job, nil
}

func (s *Store) CountJobs(ctx context.Context, queue string) (domain.Counts, error) {
	var rows []struct {
		State string `db:"state"`
		Total int    `db:"total"`
	}
	query := `SELECT state, COUNT(*) AS total FROM jobs WHERE queue = $1 GROUP BY state`

	var counts domain.Counts
	if err := s.db.SelectContext(ctx, &rows, query, queue); err != nil {
		return counts, fmt.Errorf("failed to count jobs: %w", err)
	}

	for _, r := range rows {
		switch r.State {
		case domain.JobStateWaiting:
			counts.Waiting = r.Total
		case domain.JobStateActive:
			counts.Active = r.Total
		case domain.JobStateCompleted:
			counts.Completed = r.Total
		case domain.JobStateFailed:
			counts.Failed = r.Total
		case domain.JobStateStalled:
			counts.Stalled = r.Total
		}
	}
	return counts, nil
}

func (s *Store) ListJobs(ctx context.Context, filter storage.JobFilter) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, filter.Queue)
		argIdx++
	}

	if filter.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, filter.State)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (enqueued_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY enqueued_at DESC, id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []*domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// PruneJobs keeps only the most recently finished completed and failed jobs
func (s *Store) PruneJobs(ctx context.Context, queue string, keepCompleted, keepFailed int) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE id IN (
			SELECT id FROM jobs
			WHERE queue = $1 AND state = $2
			ORDER BY finished_at DESC, enqueued_at DESC
			OFFSET $3
		)
	`

	var removed int64
	err := s.pg.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, keep := range []struct {
			state string
			n     int
		}{
			{domain.JobStateCompleted, keepCompleted},
			{domain.JobStateFailed, keepFailed},
		} {
			result, err := tx.ExecContext(ctx, query, queue, keep.state, max(keep.n, 0))
			if err != nil {
				return fmt.Errorf("failed to prune %s jobs: %w", keep.state, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			removed += n
		}
		return nil
	})
	return removed, err
}
