package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

type jobRecord struct {
	job domain.Job
	seq int64
}

func copyJob(j *domain.Job) *domain.Job {
	c := *j
	c.Payload = append([]byte(nil), j.Payload...)
	return &c
}

func claimable(j *domain.Job, now time.Time) bool {
	return (j.State == domain.JobStateWaiting || j.State == domain.JobStateStalled) && !j.RunAt.After(now)
}

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = &jobRecord{job: *copyJob(job), seq: s.next()}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(&rec.job), nil
}

func (s *Store) activate(rec *jobRecord, workerID string, now time.Time) *domain.Job {
	rec.job.State = domain.JobStateActive
	rec.job.WorkerID = workerID
	started := now
	rec.job.StartedAt = &started
	hb := now
	rec.job.HeartbeatAt = &hb
	return copyJob(&rec.job)
}

func (s *Store) ClaimJob(ctx context.Context, id, workerID string, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok || !claimable(&rec.job, now) {
		return nil, domain.ErrJobAlreadyClaimed
	}
	return s.activate(rec, workerID, now), nil
}

func (s *Store) ClaimNext(ctx context.Context, queue, workerID string, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *jobRecord
	for _, rec := range s.jobs {
		if rec.job.Queue != queue || !claimable(&rec.job, now) {
			continue
		}
		if best == nil || rec.job.RunAt.Before(best.job.RunAt) ||
			(rec.job.RunAt.Equal(best.job.RunAt) && rec.seq < best.seq) {
			best = rec
		}
	}
	if best == nil {
		return nil, domain.ErrNoJobAvailable
	}
	return s.activate(best, workerID, now), nil
}

func (s *Store) Heartbeat(ctx context.Context, id, workerID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok || rec.job.State != domain.JobStateActive || rec.job.WorkerID != workerID {
		return domain.ErrJobAlreadyClaimed
	}
	hb := now
	rec.job.HeartbeatAt = &hb
	return nil
}

func (s *Store) finishable(id, workerID string) (*jobRecord, error) {
	rec, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rec.job.State != domain.JobStateActive || rec.job.WorkerID != workerID {
		return nil, domain.ErrJobAlreadyClaimed
	}
	return rec, nil
}

func (s *Store) CompleteJob(ctx context.Context, id, workerID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.finishable(id, workerID)
	if err != nil {
		return err
	}
	finished := now
	rec.job.State = domain.JobStateCompleted
	rec.job.FinishedAt = &finished
	rec.job.LastError = ""
	return nil
}

func (s *Store) FailJob(ctx context.Context, id, workerID, errMsg string, retryAt *time.Time, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.finishable(id, workerID)
	if err != nil {
		return nil, err
	}
	rec.job.AttemptsMade++
	rec.job.LastError = errMsg
	rec.job.WorkerID = ""
	if retryAt == nil {
		finished := now
		rec.job.State = domain.JobStateFailed
		rec.job.FinishedAt = &finished
	} else {
		rec.job.State = domain.JobStateWaiting
		rec.job.RunAt = *retryAt
	}
	return copyJob(&rec.job), nil
}

func (s *Store) RecoverStalled(ctx context.Context, queue string, staleBefore, now time.Time) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recovered []*domain.Job
	for _, rec := range s.jobs {
		j := &rec.job
		if j.Queue != queue || j.State != domain.JobStateActive {
			continue
		}
		if j.HeartbeatAt == nil || !j.HeartbeatAt.Before(staleBefore) {
			continue
		}
		j.AttemptsMade++
		j.WorkerID = ""
		j.LastError = "job stalled"
		if j.AttemptsMade >= j.MaxAttempts {
			finished := now
			j.State = domain.JobStateFailed
			j.FinishedAt = &finished
		} else {
			j.State = domain.JobStateStalled
			j.RunAt = now
		}
		recovered = append(recovered, copyJob(j))
	}
	return recovered, nil
}

func (s *Store) RetryJob(ctx context.Context, id string, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rec.job.State != domain.JobStateFailed {
		return nil, domain.ErrJobNotRetryable
	}
	rec.job.State = domain.JobStateWaiting
	rec.job.AttemptsMade = 0
	rec.job.RunAt = now
	rec.job.FinishedAt = nil
	rec.job.LastError = ""
	return copyJob(&rec.job), nil
}

func (s *Store) CountJobs(ctx context.Context, queue string) (domain.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts domain.Counts
	for _, rec := range s.jobs {
		if rec.job.Queue != queue {
			continue
		}
		switch rec.job.State {
		case domain.JobStateWaiting:
			counts.Waiting++
		case domain.JobStateActive:
			counts.Active++
		case domain.JobStateCompleted:
			counts.Completed++
		case domain.JobStateFailed:
			counts.Failed++
		case domain.JobStateStalled:
			counts.Stalled++
		}
	}
	return counts, nil
}

// sortedJobs returns records newest first
func (s *Store) sortedJobs(match func(*domain.Job) bool) []*jobRecord {
	var out []*jobRecord
	for _, rec := range s.jobs {
		if match(&rec.job) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		a, b := out[i], out[k]
		if !a.job.EnqueuedAt.Equal(b.job.EnqueuedAt) {
			return a.job.EnqueuedAt.After(b.job.EnqueuedAt)
		}
		return a.job.ID > b.job.ID
	})
	return out
}

func (s *Store) ListJobs(ctx context.Context, filter storage.JobFilter) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.sortedJobs(func(j *domain.Job) bool {
		if filter.Queue != "" && j.Queue != filter.Queue {
			return false
		}
		if filter.State != "" && j.State != filter.State {
			return false
		}
		if c := filter.Cursor; c != nil {
			if j.EnqueuedAt.After(c.CreatedAt) {
				return false
			}
			if j.EnqueuedAt.Equal(c.CreatedAt) && j.ID >= c.ID {
				return false
			}
		}
		return true
	})

	// one extra row tells the caller whether another page exists
	limit := filter.PageSize + 1
	var jobs []*domain.Job
	for _, rec := range recs {
		if len(jobs) == limit {
			break
		}
		jobs = append(jobs, copyJob(&rec.job))
	}
	return jobs, nil
}

func (s *Store) PruneJobs(ctx context.Context, queue string, keepCompleted, keepFailed int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	prune := func(state string, keep int) {
		recs := s.sortedFinished(queue, state)
		for i := max(keep, 0); i < len(recs); i++ {
			delete(s.jobs, recs[i].job.ID)
			removed++
		}
	}
	prune(domain.JobStateCompleted, keepCompleted)
	prune(domain.JobStateFailed, keepFailed)
	return removed, nil
}

// sortedFinished returns finished jobs of one state, most recently finished first
func (s *Store) sortedFinished(queue, state string) []*jobRecord {
	var out []*jobRecord
	for _, rec := range s.jobs {
		if rec.job.Queue == queue && rec.job.State == state {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		a, b := out[i].job.FinishedAt, out[k].job.FinishedAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.After(*b)
		}
		return out[i].seq > out[k].seq
	})
	return out
}
