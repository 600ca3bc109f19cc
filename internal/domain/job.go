package domain

import (
	"encoding/json"
	"time"
)

// Backoff types
const (
	BackoffExponential = "exponential"
	BackoffFixed       = "fixed"
)

// BackoffPolicy describes the delay between attempts of a failed job
type BackoffPolicy struct {
	Type  string        `json:"type"`
	Delay time.Duration `json:"delay"`
}

// DefaultBackoff returns the exponential 2s policy
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{Type: BackoffExponential, Delay: DefaultBackoffDelay}
}

// DelayFor returns the wait before the attempt following attemptsMade failures.
// Exponential: Delay * 2^(attemptsMade-1), so 2s, 4s, 8s for the default policy.
func (b BackoffPolicy) DelayFor(attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	if b.Type == BackoffFixed {
		return b.Delay
	}
	shift := attemptsMade - 1
	if shift > 30 {
		shift = 30
	}
	return b.Delay * time.Duration(uint64(1)<<uint(shift))
}

// Job represents a unit of deferred work owned by the job queue
type Job struct {
	ID           string          `json:"id" db:"id"`
	Queue        string          `json:"queue" db:"queue"`
	Type         string          `json:"type" db:"job_type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	AttemptsMade int             `json:"attempts_made" db:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts" db:"max_attempts"`
	BackoffType  string          `json:"backoff_type" db:"backoff_type"`
	BackoffDelay time.Duration   `json:"backoff_delay" db:"backoff_delay"`
	State        string          `json:"state" db:"state"`
	WorkerID     string          `json:"worker_id,omitempty" db:"worker_id"`
	LastError    string          `json:"last_error,omitempty" db:"last_error"`
	RunAt        time.Time       `json:"run_at" db:"run_at"`
	EnqueuedAt   time.Time       `json:"enqueued_at" db:"enqueued_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty" db:"started_at"`
	HeartbeatAt  *time.Time      `json:"heartbeat_at,omitempty" db:"heartbeat_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
}

// Backoff returns the job's backoff policy
func (j *Job) Backoff() BackoffPolicy {
	return BackoffPolicy{Type: j.BackoffType, Delay: j.BackoffDelay}
}

// Counts holds per-state job totals for a queue
type Counts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Stalled   int `json:"stalled"`
}

// JobMessage represents a wake-up signal delivered by a notifier
type JobMessage struct {
	JobID string `json:"job_id"`
	Queue string `json:"queue"`
}
