package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

type ListJobsRequest struct {
	Queue    string `form:"queue"`
	State    string `form:"state"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID        string          `json:"job_id"`
	Queue        string          `json:"queue"`
	JobType      string          `json:"job_type"`
	Payload      json.RawMessage `json:"payload"`
	State        string          `json:"state"`
	AttemptsMade int             `json:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts"`
	LastError    string          `json:"last_error,omitempty"`
	WorkerID     string          `json:"worker_id,omitempty"`
	RunAt        string          `json:"run_at"`
	EnqueuedAt   string          `json:"enqueued_at"`
	FinishedAt   string          `json:"finished_at,omitempty"`
}

func NewJobDTO(job *domain.Job) JobDTO {
	out := JobDTO{
		JobID:        job.ID,
		Queue:        job.Queue,
		JobType:      job.Type,
		Payload:      job.Payload,
		State:        job.State,
		AttemptsMade: job.AttemptsMade,
		MaxAttempts:  job.MaxAttempts,
		LastError:    job.LastError,
		WorkerID:     job.WorkerID,
		RunAt:        job.RunAt.Format(time.RFC3339),
		EnqueuedAt:   job.EnqueuedAt.Format(time.RFC3339),
	}
	if job.FinishedAt != nil {
		out.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return out
}

// PublishEventResponse acknowledges an accepted event
type PublishEventResponse struct {
	JobID string `json:"job_id"`
	Queue string `json:"queue"`
	Type  string `json:"type"`
	State string `json:"state"`
}
