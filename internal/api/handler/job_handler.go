package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/helpdesk-be/internal/api/dto"
	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/queue"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JobHandler exposes job inspection and manual retry
type JobHandler struct {
	logger *slog.Logger
	queue  *queue.Queue
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		queue:  deps.Queue,
	}
}

func parseJobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.queue.Get(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional queue/state filters and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	if req.Queue != "" && !domain.IsKnownQueue(req.Queue) {
		badRequest(c, "Invalid query parameters", fmt.Errorf("%w: %s", domain.ErrUnknownQueue, req.Queue))
		return
	}
	if req.State != "" && !domain.IsKnownJobState(req.State) {
		badRequest(c, "Invalid query parameters", fmt.Errorf("unknown state %q", req.State))
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		badRequest(c, "Invalid cursor", err)
		return
	}

	jobs, err := h.queue.List(c.Request.Context(), storage.JobFilter{
		Queue:    req.Queue,
		State:    req.State,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to list jobs")
		return
	}

	// the store returns one extra row when another page exists
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = dto.NewJobDTO(job)
	}
	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeCursor(last.EnqueuedAt, last.ID)
	}

	c.JSON(http.StatusOK, resp)
}

// RetryJob handles POST /api/v1/jobs/:job_id/retry
// Moves a failed job back to waiting with a fresh attempt budget
func (h *JobHandler) RetryJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.queue.Retry(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retry job")
		return
	}

	h.logger.Info("Job retry requested",
		slog.String("job_id", job.ID),
		slog.String("user_id", IdentityFrom(c).UserID),
	)
	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}
