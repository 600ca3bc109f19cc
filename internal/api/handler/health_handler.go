package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/helpdesk-be/internal/queue"
)

// HealthHandler reports per-queue health
type HealthHandler struct {
	queue   *queue.Queue
	service string
}

func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{queue: deps.Queue, service: deps.ServiceName}
}

// Health handles GET /health. Any unhealthy queue turns the response into a 503.
func (h *HealthHandler) Health(c *gin.Context) {
	queues := h.queue.Health(c.Request.Context())

	status, code := queue.StatusHealthy, http.StatusOK
	for _, q := range queues {
		if q.Status != queue.StatusHealthy {
			status, code = queue.StatusUnhealthy, http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": h.service,
		"queues":  queues,
	})
}
