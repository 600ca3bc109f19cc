package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/helpdesk-be/internal/api/dto"
	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/producer"
)

// EventHandler accepts domain events from the ticket service
type EventHandler struct {
	logger *slog.Logger
	events *producer.TicketEvents
}

func NewEventHandler(deps *Dependencies) *EventHandler {
	return &EventHandler{
		logger: deps.Logger,
		events: deps.Events,
	}
}

// PublishEvent handles POST /api/v1/events
// The envelope is enqueued for the caller's tenant; the response is sent
// before any side effect runs.
func (h *EventHandler) PublishEvent(c *gin.Context) {
	var env domain.Envelope
	if err := c.ShouldBindJSON(&env); err != nil || env.Type == "" {
		badRequest(c, "Invalid request body", err)
		return
	}

	job, err := h.events.Publish(c.Request.Context(), IdentityFrom(c), env)
	if err != nil {
		respondError(c, h.logger, err, "Failed to publish event")
		return
	}

	c.JSON(http.StatusAccepted, dto.PublishEventResponse{
		JobID: job.ID,
		Queue: job.Queue,
		Type:  job.Type,
		State: job.State,
	})
}
