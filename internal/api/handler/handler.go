package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/metrics"
	"github.com/cuongbtq/helpdesk-be/internal/notification"
	"github.com/cuongbtq/helpdesk-be/internal/producer"
	"github.com/cuongbtq/helpdesk-be/internal/queue"
	"github.com/cuongbtq/helpdesk-be/internal/webhook"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Queue         *queue.Queue
	Events        *producer.TicketEvents
	Webhooks      *webhook.Registry
	Dispatcher    *webhook.Dispatcher
	Notifications *notification.Service
	Metrics       *metrics.Metrics
	ServiceName   string
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnknownQueue),
		errors.Is(err, domain.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrJobNotRetryable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error. Internal errors are logged and
// their text is not exposed.
func respondError(c *gin.Context, logger *slog.Logger, err error, message string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error(message,
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
