package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/notification"
)

// NotificationHandler stores in-app notifications and forwards emails
type NotificationHandler struct {
	notifications *notification.Service
	queue         Enqueuer
	logger        *slog.Logger
}

func (h *NotificationHandler) HandleCreate(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.CreateNotificationPayload](job)
	if err != nil {
		return err
	}

	_, err = h.notifications.Create(ctx, notification.CreateInput{
		Type:    p.Type,
		UserID:  p.UserID,
		Title:   p.Title,
		Message: p.Message,
		Data:    p.Data,
	})
	if errors.Is(err, domain.ErrValidation) {
		// retrying cannot fix a bad payload
		return domain.NewPermanentError(err)
	}
	return err
}

// HandleSendEmail hands the message to the email queue
func (h *NotificationHandler) HandleSendEmail(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.SendEmailPayload](job)
	if err != nil {
		return err
	}
	if _, err := h.queue.Enqueue(ctx, domain.QueueEmail, p); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}
