package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/notification"
)

// TicketHandler runs the side effects of ticket lifecycle events
type TicketHandler struct {
	notifications *notification.Service
	fanOut        *FanOut
	logger        *slog.Logger
}

// HandleCreated notifies the assignee, if any, then fans out TICKET_CREATED
func (h *TicketHandler) HandleCreated(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.TicketCreatedPayload](job)
	if err != nil {
		return err
	}

	if p.AssignedToID != "" {
		_, err := h.notifications.Create(ctx, notification.CreateInput{
			Type:    domain.NotificationTicketAssigned,
			UserID:  p.AssignedToID,
			Title:   "New ticket assigned to you",
			Message: fmt.Sprintf("You have been assigned to ticket: %s", p.Title),
			Data:    map[string]any{"ticketId": p.TicketID},
		})
		if err != nil {
			return fmt.Errorf("failed to notify assignee: %w", err)
		}
	}

	_, err = h.fanOut.Dispatch(ctx, p.TenantID, domain.EventTicketCreated, map[string]any{
		"ticketId":  p.TicketID,
		"title":     p.Title,
		"createdBy": p.CreatedByID,
	})
	return err
}

func (h *TicketHandler) HandleUpdated(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.TicketUpdatedPayload](job)
	if err != nil {
		return err
	}

	_, err = h.fanOut.Dispatch(ctx, p.TenantID, domain.EventTicketUpdated, map[string]any{
		"ticketId": p.TicketID,
		"title":    p.Title,
		"changes":  p.Changes,
	})
	return err
}

func (h *TicketHandler) HandleCommentAdded(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.CommentAddedPayload](job)
	if err != nil {
		return err
	}

	_, err = h.fanOut.Dispatch(ctx, p.TenantID, domain.EventCommentAdded, map[string]any{
		"ticketId":  p.TicketID,
		"commentId": p.CommentID,
		"authorId":  p.AuthorID,
	})
	return err
}
