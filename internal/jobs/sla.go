package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/notification"
)

// SLAHandler reacts to SLA timers
type SLAHandler struct {
	notifications *notification.Service
	logger        *slog.Logger
}

// HandleEscalation notifies the escalation target of a breached ticket
func (h *SLAHandler) HandleEscalation(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.SLAEscalationPayload](job)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Ticket %q breached its SLA", p.Title)
	if p.Reason != "" {
		message += ": " + p.Reason
	}

	_, err = h.notifications.Create(ctx, notification.CreateInput{
		Type:    domain.NotificationSLABreach,
		UserID:  p.EscalateToID,
		Title:   "SLA breached",
		Message: message,
		Data:    map[string]any{"ticketId": p.TicketID},
	})
	if err != nil {
		return fmt.Errorf("failed to notify escalation target: %w", err)
	}

	h.logger.Warn("SLA escalated",
		slog.String("ticket_id", p.TicketID),
		slog.String("tenant_id", p.TenantID),
		slog.String("escalate_to", p.EscalateToID),
	)
	return nil
}

// HandleSweep is the periodic SLA scan. Ticket deadlines live in the ticket
// service, which publishes SLA_ESCALATION jobs itself, so the sweep only
// records that it ran.
func (h *SLAHandler) HandleSweep(ctx context.Context, job *domain.Job) error {
	h.logger.Info("SLA sweep ran", slog.String("job_id", job.ID))
	return nil
}
