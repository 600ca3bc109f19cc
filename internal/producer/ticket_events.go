// Package producer turns ticket mutations into queued jobs. It never calls
// the webhook dispatcher directly.
package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/queue"
)

// Enqueuer is the subset of the job queue producers need
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, payload domain.JobPayload, opts ...queue.Option) (*domain.Job, error)
}

// QueueFor returns the queue a job type is routed to
func QueueFor(jobType string) (string, bool) {
	switch jobType {
	case domain.JobTicketCreated, domain.JobTicketUpdated, domain.JobCommentAdded:
		return domain.QueueTicket, true
	case domain.JobCreateNotification:
		return domain.QueueNotification, true
	case domain.JobSendEmail:
		return domain.QueueEmail, true
	case domain.JobWebhookTrigger, domain.JobWebhookDeliver:
		return domain.QueueWebhook, true
	case domain.JobSLAEscalation, domain.JobSLASweep:
		return domain.QueueSLA, true
	}
	return "", false
}

// TicketEvents publishes ticket lifecycle jobs
type TicketEvents struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewTicketEvents creates a producer over q
func NewTicketEvents(q Enqueuer, logger *slog.Logger) *TicketEvents {
	return &TicketEvents{queue: q, logger: logger}
}

func required(fields map[string]string) error {
	for name, value := range fields {
		if value == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
		}
	}
	return nil
}

// TicketCreated enqueues a TICKET_CREATED job
func (p *TicketEvents) TicketCreated(ctx context.Context, payload domain.TicketCreatedPayload) (*domain.Job, error) {
	if err := required(map[string]string{"ticketId": payload.TicketID, "tenantId": payload.TenantID, "createdById": payload.CreatedByID}); err != nil {
		return nil, err
	}
	return p.enqueue(ctx, domain.QueueTicket, payload)
}

// TicketUpdated enqueues a TICKET_UPDATED job
func (p *TicketEvents) TicketUpdated(ctx context.Context, payload domain.TicketUpdatedPayload) (*domain.Job, error) {
	if err := required(map[string]string{"ticketId": payload.TicketID, "tenantId": payload.TenantID}); err != nil {
		return nil, err
	}
	if payload.Changes == nil {
		payload.Changes = map[string]any{}
	}
	return p.enqueue(ctx, domain.QueueTicket, payload)
}

// CommentAdded enqueues a COMMENT_ADDED job
func (p *TicketEvents) CommentAdded(ctx context.Context, payload domain.CommentAddedPayload) (*domain.Job, error) {
	if err := required(map[string]string{"ticketId": payload.TicketID, "commentId": payload.CommentID, "tenantId": payload.TenantID, "authorId": payload.AuthorID}); err != nil {
		return nil, err
	}
	return p.enqueue(ctx, domain.QueueTicket, payload)
}

// Publish decodes an envelope, scopes it to the caller's tenant and enqueues
// it on the queue its type routes to. Ticket events and webhook triggers are
// open to every role, SLA escalations need ADMIN. Notification, email,
// sweep and single-delivery jobs are only produced inside the system.
func (p *TicketEvents) Publish(ctx context.Context, caller domain.Identity, env domain.Envelope) (*domain.Job, error) {
	tenantID := caller.TenantID
	payload, err := domain.DecodePayload(env.Type, env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, env.Type)
	}

	switch pl := payload.(type) {
	case *domain.TicketCreatedPayload:
		pl.TenantID = tenantID
		return p.TicketCreated(ctx, *pl)
	case *domain.TicketUpdatedPayload:
		pl.TenantID = tenantID
		return p.TicketUpdated(ctx, *pl)
	case *domain.CommentAddedPayload:
		pl.TenantID = tenantID
		return p.CommentAdded(ctx, *pl)
	case *domain.WebhookTriggerPayload:
		pl.TenantID = tenantID
		if !pl.Event.Valid() {
			return nil, fmt.Errorf("%w: unknown event %q", domain.ErrValidation, pl.Event)
		}
	case *domain.SLAEscalationPayload:
		if !caller.HasRole(domain.RoleAdmin) {
			return nil, fmt.Errorf("%w: %s requires role %s", domain.ErrForbidden, env.Type, domain.RoleAdmin)
		}
		pl.TenantID = tenantID
		if err := required(map[string]string{"ticketId": pl.TicketID, "escalateToId": pl.EscalateToID}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s cannot be published directly", domain.ErrValidation, env.Type)
	}

	queueName, _ := QueueFor(env.Type)
	return p.enqueue(ctx, queueName, payload)
}

func (p *TicketEvents) enqueue(ctx context.Context, queueName string, payload domain.JobPayload) (*domain.Job, error) {
	job, err := p.queue.Enqueue(ctx, queueName, payload)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Event published",
		slog.String("job_id", job.ID),
		slog.String("queue", queueName),
		slog.String("job_type", job.Type),
	)
	return job, nil
}
