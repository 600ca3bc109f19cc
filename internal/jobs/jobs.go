// Package jobs holds the handlers the worker service runs for each job type.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/notification"
	"github.com/cuongbtq/helpdesk-be/internal/queue"
)

// Enqueuer is the subset of the job queue handlers need
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, payload domain.JobPayload, opts ...queue.Option) (*domain.Job, error)
}

// WebhookLookup resolves subscriptions
type WebhookLookup interface {
	GetWebhook(ctx context.Context, id, tenantID string) (*domain.WebhookSubscription, error)
	FindActiveWebhooks(ctx context.Context, tenantID string, event domain.EventType) ([]*domain.WebhookSubscription, error)
}

// Deliverer performs one signed webhook delivery
type Deliverer interface {
	Deliver(ctx context.Context, sub *domain.WebhookSubscription, event domain.EventType, payload map[string]any, attempt int) (domain.DispatchResult, error)
}

// Deps are the collaborators shared by every handler
type Deps struct {
	Queue         Enqueuer
	Notifications *notification.Service
	Webhooks      WebhookLookup
	Dispatcher    Deliverer
	Mailer        Mailer
	Logger        *slog.Logger
}

// NewHandlers builds one Mux per queue, routing each job type tag to its handler
func NewHandlers(deps Deps) map[string]queue.Handler {
	if deps.Mailer == nil {
		deps.Mailer = &LogMailer{Logger: deps.Logger}
	}
	fanOut := &FanOut{queue: deps.Queue, webhooks: deps.Webhooks, logger: deps.Logger}
	tickets := &TicketHandler{notifications: deps.Notifications, fanOut: fanOut, logger: deps.Logger}
	webhooks := &WebhookHandler{webhooks: deps.Webhooks, dispatcher: deps.Dispatcher, fanOut: fanOut, logger: deps.Logger}
	notifications := &NotificationHandler{notifications: deps.Notifications, queue: deps.Queue, logger: deps.Logger}
	email := &EmailHandler{mailer: deps.Mailer, logger: deps.Logger}
	sla := &SLAHandler{notifications: deps.Notifications, logger: deps.Logger}

	ticketMux := queue.NewMux(deps.Logger)
	ticketMux.RegisterFunc(domain.JobTicketCreated, tickets.HandleCreated)
	ticketMux.RegisterFunc(domain.JobTicketUpdated, tickets.HandleUpdated)
	ticketMux.RegisterFunc(domain.JobCommentAdded, tickets.HandleCommentAdded)

	webhookMux := queue.NewMux(deps.Logger)
	webhookMux.RegisterFunc(domain.JobWebhookDeliver, webhooks.HandleDeliver)
	webhookMux.RegisterFunc(domain.JobWebhookTrigger, webhooks.HandleTrigger)

	notificationMux := queue.NewMux(deps.Logger)
	notificationMux.RegisterFunc(domain.JobCreateNotification, notifications.HandleCreate)
	notificationMux.RegisterFunc(domain.JobSendEmail, notifications.HandleSendEmail)

	emailMux := queue.NewMux(deps.Logger)
	emailMux.RegisterFunc(domain.JobSendEmail, email.HandleSend)

	slaMux := queue.NewMux(deps.Logger)
	slaMux.RegisterFunc(domain.JobSLAEscalation, sla.HandleEscalation)
	slaMux.RegisterFunc(domain.JobSLASweep, sla.HandleSweep)

	return map[string]queue.Handler{
		domain.QueueTicket:       ticketMux,
		domain.QueueWebhook:      webhookMux,
		domain.QueueNotification: notificationMux,
		domain.QueueEmail:        emailMux,
		domain.QueueSLA:          slaMux,
	}
}

// decode resolves the typed payload of job. Decoding failures are permanent.
func decode[T domain.JobPayload](job *domain.Job) (T, error) {
	var zero T
	payload, err := domain.DecodePayload(job.Type, job.Payload)
	if err != nil {
		return zero, err
	}
	typed, ok := payload.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s does not decode to %T", domain.ErrInvalidPayload, job.Type, zero)
	}
	return typed, nil
}
