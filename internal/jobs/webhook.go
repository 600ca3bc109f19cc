package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// WebhookHandler delivers single webhooks and expands trigger jobs
type WebhookHandler struct {
	webhooks   WebhookLookup
	dispatcher Deliverer
	fanOut     *FanOut
	logger     *slog.Logger
}

// HandleDeliver performs one attempt. A non-2xx or transport failure is
// returned as retryable so the queue backs off and tries again.
func (h *WebhookHandler) HandleDeliver(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.WebhookDeliverPayload](job)
	if err != nil {
		return err
	}

	sub, err := h.webhooks.GetWebhook(ctx, p.WebhookID, p.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.logger.Info("Webhook removed before delivery, skipping",
				slog.String("job_id", job.ID),
				slog.String("webhook_id", p.WebhookID),
			)
			return nil
		}
		return fmt.Errorf("failed to load webhook: %w", err)
	}
	if !sub.IsActive || !sub.Subscribes(p.Event) {
		h.logger.Info("Webhook no longer subscribed, skipping",
			slog.String("job_id", job.ID),
			slog.String("webhook_id", sub.ID),
			slog.Bool("is_active", sub.IsActive),
		)
		return nil
	}

	result, err := h.dispatcher.Deliver(ctx, sub, p.Event, p.Payload, job.AttemptsMade+1)
	if err != nil {
		return err
	}
	if !result.Success {
		return domain.NewRetryableError(fmt.Errorf("webhook %s: %s", sub.ID, result.Error))
	}
	return nil
}

// HandleTrigger fans an event out to every matching subscription
func (h *WebhookHandler) HandleTrigger(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.WebhookTriggerPayload](job)
	if err != nil {
		return err
	}
	_, err = h.fanOut.Dispatch(ctx, p.TenantID, p.Event, p.Payload)
	return err
}
