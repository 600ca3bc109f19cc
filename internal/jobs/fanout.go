package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// FanOut turns one tenant event into one WEBHOOK_DELIVER job per matching
// active subscription, so each delivery is retried on its own.
type FanOut struct {
	queue    Enqueuer
	webhooks WebhookLookup
	logger   *slog.Logger
}

// Dispatch enqueues the deliveries and returns how many were created
func (f *FanOut) Dispatch(ctx context.Context, tenantID string, event domain.EventType, payload map[string]any) (int, error) {
	subs, err := f.webhooks.FindActiveWebhooks(ctx, tenantID, event)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve webhooks: %w", err)
	}

	for _, sub := range subs {
		_, err := f.queue.Enqueue(ctx, domain.QueueWebhook, &domain.WebhookDeliverPayload{
			WebhookID: sub.ID,
			TenantID:  tenantID,
			Event:     event,
			Payload:   payload,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue delivery for webhook %s: %w", sub.ID, err)
		}
	}

	f.logger.Info("Webhook deliveries enqueued",
		slog.String("tenant_id", tenantID),
		slog.String("event", string(event)),
		slog.Int("webhooks", len(subs)),
	)
	return len(subs), nil
}
