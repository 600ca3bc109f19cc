package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

// CreateInput is a new subscription request
type CreateInput struct {
	URL    string
	Events []domain.EventType
	Secret string
}

// Registry manages tenant webhook subscriptions
type Registry struct {
	webhooks   storage.WebhookStore
	deliveries storage.DeliveryStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewRegistry creates a registry over the given stores
func NewRegistry(webhooks storage.WebhookStore, deliveries storage.DeliveryStore, logger *slog.Logger) *Registry {
	return &Registry{
		webhooks:   webhooks,
		deliveries: deliveries,
		logger:     logger,
		now:        time.Now,
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", domain.ErrValidation)
	}
	return nil
}

func validateEvents(events []domain.EventType) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: events must not be empty", domain.ErrValidation)
	}
	for _, e := range events {
		if !e.Valid() {
			return fmt.Errorf("%w: unknown event %q", domain.ErrValidation, e)
		}
	}
	return nil
}

// dedupe keeps the first occurrence of each event
func dedupe(events []domain.EventType) []domain.EventType {
	seen := make(map[domain.EventType]bool, len(events))
	out := make([]domain.EventType, 0, len(events))
	for _, e := range events {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// Create registers an active subscription for tenantID
func (r *Registry) Create(ctx context.Context, tenantID string, in CreateInput) (*domain.WebhookSubscription, error) {
	if err := validateURL(in.URL); err != nil {
		return nil, err
	}
	if err := validateEvents(in.Events); err != nil {
		return nil, err
	}
	if in.Secret == "" {
		return nil, fmt.Errorf("%w: secret is required", domain.ErrValidation)
	}

	now := r.now()
	sub := &domain.WebhookSubscription{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		URL:       in.URL,
		Secret:    in.Secret,
		Events:    dedupe(in.Events),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.webhooks.CreateWebhook(ctx, sub); err != nil {
		return nil, err
	}

	r.logger.Info("Webhook created",
		slog.String("webhook_id", sub.ID),
		slog.String("tenant_id", tenantID),
		slog.Int("events", len(sub.Events)),
	)
	return sub, nil
}

func (r *Registry) List(ctx context.Context, tenantID string) ([]*domain.WebhookSubscription, error) {
	return r.webhooks.ListWebhooks(ctx, tenantID)
}

func (r *Registry) Get(ctx context.Context, tenantID, id string) (*domain.WebhookSubscription, error) {
	return r.webhooks.GetWebhook(ctx, id, tenantID)
}

// Update applies a partial update. The secret cannot be changed.
func (r *Registry) Update(ctx context.Context, tenantID, id string, upd domain.WebhookUpdate) (*domain.WebhookSubscription, error) {
	sub, err := r.webhooks.GetWebhook(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	if upd.URL != nil {
		if err := validateURL(*upd.URL); err != nil {
			return nil, err
		}
		sub.URL = *upd.URL
	}
	if upd.Events != nil {
		if err := validateEvents(upd.Events); err != nil {
			return nil, err
		}
		sub.Events = dedupe(upd.Events)
	}
	if upd.IsActive != nil {
		sub.IsActive = *upd.IsActive
	}
	sub.UpdatedAt = r.now()

	if err := r.webhooks.UpdateWebhook(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *Registry) Delete(ctx context.Context, tenantID, id string) error {
	if err := r.webhooks.DeleteWebhook(ctx, id, tenantID); err != nil {
		return err
	}
	r.logger.Info("Webhook deleted",
		slog.String("webhook_id", id),
		slog.String("tenant_id", tenantID),
	)
	return nil
}

// Matching returns the active subscriptions of tenantID that list event
func (r *Registry) Matching(ctx context.Context, tenantID string, event domain.EventType) ([]*domain.WebhookSubscription, error) {
	return r.webhooks.FindActiveWebhooks(ctx, tenantID, event)
}

// Deliveries pages through the delivery log of a webhook owned by tenantID
func (r *Registry) Deliveries(ctx context.Context, tenantID, id string, cursor *storage.Cursor, limit int) ([]*domain.WebhookDelivery, error) {
	if _, err := r.webhooks.GetWebhook(ctx, id, tenantID); err != nil {
		return nil, err
	}
	return r.deliveries.ListDeliveries(ctx, id, cursor, limit)
}
