package dto

import (
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

type CreateWebhookRequest struct {
	URL    string             `json:"url" binding:"required"`
	Events []domain.EventType `json:"events" binding:"required"`
	Secret string             `json:"secret" binding:"required"`
}

type UpdateWebhookRequest struct {
	URL      *string            `json:"url"`
	Events   []domain.EventType `json:"events"`
	IsActive *bool              `json:"isActive"`
}

type TriggerWebhooksRequest struct {
	Event   domain.EventType `json:"event" binding:"required"`
	Payload map[string]any   `json:"payload"`
}

type TriggerWebhooksResponse struct {
	Results []domain.DispatchResult `json:"results"`
}

type WebhookDTO struct {
	ID        string             `json:"id"`
	URL       string             `json:"url"`
	Events    []domain.EventType `json:"events"`
	IsActive  bool               `json:"isActive"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// CreatedWebhookDTO is returned once at creation and is the only response carrying the secret
type CreatedWebhookDTO struct {
	WebhookDTO
	Secret string `json:"secret"`
}

func NewWebhookDTO(sub *domain.WebhookSubscription) WebhookDTO {
	return WebhookDTO{
		ID:        sub.ID,
		URL:       sub.URL,
		Events:    sub.Events,
		IsActive:  sub.IsActive,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

type ListDeliveriesRequest struct {
	Limit  int    `form:"limit"`
	Cursor string `form:"cursor"`
}

type ListDeliveriesResponse struct {
	Deliveries []*domain.WebhookDelivery `json:"deliveries"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}
