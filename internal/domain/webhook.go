package domain

import (
	"encoding/json"
	"time"
)

// EventType is the closed set of events a webhook can subscribe to
type EventType string

const (
	EventTicketCreated EventType = "TICKET_CREATED"
	EventTicketUpdated EventType = "TICKET_UPDATED"
	EventCommentAdded  EventType = "COMMENT_ADDED"
)

// Valid reports whether e is a known event type
func (e EventType) Valid() bool {
	switch e {
	case EventTicketCreated, EventTicketUpdated, EventCommentAdded:
		return true
	}
	return false
}

// WebhookSubscription is a tenant-configured HTTP callback
type WebhookSubscription struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenantId"`
	URL       string      `json:"url"`
	Secret    string      `json:"-"`
	Events    []EventType `json:"events"`
	IsActive  bool        `json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Subscribes reports whether the subscription lists event
func (w *WebhookSubscription) Subscribes(event EventType) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookUpdate is a partial update; nil fields are left untouched
type WebhookUpdate struct {
	URL      *string
	Events   []EventType
	IsActive *bool
}

// WebhookDelivery is one recorded attempt to invoke a webhook. Never updated.
type WebhookDelivery struct {
	ID           string          `json:"id"`
	WebhookID    string          `json:"webhookId"`
	Event        EventType       `json:"event"`
	Payload      json.RawMessage `json:"payload"`
	StatusCode   *int            `json:"statusCode,omitempty"`
	ResponseBody *string         `json:"response,omitempty"`
	Success      bool            `json:"success"`
	Attempts     int             `json:"attempts"`
	DeliveredAt  *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// DispatchResult is the per-webhook outcome of a dispatch
type DispatchResult struct {
	WebhookID  string `json:"webhookId"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}
