package domain

import (
	"encoding/json"
	"fmt"
)

// Job type tags
const (
	JobTicketCreated      = "TICKET_CREATED"
	JobTicketUpdated      = "TICKET_UPDATED"
	JobCommentAdded       = "COMMENT_ADDED"
	JobCreateNotification = "CREATE_NOTIFICATION"
	JobSendEmail          = "SEND_EMAIL"
	JobWebhookTrigger     = "WEBHOOK_TRIGGER"
	JobWebhookDeliver     = "WEBHOOK_DELIVER"
	JobSLAEscalation      = "SLA_ESCALATION"
	JobSLASweep           = "SLA_SWEEP"
)

// JobPayload is implemented by every typed job payload. The type tag is
// derived from the payload so producers cannot mismatch the two.
type JobPayload interface {
	JobType() string
}

// Envelope is the wire form of a typed payload
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type TicketCreatedPayload struct {
	TicketID     string `json:"ticketId"`
	Title        string `json:"title"`
	TenantID     string `json:"tenantId"`
	CreatedByID  string `json:"createdById"`
	AssignedToID string `json:"assignedToId,omitempty"`
}

func (TicketCreatedPayload) JobType() string { return JobTicketCreated }

type TicketUpdatedPayload struct {
	TicketID string         `json:"ticketId"`
	Title    string         `json:"title"`
	TenantID string         `json:"tenantId"`
	Changes  map[string]any `json:"changes"`
}

func (TicketUpdatedPayload) JobType() string { return JobTicketUpdated }

type CommentAddedPayload struct {
	TicketID  string `json:"ticketId"`
	CommentID string `json:"commentId"`
	TenantID  string `json:"tenantId"`
	AuthorID  string `json:"authorId"`
}

func (CommentAddedPayload) JobType() string { return JobCommentAdded }

type CreateNotificationPayload struct {
	Type    string         `json:"type"`
	UserID  string         `json:"userId"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (CreateNotificationPayload) JobType() string { return JobCreateNotification }

type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (SendEmailPayload) JobType() string { return JobSendEmail }

// WebhookTriggerPayload fans an event out to every matching subscription of a tenant
type WebhookTriggerPayload struct {
	TenantID string         `json:"tenantId"`
	Event    EventType      `json:"event"`
	Payload  map[string]any `json:"payload"`
}

func (WebhookTriggerPayload) JobType() string { return JobWebhookTrigger }

// WebhookDeliverPayload delivers one event to one subscription
type WebhookDeliverPayload struct {
	WebhookID string         `json:"webhookId"`
	TenantID  string         `json:"tenantId"`
	Event     EventType      `json:"event"`
	Payload   map[string]any `json:"payload"`
}

func (WebhookDeliverPayload) JobType() string { return JobWebhookDeliver }

type SLAEscalationPayload struct {
	TicketID     string `json:"ticketId"`
	TenantID     string `json:"tenantId"`
	Title        string `json:"title"`
	EscalateToID string `json:"escalateToId"`
	Reason       string `json:"reason,omitempty"`
}

func (SLAEscalationPayload) JobType() string { return JobSLAEscalation }

// SLASweepPayload is the repeatable SLA scan enqueued on a cron schedule
type SLASweepPayload struct{}

func (SLASweepPayload) JobType() string { return JobSLASweep }

// NewEnvelope serializes payload under its type tag
func NewEnvelope(payload JobPayload) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", payload.JobType(), err)
	}
	return Envelope{Type: payload.JobType(), Payload: raw}, nil
}

// DecodePayload resolves the typed variant for a type tag. Unknown tags
// return (nil, nil) so callers can apply their own unknown-type policy.
func DecodePayload(jobType string, raw json.RawMessage) (JobPayload, error) {
	var payload JobPayload
	switch jobType {
	case JobTicketCreated:
		payload = &TicketCreatedPayload{}
	case JobTicketUpdated:
		payload = &TicketUpdatedPayload{}
	case JobCommentAdded:
		payload = &CommentAddedPayload{}
	case JobCreateNotification:
		payload = &CreateNotificationPayload{}
	case JobSendEmail:
		payload = &SendEmailPayload{}
	case JobWebhookTrigger:
		payload = &WebhookTriggerPayload{}
	case JobWebhookDeliver:
		payload = &WebhookDeliverPayload{}
	case JobSLAEscalation:
		payload = &SLAEscalationPayload{}
	case JobSLASweep:
		payload = &SLASweepPayload{}
	default:
		return nil, nil
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload for %s", ErrInvalidPayload, jobType)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return payload, nil
}
