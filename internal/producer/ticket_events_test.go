package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/queue"
	"github.com/cuongbtq/helpdesk-be/internal/storage/memory"
	"github.com/cuongbtq/helpdesk-be/shared/logger"
)

func newProducer() (*TicketEvents, *memory.Store) {
	store := memory.New()
	q := queue.New(queue.Config{Store: store, Logger: logger.NewDiscard().Logger})
	return NewTicketEvents(q, logger.NewDiscard().Logger), store
}

func TestTicketEvents_TicketCreated(t *testing.T) {
	ctx := context.Background()
	p, store := newProducer()

	job, err := p.TicketCreated(ctx, domain.TicketCreatedPayload{
		TicketID: "t-1", Title: "VPN down", TenantID: "tenant-1", CreatedByID: "u-1", AssignedToID: "u-2",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.QueueTicket, job.Queue)
	assert.Equal(t, domain.JobTicketCreated, job.Type)

	counts, err := store.CountJobs(ctx, domain.QueueTicket)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Waiting)

	_, err = p.TicketCreated(ctx, domain.TicketCreatedPayload{Title: "no id", TenantID: "tenant-1", CreatedByID: "u-1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTicketEvents_Publish(t *testing.T) {
	ctx := context.Background()
	agent := domain.Identity{UserID: "u-1", TenantID: "tenant-1", Role: domain.RoleAgent}
	admin := domain.Identity{UserID: "u-2", TenantID: "tenant-1", Role: domain.RoleAdmin}

	tests := []struct {
		name      string
		caller    domain.Identity
		env       domain.Envelope
		wantQueue string
		wantErr   error
	}{
		{
			name:      "comment forced onto caller tenant",
			caller:    agent,
			env:       domain.Envelope{Type: domain.JobCommentAdded, Payload: json.RawMessage(`{"ticketId":"t-1","commentId":"c-1","tenantId":"someone-else","authorId":"u-1"}`)},
			wantQueue: domain.QueueTicket,
		},
		{
			name:      "ticket updated",
			caller:    agent,
			env:       domain.Envelope{Type: domain.JobTicketUpdated, Payload: json.RawMessage(`{"ticketId":"t-1","title":"x"}`)},
			wantQueue: domain.QueueTicket,
		},
		{
			name:      "webhook trigger",
			caller:    agent,
			env:       domain.Envelope{Type: domain.JobWebhookTrigger, Payload: json.RawMessage(`{"event":"TICKET_CREATED","payload":{}}`)},
			wantQueue: domain.QueueWebhook,
		},
		{
			name:      "sla escalation by admin",
			caller:    admin,
			env:       domain.Envelope{Type: domain.JobSLAEscalation, Payload: json.RawMessage(`{"ticketId":"t-1","escalateToId":"u-9"}`)},
			wantQueue: domain.QueueSLA,
		},
		{
			name:    "sla escalation by agent",
			caller:  agent,
			env:     domain.Envelope{Type: domain.JobSLAEscalation, Payload: json.RawMessage(`{"ticketId":"t-1","escalateToId":"u-9"}`)},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "unknown type",
			caller:  agent,
			env:     domain.Envelope{Type: "TICKET_DELETED", Payload: json.RawMessage(`{}`)},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "malformed payload",
			caller:  agent,
			env:     domain.Envelope{Type: domain.JobTicketCreated, Payload: json.RawMessage(`{"ticketId":`)},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "direct deliveries rejected",
			caller:  admin,
			env:     domain.Envelope{Type: domain.JobWebhookDeliver, Payload: json.RawMessage(`{"webhookId":"w-1"}`)},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "notifications are internal",
			caller:  admin,
			env:     domain.Envelope{Type: domain.JobCreateNotification, Payload: json.RawMessage(`{"type":"TICKET_ASSIGNED","userId":"victim","title":"x","message":"y"}`)},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "emails are internal",
			caller:  admin,
			env:     domain.Envelope{Type: domain.JobSendEmail, Payload: json.RawMessage(`{"to":"anyone@external.example","subject":"s","body":"b"}`)},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "sweeps are internal",
			caller:  admin,
			env:     domain.Envelope{Type: domain.JobSLASweep, Payload: json.RawMessage(`{}`)},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newProducer()
			job, err := p.Publish(ctx, tt.caller, tt.env)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				for _, q := range domain.AllQueues() {
					counts, err := store.CountJobs(ctx, q)
					require.NoError(t, err)
					assert.Zero(t, counts.Waiting, q)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQueue, job.Queue)

			var body map[string]any
			require.NoError(t, json.Unmarshal(job.Payload, &body))
			assert.Equal(t, "tenant-1", body["tenantId"])
		})
	}
}
