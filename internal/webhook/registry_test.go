package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage/memory"
	"github.com/cuongbtq/helpdesk-be/shared/logger"
)

func TestRegistry_CreateValidation(t *testing.T) {
	reg := NewRegistry(memory.New(), memory.New(), logger.NewDiscard().Logger)

	tests := []struct {
		name    string
		input   CreateInput
		wantErr bool
	}{
		{
			name:  "valid",
			input: CreateInput{URL: "https://hooks.example.com/a", Events: []domain.EventType{domain.EventTicketCreated}, Secret: "s"},
		},
		{
			name:    "relative url",
			input:   CreateInput{URL: "/hooks", Events: []domain.EventType{domain.EventTicketCreated}, Secret: "s"},
			wantErr: true,
		},
		{
			name:    "ftp scheme",
			input:   CreateInput{URL: "ftp://example.com", Events: []domain.EventType{domain.EventTicketCreated}, Secret: "s"},
			wantErr: true,
		},
		{
			name:    "no events",
			input:   CreateInput{URL: "https://example.com", Secret: "s"},
			wantErr: true,
		},
		{
			name:    "unknown event",
			input:   CreateInput{URL: "https://example.com", Events: []domain.EventType{"TICKET_DELETED"}, Secret: "s"},
			wantErr: true,
		},
		{
			name:    "missing secret",
			input:   CreateInput{URL: "https://example.com", Events: []domain.EventType{domain.EventTicketCreated}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := reg.Create(context.Background(), "tenant-1", tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, sub.IsActive)
			assert.Equal(t, "tenant-1", sub.TenantID)
		})
	}
}

func TestRegistry_UpdateAndMatching(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	reg := NewRegistry(store, store, logger.NewDiscard().Logger)

	sub, err := reg.Create(ctx, "tenant-1", CreateInput{
		URL:    "https://example.com/a",
		Events: []domain.EventType{domain.EventTicketCreated, domain.EventTicketCreated},
		Secret: "s",
	})
	require.NoError(t, err)
	assert.Len(t, sub.Events, 1, "duplicate events collapse")

	inactive := false
	updated, err := reg.Update(ctx, "tenant-1", sub.ID, domain.WebhookUpdate{
		Events:   []domain.EventType{domain.EventCommentAdded},
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "s", updated.Secret)

	matching, err := reg.Matching(ctx, "tenant-1", domain.EventCommentAdded)
	require.NoError(t, err)
	assert.Empty(t, matching)

	_, err = reg.Update(ctx, "tenant-2", sub.ID, domain.WebhookUpdate{IsActive: &inactive})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bad := "not a url"
	_, err = reg.Update(ctx, "tenant-1", sub.ID, domain.WebhookUpdate{URL: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegistry_DeliveriesScopedToTenant(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	reg := NewRegistry(store, store, logger.NewDiscard().Logger)

	sub, err := reg.Create(ctx, "tenant-1", CreateInput{URL: "https://example.com", Events: []domain.EventType{domain.EventTicketCreated}, Secret: "s"})
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"d1", "d2", "d3"} {
		require.NoError(t, store.CreateDelivery(ctx, &domain.WebhookDelivery{ID: id, WebhookID: sub.ID, CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	page, err := reg.Deliveries(ctx, "tenant-1", sub.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "d3", page[0].ID)

	_, err = reg.Deliveries(ctx, "tenant-2", sub.ID, nil, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, reg.Delete(ctx, "tenant-1", sub.ID))
	assert.ErrorIs(t, reg.Delete(ctx, "tenant-1", sub.ID), domain.ErrNotFound)
}
