package memory

import (
	"context"
	"sort"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

type webhookRecord struct {
	sub domain.WebhookSubscription
	seq int64
}

type deliveryRecord struct {
	delivery domain.WebhookDelivery
	seq      int64
}

func copyWebhook(w *domain.WebhookSubscription) *domain.WebhookSubscription {
	c := *w
	c.Events = append([]domain.EventType(nil), w.Events...)
	return &c
}

func (s *Store) CreateWebhook(ctx context.Context, webhook *domain.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.webhooks[webhook.ID] = &webhookRecord{sub: *copyWebhook(webhook), seq: s.next()}
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, id, tenantID string) (*domain.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.webhooks[id]
	if !ok || rec.sub.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return copyWebhook(&rec.sub), nil
}

func (s *Store) tenantWebhooks(tenantID string) []*webhookRecord {
	var out []*webhookRecord
	for _, rec := range s.webhooks {
		if rec.sub.TenantID == tenantID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].seq < out[k].seq })
	return out
}

func (s *Store) ListWebhooks(ctx context.Context, tenantID string) ([]*domain.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := []*domain.WebhookSubscription{}
	for _, rec := range s.tenantWebhooks(tenantID) {
		subs = append(subs, copyWebhook(&rec.sub))
	}
	return subs, nil
}

func (s *Store) UpdateWebhook(ctx context.Context, webhook *domain.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.webhooks[webhook.ID]
	if !ok || rec.sub.TenantID != webhook.TenantID {
		return domain.ErrNotFound
	}
	rec.sub = *copyWebhook(webhook)
	return nil
}

func (s *Store) DeleteWebhook(ctx context.Context, id, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.webhooks[id]
	if !ok || rec.sub.TenantID != tenantID {
		return domain.ErrNotFound
	}
	delete(s.webhooks, id)

	// deliveries cascade with their webhook
	kept := s.deliveries[:0]
	for _, d := range s.deliveries {
		if d.delivery.WebhookID != id {
			kept = append(kept, d)
		}
	}
	s.deliveries = kept
	return nil
}

func (s *Store) FindActiveWebhooks(ctx context.Context, tenantID string, event domain.EventType) ([]*domain.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subs []*domain.WebhookSubscription
	for _, rec := range s.tenantWebhooks(tenantID) {
		if rec.sub.IsActive && rec.sub.Subscribes(event) {
			subs = append(subs, copyWebhook(&rec.sub))
		}
	}
	return subs, nil
}

func (s *Store) CreateDelivery(ctx context.Context, delivery *domain.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[delivery.WebhookID]; !ok {
		return domain.ErrNotFound
	}
	c := *delivery
	c.Payload = append([]byte(nil), delivery.Payload...)
	s.deliveries = append(s.deliveries, &deliveryRecord{delivery: c, seq: s.next()})
	return nil
}

func (s *Store) ListDeliveries(ctx context.Context, webhookID string, cursor *storage.Cursor, limit int) ([]*domain.WebhookDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []*deliveryRecord
	for _, rec := range s.deliveries {
		d := &rec.delivery
		if d.WebhookID != webhookID {
			continue
		}
		if cursor != nil {
			if d.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
			if d.CreatedAt.Equal(cursor.CreatedAt) && d.ID >= cursor.ID {
				continue
			}
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, k int) bool {
		a, b := recs[i].delivery, recs[k].delivery
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	out := []*domain.WebhookDelivery{}
	for _, rec := range recs {
		if limit > 0 && len(out) == limit {
			break
		}
		c := rec.delivery
		out = append(out, &c)
	}
	return out, nil
}
