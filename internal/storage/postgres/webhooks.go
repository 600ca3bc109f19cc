package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

type webhookRow struct {
	ID        string         `db:"id"`
	TenantID  string         `db:"tenant_id"`
	URL       string         `db:"url"`
	Secret    string         `db:"secret"`
	Events    pq.StringArray `db:"events"`
	IsActive  bool           `db:"is_active"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *webhookRow) toDomain() *domain.WebhookSubscription {
	events := make([]domain.EventType, 0, len(r.Events))
	for _, e := range r.Events {
		events = append(events, domain.EventType(e))
	}
	return &domain.WebhookSubscription{
		ID:        r.ID,
		TenantID:  r.TenantID,
		URL:       r.URL,
		Secret:    r.Secret,
		Events:    events,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func eventStrings(events []domain.EventType) pq.StringArray {
	out := make(pq.StringArray, 0, len(events))
	for _, e := range events {
		out = append(out, string(e))
	}
	return out
}

const webhookColumns = `id, tenant_id, url, secret, events, is_active, created_at, updated_at`

func (s *Store) CreateWebhook(ctx context.Context, webhook *domain.WebhookSubscription) error {
	query := `
		INSERT INTO webhooks (` + webhookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		webhook.ID, webhook.TenantID, webhook.URL, webhook.Secret,
		eventStrings(webhook.Events), webhook.IsActive, webhook.CreatedAt, webhook.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, id, tenantID string) (*domain.WebhookSubscription, error) {
	var row webhookRow
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1 AND tenant_id = $2`

	if err := s.db.GetContext(ctx, &row, query, id, tenantID); err != nil {
		return nil, notFoundOr(err, "get webhook")
	}
	return row.toDomain(), nil
}

func (s *Store) selectWebhooks(ctx context.Context, query string, args ...interface{}) ([]*domain.WebhookSubscription, error) {
	var rows []webhookRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	subs := make([]*domain.WebhookSubscription, 0, len(rows))
	for i := range rows {
		subs = append(subs, rows[i].toDomain())
	}
	return subs, nil
}

func (s *Store) ListWebhooks(ctx context.Context, tenantID string) ([]*domain.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE tenant_id = $1 ORDER BY created_at, id`
	return s.selectWebhooks(ctx, query, tenantID)
}

func (s *Store) UpdateWebhook(ctx context.Context, webhook *domain.WebhookSubscription) error {
	query := `
		UPDATE webhooks
		SET url = $1, events = $2, is_active = $3, updated_at = $4
		WHERE id = $5 AND tenant_id = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		webhook.URL, eventStrings(webhook.Events), webhook.IsActive, webhook.UpdatedAt,
		webhook.ID, webhook.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return checkAffected(result)
}

func (s *Store) DeleteWebhook(ctx context.Context, id, tenantID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return checkAffected(result)
}

func (s *Store) FindActiveWebhooks(ctx context.Context, tenantID string, event domain.EventType) ([]*domain.WebhookSubscription, error) {
	query := `
		SELECT ` + webhookColumns + `
		FROM webhooks
		WHERE tenant_id = $1 AND is_active AND $2 = ANY(events)
		ORDER BY created_at, id
	`
	return s.selectWebhooks(ctx, query, tenantID, string(event))
}

type deliveryRow struct {
	ID          string          `db:"id"`
	WebhookID   string          `db:"webhook_id"`
	Event       string          `db:"event"`
	Payload     json.RawMessage `db:"payload"`
	StatusCode  *int            `db:"status_code"`
	Response    *string         `db:"response"`
	Success     bool            `db:"success"`
	Attempts    int             `db:"attempts"`
	DeliveredAt *time.Time      `db:"delivered_at"`
	CreatedAt   time.Time       `db:"created_at"`
}

// foreignKeyViolation is raised when the webhook was deleted before its delivery was recorded
const foreignKeyViolation = "23503"

const deliveryColumns = `id, webhook_id, event, payload, status_code, response, success, attempts, delivered_at, created_at`

func (s *Store) CreateDelivery(ctx context.Context, delivery *domain.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	payload := delivery.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx, query,
		delivery.ID, delivery.WebhookID, string(delivery.Event), []byte(payload),
		delivery.StatusCode, delivery.ResponseBody, delivery.Success, delivery.Attempts,
		delivery.DeliveredAt, delivery.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return fmt.Errorf("webhook %s: %w", delivery.WebhookID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	return nil
}

func (s *Store) ListDeliveries(ctx context.Context, webhookID string, cursor *storage.Cursor, limit int) ([]*domain.WebhookDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE webhook_id = $1`
	args := []interface{}{webhookID}
	argIdx := 2

	if cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	var rows []deliveryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	deliveries := make([]*domain.WebhookDelivery, 0, len(rows))
	for _, r := range rows {
		deliveries = append(deliveries, &domain.WebhookDelivery{
			ID:           r.ID,
			WebhookID:    r.WebhookID,
			Event:        domain.EventType(r.Event),
			Payload:      r.Payload,
			StatusCode:   r.StatusCode,
			ResponseBody: r.Response,
			Success:      r.Success,
			Attempts:     r.Attempts,
			DeliveredAt:  r.DeliveredAt,
			CreatedAt:    r.CreatedAt,
		})
	}
	return deliveries, nil
}
