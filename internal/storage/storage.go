// Package storage declares the persistence contracts of the job queue and
// webhook engine. Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// JobFilter narrows ListJobs; Cursor is exclusive
type JobFilter struct {
	Queue    string
	State    string
	PageSize int
	Cursor   *Cursor
}

// Cursor is a keyset position ordered by (created_at DESC, id DESC)
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// JobStore persists jobs and owns every state transition
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	// ClaimJob moves a due waiting/stalled job to active for workerID
	ClaimJob(ctx context.Context, id, workerID string, now time.Time) (*domain.Job, error)
	// ClaimNext claims the oldest due waiting/stalled job of queue
	ClaimNext(ctx context.Context, queue, workerID string, now time.Time) (*domain.Job, error)
	Heartbeat(ctx context.Context, id, workerID string, now time.Time) error
	// CompleteJob and FailJob only apply while workerID still holds the job
	CompleteJob(ctx context.Context, id, workerID string, now time.Time) error
	// FailJob records a failed attempt. A nil retryAt fails the job permanently;
	// otherwise the job waits until retryAt.
	FailJob(ctx context.Context, id, workerID, errMsg string, retryAt *time.Time, now time.Time) (*domain.Job, error)
	// RecoverStalled handles active jobs whose heartbeat is older than staleBefore
	RecoverStalled(ctx context.Context, queue string, staleBefore, now time.Time) ([]*domain.Job, error)
	RetryJob(ctx context.Context, id string, now time.Time) (*domain.Job, error)
	CountJobs(ctx context.Context, queue string) (domain.Counts, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, error)
	PruneJobs(ctx context.Context, queue string, keepCompleted, keepFailed int) (int64, error)
}

// WebhookStore is the per-tenant webhook registry
type WebhookStore interface {
	CreateWebhook(ctx context.Context, webhook *domain.WebhookSubscription) error
	GetWebhook(ctx context.Context, id, tenantID string) (*domain.WebhookSubscription, error)
	ListWebhooks(ctx context.Context, tenantID string) ([]*domain.WebhookSubscription, error)
	UpdateWebhook(ctx context.Context, webhook *domain.WebhookSubscription) error
	DeleteWebhook(ctx context.Context, id, tenantID string) error
	FindActiveWebhooks(ctx context.Context, tenantID string, event domain.EventType) ([]*domain.WebhookSubscription, error)
}

// DeliveryStore is the insert-only delivery log
type DeliveryStore interface {
	CreateDelivery(ctx context.Context, delivery *domain.WebhookDelivery) error
	ListDeliveries(ctx context.Context, webhookID string, cursor *Cursor, limit int) ([]*domain.WebhookDelivery, error)
}

// NotificationStore persists per-user notifications
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error)
	GetNotification(ctx context.Context, id, userID string) (*domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, id, userID string) error
}

// Store aggregates every contract
type Store interface {
	JobStore
	WebhookStore
	DeliveryStore
	NotificationStore
}
