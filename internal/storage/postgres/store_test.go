package postgres

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
	"github.com/cuongbtq/helpdesk-be/shared/logger"
	"github.com/cuongbtq/helpdesk-be/shared/postgresql"
)

// newTestStore connects to the database named by HELPDESK_TEST_DB_* and
// skips when it is not configured.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	host := os.Getenv("HELPDESK_TEST_DB_HOST")
	if host == "" {
		t.Skip("HELPDESK_TEST_DB_HOST not set; skipping PostgreSQL integration tests")
	}
	port, _ := strconv.Atoi(os.Getenv("HELPDESK_TEST_DB_PORT"))
	if port == 0 {
		port = 5432
	}

	log := logger.NewDiscard().Logger
	client, err := postgresql.NewClient(&postgresql.Config{
		Host:         host,
		Port:         port,
		User:         os.Getenv("HELPDESK_TEST_DB_USER"),
		Password:     os.Getenv("HELPDESK_TEST_DB_PASSWORD"),
		Database:     os.Getenv("HELPDESK_TEST_DB_NAME"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := NewStore(client, log)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newJob(queue string, enqueuedAt time.Time) *domain.Job {
	return &domain.Job{
		ID:           uuid.NewString(),
		Queue:        queue,
		Type:         domain.JobSendEmail,
		Payload:      json.RawMessage(`{"to":"a@example.com"}`),
		MaxAttempts:  2,
		BackoffType:  domain.BackoffExponential,
		BackoffDelay: 2 * time.Second,
		State:        domain.JobStateWaiting,
		RunAt:        enqueuedAt,
		EnqueuedAt:   enqueuedAt,
	}
}

func TestStore_JobLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	queue := "test-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newJob(queue, now)
	require.NoError(t, store.CreateJob(ctx, job))

	stored, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, stored.BackoffDelay)
	assert.JSONEq(t, `{"to":"a@example.com"}`, string(stored.Payload))

	claimed, err := store.ClaimNext(ctx, queue, "w1", now)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, domain.JobStateActive, claimed.State)

	_, err = store.ClaimJob(ctx, job.ID, "w2", now)
	assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)
	_, err = store.ClaimNext(ctx, queue, "w2", now)
	assert.ErrorIs(t, err, domain.ErrNoJobAvailable)

	retryAt := now.Add(time.Minute)
	failed, err := store.FailJob(ctx, job.ID, "w1", "boom", &retryAt, now)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateWaiting, failed.State)
	assert.Equal(t, 1, failed.AttemptsMade)

	_, err = store.ClaimNext(ctx, queue, "w1", now)
	assert.ErrorIs(t, err, domain.ErrNoJobAvailable, "not due until retryAt")

	_, err = store.ClaimJob(ctx, job.ID, "w1", retryAt)
	require.NoError(t, err)
	failed, err = store.FailJob(ctx, job.ID, "w1", "boom again", nil, retryAt)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, failed.State)
	assert.NotNil(t, failed.FinishedAt)

	assert.ErrorIs(t, store.CompleteJob(ctx, job.ID, "w1", now), domain.ErrJobAlreadyClaimed)
	assert.ErrorIs(t, store.CompleteJob(ctx, uuid.NewString(), "w1", now), domain.ErrNotFound)

	retried, err := store.RetryJob(ctx, job.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 0, retried.AttemptsMade)
	_, err = store.RetryJob(ctx, job.ID, now)
	assert.ErrorIs(t, err, domain.ErrJobNotRetryable)

	counts, err := store.CountJobs(ctx, queue)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Waiting: 1}, counts)
}

func TestStore_RecoverStalled(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	queue := "test-" + uuid.NewString()
	now := time.Now().UTC()

	job := newJob(queue, now)
	require.NoError(t, store.CreateJob(ctx, job))
	_, err := store.ClaimJob(ctx, job.ID, "w1", now)
	require.NoError(t, err)

	later := now.Add(time.Minute)
	recovered, err := store.RecoverStalled(ctx, queue, later.Add(-30*time.Second), later)
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.Equal(t, domain.JobStateStalled, recovered[0].State)
	assert.Equal(t, 1, recovered[0].AttemptsMade)

	_, err = store.ClaimJob(ctx, job.ID, "w2", later)
	require.NoError(t, err)

	// the first worker finishing late must not touch the reclaimed job
	_, err = store.FailJob(ctx, job.ID, "w1", "late failure", nil, later)
	assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)
	assert.ErrorIs(t, store.CompleteJob(ctx, job.ID, "w1", later), domain.ErrJobAlreadyClaimed)
	current, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateActive, current.State)
	assert.Equal(t, "w2", current.WorkerID)
	assert.Equal(t, 1, current.AttemptsMade)

	recovered, err = store.RecoverStalled(ctx, queue, later.Add(time.Minute), later.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.Equal(t, domain.JobStateFailed, recovered[0].State, "second stall exhausts max_attempts")
}

func TestStore_ListAndPrune(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	queue := "test-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		job := newJob(queue, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.CreateJob(ctx, job))
		_, err := store.ClaimJob(ctx, job.ID, "w", job.RunAt)
		require.NoError(t, err)
		require.NoError(t, store.CompleteJob(ctx, job.ID, "w", job.RunAt))
	}

	page, err := store.ListJobs(ctx, storageFilter(queue, 2, nil))
	require.NoError(t, err)
	require.Len(t, page, 3, "one extra row signals another page")

	removed, err := store.PruneJobs(ctx, queue, 2, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	counts, err := store.CountJobs(ctx, queue)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Completed)
}

func TestStore_WebhooksAndNotifications(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tenant := "tenant-" + uuid.NewString()
	now := time.Now().UTC()

	sub := &domain.WebhookSubscription{
		ID: uuid.NewString(), TenantID: tenant, URL: "https://example.com/hook", Secret: "s",
		Events: []domain.EventType{domain.EventTicketCreated}, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateWebhook(ctx, sub))

	matching, err := store.FindActiveWebhooks(ctx, tenant, domain.EventTicketCreated)
	require.NoError(t, err)
	require.Len(t, matching, 1)
	assert.Equal(t, sub.Events, matching[0].Events)

	none, err := store.FindActiveWebhooks(ctx, tenant, domain.EventCommentAdded)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = store.GetWebhook(ctx, sub.ID, "other-tenant")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	status := 200
	require.NoError(t, store.CreateDelivery(ctx, &domain.WebhookDelivery{
		ID: uuid.NewString(), WebhookID: sub.ID, Event: domain.EventTicketCreated,
		Payload: json.RawMessage(`{}`), StatusCode: &status, Success: true, Attempts: 1, CreatedAt: now,
	}))
	deliveries, err := store.ListDeliveries(ctx, sub.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, 200, *deliveries[0].StatusCode)

	require.NoError(t, store.DeleteWebhook(ctx, sub.ID, tenant))
	deliveries, err = store.ListDeliveries(ctx, sub.ID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, deliveries)

	user := "user-" + uuid.NewString()
	n := &domain.Notification{ID: uuid.NewString(), Type: domain.NotificationSLABreach, UserID: user, Title: "t", Message: "m", Data: json.RawMessage(`{}`), CreatedAt: now}
	require.NoError(t, store.CreateNotification(ctx, n))

	_, err = store.MarkRead(ctx, n.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	updated, err := store.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	unread, err := store.ListNotifications(ctx, user, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func storageFilter(queue string, pageSize int, cursor *storage.Cursor) storage.JobFilter {
	return storage.JobFilter{Queue: queue, PageSize: pageSize, Cursor: cursor}
}
