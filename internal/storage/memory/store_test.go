package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newJob(id, queue string, runAt time.Time) *domain.Job {
	return &domain.Job{
		ID:           id,
		Queue:        queue,
		Type:         domain.JobCreateNotification,
		Payload:      json.RawMessage(`{"type":"x"}`),
		MaxAttempts:  3,
		BackoffType:  domain.BackoffExponential,
		BackoffDelay: 2 * time.Second,
		State:        domain.JobStateWaiting,
		RunAt:        runAt,
		EnqueuedAt:   runAt,
	}
}

func TestStore_ClaimNext(t *testing.T) {
	ctx := context.Background()

	t.Run("claims oldest due job", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, newJob("b", domain.QueueTicket, baseTime.Add(time.Second))))
		require.NoError(t, s.CreateJob(ctx, newJob("a", domain.QueueTicket, baseTime)))

		job, err := s.ClaimNext(ctx, domain.QueueTicket, "w1", baseTime.Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, "a", job.ID)
		assert.Equal(t, domain.JobStateActive, job.State)
		assert.Equal(t, "w1", job.WorkerID)
		require.NotNil(t, job.HeartbeatAt)
	})

	t.Run("skips jobs scheduled in the future", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, newJob("a", domain.QueueTicket, baseTime.Add(time.Minute))))

		_, err := s.ClaimNext(ctx, domain.QueueTicket, "w1", baseTime)
		assert.ErrorIs(t, err, domain.ErrNoJobAvailable)
	})

	t.Run("other queues are not claimed", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, newJob("a", domain.QueueEmail, baseTime)))

		_, err := s.ClaimNext(ctx, domain.QueueTicket, "w1", baseTime)
		assert.ErrorIs(t, err, domain.ErrNoJobAvailable)
	})
}

func TestStore_ClaimJob_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateJob(ctx, newJob("a", domain.QueueTicket, baseTime)))

	_, err := s.ClaimJob(ctx, "a", "w1", baseTime)
	require.NoError(t, err)

	_, err = s.ClaimJob(ctx, "a", "w2", baseTime)
	assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)
}

func TestStore_FailJob(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateJob(ctx, newJob("a", domain.QueueTicket, baseTime)))
	_, err := s.ClaimJob(ctx, "a", "w1", baseTime)
	require.NoError(t, err)

	retryAt := baseTime.Add(2 * time.Second)
	job, err := s.FailJob(ctx, "a", "w1", "boom", &retryAt, baseTime)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateWaiting, job.State)
	assert.Equal(t, 1, job.AttemptsMade)
	assert.Equal(t, retryAt, job.RunAt)
	assert.Equal(t, "boom", job.LastError)

	_, err = s.ClaimJob(ctx, "a", "w1", baseTime.Add(time.Second))
	assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed, "not due yet")

	_, err = s.ClaimJob(ctx, "a", "w1", retryAt)
	require.NoError(t, err)

	job, err = s.FailJob(ctx, "a", "w1", "boom again", nil, retryAt)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, job.State)
	assert.Equal(t, 2, job.AttemptsMade)
	require.NotNil(t, job.FinishedAt)
}

func TestStore_RecoverStalled(t *testing.T) {
	ctx := context.Background()
	s := New()

	fresh := newJob("fresh", domain.QueueWebhook, baseTime)
	stale := newJob("stale", domain.QueueWebhook, baseTime)
	last := newJob("last", domain.QueueWebhook, baseTime)
	last.AttemptsMade = 2
	for _, j := range []*domain.Job{fresh, stale, last} {
		require.NoError(t, s.CreateJob(ctx, j))
	}
	_, err := s.ClaimJob(ctx, "stale", "w1", baseTime)
	require.NoError(t, err)
	_, err = s.ClaimJob(ctx, "last", "w1", baseTime)
	require.NoError(t, err)
	_, err = s.ClaimJob(ctx, "fresh", "w2", baseTime)
	require.NoError(t, err)
	require.NoError(t, s.Heartbeat(ctx, "fresh", "w2", baseTime.Add(time.Minute)))

	now := baseTime.Add(time.Minute)
	recovered, err := s.RecoverStalled(ctx, domain.QueueWebhook, now.Add(-30*time.Second), now)
	require.NoError(t, err)
	assert.Len(t, recovered, 2)

	job, err := s.GetJob(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateStalled, job.State)
	assert.Equal(t, 1, job.AttemptsMade)

	job, err = s.GetJob(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, job.State)
	assert.Equal(t, 3, job.AttemptsMade)

	job, err = s.GetJob(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateActive, job.State)

	claimed, err := s.ClaimNext(ctx, domain.QueueWebhook, "w3", now)
	require.NoError(t, err)
	assert.Equal(t, "stale", claimed.ID)
}

func TestStore_FinishRequiresOwningWorker(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateJob(ctx, newJob("a", domain.QueueWebhook, baseTime)))
	_, err := s.ClaimJob(ctx, "a", "w1", baseTime)
	require.NoError(t, err)

	now := baseTime.Add(time.Minute)
	_, err = s.RecoverStalled(ctx, domain.QueueWebhook, now.Add(-30*time.Second), now)
	require.NoError(t, err)
	_, err = s.ClaimJob(ctx, "a", "w2", now)
	require.NoError(t, err)

	// w1 comes back after its job was handed to w2
	_, err = s.FailJob(ctx, "a", "w1", "late failure", &now, now)
	assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)
	assert.ErrorIs(t, s.CompleteJob(ctx, "a", "w1", now), domain.ErrJobAlreadyClaimed)

	job, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateActive, job.State)
	assert.Equal(t, "w2", job.WorkerID)
	assert.Equal(t, 1, job.AttemptsMade)

	require.NoError(t, s.CompleteJob(ctx, "a", "w2", now))
	assert.ErrorIs(t, s.CompleteJob(ctx, "missing", "w2", now), domain.ErrNotFound)
}

func TestStore_RetryJob(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateJob(ctx, newJob("a", domain.QueueTicket, baseTime)))

	_, err := s.RetryJob(ctx, "a", baseTime)
	assert.ErrorIs(t, err, domain.ErrJobNotRetryable)

	_, err = s.ClaimJob(ctx, "a", "w1", baseTime)
	require.NoError(t, err)
	_, err = s.FailJob(ctx, "a", "w1", "fatal", nil, baseTime)
	require.NoError(t, err)

	job, err := s.RetryJob(ctx, "a", baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateWaiting, job.State)
	assert.Zero(t, job.AttemptsMade)
	assert.Nil(t, job.FinishedAt)

	_, err = s.RetryJob(ctx, "missing", baseTime)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CountAndPrune(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, s.CreateJob(ctx, newJob(id, domain.QueueEmail, baseTime)))
		_, err := s.ClaimJob(ctx, id, "w1", baseTime)
		require.NoError(t, err)
		require.NoError(t, s.CompleteJob(ctx, id, "w1", baseTime.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, s.CreateJob(ctx, newJob("waiting", domain.QueueEmail, baseTime)))

	counts, err := s.CountJobs(ctx, domain.QueueEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Waiting: 1, Completed: 5}, counts)

	removed, err := s.PruneJobs(ctx, domain.QueueEmail, 2, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	// the most recently finished survive
	_, err = s.GetJob(ctx, "e")
	assert.NoError(t, err)
	_, err = s.GetJob(ctx, "d")
	assert.NoError(t, err)
	_, err = s.GetJob(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// negative retention keeps nothing rather than indexing out of range
	removed, err = s.PruneJobs(ctx, domain.QueueEmail, -1, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
	counts, err = s.CountJobs(ctx, domain.QueueEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Waiting: 1}, counts)
}

func TestStore_ListJobs_Paginates(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, s.CreateJob(ctx, newJob(id, domain.QueueTicket, baseTime.Add(time.Duration(i)*time.Second))))
	}

	page, err := s.ListJobs(ctx, storage.JobFilter{Queue: domain.QueueTicket, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 3, "one extra row signals another page")
	assert.Equal(t, "e", page[0].ID)
	assert.Equal(t, "d", page[1].ID)

	cursor := &storage.Cursor{CreatedAt: page[1].EnqueuedAt, ID: page[1].ID}
	page, err = s.ListJobs(ctx, storage.JobFilter{Queue: domain.QueueTicket, PageSize: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "c", page[0].ID)
}

func TestStore_Webhooks(t *testing.T) {
	ctx := context.Background()
	s := New()

	active := &domain.WebhookSubscription{ID: "w1", TenantID: "t1", URL: "http://a", Events: []domain.EventType{domain.EventTicketCreated}, IsActive: true}
	inactive := &domain.WebhookSubscription{ID: "w2", TenantID: "t1", URL: "http://b", Events: []domain.EventType{domain.EventTicketCreated}}
	other := &domain.WebhookSubscription{ID: "w3", TenantID: "t2", URL: "http://c", Events: []domain.EventType{domain.EventTicketCreated}, IsActive: true}
	for _, w := range []*domain.WebhookSubscription{active, inactive, other} {
		require.NoError(t, s.CreateWebhook(ctx, w))
	}

	subs, err := s.FindActiveWebhooks(ctx, "t1", domain.EventTicketCreated)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "w1", subs[0].ID)

	subs, err = s.FindActiveWebhooks(ctx, "t1", domain.EventCommentAdded)
	require.NoError(t, err)
	assert.Empty(t, subs)

	_, err = s.GetWebhook(ctx, "w3", "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "cross-tenant lookups are hidden")

	require.NoError(t, s.CreateDelivery(ctx, &domain.WebhookDelivery{ID: "d1", WebhookID: "w1", CreatedAt: baseTime}))
	require.NoError(t, s.DeleteWebhook(ctx, "w1", "t1"))
	deliveries, err := s.ListDeliveries(ctx, "w1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestStore_MarkAllRead_OnlyTouchesOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{ID: "n1", UserID: "u1", CreatedAt: baseTime}))
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{ID: "n2", UserID: "u1", CreatedAt: baseTime}))
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{ID: "n3", UserID: "u2", CreatedAt: baseTime}))

	updated, err := s.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	unread, err := s.ListNotifications(ctx, "u2", true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	_, err = s.MarkRead(ctx, "n3", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteNotification(ctx, "n3", "u1"), domain.ErrNotFound)
}
