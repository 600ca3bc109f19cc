package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage/memory"
	"github.com/cuongbtq/helpdesk-be/shared/logger"
)

func emailPayload() *domain.SendEmailPayload {
	return &domain.SendEmailPayload{To: "agent@example.com", Subject: "hi", Body: "body"}
}

func newTestQueue(t *testing.T) (*Queue, *memory.Store, *MemoryNotifier) {
	t.Helper()
	store := memory.New()
	notifier := NewMemoryNotifier()
	q := New(Config{
		Store:    store,
		Notifier: notifier,
		Logger:   logger.NewDiscard().Logger,
		Backoff:  domain.BackoffPolicy{Type: domain.BackoffExponential, Delay: 10 * time.Millisecond},
	})
	return q, store, notifier
}

func newTestWorker(q *Queue) *Worker {
	return NewWorker(q, WorkerConfig{
		WorkerID:          "test-worker",
		JobTimeout:        time.Second,
		HeartbeatInterval: 20 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
	})
}

func TestQueue_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults and signals", func(t *testing.T) {
		q, store, notifier := newTestQueue(t)

		job, err := q.Enqueue(ctx, domain.QueueEmail, emailPayload())
		require.NoError(t, err)
		assert.Equal(t, domain.JobSendEmail, job.Type)
		assert.Equal(t, domain.DefaultMaxAttempts, job.MaxAttempts)
		assert.Equal(t, domain.JobStateWaiting, job.State)

		stored, err := store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"to":"agent@example.com","subject":"hi","body":"body"}`, string(stored.Payload))
		assert.Len(t, notifier.channel(domain.QueueEmail), 1)
	})

	t.Run("options override defaults", func(t *testing.T) {
		q, _, notifier := newTestQueue(t)

		job, err := q.Enqueue(ctx, domain.QueueEmail, emailPayload(),
			WithMaxAttempts(5),
			WithBackoff(domain.BackoffPolicy{Type: domain.BackoffFixed, Delay: time.Second}),
			WithDelay(time.Minute),
		)
		require.NoError(t, err)
		assert.Equal(t, 5, job.MaxAttempts)
		assert.Equal(t, domain.BackoffFixed, job.BackoffType)
		assert.True(t, job.RunAt.After(job.EnqueuedAt))
		assert.Empty(t, notifier.channel(domain.QueueEmail), "delayed jobs are found by polling")
	})

	t.Run("rejects unknown queue", func(t *testing.T) {
		q, _, _ := newTestQueue(t)
		_, err := q.Enqueue(ctx, "billing", emailPayload())
		assert.ErrorIs(t, err, domain.ErrUnknownQueue)
	})

	t.Run("rejects nil payload", func(t *testing.T) {
		q, _, _ := newTestQueue(t)
		_, err := q.Enqueue(ctx, domain.QueueEmail, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})
}

type brokenCounts struct {
	*memory.Store
	broken string
}

func (b *brokenCounts) CountJobs(ctx context.Context, queue string) (domain.Counts, error) {
	if queue == b.broken {
		return domain.Counts{}, errors.New("connection refused")
	}
	return b.Store.CountJobs(ctx, queue)
}

func TestQueue_Health(t *testing.T) {
	ctx := context.Background()
	store := &brokenCounts{Store: memory.New(), broken: domain.QueueSLA}
	q := New(Config{Store: store, Logger: logger.NewDiscard().Logger})

	_, err := q.Enqueue(ctx, domain.QueueTicket, emailPayload())
	require.NoError(t, err)

	health := q.Health(ctx)
	require.Len(t, health, len(domain.AllQueues()))

	byName := map[string]QueueHealth{}
	for _, h := range health {
		byName[h.Name] = h
	}
	assert.Equal(t, StatusHealthy, byName[domain.QueueTicket].Status)
	assert.Equal(t, 1, byName[domain.QueueTicket].Waiting)
	assert.Equal(t, StatusUnhealthy, byName[domain.QueueSLA].Status)
	assert.Equal(t, "connection refused", byName[domain.QueueSLA].Error)
}

func TestWorker_RetriesUntilSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q, store, _ := newTestQueue(t)

	var calls atomic.Int32
	w := newTestWorker(q)
	require.NoError(t, w.Process(domain.QueueEmail, 2, HandlerFunc(func(ctx context.Context, job *domain.Job) error {
		if calls.Add(1) < 3 {
			return errors.New("smtp unavailable")
		}
		return nil
	})))
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	job, err := q.Enqueue(ctx, domain.QueueEmail, emailPayload())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetJob(ctx, job.ID)
		return err == nil && got.State == domain.JobStateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AttemptsMade)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWorker_FailsAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q, store, _ := newTestQueue(t)

	var calls atomic.Int32
	w := newTestWorker(q)
	require.NoError(t, w.Process(domain.QueueEmail, 1, HandlerFunc(func(ctx context.Context, job *domain.Job) error {
		calls.Add(1)
		return errors.New("always broken")
	})))
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	job, err := q.Enqueue(ctx, domain.QueueEmail, emailPayload())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetJob(ctx, job.ID)
		return err == nil && got.State == domain.JobStateFailed
	}, 2*time.Second, 10*time.Millisecond)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AttemptsMade)
	assert.Equal(t, "always broken", got.LastError)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWorker_PermanentErrorSkipsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q, store, _ := newTestQueue(t)

	w := newTestWorker(q)
	require.NoError(t, w.Process(domain.QueueEmail, 1, HandlerFunc(func(ctx context.Context, job *domain.Job) error {
		return domain.NewPermanentError(errors.New("bad address"))
	})))
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	job, err := q.Enqueue(ctx, domain.QueueEmail, emailPayload())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetJob(ctx, job.ID)
		return err == nil && got.State == domain.JobStateFailed
	}, 2*time.Second, 10*time.Millisecond)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttemptsMade)
}

func TestWorker_PanicIsRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q, store, _ := newTestQueue(t)

	var calls atomic.Int32
	w := newTestWorker(q)
	require.NoError(t, w.Process(domain.QueueEmail, 1, HandlerFunc(func(ctx context.Context, job *domain.Job) error {
		if calls.Add(1) == 1 {
			panic("nil map")
		}
		return nil
	})))
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	job, err := q.Enqueue(ctx, domain.QueueEmail, emailPayload())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetJob(ctx, job.ID)
		return err == nil && got.State == domain.JobStateCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_RetryDelaysFollowDefaultBackoff(t *testing.T) {
	ctx := context.Background()
	var clock atomic.Int64
	clock.Store(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	now := func() time.Time { return time.Unix(0, clock.Load()).UTC() }

	store := memory.New()
	q := New(Config{
		Store:  store,
		Logger: logger.NewDiscard().Logger,
		Now:    now,
	})
	w := NewWorker(q, WorkerConfig{
		WorkerID:          "test-worker",
		JobTimeout:        time.Second,
		HeartbeatInterval: time.Minute,
	})
	require.NoError(t, w.Process(domain.QueueEmail, 1, HandlerFunc(func(ctx context.Context, job *domain.Job) error {
		return errors.New("smtp unavailable")
	})))
	reg := w.registrations[domain.QueueEmail]

	job, err := q.Enqueue(ctx, domain.QueueEmail, emailPayload())
	require.NoError(t, err)
	msg := domain.JobMessage{JobID: job.ID, Queue: domain.QueueEmail}

	for i, want := range []time.Duration{2 * time.Second, 4 * time.Second} {
		attemptAt := now()
		require.NoError(t, w.processJob(ctx, reg, msg))

		got, err := store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateWaiting, got.State)
		assert.Equal(t, i+1, got.AttemptsMade)
		assert.Equal(t, want, got.RunAt.Sub(attemptAt))

		clock.Store(got.RunAt.UnixNano())
	}

	require.NoError(t, w.processJob(ctx, reg, msg))
	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, got.State)
	assert.Equal(t, domain.DefaultMaxAttempts, got.AttemptsMade)
}

func TestWorker_ProcessValidation(t *testing.T) {
	q, _, _ := newTestQueue(t)
	w := newTestWorker(q)
	noop := HandlerFunc(func(ctx context.Context, job *domain.Job) error { return nil })

	require.NoError(t, w.Process(domain.QueueEmail, 1, noop))
	assert.Error(t, w.Process(domain.QueueEmail, 1, noop), "one handler per queue")
	assert.ErrorIs(t, w.Process("billing", 1, noop), domain.ErrUnknownQueue)
}

func TestMux_UnknownTypeSucceeds(t *testing.T) {
	mux := NewMux(logger.NewDiscard().Logger)
	var handled bool
	mux.RegisterFunc(domain.JobSendEmail, func(ctx context.Context, job *domain.Job) error {
		handled = true
		return nil
	})

	assert.NoError(t, mux.Handle(context.Background(), &domain.Job{Type: "SOMETHING_ELSE"}))
	assert.False(t, handled)

	assert.NoError(t, mux.Handle(context.Background(), &domain.Job{Type: domain.JobSendEmail}))
	assert.True(t, handled)
}

func TestScheduler_RecoversStalledJobs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.New()
	notifier := NewMemoryNotifier()
	q := New(Config{
		Store:    store,
		Notifier: notifier,
		Logger:   logger.NewDiscard().Logger,
		Now:      func() time.Time { return now },
	})

	job, err := q.Enqueue(ctx, domain.QueueWebhook, emailPayload())
	require.NoError(t, err)
	<-notifier.channel(domain.QueueWebhook)

	_, err = store.ClaimJob(ctx, job.ID, "dead-worker", now)
	require.NoError(t, err)

	s := NewScheduler(q, SchedulerConfig{
		Queues:          []string{domain.QueueWebhook},
		StalledInterval: 30 * time.Second,
		KeepCompleted:   100,
		KeepFailed:      500,
	})

	// heartbeat is fresh
	s.Tick(ctx)
	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateActive, got.State)

	now = now.Add(time.Minute)
	s.Tick(ctx)
	got, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateStalled, got.State)
	assert.Equal(t, 1, got.AttemptsMade)
	assert.Len(t, notifier.channel(domain.QueueWebhook), 1, "stalled job is signalled again")
}

func TestScheduler_PruneWithNegativeRetention(t *testing.T) {
	ctx := context.Background()
	q, store, _ := newTestQueue(t)

	job, err := q.Enqueue(ctx, domain.QueueEmail, emailPayload())
	require.NoError(t, err)
	_, err = store.ClaimJob(ctx, job.ID, "w1", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.CompleteJob(ctx, job.ID, "w1", time.Now()))

	s := NewScheduler(q, SchedulerConfig{
		Queues:        []string{domain.QueueEmail},
		KeepCompleted: -1,
		KeepFailed:    500,
	})
	assert.NotPanics(t, func() { s.Tick(ctx) })

	counts, err := store.CountJobs(ctx, domain.QueueEmail)
	require.NoError(t, err)
	assert.Zero(t, counts.Completed)
}

func TestScheduler_RepeatRejectsBadSpec(t *testing.T) {
	q, _, _ := newTestQueue(t)
	s := NewScheduler(q, SchedulerConfig{})

	assert.Error(t, s.Repeat("not a cron", domain.QueueSLA, emailPayload()))
	assert.ErrorIs(t, s.Repeat("*/5 * * * *", "billing", emailPayload()), domain.ErrUnknownQueue)
	assert.NoError(t, s.Repeat("*/5 * * * *", domain.QueueSLA, emailPayload()))
}
