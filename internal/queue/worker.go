package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/metrics"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

// WorkerConfig holds worker runtime settings
type WorkerConfig struct {
	WorkerID          string
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	Logger            *slog.Logger
}

// jobMessage is a parsed signal waiting for a pool goroutine
type jobMessage struct {
	msg    domain.JobMessage
	signal Signal
}

// registration is one queue served by this worker
type registration struct {
	queue       string
	handler     Handler
	concurrency int
	jobsChan    chan *jobMessage
	logger      *slog.Logger
}

// Worker consumes registered queues with a bounded pool per queue
type Worker struct {
	queue             *Queue
	store             storage.JobStore
	notifier          Notifier
	logger            *slog.Logger
	metrics           *metrics.Metrics
	workerID          string
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	pollInterval      time.Duration

	mu            sync.Mutex
	registrations map[string]*registration
	started       bool
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewWorker creates a worker bound to q's store and notifier
func NewWorker(q *Queue, cfg WorkerConfig) *Worker {
	w := &Worker{
		queue:             q,
		store:             q.store,
		notifier:          q.notifier,
		logger:            cfg.Logger,
		metrics:           q.metrics,
		workerID:          cfg.WorkerID,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		pollInterval:      cfg.PollInterval,
		registrations:     make(map[string]*registration),
		stopChan:          make(chan struct{}),
	}
	if w.logger == nil {
		w.logger = q.logger
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 5 * time.Minute
	}
	if w.heartbeatInterval <= 0 {
		w.heartbeatInterval = 10 * time.Second
	}
	if w.pollInterval <= 0 {
		w.pollInterval = time.Second
	}
	return w
}

// ID returns the worker identifier recorded on claimed jobs
func (w *Worker) ID() string {
	return w.workerID
}

// Process registers the single handler for queue. Must be called before Start.
func (w *Worker) Process(queue string, concurrency int, handler Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("worker already started")
	}
	if !domain.IsKnownQueue(queue) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownQueue, queue)
	}
	if _, exists := w.registrations[queue]; exists {
		return fmt.Errorf("handler already registered for queue %s", queue)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	w.registrations[queue] = &registration{
		queue:       queue,
		handler:     handler,
		concurrency: concurrency,
		jobsChan:    make(chan *jobMessage),
		logger:      w.logger.With(slog.String("queue", queue)),
	}
	return nil
}

// Start subscribes to every registered queue and spawns the pools.
// It returns once consumers are running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("worker already started")
	}
	w.started = true

	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("queues", len(w.registrations)),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Duration("poll_interval", w.pollInterval),
	)

	for _, reg := range w.registrations {
		if w.notifier != nil {
			signals, err := w.notifier.Signals(ctx, reg.queue, w.workerID+"-"+reg.queue)
			if err != nil {
				return fmt.Errorf("failed to consume queue %s: %w", reg.queue, err)
			}
			w.wg.Add(1)
			go w.startMessageDispatcher(ctx, reg, signals)
		}
		w.spawnWorkerPool(ctx, reg)
	}
	return nil
}

// Stop signals every goroutine to exit and waits for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
