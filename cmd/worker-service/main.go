package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/helpdesk-be/internal/api/handler"
	"github.com/cuongbtq/helpdesk-be/internal/bootstrap"
	"github.com/cuongbtq/helpdesk-be/internal/config"
	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/jobs"
	"github.com/cuongbtq/helpdesk-be/internal/metrics"
	"github.com/cuongbtq/helpdesk-be/internal/notification"
	"github.com/cuongbtq/helpdesk-be/internal/queue"
	"github.com/cuongbtq/helpdesk-be/internal/webhook"
)

const serviceName = "helpdesk-worker"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.Any("queues", cfg.Worker.Queues),
	)

	infra, err := bootstrap.Open(context.Background(), cfg, appLogger.Logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	q := infra.NewQueue(cfg, appLogger.Logger, m)

	handlers := jobs.NewHandlers(jobs.Deps{
		Queue:         q,
		Notifications: notification.NewService(infra.Store, appLogger.Logger),
		Webhooks:      infra.Store,
		Dispatcher: webhook.NewDispatcher(infra.Store, infra.Store, webhook.DispatcherConfig{
			Timeout:         cfg.Webhook.Timeout,
			MaxResponseBody: cfg.Webhook.MaxResponseBody,
			RateLimit:       cfg.Webhook.RateLimit,
			RateBurst:       cfg.Webhook.RateBurst,
			UserAgent:       cfg.Webhook.UserAgent,
		}, appLogger.Logger, m),
		Mailer: initMailer(&cfg.Email, appLogger.Logger),
		Logger: appLogger.Logger,
	})

	workerInstance := queue.NewWorker(q, queue.WorkerConfig{
		WorkerID:          workerID(),
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		PollInterval:      cfg.Queue.PollInterval,
		Logger:            appLogger.Logger,
	})
	for _, name := range cfg.Worker.Queues {
		if err := workerInstance.Process(name, cfg.ConcurrencyFor(name), handlers[name]); err != nil {
			return fmt.Errorf("failed to register queue %s: %w", name, err)
		}
	}

	scheduler := queue.NewScheduler(q, queue.SchedulerConfig{
		Queues:          cfg.Worker.Queues,
		Interval:        cfg.Queue.SchedulerInterval,
		StalledInterval: cfg.Queue.StalledInterval,
		KeepCompleted:   cfg.Queue.KeepCompleted,
		KeepFailed:      cfg.Queue.KeepFailed,
		Logger:          appLogger.Logger,
	})
	if cfg.Queue.SLASweepCron != "" {
		if err := scheduler.Repeat(cfg.Queue.SLASweepCron, domain.QueueSLA, &domain.SLASweepPayload{}); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerInstance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	var healthSrv *http.Server
	if cfg.Worker.HealthPort != 0 {
		healthSrv = startHealthServer(cfg, q, m, appLogger.Logger)
	}

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerInstance.ID()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	if healthSrv != nil {
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Health server shutdown failed", slog.Any("error", err))
		}
	}

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		// unfinished jobs stay active and are recovered as stalled
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	return nil
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

func initMailer(cfg *config.EmailConfig, logger *slog.Logger) jobs.Mailer {
	if cfg.SMTPHost == "" {
		return &jobs.LogMailer{Logger: logger}
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &jobs.SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}
}

// startHealthServer serves /health and /metrics for orchestrator probes
func startHealthServer(cfg *config.Config, q *queue.Queue, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	health := handler.NewHealthHandler(&handler.Dependencies{Queue: q, ServiceName: serviceName})
	r.GET("/health", health.Health)
	if m != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server failed", slog.Any("error", err))
		}
	}()

	logger.Info("Health server listening", slog.String("address", srv.Addr))
	return srv
}
