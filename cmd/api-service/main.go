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
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/helpdesk-be/internal/api/handler"
	"github.com/cuongbtq/helpdesk-be/internal/api/router"
	"github.com/cuongbtq/helpdesk-be/internal/bootstrap"
	"github.com/cuongbtq/helpdesk-be/internal/config"
	"github.com/cuongbtq/helpdesk-be/internal/metrics"
	"github.com/cuongbtq/helpdesk-be/internal/notification"
	"github.com/cuongbtq/helpdesk-be/internal/producer"
	"github.com/cuongbtq/helpdesk-be/internal/webhook"
)

const serviceName = "helpdesk-api"

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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("notifier", cfg.Queue.Notifier),
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

	r := initRouter(cfg, appLogger.Logger, infra, m)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-errChan:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter wires the services behind the HTTP handlers
func initRouter(cfg *config.Config, logger *slog.Logger, infra *bootstrap.Infra, m *metrics.Metrics) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	q := infra.NewQueue(cfg, logger, m)

	handlerDeps := &handler.Dependencies{
		Logger:   logger,
		Queue:    q,
		Events:   producer.NewTicketEvents(q, logger),
		Webhooks: webhook.NewRegistry(infra.Store, infra.Store, logger),
		Dispatcher: webhook.NewDispatcher(infra.Store, infra.Store, webhook.DispatcherConfig{
			Timeout:         cfg.Webhook.Timeout,
			MaxResponseBody: cfg.Webhook.MaxResponseBody,
			RateLimit:       cfg.Webhook.RateLimit,
			RateBurst:       cfg.Webhook.RateBurst,
			UserAgent:       cfg.Webhook.UserAgent,
		}, logger, m),
		Notifications: notification.NewService(infra.Store, logger),
		Metrics:       m,
		ServiceName:   serviceName,
	}

	return router.SetupRouter(handlerDeps)
}
