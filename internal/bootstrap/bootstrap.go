// Package bootstrap opens the infrastructure both services share: logger,
// job store and wake-up notifier, as selected by configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/config"
	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/metrics"
	"github.com/cuongbtq/helpdesk-be/internal/queue"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
	"github.com/cuongbtq/helpdesk-be/internal/storage/memory"
	"github.com/cuongbtq/helpdesk-be/internal/storage/postgres"
	"github.com/cuongbtq/helpdesk-be/shared/logger"
	"github.com/cuongbtq/helpdesk-be/shared/postgresql"
	"github.com/cuongbtq/helpdesk-be/shared/rabbitmq"
	"github.com/cuongbtq/helpdesk-be/shared/redis"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		Service:      service,
	}

	return logger.New(loggerCfg)
}

// Infra holds the opened store and notifier and closes them in reverse order
type Infra struct {
	Store    storage.Store
	Notifier queue.Notifier

	closers []func() error
}

// Open connects the configured storage driver and notifier backend
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Infra, error) {
	infra := &Infra{}

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		dbClient, err := initPostgreSQL(&cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		infra.closers = append(infra.closers, dbClient.Close)

		store := postgres.NewStore(dbClient, log)
		if cfg.Storage.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				infra.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info("Database schema is up to date")
		}
		infra.Store = store
	case config.StorageDriverMemory:
		log.Warn("Using in-memory storage; jobs are lost on restart")
		infra.Store = memory.New()
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}

	switch cfg.Queue.Notifier {
	case config.NotifierRabbitMQ:
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, log)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		infra.Notifier = queue.NewRabbitMQNotifier(rabbitClient, cfg.RabbitMQ.Consumer.PrefetchCount, log)
	case config.NotifierRedis:
		rdb, err := redis.NewClient(&redis.Config{
			Addr:     cfg.Redis.Addr,
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		infra.Notifier = queue.NewRedisNotifier(rdb, cfg.Redis.KeyPrefix, log)
	case config.NotifierMemory:
		infra.Notifier = queue.NewMemoryNotifier()
	default:
		infra.Close()
		return nil, fmt.Errorf("unsupported queue notifier: %q", cfg.Queue.Notifier)
	}
	infra.closers = append(infra.closers, infra.Notifier.Close)

	return infra, nil
}

// NewQueue builds the job queue over the opened infrastructure
func (i *Infra) NewQueue(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) *queue.Queue {
	return queue.New(queue.Config{
		Store:       i.Store,
		Notifier:    i.Notifier,
		Logger:      log,
		Metrics:     m,
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff:     domain.BackoffPolicy{Type: domain.BackoffExponential, Delay: cfg.Queue.BackoffDelay},
	})
}

// Close releases every opened resource
func (i *Infra) Close() error {
	var errs []error
	for k := len(i.closers) - 1; k >= 0; k-- {
		if err := i.closers[k](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client with one durable queue per job queue
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		QueuePrefix:        cfg.QueuePrefix,
		QueueDurable:       cfg.Durable,
		Queues:             domain.AllQueues(),
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
