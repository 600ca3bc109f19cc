package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Notifier backends
const (
	NotifierRabbitMQ = "rabbitmq"
	NotifierRedis    = "redis"
	NotifierMemory   = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Email    EmailConfig    `yaml:"email"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host        string           `yaml:"host"`
	Port        int              `yaml:"port"`
	User        string           `yaml:"user"`
	Password    string           `yaml:"password"`
	VHost       string           `yaml:"vhost"`
	Exchange    ExchangeConfig   `yaml:"exchange"`
	QueuePrefix string           `yaml:"queue_prefix"`
	Durable     bool             `yaml:"durable"`
	Connection  ConnectionConfig `yaml:"connection"`
	Publish     PublishConfig    `yaml:"publish"`
	Consumer    ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// StorageConfig selects the persistent store
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// QueueConfig holds job queue policy
type QueueConfig struct {
	Notifier          string        `yaml:"notifier"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffDelay      time.Duration `yaml:"backoff_delay"`
	KeepCompleted     int           `yaml:"keep_completed"`
	KeepFailed        int           `yaml:"keep_failed"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	StalledInterval   time.Duration `yaml:"stalled_interval"`
	SchedulerInterval time.Duration `yaml:"scheduler_interval"`
	// SLASweepCron schedules the repeatable SLA_SWEEP job; empty disables it
	SLASweepCron string `yaml:"sla_sweep_cron"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Queues            []string       `yaml:"queues"`
	Concurrency       int            `yaml:"concurrency"`
	QueueConcurrency  map[string]int `yaml:"queue_concurrency"`
	JobTimeout        time.Duration  `yaml:"job_timeout"`
	HeartbeatInterval time.Duration  `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration  `yaml:"shutdown_timeout"`
	HealthPort        int            `yaml:"health_port"`
}

// WebhookConfig holds outbound webhook delivery settings
type WebhookConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxResponseBody int           `yaml:"max_response_body"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	UserAgent       string        `yaml:"user_agent"`
}

// EmailConfig holds SMTP settings; an empty host logs emails instead of sending
type EmailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads and parses the configuration file, then fills defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults sets every zero-valued tunable to its default
func (c *Config) ApplyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
	if c.Queue.Notifier == "" {
		c.Queue.Notifier = NotifierRabbitMQ
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = domain.DefaultMaxAttempts
	}
	if c.Queue.BackoffDelay == 0 {
		c.Queue.BackoffDelay = domain.DefaultBackoffDelay
	}
	if c.Queue.KeepCompleted == 0 {
		c.Queue.KeepCompleted = domain.DefaultKeepCompleted
	}
	if c.Queue.KeepFailed == 0 {
		c.Queue.KeepFailed = domain.DefaultKeepFailed
	}
	if c.Queue.PollInterval == 0 {
		c.Queue.PollInterval = time.Second
	}
	if c.Queue.StalledInterval == 0 {
		c.Queue.StalledInterval = 30 * time.Second
	}
	if c.Queue.SchedulerInterval == 0 {
		c.Queue.SchedulerInterval = 5 * time.Second
	}
	if len(c.Worker.Queues) == 0 {
		c.Worker.Queues = domain.AllQueues()
	}
	if c.Worker.HeartbeatInterval == 0 {
		c.Worker.HeartbeatInterval = 10 * time.Second
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if c.Webhook.MaxResponseBody == 0 {
		c.Webhook.MaxResponseBody = 64 * 1024
	}
	if c.Webhook.UserAgent == "" {
		c.Webhook.UserAgent = "helpdesk-webhooks/1.0"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "helpdesk:queue:"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// ValidateAPIConfig checks the settings the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.validateShared()
}

// ValidateWorkerConfig checks the settings the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Queue.KeepCompleted < 0 || c.Queue.KeepFailed < 0 {
		return fmt.Errorf("queue keep_completed and keep_failed must not be negative")
	}

	if c.Worker.HeartbeatInterval >= c.Queue.StalledInterval {
		return fmt.Errorf("worker heartbeat_interval (%s) must be shorter than queue stalled_interval (%s)",
			c.Worker.HeartbeatInterval, c.Queue.StalledInterval)
	}

	if c.Worker.HealthPort != 0 && (c.Worker.HealthPort < MinPort || c.Worker.HealthPort > MaxPort) {
		return fmt.Errorf("invalid worker health port: %d (must be between %d and %d)", c.Worker.HealthPort, MinPort, MaxPort)
	}

	for _, q := range c.Worker.Queues {
		if !domain.IsKnownQueue(q) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownQueue, q)
		}
	}

	for q, n := range c.Worker.QueueConcurrency {
		if !domain.IsKnownQueue(q) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownQueue, q)
		}
		if n <= 0 {
			return fmt.Errorf("worker queue_concurrency for %s must be greater than 0", q)
		}
	}

	return c.validateShared()
}

// ConcurrencyFor returns the pool size for queue
func (c *Config) ConcurrencyFor(queue string) int {
	if n, ok := c.Worker.QueueConcurrency[queue]; ok {
		return n
	}
	return c.Worker.Concurrency
}

func (c *Config) validateShared() error {
	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}

	switch c.Queue.Notifier {
	case NotifierMemory:
		if c.Storage.Driver != StorageDriverMemory {
			return fmt.Errorf("memory notifier requires the memory storage driver")
		}
	case NotifierRedis:
		if c.Redis.Addr == "" && c.Redis.URL == "" {
			return fmt.Errorf("redis addr or url is required")
		}
	case NotifierRabbitMQ:
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	default:
		return fmt.Errorf("unsupported queue notifier: %q", c.Queue.Notifier)
	}

	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue max_attempts must be at least 1")
	}

	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be greater than 0")
	}

	return nil
}
