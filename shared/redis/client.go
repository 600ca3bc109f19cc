package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	URL      string // takes precedence over Addr when set
	Password string
	DB       int
}

// NewClient builds a go-redis client and verifies it with PING
func NewClient(config *Config, logger *slog.Logger) (*goredis.Client, error) {
	var opts *goredis.Options
	if config.URL != "" {
		parsed, err := goredis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}
	}

	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	logger.Info("Connected to Redis", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return rdb, nil
}
