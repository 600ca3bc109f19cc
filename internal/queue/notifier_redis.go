package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// RedisNotifier pushes signals onto one Redis list per queue (LPUSH) and
// pops them from the tail (BRPOP). Lists have no delivery acknowledgement;
// a requeueing Nack pushes the body back.
type RedisNotifier struct {
	client      *goredis.Client
	keyPrefix   string
	pollTimeout time.Duration
	logger      *slog.Logger
}

// NewRedisNotifier wraps a connected client
func NewRedisNotifier(client *goredis.Client, keyPrefix string, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:      client,
		keyPrefix:   keyPrefix,
		pollTimeout: time.Second,
		logger:      logger,
	}
}

// Key returns the list key for queue
func (n *RedisNotifier) Key(queue string) string {
	return n.keyPrefix + queue
}

func (n *RedisNotifier) Notify(ctx context.Context, msg domain.JobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}
	if err := n.client.LPush(ctx, n.Key(msg.Queue), body).Err(); err != nil {
		return fmt.Errorf("failed to push job message: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Signals(ctx context.Context, queue, consumerTag string) (<-chan Signal, error) {
	key := n.Key(queue)
	out := make(chan Signal)

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}

			// short timeout so shutdown is noticed promptly
			result, err := n.client.BRPop(ctx, n.pollTimeout, key).Result()
			if err != nil {
				if errors.Is(err, goredis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				n.logger.Warn("Redis dequeue failed, retrying",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			// result is [key, value]
			if len(result) < 2 {
				continue
			}
			body := []byte(result[1])
			sig := Signal{
				Body: body,
				nack: func(requeue bool) error {
					if !requeue {
						return nil
					}
					return n.client.RPush(context.Background(), key, body).Err()
				},
			}

			select {
			case out <- sig:
			case <-ctx.Done():
				_ = sig.Nack(true)
				return
			}
		}
	}()

	return out, nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
