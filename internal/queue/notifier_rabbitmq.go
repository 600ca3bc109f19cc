package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/shared/rabbitmq"
)

// RabbitMQNotifier publishes signals to one durable queue per job queue,
// routed by queue name on the configured exchange.
type RabbitMQNotifier struct {
	client   *rabbitmq.Client
	prefetch int
	logger   *slog.Logger
}

// NewRabbitMQNotifier wraps a connected client
func NewRabbitMQNotifier(client *rabbitmq.Client, prefetch int, logger *slog.Logger) *RabbitMQNotifier {
	return &RabbitMQNotifier{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (n *RabbitMQNotifier) Notify(ctx context.Context, msg domain.JobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}
	return n.client.PublishWithRetry(ctx, msg.Queue, body)
}

func (n *RabbitMQNotifier) Signals(ctx context.Context, queue, consumerTag string) (<-chan Signal, error) {
	deliveries, ch, err := n.client.Consume(queue, consumerTag, n.prefetch)
	if err != nil {
		return nil, err
	}

	out := make(chan Signal)
	go func() {
		defer close(out)
		defer func() {
			if err := ch.Close(); err != nil && err != amqp.ErrClosed {
				n.logger.Warn("Failed to close consumer channel",
					slog.String("queue", queue),
					slog.String("error", err.Error()),
				)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					n.logger.Warn("RabbitMQ delivery channel closed", slog.String("queue", queue))
					return
				}
				sig := Signal{
					Body: d.Body,
					ack:  func() error { return d.Ack(false) },
					nack: func(requeue bool) error { return d.Nack(false, requeue) },
				}
				select {
				case out <- sig:
				case <-ctx.Done():
					// hand the message back to the broker for another consumer
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()

	return out, nil
}

func (n *RabbitMQNotifier) Close() error {
	return n.client.Close()
}
