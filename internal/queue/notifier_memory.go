package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

const memorySignalBuffer = 1024

// ErrSignalBufferFull is returned when an in-process signal cannot be queued
var ErrSignalBufferFull = errors.New("signal buffer full")

// MemoryNotifier delivers signals over buffered channels inside one process
type MemoryNotifier struct {
	mu       sync.Mutex
	channels map[string]chan Signal
}

// NewMemoryNotifier creates an in-process notifier
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{channels: make(map[string]chan Signal)}
}

func (n *MemoryNotifier) channel(queue string) chan Signal {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.channels[queue]
	if !ok {
		ch = make(chan Signal, memorySignalBuffer)
		n.channels[queue] = ch
	}
	return ch
}

func (n *MemoryNotifier) send(queue string, body []byte) error {
	ch := n.channel(queue)
	sig := Signal{Body: body}
	sig.nack = func(requeue bool) error {
		if requeue {
			return n.send(queue, body)
		}
		return nil
	}

	select {
	case ch <- sig:
		return nil
	default:
		return ErrSignalBufferFull
	}
}

func (n *MemoryNotifier) Notify(ctx context.Context, msg domain.JobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}
	return n.send(msg.Queue, body)
}

func (n *MemoryNotifier) Signals(ctx context.Context, queue, consumerTag string) (<-chan Signal, error) {
	return n.channel(queue), nil
}

func (n *MemoryNotifier) Close() error {
	return nil
}
