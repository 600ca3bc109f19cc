package queue

import (
	"context"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// Notifier carries wake-up signals telling workers a job is ready. Signals
// are hints: the job store stays the source of truth and workers also poll.
type Notifier interface {
	Notify(ctx context.Context, msg domain.JobMessage) error
	// Signals starts consuming queue. The channel closes when ctx ends or
	// the transport goes away.
	Signals(ctx context.Context, queue, consumerTag string) (<-chan Signal, error)
	Close() error
}

// Signal is one received wake-up message. Exactly one of Ack or Nack must be
// called once the job outcome is recorded.
type Signal struct {
	Body []byte
	ack  func() error
	nack func(requeue bool) error
}

func (s Signal) Ack() error {
	if s.ack == nil {
		return nil
	}
	return s.ack()
}

func (s Signal) Nack(requeue bool) error {
	if s.nack == nil {
		return nil
	}
	return s.nack(requeue)
}
