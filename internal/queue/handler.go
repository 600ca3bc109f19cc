package queue

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// Handler runs one attempt of a job. A nil error completes the job; any
// error is retried unless it is permanent or the attempt cap is reached.
type Handler interface {
	Handle(ctx context.Context, job *domain.Job) error
}

// HandlerFunc adapts a plain function to Handler
type HandlerFunc func(ctx context.Context, job *domain.Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *domain.Job) error {
	return f(ctx, job)
}

// Mux routes jobs to handlers by their type tag
type Mux struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewMux creates an empty Mux
func NewMux(logger *slog.Logger) *Mux {
	return &Mux{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds h to jobType, replacing any previous registration
func (m *Mux) Register(jobType string, h Handler) {
	m.handlers[jobType] = h
}

// RegisterFunc binds a function to jobType
func (m *Mux) RegisterFunc(jobType string, f func(ctx context.Context, job *domain.Job) error) {
	m.Register(jobType, HandlerFunc(f))
}

// Handle dispatches job. Unknown types are logged and treated as done.
func (m *Mux) Handle(ctx context.Context, job *domain.Job) error {
	h, ok := m.handlers[job.Type]
	if !ok {
		m.logger.Warn("Unknown job type, skipping",
			slog.String("job_id", job.ID),
			slog.String("job_type", job.Type),
			slog.String("queue", job.Queue),
		)
		return nil
	}
	return h.Handle(ctx, job)
}
