// Package notification manages per-user in-app notifications.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

// CreateInput describes a notification to store
type CreateInput struct {
	Type    string
	UserID  string
	Title   string
	Message string
	Data    map[string]any
}

// Service owns notification reads and writes. Every read and mutation is
// scoped to the owning user.
type Service struct {
	store  storage.NotificationStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a notification service
func NewService(store storage.NotificationStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Notification, error) {
	if !domain.IsKnownNotificationType(in.Type) {
		return nil, fmt.Errorf("%w: unknown notification type %q", domain.ErrValidation, in.Type)
	}
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}

	data := json.RawMessage(`{}`)
	if in.Data != nil {
		raw, err := json.Marshal(in.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		data = raw
	}

	n := &domain.Notification{
		ID:        uuid.NewString(),
		Type:      in.Type,
		UserID:    in.UserID,
		Title:     in.Title,
		Message:   in.Message,
		Data:      data,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	s.logger.Debug("Notification created",
		slog.String("notification_id", n.ID),
		slog.String("user_id", n.UserID),
		slog.String("type", n.Type),
	)
	return n, nil
}

// List returns the user's notifications, newest first
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly)
}

func (s *Service) MarkAsRead(ctx context.Context, id, userID string) (*domain.Notification, error) {
	return s.store.MarkRead(ctx, id, userID)
}

// MarkAllAsRead marks every unread notification of userID and returns how many changed
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.store.DeleteNotification(ctx, id, userID)
}
