package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

type notificationRow struct {
	ID        string          `db:"id"`
	Type      string          `db:"type"`
	UserID    string          `db:"user_id"`
	Title     string          `db:"title"`
	Message   string          `db:"message"`
	Data      json.RawMessage `db:"data"`
	IsRead    bool            `db:"is_read"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r *notificationRow) toDomain() *domain.Notification {
	return &domain.Notification{
		ID:        r.ID,
		Type:      r.Type,
		UserID:    r.UserID,
		Title:     r.Title,
		Message:   r.Message,
		Data:      r.Data,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt,
	}
}

const notificationColumns = `id, type, user_id, title, message, data, is_read, created_at`

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	data := n.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.Type, n.UserID, n.Title, n.Message, []byte(data), n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]*domain.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetNotification(ctx context.Context, id, userID string) (*domain.Notification, error) {
	var row notificationRow
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 AND user_id = $2`

	if err := s.db.GetContext(ctx, &row, query, id, userID); err != nil {
		return nil, notFoundOr(err, "get notification")
	}
	return row.toDomain(), nil
}

func (s *Store) MarkRead(ctx context.Context, id, userID string) (*domain.Notification, error) {
	query := `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING ` + notificationColumns

	var row notificationRow
	if err := s.db.GetContext(ctx, &row, query, id, userID); err != nil {
		return nil, notFoundOr(err, "mark notification read")
	}
	return row.toDomain(), nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteNotification(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return checkAffected(result)
}
