package memory

import (
	"context"
	"sort"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

type notificationRecord struct {
	n   domain.Notification
	seq int64
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *n
	c.Data = append([]byte(nil), n.Data...)
	s.notifications[n.ID] = &notificationRecord{n: c, seq: s.next()}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []*notificationRecord
	for _, rec := range s.notifications {
		if rec.n.UserID != userID || (unreadOnly && rec.n.IsRead) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, k int) bool {
		a, b := recs[i], recs[k]
		if !a.n.CreatedAt.Equal(b.n.CreatedAt) {
			return a.n.CreatedAt.After(b.n.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := []*domain.Notification{}
	for _, rec := range recs {
		c := rec.n
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) GetNotification(ctx context.Context, id, userID string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.notifications[id]
	if !ok || rec.n.UserID != userID {
		return nil, domain.ErrNotFound
	}
	c := rec.n
	return &c, nil
}

func (s *Store) MarkRead(ctx context.Context, id, userID string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.notifications[id]
	if !ok || rec.n.UserID != userID {
		return nil, domain.ErrNotFound
	}
	rec.n.IsRead = true
	c := rec.n
	return &c, nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, rec := range s.notifications {
		if rec.n.UserID == userID && !rec.n.IsRead {
			rec.n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (s *Store) DeleteNotification(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.notifications[id]
	if !ok || rec.n.UserID != userID {
		return domain.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}
