package dto

import "github.com/cuongbtq/helpdesk-be/internal/domain"

type ListNotificationsRequest struct {
	UnreadOnly bool `form:"unread_only"`
}

type ListNotificationsResponse struct {
	Notifications []*domain.Notification `json:"notifications"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
