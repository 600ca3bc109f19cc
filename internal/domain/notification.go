package domain

import (
	"encoding/json"
	"time"
)

// Notification types
const (
	NotificationTicketAssigned = "TICKET_ASSIGNED"
	NotificationTicketUpdated  = "TICKET_UPDATED"
	NotificationCommentAdded   = "COMMENT_ADDED"
	NotificationSLABreach      = "SLA_BREACH"
)

// IsKnownNotificationType reports whether t is a valid notification type
func IsKnownNotificationType(t string) bool {
	switch t {
	case NotificationTicketAssigned, NotificationTicketUpdated, NotificationCommentAdded, NotificationSLABreach:
		return true
	}
	return false
}

// Notification is owned by a single user
type Notification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    string          `json:"userId"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	IsRead    bool            `json:"isRead"`
	CreatedAt time.Time       `json:"createdAt"`
}
