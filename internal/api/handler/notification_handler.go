package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/helpdesk-be/internal/api/dto"
	"github.com/cuongbtq/helpdesk-be/internal/notification"
)

// NotificationHandler serves the caller's own notifications
type NotificationHandler struct {
	logger        *slog.Logger
	notifications *notification.Service
}

func NewNotificationHandler(deps *Dependencies) *NotificationHandler {
	return &NotificationHandler{
		logger:        deps.Logger,
		notifications: deps.Notifications,
	}
}

// ListNotifications handles GET /api/v1/notifications
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	var req dto.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	items, err := h.notifications.List(c.Request.Context(), IdentityFrom(c).UserID, req.UnreadOnly)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, dto.ListNotificationsResponse{Notifications: items})
}

// MarkAsRead handles PATCH /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	n, err := h.notifications.MarkAsRead(c.Request.Context(), c.Param("id"), IdentityFrom(c).UserID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to mark notification as read")
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllAsRead handles PATCH /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllAsRead(c.Request.Context(), IdentityFrom(c).UserID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to mark notifications as read")
		return
	}
	c.JSON(http.StatusOK, dto.MarkAllReadResponse{Updated: n})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), c.Param("id"), IdentityFrom(c).UserID); err != nil {
		respondError(c, h.logger, err, "Failed to delete notification")
		return
	}
	c.Status(http.StatusNoContent)
}
