package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/helpdesk-be/internal/api/dto"
	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/webhook"
)

// WebhookHandler manages the caller tenant's webhook subscriptions
type WebhookHandler struct {
	logger     *slog.Logger
	registry   *webhook.Registry
	dispatcher *webhook.Dispatcher
}

func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{
		logger:     deps.Logger,
		registry:   deps.Webhooks,
		dispatcher: deps.Dispatcher,
	}
}

// CreateWebhook handles POST /api/v1/webhooks
func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	sub, err := h.registry.Create(c.Request.Context(), IdentityFrom(c).TenantID, webhook.CreateInput{
		URL:    req.URL,
		Events: req.Events,
		Secret: req.Secret,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to create webhook")
		return
	}

	c.JSON(http.StatusCreated, dto.CreatedWebhookDTO{
		WebhookDTO: dto.NewWebhookDTO(sub),
		Secret:     sub.Secret,
	})
}

// ListWebhooks handles GET /api/v1/webhooks
func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	subs, err := h.registry.List(c.Request.Context(), IdentityFrom(c).TenantID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list webhooks")
		return
	}

	out := make([]dto.WebhookDTO, len(subs))
	for i, sub := range subs {
		out[i] = dto.NewWebhookDTO(sub)
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": out})
}

// UpdateWebhook handles PUT /api/v1/webhooks/:id
func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	var req dto.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	sub, err := h.registry.Update(c.Request.Context(), IdentityFrom(c).TenantID, c.Param("id"), domain.WebhookUpdate{
		URL:      req.URL,
		Events:   req.Events,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to update webhook")
		return
	}

	c.JSON(http.StatusOK, dto.NewWebhookDTO(sub))
}

// DeleteWebhook handles DELETE /api/v1/webhooks/:id
func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	if err := h.registry.Delete(c.Request.Context(), IdentityFrom(c).TenantID, c.Param("id")); err != nil {
		respondError(c, h.logger, err, "Failed to delete webhook")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDeliveries handles GET /api/v1/webhooks/:id/deliveries
func (h *WebhookHandler) ListDeliveries(c *gin.Context) {
	var req dto.ListDeliveriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultPageSize
	}
	if req.Limit > maxPageSize {
		req.Limit = maxPageSize
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		badRequest(c, "Invalid cursor", err)
		return
	}

	deliveries, err := h.registry.Deliveries(c.Request.Context(), IdentityFrom(c).TenantID, c.Param("id"), cursor, req.Limit+1)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list deliveries")
		return
	}

	resp := dto.ListDeliveriesResponse{Deliveries: deliveries}
	if len(deliveries) > req.Limit {
		resp.Deliveries = deliveries[:req.Limit]
		last := resp.Deliveries[req.Limit-1]
		resp.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}
	c.JSON(http.StatusOK, resp)
}

// TriggerWebhooks handles POST /api/v1/webhooks/trigger
// Delivers an event synchronously to every matching subscription of the
// caller's tenant and returns the per-webhook results.
func (h *WebhookHandler) TriggerWebhooks(c *gin.Context) {
	var req dto.TriggerWebhooksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if !req.Event.Valid() {
		badRequest(c, "Invalid request body", fmt.Errorf("%w: unknown event %q", domain.ErrValidation, req.Event))
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}

	results, err := h.dispatcher.TriggerWebhooks(c.Request.Context(), IdentityFrom(c).TenantID, req.Event, req.Payload)
	if err != nil {
		respondError(c, h.logger, err, "Failed to trigger webhooks")
		return
	}
	c.JSON(http.StatusOK, dto.TriggerWebhooksResponse{Results: results})
}
