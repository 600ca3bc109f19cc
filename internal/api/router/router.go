package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/helpdesk-be/internal/api/handler"
	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	health := handler.NewHealthHandler(deps)
	r.GET("/health", health.Health)

	eventHandler := handler.NewEventHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)
	notificationHandler := handler.NewNotificationHandler(deps)

	v1 := r.Group("/api/v1")
	v1.Use(IdentityMiddleware())
	{
		// POST /api/v1/events - Publish a ticket event for asynchronous processing
		v1.POST("/events", eventHandler.PublishEvent)

		webhooks := v1.Group("/webhooks")
		webhooks.Use(RequireRole(domain.RoleAdmin, domain.RoleAgent))
		{
			webhooks.POST("", webhookHandler.CreateWebhook)
			webhooks.GET("", webhookHandler.ListWebhooks)
			webhooks.PUT("/:id", webhookHandler.UpdateWebhook)
			webhooks.DELETE("/:id", webhookHandler.DeleteWebhook)
			webhooks.GET("/:id/deliveries", webhookHandler.ListDeliveries)

			// POST /api/v1/webhooks/trigger - Synchronous delivery to every matching webhook
			webhooks.POST("/trigger", RequireRole(domain.RoleAdmin), webhookHandler.TriggerWebhooks)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.PATCH("/read-all", notificationHandler.MarkAllAsRead)
			notifications.PATCH("/:id/read", notificationHandler.MarkAsRead)
			notifications.DELETE("/:id", notificationHandler.DeleteNotification)
		}

		jobs := v1.Group("/jobs")
		jobs.Use(RequireRole(domain.RoleAdmin))
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.POST("/:job_id/retry", jobHandler.RetryJob)
		}
	}

	return r
}
