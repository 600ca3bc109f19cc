package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobEnqueued("ticket", "TICKET_CREATED")
		m.JobProcessed("ticket", OutcomeCompleted, time.Second)
		m.JobsStalled("ticket", 2)
		m.SetQueueJobs("ticket", "waiting", 1)
		m.WebhookDelivered("TICKET_CREATED", true, time.Millisecond)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.JobProcessed("webhook", OutcomeRetried, 10*time.Millisecond)
	m.JobProcessed("webhook", OutcomeRetried, 10*time.Millisecond)
	m.WebhookDelivered("TICKET_CREATED", false, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsProcessed.WithLabelValues("webhook", OutcomeRetried)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookDeliveries.WithLabelValues("TICKET_CREATED", "failure")))
}

func TestMetrics_GinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `http_requests_total{method="GET",path="/ping",status="204"} 1`))
}
