// Package webhook signs and delivers tenant webhooks and manages the
// subscription registry.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
	"github.com/cuongbtq/helpdesk-be/internal/metrics"
	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

// Outbound headers besides the signature
const (
	EventHeader   = "X-Webhook-Event"
	AttemptHeader = "X-Webhook-Delivery-Attempt"
)

// DispatcherConfig holds outbound HTTP settings
type DispatcherConfig struct {
	Timeout         time.Duration
	MaxResponseBody int
	// RateLimit is requests per second across all targets; 0 disables limiting
	RateLimit float64
	RateBurst int
	UserAgent string
}

// Dispatcher performs single-shot signed deliveries and records every attempt
type Dispatcher struct {
	webhooks   storage.WebhookStore
	deliveries storage.DeliveryStore
	client     *http.Client
	limiter    *rate.Limiter
	cfg        DispatcherConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewDispatcher creates a dispatcher with its own HTTP client
func NewDispatcher(webhooks storage.WebhookStore, deliveries storage.DeliveryStore, cfg DispatcherConfig, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = 64 * 1024
	}

	d := &Dispatcher{
		webhooks:   webhooks,
		deliveries: deliveries,
		client:     &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return d
}

// TriggerWebhooks delivers event to every active subscription of tenantID
// that lists it. Deliveries run concurrently and are isolated from each
// other; each writes exactly one delivery row. Results follow subscription order.
func (d *Dispatcher) TriggerWebhooks(ctx context.Context, tenantID string, event domain.EventType, payload map[string]any) ([]domain.DispatchResult, error) {
	subs, err := d.webhooks.FindActiveWebhooks(ctx, tenantID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve webhooks: %w", err)
	}
	if len(subs) == 0 {
		return []domain.DispatchResult{}, nil
	}

	// serialize once so every target receives and signs identical bytes
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	results := make([]domain.DispatchResult, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := d.deliverBody(ctx, sub, event, body, 1)
			if err != nil {
				d.logger.Error("Failed to record webhook delivery",
					slog.String("webhook_id", sub.ID),
					slog.String("error", err.Error()),
				)
				result.Error = err.Error()
			}
			results[i] = result
		}()
	}
	wg.Wait()

	d.logger.Info("Webhooks triggered",
		slog.String("tenant_id", tenantID),
		slog.String("event", string(event)),
		slog.Int("webhooks", len(subs)),
	)
	return results, nil
}

// Deliver sends event to one subscription and records the attempt. The
// error is non-nil only when the delivery row could not be written; HTTP
// failures are reported through the result.
func (d *Dispatcher) Deliver(ctx context.Context, sub *domain.WebhookSubscription, event domain.EventType, payload map[string]any, attempt int) (domain.DispatchResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.DispatchResult{WebhookID: sub.ID, Error: err.Error()}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return d.deliverBody(ctx, sub, event, body, attempt)
}

func (d *Dispatcher) deliverBody(ctx context.Context, sub *domain.WebhookSubscription, event domain.EventType, body []byte, attempt int) (domain.DispatchResult, error) {
	start := time.Now()
	statusCode, response, sendErr := d.send(ctx, sub, event, body, attempt)
	elapsed := time.Since(start)

	delivery := &domain.WebhookDelivery{
		ID:        uuid.NewString(),
		WebhookID: sub.ID,
		Event:     event,
		Payload:   body,
		Attempts:  attempt,
		CreatedAt: d.now(),
	}
	result := domain.DispatchResult{WebhookID: sub.ID, DeliveryID: delivery.ID}

	if sendErr != nil {
		msg := sendErr.Error()
		delivery.ResponseBody = &msg
		result.Error = msg
	} else {
		delivered := d.now()
		delivery.StatusCode = &statusCode
		delivery.ResponseBody = &response
		delivery.DeliveredAt = &delivered
		delivery.Success = statusCode >= 200 && statusCode < 300
		result.StatusCode = statusCode
		result.Success = delivery.Success
		if !delivery.Success {
			result.Error = fmt.Sprintf("webhook responded with status %d", statusCode)
		}
	}

	d.metrics.WebhookDelivered(string(event), result.Success, elapsed)

	logger := d.logger.With(
		slog.String("webhook_id", sub.ID),
		slog.String("tenant_id", sub.TenantID),
		slog.String("event", string(event)),
		slog.Int("attempt", attempt),
		slog.Duration("latency", elapsed),
	)
	if result.Success {
		logger.Info("Webhook delivered", slog.Int("status_code", statusCode))
	} else {
		logger.Warn("Webhook delivery failed", slog.String("error", result.Error))
	}

	if err := d.deliveries.CreateDelivery(ctx, delivery); err != nil {
		return result, fmt.Errorf("failed to record delivery: %w", err)
	}
	return result, nil
}

// send performs the POST. A nil error means a response was received,
// whatever its status.
func (d *Dispatcher) send(ctx context.Context, sub *domain.WebhookSubscription, event domain.EventType, body []byte, attempt int) (int, string, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return 0, "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(body, sub.Secret))
	req.Header.Set(EventHeader, string(event))
	req.Header.Set(AttemptHeader, strconv.Itoa(attempt))
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	// +1 to detect truncation
	buf := make([]byte, d.cfg.MaxResponseBody+1)
	n, readErr := io.ReadFull(resp.Body, buf)
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		d.logger.Warn("Failed to read webhook response body",
			slog.String("webhook_id", sub.ID),
			slog.String("error", readErr.Error()),
		)
	}
	truncated := n > d.cfg.MaxResponseBody
	if truncated {
		n = d.cfg.MaxResponseBody
	}
	return resp.StatusCode, responseText(buf[:n], truncated), nil
}

// responseText makes a response body storable in a TEXT column. A rune split
// by truncation is dropped; invalid bytes become U+FFFD and NULs are removed.
func responseText(b []byte, truncated bool) string {
	if truncated {
		for i := 0; i < utf8.UTFMax-1 && len(b) > 0; i++ {
			if r, size := utf8.DecodeLastRune(b); r != utf8.RuneError || size != 1 {
				break
			}
			b = b[:len(b)-1]
		}
	}
	text := strings.ToValidUTF8(string(b), string(utf8.RuneError))
	return strings.ReplaceAll(text, "\x00", "")
}
