package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers a notification to a webhook target.
type Notifier interface {
	Notify(ctx context.Context, webhookURL string, note Notification) error
}

// DeliveryError reports an exhausted retry budget. The scheduler records it
// on the rule; it never deactivates the rule.
type DeliveryError struct {
	Attempts   int
	LastStatus int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("webhook delivery failed after %d attempts: status %d", e.Attempts, e.LastStatus)
	}
	return fmt.Sprintf("webhook delivery failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// WebhookOptions tune the dispatcher.
type WebhookOptions struct {
	Timeout   time.Duration
	Attempts  int
	Backoff   time.Duration
	UserAgent string
}

// WebhookNotifier POSTs notifications as JSON with a bounded timeout and a
// fixed retry budget with linear backoff.
type WebhookNotifier struct {
	opts   WebhookOptions
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier constructs the webhook dispatcher.
func NewWebhookNotifier(opts WebhookOptions, logger zerolog.Logger) *WebhookNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}

	return &WebhookNotifier{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "alert_webhook").Logger(),
	}
}

// Notify POSTs the payload. Any 2xx response counts as delivered; anything
// else is retried until the budget is spent, then wrapped in DeliveryError.
func (n *WebhookNotifier) Notify(ctx context.Context, webhookURL string, note Notification) error {
	if strings.TrimSpace(webhookURL) == "" {
		return fmt.Errorf("webhook url is empty")
	}

	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var (
		lastStatus int
		lastErr    error
	)
	for attempt := 1; attempt <= n.opts.Attempts; attempt++ {
		if attempt > 1 && n.opts.Backoff > 0 {
			timer := time.NewTimer(time.Duration(attempt-1) * n.opts.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		status, reqErr := n.post(ctx, webhookURL, body)
		if reqErr == nil && status >= 200 && status < 300 {
			n.logger.Info().
				Str("rule_id", note.RuleID).
				Int("opportunities", len(note.Opportunities)).
				Int("attempt", attempt).
				Msg("alert delivered")
			return nil
		}

		lastStatus = status
		lastErr = reqErr
		n.logger.Warn().
			Str("rule_id", note.RuleID).
			Int("attempt", attempt).
			Int("status", status).
			Err(reqErr).
			Msg("webhook attempt failed")
	}

	return &DeliveryError{Attempts: n.opts.Attempts, LastStatus: lastStatus, Err: lastErr}
}

func (n *WebhookNotifier) post(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(n.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}

var _ Notifier = (*WebhookNotifier)(nil)
