package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"meshinv/internal/service"
)

// Slack delivery defaults
const (
	DefaultSlackAttempts = 3
	DefaultSlackTimeout  = 10 * time.Second
	DefaultSlackBackoff  = time.Second
)

// SlackConfig configures a Slack incoming-webhook sink
type SlackConfig struct {
	WebhookURL string
	Attempts   int
	Timeout    time.Duration
	Backoff    time.Duration
}

// DeliveryResult describes one webhook delivery
type DeliveryResult struct {
	Attempts   int
	StatusCode int
	Err        error
}

// OK reports whether the webhook accepted the message
func (r DeliveryResult) OK() bool {
	return r.Err == nil
}

// SlackSink posts notifications to a Slack incoming webhook
type SlackSink struct {
	client   *resty.Client
	url      string
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// slackMessage is the incoming-webhook payload
type slackMessage struct {
	Text string `json:"text"`
}

// NewSlackSink creates a webhook sink
func NewSlackSink(cfg SlackConfig, logger *zap.Logger) (*SlackSink, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("slack webhook url is required")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultSlackAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSlackTimeout
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &SlackSink{
		client:   client,
		url:      cfg.WebhookURL,
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
		logger:   logger.Named("slack"),
	}, nil
}

// Notify implements service.Notifier
func (s *SlackSink) Notify(ctx context.Context, n service.Notification) error {
	result := s.Deliver(ctx, n)
	if !result.OK() {
		return fmt.Errorf("slack delivery failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}

// Deliver posts n, retrying transport errors, 429 and 5xx responses up to
// the configured attempt count. Other 4xx responses are not retried.
func (s *SlackSink) Deliver(ctx context.Context, n service.Notification) DeliveryResult {
	body := slackMessage{Text: FormatSlackText(n)}

	var result DeliveryResult
	for result.Attempts < s.attempts {
		if result.Attempts > 0 && s.backoff > 0 {
			select {
			case <-ctx.Done():
				result.Err = ctx.Err()
				return result
			case <-time.After(s.backoff * time.Duration(result.Attempts)):
			}
		}
		result.Attempts++

		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(body).
			Post(s.url)
		if err != nil {
			result.StatusCode, result.Err = 0, err
			if ctx.Err() != nil {
				return result
			}
			s.logger.Debug("slack webhook request failed", zap.Int("attempt", result.Attempts), zap.Error(err))
			continue
		}

		result.StatusCode = resp.StatusCode()
		if !resp.IsError() {
			result.Err = nil
			return result
		}
		result.Err = fmt.Errorf("webhook returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
		if !retryable(resp.StatusCode()) {
			return result
		}
		s.logger.Debug("slack webhook rejected message",
			zap.Int("attempt", result.Attempts), zap.Int("status_code", result.StatusCode))
	}
	return result
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// FormatSlackText renders a notification as Slack mrkdwn
func FormatSlackText(n service.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", slackTitle(n))
	b.WriteString("\n")
	b.WriteString(n.Message)
	for _, o := range n.Objects {
		fmt.Fprintf(&b, "\n• %s `%s` (%s)", o.Type, o.ID, o.Label)
	}
	return b.String()
}

// slackTitle stays source neutral: reconcilers and the allocator share kinds
func slackTitle(n service.Notification) string {
	switch n.Kind {
	case service.NotificationCreated:
		return "New object created"
	case service.NotificationUpdated:
		return "Object updated"
	case service.NotificationDeactivated:
		return "Object deactivated"
	case service.NotificationDuplicate:
		return "Possible duplicate objects detected"
	case service.NotificationWarning:
		return "Needs attention"
	}
	return "Inventory change"
}
