// Package notify delivers trade alerts from the live engine. Delivery is
// fire-and-forget: failures are surfaced as errors for the engine to log,
// never to abort the trading loop on.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// Notifier pushes a titled message to some channel.
type Notifier interface {
	SendMessage(title string, content string) error
}

// WebhookNotifier POSTs messages as JSON to a webhook URL. An empty URL
// disables delivery silently.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

var _ Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// SendMessage implements Notifier.
func (n *WebhookNotifier) SendMessage(title string, content string) error {
	if n.webhookURL == "" {
		return nil
	}

	data, err := json.Marshal(webhookPayload{
		Title:   title,
		Content: content,
		SentAt:  time.Now(),
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotifyFailed, "failed to encode notification", err)
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotifyFailed, "failed to post notification", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Newf(errors.ErrCodeNotifyFailed, "webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// LogNotifier writes notifications to the logger. Used when no webhook is
// configured so live runs still surface their signals.
type LogNotifier struct {
	logger *logger.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &LogNotifier{logger: log}
}

// SendMessage implements Notifier.
func (n *LogNotifier) SendMessage(title string, content string) error {
	n.logger.Info("notification",
		zap.String("title", title),
		zap.String("content", content))

	return nil
}
