package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Amsmoox/tradebot/internal/model"
	"github.com/Amsmoox/tradebot/internal/resilience"
)

// Webhook posts the whole batch as one JSON payload to a configured URL.
// Transient delivery failures (5xx, connection errors) are retried with
// backoff before the batch is reported as failed.
type Webhook struct {
	url    string
	client *http.Client
	retry  resilience.RetryConfig
}

// NewWebhook creates a webhook notifier posting to url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.DefaultRetryConfig(),
	}
}

type webhookPayload struct {
	Signals   []model.Signal `json:"signals"`
	Count     int            `json:"count"`
	Timestamp time.Time      `json:"timestamp"`
}

func (w *Webhook) Notify(ctx context.Context, signals []model.Signal) error {
	payload, err := json.Marshal(webhookPayload{
		Signals:   signals,
		Count:     len(signals),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal webhook payload")
	}

	cfg := w.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(w.url, "webhook_post")
	}
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return w.post(ctx, payload)
	})
}

func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		statusErr := eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}
	return nil
}
