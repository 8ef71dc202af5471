// Package notify delivers lifecycle webhooks to a configured endpoint.
package notify

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 10 * time.Second

// Webhook posts JSON payloads to a single endpoint.
type Webhook struct {
	url    string
	http   *http.Client
	logger *logrus.Logger
}

// NewWebhook creates a webhook sender. An empty URL disables delivery.
func NewWebhook(url string, logger *logrus.Logger) *Webhook {
	return &Webhook{
		url:    url,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// Enabled reports whether an endpoint is configured.
func (w *Webhook) Enabled() bool { return w.url != "" }

// Send posts the raw JSON payload to url, falling back to the configured
// default endpoint when url is empty. Transport failures and 5xx responses
// are transient; a 4xx means the payload will never be accepted.
//
// The returned transient flag tells the caller whether a retry can help.
func (w *Webhook) Send(ctx context.Context, url string, payload []byte) (transient bool, err error) {
	if url == "" {
		url = w.url
	}
	if url == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, errors.Wrap(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return true, errors.Wrap(err, "webhook delivery failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, errors.Errorf("webhook endpoint returned %d", resp.StatusCode)
	default:
		return false, errors.Errorf("webhook endpoint rejected payload with %d", resp.StatusCode)
	}
}
