// Package notify delivers human-readable event summaries.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// Notifier sends one text message. Delivery is best effort; callers must not
// fail the pipeline on notification errors.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Noop discards every message.
type Noop struct{}

func (Noop) Notify(ctx context.Context, text string) error { return nil }

// Discord posts messages to a webhook URL.
type Discord struct {
	webhookURL string
	client     *http.Client
}

// NewDiscord creates a webhook sink.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Compile-time interface checks.
var (
	_ Notifier = (*Discord)(nil)
	_ Notifier = Noop{}
)

func (d *Discord) Notify(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
