// Package notify delivers terminal job outcomes to caller-supplied callback
// URLs. Delivery is best effort: the job's status is already persisted by the
// time a callback is attempted, so failures here are logged and swallowed.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single callback delivery attempt
const DefaultTimeout = 10 * time.Second

// Payload is the JSON body POSTed to the callback URL
type Payload struct {
	JobID          string          `json:"job_id"`
	Status         string          `json:"status"`
	Output         json.RawMessage `json:"output"`
	Error          string          `json:"error,omitempty"`
	CallbackParams json.RawMessage `json:"callback_params"`
}

// Notifier sends one-shot callback notifications
type Notifier struct {
	client *http.Client
	logger *slog.Logger
}

// NewNotifier creates a notifier with the given delivery timeout
func NewNotifier(timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Notifier{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify POSTs the payload to callbackURL exactly once. An empty URL is a
// deliberate no-op. Network errors and non-2xx responses never propagate;
// callback delivery must not affect the job itself.
func (n *Notifier) Notify(ctx context.Context, callbackURL string, payload Payload) {
	if callbackURL == "" {
		n.logger.Debug("No callback URL set, skipping notification",
			slog.String("job_id", payload.JobID),
		)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("Failed to marshal callback payload",
			slog.String("job_id", payload.JobID),
			slog.Any("error", err),
		)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("Failed to build callback request",
			slog.String("job_id", payload.JobID),
			slog.String("callback_url", callbackURL),
			slog.Any("error", err),
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Callback delivery failed",
			slog.String("job_id", payload.JobID),
			slog.String("callback_url", callbackURL),
			slog.Any("error", err),
		)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warn("Callback endpoint returned non-2xx status",
			slog.String("job_id", payload.JobID),
			slog.String("callback_url", callbackURL),
			slog.Int("status_code", resp.StatusCode),
		)
		return
	}

	n.logger.Info("Callback delivered",
		slog.String("job_id", payload.JobID),
		slog.String("callback_url", callbackURL),
		slog.String("status", payload.Status),
	)
}
