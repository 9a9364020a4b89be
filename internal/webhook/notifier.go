// Package webhook implements best-effort delivery notification of
// completed tasks, and DNS pre-validation of webhook targets at admission
// time.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sigrelay/internal/apperrors"
	"sigrelay/internal/logging"
	"sigrelay/internal/metrics"
	"sigrelay/internal/task"
)

// DefaultTimeout bounds a single notification attempt, per spec.md §4.7's
// "≤ 1 second recommended".
const DefaultTimeout = 1 * time.Second

// Notifier delivers a fire-and-log POST of the sanitized task to its
// webhook_url. Delivery is at-most-once and best-effort: any transport
// error or non-200 response is logged and swallowed, never propagated to
// the caller, so a flaky webhook target can never block the queue worker.
type Notifier struct {
	client  *http.Client
	logger  *logging.ComponentLogger
	timeout time.Duration
}

// NewNotifier builds a Notifier with the given timeout (DefaultTimeout if
// zero).
func NewNotifier(timeout time.Duration, logger *logging.ComponentLogger) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewComponentLogger(logging.ComponentLoggerConfig{ComponentName: "Webhook", Category: "WEBHOOK"})
	}
	return &Notifier{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		timeout: timeout,
	}
}

// Notify POSTs t's sanitized JSON view to t.WebhookURL. A no-op if
// WebhookURL is empty. Errors are logged internally; Notify never returns
// an error the caller must handle, matching spec.md §4.7's "logged and
// swallowed" policy — the worker still acks the task regardless of
// delivery outcome.
func (n *Notifier) Notify(ctx context.Context, t *task.Task) {
	if t.WebhookURL == "" {
		return
	}

	body, err := json.Marshal(t.Sanitize())
	if err != nil {
		n.logger.Error("failed to marshal task %s for webhook: %v", t.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logFailure(t, &apperrors.WebhookDeliveryFailedError{URL: t.WebhookURL, Err: err})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logFailure(t, &apperrors.WebhookDeliveryFailedError{URL: t.WebhookURL, Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logFailure(t, &apperrors.WebhookDeliveryFailedError{URL: t.WebhookURL, Err: statusError(resp.StatusCode)})
		return
	}

	metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
	n.logger.Info("delivered webhook for task %s to %s", t.ID, t.WebhookURL)
}

func (n *Notifier) logFailure(t *task.Task, err error) {
	metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
	n.logger.Warn("webhook delivery failed for task %s: %v", t.ID, err)
}

type statusError int

func (s statusError) Error() string {
	return fmt.Sprintf("non-200 response: %d", int(s))
}
