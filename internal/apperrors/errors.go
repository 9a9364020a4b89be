// Package apperrors defines sigrelay's typed error taxonomy.
//
// Each error category is a distinct Go type implementing error, so callers
// can classify failures with errors.As instead of string matching. The
// categories that wrap an underlying cause (UpstreamUnreachable,
// WebhookDeliveryFailed, QueueWriteFailed) also implement Unwrap, so the
// chain to that cause is preserved.
package apperrors

import (
	"errors"
	"fmt"
)

// ConfigInvalidError indicates missing required configuration or a
// persistent-path/queue-type mismatch detected at startup. Fatal.
type ConfigInvalidError struct {
	Field   string
	Message string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("config invalid: %s: %s", e.Field, e.Message)
}

// UpstreamUnreachableError wraps a transport-level failure reaching the
// upstream signing service, or a rate window that was not open. Treated as
// BUSY by the dispatcher; never counted against a task's retry budget.
type UpstreamUnreachableError struct {
	Err error
}

func (e *UpstreamUnreachableError) Error() string {
	if e.Err == nil {
		return "upstream unreachable"
	}
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

func (e *UpstreamUnreachableError) Unwrap() error { return e.Err }

// UpstreamRejectedError wraps a non-200 response from the upstream signing
// service. Counted against the task's retry budget.
type UpstreamRejectedError struct {
	StatusCode int
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("upstream rejected: status %d", e.StatusCode)
}

// WebhookTargetInvalidError indicates a webhook URL failed DNS
// pre-validation or used an unsupported scheme. Surfaced to the client as
// HTTP 422 at admission time.
type WebhookTargetInvalidError struct {
	URL    string
	Reason string
}

func (e *WebhookTargetInvalidError) Error() string {
	return fmt.Sprintf("webhook target invalid: %s: %s", e.URL, e.Reason)
}

// WebhookDeliveryFailedError wraps a transport error or non-200 response
// while notifying a webhook target. Logged and swallowed; the task is still
// acked.
type WebhookDeliveryFailedError struct {
	URL string
	Err error
}

func (e *WebhookDeliveryFailedError) Error() string {
	return fmt.Sprintf("webhook delivery failed: %s: %v", e.URL, e.Err)
}

func (e *WebhookDeliveryFailedError) Unwrap() error { return e.Err }

// QueueWriteFailedError wraps a durable-store write failure on Add.
// Surfaced to ingress as 5xx; the task is not acknowledged as enqueued.
type QueueWriteFailedError struct {
	Err error
}

func (e *QueueWriteFailedError) Error() string {
	return fmt.Sprintf("queue write failed: %v", e.Err)
}

func (e *QueueWriteFailedError) Unwrap() error { return e.Err }

// IsRetryable reports whether err represents a condition the worker should
// retry without consuming the task's retry budget (UpstreamUnreachable).
func IsRetryable(err error) bool {
	var unreachable *UpstreamUnreachableError
	return errors.As(err, &unreachable)
}

// IsFatal reports whether err should abort startup rather than be logged
// and continued past.
func IsFatal(err error) bool {
	var cfg *ConfigInvalidError
	return errors.As(err, &cfg)
}
