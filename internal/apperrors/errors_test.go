package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamUnreachableError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &UpstreamUnreachableError{Err: cause}

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestUpstreamRejectedError_Message(t *testing.T) {
	err := &UpstreamRejectedError{StatusCode: 503}
	assert.Equal(t, "upstream rejected: status 503", err.Error())
}

func TestWebhookDeliveryFailedError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := &WebhookDeliveryFailedError{URL: "http://example.com/hook", Err: cause}
	require.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&UpstreamUnreachableError{Err: errors.New("boom")}))
	assert.False(t, IsRetryable(&UpstreamRejectedError{StatusCode: 500}))
	assert.False(t, IsRetryable(fmt.Errorf("wrap: %w", &UpstreamRejectedError{StatusCode: 500})))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", &UpstreamUnreachableError{Err: errors.New("x")})))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&ConfigInvalidError{Field: "PERSISTENT_QUEUE_PATH", Message: "required"}))
	assert.False(t, IsFatal(&QueueWriteFailedError{Err: errors.New("disk full")}))
}
