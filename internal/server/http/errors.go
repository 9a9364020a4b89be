package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sigrelay/internal/apperrors"
)

// errorEnvelope is the stable shape spec.md §7 requires for ingress
// validation errors: {status_code, message, data}.
type errorEnvelope struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// mapError translates a typed apperrors value to an HTTP status and
// message, grounded on
// internal/delivery/server/http/error_mapper.go's sentinel-error-to-status
// idiom, re-targeted at sigrelay's own taxonomy.
func mapError(err error) (int, string) {
	var webhookInvalid *apperrors.WebhookTargetInvalidError
	if errors.As(err, &webhookInvalid) {
		return http.StatusUnprocessableEntity, webhookInvalid.Error()
	}

	var queueWrite *apperrors.QueueWriteFailedError
	if errors.As(err, &queueWrite) {
		return http.StatusServiceUnavailable, "queue write failed"
	}

	var configInvalid *apperrors.ConfigInvalidError
	if errors.As(err, &configInvalid) {
		return http.StatusInternalServerError, configInvalid.Error()
	}

	return http.StatusInternalServerError, "internal error"
}

func writeMappedError(c *gin.Context, err error) {
	status, message := mapError(err)
	c.JSON(status, errorEnvelope{StatusCode: status, Message: message, Data: nil})
}
