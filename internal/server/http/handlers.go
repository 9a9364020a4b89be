package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sigrelay/internal/dispatcher"
	"sigrelay/internal/task"
	"sigrelay/internal/webhook"
)

type handlers struct {
	c *Container
}

// sign implements GET /crypto/sign?message=&webhook_url=: a single
// synchronous dispatcher attempt, falling back to enqueue-for-background
// processing per spec.md §6.
func (h *handlers) sign(c *gin.Context) {
	message := c.Query("message")
	webhookURL := c.Query("webhook_url")

	id := newTaskID()
	t := task.New(id, []byte(message), webhookURL)

	outcome, result := h.c.Dispatcher.Dispatch(c.Request.Context(), t.Message)
	if outcome == dispatcher.Ack && result.StatusCode == http.StatusOK {
		t.MarkDone(result.Body)
		c.JSON(http.StatusOK, t.Sanitize())
		return
	}

	if err := webhook.ValidateTarget(c.Request.Context(), webhookURL, h.c.Resolver); err != nil {
		writeMappedError(c, err)
		return
	}

	if err := h.c.Queue.Add(c.Request.Context(), t); err != nil {
		writeMappedError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, t.Sanitize())
}

// echoWebhook implements POST /crypto/test-webhook: it exists purely to
// exercise the notifier's JSON serialization path under test (recovered
// from original_source/app/main.py; not a Non-goal-excluded feature).
func (h *handlers) echoWebhook(c *gin.Context) {
	var body task.ExternalTask
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorEnvelope{StatusCode: http.StatusBadRequest, Message: "invalid body", Data: nil})
		return
	}
	c.JSON(http.StatusOK, body)
}

// health is the ambient liveness endpoint, recovered from the teacher's own
// /health convention.
func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"queue_depth": h.c.Queue.Len(),
	})
}
