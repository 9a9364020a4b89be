// Package http wires sigrelay's ingress HTTP surface: the sign/test-webhook
// endpoints spec.md §6 specifies as the core's minimal collaborator
// contract, plus the ambient /health and /metrics endpoints every
// deployable service in this corpus carries.
//
// Wires the teacher's otherwise-unused gin-gonic/gin and gin-contrib/cors
// dependencies; the teacher's own router (net/http.ServeMux +
// hand-rolled middleware chain) never actually used either.
package http

import (
	"net"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sigrelay/internal/config"
	"sigrelay/internal/dispatcher"
	"sigrelay/internal/logging"
	"sigrelay/internal/queue"
	"sigrelay/internal/webhook"
)

// Container bundles the core components the HTTP ingress layer calls into.
// It owns none of their lifecycles; cmd/sigrelay-server builds and drains
// them.
type Container struct {
	Config     *config.Config
	Queue      queue.Queue
	Dispatcher *dispatcher.Dispatcher
	Notifier   *webhook.Notifier
	Resolver   *net.Resolver
	Logger     *logging.ComponentLogger
	Metrics    *prometheus.Registry
}

// NewRouter builds the Gin engine implementing spec.md §6's wire contract.
func NewRouter(c *Container) *gin.Engine {
	if c.Logger == nil {
		c.Logger = logging.NewComponentLogger(logging.ComponentLoggerConfig{ComponentName: "HTTP", Category: "HTTP"})
	}
	if c.Resolver == nil {
		c.Resolver = net.DefaultResolver
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogMiddleware(c.Logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	h := &handlers{c: c}

	r.GET("/crypto/sign", h.sign)
	r.POST("/crypto/test-webhook", h.echoWebhook)
	r.GET("/health", h.health)

	reg := c.Metrics
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r
}

func requestLogMiddleware(logger *logging.ComponentLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// newTaskID generates the opaque 128-bit task identifier spec.md §3
// requires, assigned exactly once at ingress.
func newTaskID() string {
	return uuid.New().String()
}
