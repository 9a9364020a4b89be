// Command sigrelay-server is the CLI entrypoint: it loads configuration,
// builds the container (queue + dispatcher + worker + notifier + HTTP
// server), and blocks until a shutdown signal drains everything cleanly.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"sigrelay/internal/config"
	"sigrelay/internal/dispatcher"
	"sigrelay/internal/logging"
	"sigrelay/internal/metrics"
	"sigrelay/internal/queue"
	sigrelayhttp "sigrelay/internal/server/http"
	"sigrelay/internal/webhook"
	"sigrelay/internal/worker"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand mirrors cmd/cobra_cli.go's construction style, trimmed of
// the TUI-specific coloring helpers a background server has no use for.
func newRootCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "sigrelay-server",
		Short: "Reliability shim in front of a rate-limited signing service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configDir)
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", ".", "directory containing .env-defaults and .env")
	return cmd
}

func run(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("sigrelay: %w", err)
	}

	shutdownTracing, err := setupTracing(cfg)
	if err != nil {
		return fmt.Errorf("sigrelay: tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	logging.SetDefaultLevel(logging.ParseLogLevel(cfg.LogLevel))
	factory := logging.NewLoggerFactory(logging.ParseLogLevel(cfg.LogLevel))
	cliLogger := factory.GetLogger("CLI")

	q, closeQueue, err := openQueue(cfg)
	if err != nil {
		return err
	}
	if closeQueue != nil {
		defer closeQueue()
	}

	dispatch := dispatcher.New(dispatcher.Config{
		BaseURL:              cfg.UnreliableServiceURL,
		APIKey:               cfg.APIKey,
		MaxRequestsPerMinute: cfg.MaxRequestsPerMinute,
		Logger:               factory.GetLogger("Dispatcher"),
	})

	notifier := webhook.NewNotifier(webhook.DefaultTimeout, factory.GetLogger("Webhook"))

	w := worker.New(worker.Config{
		Queue:      q,
		Dispatcher: dispatch,
		Notifier:   notifier,
		MaxRetries: cfg.MaxTaskRetries,
		Logger:     factory.GetLogger("Worker"),
	})

	if err := w.Start(context.Background()); err != nil {
		return fmt.Errorf("sigrelay: starting worker: %w", err)
	}

	reg := metrics.NewRegistry()
	router := sigrelayhttp.NewRouter(&sigrelayhttp.Container{
		Config:     cfg,
		Queue:      q,
		Dispatcher: dispatch,
		Notifier:   notifier,
		Metrics:    reg,
		Logger:     factory.GetLogger("HTTP"),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, w, cliLogger)
}

// setupTracing wires dispatcher.New's otel.Tracer calls to a real exporter
// when cfg.OTLPEndpoint is set, and registers it as the global
// TracerProvider so every "sigrelay.dispatch" span leaves the process
// instead of running against the no-op default. With no endpoint
// configured it returns a no-op shutdown func and leaves the global
// provider untouched.
func setupTracing(cfg *config.Config) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func openQueue(cfg *config.Config) (queue.Queue, func(), error) {
	if cfg.QueueType == config.Persistent {
		pq, err := queue.OpenPersistentQueue(cfg.PersistentQueuePath)
		if err != nil {
			return nil, nil, err
		}
		return pq, func() { _ = pq.Close() }, nil
	}
	return queue.NewMemoryQueue(), nil, nil
}

// serveUntilSignal grounded verbatim on
// internal/delivery/server/bootstrap/server.go's serveUntilSignal: serve in
// a goroutine, wait for either a listen error or SIGINT/SIGTERM, then drain
// the worker before shutting the HTTP server down.
func serveUntilSignal(server *http.Server, w *worker.Worker, logger *logging.ComponentLogger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("received signal %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.Drain(shutdownCtx); err != nil {
		logger.Warn("worker drain: %v", err)
	}

	return server.Shutdown(shutdownCtx)
}
