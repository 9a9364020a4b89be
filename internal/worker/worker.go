// Package worker implements the long-running queue worker loop that binds
// the dispatcher, the queue, and the webhook notifier.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sigrelay/internal/apperrors"
	"sigrelay/internal/async"
	"sigrelay/internal/dispatcher"
	"sigrelay/internal/logging"
	"sigrelay/internal/metrics"
	"sigrelay/internal/queue"
	"sigrelay/internal/task"
	"sigrelay/internal/webhook"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("worker: already started")

// Worker is the single long-running loop driving tasks through retry to
// terminal success or failure. Its lifecycle surface is modeled on
// internal/app/scheduler.Scheduler: Start/Stop/Drain/Done/Name, so
// cmd/sigrelay-server can drain it exactly like the teacher drains its own
// background subsystems at shutdown.
type Worker struct {
	queue      queue.Queue
	dispatcher *dispatcher.Dispatcher
	notifier   *webhook.Notifier
	maxRetries int
	logger     *logging.ComponentLogger

	// OnTerminalFailure is called after a task is ack_failed (retry cap
	// reached). Nil by default: spec.md §9 open question 2 notes that no
	// webhook is fired on terminal FAIL and suggests a second extension
	// point alongside dead-lettering; this hook is that point, left as a
	// no-op until a concrete "failed" notification channel is wired in.
	OnTerminalFailure func(*task.Task)

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Config configures a Worker.
type Config struct {
	Queue      queue.Queue
	Dispatcher *dispatcher.Dispatcher
	Notifier   *webhook.Notifier
	MaxRetries int
	Logger     *logging.ComponentLogger
}

// New builds a Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewComponentLogger(logging.ComponentLoggerConfig{ComponentName: "Worker", Category: "WORKER"})
	}
	return &Worker{
		queue:      cfg.Queue,
		dispatcher: cfg.Dispatcher,
		notifier:   cfg.Notifier,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// Name identifies this subsystem in logs and shutdown sequencing.
func (w *Worker) Name() string { return "queue-worker" }

// Start spawns the worker loop in a panic-safe goroutine. Calling Start
// twice returns ErrAlreadyStarted.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true
	w.mu.Unlock()

	async.Go(w.logger, w.Name(), func() {
		w.run(runCtx)
	})
	return nil
}

// Stop signals the worker loop to terminate at the next iteration
// boundary. Idempotent.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		cancel := w.cancel
		w.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

// Drain calls Stop and waits for the loop to exit, up to ctx's deadline.
func (w *Worker) Drain(ctx context.Context) error {
	w.Stop()
	select {
	case <-w.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker: drain: %w", ctx.Err())
	}
}

// Done returns a channel closed once the worker loop has exited.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.iterate(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.dispatcher.TimeStep()):
		}
	}
}

// iterate runs one lease-dispatch-close cycle. Cancellation mid-iteration
// (an outstanding lease when ctx is cancelled) MUST close as nack: the
// deferred close below always fires, regardless of why iterate returns.
func (w *Worker) iterate(ctx context.Context) {
	defer func() { metrics.QueueDepth.Set(float64(w.queue.Len())) }()

	lease, ok, err := w.queue.Lease(ctx)
	if err != nil {
		w.logger.Error("lease failed: %v", err)
		return
	}
	if !ok {
		return
	}

	shouldNack := true
	defer func() {
		if shouldNack {
			if err := lease.Nack(); err != nil {
				w.logger.Error("nack failed: %v", err)
			}
		}
	}()

	outcome, result := w.dispatcher.Dispatch(ctx, lease.Task.Message)
	switch outcome {
	case dispatcher.Busy:
		return
	case dispatcher.Ack:
		w.handleAck(ctx, lease, result, &shouldNack)
	}
}

func (w *Worker) handleAck(ctx context.Context, lease *queue.Lease, result *dispatcher.Result, shouldNack *bool) {
	t := lease.Task

	if result.StatusCode == 200 {
		t.MarkDone(result.Body)
		w.notifier.Notify(ctx, t)
		*shouldNack = false
		if err := lease.Ack(); err != nil {
			w.logger.Error("ack failed for task %s: %v", t.ID, err)
			return
		}
		metrics.TasksTotal.WithLabelValues(string(task.Success)).Inc()
		w.logger.Info("task %s succeeded after %d retries", t.ID, t.NumRetries)
		return
	}

	// UpstreamRejectedError: counted against the retry budget.
	rejectErr := &apperrors.UpstreamRejectedError{StatusCode: result.StatusCode}
	t.IncRetries()

	if t.NumRetries >= w.maxRetries {
		t.MarkFailed()
		*shouldNack = false
		if err := lease.AckFailed(); err != nil {
			w.logger.Error("ack_failed failed for task %s: %v", t.ID, err)
			return
		}
		metrics.TasksTotal.WithLabelValues(string(task.Fail)).Inc()
		w.logger.Warn("task %s failed after %d retries: %v", t.ID, t.NumRetries, rejectErr)
		if w.OnTerminalFailure != nil {
			w.OnTerminalFailure(t)
		}
		return
	}

	w.logger.Debug("task %s rejected (status %d), retry %d/%d", t.ID, result.StatusCode, t.NumRetries, w.maxRetries)
}
