// Package dispatcher implements the rate-limited, single-in-flight call to
// the upstream signing service.
package dispatcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sigrelay/internal/apperrors"
	"sigrelay/internal/logging"
	"sigrelay/internal/metrics"
)

// Outcome is the result of a Dispatch call.
type Outcome int

const (
	// Busy means the dispatcher did not attempt the call (rate window
	// closed or a request was already in flight) or the transport failed.
	Busy Outcome = iota
	// Ack means the dispatcher reached upstream and received a response;
	// the HTTP status itself is the caller's concern.
	Ack
)

func (o Outcome) String() string {
	if o == Ack {
		return "ACK"
	}
	return "BUSY"
}

// Result carries the upstream response for an Ack outcome. Nil for Busy.
type Result struct {
	StatusCode int
	Body       []byte
}

// Dispatcher rate-limits outbound calls to the upstream signing service and
// prevents concurrent in-flight requests, because upstream is known to
// punish bursts. The admission check is a non-blocking atomic
// compare-and-swap, not a mutex acquire: this is the direct Go translation
// of spec.md §9's "a proper lock with non-blocking try-acquire is
// required" — a blocking lock would serialize callers into slow ACKs
// instead of fast BUSY responses and break the one-ACK-per-burst invariant.
type Dispatcher struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	timeStep time.Duration

	busy     atomic.Bool
	lastTime atomic.Int64 // unix nanoseconds

	logger *logging.ComponentLogger
	tracer trace.Tracer
}

// Config configures a Dispatcher.
type Config struct {
	BaseURL               string
	APIKey                string
	MaxRequestsPerMinute  int // default 10 if <= 0
	Client                *http.Client
	Logger                *logging.ComponentLogger
}

// New builds a Dispatcher. The first call is always admitted: lastTime is
// initialized to now - 1.1*time_step.
func New(cfg Config) *Dispatcher {
	rpm := cfg.MaxRequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}
	timeStep := time.Duration(float64(time.Minute) / float64(rpm))

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewComponentLogger(logging.ComponentLoggerConfig{ComponentName: "Dispatcher", Category: "DISPATCH"})
	}

	d := &Dispatcher{
		client:   client,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		timeStep: timeStep,
		logger:   logger,
		tracer:   otel.Tracer("sigrelay/dispatcher"),
	}
	d.lastTime.Store(time.Now().Add(-time.Duration(1.1 * float64(timeStep))).UnixNano())
	return d
}

// TimeStep returns the configured minimum spacing between upstream
// attempts, used by the worker to pace its poll loop.
func (d *Dispatcher) TimeStep() time.Duration { return d.timeStep }

// Dispatch attempts a single signing call for message. It returns Busy
// immediately — without contacting upstream — if a call is already in
// flight or the rate window has not elapsed.
//
// A burst of N concurrent callers when the budget is free produces exactly
// one Ack and N-1 Busy: the CompareAndSwap admits exactly one caller past
// the gate, and that caller holds busy=true for the full duration of the
// HTTP exchange, not just the bookkeeping around it.
func (d *Dispatcher) Dispatch(ctx context.Context, message []byte) (Outcome, *Result) {
	if !d.busy.CompareAndSwap(false, true) {
		metrics.DispatchOutcomes.WithLabelValues("BUSY").Inc()
		return Busy, nil
	}
	defer d.busy.Store(false)

	now := time.Now()
	last := time.Unix(0, d.lastTime.Load())
	if !now.After(last.Add(d.timeStep)) {
		metrics.DispatchOutcomes.WithLabelValues("BUSY").Inc()
		return Busy, nil
	}

	ctx, span := d.tracer.Start(ctx, "sigrelay.dispatch")
	defer span.End()

	result, err := d.call(ctx, message)

	// Open question 1 (spec.md §9): last_time is updated regardless of
	// transport outcome, because that is friendlier to upstream under
	// sustained failure than retrying at full speed.
	d.lastTime.Store(time.Now().UnixNano())

	if err != nil {
		d.logger.Warn("dispatch failed: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("sigrelay.outcome", "BUSY"))
		metrics.DispatchOutcomes.WithLabelValues("BUSY").Inc()
		return Busy, nil
	}

	span.SetAttributes(
		attribute.String("sigrelay.outcome", "ACK"),
		attribute.Int("sigrelay.upstream_status", result.StatusCode),
	)
	metrics.DispatchOutcomes.WithLabelValues("ACK").Inc()
	return Ack, result
}

func (d *Dispatcher) call(ctx context.Context, message []byte) (*Result, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, &apperrors.UpstreamUnreachableError{Err: fmt.Errorf("parse base url: %w", err)}
	}
	u.Path = u.Path + "/crypto/sign"
	q := u.Query()
	q.Set("message", string(message))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &apperrors.UpstreamUnreachableError{Err: err}
	}
	req.Header.Set("Authorization", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &apperrors.UpstreamUnreachableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.UpstreamUnreachableError{Err: err}
	}

	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}
