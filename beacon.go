// Package beacon is the client SDK for the Beacon trace collector.
//
// It emits append-only trace/step/log events describing the lifecycle of a
// distributed operation over HTTP. The guiding rule is graceful
// degradation: under the default configuration a total collector outage is
// invisible to the host application, aside from diagnostic log lines.
//
// Typical use:
//
//	client, err := beacon.New(cfg)
//	trace, _ := client.StartTrace(beacon.TraceOptions{Title: "nightly import"})
//	step := trace.StartStep(beacon.StepOptions{Name: "load"})
//	step.Finish(map[string]any{"rows": 42}, nil)
//	trace.Finish(map[string]any{"done": true}, nil)
//	client.Shutdown() // settles async deliveries before process exit
package beacon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/beaconlabs/beacon-go/internal/event"
	"github.com/beaconlabs/beacon-go/internal/id"
	"github.com/beaconlabs/beacon-go/internal/logging"
	"github.com/beaconlabs/beacon-go/internal/monitoring"
	"github.com/beaconlabs/beacon-go/internal/transport"
	"github.com/beaconlabs/beacon-go/internal/wire"
)

// TraceIDHeader carries a trace identity across service boundaries.
const TraceIDHeader = wire.TraceIDHeader

// InjectTraceID attaches a trace identity to outgoing request headers so a
// downstream service can continue the trace.
func InjectTraceID(h http.Header, traceID string) { wire.InjectTraceID(h, traceID) }

// ExtractTraceID reads the propagated trace identity from incoming request
// headers. "" means the upstream started no trace.
func ExtractTraceID(h http.Header) string { return wire.ExtractTraceID(h) }

// Option customizes a Client.
type Option func(*Client)

// WithLogger installs a diagnostic logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = &logging.Logger{Logger: l}
	}
}

// WithTraceContext binds a shared TraceContext that StartTrace keeps
// pointed at the newest trace, and that CurrentTrace consults as a fallback
// after a cross-boundary restore.
func WithTraceContext(tc *TraceContext) Option {
	return func(c *Client) {
		c.shared = tc
	}
}

// Client is the SDK entry point. It owns transport selection, active-trace
// bookkeeping, and the best-effort collector probes. Safe for concurrent
// use.
type Client struct {
	cfg       Config
	log       *logging.Logger
	metrics   *monitoring.Metrics
	transport transport.Transport
	probe     *wire.Probe
	shared    *TraceContext

	mu      sync.Mutex
	current *TraceHandle
}

// New validates the configuration and constructs a client. Configuration
// errors (missing endpoint, unsupported transport backend) are raised here
// regardless of SilentErrors; they are programmer errors, not runtime
// conditions.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Source == "" {
		cfg.Source = "unknown-service"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		log:     logging.Nop(),
		metrics: monitoring.NewMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}

	tr, err := transport.New(transport.Config{
		Backend:      cfg.Transport,
		AsyncHTTP:    cfg.AsyncHTTP,
		Endpoint:     cfg.Endpoint,
		APIKey:       cfg.APIKey,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		SilentErrors: cfg.SilentErrors,
		RateLimitRPS: cfg.RateLimitRPS,
		Compress:     cfg.Compress,
	}, transport.Deps{Logger: c.log, Metrics: c.metrics})
	if err != nil {
		return nil, err
	}
	c.transport = tr

	c.probe = wire.NewProbe(wire.Config{
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
		APIKey:   cfg.APIKey,
		Username: cfg.Username,
		Password: cfg.Password,
	})

	return c, nil
}

// StartTrace emits trace_started and returns a handle for the new trace.
// The trace becomes this client's current trace, and the shared
// TraceContext, when bound, is pointed at it. The returned handle is usable
// even when the emission itself failed.
func (c *Client) StartTrace(opts TraceOptions) (*TraceHandle, error) {
	traceID := opts.TraceID
	if traceID == "" {
		traceID = id.NewTraceID()
	}

	payload := map[string]any{}
	putString(payload, "trace_type", opts.TraceType)
	putString(payload, "title", opts.Title)
	putString(payload, "description", opts.Description)
	putString(payload, "owner", opts.Owner)
	if len(opts.Tags) > 0 {
		payload["tags"] = opts.Tags
	}
	putMap(payload, "metadata", opts.Metadata)
	putMap(payload, "params", opts.Params)
	if opts.TraceTimeoutMS > 0 {
		payload["trace_timeout_ms"] = opts.TraceTimeoutMS
	}
	if opts.StepTimeoutMS > 0 {
		payload["step_timeout_ms"] = opts.StepTimeoutMS
	}

	e := event.New(event.TraceStarted, traceID, c.source(), payload)
	e.ParentTraceID = opts.ParentTraceID

	h := &TraceHandle{client: c, traceID: traceID}

	c.mu.Lock()
	c.current = h
	c.mu.Unlock()

	if c.shared != nil {
		c.shared.Set(traceID, "", opts.Metadata)
	}

	return h, c.emit(e)
}

// ContinueTrace starts a trace linked to the upstream trace whose identity
// arrived in request headers. With no propagated identity it behaves like
// StartTrace.
func (c *Client) ContinueTrace(h http.Header, opts TraceOptions) (*TraceHandle, error) {
	opts.ParentTraceID = ExtractTraceID(h)
	return c.StartTrace(opts)
}

// GetTrace returns a local proxy for a trace believed to already exist. No
// local history is required. A best-effort state check marks the handle
// closed when the collector already reports a terminal state, so stray
// transitions become no-ops; the check itself fails silently.
func (c *Client) GetTrace(ctx context.Context, traceID string) *TraceHandle {
	h := &TraceHandle{client: c, traceID: traceID}

	state, err := c.probe.TraceState(ctx, traceID)
	if err != nil {
		c.log.Debug("trace state check failed", zap.String("trace_id", traceID), zap.Error(err))
		return h
	}
	switch status, _ := state["status"].(string); status {
	case wire.StatusSuccess, wire.StatusFailed, wire.StatusCancelled:
		h.closed.Store(true)
	}
	return h
}

// CurrentTrace returns the last trace this client started, falling back to
// the shared TraceContext (when bound) so a restored cross-boundary context
// is also visible here. Returns nil when neither knows of a trace.
func (c *Client) CurrentTrace() *TraceHandle {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current != nil {
		return current
	}
	if c.shared != nil {
		if traceID := c.shared.TraceID(); traceID != "" {
			return &TraceHandle{client: c, traceID: traceID}
		}
	}
	return nil
}

// StartStep is sugar that starts a step on the current trace. With no
// current trace it returns nil rather than an error: instrumentation
// without an active trace is a no-op, not a failure.
func (c *Client) StartStep(opts StepOptions) *StepHandle {
	trace := c.CurrentTrace()
	if trace == nil {
		c.log.Debug("startStep ignored: no active trace")
		return nil
	}
	return trace.StartStep(opts)
}

// Log is sugar that logs against the current trace, falling back to the
// local diagnostic logger when none exists.
func (c *Client) Log(message string, opts ...LogOptions) {
	trace := c.CurrentTrace()
	if trace == nil {
		c.log.Info("trace log without active trace", zap.String("message", message))
		return
	}
	trace.Log(message, opts...)
}

// Heartbeat signals the collector that a long-running trace is alive.
// traceID "" resolves the current trace. Heartbeats are inherently
// non-critical: failures are swallowed regardless of SilentErrors.
func (c *Client) Heartbeat(ctx context.Context, traceID string) {
	if traceID == "" {
		trace := c.CurrentTrace()
		if trace == nil {
			return
		}
		traceID = trace.ID()
	}
	if err := c.probe.Heartbeat(ctx, traceID); err != nil {
		c.log.Debug("heartbeat failed", zap.String("trace_id", traceID), zap.Error(err))
	}
}

// Health probes collector connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.probe.Health(ctx)
}

// Flush blocks until all in-flight deliveries have settled. Under strict
// errors it returns the accumulated delivery failures.
func (c *Client) Flush() error {
	return c.transport.Flush()
}

// Shutdown flushes and releases transport resources. Idempotent, and the
// mandatory call before process exit when AsyncHTTP is enabled.
func (c *Client) Shutdown() error {
	return c.transport.Shutdown()
}

// MetricsRegistry exposes the SDK's private Prometheus registry for hosts
// that want to scrape transport diagnostics.
func (c *Client) MetricsRegistry() *prometheus.Registry {
	return c.metrics.Registry()
}

func (c *Client) source() string { return c.cfg.Source }

func (c *Client) emit(e event.Event) error {
	return c.transport.Send(e)
}

func (c *Client) emitLog(traceID, stepID, message string, opts LogOptions) {
	level := opts.Level
	if level == "" {
		level = LevelInfo
	}

	payload := map[string]any{
		"log_id":  id.NewLogID(),
		"level":   level,
		"message": message,
	}
	putString(payload, "event_type", opts.EventType)
	putMap(payload, "details", opts.Details)

	e := event.NewStep(event.LogEmitted, traceID, stepID, c.source(), payload)
	if err := c.emit(e); err != nil {
		c.log.Warn("log emission failed", zap.String("trace_id", traceID), zap.Error(err))
	}
}
