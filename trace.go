package beacon

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/beaconlabs/beacon-go/internal/event"
	"github.com/beaconlabs/beacon-go/internal/id"
	"go.uber.org/zap"
)

// Log levels accepted by Log calls.
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// TraceOptions describes a trace being started. Every field is optional;
// a zero TraceOptions starts an anonymous trace with a generated identity.
type TraceOptions struct {
	TraceID       string // generated when empty
	ParentTraceID string // links to a causally preceding trace
	TraceType     string
	Title         string
	Description   string
	Owner         string
	Tags          []string
	Metadata      map[string]any
	Params        map[string]any

	// Timeout hints consumed by the collector; not enforced locally.
	TraceTimeoutMS int
	StepTimeoutMS  int
}

// StepOptions describes a step being started.
type StepOptions struct {
	Name     string
	StepType string
	Input    map[string]any
	Metadata map[string]any
}

// LogOptions refines a log emission.
type LogOptions struct {
	Level     string // defaults to LevelInfo
	EventType string
	Details   map[string]any
}

// TraceHandle is a local, single-use proxy for one trace. It holds no
// ownership over collector-side state: Finish, Fail, and Cancel merely emit
// the corresponding event and do not confirm its application.
//
// At most one terminal transition is emitted per handle. Later calls are
// logged and ignored, never raised: instrumentation bugs must not break the
// host application.
type TraceHandle struct {
	client  *Client
	traceID string
	closed  atomic.Bool
}

// ID returns the trace identity.
func (t *TraceHandle) ID() string { return t.traceID }

// StartStep emits step_started and returns a handle for the new step. It
// always succeeds locally, whatever the collector is doing.
func (t *TraceHandle) StartStep(opts StepOptions) *StepHandle {
	stepID := id.NewStepID()

	payload := map[string]any{}
	putString(payload, "name", opts.Name)
	putString(payload, "step_type", opts.StepType)
	putMap(payload, "input", opts.Input)
	putMap(payload, "metadata", opts.Metadata)

	e := event.NewStep(event.StepStarted, t.traceID, stepID, t.client.source(), payload)
	if err := t.client.emit(e); err != nil {
		t.client.log.Warn("step_started emission failed",
			zap.String("trace_id", t.traceID), zap.String("step_id", stepID), zap.Error(err))
	}

	return &StepHandle{client: t.client, traceID: t.traceID, stepID: stepID}
}

// Finish emits the SUCCESS terminal transition. The first terminal call
// wins; the rest are no-ops.
func (t *TraceHandle) Finish(result, metadata map[string]any) error {
	if !t.transition("finish") {
		return nil
	}
	payload := map[string]any{}
	putMap(payload, "result", result)
	putMap(payload, "metadata", metadata)
	return t.client.emit(event.New(event.TraceFinished, t.traceID, t.client.source(), payload))
}

// Fail emits the FAILED terminal transition. problem may be a plain string
// or an error; errors additionally capture a stack representation.
func (t *TraceHandle) Fail(problem any) error {
	if !t.transition("fail") {
		return nil
	}
	return t.client.emit(event.New(event.TraceFailed, t.traceID, t.client.source(), failurePayload(problem)))
}

// Cancel emits the CANCELLED terminal transition.
func (t *TraceHandle) Cancel() error {
	if !t.transition("cancel") {
		return nil
	}
	return t.client.emit(event.New(event.TraceCancelled, t.traceID, t.client.source(), nil))
}

// Log emits a log entry attached to the trace. Logs are deliberately not
// gated by the closed flag: trailing diagnostics after a terminal
// transition must still be observable.
func (t *TraceHandle) Log(message string, opts ...LogOptions) {
	t.client.emitLog(t.traceID, "", message, firstOpt(opts))
}

// Heartbeat signals the collector that this trace is still alive. Always
// best-effort and always silent.
func (t *TraceHandle) Heartbeat(ctx context.Context) {
	t.client.Heartbeat(ctx, t.traceID)
}

// transition claims the single terminal transition, reporting whether this
// caller won it.
func (t *TraceHandle) transition(op string) bool {
	if t.closed.CompareAndSwap(false, true) {
		return true
	}
	t.client.log.Debug("ignoring terminal transition on finished trace",
		zap.String("trace_id", t.traceID), zap.String("op", op))
	return false
}

// StepHandle is a local, single-use proxy for one step, scoped to its
// owning trace. Same contract as TraceHandle: one terminal transition,
// logs never gated.
type StepHandle struct {
	client  *Client
	traceID string
	stepID  string
	closed  atomic.Bool
}

// ID returns the step identity.
func (s *StepHandle) ID() string { return s.stepID }

// TraceID returns the owning trace identity.
func (s *StepHandle) TraceID() string { return s.traceID }

// Finish emits the COMPLETED terminal transition for the step.
func (s *StepHandle) Finish(output, metadata map[string]any) error {
	if !s.transition("finish") {
		return nil
	}
	payload := map[string]any{}
	putMap(payload, "output", output)
	putMap(payload, "metadata", metadata)
	return s.client.emit(event.NewStep(event.StepFinished, s.traceID, s.stepID, s.client.source(), payload))
}

// Fail emits the FAILED terminal transition for the step.
func (s *StepHandle) Fail(problem any) error {
	if !s.transition("fail") {
		return nil
	}
	return s.client.emit(event.NewStep(event.StepFailed, s.traceID, s.stepID, s.client.source(), failurePayload(problem)))
}

// Log emits a log entry attached to the step.
func (s *StepHandle) Log(message string, opts ...LogOptions) {
	s.client.emitLog(s.traceID, s.stepID, message, firstOpt(opts))
}

func (s *StepHandle) transition(op string) bool {
	if s.closed.CompareAndSwap(false, true) {
		return true
	}
	s.client.log.Debug("ignoring terminal transition on finished step",
		zap.String("trace_id", s.traceID), zap.String("step_id", s.stepID), zap.String("op", op))
	return false
}

// failurePayload normalizes a failure input into the event payload. Errors
// carry both the message and a stack representation; anything else is
// stringified.
func failurePayload(problem any) map[string]any {
	switch v := problem.(type) {
	case error:
		return map[string]any{
			"error":    v.Error(),
			"metadata": map[string]any{"stack": string(debug.Stack())},
		}
	case string:
		return map[string]any{"error": v}
	default:
		return map[string]any{"error": fmt.Sprint(v)}
	}
}

func putString(payload map[string]any, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

func putMap(payload map[string]any, key string, value map[string]any) {
	if len(value) > 0 {
		payload[key] = value
	}
}

func firstOpt(opts []LogOptions) LogOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return LogOptions{}
}
