// Package event defines the immutable records describing trace state transitions.
//
// An event is a fact: once constructed it is never mutated. Transport
// failures produce retry attempts of the same logical event, never new
// events. The wire encoding is sparse: a payload field that was not provided
// is omitted entirely, it is never sent as an explicit null.
package event

import (
	"time"

	"github.com/beaconlabs/beacon-go/internal/id"
)

// Type enumerates the state transitions an event can describe.
type Type string

const (
	TraceStarted   Type = "trace_started"
	TraceFinished  Type = "trace_finished"
	TraceFailed    Type = "trace_failed"
	TraceCancelled Type = "trace_cancelled"
	StepStarted    Type = "step_started"
	StepFinished   Type = "step_finished"
	StepFailed     Type = "step_failed"
	LogEmitted     Type = "log_emitted"
)

// Event is one immutable state-transition record.
type Event struct {
	EventID       string
	Type          Type
	TraceID       string
	StepID        string
	ParentTraceID string
	Timestamp     time.Time
	Source        string
	Payload       map[string]any
}

// New constructs an event, assigning its identity and timestamp now.
// The timestamp reflects construction time, not send time: under the
// asynchronous transport those can be far apart.
func New(t Type, traceID, source string, payload map[string]any) Event {
	return Event{
		EventID:   id.NewEventID(),
		Type:      t,
		TraceID:   traceID,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Payload:   sparse(payload),
	}
}

// NewStep constructs an event scoped to a step.
func NewStep(t Type, traceID, stepID, source string, payload map[string]any) Event {
	e := New(t, traceID, source, payload)
	e.StepID = stepID
	return e
}

// PayloadString returns a string payload field, or "" when absent.
func (e Event) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadMap returns a map payload field, or nil when absent.
func (e Event) PayloadMap(key string) map[string]any {
	if v, ok := e.Payload[key].(map[string]any); ok {
		return v
	}
	return nil
}

// sparse drops nil-valued entries so absence and null never diverge on the wire.
func sparse(payload map[string]any) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
