package wire

import (
	"time"

	"github.com/beaconlabs/beacon-go/internal/event"
	"github.com/beaconlabs/beacon-go/internal/id"
)

// TimeFormat is the wire encoding for timestamps: ISO-8601 in UTC.
const TimeFormat = time.RFC3339Nano

// Body builds the request body for an event's collector operation.
// Optional fields that were not provided are absent from the map, never nil.
func Body(e event.Event, route Route) map[string]any {
	switch route.Operation {
	case OpCreateTrace:
		return createTraceBody(e, route)
	case OpUpdateTrace:
		return updateTraceBody(e, route)
	case OpCreateStep:
		return createStepBody(e, route)
	case OpUpdateStep:
		return updateStepBody(e, route)
	case OpCreateLog:
		return createLogBody(e)
	default:
		return nil
	}
}

func createTraceBody(e event.Event, route Route) map[string]any {
	ts := formatTime(e.Timestamp)
	body := map[string]any{
		"trace_id":         e.TraceID,
		"status":           route.Status,
		"source":           e.Source,
		"created_at":       ts,
		"updated_at":       ts,
		"last_activity_at": ts,
		"idempotency_key":  id.NewIdempotencyKey(),
	}
	if e.ParentTraceID != "" {
		body["parent_trace_id"] = e.ParentTraceID
	}
	copyFields(body, e.Payload,
		"trace_type", "title", "description", "owner", "tags",
		"metadata", "params", "trace_timeout_ms", "step_timeout_ms")
	return body
}

func updateTraceBody(e event.Event, route Route) map[string]any {
	ts := formatTime(e.Timestamp)
	body := map[string]any{
		"status":           route.Status,
		"updated_at":       ts,
		"finished_at":      ts,
		"last_activity_at": ts,
	}
	copyFields(body, e.Payload, "result", "error", "metadata")
	return body
}

func createStepBody(e event.Event, route Route) map[string]any {
	ts := formatTime(e.Timestamp)
	body := map[string]any{
		"trace_id":   e.TraceID,
		"step_id":    e.StepID,
		"status":     route.Status,
		"started_at": ts,
		"updated_at": ts,
	}
	copyFields(body, e.Payload, "step_type", "name", "input", "metadata")
	return body
}

func updateStepBody(e event.Event, route Route) map[string]any {
	ts := formatTime(e.Timestamp)
	body := map[string]any{
		"status":      route.Status,
		"updated_at":  ts,
		"finished_at": ts,
	}
	copyFields(body, e.Payload, "output", "error", "metadata")
	return body
}

func createLogBody(e event.Event) map[string]any {
	body := map[string]any{
		"trace_id": e.TraceID,
		"log_id":   e.EventID,
		"log_time": formatTime(e.Timestamp),
		"source":   e.Source,
	}
	if e.StepID != "" {
		body["step_id"] = e.StepID
	}
	copyFields(body, e.Payload, "log_id", "level", "message", "details", "event_type")
	return body
}

// copyFields moves the named payload fields into the body when present.
func copyFields(body, payload map[string]any, keys ...string) {
	for _, key := range keys {
		if v, ok := payload[key]; ok && v != nil {
			body[key] = v
		}
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}
