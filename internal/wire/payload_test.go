package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconlabs/beacon-go/internal/event"
)

func testEvent(t event.Type, payload map[string]any) event.Event {
	return event.Event{
		EventID:   "ev-1",
		Type:      t,
		TraceID:   "t1",
		StepID:    "s1",
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Source:    "svc",
		Payload:   payload,
	}
}

func TestCreateTraceBody(t *testing.T) {
	e := testEvent(event.TraceStarted, map[string]any{
		"title":      "T",
		"trace_type": "job",
		"tags":       []string{"a", "b"},
	})
	route, err := RouteFor(e)
	require.NoError(t, err)

	body := Body(e, route)

	assert.Equal(t, "t1", body["trace_id"])
	assert.Equal(t, StatusPending, body["status"])
	assert.Equal(t, "svc", body["source"])
	assert.Equal(t, "T", body["title"])
	assert.Equal(t, "job", body["trace_type"])
	assert.NotEmpty(t, body["idempotency_key"])
	assert.Equal(t, "2026-03-14T09:26:53Z", body["created_at"])
	assert.Equal(t, body["created_at"], body["updated_at"])
	assert.Equal(t, body["created_at"], body["last_activity_at"])

	t.Run("absent fields are omitted, not null", func(t *testing.T) {
		assert.NotContains(t, body, "description")
		assert.NotContains(t, body, "owner")
		assert.NotContains(t, body, "metadata")
		assert.NotContains(t, body, "params")
		assert.NotContains(t, body, "parent_trace_id")
	})
}

func TestCreateTraceBodyParent(t *testing.T) {
	e := testEvent(event.TraceStarted, nil)
	e.ParentTraceID = "upstream"
	route, _ := RouteFor(e)

	body := Body(e, route)
	assert.Equal(t, "upstream", body["parent_trace_id"])
}

func TestUpdateTraceBody(t *testing.T) {
	e := testEvent(event.TraceFailed, map[string]any{"error": "boom"})
	route, _ := RouteFor(e)

	body := Body(e, route)

	assert.Equal(t, StatusFailed, body["status"])
	assert.Equal(t, "boom", body["error"])
	assert.NotEmpty(t, body["finished_at"])
	assert.NotContains(t, body, "result")
	assert.NotContains(t, body, "trace_id")
}

func TestCreateStepBody(t *testing.T) {
	e := testEvent(event.StepStarted, map[string]any{
		"name":  "load",
		"input": map[string]any{"rows": 10},
	})
	route, _ := RouteFor(e)

	body := Body(e, route)

	assert.Equal(t, "t1", body["trace_id"])
	assert.Equal(t, "s1", body["step_id"])
	assert.Equal(t, StatusStarted, body["status"])
	assert.Equal(t, "load", body["name"])
	assert.NotContains(t, body, "step_type")
	assert.NotContains(t, body, "metadata")
}

func TestUpdateStepBody(t *testing.T) {
	e := testEvent(event.StepFinished, map[string]any{"output": map[string]any{"ok": true}})
	route, _ := RouteFor(e)

	body := Body(e, route)

	assert.Equal(t, StatusCompleted, body["status"])
	assert.Equal(t, map[string]any{"ok": true}, body["output"])
	assert.NotContains(t, body, "error")
}

func TestCreateLogBody(t *testing.T) {
	e := testEvent(event.LogEmitted, map[string]any{
		"log_id":  "log-1",
		"level":   "INFO",
		"message": "hello",
	})
	route, _ := RouteFor(e)

	body := Body(e, route)

	assert.Equal(t, "t1", body["trace_id"])
	assert.Equal(t, "log-1", body["log_id"])
	assert.Equal(t, "INFO", body["level"])
	assert.Equal(t, "hello", body["message"])
	assert.Equal(t, "svc", body["source"])
	assert.NotContains(t, body, "details")
	assert.NotContains(t, body, "event_type")
	assert.NotContains(t, body, "status")
}
