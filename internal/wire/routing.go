// Package wire speaks the collector's REST API.
//
// It owns the mapping from event types to collector operations, the payload
// shapes for each operation, and the HTTP clients that carry them. Retry
// policy deliberately does not live here: a call either reaches the
// collector with a 2xx or it reports an error, and the transport above
// decides what to do about it.
package wire

import (
	"fmt"
	"net/http"

	"github.com/beaconlabs/beacon-go/internal/event"
)

// Collector-side lifecycle status values.
const (
	StatusPending   = "PENDING"
	StatusSuccess   = "SUCCESS"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
	StatusStarted   = "STARTED"
	StatusCompleted = "COMPLETED"
)

// Operation identifies one of the collector endpoints.
type Operation string

const (
	OpCreateTrace Operation = "create_trace"
	OpUpdateTrace Operation = "update_trace"
	OpCreateStep  Operation = "create_step"
	OpUpdateStep  Operation = "update_step"
	OpCreateLog   Operation = "create_log"
)

// Route describes the HTTP call for one event.
type Route struct {
	Operation Operation
	Method    string
	Path      string
	Status    string // collector status value carried in the payload; "" for logs
}

// RouteFor maps an event to its collector operation.
func RouteFor(e event.Event) (Route, error) {
	switch e.Type {
	case event.TraceStarted:
		return Route{OpCreateTrace, http.MethodPost, "/api/v1/traces", StatusPending}, nil
	case event.TraceFinished:
		return Route{OpUpdateTrace, http.MethodPatch, "/api/v1/traces/" + e.TraceID, StatusSuccess}, nil
	case event.TraceFailed:
		return Route{OpUpdateTrace, http.MethodPatch, "/api/v1/traces/" + e.TraceID, StatusFailed}, nil
	case event.TraceCancelled:
		return Route{OpUpdateTrace, http.MethodPatch, "/api/v1/traces/" + e.TraceID, StatusCancelled}, nil
	case event.StepStarted:
		return Route{OpCreateStep, http.MethodPost, "/api/v1/steps", StatusStarted}, nil
	case event.StepFinished:
		return Route{OpUpdateStep, http.MethodPatch, "/api/v1/steps/" + e.TraceID + "/" + e.StepID, StatusCompleted}, nil
	case event.StepFailed:
		return Route{OpUpdateStep, http.MethodPatch, "/api/v1/steps/" + e.TraceID + "/" + e.StepID, StatusFailed}, nil
	case event.LogEmitted:
		return Route{OpCreateLog, http.MethodPost, "/api/v1/logs", ""}, nil
	default:
		return Route{}, fmt.Errorf("no collector route for event type %q", e.Type)
	}
}
