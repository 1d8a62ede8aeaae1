package wire

import "net/http"

// TraceIDHeader carries a trace identity across service boundaries. A caller
// that receives it continues the upstream trace; absence means start fresh.
const TraceIDHeader = "X-Trace-Id"

// InjectTraceID attaches the trace identity to outgoing request headers.
func InjectTraceID(h http.Header, traceID string) {
	if traceID != "" {
		h.Set(TraceIDHeader, traceID)
	}
}

// ExtractTraceID pulls the trace identity from incoming request headers.
// Returns "" when the upstream did not propagate one.
func ExtractTraceID(h http.Header) string {
	return h.Get(TraceIDHeader)
}
