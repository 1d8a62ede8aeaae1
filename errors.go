package beacon

import "github.com/beaconlabs/beacon-go/internal/transport"

// ErrUnsupportedTransport is returned by New when the configured transport
// backend is unknown or not yet implemented (e.g. "kafka").
var ErrUnsupportedTransport = transport.ErrUnsupportedTransport

// ErrFlushFailed wraps the delivery failures surfaced by Flush and Shutdown
// when SilentErrors is disabled. Match it with errors.Is.
var ErrFlushFailed = transport.ErrFlushFailed
