package transport

import (
	"context"

	"github.com/beaconlabs/beacon-go/internal/event"
)

// Sync performs the collector call inline with Send. Issuance and
// transmission are coupled, so per-trace event order is preserved on the
// wire and there is never anything in flight for Flush to wait on.
type Sync struct {
	*core
}

func newSync(c *core) *Sync {
	return &Sync{core: c}
}

// Send delivers the event synchronously, riding the full retry schedule
// before applying the silent-errors disposition.
func (t *Sync) Send(e event.Event) error {
	t.metrics.RecordEmitted(string(e.Type))
	if err := t.deliver(context.Background(), e); err != nil {
		return t.dropOrRaise(e, err)
	}
	return nil
}

// Flush is a no-op: nothing is ever in flight.
func (t *Sync) Flush() error { return nil }

// Shutdown releases idle connections. Safe to call multiple times.
func (t *Sync) Shutdown() error {
	t.client.Close()
	return nil
}
