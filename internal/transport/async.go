package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/beaconlabs/beacon-go/internal/event"
	"go.uber.org/zap"
)

// ErrFlushFailed wraps the terminal failures surfaced by Flush in strict mode.
var ErrFlushFailed = errors.New("flush completed with delivery failures")

// Async dispatches collector calls without waiting for them. Each Send
// registers a pending unit and returns immediately; the unit's goroutine
// drives the retry schedule to settlement. Flush is the explicit barrier
// that waits for settlement.
//
// Flush waits only for units registered before it was called: a Send racing
// with Flush belongs to the next flush generation. Completion order of
// in-flight units is not guaranteed and nothing here depends on it; the
// collector reconciles state by event timestamp, not arrival order.
type Async struct {
	*core

	mu       sync.Mutex
	pending  map[uint64]*unit
	nextID   uint64
	failures []error // terminal failures awaiting a strict-mode Flush
	closed   bool
}

// unit is one dispatched event awaiting settlement.
type unit struct {
	done chan struct{}
}

func newAsync(c *core) *Async {
	return &Async{
		core:    c,
		pending: make(map[uint64]*unit),
	}
}

// Send dispatches the event and returns without waiting for the collector.
// It only ever returns nil; failures settle later and surface, if at all,
// through Flush or Shutdown in strict mode.
func (t *Async) Send(e event.Event) error {
	t.metrics.RecordEmitted(string(e.Type))

	u := &unit{done: make(chan struct{})}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.log.Warn("event discarded: transport already shut down",
			zap.String("event_id", e.EventID),
			zap.String("event_type", string(e.Type)))
		return nil
	}
	uid := t.nextID
	t.nextID++
	t.pending[uid] = u
	n := len(t.pending)
	t.mu.Unlock()

	t.metrics.SetPending(n)

	go t.settle(uid, u, e)
	return nil
}

// settle drives one event through the retry schedule and records its
// terminal disposition.
func (t *Async) settle(uid uint64, u *unit, e event.Event) {
	defer close(u.done)

	err := t.deliver(context.Background(), e)

	t.mu.Lock()
	delete(t.pending, uid)
	n := len(t.pending)
	if err != nil && !t.silent {
		t.failures = append(t.failures, err)
	}
	t.mu.Unlock()

	t.metrics.SetPending(n)

	if err != nil {
		// dropOrRaise logs and counts the drop; in strict mode the error was
		// already parked for the next Flush, so the return value is consumed
		// here either way.
		_ = t.dropOrRaise(e, err)
	}
}

// Flush blocks until every unit registered before the call has settled,
// then reports and clears accumulated failures. In silent mode it always
// returns nil.
func (t *Async) Flush() error {
	start := time.Now()

	t.mu.Lock()
	units := make([]*unit, 0, len(t.pending))
	for _, u := range t.pending {
		units = append(units, u)
	}
	t.mu.Unlock()

	for _, u := range units {
		<-u.done
	}

	t.mu.Lock()
	failures := t.failures
	t.failures = nil
	t.mu.Unlock()

	t.metrics.ObserveFlush(time.Since(start).Seconds())

	if len(failures) > 0 {
		return errors.Join(append([]error{ErrFlushFailed}, failures...)...)
	}
	return nil
}

// Shutdown flushes and then refuses further sends. Safe to call multiple
// times; later calls flush whatever raced in and return.
func (t *Async) Shutdown() error {
	err := t.Flush()

	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.client.Close()
	return err
}
