// Package transport converts events into collector calls.
//
// Two interchangeable strategies implement the same contract. Sync couples
// issuance and transmission: Send performs the HTTP call inline, retrying
// with exponential backoff before surfacing failure. Async dispatches the
// call on a goroutine and returns immediately; Flush is the settlement
// barrier that waits for everything in flight, retries included.
//
// Failure disposition is governed by a single flag: under silent errors
// (the default) exhausted retries are logged and dropped, under strict mode
// they surface to whoever called Send (sync) or Flush/Shutdown (async).
// Instrumentation must never break the host application, so silent is the
// default and strict is an explicit operator choice.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/beaconlabs/beacon-go/internal/event"
	"github.com/beaconlabs/beacon-go/internal/logging"
	"github.com/beaconlabs/beacon-go/internal/monitoring"
	"github.com/beaconlabs/beacon-go/internal/resilience"
	"github.com/beaconlabs/beacon-go/internal/wire"
	"go.uber.org/zap"
)

// Backend names accepted by New.
const (
	BackendHTTP  = "http"
	BackendKafka = "kafka"
)

// ErrUnsupportedTransport is returned by New for backends that are not
// implemented. This is a construction-time programmer error and is raised
// regardless of the silent-errors setting.
var ErrUnsupportedTransport = errors.New("unsupported transport backend")

// Transport is the contract both strategies implement.
type Transport interface {
	// Send enqueues or dispatches one event.
	Send(e event.Event) error
	// Flush blocks until all in-flight work has settled.
	Flush() error
	// Shutdown flushes and releases resources. Safe to call multiple times.
	Shutdown() error
}

// Config holds transport settings.
type Config struct {
	Backend      string // "http"; "kafka" is reserved and rejected
	AsyncHTTP    bool
	Endpoint     string
	APIKey       string
	Username     string
	Password     string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	SilentErrors bool
	RateLimitRPS float64
	Compress     bool
}

// Deps carries the ambient collaborators a transport reports through.
type Deps struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// New selects and constructs a transport strategy from configuration.
func New(cfg Config, deps Deps) (Transport, error) {
	switch cfg.Backend {
	case "", BackendHTTP:
	case BackendKafka:
		return nil, fmt.Errorf("%w: kafka is not implemented", ErrUnsupportedTransport)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, cfg.Backend)
	}

	c := newCore(cfg, deps)
	if cfg.AsyncHTTP {
		return newAsync(c), nil
	}
	return newSync(c), nil
}

// core is the delivery machinery shared by both strategies: one wire client,
// one retry policy, one breaker, one limiter.
type core struct {
	client  *wire.Client
	breaker *resilience.Breaker
	limiter *rate.Limiter
	policy  Policy
	silent  bool
	log     *logging.Logger
	metrics *monitoring.Metrics
}

func newCore(cfg Config, deps Deps) *core {
	log := deps.Logger
	if log == nil {
		log = logging.Nop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), int(cfg.RateLimitRPS)+1)
	}

	breaker := resilience.New("collector", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// Collectors behind load balancers flap; only a sustained outage
			// should trip.
			return counts.ConsecutiveFailures >= 10
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("collector breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &core{
		client:  wire.NewClient(wire.Config{
			Endpoint: cfg.Endpoint,
			Timeout:  cfg.Timeout,
			APIKey:   cfg.APIKey,
			Username: cfg.Username,
			Password: cfg.Password,
			Compress: cfg.Compress,
		}),
		breaker: breaker,
		limiter: limiter,
		policy:  Policy{MaxRetries: cfg.MaxRetries, Delay: cfg.RetryDelay},
		silent:  cfg.SilentErrors,
		log:     log,
		metrics: metrics,
	}
}

// deliver drives one event through the full retry schedule. The returned
// error is the terminal disposition; callers decide whether to swallow it.
func (c *core) deliver(ctx context.Context, e event.Event) error {
	route, err := wire.RouteFor(e)
	if err != nil {
		return err
	}
	body := wire.Body(e, route)

	return c.policy.Run(ctx, func(attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		callErr := c.breaker.Do(func() error {
			return c.client.Deliver(ctx, route, body)
		})
		c.metrics.SetBreakerState(int(c.breaker.State()))

		if callErr != nil {
			if attempt < c.policy.MaxRetries {
				c.metrics.RecordAttempt(monitoring.OutcomeRetry)
			} else {
				c.metrics.RecordAttempt(monitoring.OutcomeFailure)
			}
			return callErr
		}
		c.metrics.RecordAttempt(monitoring.OutcomeSuccess)
		return nil
	})
}

// dropOrRaise applies the silent-errors disposition to a terminal failure.
func (c *core) dropOrRaise(e event.Event, err error) error {
	c.metrics.RecordDropped()
	if c.silent {
		c.log.Warn("event dropped after retry exhaustion",
			zap.String("event_id", e.EventID),
			zap.String("event_type", string(e.Type)),
			zap.String("trace_id", e.TraceID),
			zap.Error(err))
		return nil
	}
	return err
}
