package beacon

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the plain options structure the SDK is constructed from.
//
// Start from Default() and override what you need: a zero-valued Config
// means a blocking transport with no retries and strict errors, which is
// almost never what an instrumented application wants.
type Config struct {
	// Transport selects the backend. Only "http" is implemented; "kafka"
	// is reserved and rejected at construction.
	Transport string `envconfig:"TRANSPORT" default:"http"`

	// AsyncHTTP selects the non-blocking strategy: sends return immediately
	// and Flush/Shutdown settle outstanding work.
	AsyncHTTP bool `envconfig:"ASYNC_HTTP" default:"true"`

	// Source is the logical name of the emitting service.
	Source string `envconfig:"SOURCE" default:"unknown-service"`

	// Endpoint is the collector base URL.
	Endpoint string `envconfig:"ENDPOINT"`

	// APIKey authenticates via the X-API-Key header and takes precedence
	// over basic auth.
	APIKey   string `envconfig:"API_KEY"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`

	// Timeout bounds each collector HTTP call.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`

	// RetryDelay is the base backoff; the wait before retry n is
	// RetryDelay * 2^n.
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"1s"`

	// SilentErrors swallows delivery failures after retry exhaustion
	// instead of propagating them. The default: tracing never breaks the
	// host application.
	SilentErrors bool `envconfig:"SILENT_ERRORS" default:"true"`

	// RateLimitRPS caps collector calls per second. 0 means unlimited.
	RateLimitRPS float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`

	// Compress gzips request bodies.
	Compress bool `envconfig:"COMPRESS" default:"false"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		Transport:    "http",
		AsyncHTTP:    true,
		Source:       "unknown-service",
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Second,
		SilentErrors: true,
	}
}

// Load reads configuration from BEACON_-prefixed environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("beacon", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault reads configuration from the environment or falls back to
// the defaults.
func LoadOrDefault() Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// validate catches configuration errors at construction time. These are
// programmer errors and are raised regardless of SilentErrors.
func (c Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("beacon: Endpoint is required")
	}
	return nil
}
