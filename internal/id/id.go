// Package id provides centralized ID generation for the SDK.
//
// Trace, step, log, and event identifiers are UUIDv4 strings; they travel
// on the wire and must be accepted by any collector deployment. Idempotency
// keys are ULIDs: lexicographically sortable, so collectors can dedupe
// create-trace calls in arrival order without a timestamp index.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTraceID generates a trace identifier.
func NewTraceID() string { return uuid.NewString() }

// NewStepID generates a step identifier.
func NewStepID() string { return uuid.NewString() }

// NewLogID generates a log entry identifier.
func NewLogID() string { return uuid.NewString() }

// NewEventID generates a per-event identifier.
func NewEventID() string { return uuid.NewString() }

// IsValid checks whether an ID string is a well-formed UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Generator generates ULIDs for idempotency keys.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// NewIdempotencyKey creates a k-sortable idempotency key for create-trace calls.
func NewIdempotencyKey() string {
	return Default().Generate().String()
}
