// Package id provides centralized ID generation for the extension host.
//
// IDs are prefixed ULIDs:
//   - view_*: view registrations in the slot registry
//   - req_*:  API requests
//   - cfm_*:  pending install confirmations
//
// Stream clients get cli_<uuid> instead: they are never sorted and the
// random form keeps connection ids unguessable.
//
// ULIDs are k-sortable, so registration ids also encode registration time.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// ViewID identifies a single view registration in a slot
type ViewID string

// RequestID identifies an API request
type RequestID string

// ConfirmID identifies a pending install confirmation
type ConfirmID string

// ClientID identifies a connected stream client
type ClientID string

// ============================================================================
// ID Prefixes (for debugging and type identification)
// ============================================================================

const (
	ViewPrefix    = "view"
	RequestPrefix = "req"
	ConfirmPrefix = "cfm"
	ClientPrefix  = "cli"
)

// ============================================================================
// ULID Generator (Primary)
// ============================================================================

// Generator generates strictly increasing ULIDs with optional prefixes
type Generator struct {
	entropy   *ulid.MonotonicEntropy
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// IDs generated within the same millisecond stay ordered.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// HasPrefix reports whether id has the form prefix_<ulid>
func HasPrefix(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	return ok && IsValid(rest)
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewViewID generates a new view registration ID
func NewViewID() ViewID {
	return ViewID(Default().GenerateWithPrefix(ViewPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewConfirmID generates a new confirmation ID
func NewConfirmID() ConfirmID {
	return ConfirmID(Default().GenerateWithPrefix(ConfirmPrefix))
}

// NewClientID generates a new stream client ID
func NewClientID() ClientID {
	return ClientID(ClientPrefix + "_" + uuid.New().String())
}

// ============================================================================
// Type Conversion and Validation
// ============================================================================

// String methods for ID types
func (id ViewID) String() string    { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id ConfirmID) String() string { return string(id) }
func (id ClientID) String() string  { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string
func Parse(id string) (ulid.ULID, error) {
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
