// Package clockid provides the monotonic wall-clock and unique-identifier
// primitives shared by every stateful component, so tests can substitute a
// deterministic clock without touching business logic.
package clockid

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall-clock access.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts unique identifier creation.
type IDGenerator interface {
	NewID(prefix string) string
}

// UUIDGenerator generates prefixed UUIDv4 identifiers, e.g. "job-<uuid>".
type UUIDGenerator struct{}

// NewID returns a new identifier of the form "<prefix>-<uuid>".
func (UUIDGenerator) NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
