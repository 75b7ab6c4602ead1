// Package idgen implements request ID generation. Every invocation event
// carries a requestContext.requestId; the live generator issues UUIDs the
// way the hosted gateway does, and tests use a sequential generator so
// events are comparable.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/samgate/ports"
)

// UUID issues random version 4 UUIDs.
type UUID struct{}

// New returns a fresh UUID string.
func (UUID) New() string {
	return uuid.New().String()
}

// Sequential issues "<prefix><n>" IDs in call order, for tests that assert
// on the request ID a handler received.
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential generator starting at <prefix>1.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Reset restarts the sequence.
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
