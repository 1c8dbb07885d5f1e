// Package ids generates the identifiers attached to dispatched interactions:
// time-sortable correlation ids for logs and remote messages, and random
// invocation ids that scope validation failures to a single dispatch.
package ids

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewCorrelationID returns a time-sortable ULID encoded as a 26-character string.
func NewCorrelationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// IsCorrelationID reports whether s is a well-formed ULID.
func IsCorrelationID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

type correlationIDKey struct{}

// CorrelationID returns the correlation id carried by ctx, or "" when unset.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID injects a correlation id into ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}
