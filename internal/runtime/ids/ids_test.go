package ids

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCorrelationIDOrdering(t *testing.T) {
	const total = 100
	generated := make([]string, total)
	for i := range total {
		generated[i] = NewCorrelationID()
	}

	for i := range total {
		require.Len(t, generated[i], 26)
		require.True(t, IsCorrelationID(generated[i]))
	}
	for i := 1; i < total; i++ {
		if generated[i-1] >= generated[i] {
			t.Fatalf("expected correlation ids to be strictly increasing, %s >= %s", generated[i-1], generated[i])
		}
	}
}

func TestNewCorrelationIDConcurrentUniqueness(t *testing.T) {
	const goroutines = 10
	const perGoroutine = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				id := NewCorrelationID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestIsCorrelationIDRejectsGarbage(t *testing.T) {
	assert.False(t, IsCorrelationID("not-a-ulid"))
	assert.False(t, IsCorrelationID(""))
}

func TestInvocationIDsAreDistinct(t *testing.T) {
	a := NewInvocationID()
	b := NewInvocationID()

	assert.NotEqual(t, a, b)
	assert.False(t, a.IsNil())
	assert.True(t, NilInvocationID.IsNil())
}

func TestInvocationIDTextRoundTrip(t *testing.T) {
	id := NewInvocationID()

	text, err := id.MarshalText()
	require.NoError(t, err)

	var decoded InvocationID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, id, decoded)

	parsed, err := ParseInvocationID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseInvocationID("nope")
	assert.Error(t, err)
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationID(ctx))
	assert.Empty(t, CorrelationID(nil)) //nolint:staticcheck // nil context is tolerated

	id := NewCorrelationID()
	ctx = WithCorrelationID(ctx, id)
	assert.Equal(t, id, CorrelationID(ctx))
}
