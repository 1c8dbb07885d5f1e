package interaction

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/validation"
)

type getUser struct{ ID string }

type writeAudit struct{ Entry string }

func (writeAudit) NonCancellable() {}

type pointerAudit struct{}

func (*pointerAudit) NonCancellable() {}

func TestNewAllocatesDistinctInvocationIDs(t *testing.T) {
	a := New(getUser{ID: "1"})
	b := New(getUser{ID: "1"})

	assert.False(t, a.InvocationID().IsNil())
	assert.NotEqual(t, a.InvocationID(), b.InvocationID())
	assert.Equal(t, getUser{ID: "1"}, a.Request())
	assert.Equal(t, any(getUser{ID: "1"}), a.RequestValue())
	assert.Equal(t, reflect.TypeFor[getUser](), a.RequestType())
}

func TestNewWithIDContinuesInvocation(t *testing.T) {
	id := ids.NewInvocationID()
	assert.Equal(t, id, NewWithID(id, getUser{}).InvocationID())
	assert.False(t, NewWithID(ids.NilInvocationID, getUser{}).InvocationID().IsNil())
}

func TestFluentOptions(t *testing.T) {
	sig, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(getUser{}).WithCancellation(sig).WithIgnoreCache(true)

	assert.Equal(t, cancellation.Signal(sig), c.CancellationOverride())
	assert.True(t, c.IgnoresCache())
	assert.Nil(t, c.Cancellation())

	c.SetCancellation(cancellation.Never)
	assert.Equal(t, cancellation.Never, c.Cancellation())
}

func TestMarkDispatchedOnlyOnce(t *testing.T) {
	c := New(getUser{})

	assert.True(t, c.MarkDispatched())
	assert.False(t, c.MarkDispatched())
}

func TestInvalidRequestSnapshotsFindings(t *testing.T) {
	c := New(getUser{})
	require.NoError(t, c.RequireValid("invalid"))

	c.Findings().Add(validation.NewResult("The ID field is required.", "ID"))
	err := c.InvalidRequest("invalid")
	c.Findings().Add(validation.NewResult("later"))

	assert.Equal(t, c.InvocationID(), err.InvocationID())
	assert.Len(t, err.Errors(), 1)
	assert.False(t, c.Valid())
	assert.Len(t, c.Errors(), 2)
	assert.Error(t, c.RequireValid("invalid"))

	resp := c.InvalidResponse("bad response")
	assert.Equal(t, c.InvocationID(), resp.InvocationID())
	assert.Len(t, resp.Errors(), 2)
}

func TestIsNonCancellable(t *testing.T) {
	assert.True(t, IsNonCancellable(reflect.TypeFor[writeAudit]()))
	assert.True(t, IsNonCancellable(reflect.TypeFor[*writeAudit]()))
	assert.True(t, IsNonCancellable(reflect.TypeFor[pointerAudit]()))
	assert.False(t, IsNonCancellable(reflect.TypeFor[getUser]()))
	assert.False(t, IsNonCancellable(nil))
}
