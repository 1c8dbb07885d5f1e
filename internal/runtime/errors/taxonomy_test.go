package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/validation"
)

func TestTaxonomyMembership(t *testing.T) {
	id := ids.NewInvocationID()
	members := []error{
		NewInvalidRequestError("bad request", id, nil),
		NewInvalidResponseError("bad response", id, nil),
		NewMissingInteractorError("pkg.Req"),
		NewRejectedByLimiterError("pkg.Req", "k"),
		WrapUnexpected(errors.New("boom")),
	}
	for _, err := range members {
		assert.True(t, IsInteractionError(err), "%T", err)
		assert.True(t, IsInteractionError(fmt.Errorf("wrapped: %w", err)), "%T", err)
	}

	assert.False(t, IsInteractionError(errors.New("plain")))
	assert.False(t, IsInteractionError(ErrContextRequired))
	assert.False(t, IsInteractionError(nil))
}

func TestMissingInteractorMessage(t *testing.T) {
	err := NewMissingInteractorError("X")

	assert.Equal(t, "No interactor has been registered for request type 'X'.", err.Error())
	assert.Equal(t, "X", err.RequestType)
}

func TestRejectedByLimiterCarriesTypeAndKey(t *testing.T) {
	err := NewRejectedByLimiterError("pkg.Login", "user-1")

	assert.Equal(t, "pkg.Login", err.RequestType)
	assert.Equal(t, "user-1", err.Key)
	assert.Contains(t, err.Error(), "rejected by the limiter")
}

func TestValidationErrorsExposeOwnerAndFindings(t *testing.T) {
	id := ids.NewInvocationID()
	findings := []validation.Result{validation.NewResult("The Name field is required.", "Name")}

	var ve ValidationError = NewInvalidRequestError("invalid", id, findings)
	assert.Equal(t, id, ve.InvocationID())
	assert.Equal(t, findings, ve.Errors())

	ve = NewInvalidResponseError("", id, findings)
	assert.Equal(t, "The response is invalid.", ve.Error())
	assert.Empty(t, ve.Message())

	got, ok := AsValidationError(fmt.Errorf("outer: %w", ve))
	require.True(t, ok)
	assert.Equal(t, id, got.InvocationID())

	_, ok = AsValidationError(NewMissingInteractorError("x"))
	assert.False(t, ok)
}

func TestUnexpectedErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("db down")
	err := WrapUnexpected(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "An unexpected error occurred while processing the interaction.", err.Message())
	assert.Equal(t, "An unexpected error occurred while processing the interaction. Cause: db down", err.Error())

	bare := NewUnexpectedError("boom", nil)
	assert.Equal(t, "boom", bare.Error())
	assert.NoError(t, bare.Unwrap())
}
