package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/interactor/internal/runtime/errors"
)

type quotaError struct {
	Msg   string
	Limit int
	Hint  string
}

func (e *quotaError) Error() string { return e.Msg }

func TestRegisterValidatesKinds(t *testing.T) {
	reg := NewRegistry()

	assert.ErrorIs(t, reg.Register(Kind{New: func(string) error { return nil }}), errspkg.ErrKindNameRequired)
	assert.ErrorIs(t, reg.Register(Kind{Name: "x"}), errspkg.ErrKindFactoryRequired)

	require.NoError(t, reg.Register(Kind{Name: "x", New: func(m string) error { return errspkg.NewUnexpectedError(m, nil) }}))
	assert.ErrorIs(t, reg.Register(Kind{Name: "x", New: func(m string) error { return nil }}), errspkg.ErrDuplicateKind)
}

func TestDefaultRegistryHoldsTaxonomy(t *testing.T) {
	assert.Equal(t, []string{
		errorsPkg + ".InvalidRequestError",
		errorsPkg + ".InvalidResponseError",
		errorsPkg + ".MissingInteractorError",
		errorsPkg + ".RejectedByLimiterError",
		errorsPkg + ".UnexpectedError",
	}, NewTaxonomyRegistry().Names())
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
}

func TestCustomKindPersistsOnlyRegisteredProperties(t *testing.T) {
	reg := NewTaxonomyRegistry()
	require.NoError(t, RegisterKind(reg,
		func(m string) *quotaError { return &quotaError{Msg: m} },
		Field("Limit",
			func(e *quotaError) int { return e.Limit },
			func(e *quotaError, v int) { e.Limit = v }),
	))
	codec := NewCodec(reg)

	data, err := codec.Encode(&quotaError{Msg: "over quota", Limit: 3, Hint: "internal"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"github.com/drblury/interactor/internal/runtime/wire.quotaError","message":"over quota","limit":3}`, string(data))

	out := codec.Decode(data)
	assert.Equal(t, &quotaError{Msg: "over quota", Limit: 3}, out)
}
