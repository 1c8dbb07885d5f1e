package names

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct{}

func TestOf(t *testing.T) {
	want := "github.com/drblury/interactor/internal/runtime/names.sample"

	assert.Equal(t, want, Of(reflect.TypeOf(sample{})))
	assert.Equal(t, want, Of(reflect.TypeOf(&sample{})), "pointer resolves to element")
	assert.Equal(t, want, OfValue(&sample{}))
	assert.Equal(t, want, OfType[*sample]())
	assert.Equal(t, "", Of(nil))
	assert.Equal(t, "", OfValue(nil))
}

func TestOfBuiltinAndUnnamed(t *testing.T) {
	assert.Equal(t, "string", Of(reflect.TypeOf("")))
	assert.Equal(t, "[]int", Of(reflect.TypeOf([]int{})))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "sample", Short(reflect.TypeOf(&sample{})))
	assert.Equal(t, "", Short(nil))
}
