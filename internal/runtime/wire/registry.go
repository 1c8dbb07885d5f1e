// Package wire encodes interaction errors into a compact JSON payload and
// reconstructs typed errors from it on the other side of a process boundary.
//
// Only kinds registered in a Registry are reconstructed, and only their
// registered properties cross the wire:
//
//	{"type":"<fully-qualified type>","message":"...","<property>":<value>}
//
// Decoding never fails: unknown, malformed or partial payloads degrade to
// *errors.UnexpectedError.
package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/drblury/interactor/internal/runtime/casing"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	"github.com/drblury/interactor/internal/runtime/names"
	"github.com/drblury/interactor/internal/runtime/validation"
)

// Property is one persisted field of a kind. Name uses canonical casing; the
// codec applies its casing policy to the name and hands it to get and set for
// values that carry member names of their own.
type Property struct {
	Name string
	get  func(err error, p casing.Policy) (any, bool)
	set  func(err error, raw json.RawMessage, p casing.Policy) error
}

// Field declares a persisted property of kind E with value type V.
func Field[E error, V any](name string, get func(E) V, set func(E, V)) Property {
	return Property{
		Name: name,
		get: func(err error, _ casing.Policy) (any, bool) {
			e, ok := err.(E)
			if !ok {
				return nil, false
			}
			v := get(e)
			return v, !isNil(v)
		},
		set: func(err error, raw json.RawMessage, _ casing.Policy) error {
			e, ok := err.(E)
			if !ok {
				return fmt.Errorf("property %s: %T is not %s", name, err, reflect.TypeFor[E]())
			}
			var v V
			if err := jsoncodec.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("property %s: %w", name, err)
			}
			set(e, v)
			return nil
		},
	}
}

// Kind describes how to rebuild one error type.
type Kind struct {
	Name       string
	New        func(message string) error
	Properties []Property
}

// Registry maps stable type names to kinds. Populate it at startup; lookups
// are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Kind
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Kind)}
}

// Register adds k. Names must be unique.
func (r *Registry) Register(k Kind) error {
	if k.Name == "" {
		return errspkg.ErrKindNameRequired
	}
	if k.New == nil {
		return fmt.Errorf("%w: %s", errspkg.ErrKindFactoryRequired, k.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[k.Name]; exists {
		return fmt.Errorf("%w: %s", errspkg.ErrDuplicateKind, k.Name)
	}
	r.byName[k.Name] = k
	return nil
}

// RegisterKind registers E under its fully-qualified Go type name.
func RegisterKind[E error](r *Registry, newFn func(message string) E, props ...Property) error {
	if newFn == nil {
		return errspkg.ErrKindFactoryRequired
	}
	return r.Register(Kind{
		Name:       names.OfType[E](),
		New:        func(message string) error { return newFn(message) },
		Properties: props,
	})
}

// Lookup resolves a wire type name.
func (r *Registry) Lookup(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byName[name]
	return k, ok
}

// Names lists registered kinds in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the shared registry holding the interaction error
// taxonomy. Applications may register their own kinds on it during startup.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewTaxonomyRegistry()
	})
	return defaultRegistry
}

// NewTaxonomyRegistry returns a fresh registry holding the interaction error
// taxonomy with its persisted properties.
func NewTaxonomyRegistry() *Registry {
	r := NewRegistry()
	must(RegisterKind(r,
		func(m string) *errspkg.InvalidRequestError { return &errspkg.InvalidRequestError{Msg: m} },
		invocationIDField[*errspkg.InvalidRequestError](func(e *errspkg.InvalidRequestError) *ids.InvocationID { return &e.Invocation }),
		findingsField[*errspkg.InvalidRequestError](func(e *errspkg.InvalidRequestError) *[]validation.Result { return &e.Findings }),
	))
	must(RegisterKind(r,
		func(m string) *errspkg.InvalidResponseError { return &errspkg.InvalidResponseError{Msg: m} },
		invocationIDField[*errspkg.InvalidResponseError](func(e *errspkg.InvalidResponseError) *ids.InvocationID { return &e.Invocation }),
		findingsField[*errspkg.InvalidResponseError](func(e *errspkg.InvalidResponseError) *[]validation.Result { return &e.Findings }),
	))
	must(RegisterKind(r,
		func(m string) *errspkg.MissingInteractorError { return &errspkg.MissingInteractorError{Msg: m} },
		Field("RequestType",
			func(e *errspkg.MissingInteractorError) string { return e.RequestType },
			func(e *errspkg.MissingInteractorError, v string) { e.RequestType = v }),
	))
	must(RegisterKind(r,
		func(m string) *errspkg.RejectedByLimiterError { return &errspkg.RejectedByLimiterError{Msg: m} },
		Field("RequestType",
			func(e *errspkg.RejectedByLimiterError) string { return e.RequestType },
			func(e *errspkg.RejectedByLimiterError, v string) { e.RequestType = v }),
		Field("Key",
			func(e *errspkg.RejectedByLimiterError) string { return e.Key },
			func(e *errspkg.RejectedByLimiterError, v string) { e.Key = v }),
	))
	must(RegisterKind(r,
		func(m string) *errspkg.UnexpectedError { return &errspkg.UnexpectedError{Msg: m} },
	))
	return r
}

func invocationIDField[E error](ref func(E) *ids.InvocationID) Property {
	return Field("InvocationId",
		func(e E) ids.InvocationID { return *ref(e) },
		func(e E, v ids.InvocationID) { *ref(e) = v })
}

// findingsField writes member names with the codec's policy rather than the
// process-wide one.
func findingsField[E error](ref func(E) *[]validation.Result) Property {
	const name = "Errors"
	return Property{
		Name: name,
		get: func(err error, p casing.Policy) (any, bool) {
			e, ok := err.(E)
			if !ok || *ref(e) == nil {
				return nil, false
			}
			return findings{policy: p, results: *ref(e)}, true
		},
		set: func(err error, raw json.RawMessage, p casing.Policy) error {
			e, ok := err.(E)
			if !ok {
				return fmt.Errorf("property %s: %T is not %s", name, err, reflect.TypeFor[E]())
			}
			results, decErr := validation.UnmarshalResults(p, raw)
			if decErr != nil {
				return fmt.Errorf("property %s: %w", name, decErr)
			}
			*ref(e) = results
			return nil
		},
	}
}

type findings struct {
	policy  casing.Policy
	results []validation.Result
}

func (f findings) MarshalJSON() ([]byte, error) {
	return validation.MarshalResults(f.policy, f.results)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
