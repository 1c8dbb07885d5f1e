// Package interaction holds the per-dispatch state of one request: the
// request value, its invocation id, the findings collected while validating
// it and the cancellation signal it runs under.
package interaction

import (
	"reflect"
	"sync/atomic"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/validation"
)

// Invocation is the untyped view of a Context used by the dispatcher, the
// resolver and handler adapters.
type Invocation interface {
	RequestValue() any
	RequestType() reflect.Type
	InvocationID() ids.InvocationID
	Findings() *validation.Findings
	// CancellationOverride returns nil when the caller did not override the
	// ambient signal.
	CancellationOverride() cancellation.Signal
	IgnoresCache() bool
	// Cancellation returns the signal resolved by the dispatcher, or nil
	// before dispatch.
	Cancellation() cancellation.Signal
	SetCancellation(s cancellation.Signal)
	// MarkDispatched reports false when the invocation was already dispatched.
	MarkDispatched() bool
}

// NonCancellable marks request types that must run to completion even when the
// caller has been cancelled, for example audit writes.
type NonCancellable interface {
	NonCancellable()
}

type signalHolder struct{ s cancellation.Signal }

// Context carries one request through one dispatch. Build it with New, apply
// options before dispatch and do not reuse it afterwards.
type Context[R any] struct {
	request     R
	id          ids.InvocationID
	findings    validation.Findings
	override    cancellation.Signal
	ignoreCache bool
	resolved    atomic.Pointer[signalHolder]
	dispatched  atomic.Bool
}

// New wraps req with a fresh invocation id.
func New[R any](req R) *Context[R] {
	return &Context[R]{request: req, id: ids.NewInvocationID()}
}

// NewWithID continues an invocation started elsewhere. Only the remote bridge
// should need it; a local dispatch always gets a fresh id from New.
func NewWithID[R any](id ids.InvocationID, req R) *Context[R] {
	if id.IsNil() {
		id = ids.NewInvocationID()
	}
	return &Context[R]{request: req, id: id}
}

// WithCancellation overrides the ambient cancellation signal for this dispatch.
func (c *Context[R]) WithCancellation(s cancellation.Signal) *Context[R] {
	c.override = s
	return c
}

// WithIgnoreCache asks handlers to bypass their caches.
func (c *Context[R]) WithIgnoreCache(ignore bool) *Context[R] {
	c.ignoreCache = ignore
	return c
}

func (c *Context[R]) Request() R                                { return c.request }
func (c *Context[R]) RequestValue() any                         { return c.request }
func (c *Context[R]) RequestType() reflect.Type                 { return reflect.TypeFor[R]() }
func (c *Context[R]) InvocationID() ids.InvocationID            { return c.id }
func (c *Context[R]) Findings() *validation.Findings            { return &c.findings }
func (c *Context[R]) CancellationOverride() cancellation.Signal { return c.override }
func (c *Context[R]) IgnoresCache() bool                        { return c.ignoreCache }

func (c *Context[R]) Cancellation() cancellation.Signal {
	if h := c.resolved.Load(); h != nil {
		return h.s
	}
	return nil
}

func (c *Context[R]) SetCancellation(s cancellation.Signal) {
	c.resolved.Store(&signalHolder{s: s})
}

func (c *Context[R]) MarkDispatched() bool {
	return c.dispatched.CompareAndSwap(false, true)
}

// Valid reports whether validation produced no findings.
func (c *Context[R]) Valid() bool {
	return c.findings.Valid()
}

// Errors returns a snapshot of the collected findings.
func (c *Context[R]) Errors() []validation.Result {
	return c.findings.All()
}

// InvalidRequest builds the request validation error owned by this invocation.
func (c *Context[R]) InvalidRequest(message string) *errspkg.InvalidRequestError {
	return errspkg.NewInvalidRequestError(message, c.id, c.findings.All())
}

// InvalidResponse builds the response validation error owned by this invocation.
func (c *Context[R]) InvalidResponse(message string) *errspkg.InvalidResponseError {
	return errspkg.NewInvalidResponseError(message, c.id, c.findings.All())
}

// RequireValid returns InvalidRequest(message) when findings were collected.
func (c *Context[R]) RequireValid(message string) error {
	if c.Valid() {
		return nil
	}
	return c.InvalidRequest(message)
}

// IsNonCancellable reports whether t (or *t) implements NonCancellable.
func IsNonCancellable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	marker := reflect.TypeFor[NonCancellable]()
	if t.Implements(marker) {
		return true
	}
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(marker)
}
