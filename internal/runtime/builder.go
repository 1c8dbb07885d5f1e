package runtime

import (
	"context"
	"fmt"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/interaction"
	"github.com/drblury/interactor/internal/runtime/names"
)

// Dispatch invokes ic and asserts the response type.
func Dispatch[Req, Resp any](ctx context.Context, d *Dispatcher, ic *interaction.Context[Req]) (Resp, error) {
	var zero Resp
	if d == nil {
		return zero, errspkg.ErrDispatcherRequired
	}
	if ic == nil {
		return zero, errspkg.ErrContextRequired
	}

	result, err := d.Invoke(ctx, ic)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	resp, ok := result.(Resp)
	if !ok {
		return zero, errspkg.WrapUnexpected(fmt.Errorf(
			"interactor for %s returned %T, expected %s",
			names.OfType[Req](), result, names.OfType[Resp](),
		))
	}
	return resp, nil
}

// Send wraps req in a fresh interaction context and dispatches it.
func Send[Req, Resp any](ctx context.Context, d *Dispatcher, req Req) (Resp, error) {
	return Dispatch[Req, Resp](ctx, d, interaction.New(req))
}

// RequestBuilder configures a single dispatch fluently:
//
//	resp, err := runtime.NewRequest[GetUser, User](d, GetUser{ID: id}).
//		WithCancellation(sig).
//		IgnoreCache(true).
//		Dispatch(ctx)
type RequestBuilder[Req, Resp any] struct {
	d  *Dispatcher
	ic *interaction.Context[Req]
}

func NewRequest[Req, Resp any](d *Dispatcher, req Req) *RequestBuilder[Req, Resp] {
	return &RequestBuilder[Req, Resp]{d: d, ic: interaction.New(req)}
}

// WithCancellation overrides the ambient cancellation signal.
func (b *RequestBuilder[Req, Resp]) WithCancellation(s cancellation.Signal) *RequestBuilder[Req, Resp] {
	b.ic.WithCancellation(s)
	return b
}

func (b *RequestBuilder[Req, Resp]) IgnoreCache(ignore bool) *RequestBuilder[Req, Resp] {
	b.ic.WithIgnoreCache(ignore)
	return b
}

// Context exposes the interaction context, e.g. to read its invocation id.
func (b *RequestBuilder[Req, Resp]) Context() *interaction.Context[Req] {
	return b.ic
}

func (b *RequestBuilder[Req, Resp]) Dispatch(ctx context.Context) (Resp, error) {
	return Dispatch[Req, Resp](ctx, b.d, b.ic)
}
