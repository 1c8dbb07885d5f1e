package runtime

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/interaction"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
	"github.com/drblury/interactor/internal/runtime/names"
	"github.com/drblury/interactor/internal/runtime/validation"
)

// Handler executes one request type. The dispatcher hands it a context bound
// to the resolved signal and the signal itself.
type Handler interface {
	Invoke(ctx context.Context, inv interaction.Invocation, signal cancellation.Signal) (any, error)
}

// HandlerFunc is the typed form of Handler used at registration.
type HandlerFunc[Req, Resp any] func(ctx context.Context, ic *interaction.Context[Req], signal cancellation.Signal) (Resp, error)

// Resolver finds the handler for a request type. A missing handler is
// reported with ok == false, never with an error.
type Resolver interface {
	Resolve(requestType reflect.Type) (Handler, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(requestType reflect.Type) (Handler, bool)

func (f ResolverFunc) Resolve(requestType reflect.Type) (Handler, bool) { return f(requestType) }

// InteractorRegistration wires a typed handler into the dispatcher.
type InteractorRegistration[Req, Resp any] struct {
	// Name defaults to the short request type name followed by "Interactor".
	Name           string
	Handler        HandlerFunc[Req, Resp]
	RequestSchema  *validation.Schema[Req]
	ResponseSchema *validation.Schema[Resp]
	// Dependencies are reported in the interactor stats.
	Dependencies []string
	// Remote marks handlers that forward to another process. The remote
	// server never serves them, so two bridges cannot bounce a request.
	Remote bool
}

// RegisterInteractor attaches the handler to the dispatcher's registry.
func RegisterInteractor[Req, Resp any](d *Dispatcher, reg InteractorRegistration[Req, Resp]) error {
	if d == nil {
		return errspkg.ErrDispatcherRequired
	}
	if reg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}
	requestType := reflect.TypeFor[Req]()
	if requestType.Kind() == reflect.Interface {
		return fmt.Errorf("%w: %s is an interface", errspkg.ErrRequestTypeRequired, requestType)
	}

	name := reg.Name
	if name == "" {
		name = names.Short(requestType) + "Interactor"
	}

	entry := &Registration{
		info: InteractorInfo{
			Name:         name,
			RequestType:  names.Of(requestType),
			ResponseType: names.OfType[Resp](),
			Remote:       reg.Remote,
			Stats:        newInteractorStats(reg.Dependencies, d.getResourceTracker()),
		},
		requestType: requestType,
		handler:     typedHandler[Req, Resp](reg.Handler),
		decode:      decodeInvocation[Req],
	}
	if err := d.registry.add(entry); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	if reg.RequestSchema != nil {
		validation.RegisterRequest(d.schemas, reg.RequestSchema)
	}
	if reg.ResponseSchema != nil {
		validation.RegisterResponse(d.schemas, reg.ResponseSchema)
	}

	d.Logger.Debug("Registered interactor", loggingpkg.LogFields{
		loggingpkg.FieldInteractor:  name,
		loggingpkg.FieldRequestType: entry.info.RequestType,
		"remote":                    reg.Remote,
	})
	return nil
}

type typedHandler[Req, Resp any] HandlerFunc[Req, Resp]

func (h typedHandler[Req, Resp]) Invoke(ctx context.Context, inv interaction.Invocation, signal cancellation.Signal) (any, error) {
	ic, ok := inv.(*interaction.Context[Req])
	if !ok {
		return nil, fmt.Errorf("invocation %T cannot be handled as %s", inv, names.OfType[Req]())
	}
	return h(ctx, ic, signal)
}

func decodeInvocation[Req any](id ids.InvocationID, payload []byte) (interaction.Invocation, error) {
	var req Req
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := jsoncodec.Unmarshal(trimmed, &req); err != nil {
			return nil, fmt.Errorf("decode %s: %w", names.OfType[Req](), err)
		}
	}
	return interaction.NewWithID(id, req), nil
}

// Registration is one registered interactor.
type Registration struct {
	info        InteractorInfo
	requestType reflect.Type
	handler     Handler
	decode      func(id ids.InvocationID, payload []byte) (interaction.Invocation, error)
}

func (r *Registration) Invoke(ctx context.Context, inv interaction.Invocation, signal cancellation.Signal) (any, error) {
	return r.handler.Invoke(ctx, inv, signal)
}

// Info describes the registration. Stats is shared, not copied.
func (r *Registration) Info() InteractorInfo { return r.info }

// Decode builds an invocation from a JSON request body, continuing the
// supplied invocation id.
func (r *Registration) Decode(id ids.InvocationID, payload []byte) (interaction.Invocation, error) {
	return r.decode(id, payload)
}

// Registry is the default Resolver. It is written at startup and read on
// every dispatch.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Registration
	byName map[string]*Registration
	order  []*Registration
}

func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*Registration),
		byName: make(map[string]*Registration),
	}
}

func (r *Registry) add(reg *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[reg.requestType]; exists {
		return errspkg.ErrDuplicateInteractor
	}
	if _, exists := r.byName[reg.info.RequestType]; exists {
		return errspkg.ErrDuplicateInteractor
	}
	r.byType[reg.requestType] = reg
	r.byName[reg.info.RequestType] = reg
	r.order = append(r.order, reg)
	return nil
}

func (r *Registry) Resolve(requestType reflect.Type) (Handler, bool) {
	reg, ok := r.lookupType(requestType)
	if !ok {
		return nil, false
	}
	return reg, true
}

func (r *Registry) lookupType(requestType reflect.Type) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byType[requestType]
	return reg, ok
}

// Lookup finds a registration by fully-qualified request type name.
func (r *Registry) Lookup(requestType string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byName[requestType]
	return reg, ok
}

// Registrations returns the registrations in registration order.
func (r *Registry) Registrations() []InteractorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]InteractorInfo, 0, len(r.order))
	for _, reg := range r.order {
		out = append(out, reg.info)
	}
	return out
}
