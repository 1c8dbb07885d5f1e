package runtime

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/interaction"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
	metricspkg "github.com/drblury/interactor/internal/runtime/metrics"
	"github.com/drblury/interactor/internal/runtime/names"
	"github.com/drblury/interactor/internal/runtime/validation"
)

// DispatchState is the progress of one dispatch.
type DispatchState string

const (
	StateCreated              DispatchState = "created"
	StateCancellationResolved DispatchState = "cancellation_resolved"
	StateHandlerResolved      DispatchState = "handler_resolved"
	StateValidated            DispatchState = "validated"
	StateInvoked              DispatchState = "invoked"
	StateCompleted            DispatchState = "completed"
	StateFailed               DispatchState = "failed"
	StateCancelled            DispatchState = "cancelled"
)

// Invoke dispatches inv to the interactor registered for its request type.
//
// The returned error is nil, a cancellation error (errors.Is matches
// context.Canceled or context.DeadlineExceeded) or a member of the
// interaction error taxonomy. Any other failure is wrapped in
// *errors.UnexpectedError.
func (d *Dispatcher) Invoke(ctx context.Context, inv interaction.Invocation) (any, error) {
	if d == nil {
		return nil, errspkg.ErrDispatcherRequired
	}
	if isNilInvocation(inv) {
		return nil, errspkg.ErrContextRequired
	}
	if !inv.MarkDispatched() {
		return nil, errspkg.ErrContextReused
	}
	if ctx == nil {
		ctx = context.Background()
	}

	call := &Call{
		Invocation:  inv,
		RequestType: names.Of(inv.RequestType()),
		StartedAt:   time.Now(),
		State:       StateCreated,
	}

	call.CorrelationID = ids.CorrelationID(ctx)
	if call.CorrelationID == "" {
		call.CorrelationID = ids.NewCorrelationID()
		ctx = ids.WithCorrelationID(ctx, call.CorrelationID)
	}

	signal := d.resolveSignal(ctx, inv)
	inv.SetCancellation(signal)
	ctx = cancellation.Bind(ctx, signal)
	call.Signal = signal
	call.State = StateCancellationResolved

	var finish func(metricspkg.Outcome)
	if d.metrics != nil {
		finish = d.metrics.Begin(call.RequestType)
	}
	d.hooks.start(call.info(ctx))

	resp, err := d.run(ctx, call)

	switch {
	case err == nil:
		call.State = StateCompleted
	case cancellation.IsCancellation(err):
		call.State = StateCancelled
	default:
		call.State = StateFailed
	}
	if finish != nil {
		finish(metricspkg.OutcomeOf(err))
	}
	d.observe(ctx, call, err)
	return resp, err
}

func (d *Dispatcher) run(ctx context.Context, call *Call) (any, error) {
	if err := cancellation.Check(call.Signal); err != nil {
		return nil, err
	}
	if err := d.resolveHandler(call); err != nil {
		return nil, err
	}

	chain := d.chain
	if chain == nil {
		chain = d.invokeHandler
	}
	resp, err := chain(ctx, call)
	if err = d.classify(call, err); err != nil {
		return nil, err
	}

	if d.Conf.EnforceResponseValidation {
		if err := d.validateResponse(call.Invocation, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// resolveSignal picks the signal the dispatch runs under: never cancelled for
// non-cancellable request types, else the caller's override, else the
// ambient signal of ctx.
func (d *Dispatcher) resolveSignal(ctx context.Context, inv interaction.Invocation) cancellation.Signal {
	if d.annotations.IsNonCancellable(inv.RequestType()) {
		return cancellation.Never
	}
	if override := inv.CancellationOverride(); override != nil {
		return override
	}
	return cancellation.Current(ctx)
}

// resolveHandler finds the handler before any middleware runs, so a request
// type without an interactor never reaches the limiter or the tracer.
func (d *Dispatcher) resolveHandler(call *Call) error {
	handler, ok := d.resolver.Resolve(call.Invocation.RequestType())
	if !ok || handler == nil {
		return errspkg.NewMissingInteractorError(call.RequestType)
	}
	if reg, ok := handler.(*Registration); ok {
		call.Interactor = reg.info.Name
		call.stats = reg.info.Stats
		call.stats.onStart()
	}
	call.handler = handler
	call.State = StateHandlerResolved
	return nil
}

// invokeHandler is the innermost step of the middleware chain.
func (d *Dispatcher) invokeHandler(ctx context.Context, call *Call) (any, error) {
	// Findings are collected but never abort the dispatch; the handler decides.
	d.validator.ValidateRequest(call.Invocation.RequestValue(), call.Invocation.Findings())
	call.State = StateValidated

	resp, err := call.handler.Invoke(ctx, call.Invocation, call.Signal)
	call.State = StateInvoked
	return resp, err
}

// classify keeps the error contract of Invoke. A validation error owned by a
// different invocation, e.g. one raised by a nested dispatch, is not this
// invocation's validation failure and becomes unexpected.
func (d *Dispatcher) classify(call *Call, err error) error {
	if err == nil {
		return nil
	}
	var ie errspkg.InteractionError
	if errors.As(err, &ie) {
		ve, ok := ie.(errspkg.ValidationError)
		if !ok || ve.InvocationID() == call.Invocation.InvocationID() {
			return err
		}
	} else if cancellation.IsCancellation(err) {
		return err
	}

	if d.metrics != nil {
		d.metrics.RecordRewrapped(call.RequestType)
	}
	return errspkg.WrapUnexpected(err)
}

func (d *Dispatcher) validateResponse(inv interaction.Invocation, resp any) error {
	var findings validation.Findings
	if d.validator.ValidateResponse(resp, &findings) {
		return nil
	}
	return errspkg.NewInvalidResponseError("", inv.InvocationID(), findings.All())
}

func (d *Dispatcher) observe(ctx context.Context, call *Call, err error) {
	took := time.Since(call.StartedAt)
	if call.stats != nil {
		call.stats.onFinish(took, err, d.getErrorClassifier())
	}

	info := call.info(ctx)
	info.Duration = took
	d.hooks.finish(info, err)

	fields := loggingpkg.DispatchFields(call.RequestType, call.Invocation.InvocationID().String(), call.CorrelationID)
	fields[loggingpkg.FieldState] = string(call.State)
	fields[loggingpkg.FieldDurationMS] = took.Milliseconds()
	if call.Interactor != "" {
		fields[loggingpkg.FieldInteractor] = call.Interactor
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	d.Logger.Debug("Interaction finished", fields)
}

func (c *Call) info(ctx context.Context) DispatchInfo {
	return DispatchInfo{
		Interactor:    c.Interactor,
		RequestType:   c.RequestType,
		InvocationID:  c.Invocation.InvocationID(),
		CorrelationID: c.CorrelationID,
		Context:       ctx,
		StartedAt:     c.StartedAt,
		State:         c.State,
	}
}

func isNilInvocation(inv interaction.Invocation) bool {
	if inv == nil {
		return true
	}
	v := reflect.ValueOf(inv)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
