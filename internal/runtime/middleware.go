package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	"github.com/drblury/interactor/internal/runtime/interaction"
	"github.com/drblury/interactor/internal/runtime/limiter"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
	metricspkg "github.com/drblury/interactor/internal/runtime/metrics"
)

const tracerName = "github.com/drblury/interactor"

// Call describes one dispatch as seen by middleware.
type Call struct {
	Invocation interaction.Invocation
	// RequestType is the fully-qualified request type name.
	RequestType   string
	Signal        cancellation.Signal
	CorrelationID string
	// Interactor is set once the handler has been resolved.
	Interactor string
	StartedAt  time.Time
	State      DispatchState

	stats   *InteractorStats
	handler Handler
}

// Invoker runs the remainder of a dispatch. The handler is already resolved
// when the chain starts; the innermost Invoker validates the request and
// invokes it.
type Invoker func(ctx context.Context, call *Call) (any, error)

// Middleware wraps an Invoker.
type Middleware func(next Invoker) Invoker

// MiddlewareBuilder constructs a middleware using the provided dispatcher instance.
type MiddlewareBuilder func(*Dispatcher) (Middleware, error)

// MiddlewareRegistration captures how a middleware should be registered on a Dispatcher.
type MiddlewareRegistration struct {
	Name       string
	Middleware Middleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the standard middleware chain used by the Dispatcher constructor.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		LogInteractionsMiddleware(nil),
		TracerMiddleware(),
		MetricsMiddleware(),
		RecovererMiddleware(),
		LimiterMiddleware(nil),
	}
}

// RegisterMiddleware appends the supplied middleware to the chain. The first
// registered middleware is the outermost.
func (d *Dispatcher) RegisterMiddleware(cfg MiddlewareRegistration) error {
	var mw Middleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(d)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	d.middlewares = append(d.middlewares, mw)
	d.chain = d.buildChain()
	return nil
}

func (d *Dispatcher) buildChain() Invoker {
	next := d.invokeHandler
	for i := len(d.middlewares) - 1; i >= 0; i-- {
		next = d.middlewares[i](next)
	}
	return next
}

// LogInteractionsMiddleware logs every dispatch at debug level.
func LogInteractionsMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_interactions",
		Builder: func(d *Dispatcher) (Middleware, error) {
			l := logger
			if l == nil {
				l = d.Logger
			}
			if l == nil {
				return nil, errors.New("log interactions middleware requires a logger")
			}
			return logInteractionsMiddleware(l), nil
		},
	}
}

func logInteractionsMiddleware(logger loggingpkg.ServiceLogger) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, call *Call) (any, error) {
			fields := loggingpkg.DispatchFields(call.RequestType, call.Invocation.InvocationID().String(), call.CorrelationID)
			logger.Debug("Dispatching interaction", fields.With("ignore_cache", call.Invocation.IgnoresCache()))
			return next(ctx, call)
		}
	}
}

// TracerMiddleware wraps handler execution in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "tracer",
		Middleware: tracerMiddleware,
	}
}

func tracerMiddleware(next Invoker) Invoker {
	return func(ctx context.Context, call *Call) (any, error) {
		ctx, span := otel.Tracer(tracerName).Start(ctx, "Dispatch "+call.RequestType,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("interaction.request_type", call.RequestType),
				attribute.String("interaction.invocation_id", call.Invocation.InvocationID().String()),
				attribute.String("interaction.correlation_id", call.CorrelationID),
			),
		)
		defer span.End()

		resp, err := next(ctx, call)
		if call.Interactor != "" {
			span.SetAttributes(attribute.String("interaction.interactor", call.Interactor))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return resp, err
	}
}

// MetricsMiddleware registers the dispatch collectors and exposes them on
// MetricsPort. Counting itself happens in the dispatcher so that failures
// before the chain runs are recorded too.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(d *Dispatcher) (Middleware, error) {
			if !d.Conf.MetricsEnabled {
				return nil, nil
			}
			if d.metrics == nil {
				d.metrics = metricspkg.NewDispatchMetrics(nil)
			}
			if err := d.metrics.Register(); err != nil {
				return nil, err
			}
			if d.Conf.MetricsPort > 0 {
				d.RegisterHTTPHandler(d.Conf.MetricsPort, "/metrics", promhttp.Handler())
			}
			return nil, nil
		},
	}
}

// LimiterMiddleware rejects requests implementing limiter.Keyed once their
// budget is spent. A nil limiter falls back to the dispatcher's Limiter.
func LimiterMiddleware(l limiter.Limiter) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "limiter",
		Builder: func(d *Dispatcher) (Middleware, error) {
			lim := l
			if lim == nil {
				lim = d.limiter
			}
			if lim == nil {
				return nil, nil
			}
			return d.limiterMiddleware(lim), nil
		},
	}
}

func (d *Dispatcher) limiterMiddleware(l limiter.Limiter) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, call *Call) (any, error) {
			keyed, ok := call.Invocation.RequestValue().(limiter.Keyed)
			if !ok {
				return next(ctx, call)
			}
			if err := limiter.LimitOrThrow(ctx, l, keyed); err != nil {
				if d.metrics != nil && metricspkg.OutcomeOf(err) == metricspkg.OutcomeRejected {
					d.metrics.RecordLimiterRejection(call.RequestType)
				}
				return nil, err
			}
			return next(ctx, call)
		}
	}
}

// RecovererMiddleware converts handler panics into errors, which the
// dispatcher then reports as unexpected failures.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: recovererMiddleware,
	}
}

func recovererMiddleware(next Invoker) Invoker {
	return func(ctx context.Context, call *Call) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				resp = nil
				err = middleware.RecoveredPanicError{V: r, Stacktrace: string(debug.Stack())}
			}
		}()
		return next(ctx, call)
	}
}

// TimeoutMiddleware bounds every dispatch that has no deadline of its own.
// Non-cancellable requests are left alone.
func TimeoutMiddleware(timeout time.Duration) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "timeout",
		Builder: func(d *Dispatcher) (Middleware, error) {
			if timeout <= 0 {
				return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
			}
			return func(next Invoker) Invoker {
				return func(ctx context.Context, call *Call) (any, error) {
					if d.annotations.IsNonCancellable(call.Invocation.RequestType()) {
						return next(ctx, call)
					}
					if _, ok := ctx.Deadline(); ok {
						return next(ctx, call)
					}
					ctx, cancel := context.WithTimeout(ctx, timeout)
					defer cancel()
					call.Signal = ctx
					call.Invocation.SetCancellation(ctx)
					return next(cancellation.Bind(ctx, ctx), call)
				}
			}, nil
		},
	}
}
