/*
Package runtime provides the interaction dispatcher behind the interactor package.

# Architecture Overview

A request is wrapped in an interaction context, handed to the Dispatcher and
routed to the single interactor registered for its request type. The
dispatcher resolves the cancellation signal, finds the handler, collects
validation findings and invokes the handler through a middleware chain.
Whatever the handler returns is classified so callers only ever see nil, a
cancellation error or a member of the interaction error taxonomy.

# Package Structure

## Dispatcher (dispatcher.go, invoke.go)

The Dispatcher wires together:
  - Interactor registry and resolver
  - Request/response validation runner
  - Middleware chain
  - Exception wire codec for process boundaries
  - Watermill transport for the remote bridge
  - HTTP servers for metrics and the web UI

## Registration (registration.go)

RegisterInteractor attaches a typed HandlerFunc to a request type and wires
its request and response schemas. Registrations are indexed by Go type for
local dispatch and by fully-qualified type name for the remote bridge.

## Builder (builder.go)

Dispatch, Send and NewRequest give typed access to Invoke.

## Middleware (middleware.go)

Composable stages around handler invocation:
  - LogInteractions: Debug logging of each dispatch
  - Tracer: OpenTelemetry spans
  - Metrics: Prometheus collector registration and /metrics endpoint
  - Limiter: Keyed request limiting
  - Recoverer: Panic recovery
  - Timeout: Optional upper bound for cancellable dispatches

## Stats & Monitoring (models.go, resources.go, hooks.go)

Per-interactor statistics:
  - Latency percentiles (p50, p95, p99)
  - Throughput tracking
  - Error categorization by taxonomy kind
  - Resource usage sampling
  - In-flight concurrency

DispatchHooks observe the start and the classified end of every dispatch.

## WebUI (webui.go)

HTTP API for introspecting registrations, their statistics and the dispatch
metrics snapshot.

# Sub-packages

  - cancellation/: Ambient cancellation signal carried in context.Context
  - interaction/: Per-dispatch interaction context
  - validation/: Findings, schemas, struct-tag engine
  - errors/: Sentinel errors and the interaction error taxonomy
  - wire/: Exception wire codec
  - casing/: Wire name casing
  - limiter/: Sliding-window limiter with memory and Redis stores
  - names/, ids/: Type names, correlation and invocation ids
  - config/: Configuration with envconfig loading and validation
  - logging/: Logger interface and adapters
  - metadata/: Remote message metadata
  - metrics/: Prometheus collectors
  - transport/: Pub/sub transports (Go channels, Kafka, RabbitMQ, NATS, HTTP)
  - remote/: Remote dispatch bridge
  - httpx/: HTTP boundary helpers for encoded exceptions

# Usage Example

	d, err := interactor.NewDispatcher(cfg, logger, interactor.DispatcherDependencies{})
	if err != nil {
		return err
	}

	err = interactor.RegisterInteractor(d, interactor.InteractorRegistration[GetUser, User]{
		Handler: getUser,
	})

	user, err := interactor.Send[GetUser, User](ctx, d, GetUser{ID: "42"})
*/
package runtime
