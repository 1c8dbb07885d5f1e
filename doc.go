// Package interactor dispatches typed requests to the single interactor
// registered for their request type. Every dispatch runs the same steps. The
// dispatcher resolves the ambient cancellation signal and finds the handler.
// It then collects validation findings and invokes the handler through a
// middleware chain. Whatever comes back is classified, so callers only ever see
// a result, a cancellation error or one of the interaction errors
// (InvalidRequestError, InvalidResponseError, MissingInteractorError,
// RejectedByLimiterError, UnexpectedError).
//
// A minimal setup fills Config (or calls LoadConfig to read INTERACTOR_*
// environment variables), creates a Dispatcher, registers interactors with
// RegisterInteractor and sends requests with Send, Dispatch or NewRequest.
//
// # Cancellation
//
// The cancellation signal travels in context.Context. Scopes installed with
// WithCancellation or Within are visible to nested dispatches. A request can
// override the ambient signal, and request types implementing NonCancellable
// always run with Never.
//
// # Validation
//
// Request and response schemas, validator struct tags and SelfValidating
// models add findings to the interaction context. Handlers decide whether to
// reject a request with Context.RequireValid or Context.InvalidRequest.
//
// # Process boundaries
//
// ExceptionCodec writes interaction errors as JSON payloads and rebuilds them
// on the other side, never leaking the cause of an UnexpectedError.
// WriteHTTPError and DecodeHTTPResponse carry them over HTTP. The remote bridge
// carries them over a Watermill transport: ServeRemote exposes the local
// interactors and RegisterProxy forwards a request type to another process.
//
// # Middleware
//
// The default chain logs dispatches and opens OpenTelemetry spans. It also
// records Prometheus metrics and recovers panics. LimiterMiddleware and
// TimeoutMiddleware are opt-in. DispatchHooks observe the start and the
// classified end of every dispatch.
package interactor
