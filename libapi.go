package interactor

import (
	"context"
	"net/http"

	runtimepkg "github.com/drblury/interactor/internal/runtime"
	"github.com/drblury/interactor/internal/runtime/cancellation"
	"github.com/drblury/interactor/internal/runtime/casing"
	configpkg "github.com/drblury/interactor/internal/runtime/config"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/httpx"
	idspkg "github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/interaction"
	jsoncodec "github.com/drblury/interactor/internal/runtime/jsoncodec"
	"github.com/drblury/interactor/internal/runtime/limiter"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
	metadatapkg "github.com/drblury/interactor/internal/runtime/metadata"
	metricspkg "github.com/drblury/interactor/internal/runtime/metrics"
	"github.com/drblury/interactor/internal/runtime/names"
	"github.com/drblury/interactor/internal/runtime/remote"
	transportpkg "github.com/drblury/interactor/internal/runtime/transport"
	"github.com/drblury/interactor/internal/runtime/validation"
	"github.com/drblury/interactor/internal/runtime/wire"
)

type (
	Config                 = configpkg.Config
	Dispatcher             = runtimepkg.Dispatcher
	DispatcherDependencies = runtimepkg.DispatcherDependencies
	Runner                 = runtimepkg.Runner
	Transport              = transportpkg.Transport
	TransportFactory       = transportpkg.Factory
	TransportFactoryFunc   = transportpkg.FactoryFunc

	InteractorRegistration[Req, Resp any] = runtimepkg.InteractorRegistration[Req, Resp]
	HandlerFunc[Req, Resp any]            = runtimepkg.HandlerFunc[Req, Resp]
	RequestBuilder[Req, Resp any]         = runtimepkg.RequestBuilder[Req, Resp]
	Handler                               = runtimepkg.Handler
	Resolver                              = runtimepkg.Resolver
	ResolverFunc                          = runtimepkg.ResolverFunc
	Registry                              = runtimepkg.Registry
	Registration                          = runtimepkg.Registration
	AnnotationQuery                       = runtimepkg.AnnotationQuery
	AnnotationQueryFunc                   = runtimepkg.AnnotationQueryFunc

	// Interaction context
	Context[R any] = interaction.Context[R]
	Invocation     = interaction.Invocation
	NonCancellable = interaction.NonCancellable
	InvocationID   = idspkg.InvocationID

	// Cancellation
	CancellationSignal = cancellation.Signal

	// Middleware
	Call                   = runtimepkg.Call
	Invoker                = runtimepkg.Invoker
	Middleware             = runtimepkg.Middleware
	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	// Dispatch hooks
	DispatchInfo  = runtimepkg.DispatchInfo
	DispatchHooks = runtimepkg.DispatchHooks
	DispatchState = runtimepkg.DispatchState

	// Validation
	ValidationResult   = validation.Result
	Findings           = validation.Findings
	Validator          = validation.Validator
	SelfValidating     = validation.SelfValidating
	Schema[T any]      = validation.Schema[T]
	ValidationRunner   = validation.Runner
	TagEngine          = validation.TagEngine
	CasingPolicy       = casing.Policy
	ValidationError    = errspkg.ValidationError
	InteractionError   = errspkg.InteractionError
	ExceptionPayload   = wire.Payload
	ExceptionCodec     = wire.Codec
	ExceptionRegistry  = wire.Registry
	ExceptionKind      = wire.Kind
	ExceptionProperty  = wire.Property
	HTTPErrorWriter    = httpx.Writer
	HTTPErrorMeta      = httpx.Meta

	ConfigValidationError = errspkg.ConfigValidationError

	// Error taxonomy
	InvalidRequestError    = errspkg.InvalidRequestError
	InvalidResponseError   = errspkg.InvalidResponseError
	MissingInteractorError = errspkg.MissingInteractorError
	RejectedByLimiterError = errspkg.RejectedByLimiterError
	UnexpectedError        = errspkg.UnexpectedError

	// Limiter
	Keyed         = limiter.Keyed
	Limiter       = limiter.Limiter
	LimitResult   = limiter.Result
	LimitPolicy   = limiter.Policy
	LimiterStore  = limiter.Store
	WindowLimiter = limiter.WindowLimiter
	WindowOption  = limiter.WindowOption
	MemoryStore   = limiter.MemoryStore
	RedisStore    = limiter.RedisStore

	// Remote bridge
	RemoteServer                     = remote.Server
	RemoteServerConfig               = remote.ServerConfig
	RemoteClient                     = remote.Client
	RemoteClientConfig               = remote.ClientConfig
	ProxyRegistration[Req, Resp any] = remote.ProxyRegistration[Req, Resp]

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	InteractorInfo  = runtimepkg.InteractorInfo
	InteractorStats = runtimepkg.InteractorStats
	DispatchMetrics = metricspkg.DispatchMetrics

	// Error classification
	ErrorClassifier = runtimepkg.ErrorClassifier
	ErrorCategory   = runtimepkg.ErrorCategory
)

var (
	NewRegistry    = runtimepkg.NewRegistry
	LoadConfig     = configpkg.LoadConfig
	ValidateConfig = configpkg.ValidateConfig

	DefaultMiddlewares        = runtimepkg.DefaultMiddlewares
	LogInteractionsMiddleware = runtimepkg.LogInteractionsMiddleware
	TracerMiddleware          = runtimepkg.TracerMiddleware
	MetricsMiddleware         = runtimepkg.MetricsMiddleware
	LimiterMiddleware         = runtimepkg.LimiterMiddleware
	RecovererMiddleware       = runtimepkg.RecovererMiddleware
	TimeoutMiddleware         = runtimepkg.TimeoutMiddleware

	// Dispatch hooks
	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks

	// Cancellation
	Never                = cancellation.Never
	CurrentCancellation  = cancellation.Current
	SetCancellation      = cancellation.Set
	ForkCancellation     = cancellation.Fork
	WithCancellation     = cancellation.WithScope
	BindCancellation     = cancellation.Bind
	CheckCancellation    = cancellation.Check
	IsCancellation       = cancellation.IsCancellation
	IsNonCancellableType = interaction.IsNonCancellable

	// Validation
	NewValidationResult = validation.NewResult
	NewValidationRunner = validation.NewRunner
	NewTagEngine        = validation.NewTagEngine
	WithTagEngine       = validation.WithTagEngine
	CamelCase           = casing.CamelCase
	CanonicalCase       = casing.Canonical
	WireCasing          = casing.Wire
	SetWireCasing       = casing.SetWire

	// Error taxonomy
	NewInvalidRequestError    = errspkg.NewInvalidRequestError
	NewInvalidResponseError   = errspkg.NewInvalidResponseError
	NewMissingInteractorError = errspkg.NewMissingInteractorError
	NewRejectedByLimiterError = errspkg.NewRejectedByLimiterError
	NewUnexpectedError        = errspkg.NewUnexpectedError
	WrapUnexpected            = errspkg.WrapUnexpected
	IsInteractionError        = errspkg.IsInteractionError
	AsValidationError         = errspkg.AsValidationError

	// Exception wire codec
	NewExceptionCodec        = wire.NewCodec
	NewExceptionRegistry     = wire.NewRegistry
	NewTaxonomyRegistry      = wire.NewTaxonomyRegistry
	DefaultExceptionRegistry = wire.DefaultRegistry
	WriteHTTPError           = httpx.WriteError
	ReadHTTPError            = httpx.ReadError
	WriteJSON                = httpx.WriteJSON
	HTTPStatusOf             = httpx.StatusOf

	// Limiter
	NewWindowLimiter = limiter.NewWindowLimiter
	WithTypePolicy   = limiter.WithTypePolicy
	NewMemoryStore   = limiter.NewMemoryStore
	NewRedisStore    = limiter.NewRedisStore
	NewRedisClient   = limiter.NewRedisClient
	WithKeyPrefix    = limiter.WithKeyPrefix
	LimitOrThrow     = limiter.LimitOrThrow

	// Remote bridge
	NewRemoteServer = remote.NewServer
	ServeRemote     = remote.Serve
	NewRemoteClient = remote.NewClient

	StaticTransport  = transportpkg.Static
	DefaultTransport = transportpkg.DefaultFactory

	NewDispatchMetrics = metricspkg.NewDispatchMetrics

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrDispatcherRequired  = errspkg.ErrDispatcherRequired
	ErrContextRequired     = errspkg.ErrContextRequired
	ErrContextReused       = errspkg.ErrContextReused
	ErrHandlerRequired     = errspkg.ErrHandlerRequired
	ErrRequestTypeRequired = errspkg.ErrRequestTypeRequired
	ErrDuplicateInteractor = errspkg.ErrDuplicateInteractor
	ErrDuplicateKind       = errspkg.ErrDuplicateKind
	ErrPublisherRequired   = errspkg.ErrPublisherRequired
	ErrSubscriberRequired  = errspkg.ErrSubscriberRequired
	ErrConfigRequired      = errspkg.ErrConfigRequired
	ErrLoggerRequired      = errspkg.ErrLoggerRequired
	ErrStoreRequired       = errspkg.ErrStoreRequired
	ErrClientRequired      = errspkg.ErrClientRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger

	NewMetadata = metadatapkg.New

	NewInvocationID   = idspkg.NewInvocationID
	ParseInvocationID = idspkg.ParseInvocationID
	NewCorrelationID  = idspkg.NewCorrelationID
	CorrelationID     = idspkg.CorrelationID
	WithCorrelationID = idspkg.WithCorrelationID
	TypeName          = names.Of
	TypeNameOfValue   = names.OfValue
)

// HeaderCorrelationID carries the correlation id on HTTP error responses.
const HeaderCorrelationID = httpx.HeaderCorrelationID

// Dispatch states reported to DispatchHooks.
const (
	StateCreated              = runtimepkg.StateCreated
	StateCancellationResolved = runtimepkg.StateCancellationResolved
	StateHandlerResolved      = runtimepkg.StateHandlerResolved
	StateValidated            = runtimepkg.StateValidated
	StateInvoked              = runtimepkg.StateInvoked
	StateCompleted            = runtimepkg.StateCompleted
	StateFailed               = runtimepkg.StateFailed
	StateCancelled            = runtimepkg.StateCancelled
)

// Error category constants for ErrorClassifier.
const (
	ErrorCategoryNone          = runtimepkg.ErrorCategoryNone
	ErrorCategoryValidation    = runtimepkg.ErrorCategoryValidation
	ErrorCategoryConfiguration = runtimepkg.ErrorCategoryConfiguration
	ErrorCategoryPolicy        = runtimepkg.ErrorCategoryPolicy
	ErrorCategoryCancelled     = runtimepkg.ErrorCategoryCancelled
	ErrorCategoryUnexpected    = runtimepkg.ErrorCategoryUnexpected
	ErrorCategoryOther         = runtimepkg.ErrorCategoryOther
)

// Dependency health states shown in InteractorStats.
const (
	DependencyStatusUnknown  = runtimepkg.DependencyStatusUnknown
	DependencyStatusHealthy  = runtimepkg.DependencyStatusHealthy
	DependencyStatusDegraded = runtimepkg.DependencyStatusDegraded
)

// NewDispatcher builds a Dispatcher. When conf enables the remote bridge, the
// local interactors are also served to other processes once Start runs.
func NewDispatcher(conf *Config, log ServiceLogger, deps DispatcherDependencies) (*Dispatcher, error) {
	d, err := runtimepkg.NewDispatcher(conf, log, deps)
	if err != nil {
		return nil, err
	}
	if conf != nil && conf.RemoteEnabled {
		if _, err := remote.Serve(d, remote.ServerConfig{}); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func RegisterInteractor[Req, Resp any](d *Dispatcher, reg InteractorRegistration[Req, Resp]) error {
	return runtimepkg.RegisterInteractor(d, reg)
}

// Send dispatches req in a fresh interaction context.
func Send[Req, Resp any](ctx context.Context, d *Dispatcher, req Req) (Resp, error) {
	return runtimepkg.Send[Req, Resp](ctx, d, req)
}

func Dispatch[Req, Resp any](ctx context.Context, d *Dispatcher, ic *Context[Req]) (Resp, error) {
	return runtimepkg.Dispatch[Req, Resp](ctx, d, ic)
}

func NewRequest[Req, Resp any](d *Dispatcher, req Req) *RequestBuilder[Req, Resp] {
	return runtimepkg.NewRequest[Req, Resp](d, req)
}

// NewContext wraps req in an interaction context with a new invocation id.
func NewContext[R any](req R) *Context[R] {
	return interaction.New(req)
}

func NewContextWithID[R any](id InvocationID, req R) *Context[R] {
	return interaction.NewWithID(id, req)
}

// Within runs body with s as the ambient cancellation signal and returns its value.
func Within[T any](ctx context.Context, s CancellationSignal, body func(ctx context.Context) (T, error)) (T, error) {
	return cancellation.Within(ctx, s, body)
}

func NewSchema[T any]() *Schema[T] {
	return validation.NewSchema[T]()
}

func RegisterRequestSchema[T any](r *ValidationRunner, s *Schema[T]) {
	validation.RegisterRequest(r, s)
}

func RegisterResponseSchema[T any](r *ValidationRunner, s *Schema[T]) {
	validation.RegisterResponse(r, s)
}

// RegisterExceptionKind adds a custom error kind to the registry with the
// properties that cross the wire.
func RegisterExceptionKind[E error](r *ExceptionRegistry, newFn func(message string) E, props ...ExceptionProperty) error {
	return wire.RegisterKind(r, newFn, props...)
}

func ExceptionField[E error, V any](name string, get func(E) V, set func(E, V)) ExceptionProperty {
	return wire.Field(name, get, set)
}

func WithPolicyFor[R Keyed](p LimitPolicy) WindowOption {
	return limiter.WithPolicyFor[R](p)
}

// RegisterProxy registers an interactor for Req whose handler runs behind client.
func RegisterProxy[Req, Resp any](d *Dispatcher, reg ProxyRegistration[Req, Resp]) error {
	return remote.RegisterProxy(d, reg)
}

// DecodeHTTPResponse reads a typed result from resp, or the interaction error
// the server wrote.
func DecodeHTTPResponse[T any](resp *http.Response, codec *ExceptionCodec) (T, error) {
	return httpx.DecodeResponse[T](resp, codec)
}

func TypeNameOf[T any]() string {
	return names.OfType[T]()
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
