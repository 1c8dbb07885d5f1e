package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	configpkg "github.com/drblury/interactor/internal/runtime/config"
	"github.com/drblury/interactor/internal/runtime/interaction"
	"github.com/drblury/interactor/internal/runtime/limiter"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
	metricspkg "github.com/drblury/interactor/internal/runtime/metrics"
	transportpkg "github.com/drblury/interactor/internal/runtime/transport"
	"github.com/drblury/interactor/internal/runtime/validation"
	"github.com/drblury/interactor/internal/runtime/wire"
)

const shutdownTimeout = 5 * time.Second

// AnnotationQuery answers questions about request types that are declared on
// the type itself rather than at registration.
type AnnotationQuery interface {
	IsNonCancellable(requestType reflect.Type) bool
}

// AnnotationQueryFunc adapts a function to AnnotationQuery.
type AnnotationQueryFunc func(requestType reflect.Type) bool

func (f AnnotationQueryFunc) IsNonCancellable(requestType reflect.Type) bool { return f(requestType) }

// markerAnnotations reads the interaction.NonCancellable marker interface.
var markerAnnotations = AnnotationQueryFunc(interaction.IsNonCancellable)

// Runner is a long-running component started and stopped with the dispatcher,
// such as the remote bridge server.
type Runner interface {
	Run(ctx context.Context) error
}

// DispatcherDependencies holds the optional collaborators that the Dispatcher can use.
// Leave fields nil to get the defaults.
type DispatcherDependencies struct {
	// Validator runs in addition to the schemas and tags registered on the dispatcher.
	Validator validation.Validator
	// Resolver replaces the registry for handler lookup. Registrations still
	// land in the registry so the web UI and the remote bridge can see them.
	Resolver    Resolver
	Annotations AnnotationQuery
	// Limiter enables the limiter middleware for requests implementing limiter.Keyed.
	Limiter limiter.Limiter
	// Codec encodes exceptions at process boundaries. Defaults to the taxonomy registry.
	Codec   *wire.Codec
	Metrics *metricspkg.DispatchMetrics

	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	Hooks                     DispatchHooks
	ErrorClassifier           ErrorClassifier
	TransportFactory          transportpkg.Factory
}

// Dispatcher resolves, validates, invokes and classifies interactions.
type Dispatcher struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	registry    *Registry
	resolver    Resolver
	schemas     *validation.Runner
	validator   validation.Validator
	annotations AnnotationQuery
	limiter     limiter.Limiter
	codec       *wire.Codec
	metrics     *metricspkg.DispatchMetrics
	hooks       DispatchHooks

	middlewares []Middleware
	chain       Invoker

	transportFactory transportpkg.Factory
	transport        *transportpkg.Transport
	transportMu      sync.Mutex

	runners   []Runner
	runnersMu sync.Mutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	errorClassifier ErrorClassifier
	resourceTracker *resourceTracker
}

// NewDispatcher constructs a Dispatcher for the supplied configuration. Register
// interactors on the returned Dispatcher before dispatching or calling Start.
func NewDispatcher(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps DispatcherDependencies) (*Dispatcher, error) {
	if conf == nil {
		conf = &configpkg.Config{}
	}
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, err
	}
	log = loggingpkg.OrNop(log)
	log.Info("Creating interaction dispatcher", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	var runnerOpts []validation.RunnerOption
	if conf.TagValidation {
		runnerOpts = append(runnerOpts, validation.WithTagEngine(validation.NewTagEngine()))
	}
	schemas := validation.NewRunner(runnerOpts...)

	d := &Dispatcher{
		Conf:             conf,
		Logger:           log,
		registry:         NewRegistry(),
		schemas:          schemas,
		validator:        composeValidators(schemas, deps.Validator),
		annotations:      deps.Annotations,
		limiter:          deps.Limiter,
		codec:            deps.Codec,
		metrics:          deps.Metrics,
		hooks:            deps.Hooks,
		transportFactory: deps.TransportFactory,
		errorClassifier:  deps.ErrorClassifier,
		resourceTracker:  newResourceTracker(),
	}
	d.resolver = deps.Resolver
	if d.resolver == nil {
		d.resolver = d.registry
	}
	if d.annotations == nil {
		d.annotations = markerAnnotations
	}
	if d.codec == nil {
		d.codec = wire.NewCodec(wire.DefaultRegistry())
		d.codec.Casing = conf.WirePolicy()
	}
	if d.codec.Logger == nil {
		d.codec.Logger = log
	}
	if d.errorClassifier == nil {
		d.errorClassifier = defaultErrorClassifier
	}
	if d.transportFactory == nil {
		d.transportFactory = transportpkg.DefaultFactory()
	}
	if d.limiter == nil && conf.LimiterEnabled {
		lim, err := newConfiguredLimiter(conf)
		if err != nil {
			return nil, err
		}
		d.limiter = lim
	}
	if d.metrics == nil && conf.MetricsEnabled {
		d.metrics = metricspkg.NewDispatchMetrics(nil)
	}

	if err := d.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}
	return d, nil
}

func newConfiguredLimiter(conf *configpkg.Config) (limiter.Limiter, error) {
	policy := limiter.Policy{MaxRequests: conf.LimiterMaxRequests, Window: conf.LimiterWindow}

	var store limiter.Store = limiter.NewMemoryStore()
	if strings.EqualFold(conf.LimiterStore, "redis") {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		client, err := limiter.NewRedisClient(ctx, conf.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("limiter: %w", err)
		}
		store = limiter.NewRedisStore(client)
	}
	return limiter.NewWindowLimiter(store, policy)
}

func (d *Dispatcher) registerConfiguredMiddlewares(deps DispatcherDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := d.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// Registry returns the interactor registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Codec returns the exception wire codec.
func (d *Dispatcher) Codec() *wire.Codec { return d.codec }

// Metrics returns the Prometheus collectors, or nil when metrics are disabled.
func (d *Dispatcher) Metrics() *metricspkg.DispatchMetrics { return d.metrics }

// Schemas returns the runner holding the registered request/response schemas.
func (d *Dispatcher) Schemas() *validation.Runner { return d.schemas }

// AddHooks merges hooks after the ones already configured. Call before dispatching.
func (d *Dispatcher) AddHooks(hooks DispatchHooks) {
	d.hooks = d.hooks.Merge(hooks)
}

// AddRunner registers a component that Start runs alongside the HTTP servers.
func (d *Dispatcher) AddRunner(r Runner) {
	if r == nil {
		return
	}
	d.runnersMu.Lock()
	d.runners = append(d.runners, r)
	d.runnersMu.Unlock()
}

// Transport returns the publisher/subscriber pair used by the remote bridge,
// building it on first use.
func (d *Dispatcher) Transport(ctx context.Context) (transportpkg.Transport, error) {
	d.transportMu.Lock()
	defer d.transportMu.Unlock()

	if d.transport != nil {
		return *d.transport, nil
	}
	t, err := d.transportFactory.Build(ctx, d.Conf, loggingpkg.NewWatermillAdapter(d.Logger))
	if err != nil {
		return transportpkg.Transport{}, fmt.Errorf("build transport: %w", err)
	}
	d.transport = &t
	return t, nil
}

// Close releases the transport, if one was built.
func (d *Dispatcher) Close() error {
	d.transportMu.Lock()
	defer d.transportMu.Unlock()

	if d.transport == nil {
		return nil
	}
	err := d.transport.Close()
	d.transport = nil
	return err
}

// Start serves the registered HTTP handlers and runs every Runner until ctx
// is cancelled or one of them fails.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.StartWebUIServer()

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range d.httpServerList() {
		g.Go(func() error { return d.serveHTTP(ctx, srv) })
	}

	d.runnersMu.Lock()
	runners := append([]Runner(nil), d.runners...)
	d.runnersMu.Unlock()
	for _, r := range runners {
		g.Go(func() error { return r.Run(ctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Dispatcher) getErrorClassifier() ErrorClassifier {
	if d.errorClassifier == nil {
		return defaultErrorClassifier
	}
	return d.errorClassifier
}

func (d *Dispatcher) getResourceTracker() *resourceTracker {
	if d.resourceTracker == nil {
		d.resourceTracker = newResourceTracker()
	}
	return d.resourceTracker
}

// RegisterHTTPHandler mounts handler on the server listening on port.
func (d *Dispatcher) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	d.httpServersMu.Lock()
	defer d.httpServersMu.Unlock()

	if d.httpServers == nil {
		d.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := d.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		d.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (d *Dispatcher) httpServerList() []*http.Server {
	d.httpServersMu.Lock()
	defer d.httpServersMu.Unlock()

	servers := make([]*http.Server, 0, len(d.httpServers))
	for port, mux := range d.httpServers {
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}
	return servers
}

func (d *Dispatcher) serveHTTP(ctx context.Context, srv *http.Server) error {
	d.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})

	srv.BaseContext = func(net.Listener) context.Context { return ctx }
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		d.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
		return err
	}
	return nil
}

type composite []validation.Validator

func composeValidators(base validation.Validator, extra validation.Validator) validation.Validator {
	if extra == nil {
		return base
	}
	return composite{base, extra}
}

func (c composite) ValidateRequest(model any, f *validation.Findings) bool {
	valid := true
	for _, v := range c {
		valid = v.ValidateRequest(model, f) && valid
	}
	return valid
}

func (c composite) ValidateResponse(model any, f *validation.Findings) bool {
	valid := true
	for _, v := range c {
		valid = v.ValidateResponse(model, f) && valid
	}
	return valid
}
