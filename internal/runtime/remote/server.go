package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/drblury/interactor/internal/runtime"
	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
	metadatapkg "github.com/drblury/interactor/internal/runtime/metadata"
	metricspkg "github.com/drblury/interactor/internal/runtime/metrics"
)

const serverHandlerName = "interactor-remote-server"

// ServerConfig tunes a Server. Zero values fall back to the dispatcher
// configuration and then to the package defaults.
type ServerConfig struct {
	RequestTopic string
	ReplyTopic   string
	// Concurrency bounds the requests dispatched at the same time.
	Concurrency int
}

// Server consumes remote requests and dispatches them on a Dispatcher.
//
// Messages are acknowledged once a worker picks them up, so a nested remote
// call served by the same Server never waits on its own caller.
type Server struct {
	dispatcher *runtime.Dispatcher
	publisher  message.Publisher
	router     *message.Router
	logger     loggingpkg.ServiceLogger

	requestTopic string
	replyTopic   string
	concurrency  int

	mu      sync.Mutex
	ctx     context.Context
	workers *errgroup.Group
}

// NewServer builds a Server over the dispatcher transport. Call Run, or add
// the Server to the dispatcher with AddRunner, to start consuming.
func NewServer(d *runtime.Dispatcher, cfg ServerConfig) (*Server, error) {
	if d == nil {
		return nil, errspkg.ErrDispatcherRequired
	}
	cfg = cfg.withDefaults(d)

	transport, err := d.Transport(context.Background())
	if err != nil {
		return nil, err
	}
	if transport.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if transport.Subscriber == nil {
		return nil, errspkg.ErrSubscriberRequired
	}

	router, err := message.NewRouter(message.RouterConfig{}, loggingpkg.NewWatermillAdapter(d.Logger))
	if err != nil {
		return nil, fmt.Errorf("remote: create router: %w", err)
	}
	router.AddMiddleware(middleware.CorrelationID, middleware.Recoverer)

	s := &Server{
		dispatcher:   d,
		publisher:    transport.Publisher,
		router:       router,
		logger:       loggingpkg.OrNop(d.Logger),
		requestTopic: cfg.RequestTopic,
		replyTopic:   cfg.ReplyTopic,
		concurrency:  cfg.Concurrency,
	}
	router.AddNoPublisherHandler(serverHandlerName, cfg.RequestTopic, transport.Subscriber, s.handle)
	return s, nil
}

// Serve builds a Server and registers it to run with the dispatcher.
func Serve(d *runtime.Dispatcher, cfg ServerConfig) (*Server, error) {
	s, err := NewServer(d, cfg)
	if err != nil {
		return nil, err
	}
	d.AddRunner(s)
	return s, nil
}

func (cfg ServerConfig) withDefaults(d *runtime.Dispatcher) ServerConfig {
	if cfg.RequestTopic == "" && d.Conf != nil {
		cfg.RequestTopic = d.Conf.RemoteRequestTopic
	}
	if cfg.RequestTopic == "" {
		cfg.RequestTopic = defaultRequestTopic
	}
	if cfg.ReplyTopic == "" && d.Conf != nil {
		cfg.ReplyTopic = d.Conf.RemoteReplyTopic
	}
	if cfg.ReplyTopic == "" {
		cfg.ReplyTopic = defaultReplyTopic
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return cfg
}

// Run consumes requests until ctx is cancelled, then waits for the requests
// already picked up.
func (s *Server) Run(ctx context.Context) error {
	workers := &errgroup.Group{}
	workers.SetLimit(s.concurrency)

	s.mu.Lock()
	s.ctx = ctx
	s.workers = workers
	s.mu.Unlock()

	s.logger.Info("Starting remote interactor server", loggingpkg.LogFields{
		"request_topic": s.requestTopic,
		"reply_topic":   s.replyTopic,
	})

	err := s.router.Run(ctx)
	_ = workers.Wait()
	return err
}

// Running is closed once the Server is subscribed to the request topic.
func (s *Server) Running() chan struct{} {
	return s.router.Running()
}

func (s *Server) handle(msg *message.Message) error {
	s.mu.Lock()
	ctx, workers := s.ctx, s.workers
	s.mu.Unlock()

	msg = msg.Copy()
	workers.Go(func() error {
		s.serve(ctx, msg)
		return nil
	})
	return nil
}

// serve dispatches one request and publishes its reply. Failures to reply
// are logged; the caller sees them as a timeout.
func (s *Server) serve(ctx context.Context, msg *message.Message) {
	md := metadatapkg.Of(msg)
	fields := loggingpkg.DispatchFields(md.RequestType(), md.InvocationID(), md.CorrelationID())

	result, err := s.dispatch(ctx, md, msg.Payload)
	s.record("received", metricspkg.OutcomeOf(err))

	reply := Reply{OK: err == nil}
	if err == nil {
		reply.Result, err = jsoncodec.Marshal(result)
		if err != nil {
			reply = Reply{}
			err = errspkg.WrapUnexpected(fmt.Errorf("remote: encode %s result: %w", md.RequestType(), err))
		}
	}
	if err != nil {
		reply.Error = s.dispatcher.Codec().EncodeValue(err)
	}

	out, encErr := newReplyMessage(reply, md)
	if encErr != nil {
		s.logger.Error("Failed to encode remote reply", encErr, fields)
		return
	}

	topic := md.ReplyTopic()
	if topic == "" {
		topic = s.replyTopic
	}
	if pubErr := s.publisher.Publish(topic, out); pubErr != nil {
		s.logger.Error("Failed to publish remote reply", pubErr, fields)
		return
	}
	s.record("replied", metricspkg.OutcomeOf(err))
}

func (s *Server) dispatch(ctx context.Context, md metadatapkg.Metadata, payload []byte) (any, error) {
	reg, ok := s.dispatcher.Registry().Lookup(md.RequestType())
	if !ok || reg.Info().Remote {
		// Proxies are never served, a request always lands on a local handler.
		return nil, errspkg.NewMissingInteractorError(md.RequestType())
	}

	id, err := ids.ParseInvocationID(md.InvocationID())
	if err != nil || id.IsNil() {
		id = ids.NewInvocationID()
	}

	inv, err := reg.Decode(id, payload)
	if err != nil {
		return nil, errspkg.WrapUnexpected(fmt.Errorf("remote: decode %s request: %w", md.RequestType(), err))
	}

	if correlationID := md.CorrelationID(); correlationID != "" {
		ctx = ids.WithCorrelationID(ctx, correlationID)
	}
	if deadline, ok := md.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	ctx = cancellation.Bind(ctx, ctx)

	return s.dispatcher.Invoke(ctx, inv)
}

func (s *Server) record(direction string, outcome metricspkg.Outcome) {
	if m := s.dispatcher.Metrics(); m != nil {
		m.RecordRemote(direction, outcome)
	}
}
