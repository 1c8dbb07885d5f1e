package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/interactor/internal/runtime"
	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
	metadatapkg "github.com/drblury/interactor/internal/runtime/metadata"
	metricspkg "github.com/drblury/interactor/internal/runtime/metrics"
)

// ClientConfig tunes a Client. Zero values fall back to the dispatcher
// configuration and then to the package defaults.
type ClientConfig struct {
	RequestTopic string
	// ReplyTopic must be unique per client process when several processes
	// share a transport, otherwise replies are consumed by the wrong client.
	ReplyTopic string
	Timeout    time.Duration
}

// Client publishes requests to a remote Server and waits for the replies.
type Client struct {
	dispatcher *runtime.Dispatcher
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     loggingpkg.ServiceLogger

	requestTopic string
	replyTopic   string
	timeout      time.Duration

	startOnce sync.Once
	startErr  error
	stop      context.CancelFunc
	done      chan struct{}

	mu      sync.Mutex
	pending map[string]chan *message.Message
}

// NewClient builds a Client over the dispatcher transport. The reply
// subscription starts with the first call.
func NewClient(d *runtime.Dispatcher, cfg ClientConfig) (*Client, error) {
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

	return &Client{
		dispatcher:   d,
		publisher:    transport.Publisher,
		subscriber:   transport.Subscriber,
		logger:       loggingpkg.OrNop(d.Logger),
		requestTopic: cfg.RequestTopic,
		replyTopic:   cfg.ReplyTopic,
		timeout:      cfg.Timeout,
		done:         make(chan struct{}),
		pending:      make(map[string]chan *message.Message),
	}, nil
}

func (cfg ClientConfig) withDefaults(d *runtime.Dispatcher) ClientConfig {
	if d.Conf != nil {
		if cfg.RequestTopic == "" {
			cfg.RequestTopic = d.Conf.RemoteRequestTopic
		}
		if cfg.ReplyTopic == "" {
			cfg.ReplyTopic = d.Conf.RemoteReplyTopic
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = d.Conf.RemoteTimeout
		}
	}
	if cfg.RequestTopic == "" {
		cfg.RequestTopic = defaultRequestTopic
	}
	if cfg.ReplyTopic == "" {
		cfg.ReplyTopic = defaultReplyTopic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// Start subscribes to the reply topic. It is safe to call more than once.
func (c *Client) Start() error {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		replies, err := c.subscriber.Subscribe(ctx, c.replyTopic)
		if err != nil {
			cancel()
			close(c.done)
			c.startErr = fmt.Errorf("remote: subscribe to %s: %w", c.replyTopic, err)
			return
		}
		c.stop = cancel
		go c.consume(replies)
	})
	return c.startErr
}

// Run starts the Client and stops it when ctx is cancelled, so a Client can be
// added to the dispatcher with AddRunner.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	c.Close()
	return nil
}

// Close stops the reply subscription. Pending calls keep waiting for their
// signal or timeout.
func (c *Client) Close() {
	c.startOnce.Do(func() { close(c.done) })
	if c.stop != nil {
		c.stop()
		<-c.done
	}
}

func (c *Client) consume(replies <-chan *message.Message) {
	defer close(c.done)
	for msg := range replies {
		key := metadatapkg.Of(msg).InvocationID()

		c.mu.Lock()
		waiter, ok := c.pending[key]
		delete(c.pending, key)
		c.mu.Unlock()

		if ok {
			waiter <- msg
		} else {
			c.logger.Debug("Dropping remote reply without a pending call", loggingpkg.LogFields{
				loggingpkg.FieldInvocationID: key,
			})
		}
		msg.Ack()
	}
}

// Call sends request to the interactor registered remotely for requestType
// and returns the encoded result. Remote failures come back as the errors the
// server raised, rebuilt by the dispatcher codec. The call gives up when
// signal fires or when no reply arrives within the client timeout.
func (c *Client) Call(ctx context.Context, requestType string, id ids.InvocationID, request any, signal cancellation.Signal) (json.RawMessage, error) {
	if err := c.Start(); err != nil {
		return nil, err
	}
	if signal == nil {
		signal = cancellation.Never
	}
	if err := cancellation.Check(signal); err != nil {
		return nil, err
	}

	correlationID := ids.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = ids.NewCorrelationID()
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	md := metadatapkg.New(
		metadatapkg.KeyRequestType, requestType,
		metadatapkg.KeyInvocationID, id.String(),
		metadatapkg.KeyCorrelationID, correlationID,
		metadatapkg.KeyReplyTopic, c.replyTopic,
	).WithDeadline(deadline)

	msg, err := newRequestMessage(request, md)
	if err != nil {
		return nil, errspkg.WrapUnexpected(fmt.Errorf("remote: encode %s request: %w", requestType, err))
	}

	key := id.String()
	waiter := make(chan *message.Message, 1)
	c.mu.Lock()
	c.pending[key] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	if err := c.publisher.Publish(c.requestTopic, msg); err != nil {
		c.record("sent", metricspkg.OutcomeUnexpected)
		return nil, fmt.Errorf("remote: publish %s request: %w", requestType, err)
	}
	c.record("sent", metricspkg.OutcomeOK)

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case reply := <-waiter:
		return c.decode(reply)
	case <-signal.Done():
		return nil, cancellation.Check(signal)
	case <-timer.C:
		return nil, fmt.Errorf("remote: no reply for %s within %s: %w", requestType, c.timeout, context.DeadlineExceeded)
	}
}

func (c *Client) decode(msg *message.Message) (json.RawMessage, error) {
	reply, err := decodeReply(msg)
	if err != nil {
		return nil, errspkg.WrapUnexpected(fmt.Errorf("remote: decode reply: %w", err))
	}
	if !reply.OK {
		return nil, c.dispatcher.Codec().Decode(reply.Error)
	}
	return reply.Result, nil
}

func (c *Client) record(direction string, outcome metricspkg.Outcome) {
	if m := c.dispatcher.Metrics(); m != nil {
		m.RecordRemote(direction, outcome)
	}
}
