// Package transport builds the watermill publisher/subscriber pair used by the
// remote dispatch bridge.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/interactor/internal/runtime/config"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
)

// ErrUnsupportedTransport is returned for an unknown PubSubSystem value.
var ErrUnsupportedTransport = errors.New("interactor: unsupported transport")

// Transport combines a publisher and subscriber pair produced by a factory.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both halves. The channel transport shares one value for both,
// so it is closed once.
func (t Transport) Close() error {
	var errs []error
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	if t.Subscriber != nil && any(t.Subscriber) != any(t.Publisher) {
		errs = append(errs, t.Subscriber.Close())
	}
	return errors.Join(errs...)
}

// pair builds the publisher first and closes it again when the subscriber
// cannot be created, so a failed setup never leaks a half-open transport.
func pair(system string, newPublisher func() (message.Publisher, error), newSubscriber func() (message.Subscriber, error)) (Transport, error) {
	publisher, err := newPublisher()
	if err != nil {
		return Transport{}, fmt.Errorf("%s transport: publisher: %w", system, err)
	}
	subscriber, err := newSubscriber()
	if err != nil {
		_ = publisher.Close()
		return Transport{}, fmt.Errorf("%s transport: subscriber: %w", system, err)
	}
	return Transport{Publisher: publisher, Subscriber: subscriber}, nil
}

// Factory abstracts how the dispatcher initialises message transports.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// Static returns a factory that always hands out t. Useful when publisher and
// subscriber are created by the caller.
func Static(t Transport) Factory {
	return FactoryFunc(func(context.Context, *config.Config, watermill.LoggerAdapter) (Transport, error) {
		return t, nil
	})
}

// DefaultFactory returns the built-in transport factory keyed on
// Config.PubSubSystem.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(_ context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, errspkg.ErrConfigRequired
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	system := strings.ToLower(strings.TrimSpace(conf.PubSubSystem))
	switch system {
	case "", "channel", "gochannel":
		return channelTransport(conf, logger)
	case "kafka":
		return kafkaTransport(conf, logger)
	case "rabbitmq", "amqp":
		return rabbitTransport(conf, logger)
	case "nats":
		return natsTransport(conf, logger)
	case "http":
		return httpTransport(conf, logger)
	default:
		return Transport{}, fmt.Errorf("%w: %q", ErrUnsupportedTransport, conf.PubSubSystem)
	}
}
