package transport

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/interactor/internal/runtime/config"
)

var (
	NATSPublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return nats.NewPublisher(cfg, logger)
	}
	NATSSubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return nats.NewSubscriber(cfg, logger)
	}
)

// natsTransport uses core NATS subjects. Replicas sharing NATSQueueGroup split
// the request subject between them; without a group every replica sees every
// request.
func natsTransport(conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	codec := &nats.NATSMarshaler{}
	return pair("nats",
		func() (message.Publisher, error) {
			return NATSPublisherFactory(nats.PublisherConfig{URL: conf.NATSURL, Marshaler: codec}, logger)
		},
		func() (message.Subscriber, error) {
			return NATSSubscriberFactory(nats.SubscriberConfig{
				URL:              conf.NATSURL,
				QueueGroupPrefix: conf.NATSQueueGroup,
				Unmarshaler:      codec,
			}, logger)
		},
	)
}
