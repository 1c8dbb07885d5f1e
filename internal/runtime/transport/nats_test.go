package transport

import (
	"fmt"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/interactor/internal/runtime/config"
)

func TestNATSTransport_FactoryErrors(t *testing.T) {
	origPub := NATSPublisherFactory
	origSub := NATSSubscriberFactory
	t.Cleanup(func() {
		NATSPublisherFactory = origPub
		NATSSubscriberFactory = origSub
	})

	t.Run("publisher error", func(t *testing.T) {
		NATSPublisherFactory = func(nats.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, fmt.Errorf("pub error")
		}
		if _, err := natsTransport(&config.Config{}, watermill.NopLogger{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("subscriber error", func(t *testing.T) {
		pub := &testPublisher{}
		NATSPublisherFactory = func(nats.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		NATSSubscriberFactory = func(nats.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, fmt.Errorf("sub error")
		}
		if _, err := natsTransport(&config.Config{}, watermill.NopLogger{}); err == nil {
			t.Error("expected error")
		}
		if pub.closed != 1 {
			t.Errorf("publisher closed %d times, want 1", pub.closed)
		}
	})

	t.Run("success", func(t *testing.T) {
		var subCfg nats.SubscriberConfig
		NATSPublisherFactory = func(nats.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return &testPublisher{}, nil
		}
		NATSSubscriberFactory = func(cfg nats.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
			subCfg = cfg
			return &testSubscriber{}, nil
		}
		tr, err := natsTransport(&config.Config{NATSURL: "nats://localhost:4222", NATSQueueGroup: "workers"}, watermill.NopLogger{})
		if err != nil {
			t.Fatal(err)
		}
		if tr.Publisher == nil || tr.Subscriber == nil {
			t.Error("expected publisher and subscriber")
		}
		if subCfg.QueueGroupPrefix != "workers" || subCfg.URL != "nats://localhost:4222" {
			t.Errorf("unexpected subscriber config: %+v", subCfg)
		}
	})
}
