package transport

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/interactor/internal/runtime/config"
)

var (
	AmqpConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
		return amqp.NewConnection(cfg, logger)
	}
	AmqpPublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
		return amqp.NewPublisherWithConnection(cfg, logger, conn)
	}
	AmqpSubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
		return amqp.NewSubscriberWithConnection(cfg, logger, conn)
	}
	// amqpConnectionCloser is swapped in tests that hand out a zero connection.
	amqpConnectionCloser = func(conn *amqp.ConnectionWrapper) error { return conn.Close() }
)

// rabbitTransport shares one AMQP connection between publisher and
// subscriber. Every topic gets a durable queue named topic+RabbitMQQueueSuffix,
// so remote requests survive a restart of the serving dispatcher.
func rabbitTransport(conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	conn, amqpConfig, err := setupAmqp(conf, logger)
	if err != nil {
		return Transport{}, fmt.Errorf("rabbitmq transport: %w", err)
	}
	t, err := pair("rabbitmq",
		func() (message.Publisher, error) { return AmqpPublisherFactory(amqpConfig, logger, conn) },
		func() (message.Subscriber, error) { return AmqpSubscriberFactory(amqpConfig, logger, conn) },
	)
	if err != nil {
		_ = amqpConnectionCloser(conn)
		return Transport{}, err
	}
	return t, nil
}

func setupAmqp(conf *config.Config, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, amqp.Config, error) {
	suffix := conf.RabbitMQQueueSuffix
	if suffix == "" {
		suffix = "-" + defaultConsumerGroup
	}
	amqpConfig := amqp.NewDurablePubSubConfig(conf.RabbitMQURL, amqp.GenerateQueueNameTopicNameWithSuffix(suffix))
	conn, err := AmqpConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   conf.RabbitMQURL,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return nil, amqp.Config{}, err
	}
	return conn, amqpConfig, nil
}
