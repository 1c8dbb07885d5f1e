package transport

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/interactor/internal/runtime/config"
	metadatapkg "github.com/drblury/interactor/internal/runtime/metadata"
)

const defaultConsumerGroup = "interactor"

var (
	KafkaPublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return kafka.NewPublisher(cfg, logger)
	}
	KafkaSubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return kafka.NewSubscriber(cfg, logger)
	}
)

// correlationPartitionKey keeps a request and its reply on partitions chosen
// by the correlation id. Messages without one fall back to their uuid.
func correlationPartitionKey(_ string, msg *message.Message) (string, error) {
	if id := msg.Metadata.Get(metadatapkg.KeyCorrelationID); id != "" {
		return id, nil
	}
	return msg.UUID, nil
}

// kafkaTransport consumes remote requests in KafkaConsumerGroup, so replicas
// of one service share the request topic.
func kafkaTransport(conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	marshaler := kafka.NewWithPartitioningMarshaler(correlationPartitionKey)
	group := conf.KafkaConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	return pair("kafka",
		func() (message.Publisher, error) {
			return KafkaPublisherFactory(kafka.PublisherConfig{
				Brokers:   conf.KafkaBrokers,
				Marshaler: marshaler,
			}, logger)
		},
		func() (message.Subscriber, error) {
			return KafkaSubscriberFactory(kafka.SubscriberConfig{
				Brokers:       conf.KafkaBrokers,
				Unmarshaler:   marshaler,
				ConsumerGroup: group,
			}, logger)
		},
	)
}
