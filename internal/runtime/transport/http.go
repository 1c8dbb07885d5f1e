package transport

import (
	net_http "net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/interactor/internal/runtime/config"
)

var (
	HTTPPublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return http.NewPublisher(config, logger)
	}
	HTTPSubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return http.NewSubscriber(addr, config, logger)
	}
)

// httpServerStarter is implemented by the watermill HTTP subscriber.
type httpServerStarter interface {
	StartHTTPServer() error
}

// topicURL joins the publisher base URL and a topic with exactly one slash.
func topicURL(base, topic string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(topic, "/")
}

// httpTransport posts messages to HTTPPublisherURL/<topic> and serves
// HTTPServerAddress/<topic> for inbound ones.
func httpTransport(conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	base := conf.HTTPPublisherURL
	t, err := pair("http",
		func() (message.Publisher, error) {
			return HTTPPublisherFactory(http.PublisherConfig{
				MarshalMessageFunc: func(topic string, msg *message.Message) (*net_http.Request, error) {
					return http.DefaultMarshalMessageFunc(topicURL(base, topic), msg)
				},
			}, logger)
		},
		func() (message.Subscriber, error) {
			return HTTPSubscriberFactory(conf.HTTPServerAddress, http.SubscriberConfig{
				UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
			}, logger)
		},
	)
	if err != nil {
		return Transport{}, err
	}

	// Subscriptions register routes lazily; the server must start regardless.
	if s, ok := t.Subscriber.(httpServerStarter); ok {
		go func() {
			if err := s.StartHTTPServer(); err != nil && err != net_http.ErrServerClosed {
				logger.Error("Failed to start HTTP subscriber server", err, nil)
			}
		}()
	}

	return t, nil
}
