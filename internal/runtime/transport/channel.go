package transport

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/interactor/internal/runtime/config"
)

// channelBuffer sizes the per-subscriber output channel of the in-process transport.
const channelBuffer = 64

// GoChannelFactory builds the in-process pub/sub. One value serves as both
// publisher and subscriber, which lets a dispatcher proxy to another
// dispatcher in the same process.
var GoChannelFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

// channelTransport runs requests and replies through one in-process pub/sub.
// Requests published before the remote server subscribes are dropped, so the
// server has to be running before proxies send.
func channelTransport(_ *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	pub, sub := GoChannelFactory(gochannel.Config{OutputChannelBuffer: channelBuffer}, logger)
	return Transport{Publisher: pub, Subscriber: sub}, nil
}
