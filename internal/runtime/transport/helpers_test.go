package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

type testPublisher struct{ closed int }

func (p *testPublisher) Publish(string, ...*message.Message) error { return nil }
func (p *testPublisher) Close() error                              { p.closed++; return nil }

type testSubscriber struct{ closed int }

func (s *testSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *testSubscriber) Close() error { s.closed++; return nil }

type testPubSub struct {
	testPublisher
	testSubscriber
}

func (ps *testPubSub) Close() error { ps.testPublisher.closed++; return nil }
