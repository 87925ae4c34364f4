package gemini

import (
	"context"
	"sync"
)

// fakeBroker is an in-process stand-in for the NATS Streaming topic used
// in unit tests: Publish delivers synchronously to every subscriber
// bound to the same destination, so tests can assert on applied state
// immediately after a send without racing a real transport.
type fakeBroker struct {
	mu   sync.Mutex
	subs map[string][]Handler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string][]Handler)}
}

func (b *fakeBroker) subscribe(destination string, h Handler) *fakeSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[destination] = append(b.subs[destination], h)
	idx := len(b.subs[destination]) - 1
	return &fakeSubscription{broker: b, destination: destination, index: idx}
}

func (b *fakeBroker) publish(ctx context.Context, destination string, env *Envelope) error {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.subs[destination]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		// Each subscriber decodes its own copy of the payload bytes; the
		// Envelope struct itself is safe to share read-only here since
		// nothing mutates it after Publish builds it.
		if err := h(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

type fakeSubscription struct {
	broker      *fakeBroker
	destination string
	index       int
}

func (s *fakeSubscription) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	s.broker.subs[s.destination][s.index] = nil
	return nil
}

// fakeConn is a Conn/PublishConn/SubscribeConn backed by a fakeBroker.
type fakeConn struct {
	broker   *fakeBroker
	clientID string
	closed   bool
}

func newFakeConnFactory(broker *fakeBroker, clientID string) ConnFactory {
	return ConnFactoryFunc(func(ctx context.Context) (Conn, error) {
		return &fakeConn{broker: broker, clientID: clientID}, nil
	})
}

func (c *fakeConn) ClientID() string { return c.clientID }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) Publish(ctx context.Context, destination string, env *Envelope, mode DeliveryMode) error {
	return c.broker.publish(ctx, destination, env)
}

func (c *fakeConn) Subscribe(ctx context.Context, destination string, handle Handler) (Subscription, error) {
	return c.broker.subscribe(destination, handle), nil
}
