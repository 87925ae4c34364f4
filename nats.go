package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gonats "github.com/nats-io/go-nats"
	stan "github.com/nats-io/go-nats-streaming"
	"go.uber.org/zap"
)

// NATSConnFactory opens a NATS Streaming connection and adapts it to the
// Conn/PublishConn/SubscribeConn interfaces. This is the concrete
// transport backing the bus in production, grounded in the teacher's
// stan.go; unlike that library's raw byte-stream API, the Manager needs
// JMS-style per-message properties, so the NATS Streaming channel payload
// here is always a JSON-encoded Envelope rather than a bare event.
type NATSConnFactory struct {
	// Addr is the NATS server address, e.g. "nats://localhost:4222".
	Addr string

	// Cluster is the NATS Streaming cluster id.
	Cluster string

	// ClientID is the client connection id to request. NATS Streaming
	// requires this to be unique per connection; Connect generates one
	// (see nuidClientID) if left empty.
	ClientID string

	Logger *zap.Logger
}

func (f *NATSConnFactory) Connect(ctx context.Context) (Conn, error) {
	clientID := f.ClientID
	if clientID == "" {
		clientID = nuidClientID()
	}

	nc, err := gonats.Connect(f.Addr, gonats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("gemini: nats connect: %w", err)
	}

	sc, err := stan.Connect(f.Cluster, clientID, stan.NatsConn(nc))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("gemini: nats streaming connect: %w", err)
	}

	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &natsConn{clientID: clientID, nats: nc, stan: sc, logger: logger}, nil
}

type natsConn struct {
	clientID string
	nats     *gonats.Conn
	stan     stan.Conn
	logger   *zap.Logger
}

func (c *natsConn) ClientID() string { return c.clientID }

func (c *natsConn) Close() error {
	if err := c.stan.Close(); err != nil {
		c.logger.Warn("nats streaming close failed", zap.Error(err))
	}
	c.nats.Close()
	return nil
}

func (c *natsConn) Publish(ctx context.Context, destination string, env *Envelope, mode DeliveryMode) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	// NATS Streaming messages are always durably stored server-side
	// regardless of requested mode, and SubscribeConn.Subscribe takes no
	// mode parameter to condition on. DeliveryMode is currently a no-op on
	// this adapter; it exists for transports where persistence is actually
	// configurable at publish or subscribe time.
	_ = mode
	return c.stan.Publish(destination, b)
}

func (c *natsConn) Subscribe(ctx context.Context, destination string, handle Handler) (Subscription, error) {
	msgHandler := func(msg *stan.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			c.logger.Info("dropping non-envelope message", zap.Error(err))
			return
		}

		hctx, cancel := context.WithTimeout(context.Background(), stan.DefaultAckWait)
		defer cancel()

		if err := handle(hctx, &env); err != nil {
			c.logger.Warn("handler returned error", zap.Error(err))
			return
		}

		if err := msg.Ack(); err != nil {
			c.logger.Warn("ack failed", zap.Error(err))
		}
	}

	opts := []stan.SubscriptionOption{
		stan.StartAt(stanpbStartPosition()),
		stan.SetManualAckMode(),
		stan.AckWait(30 * time.Second),
		stan.MaxInflight(1),
		stan.DurableName(c.clientID),
	}

	sub, err := c.stan.QueueSubscribe(destination, c.clientID, msgHandler, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: nats streaming subscribe: %w", err)
	}

	return &natsSubscription{sub: sub}, nil
}

type natsSubscription struct {
	sub stan.Subscription
}

func (s *natsSubscription) Close() error {
	return s.sub.Close()
}
