package gemini

import (
	"context"

	"go.uber.org/zap"
)

// AsyncSubscriber wraps the inbound side of the cache topic, dispatching
// each incoming envelope to a Handler on the transport's own delivery
// goroutine. It holds no queue of its own (see spec §4.6).
type AsyncSubscriber struct {
	conn        SubscribeConn
	destination string
	sub         Subscription
	logger      *zap.Logger
}

// NewAsyncSubscriber binds a started SubscribeConn to destination.
func NewAsyncSubscriber(conn SubscribeConn, destination string, logger *zap.Logger) *AsyncSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncSubscriber{conn: conn, destination: destination, logger: logger}
}

// Start registers handle as the delivery callback for this subscriber's
// destination.
func (s *AsyncSubscriber) Start(ctx context.Context, handle Handler) error {
	sub, err := s.conn.Subscribe(ctx, s.destination, handle)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Close closes the subscription and the underlying connection.
func (s *AsyncSubscriber) Close() error {
	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			s.logger.Warn("subscription close failed", zap.Error(err))
		}
	}
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
