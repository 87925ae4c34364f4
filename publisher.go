package gemini

import (
	"context"

	"go.uber.org/zap"
)

// Publisher wraps the outbound side of the cache topic. Every envelope it
// sends is stamped with the owning instance's client identifier so
// subscribers can recognize and drop their own events (see Applier).
type Publisher struct {
	conn        PublishConn
	destination string
	mode        DeliveryMode
	logger      *zap.Logger
	metrics     *Metrics
}

// NewPublisher binds a started PublishConn to destination.
func NewPublisher(conn PublishConn, destination string, mode DeliveryMode, logger *zap.Logger, metrics *Metrics) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, destination: destination, mode: mode, logger: logger, metrics: metrics}
}

// SetDeliveryMode updates the mode used by subsequent sends. Safe to call
// concurrently with Send; a send in flight uses whatever mode was current
// when it read it (see spec §5 on configuration reload).
func (p *Publisher) SetDeliveryMode(mode DeliveryMode) { p.mode = mode }

// Send serializes evt, stamps it with clientID, and publishes it. On
// transport failure, send loss is tolerated: the error is logged and
// swallowed rather than returned, because the remote peer keeps whatever
// state it had and the authoritative store remains the source of truth.
func (p *Publisher) Send(ctx context.Context, evt any, clientID string) {
	env, err := newEnvelope(evt)
	if err != nil {
		p.logger.Error("failed to build envelope", zap.Error(err))
		return
	}
	env.SetProperty(PropertyClientUUID, clientID)

	kind, action := describeEvent(evt)

	if err := p.conn.Publish(ctx, p.destination, env, p.mode); err != nil {
		p.logger.Warn("publish failed, dropping event",
			zap.String("kind", string(kind)), zap.String("action", action), zap.Error(err))
		if p.metrics != nil {
			p.metrics.SendFailures.WithLabelValues(string(kind), action).Inc()
		}
		return
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(string(kind), action).Inc()
	}
}

// Close closes the underlying connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func describeEvent(evt any) (PayloadKind, string) {
	switch e := evt.(type) {
	case EntityCacheEvent:
		return PayloadKindEntity, string(e.Action())
	case RelationCacheEvent:
		return PayloadKindRelation, string(e.Action())
	default:
		return "", "unknown"
	}
}
