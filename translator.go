package gemini

import (
	"context"

	"go.uber.org/zap"
)

// CacheListener is the capability the local entity store notifies about
// entity-level cache changes. A Translator satisfies it directly; a host
// store that wants a narrower view can define its own small interface
// and have it delegate to the same Translator value (see DESIGN NOTES).
type CacheListener interface {
	CacheFullReset(ctx context.Context)
	CacheTypeReset(ctx context.Context, group EntityGroup)
	CacheObjectExpired(ctx context.Context, group CacheGroup, objectID int64)
	RemoveFromCache(ctx context.Context, group EntityGroup, objectID int64)
}

// RelationListener is the capability the local store notifies about
// relation mutations.
type RelationListener interface {
	RelationAdd(ctx context.Context, relationID, left, right int64)
	RelationAddAll(ctx context.Context, relationID int64, pairs RelationPairSet)
	RelationClear(ctx context.Context, relationID int64)
	RelationRemove(ctx context.Context, relationID, left, right int64)
	RelationRemoveAll(ctx context.Context, relationID int64, pairs RelationPairSet)
	RelationRemoveLeftValue(ctx context.Context, relationID, left int64)
	RelationRemoveRightValue(ctx context.Context, relationID, right int64)
	RelationReplaceAll(ctx context.Context, relationID int64, pairs RelationPairSet)
	RelationReset(ctx context.Context, relationID int64)
}

// DistributionListener marks a type as a fleet-wide distribution
// participant, letting a host store type-assert that a registered
// listener actually distributes rather than merely observes.
type DistributionListener interface {
	Distributes() bool
}

// configSnapshot is the subset of CacheBusConfig the Translator reads on
// every bulk relation mutation hook and the Applier reads on every
// received relation event.
type configSnapshot interface {
	currentMaximumRelationSize() int
}

// Translator is the send-side mutation translator (spec §4.3/§4.4). It
// receives local cache-change notifications, decides whether each is
// distributable, constructs the corresponding event, and hands it to the
// Publisher.
type Translator struct {
	publisher *Publisher
	clientID  func() string
	cfg       configSnapshot
	logger    *zap.Logger
	metrics   *Metrics
}

// NewTranslator builds a Translator that publishes through pub, stamping
// the client id returned by clientID (read lazily so it can be unset
// until connect completes) and reading maximumRelationSize from cfg.
func NewTranslator(pub *Publisher, clientID func() string, cfg configSnapshot, logger *zap.Logger, metrics *Metrics) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{publisher: pub, clientID: clientID, cfg: cfg, logger: logger, metrics: metrics}
}

func (t *Translator) Distributes() bool { return true }

func (t *Translator) send(ctx context.Context, evt any) {
	t.publisher.Send(ctx, evt, t.clientID())
}

// CacheFullReset is deliberately a no-op: a fleet-wide full reset would
// have every instance in the fleet hammering the authoritative store at
// once. Operators performing a global reset do so through out-of-band
// tooling instead of this bus.
func (t *Translator) CacheFullReset(ctx context.Context) {
	t.logger.Info("distributing a full cache reset is disabled")
}

func (t *Translator) CacheTypeReset(ctx context.Context, group EntityGroup) {
	if !group.Distribute() {
		return
	}
	t.logger.Info("sending group reset", zap.Int("group_id", group.GroupNumber()))
	t.send(ctx, newGroupResetEvent(group.GroupNumber()))
}

// CacheObjectExpired sends an OBJECT_RESET carrying the entity's full
// property projection. If the entity has already been removed locally by
// the time this hook fires (a removal race, see spec §8 scenario 2), the
// expiration is suppressed; the subsequent RemoveFromCache call will send
// OBJECT_REMOVE instead.
func (t *Translator) CacheObjectExpired(ctx context.Context, group CacheGroup, objectID int64) {
	if !group.Distribute() {
		return
	}
	props, ok := group.WriteMap(objectID)
	if !ok {
		return
	}
	t.logger.Info("sending object reset",
		zap.Int("group_id", group.GroupNumber()), zap.Int64("object_id", objectID))
	t.send(ctx, newObjectResetEvent(group.GroupNumber(), objectID, props))
}

func (t *Translator) RemoveFromCache(ctx context.Context, group EntityGroup, objectID int64) {
	if !group.Distribute() {
		return
	}
	t.logger.Info("sending object remove",
		zap.Int("group_id", group.GroupNumber()), zap.Int64("object_id", objectID))
	t.send(ctx, newObjectRemoveEvent(group.GroupNumber(), objectID))
}

func (t *Translator) RelationAdd(ctx context.Context, relationID, left, right int64) {
	t.logger.Info("sending relation add", zap.Int64("relation_id", relationID))
	t.send(ctx, RelationAdd{RelationID: relationID, LeftID: left, RightID: right})
}

func (t *Translator) RelationAddAll(ctx context.Context, relationID int64, pairs RelationPairSet) {
	t.degradeOrSend(ctx, relationID, ActionRelationAddAll, pairs)
}

func (t *Translator) RelationClear(ctx context.Context, relationID int64) {
	t.logger.Info("sending relation clear", zap.Int64("relation_id", relationID))
	t.send(ctx, RelationClear{RelationID: relationID})
}

func (t *Translator) RelationRemove(ctx context.Context, relationID, left, right int64) {
	t.logger.Info("sending relation remove", zap.Int64("relation_id", relationID))
	t.send(ctx, RelationRemove{RelationID: relationID, LeftID: left, RightID: right})
}

func (t *Translator) RelationRemoveAll(ctx context.Context, relationID int64, pairs RelationPairSet) {
	t.degradeOrSend(ctx, relationID, ActionRelationRemoveAll, pairs)
}

func (t *Translator) RelationRemoveLeftValue(ctx context.Context, relationID, left int64) {
	t.logger.Info("sending relation remove left value", zap.Int64("relation_id", relationID))
	t.send(ctx, RelationRemoveLeftValue{RelationID: relationID, LeftID: left})
}

func (t *Translator) RelationRemoveRightValue(ctx context.Context, relationID, right int64) {
	t.logger.Info("sending relation remove right value", zap.Int64("relation_id", relationID))
	t.send(ctx, RelationRemoveRightValue{RelationID: relationID, RightID: right})
}

func (t *Translator) RelationReplaceAll(ctx context.Context, relationID int64, pairs RelationPairSet) {
	t.degradeOrSend(ctx, relationID, ActionRelationReplaceAll, pairs)
}

func (t *Translator) RelationReset(ctx context.Context, relationID int64) {
	t.logger.Info("sending relation reset", zap.Int64("relation_id", relationID))
	t.send(ctx, RelationReset{RelationID: relationID})
}

// degradeOrSend implements the size-threshold degradation rule (spec
// §4.4): a bulk payload whose cardinality exceeds maximumRelationSize is
// replaced with a single RESET for that relation id.
func (t *Translator) degradeOrSend(ctx context.Context, relationID int64, action RelationAction, pairs RelationPairSet) {
	if len(pairs) > t.cfg.currentMaximumRelationSize() {
		t.logger.Info("bulk relation mutation exceeds maximumRelationSize, degrading to reset",
			zap.Int64("relation_id", relationID), zap.String("action", string(action)), zap.Int("size", len(pairs)))
		if t.metrics != nil {
			t.metrics.BulkDegraded.WithLabelValues(string(action)).Inc()
		}
		t.send(ctx, RelationReset{RelationID: relationID})
		return
	}

	t.logger.Info("sending bulk relation mutation",
		zap.Int64("relation_id", relationID), zap.String("action", string(action)))

	var evt RelationCacheEvent
	switch action {
	case ActionRelationAddAll:
		evt = RelationAddAll{RelationID: relationID, Pairs: pairs}
	case ActionRelationRemoveAll:
		evt = RelationRemoveAll{RelationID: relationID, Pairs: pairs}
	case ActionRelationReplaceAll:
		evt = RelationReplaceAll{RelationID: relationID, Pairs: pairs}
	default:
		t.logger.Warn("degradeOrSend called with non-bulk action", zap.String("action", string(action)))
		return
	}
	t.send(ctx, evt)
}
