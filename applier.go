package gemini

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Applier is the receive-side event applier (spec §4.5). It filters out
// self-originated envelopes, decodes the payload, routes by action, and
// applies the corresponding mutation to the local store, suppressing
// re-broadcast of the mutations it applies.
type Applier struct {
	store    EntityStore
	instance func() string
	cfg      configSnapshot
	logger   *zap.Logger
	metrics  *Metrics
}

// NewApplier builds an Applier bound to store. instanceID is read lazily
// so the Applier can be constructed before Connect assigns it. cfg is
// read on every relation mutation to reject payloads exceeding the
// current maximumRelationSize, mirroring the send-side check the
// Translator performs before a bulk mutation ever reaches the wire.
func NewApplier(store EntityStore, instanceID func() string, cfg configSnapshot, logger *zap.Logger, metrics *Metrics) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{store: store, instance: instanceID, cfg: cfg, logger: logger, metrics: metrics}
}

// Handle implements Handler. It never returns an error to the transport:
// every failure mode here is logged and dropped per spec §7, so the
// subscriber's delivery goroutine is never broken by a bad envelope. The
// error return exists for tests and for the transport adapter's own ack
// logic to distinguish "handled" from "panieked/crashed", not as a retry
// signal.
func (a *Applier) Handle(ctx context.Context, env *Envelope) error {
	// 1. Store readiness gate.
	if !a.store.IsInitialized() {
		a.logger.Debug("entity store not initialized, dropping message")
		a.drop("store_not_ready")
		return nil
	}

	// 2 & 3. Payload-shape check and decode.
	evt, err := decodePayload(env)
	if err != nil {
		a.logger.Info("dropping malformed envelope", zap.Error(err))
		a.drop("malformed_envelope")
		return nil
	}

	// 4. Self-loop suppression.
	senderID, ok := env.Property(PropertyClientUUID)
	if !ok {
		a.logger.Info("envelope missing sender property, dropping")
		a.drop("missing_sender_property")
		return nil
	}
	if senderID == a.instance() {
		return nil
	}

	// 5. Dispatch by type and action.
	switch e := evt.(type) {
	case EntityCacheEvent:
		a.applyEntityEvent(ctx, e)
	case RelationCacheEvent:
		a.applyRelationEvent(ctx, e)
	}

	return nil
}

func (a *Applier) drop(reason string) {
	if a.metrics != nil {
		a.metrics.EventsDropped.WithLabelValues(reason).Inc()
	}
}

func (a *Applier) applied(kind PayloadKind, action string) {
	if a.metrics != nil {
		a.metrics.EventsApplied.WithLabelValues(string(kind), action).Inc()
	}
}

func (a *Applier) applyEntityEvent(ctx context.Context, evt EntityCacheEvent) {
	if err := evt.Validate(); err != nil {
		a.logger.Info("dropping invalid entity event", zap.Error(err))
		a.drop("invalid_entity_event")
		return
	}

	switch e := evt.(type) {
	case FullResetEvent:
		a.logger.Info("received full cache reset")
		if err := a.store.Reset(ctx, true, false); err != nil {
			a.logger.Warn("full reset failed", zap.Error(err))
		}
		a.applied(PayloadKindEntity, string(e.Action()))

	case GroupResetEvent:
		group, ok := a.store.GroupByNumber(e.GroupID)
		if !ok {
			a.logger.Info("received group reset for unknown group", zap.Int("group_id", e.GroupID))
			a.drop("unknown_group")
			return
		}
		a.logger.Info("received group reset", zap.Int("group_id", e.GroupID))
		if err := a.store.ResetGroup(ctx, group, true, false); err != nil {
			a.logger.Warn("group reset failed", zap.Error(err))
		}
		a.applied(PayloadKindEntity, string(e.Action()))

	case ObjectResetEvent:
		a.applyObjectReset(ctx, e)

	case ObjectRemoveEvent:
		a.applyObjectRemove(ctx, e)

	default:
		a.logger.Warn("unknown entity event type", zap.String("type", fmt.Sprintf("%T", evt)))
		a.drop("unknown_action")
	}
}

// applyObjectReset resolves the group and, if it is not locally cached
// (a plain EntityGroup), drops silently per spec §4.5 — different
// instances legitimately hold different subsets of types in cached form.
func (a *Applier) applyObjectReset(ctx context.Context, evt ObjectResetEvent) {
	group, ok := a.store.GroupByNumber(evt.GroupID)
	if !ok {
		a.logger.Info("received object reset for unknown group", zap.Int("group_id", evt.GroupID))
		a.drop("unknown_group")
		return
	}
	if !group.Cached() {
		return
	}
	cg, ok := group.(CacheGroup)
	if !ok {
		a.logger.Info("group claims Cached() but does not implement CacheGroup", zap.Int("group_id", evt.GroupID))
		a.drop("uncastable_cache_group")
		return
	}

	if cg.Get(evt.ObjectID) {
		if err := cg.UpdateObjectFromMap(ctx, evt.ObjectID, evt.ObjectProperties); err != nil {
			a.logger.Warn("update from map failed", zap.Error(err))
			return
		}
	} else {
		if err := cg.NewObjectFromMap(ctx, evt.ObjectID, evt.ObjectProperties); err != nil {
			a.logger.Warn("new object from map failed", zap.Error(err))
			return
		}
	}

	a.store.NotifyObjectExpired(ctx, group, evt.ObjectID, false)
	a.logger.Info("received object reset",
		zap.Int("group_id", evt.GroupID), zap.Int64("object_id", evt.ObjectID))
	a.applied(PayloadKindEntity, string(evt.Action()))
}

func (a *Applier) applyObjectRemove(ctx context.Context, evt ObjectRemoveEvent) {
	group, ok := a.store.GroupByNumber(evt.GroupID)
	if !ok {
		a.logger.Info("received object remove for unknown group", zap.Int("group_id", evt.GroupID))
		a.drop("unknown_group")
		return
	}
	if !group.Cached() {
		return
	}
	cg, ok := group.(CacheGroup)
	if !ok {
		a.drop("uncastable_cache_group")
		return
	}

	if err := cg.RemoveFromCache(ctx, evt.ObjectID); err != nil {
		a.logger.Warn("remove from cache failed", zap.Error(err))
		return
	}
	a.logger.Info("received object remove",
		zap.Int("group_id", evt.GroupID), zap.Int64("object_id", evt.ObjectID))
	a.applied(PayloadKindEntity, string(evt.Action()))
}

func (a *Applier) applyRelationEvent(ctx context.Context, evt RelationCacheEvent) {
	if err := evt.Validate(a.cfg.currentMaximumRelationSize()); err != nil {
		a.logger.Info("dropping invalid relation event", zap.Error(err))
		a.drop("invalid_relation_event")
		return
	}

	rel, ok := a.store.CachedRelation(evt.ID())
	if !ok {
		a.logger.Info("received relation event for unknown relation", zap.Int64("relation_id", evt.ID()))
		a.drop("unknown_relation")
		return
	}

	var err error
	switch e := evt.(type) {
	case RelationAdd:
		err = rel.Add(ctx, e.LeftID, e.RightID, applied)
	case RelationAddAll:
		err = rel.AddAll(ctx, e.Pairs, applied)
	case RelationClear:
		err = rel.Clear(ctx, applied)
	case RelationRemove:
		err = rel.Remove(ctx, e.LeftID, e.RightID, applied)
	case RelationRemoveAll:
		err = rel.RemoveAll(ctx, e.Pairs, applied)
	case RelationRemoveLeftValue:
		err = rel.RemoveLeftValue(ctx, e.LeftID, applied)
	case RelationRemoveRightValue:
		err = rel.RemoveRightValue(ctx, e.RightID, applied)
	case RelationReplaceAll:
		err = rel.ReplaceAll(ctx, e.Pairs, applied)
	case RelationReset:
		err = rel.Reset(ctx, applied)
	default:
		a.logger.Info("unknown relation event type", zap.String("type", fmt.Sprintf("%T", evt)))
		a.drop("unknown_action")
		return
	}

	if err != nil {
		if errors.Is(err, ErrUnknownRelation) {
			a.drop("unknown_relation")
			return
		}
		a.logger.Warn("relation mutation failed", zap.Error(err), zap.String("action", string(evt.Action())))
		return
	}

	a.logger.Info("received relation event", zap.Int64("relation_id", evt.ID()), zap.String("action", string(evt.Action())))
	a.applied(PayloadKindRelation, string(evt.Action()))
}
