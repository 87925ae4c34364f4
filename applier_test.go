package gemini

import (
	"context"
	"testing"
	"time"

	"github.com/k-r-g/gemini/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApplier(store *fakeStore, instanceID string) *Applier {
	cfg := CacheBusConfig{MaximumRelationSize: 1000}
	return NewApplier(store, func() string { return instanceID }, cfg, nil, nil)
}

func wrapEnvelope(t *testing.T, evt any, senderID string) *Envelope {
	t.Helper()
	env, err := newEnvelope(evt)
	require.NoError(t, err)
	if senderID != "" {
		env.SetProperty(PropertyClientUUID, senderID)
	}
	return env
}

func TestApplierSelfLoopSuppression(t *testing.T) {
	store := newFakeStore()
	group := newFakeGroup(1, true, true, "name")
	group.put(42, map[string]string{"name": "x"})
	store.addGroup(group)

	applier := newTestApplier(store, "A")

	env := wrapEnvelope(t, ObjectRemoveEvent{GroupID: 1, ObjectID: 42}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.True(t, group.Get(42), "a self-originated OBJECT_REMOVE must not be applied")
	assert.Empty(t, store.expiredCalls)
}

func TestApplierMissingSenderPropertyDropped(t *testing.T) {
	store := newFakeStore()
	store.addGroup(newFakeGroup(1, true, true))
	applier := newTestApplier(store, "A")

	env := wrapEnvelope(t, GroupResetEvent{GroupID: 1}, "")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.Empty(t, store.groupResetCalls)
}

func TestApplierStoreNotInitializedDropped(t *testing.T) {
	store := newFakeStore()
	store.addGroup(newFakeGroup(1, true, true))
	store.initialized = false
	applier := newTestApplier(store, "A")

	env := wrapEnvelope(t, GroupResetEvent{GroupID: 1}, "B")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.Empty(t, store.groupResetCalls)
}

func TestApplierMalformedEnvelopeDropped(t *testing.T) {
	store := newFakeStore()
	applier := newTestApplier(store, "A")

	env := &Envelope{Kind: "bogus", Encoding: "json", Payload: []byte("{}")}
	env.SetProperty(PropertyClientUUID, "B")

	require.NoError(t, applier.Handle(context.Background(), env))
}

func TestApplierGroupReset(t *testing.T) {
	store := newFakeStore()
	group := newFakeGroup(3, true, true)
	store.addGroup(group)
	applier := newTestApplier(store, "A")

	env := wrapEnvelope(t, GroupResetEvent{GroupID: 3}, "B")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.Equal(t, []int{3}, store.groupResetCalls)
}

func TestApplierGroupResetUnknownGroupDropped(t *testing.T) {
	store := newFakeStore()
	applier := newTestApplier(store, "A")

	env := wrapEnvelope(t, GroupResetEvent{GroupID: 99}, "B")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.Empty(t, store.groupResetCalls)
}

// TestApplierObjectResetRoundTrip covers spec §8 scenario 1.
func TestApplierObjectResetRoundTrip(t *testing.T) {
	store := newFakeStore()
	group := newFakeGroup(1, true, true, "name")
	store.addGroup(group)
	applier := newTestApplier(store, "B")

	props := OrderedProperties{{Name: "name", Encoding: "string", Value: []byte("x")}}
	env := wrapEnvelope(t, ObjectResetEvent{GroupID: 1, ObjectID: 42, ObjectProperties: props}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	fields, ok := group.fields(42)
	require.True(t, ok)
	assert.Equal(t, "x", fields["name"])
	assert.Equal(t, []int64{42}, store.expiredCalls)
}

func TestApplierObjectResetUpdatesExisting(t *testing.T) {
	store := newFakeStore()
	group := newFakeGroup(1, true, true, "name")
	group.put(42, map[string]string{"name": "old"})
	store.addGroup(group)
	applier := newTestApplier(store, "B")

	props := OrderedProperties{{Name: "name", Encoding: "string", Value: []byte("new")}}
	env := wrapEnvelope(t, ObjectResetEvent{GroupID: 1, ObjectID: 42, ObjectProperties: props}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	fields, _ := group.fields(42)
	assert.Equal(t, "new", fields["name"])
}

// TestApplierObjectResetBinaryProperty covers a non-JSON property
// encoding end to end: the property is binary-encoded via time.Time's
// encoding.BinaryMarshaler, carried through the envelope untouched, and
// decoded on receipt through the codec registry (see decodeFields).
func TestApplierObjectResetBinaryProperty(t *testing.T) {
	store := newFakeStore()
	group := newFakeGroup(1, true, true, "updated_at")
	store.addGroup(group)
	applier := newTestApplier(store, "B")

	bc, ok := codec.Get("binary")
	require.True(t, ok)
	want := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	raw, err := bc.Marshal(&want)
	require.NoError(t, err)

	props := OrderedProperties{{Name: "updated_at", Encoding: "binary", Value: raw}}
	env := wrapEnvelope(t, ObjectResetEvent{GroupID: 1, ObjectID: 42, ObjectProperties: props}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	fields, ok := group.fields(42)
	require.True(t, ok)
	assert.Equal(t, want.Format(time.RFC3339), fields["updated_at"])
}

// TestApplierObjectResetHeterogeneityTolerance covers spec §8's
// heterogeneity-tolerance invariant: a group the local store knows about
// but does not cache is a silent no-op, not an error.
func TestApplierObjectResetHeterogeneityTolerance(t *testing.T) {
	store := newFakeStore()
	group := newFakeGroup(1, true, false) // not cached
	store.addGroup(group)
	applier := newTestApplier(store, "B")

	props := OrderedProperties{{Name: "name", Encoding: "string", Value: []byte("x")}}
	env := wrapEnvelope(t, ObjectResetEvent{GroupID: 1, ObjectID: 42, ObjectProperties: props}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.Empty(t, store.expiredCalls)
}

// TestApplierObjectRemoveIdempotent covers spec §8's idempotence
// invariant: removing an already-absent object is a no-op, not an error.
func TestApplierObjectRemoveIdempotent(t *testing.T) {
	store := newFakeStore()
	group := newFakeGroup(1, true, true)
	store.addGroup(group)
	applier := newTestApplier(store, "B")

	env := wrapEnvelope(t, ObjectRemoveEvent{GroupID: 1, ObjectID: 7}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.False(t, group.Get(7))
}

// TestApplierUnknownEntityActionDropped covers an envelope whose action
// tag matches nothing this build knows about (e.g. a peer running a
// newer version). "BOGUS" is not constructible as a concrete event
// variant, so the envelope is built directly to exercise
// decodeEntityPayload's unknown-action branch.
func TestApplierUnknownEntityActionDropped(t *testing.T) {
	store := newFakeStore()
	group := newFakeGroup(1, true, true)
	store.addGroup(group)
	applier := newTestApplier(store, "B")

	env := &Envelope{Kind: PayloadKindEntity, Action: "BOGUS", Encoding: "json", Payload: []byte(`{"group_id":1}`)}
	env.SetProperty(PropertyClientUUID, "A")
	require.NoError(t, applier.Handle(context.Background(), env))
}

func TestApplierRelationDispatch(t *testing.T) {
	store := newFakeStore()
	rel := newFakeRelation(5)
	store.addRelation(rel, 5)
	applier := newTestApplier(store, "B")

	env := wrapEnvelope(t, RelationAdd{RelationID: 5, LeftID: 1, RightID: 2}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.True(t, rel.has(1, 2))
	assert.Equal(t, MutationOptions{Distribute: false, Notify: true, Persist: false}, rel.lastOpts)
}

// TestApplierBulkDegradationReceived covers spec §8 scenario 3: the peer
// receives a RESET rather than the original bulk mutation.
func TestApplierBulkDegradationReceived(t *testing.T) {
	store := newFakeStore()
	rel := newFakeRelation(5)
	rel.pairs[RelationPair{Left: 1, Right: 1}] = struct{}{}
	store.addRelation(rel, 5)
	applier := newTestApplier(store, "B")

	env := wrapEnvelope(t, RelationReset{RelationID: 5}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.Equal(t, 0, rel.size())
}

func TestApplierUnknownRelationDropped(t *testing.T) {
	store := newFakeStore()
	applier := newTestApplier(store, "B")

	env := wrapEnvelope(t, RelationReset{RelationID: 99}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))
}

// TestApplierRejectsInvalidRelationEvent covers the receive-side mirror
// of the Translator's own validation: a malformed RelationAdd (zero
// leftId) must never reach the store's mutation methods.
func TestApplierRejectsInvalidRelationEvent(t *testing.T) {
	store := newFakeStore()
	rel := newFakeRelation(5)
	store.addRelation(rel, 5)
	applier := newTestApplier(store, "B")

	env := wrapEnvelope(t, RelationAdd{RelationID: 5, LeftID: 0, RightID: 2}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.False(t, rel.has(0, 2))
	assert.Equal(t, 0, rel.size())
}

// TestApplierRejectsOversizedBulkRelationEvent covers a bulk mutation
// that exceeds maximumRelationSize arriving over the wire directly
// (e.g. from a peer running a higher limit), rather than via the local
// Translator's own degrade-before-send path.
func TestApplierRejectsOversizedBulkRelationEvent(t *testing.T) {
	store := newFakeStore()
	rel := newFakeRelation(5)
	store.addRelation(rel, 5)
	applier := NewApplier(store, func() string { return "B" }, CacheBusConfig{MaximumRelationSize: 2}, nil, nil)

	pairs := NewRelationPairSet([]RelationPair{{Left: 1, Right: 1}, {Left: 2, Right: 2}, {Left: 3, Right: 3}})
	env := wrapEnvelope(t, RelationAddAll{RelationID: 5, Pairs: pairs}, "A")
	require.NoError(t, applier.Handle(context.Background(), env))

	assert.Equal(t, 0, rel.size())
}
