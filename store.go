package gemini

import "context"

// Application stands in for the host application (GeminiApplication in
// the original). The bus only needs it for one thing: reaching the
// entity store.
type Application interface {
	Store() EntityStore
}

// MutationOptions controls how a receive-side mutation is applied to the
// local store. The Applier always uses Distribute=false, Notify=true,
// Persist=false: update in-memory state, notify local listeners, do not
// write through to the authoritative store, do not re-emit on the bus.
type MutationOptions struct {
	Distribute bool
	Notify     bool
	Persist    bool
}

// applied is the MutationOptions every Applier-driven mutation uses.
var applied = MutationOptions{Distribute: false, Notify: true, Persist: false}

// EntityStore is the local entity store this bus keeps coherent. It is
// an external collaborator (per spec §1, out of scope to implement here
// beyond this contract and the in-memory test fakes).
type EntityStore interface {
	// IsInitialized reports whether the store has finished bootstrapping.
	// Events that arrive before this is true are dropped (see Applier).
	IsInitialized() bool

	// GroupByNumber resolves a group by its numeric id. ok is false only
	// when the id is not known to the store at all; a group the store
	// knows about but does not cache is returned with ok=true and
	// Cached()==false.
	GroupByNumber(groupNumber int) (group EntityGroup, ok bool)

	// Reset refreshes every cached group without triggering further
	// distribution. loadEverything mirrors the Java store.reset(bool,
	// bool) overload; distribute is always false when called from the
	// Applier.
	Reset(ctx context.Context, loadEverything, distribute bool) error

	// ResetGroup refreshes one group the same way.
	ResetGroup(ctx context.Context, group EntityGroup, loadEverything, distribute bool) error

	// CachedRelation resolves a relation by its fleet-wide id. ok is false
	// when no relation with this id is known at all.
	CachedRelation(relationID int64) (rel CachedRelation, ok bool)

	// NotifyObjectExpired notifies local listeners that an entity's cache
	// entry changed, without triggering further distribution.
	NotifyObjectExpired(ctx context.Context, group EntityGroup, objectID int64, distribute bool)
}

// EntityGroup is the set of all entities of one type within the local
// store (see GLOSSARY). Distribute gates whether local mutations to this
// group participate in fleet-wide broadcast; GroupNumber is the fleet-
// wide numeric identifier carried on the wire.
type EntityGroup interface {
	GroupNumber() int
	Distribute() bool

	// Cached reports whether this group additionally maintains an
	// in-memory cache (a "cached group" per GLOSSARY). Object-level
	// events for a group that is not cached are a silent no-op on
	// receive (heterogeneity across the fleet is expected).
	Cached() bool
}

// CacheGroup is an EntityGroup that maintains an in-memory cache with its
// own ordering. Only CacheGroups can serve OBJECT_RESET/OBJECT_REMOVE on
// the receive side.
type CacheGroup interface {
	EntityGroup

	// WriteMap projects an entity into an ordered property mapping
	// sufficient to materialize it from scratch (see OrderedProperties).
	WriteMap(objectID int64) (OrderedProperties, bool)

	// Get looks up a cached entity by id.
	Get(objectID int64) (exists bool)

	// NewObjectFromMap materializes a new entity from a property
	// projection and adds it to the local cache.
	NewObjectFromMap(ctx context.Context, objectID int64, props OrderedProperties) error

	// UpdateObjectFromMap updates an existing cached entity in place from
	// a property projection and reorders it within the cache.
	UpdateObjectFromMap(ctx context.Context, objectID int64, props OrderedProperties) error

	// RemoveFromCache removes an entity from the local cache.
	RemoveFromCache(ctx context.Context, objectID int64) error
}

// CachedRelation is an in-memory many-to-many relation between entity
// identifiers (see GLOSSARY). Every mutation accepts MutationOptions so
// callers can suppress re-distribution and persistence (see §4.5).
type CachedRelation interface {
	Add(ctx context.Context, left, right int64, opts MutationOptions) error
	AddAll(ctx context.Context, pairs RelationPairSet, opts MutationOptions) error
	Clear(ctx context.Context, opts MutationOptions) error
	Remove(ctx context.Context, left, right int64, opts MutationOptions) error
	RemoveAll(ctx context.Context, pairs RelationPairSet, opts MutationOptions) error
	RemoveLeftValue(ctx context.Context, left int64, opts MutationOptions) error
	RemoveRightValue(ctx context.Context, right int64, opts MutationOptions) error
	ReplaceAll(ctx context.Context, pairs RelationPairSet, opts MutationOptions) error
	Reset(ctx context.Context, opts MutationOptions) error
}
