package gemini

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/k-r-g/gemini/codec"
)

// EntityAction is the action tag for an EntityCacheEvent variant,
// carried on the wire so the receiving side knows which concrete type to
// decode into (see decodeEntityPayload in envelope.go).
type EntityAction string

const (
	// ActionFullReset invalidates every cached entity group. Never sent by
	// the Translator (see DESIGN.md); kept so the Applier's dispatch table
	// stays defined if a peer on an older or differently configured build
	// ever sends one.
	ActionFullReset EntityAction = "FULL_RESET"

	// ActionGroupReset invalidates one entity group.
	ActionGroupReset EntityAction = "GROUP_RESET"

	// ActionObjectReset carries a full property projection of one entity.
	ActionObjectReset EntityAction = "OBJECT_RESET"

	// ActionObjectRemove invalidates one entity.
	ActionObjectRemove EntityAction = "OBJECT_REMOVE"
)

// Property is one name/value pair in an ordered entity projection. Value
// is carried pre-encoded so the store can choose its own serialization
// per field; Encoding names the codec that produced it (see codec.Get).
type Property struct {
	Name     string `json:"name"`
	Encoding string `json:"encoding"`
	Value    []byte `json:"value"`
}

// OrderedProperties is an ordered name->value projection of an entity,
// sufficient to materialize it from scratch. It is a slice rather than a
// map because some stores rely on property order when reconstructing an
// entity (see writeMap in DESIGN NOTES).
type OrderedProperties []Property

// Get returns the raw encoded value for name and whether it was present.
func (p OrderedProperties) Get(name string) ([]byte, string, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, prop.Encoding, true
		}
	}
	return nil, "", false
}

// DecodeProperty looks up name in p and decodes its raw value through the
// codec registered for the property's Encoding, writing the result into
// dst. ok reports whether name was present at all; a present-but-
// undecodable property (unregistered encoding, or dst of the wrong shape
// for that codec) is an error, not a missing property.
func (p OrderedProperties) DecodeProperty(name string, dst any) (ok bool, err error) {
	v, encoding, ok := p.Get(name)
	if !ok {
		return false, nil
	}
	c, ok := codec.Get(encoding)
	if !ok {
		return true, fmt.Errorf("gemini: no codec registered for property encoding %q", encoding)
	}
	return true, c.Unmarshal(v, dst)
}

// EntityCacheEvent is the sum type for entity-level cache mutations: a
// small closed set of concrete structs, one per action, rather than one
// flat struct carrying every action's fields with most of them unused.
// entityCacheEvent is unexported so only the variants below can
// implement it.
type EntityCacheEvent interface {
	Action() EntityAction
	Validate() error
	entityCacheEvent()
}

// FullResetEvent invalidates every cached entity group. See ActionFullReset.
type FullResetEvent struct{}

func (FullResetEvent) Action() EntityAction { return ActionFullReset }
func (FullResetEvent) Validate() error      { return nil }
func (FullResetEvent) entityCacheEvent()    {}

// GroupResetEvent invalidates one entity group.
type GroupResetEvent struct {
	GroupID int `json:"group_id"`
}

func (GroupResetEvent) Action() EntityAction { return ActionGroupReset }
func (GroupResetEvent) entityCacheEvent()    {}

func (e GroupResetEvent) Validate() error {
	if e.GroupID == 0 {
		return fmt.Errorf("%w: GROUP_RESET requires groupId", ErrMalformedEnvelope)
	}
	return nil
}

// ObjectResetEvent carries a full property projection of one entity.
type ObjectResetEvent struct {
	GroupID          int               `json:"group_id"`
	ObjectID         int64             `json:"object_id"`
	ObjectProperties OrderedProperties `json:"object_properties"`
}

func (ObjectResetEvent) Action() EntityAction { return ActionObjectReset }
func (ObjectResetEvent) entityCacheEvent()    {}

func (e ObjectResetEvent) Validate() error {
	if e.GroupID == 0 {
		return fmt.Errorf("%w: OBJECT_RESET requires groupId", ErrMalformedEnvelope)
	}
	if e.ObjectProperties == nil {
		return fmt.Errorf("%w: OBJECT_RESET requires objectProperties", ErrMalformedEnvelope)
	}
	return nil
}

// ObjectRemoveEvent invalidates one entity.
type ObjectRemoveEvent struct {
	GroupID  int   `json:"group_id"`
	ObjectID int64 `json:"object_id"`
}

func (ObjectRemoveEvent) Action() EntityAction { return ActionObjectRemove }
func (ObjectRemoveEvent) entityCacheEvent()    {}

func (e ObjectRemoveEvent) Validate() error {
	if e.GroupID == 0 {
		return fmt.Errorf("%w: OBJECT_REMOVE requires groupId", ErrMalformedEnvelope)
	}
	return nil
}

// newGroupResetEvent constructs a GROUP_RESET event. groupNumber must be
// a valid (non-zero) group identifier; this is a Translator-side
// invariant enforced on data the local store itself provides, so a
// violation is a programming bug rather than an input to validate.
func newGroupResetEvent(groupNumber int) EntityCacheEvent {
	if groupNumber == 0 {
		panic("gemini: GROUP_RESET requires a non-zero groupNumber")
	}
	return GroupResetEvent{GroupID: groupNumber}
}

func newObjectResetEvent(groupNumber int, objectID int64, props OrderedProperties) EntityCacheEvent {
	if groupNumber == 0 {
		panic("gemini: OBJECT_RESET requires a non-zero groupNumber")
	}
	return ObjectResetEvent{GroupID: groupNumber, ObjectID: objectID, ObjectProperties: props}
}

func newObjectRemoveEvent(groupNumber int, objectID int64) EntityCacheEvent {
	if groupNumber == 0 {
		panic("gemini: OBJECT_REMOVE requires a non-zero groupNumber")
	}
	return ObjectRemoveEvent{GroupID: groupNumber, ObjectID: objectID}
}

// RelationAction is the action tag for a RelationCacheEvent variant.
type RelationAction string

const (
	ActionRelationAdd              RelationAction = "ADD"
	ActionRelationAddAll           RelationAction = "ADD_ALL"
	ActionRelationClear            RelationAction = "CLEAR"
	ActionRelationRemove           RelationAction = "REMOVE"
	ActionRelationRemoveAll        RelationAction = "REMOVE_ALL"
	ActionRelationRemoveLeftValue  RelationAction = "REMOVE_LEFT_VALUE"
	ActionRelationRemoveRightValue RelationAction = "REMOVE_RIGHT_VALUE"
	ActionRelationReplaceAll       RelationAction = "REPLACE_ALL"
	ActionRelationReset            RelationAction = "RESET"
)

// RelationPair is one (leftId, rightId) member of a relation.
type RelationPair struct {
	Left  int64 `json:"left"`
	Right int64 `json:"right"`
}

// RelationPairSet is a bulk payload for ADD_ALL/REMOVE_ALL/REPLACE_ALL.
// It is a set (no ordering, no duplicates) bounded by maximumRelationSize
// at construction time; larger mutations degrade to RESET instead (see
// Translator.degradeOrSend).
//
// A struct-keyed map has no default JSON representation, so
// MarshalJSON/UnmarshalJSON below encode it as a sorted array of pairs.
type RelationPairSet map[RelationPair]struct{}

// NewRelationPairSet builds a pair set from a slice, useful for tests and
// for stores that produce pairs as a slice.
func NewRelationPairSet(pairs []RelationPair) RelationPairSet {
	set := make(RelationPairSet, len(pairs))
	for _, p := range pairs {
		set[p] = struct{}{}
	}
	return set
}

func (s RelationPairSet) MarshalJSON() ([]byte, error) {
	pairs := make([]RelationPair, 0, len(s))
	for p := range s {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Left != pairs[j].Left {
			return pairs[i].Left < pairs[j].Left
		}
		return pairs[i].Right < pairs[j].Right
	})
	return json.Marshal(pairs)
}

func (s *RelationPairSet) UnmarshalJSON(b []byte) error {
	var pairs []RelationPair
	if err := json.Unmarshal(b, &pairs); err != nil {
		return err
	}
	*s = NewRelationPairSet(pairs)
	return nil
}

// RelationCacheEvent is the sum type for relation-level cache mutations,
// mirroring EntityCacheEvent's per-action concrete structs.
type RelationCacheEvent interface {
	Action() RelationAction
	ID() int64
	Validate(maximumRelationSize int) error
	relationCacheEvent()
}

type RelationAdd struct {
	RelationID int64 `json:"relation_id"`
	LeftID     int64 `json:"left_id"`
	RightID    int64 `json:"right_id"`
}

func (e RelationAdd) Action() RelationAction { return ActionRelationAdd }
func (e RelationAdd) ID() int64              { return e.RelationID }
func (e RelationAdd) relationCacheEvent()    {}

func (e RelationAdd) Validate(maximumRelationSize int) error {
	if e.LeftID == 0 || e.RightID == 0 {
		return fmt.Errorf("%w: ADD requires leftId and rightId", ErrMalformedEnvelope)
	}
	return nil
}

type RelationAddAll struct {
	RelationID int64           `json:"relation_id"`
	Pairs      RelationPairSet `json:"relation"`
}

func (e RelationAddAll) Action() RelationAction { return ActionRelationAddAll }
func (e RelationAddAll) ID() int64              { return e.RelationID }
func (e RelationAddAll) relationCacheEvent()    {}

func (e RelationAddAll) Validate(maximumRelationSize int) error {
	if len(e.Pairs) > maximumRelationSize {
		return fmt.Errorf("%w: ADD_ALL carries %d pairs, exceeds maximumRelationSize %d",
			ErrMalformedEnvelope, len(e.Pairs), maximumRelationSize)
	}
	return nil
}

type RelationClear struct {
	RelationID int64 `json:"relation_id"`
}

func (e RelationClear) Action() RelationAction { return ActionRelationClear }
func (e RelationClear) ID() int64              { return e.RelationID }
func (e RelationClear) relationCacheEvent()    {}
func (e RelationClear) Validate(int) error     { return nil }

type RelationRemove struct {
	RelationID int64 `json:"relation_id"`
	LeftID     int64 `json:"left_id"`
	RightID    int64 `json:"right_id"`
}

func (e RelationRemove) Action() RelationAction { return ActionRelationRemove }
func (e RelationRemove) ID() int64              { return e.RelationID }
func (e RelationRemove) relationCacheEvent()    {}

func (e RelationRemove) Validate(maximumRelationSize int) error {
	if e.LeftID == 0 || e.RightID == 0 {
		return fmt.Errorf("%w: REMOVE requires leftId and rightId", ErrMalformedEnvelope)
	}
	return nil
}

type RelationRemoveAll struct {
	RelationID int64           `json:"relation_id"`
	Pairs      RelationPairSet `json:"relation"`
}

func (e RelationRemoveAll) Action() RelationAction { return ActionRelationRemoveAll }
func (e RelationRemoveAll) ID() int64              { return e.RelationID }
func (e RelationRemoveAll) relationCacheEvent()    {}

func (e RelationRemoveAll) Validate(maximumRelationSize int) error {
	if len(e.Pairs) > maximumRelationSize {
		return fmt.Errorf("%w: REMOVE_ALL carries %d pairs, exceeds maximumRelationSize %d",
			ErrMalformedEnvelope, len(e.Pairs), maximumRelationSize)
	}
	return nil
}

type RelationRemoveLeftValue struct {
	RelationID int64 `json:"relation_id"`
	LeftID     int64 `json:"left_id"`
}

func (e RelationRemoveLeftValue) Action() RelationAction { return ActionRelationRemoveLeftValue }
func (e RelationRemoveLeftValue) ID() int64              { return e.RelationID }
func (e RelationRemoveLeftValue) relationCacheEvent()    {}

func (e RelationRemoveLeftValue) Validate(maximumRelationSize int) error {
	if e.LeftID == 0 {
		return fmt.Errorf("%w: REMOVE_LEFT_VALUE requires leftId", ErrMalformedEnvelope)
	}
	return nil
}

type RelationRemoveRightValue struct {
	RelationID int64 `json:"relation_id"`
	RightID    int64 `json:"right_id"`
}

func (e RelationRemoveRightValue) Action() RelationAction { return ActionRelationRemoveRightValue }
func (e RelationRemoveRightValue) ID() int64              { return e.RelationID }
func (e RelationRemoveRightValue) relationCacheEvent()    {}

func (e RelationRemoveRightValue) Validate(maximumRelationSize int) error {
	if e.RightID == 0 {
		return fmt.Errorf("%w: REMOVE_RIGHT_VALUE requires rightId", ErrMalformedEnvelope)
	}
	return nil
}

type RelationReplaceAll struct {
	RelationID int64           `json:"relation_id"`
	Pairs      RelationPairSet `json:"relation"`
}

func (e RelationReplaceAll) Action() RelationAction { return ActionRelationReplaceAll }
func (e RelationReplaceAll) ID() int64              { return e.RelationID }
func (e RelationReplaceAll) relationCacheEvent()    {}

func (e RelationReplaceAll) Validate(maximumRelationSize int) error {
	if len(e.Pairs) > maximumRelationSize {
		return fmt.Errorf("%w: REPLACE_ALL carries %d pairs, exceeds maximumRelationSize %d",
			ErrMalformedEnvelope, len(e.Pairs), maximumRelationSize)
	}
	return nil
}

type RelationReset struct {
	RelationID int64 `json:"relation_id"`
}

func (e RelationReset) Action() RelationAction { return ActionRelationReset }
func (e RelationReset) ID() int64              { return e.RelationID }
func (e RelationReset) relationCacheEvent()    {}
func (e RelationReset) Validate(int) error     { return nil }
