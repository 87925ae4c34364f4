package gemini

import (
	"fmt"

	"github.com/k-r-g/gemini/codec"
	"github.com/nats-io/nuid"
)

const (
	// CacheTopicDestination is the fixed topic all instances publish to
	// and subscribe from.
	CacheTopicDestination = "CACHE.TOPIC"

	// PropertyClientUUID is the well-known envelope property carrying the
	// sending instance's client identifier, used for loop suppression.
	PropertyClientUUID = "Gemini.CacheMgr.ClientUUID"

	// defaultEncoding is the codec used to serialize event payloads onto
	// the wire. Kept human-debuggable and stable-ordered for
	// OrderedProperties; other codecs in the registry remain available
	// for property values a store encodes in a different scheme.
	defaultEncoding = "json"
)

// PayloadKind identifies which of the two tagged event families an
// Envelope's payload decodes into.
type PayloadKind string

const (
	PayloadKindEntity   PayloadKind = "EntityCacheEvent"
	PayloadKindRelation PayloadKind = "RelationCacheEvent"
)

// Envelope is the transport-agnostic object envelope: a typed, opaque
// payload plus string-valued properties, matching the external transport
// contract in spec §6 (a stand-in for a JMS ObjectMessage). Kind names
// the event family; Action names the specific variant within that
// family, letting decodeEntityPayload/decodeRelationPayload allocate the
// right concrete type on receipt.
type Envelope struct {
	ID         string            `json:"id"`
	Kind       PayloadKind       `json:"kind"`
	Action     string            `json:"action"`
	Encoding   string            `json:"encoding"`
	Payload    []byte            `json:"payload"`
	Properties map[string]string `json:"properties"`
}

// Property returns a property value and whether it was set.
func (e *Envelope) Property(name string) (string, bool) {
	if e.Properties == nil {
		return "", false
	}
	v, ok := e.Properties[name]
	return v, ok
}

// SetProperty sets a property, initializing the map if necessary.
func (e *Envelope) SetProperty(name, value string) {
	if e.Properties == nil {
		e.Properties = make(map[string]string, 1)
	}
	e.Properties[name] = value
}

// newEnvelope encodes evt (an EntityCacheEvent or RelationCacheEvent)
// into a new Envelope using the default codec.
func newEnvelope(evt any) (*Envelope, error) {
	c, ok := codec.Get(defaultEncoding)
	if !ok {
		return nil, fmt.Errorf("gemini: no codec registered for %q", defaultEncoding)
	}

	var kind PayloadKind
	var action string
	switch e := evt.(type) {
	case EntityCacheEvent:
		kind = PayloadKindEntity
		action = string(e.Action())
	case RelationCacheEvent:
		kind = PayloadKindRelation
		action = string(e.Action())
	default:
		return nil, fmt.Errorf("gemini: cannot envelope value of type %T", evt)
	}

	b, err := c.Marshal(evt)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ID:       nuid.Next(),
		Kind:     kind,
		Action:   action,
		Encoding: defaultEncoding,
		Payload:  b,
	}, nil
}

// decodePayload decodes env's payload into the concrete event variant
// named by env.Kind and env.Action, returning either an EntityCacheEvent
// or a RelationCacheEvent as an any. An unrecognized Kind, unrecognized
// Action, or missing codec is ErrMalformedEnvelope or ErrUnknownAction.
func decodePayload(env *Envelope) (any, error) {
	switch env.Kind {
	case PayloadKindEntity:
		return decodeEntityPayload(env)
	case PayloadKindRelation:
		return decodeRelationPayload(env)
	default:
		return nil, fmt.Errorf("%w: unrecognized payload kind %q", ErrMalformedEnvelope, env.Kind)
	}
}

func decodeEntityPayload(env *Envelope) (EntityCacheEvent, error) {
	c, ok := codec.Get(env.Encoding)
	if !ok {
		return nil, fmt.Errorf("%w: no codec for encoding %q", ErrMalformedEnvelope, env.Encoding)
	}

	unmarshal := func(dst any) error {
		if err := c.Unmarshal(env.Payload, dst); err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedEnvelope, err)
		}
		return nil
	}

	switch EntityAction(env.Action) {
	case ActionFullReset:
		var evt FullResetEvent
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionGroupReset:
		var evt GroupResetEvent
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionObjectReset:
		var evt ObjectResetEvent
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionObjectRemove:
		var evt ObjectRemoveEvent
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("%w: entity action %q", ErrUnknownAction, env.Action)
	}
}

func decodeRelationPayload(env *Envelope) (RelationCacheEvent, error) {
	c, ok := codec.Get(env.Encoding)
	if !ok {
		return nil, fmt.Errorf("%w: no codec for encoding %q", ErrMalformedEnvelope, env.Encoding)
	}

	unmarshal := func(dst any) error {
		if err := c.Unmarshal(env.Payload, dst); err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedEnvelope, err)
		}
		return nil
	}

	switch RelationAction(env.Action) {
	case ActionRelationAdd:
		var evt RelationAdd
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionRelationAddAll:
		var evt RelationAddAll
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionRelationClear:
		var evt RelationClear
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionRelationRemove:
		var evt RelationRemove
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionRelationRemoveAll:
		var evt RelationRemoveAll
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionRelationRemoveLeftValue:
		var evt RelationRemoveLeftValue
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionRelationRemoveRightValue:
		var evt RelationRemoveRightValue
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionRelationReplaceAll:
		var evt RelationReplaceAll
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	case ActionRelationReset:
		var evt RelationReset
		if err := unmarshal(&evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("%w: relation action %q", ErrUnknownAction, env.Action)
	}
}
