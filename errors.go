package gemini

import "errors"

var (
	// ErrNotConnected names the state of a Manager that has not connected.
	// No function in this package returns it; Manager.Translator returns
	// nil before Connect instead.
	ErrNotConnected = errors.New("gemini: not connected")

	// ErrStoreNotReady names the condition under which the Applier drops a
	// message because the local store has not finished initializing. The
	// Applier logs that drop at debug level and does not retry; it does
	// not return this error.
	ErrStoreNotReady = errors.New("gemini: entity store not initialized")

	// ErrMalformedEnvelope covers wrong message shape, a payload that is
	// neither EntityCacheEvent nor RelationCacheEvent, a missing sender
	// property, or an event whose fields violate its action's invariants.
	ErrMalformedEnvelope = errors.New("gemini: malformed envelope")

	// ErrUnknownAction is returned for an action tag the Applier does not
	// recognize.
	ErrUnknownAction = errors.New("gemini: unknown action")

	// ErrUnknownGroup names a GroupID that resolves to nothing the local
	// store knows about at all (as opposed to a group the store knows but
	// does not cache, which is not an error; see Applier). The Applier
	// logs and drops such events without returning this error.
	ErrUnknownGroup = errors.New("gemini: unknown group id")

	// ErrUnknownRelation is returned when a RelationID does not resolve to
	// any cached relation the local store knows about.
	ErrUnknownRelation = errors.New("gemini: unknown relation id")
)
