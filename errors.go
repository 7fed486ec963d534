package statesync

import "fmt"

// UnderrunError is returned when a BitBuffer pop/peek requests more bits
// than are currently stored. It is fatal to the frame being decoded but
// never propagates past the frame boundary (spec §7).
type UnderrunError struct {
	Requested int
	Available int
}

func (e *UnderrunError) Error() string {
	return fmt.Sprintf("statesync: bit buffer underrun: requested %d bits, %d available", e.Requested, e.Available)
}

// ProtocolMismatchError signals that a decoded dirty-flag bit references a
// field index the receiver's State layout does not know about.
type ProtocolMismatchError struct {
	SchemaName string
	FieldIndex uint8
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("statesync: protocol mismatch: %s has no field %d", e.SchemaName, e.FieldIndex)
}

// StaleDeltaError signals an incoming delta with a tick at or behind the
// slot's currently stored tick. Per spec §7 the caller should drop it
// silently; the type exists so callers that want to log/count can
// distinguish it from other decode failures.
type StaleDeltaError struct {
	Incoming Tick
	Stored   Tick
}

func (e *StaleDeltaError) Error() string {
	return fmt.Sprintf("statesync: stale delta: incoming %s not after stored %s", e.Incoming, e.Stored)
}

// MissingBasisError signals that produceDelta was asked to diff against a
// basis tick the server's outgoing queue has already evicted. Per spec §7
// the caller promotes to a full snapshot; this type documents why.
type MissingBasisError struct {
	BasisTick Tick
}

func (e *MissingBasisError) Error() string {
	return fmt.Sprintf("statesync: missing basis for tick %s, promoting to full snapshot", e.BasisTick)
}

// FirstDeltaNotImmutableError signals the client received the first delta
// for an entity without hasImmutableData set. Per spec §7 the frame is
// dropped and the client waits for an immutable frame.
type FirstDeltaNotImmutableError struct {
	EntityId EntityId
	Tick     Tick
}

func (e *FirstDeltaNotImmutableError) Error() string {
	return fmt.Sprintf("statesync: first delta for %s at %s missing hasImmutableData", e.EntityId, e.Tick)
}

// InvariantViolationError signals an internal assertion failure (e.g.
// attempting to interpolate with no current record). Per spec §7 this is a
// programmer error: it panics in debug builds and is a defensive no-op
// otherwise. Debug is controlled by the package-level Debug flag.
type InvariantViolationError struct {
	Msg string
}

func (e *InvariantViolationError) Error() string {
	return "statesync: invariant violation: " + e.Msg
}

// Debug gates whether InvariantViolation conditions panic (true, for
// development/test builds) or are handled as a defensive no-op with a
// logged warning (false, the production default).
var Debug = false

// invariant raises an InvariantViolationError: it panics when Debug is set,
// otherwise logs and returns the error for the caller to handle
// defensively.
func invariant(format string, args ...any) error {
	err := &InvariantViolationError{Msg: fmt.Sprintf(format, args...)}
	if Debug {
		panic(err)
	}
	logger().Warn(err.Error())
	return err
}
