package statesync

// State is the per-entity mutable value object contract from spec §3/§4.3.
// Concrete variants are a closed, per-factoryType set (spec §9 design note:
// "deep inheritance of State subclasses" becomes a closed set of tagged
// variants, one per registered entity type, rather than an open class
// hierarchy).
//
// Implementations must satisfy the round-trip invariant: for any s, basis,
// DecodeDelta(EncodeDelta(s, basis), basis) is field-wise equal to s under
// each field's encoder equivalence.
type State interface {
	// SchemaName identifies the concrete variant, for diagnostics and
	// ProtocolMismatchError messages.
	SchemaName() string

	// FieldCount is the number of encodable fields this variant declares.
	FieldCount() uint8

	// Reset sets every field to its zero value.
	Reset()

	// CopyFrom performs a field-wise assignment from other, which must be
	// the same concrete type.
	CopyFrom(other State)

	// Clone returns an independent deep copy.
	Clone() State

	// DirtyFlags returns a bitmask with bit i set iff field i differs from
	// basis's field i under that field's encoder equivalence. basis == nil
	// is treated as "every field differs" (full-dirty), matching an
	// immutable/first-send frame.
	DirtyFlags(basis State) uint32

	// EncodeFull writes every field in fixed canonical order.
	EncodeFull(buf *BitBuffer)

	// DecodeFull reads every field in fixed canonical order.
	DecodeFull(buf *BitBuffer) error

	// EncodeDelta writes dirtyFlags(s, basis) using dirty, then each field
	// whose flag is set; absent fields are not written. Because
	// BitBuffer is a LIFO stack, the *push* call order inside an
	// implementation runs in reverse of this logical order (fields from
	// the highest index down, then the flag word) so that a matching
	// DecodeDelta's *pop* order comes out exactly as described: flags
	// first, then fields in ascending canonical order.
	EncodeDelta(buf *BitBuffer, basis State, dirty *BitmaskEncoder)

	// DecodeDelta is EncodeDelta's inverse: unset fields take basis's
	// value. Returns the decoded dirty-flag bitmask so the caller can
	// populate StateDelta.Flags.
	DecodeDelta(buf *BitBuffer, basis State, dirty *BitmaskEncoder) (uint32, error)

	// ApplyDelta merges delta's fields whose bit is set in flags into s,
	// leaving the rest of s untouched.
	ApplyDelta(delta State, flags uint32)

	// ApplySmoothed produces an interpolated/extrapolated state from a and
	// b at parameter t. t is not required to lie in [0,1]; discrete fields
	// snap to a when t < 0.5, else b, and numeric fields blend linearly
	// (spec §4, "applySmoothed").
	ApplySmoothed(a, b State, t float64) State
}

// HasTick is satisfied by anything a DejitterBuffer/QueueBuffer can index
// by simulation tick.
type HasTick interface {
	GetTick() Tick
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func snap(t float64, aVal, bVal uint32) uint32 {
	if t < 0.5 {
		return aVal
	}
	return bVal
}
