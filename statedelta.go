package statesync

// StateDelta is a transmitted update for one entity: spec §3's
// (entityId, tick, flags, partial state, control bits).
type StateDelta struct {
	EntityId EntityId
	Tick     Tick

	// Flags is the dirty-field bitmask; bit i set means field i is present
	// in State. Meaningless when IsDestroyed is true.
	Flags uint32

	// State carries only the fields whose Flags bit is set; other fields
	// are zero/unspecified and must not be read without checking Flags.
	State State

	// HasImmutableData signals this delta carries full initialization data
	// (first send for this entity) — spec §3/§6.
	HasImmutableData bool

	// IsDestroyed + RemovedTick carry deletion signalling; when true, State
	// and Flags are not transmitted (spec §6 wire format).
	IsDestroyed bool
	RemovedTick Tick
}

// GetTick satisfies HasTick.
func (d StateDelta) GetTick() Tick { return d.Tick }
