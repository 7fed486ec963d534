package statesync

// StateRecord is an immutable (Tick, State) snapshot kept in history. It is
// logically owned by whatever buffer holds it, even though the State value
// may be backed by pooled storage; the record never aliases a live,
// still-mutating State — CreateStateRecord always clones.
type StateRecord struct {
	tick  Tick
	state State
}

// CreateStateRecord builds a record owning an independent clone of state.
func CreateStateRecord(tick Tick, state State) StateRecord {
	return StateRecord{tick: tick, state: state.Clone()}
}

// GetTick satisfies HasTick.
func (r StateRecord) GetTick() Tick { return r.tick }

// Tick returns the record's simulation step.
func (r StateRecord) Tick() Tick { return r.tick }

// State returns the record's owned state value. Callers must not mutate it
// in place; Clone it first if a working copy is needed.
func (r StateRecord) State() State { return r.state }

// IsZero reports whether r is the unset record (nil state).
func (r StateRecord) IsZero() bool { return r.state == nil }
