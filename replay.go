package statesync

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DiffRecord captures one entity's StateDelta as sent, for later replay or
// offline analysis (desync debugging, time-travel inspection).
type DiffRecord struct {
	Seq       uint64    `json:"seq" yaml:"seq"`
	Tick      Tick      `json:"tick" yaml:"tick"`
	EntityId  EntityId  `json:"entityId" yaml:"entityId"`
	Timestamp time.Time `json:"ts" yaml:"ts"`
	Flags     uint32    `json:"flags" yaml:"flags"`
	Data      []byte    `json:"data" yaml:"data"`
}

// DiffRecorder accumulates DiffRecords between drains. Attach it to a
// Session's OnAfterBroadcast hook to capture every delta a tick produced.
type DiffRecorder struct {
	records []DiffRecord
	seq     uint64
}

// NewDiffRecorder creates an empty recorder.
func NewDiffRecorder() *DiffRecorder {
	return &DiffRecorder{}
}

// Record captures one entity's delta, encoded as a wire frame via
// EncodeFrame, under the next sequence number.
func (dr *DiffRecorder) Record(tick Tick, delta StateDelta, basis State, dirty *BitmaskEncoder) {
	buf := NewBitBuffer(64)
	EncodeFrame(buf, delta, basis, dirty)

	dr.seq++
	dr.records = append(dr.records, DiffRecord{
		Seq:       dr.seq,
		Tick:      tick,
		EntityId:  delta.EntityId,
		Timestamp: time.Now(),
		Flags:     delta.Flags,
		Data:      bitBufferBytes(buf),
	})
}

// Records returns all captured records without clearing them.
func (dr *DiffRecorder) Records() []DiffRecord {
	return dr.records
}

// Drain returns all captured records and clears the recorder.
func (dr *DiffRecorder) Drain() []DiffRecord {
	records := dr.records
	dr.records = nil
	return records
}

// Clear discards all captured records.
func (dr *DiffRecorder) Clear() {
	dr.records = dr.records[:0]
}

// MarshalRecordsJSON serializes records to JSON, for archival alongside a
// WorldSnapshot.
func MarshalRecordsJSON(records []DiffRecord) ([]byte, error) {
	return json.Marshal(records)
}

// UnmarshalRecordsJSON deserializes records from JSON.
func UnmarshalRecordsJSON(data []byte) ([]DiffRecord, error) {
	var records []DiffRecord
	err := json.Unmarshal(data, &records)
	return records, err
}

// MarshalRecordsYAML serializes records to YAML, for a human-readable
// export a developer can diff in a code review or paste into a bug report.
func MarshalRecordsYAML(records []DiffRecord) ([]byte, error) {
	return yaml.Marshal(records)
}

// UnmarshalRecordsYAML deserializes records from YAML.
func UnmarshalRecordsYAML(data []byte) ([]DiffRecord, error) {
	var records []DiffRecord
	err := yaml.Unmarshal(data, &records)
	return records, err
}

// Replayer reconstructs per-entity state by applying recorded DiffRecords
// in sequence order against a newState constructor keyed by schema name.
// It is a server-side debugging tool, not part of the live client
// prediction/smoothing path.
type Replayer struct {
	newState func(schemaName string) (State, error)
	states   map[EntityId]State
	schemas  map[EntityId]string
	dirty    *BitmaskEncoder
}

// NewReplayer creates a replayer. newState constructs a fresh zero State
// for a given schema name; dirty is the shared EntityDirty bitmask encoder
// used at record time.
func NewReplayer(newState func(schemaName string) (State, error), dirty *BitmaskEncoder) *Replayer {
	return &Replayer{
		newState: newState,
		states:   make(map[EntityId]State),
		schemas:  make(map[EntityId]string),
		dirty:    dirty,
	}
}

// RegisterSchema tells the replayer which schema an entity uses, so the
// first record for that entity (which may be a delta, not a full frame)
// can be decoded against a freshly constructed basis.
func (r *Replayer) RegisterSchema(id EntityId, schemaName string) {
	r.schemas[id] = schemaName
}

// State returns the replayer's current reconstruction of an entity's
// state, or nil if the entity has not appeared in any replayed record.
func (r *Replayer) State(id EntityId) State {
	return r.states[id]
}

// Reset clears all reconstructed state.
func (r *Replayer) Reset() {
	r.states = make(map[EntityId]State)
}

// Replay applies a single record, decoding it against the entity's current
// basis (or a fresh zero value on first sight) and merging the result.
func (r *Replayer) Replay(record DiffRecord) error {
	schemaName := r.schemas[record.EntityId]
	basis := r.states[record.EntityId]
	if basis == nil {
		if r.newState == nil {
			return fmt.Errorf("statesync: replay entity %s: no schema registered", record.EntityId)
		}
		fresh, err := r.newState(schemaName)
		if err != nil {
			return fmt.Errorf("statesync: replay entity %s: %w", record.EntityId, err)
		}
		basis = fresh
	}

	buf, err := bitBufferFromBytes(record.Data)
	if err != nil {
		return fmt.Errorf("statesync: replay entity %s: %w", record.EntityId, err)
	}

	newDecodeTarget := func() State {
		s, err := r.newState(schemaName)
		if err != nil {
			return nil
		}
		return s
	}

	delta, err := DecodeFrame(buf, basis, newDecodeTarget, r.dirty)
	if err != nil {
		return fmt.Errorf("statesync: replay entity %s: %w", record.EntityId, err)
	}

	if delta.IsDestroyed {
		delete(r.states, record.EntityId)
		return nil
	}

	basis.ApplyDelta(delta.State, delta.Flags)
	r.states[record.EntityId] = basis
	return nil
}

// ReplayAll applies every record in records, in order.
func (r *Replayer) ReplayAll(records []DiffRecord) error {
	for _, record := range records {
		if err := r.Replay(record); err != nil {
			return err
		}
	}
	return nil
}

// ReplayRange applies records whose Seq lies within [fromSeq, toSeq].
func (r *Replayer) ReplayRange(records []DiffRecord, fromSeq, toSeq uint64) error {
	for _, record := range records {
		if record.Seq < fromSeq {
			continue
		}
		if record.Seq > toSeq {
			break
		}
		if err := r.Replay(record); err != nil {
			return err
		}
	}
	return nil
}
