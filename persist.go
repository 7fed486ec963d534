package statesync

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotVersion is the persisted schema version, bumped on incompatible
// EntitySnapshotRecord layout changes.
const SnapshotVersion = 1

// EntitySnapshotRecord is one entity's persisted full state: its schema
// name (to pick the right newState constructor on restore) and its
// EncodeFull bit pattern.
type EntitySnapshotRecord struct {
	EntityId   EntityId `json:"entityId"`
	SchemaName string   `json:"schemaName"`
	Tick       Tick     `json:"tick"`
	Data       []byte   `json:"data"`
}

// WorldSnapshot is a persisted point-in-time copy of every tracked entity,
// suitable for crash recovery or save-game style restore.
type WorldSnapshot struct {
	Version  int                    `json:"version"`
	SavedAt  time.Time              `json:"savedAt"`
	Entities []EntitySnapshotRecord `json:"entities"`
}

// BuildWorldSnapshot encodes every entity in entities (keyed by EntityId)
// at the given tick using EncodeFull, ready to persist.
func BuildWorldSnapshot(tick Tick, entities map[EntityId]State) WorldSnapshot {
	snap := WorldSnapshot{
		Version:  SnapshotVersion,
		SavedAt:  time.Now(),
		Entities: make([]EntitySnapshotRecord, 0, len(entities)),
	}
	for id, s := range entities {
		buf := NewBitBuffer(128)
		s.EncodeFull(buf)
		snap.Entities = append(snap.Entities, EntitySnapshotRecord{
			EntityId:   id,
			SchemaName: s.SchemaName(),
			Tick:       tick,
			Data:       bitBufferBytes(buf),
		})
	}
	return snap
}

// bitBufferBytes packs a BitBuffer's words into a byte slice for
// persistence: a 4-byte little-endian bit count followed by each word,
// also little-endian, so a snapshot restores correctly on any platform.
func bitBufferBytes(buf *BitBuffer) []byte {
	bitsUsed := buf.BitsUsed()
	wordCount := (bitsUsed + 31) / 32
	out := make([]byte, 4+wordCount*4)
	out[0] = byte(bitsUsed)
	out[1] = byte(bitsUsed >> 8)
	out[2] = byte(bitsUsed >> 16)
	out[3] = byte(bitsUsed >> 24)
	words := buf.rawWords()
	for i := 0; i < wordCount; i++ {
		w := words[i]
		off := 4 + i*4
		out[off] = byte(w)
		out[off+1] = byte(w >> 8)
		out[off+2] = byte(w >> 16)
		out[off+3] = byte(w >> 24)
	}
	return out
}

func bitBufferFromBytes(data []byte) (*BitBuffer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("statesync: truncated snapshot entity data")
	}
	bitsUsed := int(data[0]) | int(data[1])<<8 | int(data[2])<<16 | int(data[3])<<24
	wordCount := (bitsUsed + 31) / 32
	if len(data) < 4+wordCount*4 {
		return nil, fmt.Errorf("statesync: truncated snapshot entity data")
	}
	words := make([]uint32, wordCount)
	for i := 0; i < wordCount; i++ {
		off := 4 + i*4
		words[i] = uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16 | uint32(data[off+3])<<24
	}
	return newBitBufferFromWords(words, bitsUsed), nil
}

// RestoreWorldSnapshot decodes snap's entities back into State values using
// newState to construct a fresh zero value per schema name.
func RestoreWorldSnapshot(snap WorldSnapshot, newState func(schemaName string) (State, error)) (map[EntityId]State, error) {
	result := make(map[EntityId]State, len(snap.Entities))
	for _, rec := range snap.Entities {
		s, err := newState(rec.SchemaName)
		if err != nil {
			return nil, fmt.Errorf("statesync: restore entity %s: %w", rec.EntityId, err)
		}
		buf, err := bitBufferFromBytes(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("statesync: restore entity %s: %w", rec.EntityId, err)
		}
		if err := s.DecodeFull(buf); err != nil {
			return nil, fmt.Errorf("statesync: restore entity %s: %w", rec.EntityId, err)
		}
		result[rec.EntityId] = s
	}
	return result, nil
}

// SaveWorldSnapshotJSON writes snap to path as indented JSON using an
// atomic temp-file-then-rename so a crash mid-write never corrupts the
// previous snapshot.
func SaveWorldSnapshotJSON(path string, snap WorldSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("statesync: marshal snapshot: %w", err)
	}
	return atomicWrite(path, data)
}

// LoadWorldSnapshotJSON reads a JSON snapshot previously written by
// SaveWorldSnapshotJSON. A missing file is not an error: it returns the
// zero WorldSnapshot and ok=false.
func LoadWorldSnapshotJSON(path string) (WorldSnapshot, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WorldSnapshot{}, false, nil
		}
		return WorldSnapshot{}, false, fmt.Errorf("statesync: read snapshot: %w", err)
	}
	var snap WorldSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return WorldSnapshot{}, false, fmt.Errorf("statesync: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// SaveWorldSnapshotMsgpack writes snap to path using msgpack, a more
// compact binary alternative to the JSON form for large worlds or
// high-frequency autosave.
func SaveWorldSnapshotMsgpack(path string, snap WorldSnapshot) error {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("statesync: marshal msgpack snapshot: %w", err)
	}
	return atomicWrite(path, data)
}

// LoadWorldSnapshotMsgpack reads a snapshot previously written by
// SaveWorldSnapshotMsgpack.
func LoadWorldSnapshotMsgpack(path string) (WorldSnapshot, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WorldSnapshot{}, false, nil
		}
		return WorldSnapshot{}, false, fmt.Errorf("statesync: read msgpack snapshot: %w", err)
	}
	var snap WorldSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return WorldSnapshot{}, false, fmt.Errorf("statesync: unmarshal msgpack snapshot: %w", err)
	}
	return snap, true, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("statesync: mkdir %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("statesync: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("statesync: rename %s: %w", tmp, err)
	}
	return nil
}

// entityIdBase64 is a small helper kept for tooling that wants a
// filesystem-safe per-entity snapshot key.
func entityIdBase64(id EntityId) string {
	var b [4]byte
	b[0] = byte(id)
	b[1] = byte(id >> 8)
	b[2] = byte(id >> 16)
	b[3] = byte(id >> 24)
	return base64.RawURLEncoding.EncodeToString(b[:])
}
