package statesync

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeEventRoundTrip(t *testing.T) {
	ev := Event{Type: "round_start", Payload: []byte(`{"round":1}`)}
	wire := EncodeEvent(ev)

	decoded, err := DecodeEvent(wire)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if decoded.Type != ev.Type || !bytes.Equal(decoded.Payload, ev.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, ev)
	}
}

func TestEncodeDecodeEventBatchRoundTrip(t *testing.T) {
	events := []Event{
		{Type: "a", Payload: []byte("1")},
		{Type: "bb", Payload: []byte("22")},
		{Type: "ccc", Payload: nil},
	}
	wire := EncodeEventBatch(events)

	decoded, err := DecodeEventBatch(wire)
	if err != nil {
		t.Fatalf("DecodeEventBatch: %v", err)
	}
	if len(decoded) != len(events) {
		t.Fatalf("decoded %d events, want %d", len(decoded), len(events))
	}
	for i, e := range events {
		if decoded[i].Type != e.Type || !bytes.Equal(decoded[i].Payload, e.Payload) {
			t.Fatalf("event %d mismatch: got %+v, want %+v", i, decoded[i], e)
		}
	}
}

func TestEventBufferDrainClearsPending(t *testing.T) {
	eb := NewEventBuffer[string]()
	if eb.HasEvents() {
		t.Fatalf("a fresh buffer should report no events")
	}

	eb.Add(PendingEvent[string]{Event: Event{Type: "x"}, Target: TargetAll})
	eb.Add(PendingEvent[string]{Event: Event{Type: "y"}, Target: TargetOne, To: "alice"})
	if !eb.HasEvents() || eb.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", eb.Count())
	}

	drained := eb.Drain()
	if len(drained) != 2 {
		t.Fatalf("Drain() returned %d events, want 2", len(drained))
	}
	if eb.HasEvents() {
		t.Fatalf("HasEvents() should be false immediately after Drain")
	}
	if second := eb.Drain(); second != nil {
		t.Fatalf("draining an empty buffer should return nil, got %v", second)
	}
}

func TestEncodePayloadPassesBytesAndStringsThroughJSONMarshalsStructs(t *testing.T) {
	if b, err := encodePayload([]byte("raw")); err != nil || string(b) != "raw" {
		t.Fatalf("encodePayload([]byte) = %v, %v, want \"raw\", nil", b, err)
	}
	if b, err := encodePayload("plain"); err != nil || string(b) != "plain" {
		t.Fatalf("encodePayload(string) = %v, %v, want \"plain\", nil", b, err)
	}
	b, err := encodePayload(map[string]int{"round": 2})
	if err != nil {
		t.Fatalf("encodePayload(struct): %v", err)
	}
	if string(b) != `{"round":2}` {
		t.Fatalf("encodePayload(struct) = %s, want JSON object", b)
	}
	if b, err := encodePayload(nil); err != nil || b != nil {
		t.Fatalf("encodePayload(nil) = %v, %v, want nil, nil", b, err)
	}
}
