package statesync

import (
	"testing"
	"time"
)

func TestSmoothingBufferFirstAcquisitionRequiresImmutable(t *testing.T) {
	incoming := NewDejitterBuffer[StateDelta](4, 1)
	sb := NewSmoothingBuffer(incoming, 50*time.Millisecond)

	incoming.Store(StateDelta{Tick: 1, State: &fixtureState{X: 1}, HasImmutableData: false})
	if _, err := sb.Update(Tick(1)); err == nil {
		t.Fatalf("expected an error when the first acquisition lacks hasImmutableData")
	}
}

func TestSmoothingBufferInterpolatesBetweenPrevAndCur(t *testing.T) {
	incoming := NewDejitterBuffer[StateDelta](8, 1)
	sb := NewSmoothingBuffer(incoming, 100*time.Millisecond)

	incoming.Store(StateDelta{Tick: 0, State: &fixtureState{X: 0, Y: 0}, HasImmutableData: true, Flags: fxFullMask})
	if _, err := sb.Update(Tick(0)); err != nil {
		t.Fatalf("Update(0): %v", err)
	}

	incoming.Store(StateDelta{Tick: 1, State: &fixtureState{X: 10}, HasImmutableData: false, Flags: 1 << fxFieldX})
	if _, err := sb.Update(Tick(1)); err != nil {
		t.Fatalf("Update(1): %v", err)
	}

	out := sb.GetSmoothed(50*time.Millisecond, Tick(0)).(*fixtureState)
	if out.X < 0 || out.X > 10 {
		t.Fatalf("interpolated X = %f, want within [0,10]", out.X)
	}
}

func TestSmoothingBufferHoldsLastKnownWhenNothingNew(t *testing.T) {
	incoming := NewDejitterBuffer[StateDelta](4, 1)
	sb := NewSmoothingBuffer(incoming, 50*time.Millisecond)

	incoming.Store(StateDelta{Tick: 0, State: &fixtureState{X: 5}, HasImmutableData: true, Flags: fxFullMask})
	if _, err := sb.Update(Tick(0)); err != nil {
		t.Fatalf("Update(0): %v", err)
	}

	// No new delta arrives at tick 5; Update should just return the held cur.
	out, err := sb.Update(Tick(5))
	if err != nil {
		t.Fatalf("Update(5): %v", err)
	}
	if out.(*fixtureState).X != 5 {
		t.Fatalf("held state X = %f, want 5", out.(*fixtureState).X)
	}
}
