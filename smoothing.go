package statesync

import "time"

// SmoothingBuffer is the client-side interpolation/extrapolation buffer for
// remote (unowned) entities, spec §4.6. It maintains a rolling prev/cur/next
// window of StateRecords plus a cachedOutput State reused across frames to
// avoid per-frame allocation.
type SmoothingBuffer struct {
	incoming     *DejitterBuffer[StateDelta]
	tickDuration time.Duration

	prev, cur, next         StateRecord
	hasPrev, hasCur, hasNext bool

	cachedOutput State
}

// NewSmoothingBuffer builds a smoothing buffer reading from incoming, with
// tickDuration converting Tick values to wall-clock time for interpolation
// parameters.
func NewSmoothingBuffer(incoming *DejitterBuffer[StateDelta], tickDuration time.Duration) *SmoothingBuffer {
	return &SmoothingBuffer{incoming: incoming, tickDuration: tickDuration}
}

func (b *SmoothingBuffer) tickTime(t Tick) time.Duration {
	return time.Duration(int32(t)) * b.tickDuration
}

// Update consults the dejitter buffer for the (cur, next) pair around now
// and advances the rolling window accordingly (spec §4.6 steps 1-5).
func (b *SmoothingBuffer) Update(now Tick) (State, error) {
	curDelta, curOK, nextDelta, nextOK := b.incoming.GetRangeAt(now)

	// Freshness invariant: next reflects only this frame's lookahead.
	b.hasNext = false

	if !curOK {
		if b.hasCur {
			return b.cur.state, nil
		}
		return nil, nil
	}

	if !b.hasCur {
		if !curDelta.HasImmutableData {
			return nil, invariant("smoothing buffer's first acquisition lacks hasImmutableData for %s", curDelta.EntityId)
		}
		b.cachedOutput = curDelta.State.Clone()
		b.cur = CreateStateRecord(curDelta.Tick, curDelta.State)
		b.hasCur = true
	} else if b.cur.tick.Less(curDelta.Tick) {
		b.prev = b.cur
		b.hasPrev = true

		next := b.cur.state.Clone()
		next.ApplyDelta(curDelta.State, curDelta.Flags)
		b.cur = StateRecord{tick: curDelta.Tick, state: next}
	}

	if nextOK && b.cur.tick.Less(nextDelta.Tick) {
		nextState := b.cur.state.Clone()
		nextState.ApplyDelta(nextDelta.State, nextDelta.Flags)
		b.next = StateRecord{tick: nextDelta.Tick, state: nextState}
		b.hasNext = true
	}

	return b.cur.state, nil
}

// GetSmoothed returns the state to render at now+frameDelta: interpolated
// between cur and next when a lookahead sample exists, extrapolated from
// prev through cur otherwise, or cur unchanged if neither is available. The
// interpolation parameter t is not clamped to [0,1]; ApplySmoothed defines
// behavior outside that range (spec §4.6).
func (b *SmoothingBuffer) GetSmoothed(frameDelta time.Duration, now Tick) State {
	if !b.hasCur {
		return nil
	}

	target := b.tickTime(now) + frameDelta

	if b.hasNext {
		span := b.tickTime(b.next.tick) - b.tickTime(b.cur.tick)
		t := ratio(target-b.tickTime(b.cur.tick), span)
		return b.cachedOutput.ApplySmoothed(b.cur.state, b.next.state, t)
	}

	if b.hasPrev {
		span := b.tickTime(b.cur.tick) - b.tickTime(b.prev.tick)
		t := ratio(target-b.tickTime(b.prev.tick), span)
		return b.cachedOutput.ApplySmoothed(b.prev.state, b.cur.state, t)
	}

	return b.cur.state
}

func ratio(numer, denom time.Duration) float64 {
	if denom == 0 {
		return 0
	}
	return float64(numer) / float64(denom)
}
