package statesync

import "time"

// PredictionBuffer is the client-side prediction + command-replay buffer for
// locally-controlled entities (spec §4.7). It keeps two records, prev and
// cur, rebased every tick from the latest confirmed server state plus any
// buffered deltas the dejitter buffer has accumulated since.
type PredictionBuffer struct {
	incoming     *DejitterBuffer[StateDelta]
	tickDuration time.Duration

	prev, cur       StateRecord
	hasPrev, hasCur bool

	cachedOutput State
}

// NewPredictionBuffer builds a prediction buffer reading from incoming.
func NewPredictionBuffer(incoming *DejitterBuffer[StateDelta], tickDuration time.Duration) *PredictionBuffer {
	return &PredictionBuffer{incoming: incoming, tickDuration: tickDuration}
}

func (b *PredictionBuffer) tickTime(t Tick) time.Duration {
	return time.Duration(int32(t)) * b.tickDuration
}

// Start re-bases prediction from confirmedState, replaying every buffered
// delta with tick > now ahead of local command simulation (spec §4.7 steps
// 1-5). It must be called once per client tick before replaying pending
// commands.
func (b *PredictionBuffer) Start(now Tick, confirmedState State) State {
	latest := confirmedState.Clone()

	tick := now
	for _, d := range b.incoming.GetLatestFrom(now) {
		latest.ApplyDelta(d.State, d.Flags)
		tick = d.Tick
	}
	if l, ok := b.incoming.Latest(); ok && tick.Less(l.Tick) {
		tick = l.Tick
	}

	b.cur = StateRecord{tick: tick, state: latest}
	b.hasCur = true
	b.cachedOutput = latest.Clone()

	return b.cur.state
}

// Update is called after each replayed command's simulation: it retires
// prev, promotes cur to prev, and starts a fresh cur one tick later holding
// simulatedState.
func (b *PredictionBuffer) Update(simulatedState State) {
	oldCur := b.cur
	oldHasCur := b.hasCur

	if oldHasCur {
		b.prev = oldCur
		b.hasPrev = true
	}

	nextTick := InvalidTick.Add(1)
	if oldHasCur {
		nextTick = oldCur.tick.Add(1)
	}
	b.cur = StateRecord{tick: nextTick, state: simulatedState.Clone()}
	b.hasCur = true
}

// GetSmoothed interpolates between prev and cur for rendering, or returns
// cur unchanged if there is no prev yet.
func (b *PredictionBuffer) GetSmoothed(frameDelta time.Duration) State {
	if !b.hasCur {
		return nil
	}
	if !b.hasPrev {
		return b.cur.state
	}
	span := b.tickTime(b.cur.tick) - b.tickTime(b.prev.tick)
	t := ratio(frameDelta, span)
	return b.cachedOutput.ApplySmoothed(b.prev.state, b.cur.state, t)
}

// CurrentTick returns the tick of the current (most advanced) record.
func (b *PredictionBuffer) CurrentTick() Tick {
	if !b.hasCur {
		return InvalidTick
	}
	return b.cur.tick
}
