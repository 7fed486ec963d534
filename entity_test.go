package statesync

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testWorld struct {
	tick Tick
}

func (w *testWorld) Tick() Tick { return w.tick }

type testController struct {
	latest    any
	hasLatest bool
	pending   []any
}

func (c *testController) LatestCommand() (any, bool) { return c.latest, c.hasLatest }
func (c *testController) PendingCommands() []any     { return c.pending }

// TestProduceDeltaScenarioS3 matches spec scenario S3: the server's outgoing
// history only covers ticks 100, 110, 120; a viewer whose basisTick (80) is
// older than every stored record gets a full, immutable snapshot instead of
// a delta against a basis that no longer exists.
func TestProduceDeltaScenarioS3(t *testing.T) {
	world := &testWorld{tick: 125}
	e := NewServerEntity(1, "fixture", &fixtureState{Ammo: 2, X: 3}, world, EntityConfig{
		DejitterBufferLength: 8,
	}, Callbacks{})

	for _, tick := range []int32{100, 110, 120} {
		e.outgoing.Store(CreateStateRecord(Tick(tick), &fixtureState{Ammo: int64(tick)}))
	}

	delta, ok := e.ProduceDelta(Tick(80), nil)
	if !ok {
		t.Fatalf("ProduceDelta should not skip when the basis is missing")
	}
	if !delta.HasImmutableData {
		t.Fatalf("ProduceDelta should send a full snapshot when basisTick predates all history")
	}
	if delta.Flags != fxFullMask {
		t.Fatalf("full snapshot flags = %#x, want full mask %#x", delta.Flags, fxFullMask)
	}
}

// TestProduceDeltaAppliesEffectsBeforeFilter matches SPEC_FULL §12: an
// entity's Effects chain transforms the outgoing clone before the
// destination filter runs, so a filter can redact a field an effect just
// computed (and an effect never sees an already-redacted value).
func TestProduceDeltaAppliesEffectsBeforeFilter(t *testing.T) {
	world := &testWorld{tick: 5}
	e := NewServerEntity(1, "fixture", &fixtureState{Ammo: 1}, world, EntityConfig{
		DejitterBufferLength: 8,
	}, Callbacks{})

	if err := e.Effects().Add(Func[EntityId]("buff_ammo", func(s State, _ EntityId) State {
		fs := s.(*fixtureState)
		cp := *fs
		cp.Ammo += 10
		return &cp
	})); err != nil {
		t.Fatalf("Effects().Add: %v", err)
	}

	var sawAmmoAfterEffect int64
	hideAmmo := func(st State) State {
		fs := st.(*fixtureState)
		sawAmmoAfterEffect = fs.Ammo
		cp := *fs
		cp.Ammo = 0
		return &cp
	}

	delta, ok := e.ProduceDelta(InvalidTick, hideAmmo)
	if !ok {
		t.Fatalf("ProduceDelta should not skip an immutable first frame")
	}
	if sawAmmoAfterEffect != 11 {
		t.Fatalf("filter observed Ammo=%d, want the effect-adjusted 11 (1+10)", sawAmmoAfterEffect)
	}
	if got := delta.State.(*fixtureState).Ammo; got != 0 {
		t.Fatalf("final delta Ammo = %d, want 0 (redacted by the filter that ran after the effect)", got)
	}
}

// TestProduceDeltaLogsMissingBasis asserts that requesting a basisTick the
// outgoing history has already evicted logs a MissingBasisError (spec §7's
// "log, continue" policy) before promoting to a full snapshot.
func TestProduceDeltaLogsMissingBasis(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	world := &testWorld{tick: 125}
	e := NewServerEntity(1, "fixture", &fixtureState{Ammo: 1}, world, EntityConfig{DejitterBufferLength: 8}, Callbacks{})
	e.outgoing.Store(CreateStateRecord(Tick(100), &fixtureState{Ammo: 1}))

	delta, ok := e.ProduceDelta(Tick(80), nil)
	if !ok || !delta.HasImmutableData {
		t.Fatalf("ProduceDelta(80) should promote to a full snapshot, got %+v, %v", delta, ok)
	}

	entries := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one warning log for the missing basis, got %d", len(entries))
	}
	want := (&MissingBasisError{BasisTick: Tick(80)}).Error()
	if entries[0].Message != want {
		t.Fatalf("log message = %q, want %q", entries[0].Message, want)
	}
}

func TestProduceDeltaSkipsEmptyNonImmutableFrame(t *testing.T) {
	world := &testWorld{tick: 10}
	e := NewServerEntity(1, "fixture", &fixtureState{Ammo: 2}, world, EntityConfig{
		DejitterBufferLength: 8,
	}, Callbacks{})
	e.outgoing.Store(CreateStateRecord(Tick(5), &fixtureState{Ammo: 2}))

	_, ok := e.ProduceDelta(Tick(5), nil)
	if ok {
		t.Fatalf("ProduceDelta should report ok=false for an unchanged, non-immutable frame")
	}
}

func TestProduceDeltaDestroyedEntitySendsDestroyFrame(t *testing.T) {
	world := &testWorld{tick: 10}
	e := NewServerEntity(1, "fixture", &fixtureState{}, world, EntityConfig{DejitterBufferLength: 4}, Callbacks{})
	e.MarkForRemove()

	world.tick = 11
	delta, ok := e.ProduceDelta(InvalidTick, nil)
	if !ok || !delta.IsDestroyed {
		t.Fatalf("ProduceDelta for a removed entity should return an ok destroy frame, got %+v, %v", delta, ok)
	}
}

// TestUpdateFreezeScenarioS4 matches spec scenario S4: with
// ticksBeforeFreeze=10 and lastDelta=50, a gap of 5 keeps the entity alive, a
// gap of 11 freezes it (firing OnFrozen exactly once), repeating the same
// tick doesn't refire, and a fresh delta followed by a zero gap unfreezes it.
func TestUpdateFreezeScenarioS4(t *testing.T) {
	world := &testWorld{tick: 0}
	frozenCount, unfrozenCount := 0, 0
	e := NewClientEntity(1, "fixture", &fixtureState{}, world, EntityConfig{
		DejitterBufferLength: 8,
		NetworkSendRate:      2,
		TicksBeforeFreeze:    10,
	}, Callbacks{
		OnFrozen:   func(*Entity) { frozenCount++ },
		OnUnfrozen: func(*Entity) { unfrozenCount++ },
	})
	e.lastDelta = Tick(50)

	e.UpdateFreeze(Tick(55))
	if e.IsFrozen() || frozenCount != 0 {
		t.Fatalf("gap of 5 should not freeze: isFrozen=%v frozenCount=%d", e.IsFrozen(), frozenCount)
	}

	e.UpdateFreeze(Tick(61))
	if !e.IsFrozen() || frozenCount != 1 {
		t.Fatalf("gap of 11 should freeze exactly once: isFrozen=%v frozenCount=%d", e.IsFrozen(), frozenCount)
	}

	e.UpdateFreeze(Tick(62))
	if !e.IsFrozen() || frozenCount != 1 {
		t.Fatalf("a persisting gap should not refire OnFrozen: frozenCount=%d", frozenCount)
	}

	if err := e.ReceiveDelta(StateDelta{Tick: 62, HasImmutableData: true}); err != nil {
		t.Fatalf("ReceiveDelta: %v", err)
	}
	e.UpdateFreeze(Tick(62))
	if e.IsFrozen() || unfrozenCount != 1 {
		t.Fatalf("a fresh delta closing the gap should unfreeze exactly once: isFrozen=%v unfrozenCount=%d", e.IsFrozen(), unfrozenCount)
	}
}

// TestUpdateFreezeIdempotence is spec property 7: repeated UpdateFreeze
// calls with the same actualServerTick never produce more than one
// OnFrozen/OnUnfrozen transition.
func TestUpdateFreezeIdempotence(t *testing.T) {
	world := &testWorld{tick: 0}
	frozenCount := 0
	e := NewClientEntity(1, "fixture", &fixtureState{}, world, EntityConfig{
		DejitterBufferLength: 8,
		NetworkSendRate:      2,
		TicksBeforeFreeze:    10,
	}, Callbacks{
		OnFrozen: func(*Entity) { frozenCount++ },
	})
	e.lastDelta = Tick(0)

	for i := 0; i < 5; i++ {
		e.UpdateFreeze(Tick(100))
	}
	if frozenCount != 1 {
		t.Fatalf("repeated UpdateFreeze at the same tick fired OnFrozen %d times, want 1", frozenCount)
	}
}

func TestSetControllerUnfreezesImmediately(t *testing.T) {
	world := &testWorld{tick: 0}
	unfrozenCount := 0
	e := NewClientEntity(1, "fixture", &fixtureState{}, world, EntityConfig{
		DejitterBufferLength: 8,
		NetworkSendRate:      2,
		TicksBeforeFreeze:    10,
	}, Callbacks{
		OnUnfrozen: func(*Entity) { unfrozenCount++ },
	})
	e.lastDelta = Tick(0)
	e.UpdateFreeze(Tick(100))
	if !e.IsFrozen() {
		t.Fatalf("entity should be frozen before taking ownership")
	}

	e.SetController(&testController{})
	if e.IsFrozen() || unfrozenCount != 1 {
		t.Fatalf("taking ownership of a frozen entity should unfreeze it immediately: isFrozen=%v unfrozenCount=%d", e.IsFrozen(), unfrozenCount)
	}
}

// TestUpdateClientReplayScenarioS5 drives scenario S5 end-to-end through a
// real client Entity: a controller owns the entity, replays three pending
// +1/+2/+1 move commands with no new server deltas, and the resulting state
// reflects the full replay.
func TestUpdateClientReplayScenarioS5(t *testing.T) {
	world := &testWorld{tick: 100}
	confirmed := &fixtureState{X: 0}
	ctrl := &testController{pending: []any{1.0, 2.0, 1.0}}

	e := NewClientEntity(1, "fixture", confirmed, world, EntityConfig{
		DejitterBufferLength: 8,
		NetworkSendRate:      2,
		TickDuration:         50_000_000, // 50ms, as time.Duration
	}, Callbacks{
		OnSimulateCommand: func(_ *Entity, s State, cmd any) {
			fs := s.(*fixtureState)
			fs.X += cmd.(float64)
		},
	})
	e.SetController(ctrl)

	if err := e.UpdateClient(); err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}

	got := e.State().(*fixtureState)
	if got.X != 4 {
		t.Fatalf("replayed X = %f, want 4", got.X)
	}
	if e.prediction.CurrentTick() != 103 {
		t.Fatalf("prediction CurrentTick() = %s, want tick(103)", e.prediction.CurrentTick())
	}
}
