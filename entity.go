package statesync

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// World is the collaborator that drives the per-tick loop (spec §6);
// everything about transport, entity iteration, and dispatch order lives
// outside this package.
type World interface {
	Tick() Tick
}

// Controller exposes the latest and pending commands for a locally or
// server-side simulated entity (spec §6). Commands are opaque to the core;
// OnSimulateCommand callbacks interpret them.
type Controller interface {
	LatestCommand() (any, bool)
	PendingCommands() []any
}

// Factory produces uninitialized State instances for a given factoryType
// (spec §6). Entity construction itself is left to the caller (typically a
// World), since the core doesn't own entity registration.
type Factory interface {
	NewState(factoryType string) (State, error)
}

// FilterFunc redacts a destination-scoped clone of a State before it is
// sent to a particular viewer (e.g. hiding another player's hand). nil
// means "no redaction."
type FilterFunc func(State) State

// Callbacks are the entity lifecycle hooks (spec §4.8). Any nil callback is
// simply skipped. OnSimulateCommand/OnSimulate receive the entity's live
// State directly, since they run while the Entity's own lock is held (the
// same goroutine calling back into State() would deadlock); mutate it
// in place rather than calling Entity.State() from inside these two.
type Callbacks struct {
	OnStart             func(*Entity)
	OnShutdown          func(*Entity)
	OnControllerChanged func(*Entity)
	OnSimulateCommand   func(*Entity, State, any)
	OnSimulate          func(*Entity, State)
	OnFrozen            func(*Entity)
	OnUnfrozen          func(*Entity)
}

// EntityConfig carries the spec §6 configuration surface relevant to a
// single entity's buffers.
type EntityConfig struct {
	DejitterBufferLength int
	NetworkSendRate      int32
	TicksBeforeFreeze    int32
	ForceUpdates         bool
	TickDuration         time.Duration
}

// Entity glues state, buffers, controller, and lifecycle together, driving
// per-tick update on server and client (spec §4.8).
type Entity struct {
	mu sync.RWMutex

	Id          EntityId
	FactoryType string

	world     World
	controller Controller
	callbacks Callbacks
	cfg       EntityConfig

	state State

	removedTick       Tick
	hasStarted        bool
	controllerChanged bool

	// Server-only.
	outgoing *QueueBuffer[StateRecord]

	// Client-only.
	incoming   *DejitterBuffer[StateDelta]
	smoothing  *SmoothingBuffer
	prediction *PredictionBuffer
	lastDelta  Tick
	isFrozen   bool

	// effects holds read-time, non-mutating transforms (e.g. fog-of-war)
	// applied to the outgoing clone before the per-viewer filter runs
	// (spec §12: effects compose with the filter registry).
	effects *EffectChain[EntityId]
}

// NewServerEntity builds an Entity in the server role, backed by an
// outgoing QueueBuffer of the configured length.
func NewServerEntity(id EntityId, factoryType string, state State, world World, cfg EntityConfig, cb Callbacks) *Entity {
	return &Entity{
		Id:          id,
		FactoryType: factoryType,
		world:       world,
		state:       state,
		cfg:         cfg,
		callbacks:   cb,
		removedTick: InvalidTick,
		lastDelta:   InvalidTick,
		outgoing:    NewQueueBuffer[StateRecord](cfg.DejitterBufferLength),
		effects:     NewEffectChain[EntityId](),
	}
}

// NewClientEntity builds an Entity in the client role, backed by an
// incoming DejitterBuffer plus smoothing/prediction buffers.
func NewClientEntity(id EntityId, factoryType string, state State, world World, cfg EntityConfig, cb Callbacks) *Entity {
	incoming := NewDejitterBuffer[StateDelta](cfg.DejitterBufferLength, maxInt32(cfg.NetworkSendRate, 1))
	return &Entity{
		Id:          id,
		FactoryType: factoryType,
		world:       world,
		state:       state,
		cfg:         cfg,
		callbacks:   cb,
		removedTick: InvalidTick,
		lastDelta:   InvalidTick,
		incoming:    incoming,
		smoothing:   NewSmoothingBuffer(incoming, cfg.TickDuration),
		prediction:  NewPredictionBuffer(incoming, cfg.TickDuration),
		effects:     NewEffectChain[EntityId](),
	}
}

// Effects returns this entity's read-time effect chain. Add/Remove
// entries to apply non-mutating transforms (e.g. fog-of-war) to the
// outgoing clone on the server send path, before the per-viewer filter
// (spec §12).
func (e *Entity) Effects() *EffectChain[EntityId] {
	return e.effects
}

func maxInt32(v, floor int32) int32 {
	if v < floor {
		return floor
	}
	return v
}

// State returns the entity's current authoritative (server) or latest
// confirmed (client) state.
func (e *Entity) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// SetController assigns (or clears, with nil) this entity's controller.
// Controller re-assignment triggers OnControllerChanged on the next tick
// (or immediately via doStart if this is the entity's first assignment).
// If the entity becomes owned while frozen, it unfreezes immediately
// (spec §4.8 updateFreeze note).
func (e *Entity) SetController(c Controller) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.controller = c
	e.controllerChanged = true
	if c != nil && e.isFrozen {
		e.isFrozen = false
		logger().Info("statesync: entity unfrozen", zap.Stringer("entity", e.Id))
		if e.callbacks.OnUnfrozen != nil {
			e.callbacks.OnUnfrozen(e)
		}
	}
}

// IsOwned reports whether this entity currently has a controller.
func (e *Entity) IsOwned() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.controller != nil
}

// IsFrozen reports whether this (client, remote) entity is currently
// considered stale.
func (e *Entity) IsFrozen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isFrozen
}

// MarkForRemove schedules destruction for the tick after the current one,
// deferring to avoid mutating state mid-tick (spec §4.8).
func (e *Entity) MarkForRemove() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removedTick = e.world.Tick().Add(1)
}

// RemovedTick returns the scheduled removal tick, or InvalidTick if none.
func (e *Entity) RemovedTick() Tick {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.removedTick
}

// ShouldShutdown reports whether removedTick has passed as of observerTick,
// i.e. the World may now call OnShutdown and drop the entity.
func (e *Entity) ShouldShutdown(observerTick Tick) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.removedTick.IsValid() && !observerTick.Less(e.removedTick)
}

// Shutdown fires OnShutdown exactly once; the World is responsible for
// calling it only after ShouldShutdown is true for every observer.
func (e *Entity) Shutdown() {
	e.mu.Lock()
	cb := e.callbacks.OnShutdown
	e.mu.Unlock()
	if cb != nil {
		cb(e)
	}
}

func (e *Entity) doStart() {
	if e.hasStarted {
		return
	}
	e.hasStarted = true
	e.controllerChanged = false
	if e.callbacks.OnControllerChanged != nil {
		e.callbacks.OnControllerChanged(e)
	}
	if e.callbacks.OnStart != nil {
		e.callbacks.OnStart(e)
	}
}

func (e *Entity) checkControllerChanged() {
	if e.controllerChanged {
		e.controllerChanged = false
		if e.callbacks.OnControllerChanged != nil {
			e.callbacks.OnControllerChanged(e)
		}
	}
}

// UpdateServer runs the server per-tick sequence (spec §4.8): doStart, then
// replay the controller's latest command (if any), then OnSimulate.
func (e *Entity) UpdateServer() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.doStart()
	e.checkControllerChanged()

	if e.controller != nil {
		if cmd, ok := e.controller.LatestCommand(); ok && e.callbacks.OnSimulateCommand != nil {
			e.callbacks.OnSimulateCommand(e, e.state, cmd)
		}
	}
	if e.callbacks.OnSimulate != nil {
		e.callbacks.OnSimulate(e, e.state)
	}
}

// StoreRecord is called once per tick after simulation. It suppresses
// trivial history: a StateRecord equal to the previous one under encoder
// equivalence (DirtyFlags == 0) is not stored, to save memory (spec §9
// OQ1 decision).
func (e *Entity) StoreRecord() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, ok := e.outgoing.Latest(); ok {
		if e.state.DirtyFlags(prev.State()) == 0 {
			return
		}
	}
	e.outgoing.Store(CreateStateRecord(e.world.Tick(), e.state))
}

// ProduceDelta builds the StateDelta to send toward one destination, using
// basisTick as the historical reference (spec §4.8). It returns ok == false
// when the frame should be skipped entirely: forceUpdates is false, the
// dirty mask is empty, this isn't an immutable first-send, and the entity
// isn't being destroyed (spec §9 OQ2 decision). The dirty mask is computed
// against the true state; the outgoing clone then runs through Effects()
// before filter (if non-nil) redacts destination-scoped (private) fields
// (spec §12).
func (e *Entity) ProduceDelta(basisTick Tick, filter FilterFunc) (StateDelta, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.world.Tick()

	if e.removedTick.IsValid() {
		return StateDelta{
			EntityId:    e.Id,
			Tick:        now,
			IsDestroyed: true,
			RemovedTick: e.removedTick,
		}, true
	}

	var basis State
	if basisTick.IsValid() {
		if rec, ok := e.outgoing.LatestAt(basisTick); ok {
			basis = rec.State()
		} else {
			logger().Warn((&MissingBasisError{BasisTick: basisTick}).Error())
		}
	}
	hasImmutable := basis == nil

	var flags uint32
	if basis != nil {
		flags = e.state.DirtyFlags(basis)
	} else {
		flags = fullMask(e.state.FieldCount())
	}

	if !e.cfg.ForceUpdates && flags == 0 && !hasImmutable {
		return StateDelta{}, false
	}

	out := e.state.Clone()
	out = e.effects.Apply(out)
	if filter != nil {
		out = filter(out)
	}

	return StateDelta{
		EntityId:          e.Id,
		Tick:              now,
		Flags:             flags,
		State:             out,
		HasImmutableData:  hasImmutable,
	}, true
}

func fullMask(fieldCount uint8) uint32 {
	if fieldCount >= 32 {
		return 0xFFFFFFFF
	}
	return (uint32(1) << uint(fieldCount)) - 1
}

// ReceiveDelta records an incoming delta (client side). Per spec §7, a
// first delta lacking hasImmutableData is dropped (FirstDeltaNotImmutable);
// the caller may log the returned error.
func (e *Entity) ReceiveDelta(delta StateDelta) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if delta.IsDestroyed {
		e.removedTick = delta.RemovedTick
	} else {
		if !e.lastDelta.IsValid() && !delta.HasImmutableData {
			return &FirstDeltaNotImmutableError{EntityId: e.Id, Tick: delta.Tick}
		}
		e.incoming.Store(delta)
	}

	if !e.lastDelta.IsValid() || e.lastDelta.Less(delta.Tick) {
		e.lastDelta = delta.Tick
	}
	return nil
}

// UpdateClient runs the client per-tick sequence (spec §4.8): smoothing for
// remote entities, doStart, and for owned entities, prediction + replay of
// pending commands.
func (e *Entity) UpdateClient() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.controller == nil {
		out, err := e.smoothing.Update(e.world.Tick())
		if err != nil {
			return err
		}
		if out != nil {
			e.state.CopyFrom(out)
		}
	}

	e.doStart()
	e.checkControllerChanged()

	if e.controller != nil {
		predicted := e.prediction.Start(e.world.Tick(), e.state)
		e.state.CopyFrom(predicted)

		for _, cmd := range e.controller.PendingCommands() {
			if e.callbacks.OnSimulateCommand != nil {
				e.callbacks.OnSimulateCommand(e, e.state, cmd)
			}
			if e.callbacks.OnSimulate != nil {
				e.callbacks.OnSimulate(e, e.state)
			}
			e.prediction.Update(e.state)
		}
	}
	return nil
}

// UpdateFreeze applies the tick-gap freeze heuristic (spec §4.8). Owned
// entities are never frozen. ticksBeforeFreeze == 0 disables freezing
// entirely. Calling this repeatedly with the same actualServerTick
// produces at most one OnFrozen/OnUnfrozen transition (spec §8 property 7).
func (e *Entity) UpdateFreeze(actualServerTick Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.controller != nil {
		if e.isFrozen {
			e.isFrozen = false
			logger().Info("statesync: entity unfrozen", zap.Stringer("entity", e.Id))
			if e.callbacks.OnUnfrozen != nil {
				e.callbacks.OnUnfrozen(e)
			}
		}
		return
	}
	if e.cfg.TicksBeforeFreeze <= 0 {
		return
	}

	gap := actualServerTick.Sub(e.lastDelta)
	switch {
	case gap > e.cfg.TicksBeforeFreeze && !e.isFrozen:
		e.isFrozen = true
		logger().Info("statesync: entity frozen", zap.Stringer("entity", e.Id), zap.Int32("gap", gap))
		if e.callbacks.OnFrozen != nil {
			e.callbacks.OnFrozen(e)
		}
	case gap <= e.cfg.TicksBeforeFreeze && e.isFrozen:
		e.isFrozen = false
		logger().Info("statesync: entity unfrozen", zap.Stringer("entity", e.Id))
		if e.callbacks.OnUnfrozen != nil {
			e.callbacks.OnUnfrozen(e)
		}
	}
}
