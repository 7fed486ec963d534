package statesync

import (
	"sync"
	"time"
)

// SessionHooks lets a caller observe/intercept the per-viewer broadcast
// pipeline, e.g. for metrics or debug logging. Any nil hook is skipped.
type SessionHooks[ID comparable] struct {
	// OnBeforeProduce runs before ProduceDelta for one (viewer, entity)
	// pair.
	OnBeforeProduce func(viewer ID, entity *Entity)

	// OnAfterProduce runs after a delta was produced (ok == false if
	// ProduceDelta chose to skip this entity for this viewer).
	OnAfterProduce func(viewer ID, entity *Entity, delta StateDelta, ok bool)

	// OnBeforeBroadcast runs once per Tick, after all deltas for all
	// viewers are computed, and may replace the result map.
	OnBeforeBroadcast func(result map[ID][]StateDelta) map[ID][]StateDelta

	// OnAfterBroadcast runs once per Tick after delivery, receiving the
	// sequence number assigned to this tick.
	OnAfterBroadcast func(result map[ID][]StateDelta, seq uint64)
}

type viewerState struct {
	basisTick Tick
	filter    FilterFunc
}

// Session manages the set of connected viewers and tracked entities on the
// server side, producing one StateDelta batch per viewer per Tick (spec
// §5/§6: "the World drives per-tick dispatch; everything about transport
// lives outside this package" — Session is the piece of "everything about
// transport" that still belongs to this package's domain, the per-viewer
// basis bookkeeping and delta fan-out).
type Session[ID comparable] struct {
	mu sync.RWMutex

	world    World
	entities map[EntityId]*Entity
	viewers  map[ID]*viewerState
	filters  *FilterRegistry[ID]
	events   *EventBuffer[ID]
	dirty    *BitmaskEncoder

	seq   uint64
	hooks SessionHooks[ID]

	debounceMu    sync.Mutex
	debounce      time.Duration
	debounceTimer *time.Timer
	onBroadcast   func(TickResult[ID])
}

// NewSession creates a session bound to world, whose Tick() provides the
// current simulation tick for every ProduceDelta call.
func NewSession[ID comparable](world World, dirty *BitmaskEncoder) *Session[ID] {
	return &Session[ID]{
		world:    world,
		entities: make(map[EntityId]*Entity),
		viewers:  make(map[ID]*viewerState),
		filters:  NewFilterRegistry[ID](),
		events:   NewEventBuffer[ID](),
		dirty:    dirty,
		seq:      1,
	}
}

// SetHooks installs pipeline hooks.
func (s *Session[ID]) SetHooks(hooks SessionHooks[ID]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = hooks
}

// AddEntity registers an entity for broadcast consideration.
func (s *Session[ID]) AddEntity(e *Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.Id] = e
}

// RemoveEntity drops an entity from broadcast consideration. Use
// Entity.MarkForRemove/ShouldShutdown for the graceful destroy sequence;
// this is for immediate removal (e.g. after Shutdown has already fired).
func (s *Session[ID]) RemoveEntity(id EntityId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
}

// Connect adds a viewer. Its first Tick receives a full (immutable) frame
// for every entity, since a freshly connected viewer has no basis tick.
func (s *Session[ID]) Connect(id ID, filter FilterFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[id] = &viewerState{basisTick: InvalidTick, filter: filter}
}

// Disconnect removes a viewer and its filters.
func (s *Session[ID]) Disconnect(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.viewers, id)
	s.filters.Clear(id)
}

// HasViewer reports whether a viewer is connected.
func (s *Session[ID]) HasViewer(id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.viewers[id]
	return ok
}

// ViewerCount returns the number of connected viewers.
func (s *Session[ID]) ViewerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.viewers)
}

// SetFilter replaces a connected viewer's base redaction filter (composed
// before any per-filter-ID registry entries — see Filters()).
func (s *Session[ID]) SetFilter(id ID, filter FilterFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.viewers[id]; ok {
		v.filter = filter
	}
}

// Filters exposes the named-filter registry composed on top of each
// viewer's base filter.
func (s *Session[ID]) Filters() *FilterRegistry[ID] {
	return s.filters
}

// AckTick records that a viewer has received (and applied) the delta batch
// up through tick. Subsequent Tick() calls diff against this basis instead
// of resending a full frame. Callers on an unreliable transport should only
// call this once delivery is confirmed; Tick() itself does not auto-advance
// the basis, to avoid assuming delivery succeeded.
func (s *Session[ID]) AckTick(id ID, tick Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.viewers[id]; ok {
		v.basisTick = tick
	}
}

// TickResult bundles one viewer's state deltas and routed events for one
// Session.Tick call. EventFrames carries each viewer's Events already
// encoded to their wire form (spec §6/§12: events ride alongside state
// frames without being part of State) via EncodeEventBatch, ready to hand
// to a transport.
type TickResult[ID comparable] struct {
	Tick        Tick
	Deltas      map[ID][]StateDelta
	Events      map[ID][]Event
	EventFrames map[ID][]byte
	Seq         uint64
}

// Tick computes, for every connected viewer, the StateDelta for every
// tracked entity (skipping entities ProduceDelta says to omit), routes any
// pending events, and returns both keyed by viewer ID.
func (s *Session[ID]) Tick() TickResult[ID] {
	s.mu.RLock()
	viewerIDs := make([]ID, 0, len(s.viewers))
	viewerBasis := make(map[ID]Tick, len(s.viewers))
	viewerFilter := make(map[ID]FilterFunc, len(s.viewers))
	for id, v := range s.viewers {
		viewerIDs = append(viewerIDs, id)
		viewerBasis[id] = v.basisTick
		viewerFilter[id] = s.filters.ComposeWith(id, v.filter)
	}
	entities := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, e)
	}
	hooks := s.hooks
	hasEvents := s.events.HasEvents()
	s.mu.RUnlock()

	deltas := make(map[ID][]StateDelta, len(viewerIDs))
	for _, id := range viewerIDs {
		basis := viewerBasis[id]
		filter := viewerFilter[id]

		entityDeltas := make([]StateDelta, 0, len(entities))
		for _, e := range entities {
			if hooks.OnBeforeProduce != nil {
				hooks.OnBeforeProduce(id, e)
			}
			delta, ok := e.ProduceDelta(basis, filter)
			if hooks.OnAfterProduce != nil {
				hooks.OnAfterProduce(id, e, delta, ok)
			}
			if ok {
				entityDeltas = append(entityDeltas, delta)
			}
		}
		if len(entityDeltas) > 0 {
			deltas[id] = entityDeltas
		}
	}

	if hooks.OnBeforeBroadcast != nil {
		deltas = hooks.OnBeforeBroadcast(deltas)
	}

	s.mu.Lock()
	currentSeq := s.seq
	s.seq++
	s.mu.Unlock()

	result := TickResult[ID]{Tick: s.world.Tick(), Deltas: deltas, Seq: currentSeq}
	if hasEvents {
		result.Events = s.routeEvents(viewerIDs)
		if len(result.Events) > 0 {
			frames := make(map[ID][]byte, len(result.Events))
			for id, evs := range result.Events {
				frames[id] = EncodeEventBatch(evs)
			}
			result.EventFrames = frames
		}
	}

	if hooks.OnAfterBroadcast != nil {
		hooks.OnAfterBroadcast(deltas, currentSeq)
	}
	return result
}

func (s *Session[ID]) routeEvents(viewerIDs []ID) map[ID][]Event {
	pending := s.events.Drain()
	if len(pending) == 0 {
		return nil
	}

	viewerSet := make(map[ID]struct{}, len(viewerIDs))
	for _, id := range viewerIDs {
		viewerSet[id] = struct{}{}
	}

	byViewer := make(map[ID][]Event, len(viewerIDs))
	for _, pe := range pending {
		switch pe.Target {
		case TargetAll:
			for _, id := range viewerIDs {
				byViewer[id] = append(byViewer[id], pe.Event)
			}
		case TargetOne:
			if _, ok := viewerSet[pe.To]; ok {
				byViewer[pe.To] = append(byViewer[pe.To], pe.Event)
			}
		case TargetExcept:
			for _, id := range viewerIDs {
				if id != pe.Except {
					byViewer[id] = append(byViewer[id], pe.Event)
				}
			}
		case TargetMany:
			for _, id := range pe.ToMany {
				if _, ok := viewerSet[id]; ok {
					byViewer[id] = append(byViewer[id], pe.Event)
				}
			}
		}
	}
	return byViewer
}

// Emit queues an event for all connected viewers, included in the next
// Tick's TickResult.Events.
func (s *Session[ID]) Emit(eventType string, payload any) error {
	encoded, err := encodePayload(payload)
	if err != nil {
		return err
	}
	s.events.Add(PendingEvent[ID]{Event: Event{Type: eventType, Payload: encoded}, Target: TargetAll})
	return nil
}

// EmitTo queues an event for a single viewer.
func (s *Session[ID]) EmitTo(viewerID ID, eventType string, payload any) error {
	encoded, err := encodePayload(payload)
	if err != nil {
		return err
	}
	s.events.Add(PendingEvent[ID]{Event: Event{Type: eventType, Payload: encoded}, Target: TargetOne, To: viewerID})
	return nil
}

// EmitExcept queues an event for every viewer except exceptID.
func (s *Session[ID]) EmitExcept(exceptID ID, eventType string, payload any) error {
	encoded, err := encodePayload(payload)
	if err != nil {
		return err
	}
	s.events.Add(PendingEvent[ID]{Event: Event{Type: eventType, Payload: encoded}, Target: TargetExcept, Except: exceptID})
	return nil
}

// SetDebounce configures the delay ScheduleBroadcast waits before ticking.
func (s *Session[ID]) SetDebounce(d time.Duration) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	s.debounce = d
}

// SetBroadcastCallback sets the callback ScheduleBroadcast invokes with the
// computed TickResult.
func (s *Session[ID]) SetBroadcastCallback(fn func(TickResult[ID])) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	s.onBroadcast = fn
}

// ScheduleBroadcast ticks immediately if no debounce is configured,
// otherwise coalesces repeated calls within the debounce window into a
// single Tick.
func (s *Session[ID]) ScheduleBroadcast() {
	s.debounceMu.Lock()

	if s.debounce == 0 {
		callback := s.onBroadcast
		s.debounceMu.Unlock()
		if callback != nil {
			callback(s.Tick())
		}
		return
	}

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		s.debounceMu.Lock()
		callback := s.onBroadcast
		s.debounceMu.Unlock()
		if callback != nil {
			callback(s.Tick())
		}
	})
	s.debounceMu.Unlock()
}
