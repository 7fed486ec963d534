package main

import (
	"context"
	"fmt"

	"github.com/kastellyn/statesync"
)

// clock is the minimal statesync.World: a mutable current tick, advanced by
// whichever side owns it (server simulation loop, client render loop).
type clock struct {
	tick statesync.Tick
}

func (c *clock) Tick() statesync.Tick { return c.tick }

func (c *clock) Advance() { c.tick = c.tick.Add(1) }

// moveCommand is an opaque command interpreted by OnSimulateCommand; its
// shape is entirely up to the caller, per spec §6.
type moveCommand struct {
	dx, dy float64
}

// fixedController replays a fixed command queue, handing the whole queue
// to the first PendingCommands call and draining it — enough to exercise
// Entity's prediction replay path without a real input device.
type fixedController struct {
	pending []any
}

func (c *fixedController) LatestCommand() (any, bool) {
	if len(c.pending) == 0 {
		return nil, false
	}
	return c.pending[len(c.pending)-1], true
}

func (c *fixedController) PendingCommands() []any {
	cmds := c.pending
	c.pending = nil
	return cmds
}

// priorSnapshot is the tick-0 full state (scenario S1's starting fixture),
// kept around as the basis for the tick-1 delta decode demonstration below.
var priorSnapshot statesync.State = func() statesync.State {
	s := NewPlayerState()
	s.Ammo, s.Uses, s.X, s.Y = 1, 7, 10.0, 20.0
	return s
}()

func main() {
	cfg := statesync.DefaultNetworkConfig()
	dirty := statesync.NewBitmaskEncoder(playerFieldCount)

	serverClock := &clock{}
	session := statesync.NewSession[string](serverClock, dirty)

	// Bob only ever sees a redacted ammo count (e.g. a HUD-hiding rule for
	// spectators); alice sees the full state.
	hideAmmo := statesync.FilterFunc(func(s statesync.State) statesync.State {
		p := s.(*PlayerState).Clone().(*PlayerState)
		p.Ammo = 0
		return p
	})
	session.Connect("alice", nil)
	session.Connect("bob", hideAmmo)

	playerState := NewPlayerState()
	playerState.Ammo = 1
	playerState.Uses = 7
	playerState.X = 10.0
	playerState.Y = 20.0

	entityCfg := cfg.EntityConfig()
	server := statesync.NewServerEntity(1, "player", playerState, serverClock, entityCfg, statesync.Callbacks{})
	session.AddEntity(server)

	fmt.Println("=== tick 0: full snapshot to both viewers ===")
	server.UpdateServer()
	server.StoreRecord()
	result := session.Tick()
	for _, viewer := range []string{"alice", "bob"} {
		for _, d := range result.Deltas[viewer] {
			fmt.Printf("  %s sees entity %s immutable=%v flags=%#x\n", viewer, d.EntityId, d.HasImmutableData, d.Flags)
		}
	}

	serverClock.Advance()
	playerState.Y = 20.5 // only Y differs now, matching scenario S1's mutation

	fmt.Println("=== tick 1: only Y changed ===")
	server.UpdateServer()
	server.StoreRecord()
	result = session.Tick()
	for _, viewer := range []string{"alice", "bob"} {
		for _, d := range result.Deltas[viewer] {
			fmt.Printf("  %s sees entity %s immutable=%v flags=%#x\n", viewer, d.EntityId, d.HasImmutableData, d.Flags)
		}
	}

	// Encode alice's tick-1 delta to a wire frame and decode it back, as a
	// transport layer would.
	aliceDelta := result.Deltas["alice"][0]
	wireBuf := statesync.NewBitBuffer(64)
	statesync.EncodeFrame(wireBuf, aliceDelta, priorSnapshot, dirty)
	decoded, err := statesync.DecodeFrame(wireBuf, priorSnapshot, func() statesync.State { return NewPlayerState() }, dirty)
	if err != nil {
		fmt.Println("decode error:", err)
	} else {
		merged := priorSnapshot.Clone()
		merged.ApplyDelta(decoded.State, decoded.Flags)
		fmt.Printf("=== decoded delta merged onto prior snapshot: %+v ===\n", merged.(*PlayerState))
	}

	// Client-side prediction replay (scenario S5 shape): confirmed X=0 at
	// tick 100, three pending "+1,+2,+1" commands applied locally before
	// any new server delta arrives.
	clientClock := &clock{tick: 100}
	confirmed := NewPlayerState()
	controller := &fixedController{pending: []any{moveCommand{dx: 1}, moveCommand{dx: 2}, moveCommand{dx: 1}}}
	clientEntity := statesync.NewClientEntity(1, "player", confirmed, clientClock, entityCfg, statesync.Callbacks{
		OnSimulateCommand: func(e *statesync.Entity, s statesync.State, cmd any) {
			mv := cmd.(moveCommand)
			ps := s.(*PlayerState)
			ps.X += mv.dx
		},
	})
	clientEntity.SetController(controller)
	if err := clientEntity.UpdateClient(); err != nil {
		fmt.Println("client update error:", err)
	}
	fmt.Printf("=== predicted X after replay: %.1f ===\n", clientEntity.State().(*PlayerState).X)

	// Persist and restore a world snapshot.
	snap := statesync.BuildWorldSnapshot(serverClock.Tick(), map[statesync.EntityId]statesync.State{
		server.Id: server.State(),
	})
	path := "/tmp/statesync-demo-snapshot.json"
	if err := statesync.SaveWorldSnapshotJSON(path, snap); err != nil {
		fmt.Println("save error:", err)
	}
	loaded, ok, err := statesync.LoadWorldSnapshotJSON(path)
	if err != nil || !ok {
		fmt.Println("load error:", err)
	} else {
		restored, err := statesync.RestoreWorldSnapshot(loaded, NewPlayerStateFactory)
		if err != nil {
			fmt.Println("restore error:", err)
		} else {
			fmt.Printf("=== restored entity 1: %+v ===\n", restored[1].(*PlayerState))
		}
	}

	// Bounded-concurrency batch encode, one frame per tracked entity.
	batch, err := statesync.EncodeTickBatch(context.Background(), serverClock.Tick(), []statesync.EntitySnapshot{
		{EntityId: server.Id, Current: server.State(), Basis: priorSnapshot},
	}, dirty, 4)
	if err != nil {
		fmt.Println("batch encode error:", err)
	} else {
		fmt.Printf("=== batch encoded %d entity frame(s) ===\n", len(batch))
	}
}
