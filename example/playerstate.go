package main

import (
	"math"

	"github.com/kastellyn/statesync"
)

// Field indices, in the canonical ascending order DecodeFull/DecodeDelta
// pop them in: ammo, uses, x, y, theta, status.
const (
	fieldAmmo = iota
	fieldUses
	fieldX
	fieldY
	fieldTheta
	fieldStatus
	playerFieldCount = 6
)

// Status is a player's coarse state tag, the "S" field from the scenario
// fixtures: 0 idle, 1 moving, 2 frozen, 3 dead.
type Status uint8

const (
	StatusIdle Status = iota
	StatusMoving
	StatusFrozen
	StatusDead
)

var (
	ammoEnc   = statesync.NewBoundedIntEncoder(0, 15)
	usesEnc   = statesync.NewBoundedIntEncoder(0, 15)
	posEnc    = statesync.NewQuantizedFloatEncoder(-500, 500, 0.01)
	thetaEnc  = statesync.NewQuantizedFloatEncoder(0, 2*math.Pi, 0.001)
	statusEnc = statesync.NewEnumEncoder(4)
)

// PlayerState is the demo entity state: an ammo count, a remaining-uses
// count, a 2D position, a facing angle, and a status tag — the (A,U,X,Y,
// θ,S) tuple from the scenario fixtures.
type PlayerState struct {
	Ammo   int64
	Uses   int64
	X, Y   float64
	Theta  float64
	Status Status
}

// NewPlayerState returns a zeroed player state.
func NewPlayerState() *PlayerState {
	return &PlayerState{}
}

func (s *PlayerState) SchemaName() string { return "player" }

func (s *PlayerState) FieldCount() uint8 { return playerFieldCount }

func (s *PlayerState) Reset() {
	*s = PlayerState{}
}

func (s *PlayerState) CopyFrom(other statesync.State) {
	o := other.(*PlayerState)
	*s = *o
}

func (s *PlayerState) Clone() statesync.State {
	cp := *s
	return &cp
}

func (s *PlayerState) DirtyFlags(basis statesync.State) uint32 {
	if basis == nil {
		return fullPlayerMask
	}
	b := basis.(*PlayerState)
	var flags uint32
	if !ammoEnc.Equal(s.Ammo, b.Ammo) {
		flags |= 1 << fieldAmmo
	}
	if !usesEnc.Equal(s.Uses, b.Uses) {
		flags |= 1 << fieldUses
	}
	if !posEnc.Equal(s.X, b.X) {
		flags |= 1 << fieldX
	}
	if !posEnc.Equal(s.Y, b.Y) {
		flags |= 1 << fieldY
	}
	if !thetaEnc.Equal(s.Theta, b.Theta) {
		flags |= 1 << fieldTheta
	}
	if !statusEnc.Equal(uint8(s.Status), uint8(b.Status)) {
		flags |= 1 << fieldStatus
	}
	return flags
}

const fullPlayerMask = (1 << playerFieldCount) - 1

// EncodeFull pushes every field highest-index-first so DecodeFull's pops
// come out in ascending canonical order.
func (s *PlayerState) EncodeFull(buf *statesync.BitBuffer) {
	statesync.PushEncoded(buf, statusEnc, uint8(s.Status))
	statesync.PushEncoded(buf, thetaEnc, s.Theta)
	statesync.PushEncoded(buf, posEnc, s.Y)
	statesync.PushEncoded(buf, posEnc, s.X)
	statesync.PushEncoded(buf, usesEnc, s.Uses)
	statesync.PushEncoded(buf, ammoEnc, s.Ammo)
}

func (s *PlayerState) DecodeFull(buf *statesync.BitBuffer) error {
	ammo, err := statesync.PopEncoded(buf, ammoEnc)
	if err != nil {
		return err
	}
	uses, err := statesync.PopEncoded(buf, usesEnc)
	if err != nil {
		return err
	}
	x, err := statesync.PopEncoded(buf, posEnc)
	if err != nil {
		return err
	}
	y, err := statesync.PopEncoded(buf, posEnc)
	if err != nil {
		return err
	}
	theta, err := statesync.PopEncoded(buf, thetaEnc)
	if err != nil {
		return err
	}
	status, err := statesync.PopEncoded(buf, statusEnc)
	if err != nil {
		return err
	}
	s.Ammo, s.Uses, s.X, s.Y, s.Theta, s.Status = ammo, uses, x, y, theta, Status(status)
	return nil
}

// EncodeDelta writes dirtyFlags(s, basis) last-in-first-out order: fields
// highest index to lowest, then the flag word, so a matching DecodeDelta
// pops flags first and fields in ascending order (see state.go).
func (s *PlayerState) EncodeDelta(buf *statesync.BitBuffer, basis statesync.State, dirty *statesync.BitmaskEncoder) {
	flags := s.DirtyFlags(basis)

	statesync.PushIf(buf, flags, 1<<fieldStatus, statusEnc, uint8(s.Status))
	statesync.PushIf(buf, flags, 1<<fieldTheta, thetaEnc, s.Theta)
	statesync.PushIf(buf, flags, 1<<fieldY, posEnc, s.Y)
	statesync.PushIf(buf, flags, 1<<fieldX, posEnc, s.X)
	statesync.PushIf(buf, flags, 1<<fieldUses, usesEnc, s.Uses)
	statesync.PushIf(buf, flags, 1<<fieldAmmo, ammoEnc, s.Ammo)
	statesync.PushEncoded(buf, dirty, flags)
}

func (s *PlayerState) DecodeDelta(buf *statesync.BitBuffer, basis statesync.State, dirty *statesync.BitmaskEncoder) (uint32, error) {
	flags, err := statesync.PopEncoded(buf, dirty)
	if err != nil {
		return 0, err
	}

	var b *PlayerState
	if basis != nil {
		b = basis.(*PlayerState)
	} else {
		b = &PlayerState{}
	}

	ammo, err := statesync.PopIf(buf, flags, 1<<fieldAmmo, ammoEnc, b.Ammo)
	if err != nil {
		return 0, err
	}
	uses, err := statesync.PopIf(buf, flags, 1<<fieldUses, usesEnc, b.Uses)
	if err != nil {
		return 0, err
	}
	x, err := statesync.PopIf(buf, flags, 1<<fieldX, posEnc, b.X)
	if err != nil {
		return 0, err
	}
	y, err := statesync.PopIf(buf, flags, 1<<fieldY, posEnc, b.Y)
	if err != nil {
		return 0, err
	}
	theta, err := statesync.PopIf(buf, flags, 1<<fieldTheta, thetaEnc, b.Theta)
	if err != nil {
		return 0, err
	}
	status, err := statesync.PopIf(buf, flags, 1<<fieldStatus, statusEnc, uint8(b.Status))
	if err != nil {
		return 0, err
	}

	s.Ammo, s.Uses, s.X, s.Y, s.Theta, s.Status = ammo, uses, x, y, theta, Status(status)
	return flags, nil
}

func (s *PlayerState) ApplyDelta(delta statesync.State, flags uint32) {
	d := delta.(*PlayerState)
	if flags&(1<<fieldAmmo) != 0 {
		s.Ammo = d.Ammo
	}
	if flags&(1<<fieldUses) != 0 {
		s.Uses = d.Uses
	}
	if flags&(1<<fieldX) != 0 {
		s.X = d.X
	}
	if flags&(1<<fieldY) != 0 {
		s.Y = d.Y
	}
	if flags&(1<<fieldTheta) != 0 {
		s.Theta = d.Theta
	}
	if flags&(1<<fieldStatus) != 0 {
		s.Status = d.Status
	}
}

func (s *PlayerState) ApplySmoothed(a, b statesync.State, t float64) statesync.State {
	av, bv := a.(*PlayerState), b.(*PlayerState)
	out := s
	out.Ammo = snapInt(t, av.Ammo, bv.Ammo)
	out.Uses = snapInt(t, av.Uses, bv.Uses)
	out.X = av.X + (bv.X-av.X)*t
	out.Y = av.Y + (bv.Y-av.Y)*t
	out.Theta = av.Theta + (bv.Theta-av.Theta)*t
	out.Status = snapStatus(t, av.Status, bv.Status)
	return out
}

func snapInt(t float64, a, b int64) int64 {
	if t < 0.5 {
		return a
	}
	return b
}

func snapStatus(t float64, a, b Status) Status {
	if t < 0.5 {
		return a
	}
	return b
}

// NewPlayerStateFactory resolves factoryType "player" to a fresh
// PlayerState, for use as RestoreWorldSnapshot's newState constructor.
func NewPlayerStateFactory(factoryType string) (statesync.State, error) {
	if factoryType != "player" {
		return nil, &statesync.ProtocolMismatchError{SchemaName: factoryType}
	}
	return NewPlayerState(), nil
}
