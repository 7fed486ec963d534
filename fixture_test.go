package statesync

import "math"

// fixtureState is a minimal State implementation used across this package's
// tests: six fields matching the spec's (A,U,X,Y,θ,S) scenario fixtures in
// canonical ascending order.
const (
	fxFieldAmmo = iota
	fxFieldUses
	fxFieldX
	fxFieldY
	fxFieldTheta
	fxFieldStatus
	fxFieldCount = 6
)

var (
	fxAmmoEnc   = NewBoundedIntEncoder(0, 15)
	fxUsesEnc   = NewBoundedIntEncoder(0, 15)
	fxPosEnc    = NewQuantizedFloatEncoder(-500, 500, 0.01)
	fxThetaEnc  = NewQuantizedFloatEncoder(0, 2*math.Pi, 0.001)
	fxStatusEnc = NewEnumEncoder(4)
)

type fixtureState struct {
	Ammo   int64
	Uses   int64
	X, Y   float64
	Theta  float64
	Status uint8
}

func newFixtureState() *fixtureState { return &fixtureState{} }

func (s *fixtureState) SchemaName() string { return "fixture" }
func (s *fixtureState) FieldCount() uint8  { return fxFieldCount }
func (s *fixtureState) Reset()             { *s = fixtureState{} }

func (s *fixtureState) CopyFrom(other State) {
	o := other.(*fixtureState)
	*s = *o
}

func (s *fixtureState) Clone() State {
	cp := *s
	return &cp
}

const fxFullMask = (1 << fxFieldCount) - 1

func (s *fixtureState) DirtyFlags(basis State) uint32 {
	if basis == nil {
		return fxFullMask
	}
	b := basis.(*fixtureState)
	var flags uint32
	if !fxAmmoEnc.Equal(s.Ammo, b.Ammo) {
		flags |= 1 << fxFieldAmmo
	}
	if !fxUsesEnc.Equal(s.Uses, b.Uses) {
		flags |= 1 << fxFieldUses
	}
	if !fxPosEnc.Equal(s.X, b.X) {
		flags |= 1 << fxFieldX
	}
	if !fxPosEnc.Equal(s.Y, b.Y) {
		flags |= 1 << fxFieldY
	}
	if !fxThetaEnc.Equal(s.Theta, b.Theta) {
		flags |= 1 << fxFieldTheta
	}
	if !fxStatusEnc.Equal(s.Status, b.Status) {
		flags |= 1 << fxFieldStatus
	}
	return flags
}

func (s *fixtureState) EncodeFull(buf *BitBuffer) {
	PushEncoded(buf, fxStatusEnc, s.Status)
	PushEncoded(buf, fxThetaEnc, s.Theta)
	PushEncoded(buf, fxPosEnc, s.Y)
	PushEncoded(buf, fxPosEnc, s.X)
	PushEncoded(buf, fxUsesEnc, s.Uses)
	PushEncoded(buf, fxAmmoEnc, s.Ammo)
}

func (s *fixtureState) DecodeFull(buf *BitBuffer) error {
	ammo, err := PopEncoded(buf, fxAmmoEnc)
	if err != nil {
		return err
	}
	uses, err := PopEncoded(buf, fxUsesEnc)
	if err != nil {
		return err
	}
	x, err := PopEncoded(buf, fxPosEnc)
	if err != nil {
		return err
	}
	y, err := PopEncoded(buf, fxPosEnc)
	if err != nil {
		return err
	}
	theta, err := PopEncoded(buf, fxThetaEnc)
	if err != nil {
		return err
	}
	status, err := PopEncoded(buf, fxStatusEnc)
	if err != nil {
		return err
	}
	s.Ammo, s.Uses, s.X, s.Y, s.Theta, s.Status = ammo, uses, x, y, theta, status
	return nil
}

func (s *fixtureState) EncodeDelta(buf *BitBuffer, basis State, dirty *BitmaskEncoder) {
	flags := s.DirtyFlags(basis)

	PushIf(buf, flags, 1<<fxFieldStatus, fxStatusEnc, s.Status)
	PushIf(buf, flags, 1<<fxFieldTheta, fxThetaEnc, s.Theta)
	PushIf(buf, flags, 1<<fxFieldY, fxPosEnc, s.Y)
	PushIf(buf, flags, 1<<fxFieldX, fxPosEnc, s.X)
	PushIf(buf, flags, 1<<fxFieldUses, fxUsesEnc, s.Uses)
	PushIf(buf, flags, 1<<fxFieldAmmo, fxAmmoEnc, s.Ammo)
	PushEncoded(buf, dirty, flags)
}

func (s *fixtureState) DecodeDelta(buf *BitBuffer, basis State, dirty *BitmaskEncoder) (uint32, error) {
	flags, err := PopEncoded(buf, dirty)
	if err != nil {
		return 0, err
	}

	var b *fixtureState
	if basis != nil {
		b = basis.(*fixtureState)
	} else {
		b = &fixtureState{}
	}

	ammo, err := PopIf(buf, flags, 1<<fxFieldAmmo, fxAmmoEnc, b.Ammo)
	if err != nil {
		return 0, err
	}
	uses, err := PopIf(buf, flags, 1<<fxFieldUses, fxUsesEnc, b.Uses)
	if err != nil {
		return 0, err
	}
	x, err := PopIf(buf, flags, 1<<fxFieldX, fxPosEnc, b.X)
	if err != nil {
		return 0, err
	}
	y, err := PopIf(buf, flags, 1<<fxFieldY, fxPosEnc, b.Y)
	if err != nil {
		return 0, err
	}
	theta, err := PopIf(buf, flags, 1<<fxFieldTheta, fxThetaEnc, b.Theta)
	if err != nil {
		return 0, err
	}
	status, err := PopIf(buf, flags, 1<<fxFieldStatus, fxStatusEnc, b.Status)
	if err != nil {
		return 0, err
	}

	s.Ammo, s.Uses, s.X, s.Y, s.Theta, s.Status = ammo, uses, x, y, theta, status
	return flags, nil
}

func (s *fixtureState) ApplyDelta(delta State, flags uint32) {
	d := delta.(*fixtureState)
	if flags&(1<<fxFieldAmmo) != 0 {
		s.Ammo = d.Ammo
	}
	if flags&(1<<fxFieldUses) != 0 {
		s.Uses = d.Uses
	}
	if flags&(1<<fxFieldX) != 0 {
		s.X = d.X
	}
	if flags&(1<<fxFieldY) != 0 {
		s.Y = d.Y
	}
	if flags&(1<<fxFieldTheta) != 0 {
		s.Theta = d.Theta
	}
	if flags&(1<<fxFieldStatus) != 0 {
		s.Status = d.Status
	}
}

func (s *fixtureState) ApplySmoothed(a, b State, t float64) State {
	av, bv := a.(*fixtureState), b.(*fixtureState)
	out := &fixtureState{}
	out.Ammo = fxSnapInt(t, av.Ammo, bv.Ammo)
	out.Uses = fxSnapInt(t, av.Uses, bv.Uses)
	out.X = lerp(av.X, bv.X, t)
	out.Y = lerp(av.Y, bv.Y, t)
	out.Theta = lerp(av.Theta, bv.Theta, t)
	out.Status = uint8(snap(t, uint32(av.Status), uint32(bv.Status)))
	return out
}

func fxSnapInt(t float64, a, b int64) int64 {
	if t < 0.5 {
		return a
	}
	return b
}
