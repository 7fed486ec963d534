package statesync

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// ProtocolVersion is this build's wire-format version, compared against a
// peer's advertised version during the handshake (spec §6). Bump the minor
// component for backward-compatible field additions, the major component
// when the State/StateDelta wire layout changes incompatibly.
const ProtocolVersion = "v1.0.0"

// CheckProtocolCompatible reports whether a peer advertising peerVersion
// can interoperate with this build. Peers are compatible when they share a
// major version; golang.org/x/mod/semver drives the comparison so this
// module doesn't hand-roll version-string parsing.
func CheckProtocolCompatible(peerVersion string) error {
	if !semver.IsValid(peerVersion) {
		return fmt.Errorf("statesync: invalid peer protocol version %q", peerVersion)
	}
	if semver.Major(peerVersion) != semver.Major(ProtocolVersion) {
		return fmt.Errorf("statesync: incompatible protocol version: local %s, peer %s",
			ProtocolVersion, peerVersion)
	}
	if semver.Compare(peerVersion, ProtocolVersion) > 0 {
		logger().Warn("statesync: peer runs a newer protocol minor/patch version")
	}
	return nil
}

// EncodeFrame writes one per-entity update frame (spec §6 wire format) onto
// buf. basis is the reference State for delta encoding, or nil to force a
// full/immutable frame. dirty is the shared EntityDirty bitmask encoder
// (sized to the largest registered State variant's field count).
func EncodeFrame(buf *BitBuffer, delta StateDelta, basis State, dirty *BitmaskEncoder) {
	if delta.IsDestroyed {
		buf.Push(TickEncoder{}.Pack(delta.RemovedTick), TickEncoder{}.RequiredBits())
	} else {
		delta.State.EncodeDelta(buf, basis, dirty)
	}
	buf.Push(BoolEncoder{}.Pack(delta.IsDestroyed), 1)
	buf.Push(BoolEncoder{}.Pack(delta.HasImmutableData), 1)
	PushEncoded(buf, TickEncoder{}, delta.Tick)
	PushEncoded(buf, EntityIdEncoder{}, delta.EntityId)
}

// DecodeFrame reads one per-entity update frame from buf. newState
// constructs a fresh, zeroed State of the correct concrete type for this
// entity (the caller looks it up by whatever factoryType/EntityId
// registry it maintains — out of this package's scope per spec §1).
// basis is the reference State the frame was (or wasn't, for an immutable
// frame) encoded against. Underrun and ProtocolMismatch failures are logged
// at Warn before being returned.
func DecodeFrame(buf *BitBuffer, basis State, newState func() State, dirty *BitmaskEncoder) (delta StateDelta, err error) {
	defer func() {
		var underrun *UnderrunError
		var mismatch *ProtocolMismatchError
		if errors.As(err, &underrun) || errors.As(err, &mismatch) {
			logger().Warn("statesync: dropping frame: " + err.Error())
		}
	}()

	id, err := PopEncoded(buf, EntityIdEncoder{})
	if err != nil {
		return StateDelta{}, err
	}
	tick, err := PopEncoded(buf, TickEncoder{})
	if err != nil {
		return StateDelta{}, err
	}
	hasImmutableBit, err := buf.Pop(1)
	if err != nil {
		return StateDelta{}, err
	}
	isDestroyedBit, err := buf.Pop(1)
	if err != nil {
		return StateDelta{}, err
	}

	delta = StateDelta{
		EntityId:         id,
		Tick:             tick,
		HasImmutableData: hasImmutableBit != 0,
		IsDestroyed:      isDestroyedBit != 0,
	}

	if delta.IsDestroyed {
		removed, err := PopEncoded(buf, TickEncoder{})
		if err != nil {
			return StateDelta{}, err
		}
		delta.RemovedTick = removed
		return delta, nil
	}

	state := newState()
	flags, err := state.DecodeDelta(buf, basis, dirty)
	if err != nil {
		return StateDelta{}, err
	}
	delta.State = state
	delta.Flags = flags
	return delta, nil
}
