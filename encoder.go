package statesync

import "math"

// Encoder packs/unpacks a typed value to/from a fixed-width bit pattern.
// RequiredBits is constant per encoder instance. Pack is deterministic and
// must only set the low RequiredBits bits. Unpack is Pack's inverse modulo
// the encoder's declared Equal relation: for integral encoders Equal is
// exact equality, for quantized floats it is "would pack to the same
// bits" (both values round to the same quantization step).
type Encoder[T any] interface {
	RequiredBits() int
	Pack(v T) uint32
	Unpack(bits uint32) T
	Equal(a, b T) bool
}

// BoundedIntEncoder packs an integer known to lie in [Min, Max] using the
// minimum number of bits that can represent the range.
type BoundedIntEncoder struct {
	Min, Max int64
	bits     int
}

// NewBoundedIntEncoder builds an encoder for the closed range [min, max].
func NewBoundedIntEncoder(min, max int64) *BoundedIntEncoder {
	span := uint64(max - min)
	bits := 0
	for (uint64(1) << uint(bits)) <= span {
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return &BoundedIntEncoder{Min: min, Max: max, bits: bits}
}

func (e *BoundedIntEncoder) RequiredBits() int { return e.bits }

func (e *BoundedIntEncoder) Pack(v int64) uint32 {
	if v < e.Min {
		v = e.Min
	}
	if v > e.Max {
		v = e.Max
	}
	return uint32(v - e.Min)
}

func (e *BoundedIntEncoder) Unpack(bits uint32) int64 {
	return e.Min + int64(bits)
}

func (e *BoundedIntEncoder) Equal(a, b int64) bool {
	return a == b
}

// QuantizedFloatEncoder packs a float known to lie in [Min, Max] at a fixed
// Step resolution. Two values are Equal under this encoder iff they quantize
// to the same bit pattern, matching the spec's "would pack to the same
// bits" tolerance for coordinates/angles.
type QuantizedFloatEncoder struct {
	Min, Max, Step float64
	bits           int
}

// NewQuantizedFloatEncoder builds an encoder for [min, max] at the given
// step size (e.g. 1cm resolution over a [-500,500] coordinate range).
func NewQuantizedFloatEncoder(min, max, step float64) *QuantizedFloatEncoder {
	steps := uint64(math.Ceil((max - min) / step))
	bits := 0
	for (uint64(1) << uint(bits)) <= steps {
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return &QuantizedFloatEncoder{Min: min, Max: max, Step: step, bits: bits}
}

func (e *QuantizedFloatEncoder) RequiredBits() int { return e.bits }

func (e *QuantizedFloatEncoder) Pack(v float64) uint32 {
	if v < e.Min {
		v = e.Min
	}
	if v > e.Max {
		v = e.Max
	}
	maxCode := uint32((uint64(1) << uint(e.bits)) - 1)
	code := uint32(math.Round((v - e.Min) / e.Step))
	if code > maxCode {
		code = maxCode
	}
	return code
}

func (e *QuantizedFloatEncoder) Unpack(bits uint32) float64 {
	return e.Min + float64(bits)*e.Step
}

func (e *QuantizedFloatEncoder) Equal(a, b float64) bool {
	return e.Pack(a) == e.Pack(b)
}

// EnumEncoder packs one of a closed set of uint8 tags (0..Count-1).
type EnumEncoder struct {
	Count int
	bits  int
}

// NewEnumEncoder builds an encoder for count distinct tag values.
func NewEnumEncoder(count int) *EnumEncoder {
	bits := 0
	for (1 << uint(bits)) < count {
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return &EnumEncoder{Count: count, bits: bits}
}

func (e *EnumEncoder) RequiredBits() int { return e.bits }

func (e *EnumEncoder) Pack(v uint8) uint32 { return uint32(v) }

func (e *EnumEncoder) Unpack(bits uint32) uint8 { return uint8(bits) }

func (e *EnumEncoder) Equal(a, b uint8) bool { return a == b }

// BitmaskEncoder packs a dirty-flag bitmask sized to a State variant's field
// count. It is the "EntityDirty" encoder named throughout spec §3/§6: its
// width is the number of fields in the largest registered State variant so
// every variant's dirty flags fit in one fixed-width frame field.
type BitmaskEncoder struct {
	bits int
}

// NewBitmaskEncoder builds a bitmask encoder wide enough for fieldCount
// fields.
func NewBitmaskEncoder(fieldCount int) *BitmaskEncoder {
	if fieldCount < 1 {
		fieldCount = 1
	}
	if fieldCount > 32 {
		fieldCount = 32
	}
	return &BitmaskEncoder{bits: fieldCount}
}

func (e *BitmaskEncoder) RequiredBits() int { return e.bits }

func (e *BitmaskEncoder) Pack(v uint32) uint32 { return v }

func (e *BitmaskEncoder) Unpack(bits uint32) uint32 { return bits }

func (e *BitmaskEncoder) Equal(a, b uint32) bool { return a == b }

// TickEncoder packs a Tick as a plain 32-bit value (ticks are not expected
// to wrap within a session, per spec §3, so no range compression is
// applied).
type TickEncoder struct{}

func (TickEncoder) RequiredBits() int { return 32 }

func (TickEncoder) Pack(v Tick) uint32 { return uint32(v) }

func (TickEncoder) Unpack(bits uint32) Tick { return Tick(int32(bits)) }

func (TickEncoder) Equal(a, b Tick) bool { return a == b }

// EntityIdEncoder packs an EntityId as a plain 32-bit value.
type EntityIdEncoder struct{}

func (EntityIdEncoder) RequiredBits() int { return 32 }

func (EntityIdEncoder) Pack(v EntityId) uint32 { return uint32(v) }

func (EntityIdEncoder) Unpack(bits uint32) EntityId { return EntityId(bits) }

func (EntityIdEncoder) Equal(a, b EntityId) bool { return a == b }

// BoolEncoder packs a single bit.
type BoolEncoder struct{}

func (BoolEncoder) RequiredBits() int { return 1 }

func (BoolEncoder) Pack(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func (BoolEncoder) Unpack(bits uint32) bool { return bits != 0 }

func (BoolEncoder) Equal(a, b bool) bool { return a == b }
