package statesync

import "testing"

func TestBitBufferPushPopRoundTrip(t *testing.T) {
	buf := NewBitBuffer(8)

	buf.Push(0x5, 3)  // 101
	buf.Push(0x2A, 6) // 101010
	buf.Push(1, 1)

	v, err := buf.Pop(1)
	if err != nil || v != 1 {
		t.Fatalf("Pop(1) = %d, %v, want 1, nil", v, err)
	}
	v, err = buf.Pop(6)
	if err != nil || v != 0x2A {
		t.Fatalf("Pop(6) = %d, %v, want 42, nil", v, err)
	}
	v, err = buf.Pop(3)
	if err != nil || v != 0x5 {
		t.Fatalf("Pop(3) = %d, %v, want 5, nil", v, err)
	}
	if buf.BitsUsed() != 0 {
		t.Fatalf("BitsUsed() = %d after draining, want 0", buf.BitsUsed())
	}
}

func TestBitBufferCrossesWordBoundary(t *testing.T) {
	buf := NewBitBuffer(8)
	for i := 0; i < 5; i++ {
		buf.Push(uint32(i), 10)
	}
	for i := 4; i >= 0; i-- {
		v, err := buf.Pop(10)
		if err != nil {
			t.Fatalf("Pop(10) at i=%d: %v", i, err)
		}
		if v != uint32(i) {
			t.Fatalf("Pop(10) at i=%d = %d, want %d", i, v, i)
		}
	}
}

func TestBitBufferUnderrun(t *testing.T) {
	buf := NewBitBuffer(8)
	buf.Push(1, 4)

	if _, err := buf.Pop(5); err == nil {
		t.Fatalf("expected UnderrunError popping more bits than stored")
	} else if _, ok := err.(*UnderrunError); !ok {
		t.Fatalf("expected *UnderrunError, got %T", err)
	}

	// The failed Pop must not have mutated the buffer.
	v, err := buf.Pop(4)
	if err != nil || v != 1 {
		t.Fatalf("Pop(4) after failed Pop(5) = %d, %v, want 1, nil", v, err)
	}
}

func TestBitBufferPeekDoesNotConsume(t *testing.T) {
	buf := NewBitBuffer(8)
	buf.Push(0x3, 2)

	peeked, err := buf.Peek(2)
	if err != nil || peeked != 0x3 {
		t.Fatalf("Peek(2) = %d, %v, want 3, nil", peeked, err)
	}
	if buf.BitsUsed() != 2 {
		t.Fatalf("BitsUsed() after Peek = %d, want 2", buf.BitsUsed())
	}
	popped, err := buf.Pop(2)
	if err != nil || popped != 0x3 {
		t.Fatalf("Pop(2) after Peek = %d, %v, want 3, nil", popped, err)
	}
}

func TestBitBufferWidthClamping(t *testing.T) {
	buf := NewBitBuffer(8)
	buf.Push(0xFFFFFFFF, 40) // clamp to 32
	if buf.BitsUsed() != 32 {
		t.Fatalf("BitsUsed() = %d, want 32 after over-width push", buf.BitsUsed())
	}
	v, err := buf.Pop(40) // clamp to 32
	if err != nil || v != 0xFFFFFFFF {
		t.Fatalf("Pop(40) = %d, %v, want all bits set", v, err)
	}

	buf.Reset()
	buf.Push(1, -3) // clamp to 0, no-op
	if buf.BitsUsed() != 0 {
		t.Fatalf("negative-width Push should be a no-op, BitsUsed() = %d", buf.BitsUsed())
	}
}

func TestBitBufferGrowsAndRoundTripsManyValues(t *testing.T) {
	buf := NewBitBuffer(1) // force growth
	const n = 200
	for i := 0; i < n; i++ {
		buf.Push(uint32(i*7+1)&0x1FF, 9)
	}
	for i := n - 1; i >= 0; i-- {
		want := uint32(i*7+1) & 0x1FF
		got, err := buf.Pop(9)
		if err != nil {
			t.Fatalf("Pop at i=%d: %v", i, err)
		}
		if got != want {
			t.Fatalf("Pop at i=%d = %d, want %d", i, got, want)
		}
	}
}

func TestPushEncodedPopEncodedRoundTrip(t *testing.T) {
	buf := NewBitBuffer(8)
	enc := NewBoundedIntEncoder(0, 15)

	PushEncoded(buf, enc, int64(9))
	got, err := PopEncoded(buf, enc)
	if err != nil || got != 9 {
		t.Fatalf("PopEncoded = %d, %v, want 9, nil", got, err)
	}
}

func TestPushIfPopIfSkipsAbsentFields(t *testing.T) {
	buf := NewBitBuffer(8)
	dirty := NewBitmaskEncoder(4)
	enc := NewBoundedIntEncoder(0, 15)

	var flags uint32 = 1 << 1 // only field 1 present
	PushIf(buf, flags, 1<<1, enc, int64(7))
	PushIf(buf, flags, 1<<0, enc, int64(3)) // absent, no-op
	PushEncoded(buf, dirty, flags)

	gotFlags, err := PopEncoded(buf, dirty)
	if err != nil || gotFlags != flags {
		t.Fatalf("PopEncoded(dirty) = %#x, %v, want %#x, nil", gotFlags, err, flags)
	}
	gotField0, err := PopIf(buf, gotFlags, 1<<0, enc, int64(99))
	if err != nil || gotField0 != 99 {
		t.Fatalf("PopIf(field 0) = %d, %v, want basis 99, nil", gotField0, err)
	}
	gotField1, err := PopIf(buf, gotFlags, 1<<1, enc, int64(99))
	if err != nil || gotField1 != 7 {
		t.Fatalf("PopIf(field 1) = %d, %v, want 7, nil", gotField1, err)
	}
}
