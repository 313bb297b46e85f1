// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

import "testing"

func TestVarUintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 16384, 1<<32 - 1, 1<<63 - 1, ^uint64(0)}

	for _, v := range values {
		enc := EncodeVarUint(nil, v)
		if len(enc) < 1 || len(enc) > 10 {
			t.Fatalf("encode(%d) produced %d bytes, want 1..10", v, len(enc))
		}

		var r VarUint
		cur := NewCursor([][]byte{enc})
		if !r.Feed(cur) {
			t.Fatalf("decode(%x) did not complete", enc)
		}
		if r.Value() != v {
			t.Fatalf("decode(encode(%d)) = %d", v, r.Value())
		}
	}
}

func TestVarUintZeroByte(t *testing.T) {
	var r VarUint
	cur := NewCursor([][]byte{{0x00}})
	if !r.Feed(cur) {
		t.Fatal("expected completion after one zero byte")
	}
	if r.Value() != 0 {
		t.Fatalf("got %d, want 0", r.Value())
	}
}

func TestVarUintTenContinuationBytes(t *testing.T) {
	// Ten bytes, all with the continuation bit set: completes regardless,
	// but is flagged as overflowed.
	buf := make([]byte, 10)
	for i := range buf {
		buf[i] = 0x80
	}
	var r VarUint
	cur := NewCursor([][]byte{buf})
	if !r.Feed(cur) {
		t.Fatal("expected completion after ten continuation bytes")
	}
	if r.Value() != 0 {
		t.Fatalf("got %d, want 0", r.Value())
	}
	if !r.Overflowed() {
		t.Fatal("expected Overflowed() == true after exhausting ten continuation bytes")
	}
}

func TestVarUintCleanCompletionNotOverflowed(t *testing.T) {
	var r VarUint
	cur := NewCursor([][]byte{{0x01}})
	if !r.Feed(cur) {
		t.Fatal("expected completion")
	}
	if r.Overflowed() {
		t.Fatal("a clean early completion must not be flagged as overflowed")
	}
}

func TestVarUintFeedAfterCompleteDoesNotFlagOverflow(t *testing.T) {
	// A reader that completed cleanly must stay not-overflowed even when
	// fed again after completion (zero bytes or otherwise), per the
	// Reader contract that a complete reader is immutable.
	var r VarUint
	cur := NewCursor([][]byte{{0x01}})
	r.Feed(cur)

	empty := NewCursor([][]byte{})
	r.Feed(empty)
	r.Feed(empty)

	if r.Overflowed() {
		t.Fatal("re-feeding a cleanly completed reader must not set Overflowed()")
	}
}

func TestVarUintResumesAcrossDeliveries(t *testing.T) {
	enc := EncodeVarUint(nil, 1<<20+42)
	var r VarUint
	for _, b := range enc {
		cur := NewCursor([][]byte{{b}})
		r.Feed(cur)
	}
	if !r.IsComplete() {
		t.Fatal("expected completion after feeding all bytes one at a time")
	}
	if r.Value() != 1<<20+42 {
		t.Fatalf("got %d", r.Value())
	}
}

func TestVarUintMonotonicCompletion(t *testing.T) {
	var r VarUint
	cur := NewCursor([][]byte{{0x01}})
	if !r.Feed(cur) {
		t.Fatal("expected completion")
	}
	// Feeding zero more bytes keeps it complete.
	empty := NewCursor([][]byte{})
	if !r.Feed(empty) {
		t.Fatal("feeding zero bytes should not un-complete the reader")
	}
	if r.Value() != 1 {
		t.Fatalf("got %d, want 1", r.Value())
	}
}

func TestVarUintReset(t *testing.T) {
	var r VarUint
	cur := NewCursor([][]byte{{0x05}})
	r.Feed(cur)
	r.Reset()
	if r.IsComplete() {
		t.Fatal("expected reader to be incomplete after Reset")
	}
	if r.Value() != 0 {
		t.Fatalf("got %d, want 0 after Reset", r.Value())
	}
}
