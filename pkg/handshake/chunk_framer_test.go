// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func chunk(payload []byte) []byte {
	length := make([]byte, 4)
	binary.LittleEndian.PutUint32(length, uint32(len(payload)))
	return append(length, payload...)
}

var terminator = chunk(nil)

func TestChunkFramer_SinglePacketSingleChunk(t *testing.T) {
	payload := varuint(1) // packet type 1 (Data)
	buf := concat(chunk(payload), terminator)

	var got []uint64
	f := NewChunkFramer(func(pt uint64) { got = append(got, pt) })
	f.Feed(wireCursor(buf))

	if !reflect.DeepEqual(got, []uint64{1}) {
		t.Fatalf("packet types = %v, want [1]", got)
	}
}

// TestChunkFramer_PacketSplitAcrossChunks exercises P7: a payload split into
// arbitrarily many non-terminator chunks plus one terminator behaves like
// the concatenated payload followed by a terminator.
func TestChunkFramer_PacketSplitAcrossChunks(t *testing.T) {
	payload := varuint(300) // multi-byte varuint, packet type 300

	var oneShot []uint64
	f1 := NewChunkFramer(func(pt uint64) { oneShot = append(oneShot, pt) })
	f1.Feed(wireCursor(concat(chunk(payload), terminator)))

	var split []uint64
	f2 := NewChunkFramer(func(pt uint64) { split = append(split, pt) })
	buf := concat(
		chunk(payload[:1]),
		chunk(payload[1:]),
		terminator,
	)
	f2.Feed(wireCursor(buf))

	if !reflect.DeepEqual(oneShot, split) {
		t.Fatalf("oneShot = %v, split = %v", oneShot, split)
	}
	if !reflect.DeepEqual(split, []uint64{300}) {
		t.Fatalf("split = %v, want [300]", split)
	}
}

func TestChunkFramer_ResetsForNextPacketAfterTerminator(t *testing.T) {
	buf := concat(
		chunk(varuint(1)), terminator,
		chunk(varuint(2)), terminator,
	)

	var got []uint64
	f := NewChunkFramer(func(pt uint64) { got = append(got, pt) })
	f.Feed(wireCursor(buf))

	if !reflect.DeepEqual(got, []uint64{1, 2}) {
		t.Fatalf("packet types = %v, want [1 2]", got)
	}
}

func TestChunkFramer_ExtraPayloadBytesBeyondPacketTypeAreDiscarded(t *testing.T) {
	payload := concat(varuint(7), []byte{0xAA, 0xBB, 0xCC})
	buf := concat(chunk(payload), terminator)

	var got []uint64
	f := NewChunkFramer(func(pt uint64) { got = append(got, pt) })
	f.Feed(wireCursor(buf))

	if !reflect.DeepEqual(got, []uint64{7}) {
		t.Fatalf("packet types = %v, want [7]", got)
	}
}

func TestChunkFramer_ByteAtATime(t *testing.T) {
	buf := concat(
		chunk(varuint(1)), terminator,
		chunk(varuint(2)), terminator,
	)

	var got []uint64
	f := NewChunkFramer(func(pt uint64) { got = append(got, pt) })
	for _, b := range buf {
		f.Feed(wireCursor([]byte{b}))
	}

	if !reflect.DeepEqual(got, []uint64{1, 2}) {
		t.Fatalf("packet types = %v, want [1 2]", got)
	}
}
