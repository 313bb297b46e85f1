// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"testing"
)

func TestPODUint64(t *testing.T) {
	want := uint64(0x0123456789ABCDEF)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, want)

	p := NewPOD(8)
	cur := NewCursor([][]byte{buf})
	if !p.Feed(cur) {
		t.Fatal("expected completion")
	}
	if got := p.Uint64(); got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
}

func TestPODUint32ChunkLength(t *testing.T) {
	buf := []byte{0x34, 0x12, 0x00, 0x00}
	p := NewPOD(4)
	cur := NewCursor([][]byte{buf})
	if !p.Feed(cur) {
		t.Fatal("expected completion")
	}
	if got := p.Uint32(); got != 0x1234 {
		t.Fatalf("got %#x, want %#x", got, 0x1234)
	}
}

func TestPODResumesByteAtATime(t *testing.T) {
	want := uint64(0x1122334455667788)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, want)

	p := NewPOD(8)
	for _, b := range buf {
		cur := NewCursor([][]byte{{b}})
		p.Feed(cur)
	}
	if !p.IsComplete() {
		t.Fatal("expected completion")
	}
	if got := p.Uint64(); got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
}

func TestPODReset(t *testing.T) {
	p := NewPOD(4)
	cur := NewCursor([][]byte{{1, 2, 3, 4}})
	p.Feed(cur)
	p.Reset()
	if p.IsComplete() {
		t.Fatal("expected incomplete after Reset")
	}
	if p.Uint32() != 0 {
		t.Fatal("expected zeroed buffer after Reset")
	}
}
