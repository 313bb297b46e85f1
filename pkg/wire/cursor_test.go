// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

import "testing"

func TestCursorMultiSegment(t *testing.T) {
	c := NewCursor([][]byte{{1, 2}, {}, {3}, {4, 5}})
	var got []byte
	for c.Remaining() > 0 {
		got = append(got, c.Byte())
		c.Advance()
	}
	want := []byte{1, 2, 3, 4, 5}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCursorAdvanceNAndPos(t *testing.T) {
	c := NewCursor([][]byte{{1, 2, 3, 4, 5}})
	c.AdvanceN(3)
	if c.Pos() != 3 {
		t.Fatalf("Pos() = %d, want 3", c.Pos())
	}
	if c.Byte() != 4 {
		t.Fatalf("Byte() = %d, want 4", c.Byte())
	}
}

func TestCursorRetreat(t *testing.T) {
	c := NewCursor([][]byte{{1, 2, 3}})
	c.AdvanceN(2)
	c.Retreat(1)
	if c.Byte() != 2 {
		t.Fatalf("Byte() = %d, want 2", c.Byte())
	}
}

func TestCursorAdvanceBeyondEndPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic advancing past the end of the cursor")
		}
	}()
	c := NewCursor([][]byte{{1}})
	c.AdvanceN(5)
}

func TestCursorLimitedView(t *testing.T) {
	c := NewCursor([][]byte{{1, 2, 3, 4, 5}})
	sub := c.Limited(2)
	if sub.Remaining() != 2 {
		t.Fatalf("sub.Remaining() = %d, want 2", sub.Remaining())
	}
	sub.AdvanceN(2)
	if sub.Remaining() != 0 {
		t.Fatalf("sub.Remaining() = %d, want 0", sub.Remaining())
	}
	// The parent cursor is unaffected until the caller advances it too.
	if c.Remaining() != 5 {
		t.Fatalf("parent Remaining() = %d, want 5 (unaffected by sub-cursor)", c.Remaining())
	}
	c.AdvanceN(2)
	if c.Byte() != 3 {
		t.Fatalf("Byte() = %d, want 3", c.Byte())
	}
}

func TestCursorLimitedClippedToParent(t *testing.T) {
	c := NewCursor([][]byte{{1, 2}})
	sub := c.Limited(10)
	if sub.Remaining() != 2 {
		t.Fatalf("sub.Remaining() = %d, want 2 (clipped to parent)", sub.Remaining())
	}
}
