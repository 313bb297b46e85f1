// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the ClickHouse native protocol's low-level
// encoding primitives as resumable, non-blocking decoders: a byte cursor
// over a possibly fragmented delivery, and the VarUint/String/POD/RuleList
// readers built on top of it.
package wire

import "fmt"

// Cursor is a read-only, forward-and-backward cursor over an ordered list
// of byte slices representing one delivery from the host. It performs no
// copies: callers dereference a byte at a time and accumulate into their
// own storage.
//
// A Cursor constructed via Limited is a sub-view that reports end-of-data N
// bytes past the parent's position at construction time; advancing the
// parent past a consumed Limited view is the caller's responsibility.
type Cursor struct {
	segments [][]byte
	seg      int // index into segments
	off      int // offset within segments[seg]
	limit    int // bytes still visible from the current position, or -1
}

// NewCursor builds a Cursor over segs, an ordered sequence of contiguous
// byte slices. The cursor starts at the very first byte of the first
// non-empty segment.
func NewCursor(segs [][]byte) *Cursor {
	c := &Cursor{segments: segs, limit: -1}
	c.skipEmpty()
	return c
}

// skipEmpty advances seg/off past any zero-length segments so that
// Remaining() and Byte() never have to special-case them.
func (c *Cursor) skipEmpty() {
	for c.seg < len(c.segments) && c.off >= len(c.segments[c.seg]) {
		c.seg++
		c.off = 0
	}
}

// Remaining returns the number of bytes still visible to this cursor.
func (c *Cursor) Remaining() int {
	total := 0
	seg, off := c.seg, c.off
	for seg < len(c.segments) {
		total += len(c.segments[seg]) - off
		seg++
		off = 0
	}
	if c.limit >= 0 && c.limit < total {
		return c.limit
	}
	return total
}

// Byte returns the byte at the current position without advancing.
// It panics if Remaining() == 0 — advancing past the end is a programming
// error in a correctly resumable reader, per the cursor's bounds contract.
func (c *Cursor) Byte() byte {
	if c.Remaining() == 0 {
		panic(fmt.Sprintf("wire: cursor bounds underflow at segment %d offset %d", c.seg, c.off))
	}
	return c.segments[c.seg][c.off]
}

// Advance moves the cursor forward by one byte.
func (c *Cursor) Advance() {
	c.AdvanceN(1)
}

// AdvanceN moves the cursor forward by n bytes. It panics if n exceeds
// Remaining().
func (c *Cursor) AdvanceN(n int) {
	if n < 0 {
		panic("wire: negative advance")
	}
	if n > c.Remaining() {
		panic(fmt.Sprintf("wire: cursor bounds underflow advancing %d bytes", n))
	}
	if c.limit >= 0 {
		c.limit -= n
	}
	for n > 0 {
		avail := len(c.segments[c.seg]) - c.off
		take := avail
		if take > n {
			take = n
		}
		c.off += take
		n -= take
		c.skipEmpty()
	}
}

// Retreat moves the cursor backward by n bytes. Used only by readers that
// need to re-examine bytes already observed in the same delivery; none of
// the readers in this package currently do, but the operation is part of
// the cursor's contract.
func (c *Cursor) Retreat(n int) {
	if n < 0 {
		panic("wire: negative retreat")
	}
	if c.limit >= 0 {
		c.limit += n
	}
	for n > 0 {
		if c.off == 0 {
			c.seg--
			if c.seg < 0 {
				panic("wire: cursor retreat underflow")
			}
			c.off = len(c.segments[c.seg])
		}
		take := c.off
		if take > n {
			take = n
		}
		c.off -= take
		n -= take
	}
}

// Pos reports the cursor's offset in bytes from the start of the first
// segment (for a Limited view, the first segment of its parent).
// It is used only for diagnostics; readers never rely on absolute position.
func (c *Cursor) Pos() int {
	pos := 0
	for i := 0; i < c.seg; i++ {
		pos += len(c.segments[i])
	}
	return pos + c.off
}

// Limited returns a sub-cursor that shares this cursor's position but
// reports end-of-data after at most n more bytes, clipped to this cursor's
// own remaining length. It does not advance the parent.
func (c *Cursor) Limited(n int) *Cursor {
	if n < 0 {
		n = 0
	}
	if rem := c.Remaining(); n > rem {
		n = rem
	}
	return &Cursor{
		segments: c.segments,
		seg:      c.seg,
		off:      c.off,
		limit:    n,
	}
}
