// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

import "encoding/binary"

// POD decodes a fixed-width, little-endian plain-old-data value — in this
// protocol, the 8-byte interserver-secret nonce of the server Hello and the
// 4-byte chunk lengths read by the chunk framer. It is parameterized by
// byte width so the same decoder shape serves both.
type POD struct {
	buf []byte
	i   int
}

var _ Reader = (*POD)(nil)

// NewPOD creates a POD reader that accumulates size bytes.
func NewPOD(size int) *POD {
	return &POD{buf: make([]byte, size)}
}

// IsComplete reports whether all size bytes have been absorbed.
func (p *POD) IsComplete() bool {
	return p.i == len(p.buf)
}

// Feed consumes as many of the remaining bytes as are available.
func (p *POD) Feed(c *Cursor) bool {
	for p.i < len(p.buf) && c.Remaining() > 0 {
		p.buf[p.i] = c.Byte()
		c.Advance()
		p.i++
	}
	return p.IsComplete()
}

// Uint64 interprets the accumulated bytes as a little-endian unsigned
// integer, zero-extended if fewer than 8 bytes were configured.
func (p *POD) Uint64() uint64 {
	var b [8]byte
	copy(b[:], p.buf)
	return binary.LittleEndian.Uint64(b[:])
}

// Uint32 interprets the first 4 accumulated bytes as a little-endian
// unsigned integer — used by the chunk framer for chunk lengths.
func (p *POD) Uint32() uint32 {
	var b [4]byte
	copy(b[:], p.buf)
	return binary.LittleEndian.Uint32(b[:])
}

// Bytes returns the raw accumulated bytes.
func (p *POD) Bytes() []byte {
	return p.buf
}

// Reset returns the reader to its empty state, ready to absorb the same
// number of bytes again.
func (p *POD) Reset() {
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.i = 0
}
