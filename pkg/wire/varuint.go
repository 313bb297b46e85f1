// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

// VarUint decodes an unsigned integer in the ClickHouse native protocol's
// base-128 little-endian encoding: each byte contributes 7 value bits, with
// the high bit signaling "more bytes follow". It resumes across any number
// of deliveries, one byte (or zero bytes) at a time.
//
// i persists the index of the next byte to read. A reader is complete once
// i reaches 10, either because a continuation bit cleared early or because
// ten continuation bytes were consumed regardless of their high bit.
type VarUint struct {
	value      uint64
	i          int
	overflowed bool
}

var _ Reader = (*VarUint)(nil)

// IsComplete reports whether the full value has been decoded.
func (v *VarUint) IsComplete() bool {
	return v.i == 10
}

// Feed decodes as many bytes as are available, stopping at the first byte
// whose continuation bit is clear, or after ten bytes, whichever comes
// first.
func (v *VarUint) Feed(c *Cursor) bool {
	for !v.IsComplete() && c.Remaining() > 0 {
		b := c.Byte()
		c.Advance()
		v.value |= uint64(b&0x7F) << (7 * v.i)
		v.i++
		if b&0x80 == 0 {
			v.i = 10
			return true
		}
		if v.i == 10 {
			// Ran out the full ten bytes without ever seeing a clear
			// continuation bit: the value is still considered decoded per
			// spec, but the tenth byte's continuation bit was still set.
			v.overflowed = true
		}
	}
	return v.IsComplete()
}

// Value returns the decoded value. Only meaningful once IsComplete.
func (v *VarUint) Value() uint64 {
	return v.value
}

// Overflowed reports whether the reader reached completion by exhausting
// all ten bytes with the tenth byte's continuation bit still set, rather
// than by encountering a byte with a clear continuation bit. Callers that
// care about §7's MalformedVarUint error kind check this after
// IsComplete().
func (v *VarUint) Overflowed() bool {
	return v.overflowed
}

// Reset returns the reader to its empty state.
func (v *VarUint) Reset() {
	v.value = 0
	v.i = 0
	v.overflowed = false
}

// EncodeVarUint appends the base-128 little-endian encoding of v to dst and
// returns the result. Used only by tests to build fixtures and to exercise
// the round-trip property (P6): it is not otherwise needed by a filter that
// only decodes.
func EncodeVarUint(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
		} else {
			dst = append(dst, b)
			return dst
		}
	}
}
