// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

// String decodes a length-prefixed byte string: a VarUint length followed
// by exactly that many raw bytes. When a delivery ends mid-string, the
// reader keeps its partial accumulator and the count of bytes already
// absorbed; resumption continues filling the same backing array.
type String struct {
	size  VarUint
	i     int
	value []byte
}

var _ Reader = (*String)(nil)

// IsComplete reports whether the length and the full payload have been
// decoded.
func (s *String) IsComplete() bool {
	return s.size.IsComplete() && s.i == len(s.value)
}

// Feed decodes the length (if not already known) and then as many payload
// bytes as are available.
func (s *String) Feed(c *Cursor) bool {
	if !s.size.IsComplete() {
		if !s.size.Feed(c) {
			return false
		}
		s.value = make([]byte, s.size.Value())
	}
	for s.i < len(s.value) && c.Remaining() > 0 {
		s.value[s.i] = c.Byte()
		c.Advance()
		s.i++
	}
	return s.IsComplete()
}

// Value returns the decoded string. Only meaningful once IsComplete.
func (s *String) Value() string {
	return string(s.value)
}

// Bytes returns the decoded raw bytes without a copy.
func (s *String) Bytes() []byte {
	return s.value
}

// Reset returns the reader to its empty state.
func (s *String) Reset() {
	s.size.Reset()
	s.i = 0
	s.value = nil
}

// EncodeString appends the length-prefixed encoding of str to dst. Used
// only by tests.
func EncodeString(dst []byte, str string) []byte {
	dst = EncodeVarUint(dst, uint64(len(str)))
	return append(dst, str...)
}
