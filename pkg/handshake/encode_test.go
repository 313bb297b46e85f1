// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"encoding/binary"

	"github.com/clickhouse-wire/chproxy/pkg/wire"
)

func varuint(v uint64) []byte { return wire.EncodeVarUint(nil, v) }

func str(s string) []byte { return wire.EncodeString(nil, s) }

func nonceBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func ruleListBytes(rules []wire.Rule) []byte {
	buf := varuint(uint64(len(rules)))
	for _, r := range rules {
		buf = append(buf, str(r.OriginalPattern)...)
		buf = append(buf, str(r.ExceptionMessage)...)
	}
	return buf
}

func wireCursor(buf []byte) *wire.Cursor {
	return wire.NewCursor([][]byte{buf})
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// feedAll feeds all of buf to r in a single delivery and returns the final
// IsComplete result.
func feedAll(r wire.Reader, buf []byte) bool {
	c := wire.NewCursor([][]byte{buf})
	return r.Feed(c)
}

// feedByteAtATime feeds buf to r one byte per call, as spec.md's P1
// byte-splitting invariance demands.
func feedByteAtATime(r wire.Reader, buf []byte) bool {
	done := false
	for _, b := range buf {
		c := wire.NewCursor([][]byte{{b}})
		done = r.Feed(c)
	}
	return done
}
