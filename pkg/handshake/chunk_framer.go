// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import "github.com/clickhouse-wire/chproxy/pkg/wire"

// ChunkFramer parses the post-handshake chunked envelope of spec.md §4.5 for
// one direction: a sequence of 4-byte little-endian chunk lengths each
// followed by that many payload bytes, a zero length ending the current
// packet. It extracts only the leading packet-type VarUInt of each packet
// and discards the rest of the payload — it never buffers more than that.
//
// Unlike the field-sequence readers, a ChunkFramer never reaches a terminal
// "complete" state: it runs for the lifetime of the direction once chunked
// framing has been negotiated.
type ChunkFramer struct {
	length         wire.POD
	chunkRemaining uint32

	packetType wire.VarUint

	onPacketType func(uint64)
}

// NewChunkFramer returns a framer in its initial state, awaiting the first
// chunk length. onPacketType, if non-nil, is invoked exactly once per
// packet, as soon as that packet's packet-type VarUInt completes — not once
// per chunk.
func NewChunkFramer(onPacketType func(uint64)) *ChunkFramer {
	return &ChunkFramer{length: *wire.NewPOD(4), onPacketType: onPacketType}
}

// Feed consumes every byte available in c, advancing through as many chunks
// and packet boundaries as the delivery contains.
func (f *ChunkFramer) Feed(c *wire.Cursor) {
	for c.Remaining() > 0 {
		if f.chunkRemaining == 0 {
			if !f.length.IsComplete() {
				if !f.length.Feed(c) {
					return
				}
			}
			f.chunkRemaining = f.length.Uint32()
			f.length.Reset()
			if f.chunkRemaining == 0 {
				// Terminator: the packet just ended. The next non-zero
				// chunk starts a fresh packet-type read.
				f.packetType.Reset()
			}
			continue
		}

		take := f.chunkRemaining
		if avail := uint32(c.Remaining()); avail < take {
			take = avail
		}
		if take == 0 {
			return
		}

		if !f.packetType.IsComplete() {
			sub := c.Limited(int(take))
			if f.packetType.Feed(sub) && f.onPacketType != nil {
				f.onPacketType(f.packetType.Value())
			}
		}
		c.AdvanceN(int(take))
		f.chunkRemaining -= take
	}
}

// Reset returns the framer to its initial state, awaiting a fresh chunk
// length as though no bytes had ever been fed.
func (f *ChunkFramer) Reset() {
	f.length.Reset()
	f.chunkRemaining = 0
	f.packetType.Reset()
}
