// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import "github.com/clickhouse-wire/chproxy/pkg/wire"

const chunkedMarker = "chunked"

// ClientAddendumReader decodes the client addendum block: quota_key and the
// two chunked-framing negotiation strings, all three gated on the same
// version (WithAddendum == WithQuotaKey == 54458). When the negotiated
// version is below the gate, the reader completes immediately, consuming no
// bytes, per spec.md §4.3.
type ClientAddendumReader struct {
	quotaKey            wire.String
	protoSendChunkedCl  wire.String
	protoRecvChunkedCl  wire.String

	present bool
	step    int
}

var _ wire.Reader = (*ClientAddendumReader)(nil)

// NewClientAddendumReader returns a reader gated on the given negotiated
// tcp_protocol_version (read from the shared protocol state by the caller).
func NewClientAddendumReader(tcpProtocolVersion uint64) *ClientAddendumReader {
	return &ClientAddendumReader{present: tcpProtocolVersion >= WithAddendum}
}

// IsComplete reports whether the gated fields (or the empty no-op case) have
// been fully decoded.
func (r *ClientAddendumReader) IsComplete() bool {
	if !r.present {
		return true
	}
	return r.step == 3
}

// Feed decodes as much as c has available.
func (r *ClientAddendumReader) Feed(c *wire.Cursor) bool {
	if !r.present {
		return true
	}
	fields := [3]wire.Reader{&r.quotaKey, &r.protoSendChunkedCl, &r.protoRecvChunkedCl}
	for r.step < len(fields) {
		if !fields[r.step].Feed(c) {
			return false
		}
		r.step++
	}
	return true
}

// Reset returns the reader to its empty state. present must be re-supplied
// via a fresh NewClientAddendumReader since it depends on state external to
// this reader.
func (r *ClientAddendumReader) Reset() {
	r.quotaKey.Reset()
	r.protoSendChunkedCl.Reset()
	r.protoRecvChunkedCl.Reset()
	r.step = 0
}

// QuotaKey returns the decoded quota_key field, or "" if the addendum was
// not present for this connection's negotiated version.
func (r *ClientAddendumReader) QuotaKey() string { return r.quotaKey.Value() }

// ChunkedClient reports whether proto_send_chunked_cl negotiated chunked
// framing for the client->server direction.
func (r *ClientAddendumReader) ChunkedClient() bool {
	return r.present && r.protoSendChunkedCl.Value() == chunkedMarker
}

// ChunkedServer reports whether proto_recv_chunked_cl negotiated chunked
// framing for the server->client direction.
func (r *ClientAddendumReader) ChunkedServer() bool {
	return r.present && r.protoRecvChunkedCl.Value() == chunkedMarker
}
