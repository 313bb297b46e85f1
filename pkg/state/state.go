// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package state holds the small piece of mutable data the two handshake
// direction machines must share: the negotiated protocol version, the
// SSH-auth flag, and the two chunked-framing flags.
package state

import "sync"

// Protocol is the shared per-connection state described in spec.md §3.
// Every field is single-writer (the client-direction handshake) and
// multi-reader (the server-direction handshake, and the filter façade
// deciding whether to activate chunk framing). A single RWMutex guards the
// whole record, matching §5's "single lock guarding the whole state is
// sufficient" sizing.
type Protocol struct {
	mu sync.RWMutex

	tcpProtocolVersion uint64
	isSSHBasedAuth      bool
	chunkedClient       bool
	chunkedServer       bool
}

// New returns a Protocol state with all fields at their zero values:
// tcp_protocol_version 0, the three booleans false.
func New() *Protocol {
	return &Protocol{}
}

// SetTCPProtocolVersion records the negotiated protocol revision. Written
// once, by the client Hello reader.
func (p *Protocol) SetTCPProtocolVersion(v uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tcpProtocolVersion = v
}

// TCPProtocolVersion returns the negotiated protocol revision, or 0 if the
// client Hello has not completed yet.
func (p *Protocol) TCPProtocolVersion() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tcpProtocolVersion
}

// SetSSHBasedAuth records whether the client authenticated via the
// SSH-key marker. Written once, by the client Hello reader.
func (p *Protocol) SetSSHBasedAuth(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isSSHBasedAuth = v
}

// IsSSHBasedAuth reports whether the client Hello selected SSH-based auth.
func (p *Protocol) IsSSHBasedAuth() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isSSHBasedAuth
}

// SetChunkedClient records whether the client->server direction negotiated
// chunked framing. Written once, by the client addendum reader.
func (p *Protocol) SetChunkedClient(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunkedClient = v
}

// ChunkedClient reports whether the client->server direction is chunked.
func (p *Protocol) ChunkedClient() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chunkedClient
}

// SetChunkedServer records whether the server->client direction negotiated
// chunked framing. Written once, by the client addendum reader.
func (p *Protocol) SetChunkedServer(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunkedServer = v
}

// ChunkedServer reports whether the server->client direction is chunked.
func (p *Protocol) ChunkedServer() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chunkedServer
}
