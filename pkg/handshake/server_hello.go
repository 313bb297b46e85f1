// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"github.com/clickhouse-wire/chproxy/pkg/state"
	"github.com/clickhouse-wire/chproxy/pkg/wire"
)

const packetTypeServerHello = 0

// gatedField pairs a sub-reader with the minimum tcp_protocol_version at
// which it appears on the wire. A field whose gate exceeds the negotiated
// version is skipped entirely, consuming no bytes — spec.md §9's
// "declarative list of (sub-reader, min-version) pairs" design note.
type gatedField struct {
	minVersion uint64
	reader     wire.Reader
}

// ServerHelloReader decodes packet type 0 (Hello) in the server->client
// direction: the packet-type guard, the four always-present fields, then
// the version-gated fields of spec.md §4.3 in their documented wire order
// (which is not monotonic in gate value — password_complexity_rules, at
// gate 54461, is documented after the 54470-gated chunked fields).
type ServerHelloReader struct {
	state              *state.Protocol
	tcpProtocolVersion uint64

	packetType wire.VarUint

	versionName            wire.String
	versionMajor           wire.VarUint
	versionMinor           wire.VarUint
	dbmsTCPProtocolVersion wire.VarUint

	timeZone              wire.String
	serverDisplayName     wire.String
	versionPatch          wire.VarUint
	protoSendChunkedSrv   wire.String
	protoRecvChunkedSrv   wire.String
	passwordComplexity    wire.RuleList
	nonce                 wire.POD

	fields []gatedField
	step   int
	err    error
}

var _ wire.Reader = (*ServerHelloReader)(nil)

// NewServerHelloReader returns a reader gated on s's negotiated
// tcp_protocol_version. While that value is still 0 (the client Hello has
// not completed yet), Feed re-reads s on every call so the gate tracks the
// client direction as soon as it resolves, per spec.md §5.
func NewServerHelloReader(s *state.Protocol) *ServerHelloReader {
	r := &ServerHelloReader{state: s, tcpProtocolVersion: s.TCPProtocolVersion()}
	r.nonce = *wire.NewPOD(8)
	r.buildFields()
	return r
}

func (r *ServerHelloReader) buildFields() {
	r.fields = []gatedField{
		{0, &r.versionName},
		{0, &r.versionMajor},
		{0, &r.versionMinor},
		{0, &r.dbmsTCPProtocolVersion},
		{WithServerTimezone, &r.timeZone},
		{WithServerDisplayName, &r.serverDisplayName},
		{WithVersionPatch, &r.versionPatch},
		{WithChunkedPackets, &r.protoSendChunkedSrv},
		{WithChunkedPackets, &r.protoRecvChunkedSrv},
		{WithPasswordComplexityRules, &r.passwordComplexity},
		{WithInterserverSecretV2, &r.nonce},
	}
}

// IsComplete reports whether the packet-type guard and every present gated
// field have been fully decoded, or whether decoding stopped on an error.
func (r *ServerHelloReader) IsComplete() bool {
	return r.step > len(r.fields) || r.err != nil
}

// Err returns the error that stopped decoding, if any.
func (r *ServerHelloReader) Err() error { return r.err }

// Feed decodes as much as c has available.
func (r *ServerHelloReader) Feed(c *wire.Cursor) bool {
	if r.err != nil {
		return true
	}
	if r.tcpProtocolVersion == 0 {
		r.tcpProtocolVersion = r.state.TCPProtocolVersion()
	}
	if r.step == 0 {
		if !r.packetType.Feed(c) {
			return false
		}
		if r.packetType.Overflowed() {
			r.err = ErrMalformedVarUint
			return true
		}
		if r.packetType.Value() != packetTypeServerHello {
			r.err = ErrUnexpectedPacket
			return true
		}
		r.step = 1
	}

	for r.step-1 < len(r.fields) {
		f := r.fields[r.step-1]
		if r.tcpProtocolVersion < f.minVersion {
			r.step++
			continue
		}
		if !f.reader.Feed(c) {
			return false
		}
		r.step++
	}
	return true
}

// Reset returns the reader to its empty state, re-reading the negotiated
// tcp_protocol_version from the shared state.
func (r *ServerHelloReader) Reset() {
	r.tcpProtocolVersion = r.state.TCPProtocolVersion()
	r.packetType.Reset()
	r.versionName.Reset()
	r.versionMajor.Reset()
	r.versionMinor.Reset()
	r.dbmsTCPProtocolVersion.Reset()
	r.timeZone.Reset()
	r.serverDisplayName.Reset()
	r.versionPatch.Reset()
	r.protoSendChunkedSrv.Reset()
	r.protoRecvChunkedSrv.Reset()
	r.passwordComplexity.Reset()
	r.nonce.Reset()
	r.step = 0
	r.err = nil
	r.buildFields()
}

// VersionName returns the decoded version_name field.
func (r *ServerHelloReader) VersionName() string { return r.versionName.Value() }

// VersionMajor returns the decoded version_major field.
func (r *ServerHelloReader) VersionMajor() uint64 { return r.versionMajor.Value() }

// VersionMinor returns the decoded version_minor field.
func (r *ServerHelloReader) VersionMinor() uint64 { return r.versionMinor.Value() }

// DBMSTCPProtocolVersion returns the decoded dbms_tcp_protocol_version field.
func (r *ServerHelloReader) DBMSTCPProtocolVersion() uint64 {
	return r.dbmsTCPProtocolVersion.Value()
}

// TimeZone returns the decoded time_zone field, or "" if not gated in.
func (r *ServerHelloReader) TimeZone() string { return r.timeZone.Value() }

// ServerDisplayName returns the decoded server_display_name field, or "" if
// not gated in.
func (r *ServerHelloReader) ServerDisplayName() string { return r.serverDisplayName.Value() }

// VersionPatch returns the decoded version_patch field, or 0 if not gated in.
func (r *ServerHelloReader) VersionPatch() uint64 { return r.versionPatch.Value() }

// ProtoSendChunkedSrv returns the decoded proto_send_chunked_srv field, or
// "" if not gated in.
func (r *ServerHelloReader) ProtoSendChunkedSrv() string { return r.protoSendChunkedSrv.Value() }

// ProtoRecvChunkedSrv returns the decoded proto_recv_chunked_srv field, or
// "" if not gated in.
func (r *ServerHelloReader) ProtoRecvChunkedSrv() string { return r.protoRecvChunkedSrv.Value() }

// PasswordComplexityRules returns the decoded password complexity rules, or
// nil if not gated in.
func (r *ServerHelloReader) PasswordComplexityRules() []wire.Rule {
	return r.passwordComplexity.Rules()
}

// Nonce returns the decoded interserver-secret nonce, or 0 if not gated in.
func (r *ServerHelloReader) Nonce() uint64 { return r.nonce.Uint64() }
