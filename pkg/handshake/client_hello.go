// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"strings"

	"github.com/clickhouse-wire/chproxy/pkg/wire"
)

// sshAuthMarker is the literal 7-bit ASCII marker spec.md §4.3 uses to flag
// SSH-key based authentication, leading and trailing space included.
const sshAuthMarker = " SSH KEY AUTHENTICATION "

const packetTypeClientHello = 0

// ClientHelloReader decodes packet type 0 (Hello) in the client->server
// direction: the packet-type guard followed by the seven Hello fields, in
// declaration order, per spec.md §4.3.
type ClientHelloReader struct {
	packetType wire.VarUint

	clientName         wire.String
	versionMajor       wire.VarUint
	versionMinor       wire.VarUint
	tcpProtocolVersion wire.VarUint
	defaultDB          wire.String
	user               wire.String
	password           wire.String

	step int
	err  error
}

var _ wire.Reader = (*ClientHelloReader)(nil)

// IsComplete reports whether every field, including the packet-type guard,
// has been decoded, or whether decoding stopped on an error.
func (r *ClientHelloReader) IsComplete() bool {
	return r.step == 8 || r.err != nil
}

// Err returns the error that stopped decoding, if any.
func (r *ClientHelloReader) Err() error {
	return r.err
}

func (r *ClientHelloReader) fields() [7]wire.Reader {
	return [7]wire.Reader{
		&r.clientName, &r.versionMajor, &r.versionMinor, &r.tcpProtocolVersion,
		&r.defaultDB, &r.user, &r.password,
	}
}

// Feed decodes as much as c has available. It returns true once IsComplete.
func (r *ClientHelloReader) Feed(c *wire.Cursor) bool {
	if r.err != nil {
		return true
	}
	if r.step == 0 {
		if !r.packetType.Feed(c) {
			return false
		}
		if r.packetType.Overflowed() {
			r.err = ErrMalformedVarUint
			return true
		}
		if r.packetType.Value() != packetTypeClientHello {
			r.err = ErrUnexpectedPacket
			return true
		}
		r.step = 1
	}

	fields := r.fields()
	for r.step-1 < len(fields) {
		f := fields[r.step-1]
		if !f.Feed(c) {
			return false
		}
		r.step++
	}
	return true
}

// Reset returns the reader to its empty state.
func (r *ClientHelloReader) Reset() {
	r.packetType.Reset()
	r.clientName.Reset()
	r.versionMajor.Reset()
	r.versionMinor.Reset()
	r.tcpProtocolVersion.Reset()
	r.defaultDB.Reset()
	r.user.Reset()
	r.password.Reset()
	r.step = 0
	r.err = nil
}

// ClientName returns the decoded client_name field. Only meaningful once
// IsComplete and Err is nil.
func (r *ClientHelloReader) ClientName() string { return r.clientName.Value() }

// VersionMajor returns the decoded client_version_major field.
func (r *ClientHelloReader) VersionMajor() uint64 { return r.versionMajor.Value() }

// VersionMinor returns the decoded client_version_minor field.
func (r *ClientHelloReader) VersionMinor() uint64 { return r.versionMinor.Value() }

// TCPProtocolVersion returns the decoded client_tcp_protocol_version field.
func (r *ClientHelloReader) TCPProtocolVersion() uint64 { return r.tcpProtocolVersion.Value() }

// DefaultDB returns the decoded default_db field.
func (r *ClientHelloReader) DefaultDB() string { return r.defaultDB.Value() }

// User returns the decoded user field.
func (r *ClientHelloReader) User() string { return r.user.Value() }

// Password returns the decoded password field.
func (r *ClientHelloReader) Password() string { return r.password.Value() }

// IsSSHBasedAuth reports whether the decoded user/password pair selects
// SSH-key based authentication: user starting with the literal marker and an
// empty password, per spec.md §4.3.
func (r *ClientHelloReader) IsSSHBasedAuth() bool {
	return strings.HasPrefix(r.user.Value(), sshAuthMarker) && r.password.Value() == ""
}
