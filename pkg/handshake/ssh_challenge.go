// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import "github.com/clickhouse-wire/chproxy/pkg/wire"

const (
	packetTypeSSHChallengeRequest  = 11
	packetTypeSSHChallengeResponse = 12
	packetTypeServerSSHChallenge   = 18
)

// SSHChallengeRequestReader decodes the client-side SSH challenge request:
// a single packet-type VarUInt that must equal 11.
type SSHChallengeRequestReader struct {
	packetType wire.VarUint
	err        error
}

var _ wire.Reader = (*SSHChallengeRequestReader)(nil)

func (r *SSHChallengeRequestReader) IsComplete() bool {
	return r.packetType.IsComplete()
}

func (r *SSHChallengeRequestReader) Err() error { return r.err }

func (r *SSHChallengeRequestReader) Feed(c *wire.Cursor) bool {
	if !r.packetType.Feed(c) {
		return false
	}
	switch {
	case r.packetType.Overflowed():
		r.err = ErrMalformedVarUint
	case r.packetType.Value() != packetTypeSSHChallengeRequest:
		r.err = ErrUnexpectedPacket
	}
	return true
}

func (r *SSHChallengeRequestReader) Reset() {
	r.packetType.Reset()
	r.err = nil
}

// SSHChallengeResponseReader decodes the client-side SSH challenge response:
// a packet-type VarUInt that must equal 12 (SSHChallengeResponse), followed
// by the signature string.
//
// spec.md §9 records that some source revisions check this packet type
// against 11 (SSHChallengeRequest) instead of 12 — a typo. This
// implementation uses the corrected value, 12; see DESIGN.md.
type SSHChallengeResponseReader struct {
	packetType wire.VarUint
	signature  wire.String

	step int
	err  error
}

var _ wire.Reader = (*SSHChallengeResponseReader)(nil)

func (r *SSHChallengeResponseReader) IsComplete() bool {
	return r.step == 2 || r.err != nil
}

func (r *SSHChallengeResponseReader) Err() error { return r.err }

func (r *SSHChallengeResponseReader) Signature() string { return r.signature.Value() }

func (r *SSHChallengeResponseReader) Feed(c *wire.Cursor) bool {
	if r.err != nil {
		return true
	}
	if r.step == 0 {
		if !r.packetType.Feed(c) {
			return false
		}
		switch {
		case r.packetType.Overflowed():
			r.err = ErrMalformedVarUint
			return true
		case r.packetType.Value() != packetTypeSSHChallengeResponse:
			r.err = ErrUnexpectedPacket
			return true
		}
		r.step = 1
	}
	if !r.signature.Feed(c) {
		return false
	}
	r.step = 2
	return true
}

func (r *SSHChallengeResponseReader) Reset() {
	r.packetType.Reset()
	r.signature.Reset()
	r.step = 0
	r.err = nil
}

// ServerSSHChallengeReader decodes the server-side SSH challenge: a single
// packet-type VarUInt that must equal 18 (SSHChallenge).
type ServerSSHChallengeReader struct {
	packetType wire.VarUint
	err        error
}

var _ wire.Reader = (*ServerSSHChallengeReader)(nil)

func (r *ServerSSHChallengeReader) IsComplete() bool {
	return r.packetType.IsComplete()
}

func (r *ServerSSHChallengeReader) Err() error { return r.err }

func (r *ServerSSHChallengeReader) Feed(c *wire.Cursor) bool {
	if !r.packetType.Feed(c) {
		return false
	}
	switch {
	case r.packetType.Overflowed():
		r.err = ErrMalformedVarUint
	case r.packetType.Value() != packetTypeServerSSHChallenge:
		r.err = ErrUnexpectedPacket
	}
	return true
}

func (r *ServerSSHChallengeReader) Reset() {
	r.packetType.Reset()
	r.err = nil
}
