// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"github.com/clickhouse-wire/chproxy/pkg/state"
	"github.com/clickhouse-wire/chproxy/pkg/wire"
)

// ClientPhase is one of the client-direction handshake's phases, per
// spec.md §3/§4.4.
type ClientPhase int

const (
	ClientPhaseHello ClientPhase = iota
	ClientPhaseSSHChallengeRequest
	ClientPhaseSSHChallengeResponse
	ClientPhaseAddendum
	ClientPhaseDone
)

// ClientMachine sequences the client-direction field-sequence readers
// through Hello -> optional SSH challenge pair -> optional addendum -> Done,
// per spec.md §4.4, writing tcp_protocol_version, is_ssh_based_auth,
// chunked_client and chunked_server into the shared protocol state as each
// field becomes known.
type ClientMachine struct {
	state *state.Protocol
	phase ClientPhase

	hello    *ClientHelloReader
	sshReq   *SSHChallengeRequestReader
	sshResp  *SSHChallengeResponseReader
	addendum *ClientAddendumReader

	err error
}

// NewClientMachine returns a machine in the initial Hello phase, sharing s
// with the server-direction machine on the same connection.
func NewClientMachine(s *state.Protocol) *ClientMachine {
	return &ClientMachine{state: s, phase: ClientPhaseHello, hello: &ClientHelloReader{}}
}

// Phase returns the machine's current phase.
func (m *ClientMachine) Phase() ClientPhase { return m.phase }

// Done reports whether the machine reached its terminal phase, whether by
// completing the handshake or by hitting a protocol error.
func (m *ClientMachine) Done() bool { return m.phase == ClientPhaseDone }

// Err returns the protocol error that ended the handshake early, if any.
func (m *ClientMachine) Err() error { return m.err }

// Hello returns the decoded client Hello reader. Valid once the Hello phase
// has completed (phase has advanced past ClientPhaseHello), regardless of
// whether the handshake went on to complete or fail later.
func (m *ClientMachine) Hello() *ClientHelloReader { return m.hello }

// Addendum returns the decoded client addendum reader, or nil if the
// addendum phase was never entered.
func (m *ClientMachine) Addendum() *ClientAddendumReader { return m.addendum }

// Feed drives the machine forward across as many phases as the bytes in c
// allow, returning once c is exhausted or the machine reaches Done.
func (m *ClientMachine) Feed(c *wire.Cursor) bool {
	for {
		switch m.phase {
		case ClientPhaseHello:
			if !m.hello.Feed(c) {
				return false
			}
			if err := m.hello.Err(); err != nil {
				m.err = err
				m.phase = ClientPhaseDone
				return true
			}
			m.state.SetTCPProtocolVersion(m.hello.TCPProtocolVersion())
			m.state.SetSSHBasedAuth(m.hello.IsSSHBasedAuth())
			switch {
			case m.hello.IsSSHBasedAuth():
				m.phase = ClientPhaseSSHChallengeRequest
				m.sshReq = &SSHChallengeRequestReader{}
			case m.hello.TCPProtocolVersion() >= WithAddendum:
				m.phase = ClientPhaseAddendum
				m.addendum = NewClientAddendumReader(m.hello.TCPProtocolVersion())
			default:
				m.phase = ClientPhaseDone
				return true
			}

		case ClientPhaseSSHChallengeRequest:
			if !m.sshReq.Feed(c) {
				return false
			}
			if err := m.sshReq.Err(); err != nil {
				m.err = err
				m.phase = ClientPhaseDone
				return true
			}
			m.phase = ClientPhaseSSHChallengeResponse
			m.sshResp = &SSHChallengeResponseReader{}

		case ClientPhaseSSHChallengeResponse:
			if !m.sshResp.Feed(c) {
				return false
			}
			if err := m.sshResp.Err(); err != nil {
				m.err = err
				m.phase = ClientPhaseDone
				return true
			}
			if m.state.TCPProtocolVersion() >= WithAddendum {
				m.phase = ClientPhaseAddendum
				m.addendum = NewClientAddendumReader(m.state.TCPProtocolVersion())
			} else {
				m.phase = ClientPhaseDone
				return true
			}

		case ClientPhaseAddendum:
			if !m.addendum.Feed(c) {
				return false
			}
			m.state.SetChunkedClient(m.addendum.ChunkedClient())
			m.state.SetChunkedServer(m.addendum.ChunkedServer())
			m.phase = ClientPhaseDone
			return true

		case ClientPhaseDone:
			return true
		}
	}
}
