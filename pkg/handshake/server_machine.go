// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"github.com/clickhouse-wire/chproxy/pkg/state"
	"github.com/clickhouse-wire/chproxy/pkg/wire"
)

// ServerPhase is one of the server-direction handshake's phases, per
// spec.md §3/§4.4.
type ServerPhase int

const (
	ServerPhaseSSHChallenge ServerPhase = iota
	ServerPhaseHello
	ServerPhaseDone
)

// ServerMachine sequences the server-direction field-sequence readers
// through an optional SSH challenge, then Hello, then Done, per spec.md
// §4.4. Its very first Feed call inspects the shared is_ssh_based_auth flag
// before consuming any bytes: if false, it skips straight to Hello.
//
// If server bytes arrive before the client Hello has finished (which §5
// notes the host's own causal ordering should prevent), is_ssh_based_auth
// is still at its zero value and the machine skips straight to Hello as if
// SSH auth had not been selected. tcp_protocol_version is not similarly
// stuck at 0: the Hello reader re-reads it from the shared state on every
// Feed call while it is still unresolved, so the version gate catches up
// as soon as the client direction resolves it.
type ServerMachine struct {
	state       *state.Protocol
	phase       ServerPhase
	initialized bool

	sshChallenge *ServerSSHChallengeReader
	hello        *ServerHelloReader

	err error
}

// NewServerMachine returns a machine that has not yet inspected shared
// state, sharing s with the client-direction machine on the same
// connection.
func NewServerMachine(s *state.Protocol) *ServerMachine {
	return &ServerMachine{state: s, phase: ServerPhaseSSHChallenge}
}

func (m *ServerMachine) ensureInitialized() {
	if m.initialized {
		return
	}
	m.initialized = true
	if m.state.IsSSHBasedAuth() {
		m.sshChallenge = &ServerSSHChallengeReader{}
		return
	}
	m.phase = ServerPhaseHello
	m.hello = NewServerHelloReader(m.state)
}

// Phase returns the machine's current phase.
func (m *ServerMachine) Phase() ServerPhase { return m.phase }

// Done reports whether the machine reached its terminal phase.
func (m *ServerMachine) Done() bool { return m.phase == ServerPhaseDone }

// Err returns the protocol error that ended the handshake early, if any.
func (m *ServerMachine) Err() error { return m.err }

// Hello returns the decoded server Hello reader, or nil if the Hello phase
// was never entered.
func (m *ServerMachine) Hello() *ServerHelloReader { return m.hello }

// Feed drives the machine forward across as many phases as the bytes in c
// allow, returning once c is exhausted or the machine reaches Done.
func (m *ServerMachine) Feed(c *wire.Cursor) bool {
	m.ensureInitialized()
	for {
		switch m.phase {
		case ServerPhaseSSHChallenge:
			if !m.sshChallenge.Feed(c) {
				return false
			}
			if err := m.sshChallenge.Err(); err != nil {
				m.err = err
				m.phase = ServerPhaseDone
				return true
			}
			m.phase = ServerPhaseHello
			m.hello = NewServerHelloReader(m.state)

		case ServerPhaseHello:
			if !m.hello.Feed(c) {
				return false
			}
			if err := m.hello.Err(); err != nil {
				m.err = err
			}
			m.phase = ServerPhaseDone
			return true

		case ServerPhaseDone:
			return true
		}
	}
}
