// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handshake implements the ClickHouse native protocol's handshake:
// the client/server Hello field sequences, the optional SSH-challenge and
// addendum sub-exchanges, the two direction state machines that sequence
// them, and the post-handshake chunk framer.
package handshake

import "errors"

var (
	// ErrUnexpectedPacket is returned when a packet-type byte did not match
	// what the current handshake phase expects.
	ErrUnexpectedPacket = errors.New("handshake: unexpected packet type")

	// ErrMalformedVarUint is returned when a VarUint reader is still
	// signaling continuation after its tenth byte — treated the same as
	// ErrUnexpectedPacket by callers: hand off and stop inspecting.
	ErrMalformedVarUint = errors.New("handshake: malformed varuint")
)
