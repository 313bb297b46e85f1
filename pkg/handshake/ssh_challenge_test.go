// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

import "testing"

func TestSSHChallengeRequestReader_Valid(t *testing.T) {
	var r SSHChallengeRequestReader
	if !feedAll(&r, varuint(packetTypeSSHChallengeRequest)) {
		t.Fatal("expected completion")
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
}

func TestSSHChallengeRequestReader_WrongType(t *testing.T) {
	var r SSHChallengeRequestReader
	feedAll(&r, varuint(3))
	if r.Err() != ErrUnexpectedPacket {
		t.Fatalf("Err() = %v, want ErrUnexpectedPacket", r.Err())
	}
}

func TestSSHChallengeResponseReader_RoundTrip(t *testing.T) {
	buf := concat(varuint(packetTypeSSHChallengeResponse), str("sig-bytes"))

	var r SSHChallengeResponseReader
	if !feedAll(&r, buf) {
		t.Fatal("expected completion")
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
	if r.Signature() != "sig-bytes" {
		t.Fatalf("Signature() = %q", r.Signature())
	}
}

// TestSSHChallengeResponseReader_UsesCorrectedPacketType pins the open
// question decision from spec.md §9: this reader checks against 12, not
// the 11 some source revisions use.
func TestSSHChallengeResponseReader_UsesCorrectedPacketType(t *testing.T) {
	buf := concat(varuint(packetTypeSSHChallengeRequest), str("sig-bytes"))

	var r SSHChallengeResponseReader
	feedAll(&r, buf)
	if r.Err() != ErrUnexpectedPacket {
		t.Fatalf("Err() = %v, want ErrUnexpectedPacket for packet type 11", r.Err())
	}
}

func TestServerSSHChallengeReader_Valid(t *testing.T) {
	var r ServerSSHChallengeReader
	if !feedAll(&r, varuint(packetTypeServerSSHChallenge)) {
		t.Fatal("expected completion")
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
}

func TestServerSSHChallengeReader_WrongType(t *testing.T) {
	var r ServerSSHChallengeReader
	feedAll(&r, varuint(0))
	if r.Err() != ErrUnexpectedPacket {
		t.Fatalf("Err() = %v, want ErrUnexpectedPacket", r.Err())
	}
}
