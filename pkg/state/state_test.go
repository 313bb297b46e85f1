// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"sync"
	"testing"
)

func TestProtocolZeroValues(t *testing.T) {
	p := New()
	if p.TCPProtocolVersion() != 0 {
		t.Fatal("expected tcp_protocol_version to start at 0")
	}
	if p.IsSSHBasedAuth() || p.ChunkedClient() || p.ChunkedServer() {
		t.Fatal("expected all boolean fields to start false")
	}
}

func TestProtocolSettersAreVisibleAcrossGoroutines(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	wg.Add(1)

	done := make(chan struct{})
	go func() {
		defer wg.Done()
		p.SetTCPProtocolVersion(54470)
		p.SetSSHBasedAuth(true)
		p.SetChunkedClient(true)
		p.SetChunkedServer(true)
		close(done)
	}()

	<-done
	wg.Wait()

	if p.TCPProtocolVersion() != 54470 {
		t.Fatalf("got %d, want 54470", p.TCPProtocolVersion())
	}
	if !p.IsSSHBasedAuth() || !p.ChunkedClient() || !p.ChunkedServer() {
		t.Fatal("expected all flags to be true after the writer goroutine finished")
	}
}
