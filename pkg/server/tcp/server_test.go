// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/clickhouse-wire/chproxy/pkg/filter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// errRecorder is a filter.Handler that reports the direction of every
// OnProtocolError on its channel.
type errRecorder chan filter.Direction

func (r errRecorder) OnHello(filter.HelloInfo) error { return nil }

func (r errRecorder) OnProtocolError(dir filter.Direction, _ error) error {
	select {
	case r <- dir:
	default:
	}
	return nil
}

func TestTCPServer_ListenAndAccept(t *testing.T) {
	backendListener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to create backend listener: %v", err)
	}
	defer backendListener.Close()

	go func() {
		conn, err := backendListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	cfg := Config{
		Address:         "localhost:0",
		TargetAddress:   backendListener.Addr().String(),
		ShutdownTimeout: 5 * time.Second,
		Logger:          testLogger(),
	}

	server := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	select {
	case err := <-serverErr:
		t.Fatalf("server exited with error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-serverErr:
		if err != nil && err != context.Canceled {
			t.Errorf("server shutdown with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Error("server shutdown timeout")
	}
}

func TestTCPServer_InvalidAddress(t *testing.T) {
	cfg := Config{
		Address:         "invalid:address:99999",
		TargetAddress:   "localhost:0",
		ShutdownTimeout: 5 * time.Second,
		Logger:          testLogger(),
	}

	server := New(cfg)

	if err := server.Listen(context.Background()); err == nil {
		t.Error("expected error for invalid address")
	}
}

func TestTCPServer_BackendDialFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer listener.Close()

	cfg := Config{
		Address:         listener.Addr().String(),
		TargetAddress:   "localhost:9", // port that won't be listening
		ShutdownTimeout: 1 * time.Second,
		Logger:          testLogger(),
	}

	server := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	conn, err := net.Dial("tcp", cfg.Address)
	if err != nil {
		return
	}
	conn.Write([]byte("test"))
	conn.Close()

	// Server should continue running despite the failed backend dial.
	time.Sleep(100 * time.Millisecond)

	cancel()
	<-serverErr
}

func TestNew_DefaultConfig(t *testing.T) {
	cfg := Config{
		Address:       "localhost:0",
		TargetAddress: "localhost:0",
		// No logger, no timeout set.
	}

	server := New(cfg)

	if server == nil {
		t.Fatal("expected non-nil server")
	}
	if server.config.Logger == nil {
		t.Error("expected default logger to be set")
	}
	if server.config.ShutdownTimeout == 0 {
		t.Error("expected default shutdown timeout to be set")
	}
}

func TestTCPServer_ContextCancellation(t *testing.T) {
	cfg := Config{
		Address:         "localhost:0",
		TargetAddress:   "localhost:0",
		ShutdownTimeout: 5 * time.Second,
		Logger:          testLogger(),
	}

	server := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen(ctx)
	}()

	cancel()

	select {
	case <-serverErr:
	case <-time.After(2 * time.Second):
		t.Error("server did not shut down in time after context cancellation")
	}
}

// TestTCPServer_ForwardsBytesUnmodifiedAndInvokesFilter verifies that bytes
// written by the client reach the backend byte-for-byte, and that the
// configured filter observed them.
func TestTCPServer_ForwardsBytesUnmodifiedAndInvokesFilter(t *testing.T) {
	backendListener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to create backend listener: %v", err)
	}
	defer backendListener.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := backendListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1024)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	// Reserve a free port for the frontend listener so the test can dial a
	// known address once Listen has had time to bind it.
	reserve, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to reserve a frontend port: %v", err)
	}
	frontendAddr := reserve.Addr().String()
	reserve.Close()

	observed := make(errRecorder, 1)
	cfg := Config{
		Address:         frontendAddr,
		TargetAddress:   backendListener.Addr().String(),
		ShutdownTimeout: 1 * time.Second,
		Logger:          testLogger(),
		NewFilter: func(sessionID, remoteAddr string) *filter.Filter {
			return filter.New(filter.Config{SessionID: sessionID, RemoteAddr: remoteAddr, Handler: observed})
		},
	}

	server := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Listen(ctx) }()
	time.Sleep(100 * time.Millisecond)

	conn, err := net.Dial("tcp", cfg.Address)
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	payload := []byte("hello clickhouse")
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(payload) {
			t.Fatalf("backend received %q, want %q", got, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received the forwarded bytes")
	}

	// 'h' (0x68) is not the client Hello packet type, so a filter that saw
	// the bytes has handed off the client direction with a protocol error
	// before the server forwarded them.
	select {
	case dir := <-observed:
		if dir != filter.DirectionClient {
			t.Fatalf("protocol error reported for direction %v, want client", dir)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("filter never observed the client bytes")
	}

	conn.Close()
	cancel()
	<-serverErr
}
