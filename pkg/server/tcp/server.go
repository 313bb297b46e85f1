// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/clickhouse-wire/chproxy/pkg/breaker"
	"github.com/clickhouse-wire/chproxy/pkg/filter"
	"github.com/clickhouse-wire/chproxy/pkg/metrics"
	"github.com/clickhouse-wire/chproxy/pkg/ratelimit"
	"github.com/google/uuid"
)

var (
	// ErrShutdownTimeout is returned when graceful shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// bufferSize is the chunk size read from each connection per delivery. It is
// intentionally not a multiple of any ClickHouse wire structure — the point
// of the handshake decoders is that they tolerate an arbitrary split.
const bufferSize = 4096

// Config holds the TCP server configuration.
type Config struct {
	// Address is the listen address (host:port)
	Address string

	// TargetAddress is the ClickHouse server address to proxy to (host:port)
	TargetAddress string

	// TLSConfig is optional TLS configuration for the listener
	TLSConfig *tls.Config

	// ShutdownTimeout is the maximum time to wait for active connections to drain
	// during graceful shutdown. After this timeout the connections' context is
	// cancelled, which each stream checks only between reads; the server does
	// not close the connections itself, and Listen returns ErrShutdownTimeout.
	ShutdownTimeout time.Duration

	// NewFilter constructs a fresh filter.Filter for each accepted
	// connection. If nil, connections are proxied as a plain byte pipe with
	// no handshake inspection.
	NewFilter func(sessionID, remoteAddr string) *filter.Filter

	// Limiter rejects connections from a client IP that exceeds its token
	// bucket, before a backend connection is ever dialed. If nil, all
	// connections are accepted.
	Limiter *ratelimit.Limiter

	// Breaker wraps the backend dial, protecting a struggling backend from
	// a thundering herd of new client connections. If nil, every accepted
	// connection dials the backend directly.
	Breaker *breaker.CircuitBreaker

	// Metrics, if set, is updated for every rate-limited connection, every
	// handled connection (via ObserveConnection), and every backend dial.
	// Hand-offs are counted by the filter, through its own Config.Metrics.
	Metrics *metrics.Metrics

	// Logger for server events
	Logger *slog.Logger
}

// Server accepts ClickHouse client connections and proxies them to a
// backend ClickHouse server, feeding every delivery of bytes in both
// directions to a per-connection filter.Filter before forwarding it
// unmodified to the peer.
type Server struct {
	config Config
	wg     sync.WaitGroup
}

// New creates a new TCP server with the given configuration.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	return &Server{config: cfg}
}

// Listen starts the TCP server and blocks until the context is cancelled.
// It implements graceful shutdown with connection draining.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}

	if s.config.TLSConfig != nil {
		listener = tls.NewListener(listener, s.config.TLSConfig)
		s.config.Logger.Info("TLS enabled", slog.String("address", s.config.Address))
	}

	s.config.Logger.Info("TCP server started", slog.String("address", s.config.Address))

	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					s.config.Logger.Error("failed to accept connection", slog.String("error", err.Error()))
					continue
				}
			}

			if s.config.Limiter != nil {
				clientIP, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
				if !s.config.Limiter.Allow(clientIP) {
					s.config.Logger.Warn("connection rejected by rate limiter", slog.String("remote", conn.RemoteAddr().String()))
					if s.config.Metrics != nil {
						s.config.Metrics.RateLimitedConnections.WithLabelValues("per_client").Inc()
					}
					conn.Close()
					continue
				}
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if err := s.handleConn(connCtx, conn); err != nil && !errors.Is(err, io.EOF) {
					s.config.Logger.Debug("connection handler error",
						slog.String("remote", conn.RemoteAddr().String()),
						slog.String("error", err.Error()))
				}
			}()
		}
	}()

	<-ctx.Done()
	s.config.Logger.Info("shutdown signal received, closing listener")

	if err := listener.Close(); err != nil {
		s.config.Logger.Error("error closing listener", slog.String("error", err.Error()))
	}

	<-acceptDone

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Logger.Info("all connections closed gracefully")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		s.config.Logger.Warn("shutdown timeout exceeded, forcing connection closure")
		connCancel()
		select {
		case <-done:
			return ErrShutdownTimeout
		case <-time.After(1 * time.Second):
			return ErrShutdownTimeout
		}
	}
}

// handleConn dials the backend, constructs a fresh filter for the
// connection, and runs both streaming directions until either closes.
func (s *Server) handleConn(ctx context.Context, inbound net.Conn) error {
	defer inbound.Close()

	sessionID := uuid.New().String()
	remoteAddr := inbound.RemoteAddr().String()

	run := func() error {
		if tlsConn, ok := inbound.(*tls.Conn); ok {
			if err := tlsConn.Handshake(); err != nil {
				if s.config.Metrics != nil {
					s.config.Metrics.ConnectionErrors.WithLabelValues("tls_handshake").Inc()
				}
				return fmt.Errorf("TLS handshake failed: %w", err)
			}
		}

		outbound, err := s.dialBackend()
		if err != nil {
			if s.config.Metrics != nil {
				s.config.Metrics.ConnectionErrors.WithLabelValues("backend_dial").Inc()
			}
			return fmt.Errorf("failed to dial backend %s: %w", s.config.TargetAddress, err)
		}
		defer outbound.Close()

		if s.config.Metrics != nil {
			s.config.Metrics.BackendActiveConnections.WithLabelValues(s.config.TargetAddress).Inc()
			defer s.config.Metrics.BackendActiveConnections.WithLabelValues(s.config.TargetAddress).Dec()
		}

		s.config.Logger.Debug("connection established",
			slog.String("session", sessionID),
			slog.String("client", remoteAddr),
			slog.String("backend", s.config.TargetAddress))

		var f *filter.Filter
		if s.config.NewFilter != nil {
			f = s.config.NewFilter(sessionID, remoteAddr)
			f.OnNewConnection()
		}

		errCh := make(chan error, 2)
		go func() { errCh <- s.stream(ctx, inbound, outbound, f, inspectClient) }()
		go func() { errCh <- s.stream(ctx, outbound, inbound, f, inspectServer) }()

		var streamErr error
		for i := 0; i < 2; i++ {
			if err := <-errCh; err != nil && !errors.Is(err, io.EOF) {
				if streamErr == nil {
					streamErr = err
				}
			}
		}

		s.config.Logger.Debug("connection closed", slog.String("session", sessionID))
		return streamErr
	}

	if s.config.Metrics != nil {
		return s.config.Metrics.ObserveConnection("client", run)
	}
	return run()
}

// dialBackend dials the backend, optionally through the circuit breaker,
// and records dial metrics.
func (s *Server) dialBackend() (net.Conn, error) {
	start := time.Now()
	var conn net.Conn

	dial := func() error {
		c, err := net.Dial("tcp", s.config.TargetAddress)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	var err error
	if s.config.Breaker != nil {
		err = s.config.Breaker.Call(dial)
	} else {
		err = dial()
	}

	if s.config.Metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
			s.config.Metrics.BackendErrors.WithLabelValues(s.config.TargetAddress, "dial").Inc()
		}
		s.config.Metrics.BackendRequestsTotal.WithLabelValues(s.config.TargetAddress, status).Inc()
		s.config.Metrics.BackendDuration.WithLabelValues(s.config.TargetAddress).Observe(time.Since(start).Seconds())
	}
	return conn, err
}

// inspectFunc feeds a delivery of bytes to a filter for one direction. It
// is nil-safe: a nil filter means "no inspection configured," not an error.
type inspectFunc func(f *filter.Filter, segs [][]byte) (bool, error)

func inspectClient(f *filter.Filter, segs [][]byte) (bool, error) {
	if f == nil {
		return true, nil
	}
	return f.OnClientBytes(segs)
}

func inspectServer(f *filter.Filter, segs [][]byte) (bool, error) {
	if f == nil {
		return true, nil
	}
	return f.OnServerBytes(segs)
}

// stream copies whatever-sized chunk the OS delivers from r to w, feeding
// each delivery to inspect before forwarding the same bytes, unmodified, to
// w. This filter never rewrites packet contents — only observes them.
func (s *Server) stream(ctx context.Context, r, w net.Conn, f *filter.Filter, inspect inspectFunc) error {
	buf := make([]byte, bufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, inspectErr := inspect(f, [][]byte{buf[:n]}); inspectErr != nil {
				s.config.Logger.Warn("filter inspection error", slog.String("error", inspectErr.Error()))
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}
