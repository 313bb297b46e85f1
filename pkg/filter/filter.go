// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"log/slog"
	"strconv"

	"github.com/clickhouse-wire/chproxy/pkg/handshake"
	"github.com/clickhouse-wire/chproxy/pkg/metrics"
	"github.com/clickhouse-wire/chproxy/pkg/policy"
	"github.com/clickhouse-wire/chproxy/pkg/state"
	"github.com/clickhouse-wire/chproxy/pkg/wire"
)

// ErrBlockedUser is the error handed to Handler.OnProtocolError when
// checkPolicy finds the decoded user on the policy blocklist.
var ErrBlockedUser = &blockedUserError{}

type blockedUserError struct{}

func (*blockedUserError) Error() string { return "filter: user is blocked by policy" }

// Config configures a new Filter.
type Config struct {
	SessionID  string
	RemoteAddr string
	Handler    Handler
	Blocklist  *policy.Blocklist
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Filter is the per-connection object the host runtime calls, per spec.md
// §4.6 and §6. It owns both direction machines, both chunk framers, the
// shared protocol state, and the two hand-off flags, and never rewrites or
// reorders the bytes it observes.
type Filter struct {
	sessionID  string
	remoteAddr string
	handler    Handler
	blocklist  *policy.Blocklist
	metrics    *metrics.Metrics
	log        *slog.Logger

	state *state.Protocol

	clientMachine *handshake.ClientMachine
	serverMachine *handshake.ServerMachine

	clientFramer *handshake.ChunkFramer
	serverFramer *handshake.ChunkFramer

	clientHandoff bool
	serverHandoff bool

	clientFramingActive bool
	serverFramingActive bool

	helloEmitted bool
	blocked      bool
}

// New returns a Filter ready to observe a fresh connection.
func New(cfg Config) *Filter {
	if cfg.Handler == nil {
		cfg.Handler = NoopHandler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &Filter{
		sessionID:  cfg.SessionID,
		remoteAddr: cfg.RemoteAddr,
		handler:    cfg.Handler,
		blocklist:  cfg.Blocklist,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
		state:      state.New(),
	}
	f.clientMachine = handshake.NewClientMachine(f.state)
	f.serverMachine = handshake.NewServerMachine(f.state)
	f.clientFramer = handshake.NewChunkFramer(f.onClientPacketType)
	f.serverFramer = handshake.NewChunkFramer(f.onServerPacketType)
	return f
}

// OnNewConnection inspects no bytes and always returns Continue. When
// metrics are configured it counts one handshake start per direction.
func (f *Filter) OnNewConnection() (bool, error) {
	if f.metrics != nil {
		f.metrics.HandshakesStarted.WithLabelValues(string(DirectionClient)).Inc()
		f.metrics.HandshakesStarted.WithLabelValues(string(DirectionServer)).Inc()
	}
	return true, nil
}

func (f *Filter) onClientPacketType(pt uint64) {
	if f.metrics != nil {
		f.metrics.ChunkedPacketsTotal.WithLabelValues(string(DirectionClient), packetTypeLabel(pt)).Inc()
	}
}

func (f *Filter) onServerPacketType(pt uint64) {
	if f.metrics != nil {
		f.metrics.ChunkedPacketsTotal.WithLabelValues(string(DirectionServer), packetTypeLabel(pt)).Inc()
	}
}

func packetTypeLabel(pt uint64) string {
	return strconv.FormatUint(pt, 10)
}

// OnClientBytes feeds a delivery of client->server bytes to the filter.
// segs mirrors the host's scatter-gather buffer representation: an ordered
// list of contiguous slices making up one delivery. The returned bool is
// always true (Continue) — this filter never asks the host to stop reading.
func (f *Filter) OnClientBytes(segs [][]byte) (bool, error) {
	if f.clientHandoff {
		return true, nil
	}

	cur := wire.NewCursor(segs)

	if f.clientFramingActive {
		f.clientFramer.Feed(cur)
		return true, nil
	}

	if !f.clientMachine.Feed(cur) {
		return true, nil
	}

	if err := f.clientMachine.Err(); err != nil {
		f.handOffClient("protocol_error")
		f.notifyProtocolError(DirectionClient, err)
		return true, nil
	}

	f.checkPolicy()
	if f.blocked {
		f.handOffClient("blocked")
		return true, nil
	}

	f.maybeEmitHello()

	if f.state.ChunkedClient() {
		f.clientFramingActive = true
		if cur.Remaining() > 0 {
			f.clientFramer.Feed(cur)
		}
	} else {
		f.handOffClient("done")
	}
	return true, nil
}

// OnServerBytes feeds a delivery of server->client bytes to the filter.
func (f *Filter) OnServerBytes(segs [][]byte) (bool, error) {
	if f.serverHandoff {
		return true, nil
	}
	if f.blocked {
		f.handOffServer("blocked")
		return true, nil
	}

	cur := wire.NewCursor(segs)

	if f.serverFramingActive {
		f.serverFramer.Feed(cur)
		return true, nil
	}

	if !f.serverMachine.Feed(cur) {
		return true, nil
	}

	if err := f.serverMachine.Err(); err != nil {
		f.handOffServer("protocol_error")
		f.notifyProtocolError(DirectionServer, err)
		return true, nil
	}

	f.maybeEmitHello()

	if f.state.ChunkedServer() {
		f.serverFramingActive = true
		if cur.Remaining() > 0 {
			f.serverFramer.Feed(cur)
		}
	} else {
		f.handOffServer("done")
	}
	return true, nil
}

func (f *Filter) handOffClient(reason string) {
	f.clientHandoff = true
	f.log.Info("handshake: client direction handed off", "session_id", f.sessionID, "remote_addr", f.remoteAddr, "reason", reason)
	if f.metrics != nil {
		f.metrics.HandoffsTotal.WithLabelValues(string(DirectionClient), reason).Inc()
	}
}

func (f *Filter) handOffServer(reason string) {
	f.serverHandoff = true
	f.log.Info("handshake: server direction handed off", "session_id", f.sessionID, "remote_addr", f.remoteAddr, "reason", reason)
	if f.metrics != nil {
		f.metrics.HandoffsTotal.WithLabelValues(string(DirectionServer), reason).Inc()
	}
}

func (f *Filter) notifyProtocolError(dir Direction, err error) {
	kind := "unexpected_packet"
	if err == handshake.ErrMalformedVarUint {
		kind = "malformed_varuint"
	}
	f.log.Warn("handshake: protocol error", "session_id", f.sessionID, "remote_addr", f.remoteAddr, "direction", dir, "kind", kind)
	if f.metrics != nil {
		f.metrics.ProtocolErrorsTotal.WithLabelValues(string(dir), kind).Inc()
	}
	if err := f.handler.OnProtocolError(dir, err); err != nil {
		f.log.Warn("handshake: OnProtocolError hook returned an error", "session_id", f.sessionID, "err", err)
	}
}

// checkPolicy runs once the client Hello has been decoded — the earliest
// point at which the user field is known — and marks the connection blocked
// if the policy blocklist matches. Checking here, rather than waiting for
// both directions' Hello packets, matters: for an old-protocol, non-chunked
// handshake the client direction would otherwise already have handed off
// (for reason "done") before a block decision made on both-sides-complete
// information could ever take effect.
func (f *Filter) checkPolicy() {
	if f.blocked || f.blocklist == nil {
		return
	}
	user := f.clientMachine.Hello().User()
	blocked, reason := f.blocklist.Contains(user)
	if !blocked {
		return
	}
	f.blocked = true
	f.log.Info("handshake: blocked user", "session_id", f.sessionID, "remote_addr", f.remoteAddr, "user", user, "reason", reason)
	if f.metrics != nil {
		f.metrics.BlockedConnections.WithLabelValues().Inc()
	}
	if err := f.handler.OnProtocolError(DirectionClient, ErrBlockedUser); err != nil {
		f.log.Warn("handshake: OnProtocolError hook returned an error", "session_id", f.sessionID, "err", err)
	}
}

// maybeEmitHello fires Handler.OnHello exactly once, as soon as both
// direction machines have reached Done successfully. It does nothing for a
// connection already marked blocked by checkPolicy.
func (f *Filter) maybeEmitHello() {
	if f.helloEmitted || f.blocked {
		return
	}
	if !f.clientMachine.Done() || !f.serverMachine.Done() {
		return
	}
	if f.clientMachine.Err() != nil || f.serverMachine.Err() != nil {
		return
	}
	f.helloEmitted = true

	hello := f.clientMachine.Hello()
	serverHello := f.serverMachine.Hello()

	info := HelloInfo{
		ClientName:         hello.ClientName(),
		ClientVersionMajor: hello.VersionMajor(),
		ClientVersionMinor: hello.VersionMinor(),
		DefaultDB:          hello.DefaultDB(),
		User:               hello.User(),
		IsSSHBasedAuth:     f.state.IsSSHBasedAuth(),
		TCPProtocolVersion: f.state.TCPProtocolVersion(),
		ChunkedClient:      f.state.ChunkedClient(),
		ChunkedServer:      f.state.ChunkedServer(),
	}
	if serverHello != nil {
		info.ServerVersionName = serverHello.VersionName()
		info.ServerVersionMajor = serverHello.VersionMajor()
		info.ServerVersionMinor = serverHello.VersionMinor()
		info.ServerDisplayName = serverHello.ServerDisplayName()
		info.TimeZone = serverHello.TimeZone()
	}

	if f.metrics != nil {
		f.metrics.HandshakesCompleted.WithLabelValues(string(DirectionClient)).Inc()
		f.metrics.HandshakesCompleted.WithLabelValues(string(DirectionServer)).Inc()
		f.metrics.ProtocolVersion.WithLabelValues().Observe(float64(info.TCPProtocolVersion))
	}

	f.log.Info("handshake: decoded", "session_id", f.sessionID, "remote_addr", f.remoteAddr,
		"user", info.User, "tcp_protocol_version", info.TCPProtocolVersion,
		"chunked_client", info.ChunkedClient, "chunked_server", info.ChunkedServer)
	if err := f.handler.OnHello(info); err != nil {
		f.log.Warn("handshake: OnHello hook returned an error", "session_id", f.sessionID, "err", err)
	}
}
