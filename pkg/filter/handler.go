// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package filter implements the filter façade of spec.md §4.6: the object
// the host runtime calls with every delivery of client or server bytes. It
// owns the two handshake direction machines, the two chunk framers, the two
// hand-off flags, and the shared protocol state, and dispatches each
// incoming buffer to whichever of those is currently responsible for this
// direction.
package filter


// Direction identifies which side of the connection a notification concerns.
type Direction string

const (
	DirectionClient Direction = "client"
	DirectionServer Direction = "server"
)

// HelloInfo carries the fields decoded from both directions' Hello packets,
// handed to Handler.OnHello once both sides have completed their handshake
// without a protocol error.
type HelloInfo struct {
	ClientName         string
	ClientVersionMajor uint64
	ClientVersionMinor uint64
	DefaultDB          string
	User               string
	IsSSHBasedAuth     bool

	ServerVersionName  string
	ServerVersionMajor uint64
	ServerVersionMinor uint64
	ServerDisplayName  string
	TimeZone           string

	TCPProtocolVersion uint64
	ChunkedClient      bool
	ChunkedServer      bool
}

// Handler receives the two notification events this filter produces. It
// plays the role the teacher's pkg/handler.Handler plays for MQTT/HTTP/CoAP
// publish-subscribe events, collapsed down to this domain's two events: this
// filter authorizes nothing and has no topics or payloads to rewrite, only a
// handshake to observe.
type Handler interface {
	// OnHello is called once both directions' Hello packets have been
	// decoded without a protocol error; it is not called for a blocked
	// user. It is a notification hook: its error return is logged but does
	// not affect the connection.
	OnHello(info HelloInfo) error

	// OnProtocolError is called when a direction hands off due to a
	// protocol error (handshake.ErrUnexpectedPacket or
	// handshake.ErrMalformedVarUint). It is a notification hook.
	OnProtocolError(dir Direction, err error) error
}

// NoopHandler implements Handler by doing nothing. Useful for a proxy run
// with no policy or audit logging attached.
type NoopHandler struct{}

var _ Handler = NoopHandler{}

func (NoopHandler) OnHello(HelloInfo) error                 { return nil }
func (NoopHandler) OnProtocolError(Direction, error) error { return nil }
