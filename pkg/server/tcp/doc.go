// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package tcp implements the TCP host for the ClickHouse wire filter.
//
// # Overview
//
// The server accepts client connections, dials the backend ClickHouse
// server, and streams bytes in both directions. Every delivery of bytes is
// fed to a per-connection filter.Filter before being forwarded, unmodified,
// to the peer — the server never waits for a complete protocol packet and
// never rewrites what it observes.
//
// # Architecture
//
//	┌─────────┐         ┌─────────┐         ┌──────────────┐
//	│ Client  │ ←─TCP─→ │ Server  │ ←─TCP─→ │ ClickHouse    │
//	└─────────┘         └─────────┘         │ backend       │
//	                         ↓               └──────────────┘
//	                    ┌─────────┐
//	                    │ Filter  │
//	                    └─────────┘
//
// # Connection Flow
//
//  1. Client connects to server
//  2. Server accepts connection
//  3. Server dials backend
//  4. Server constructs a fresh filter.Filter for the connection
//  5. Server spawns two goroutines, each reading whatever-sized chunk the
//     OS delivers, feeding it to the filter, then writing the same bytes
//     on to the peer
//  6. Both goroutines run until either side closes
//
// # Graceful Shutdown
//
// When the context is canceled:
//
//  1. Server stops accepting new connections
//  2. Server waits for existing connections (with timeout)
//  3. After ShutdownTimeout, cancels the connections' context, which each
//     stream checks between reads; connections are not closed by the server
//  4. Returns ErrShutdownTimeout if the timeout is exceeded
package tcp
