// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handshake

// Version gate constants from spec.md §6, bit-exact. Each names the minimum
// tcp_protocol_version at which the corresponding field (or field group)
// first appears on the wire.
const (
	WithServerTimezone          = 54058
	WithServerDisplayName       = 54372
	WithVersionPatch            = 54401
	WithAddendum                = 54458
	WithQuotaKey                = 54458
	WithPasswordComplexityRules = 54461
	WithInterserverSecretV2     = 54462
	WithChunkedPackets          = 54470
)
