// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

// Reader is the common shape of every resumable decoder in this package.
// A Reader is created zero-valued (empty), fed across one or more
// deliveries via Feed, reaches IsComplete() == true exactly once, and is
// then either left immutable or Reset for reuse.
//
// Feed must never be called again with the same bytes twice; resumption
// works only by delivering the next unseen bytes of the stream.
type Reader interface {
	// Feed consumes as many bytes as needed (and available) from c to make
	// progress, and reports whether the reader is now complete.
	Feed(c *Cursor) bool

	// IsComplete reports whether the reader has consumed its full value.
	// Monotonic: once true, it stays true until Reset.
	IsComplete() bool

	// Reset returns the reader to its empty state so it can be reused.
	Reset()
}
