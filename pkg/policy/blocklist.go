// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package policy decides which decoded handshakes a proxy operator does not
// want to reach the backend. spec.md's filter declares its purpose as
// "observability and policy" without ever defining what policy means
// operationally; this implements the simplest useful shape — a blocklist
// keyed by the ClickHouse user field.
package policy

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Blocklist provides fast username lookup with probabilistic membership
// testing, backed by an exact set to eliminate the bloom filter's false
// positives.
type Blocklist struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]string // username -> block reason
}

// NewBlocklist creates a bloom filter sized for expectedElements entries at
// the given false-positive rate (typically 0.01).
func NewBlocklist(expectedElements uint, falsePositiveRate float64) *Blocklist {
	if expectedElements == 0 {
		expectedElements = 1000
	}
	return &Blocklist{
		filter: bloom.NewWithEstimates(expectedElements, falsePositiveRate),
		exact:  make(map[string]string),
	}
}

// Add inserts username into the blocklist with the given reason.
func (b *Blocklist) Add(username, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.filter.AddString(username)
	b.exact[username] = reason
}

// Remove drops username from the blocklist. The bloom filter itself cannot
// remove an element, so Contains still probes it, but the exact-set check
// that follows a bloom hit will correctly report false.
func (b *Blocklist) Remove(username string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.exact, username)
}

// Contains reports whether username is blocked. A negative bloom-filter
// result is conclusive; a positive result is confirmed against the exact
// set to eliminate false positives.
func (b *Blocklist) Contains(username string) (blocked bool, reason string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.filter.TestString(username) {
		return false, ""
	}
	reason, blocked = b.exact[username]
	return blocked, reason
}

// Reload replaces the blocklist contents wholesale, e.g. after reading a
// fresh set of blocked usernames from storage.
func (b *Blocklist) Reload(entries map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expected := uint(len(entries))
	if expected == 0 {
		expected = 1000
	}
	b.filter = bloom.NewWithEstimates(expected, 0.01)
	b.exact = make(map[string]string, len(entries))
	for username, reason := range entries {
		b.filter.AddString(username)
		b.exact[username] = reason
	}
}

// Count returns the number of blocked usernames.
func (b *Blocklist) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.exact)
}
