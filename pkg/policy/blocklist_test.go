// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlocklistAddAndContains(t *testing.T) {
	b := NewBlocklist(100, 0.01)
	b.Add("evil_user", "manual block")

	blocked, reason := b.Contains("evil_user")
	require.True(t, blocked)
	require.Equal(t, "manual block", reason)

	blocked, _ = b.Contains("someone_else")
	require.False(t, blocked, "expected an unblocked user to report false")
}

func TestBlocklistRemove(t *testing.T) {
	b := NewBlocklist(100, 0.01)
	b.Add("u", "r")
	b.Remove("u")

	blocked, _ := b.Contains("u")
	require.False(t, blocked, "expected Contains() == false after Remove")
}

func TestBlocklistReload(t *testing.T) {
	b := NewBlocklist(100, 0.01)
	b.Add("stale", "old reason")

	b.Reload(map[string]string{"fresh": "new reason"})

	blocked, _ := b.Contains("stale")
	require.False(t, blocked, "expected Reload to drop entries not present in the new set")

	blocked, reason := b.Contains("fresh")
	require.True(t, blocked)
	require.Equal(t, "new reason", reason)
	require.Equal(t, 1, b.Count())
}
