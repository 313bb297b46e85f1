// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

import "testing"

func encodeRuleList(rules []Rule) []byte {
	buf := EncodeVarUint(nil, uint64(len(rules)))
	for _, r := range rules {
		buf = EncodeString(buf, r.OriginalPattern)
		buf = EncodeString(buf, r.ExceptionMessage)
	}
	return buf
}

func TestRuleListZeroCount(t *testing.T) {
	buf := encodeRuleList(nil)
	var rl RuleList
	cur := NewCursor([][]byte{buf})
	if !rl.Feed(cur) {
		t.Fatal("expected immediate completion for zero rules")
	}
	if len(rl.Rules()) != 0 {
		t.Fatalf("got %d rules, want 0", len(rl.Rules()))
	}
}

func TestRuleListRoundTrip(t *testing.T) {
	want := []Rule{
		{OriginalPattern: "^.{12,}$", ExceptionMessage: "too short"},
		{OriginalPattern: "[A-Z]", ExceptionMessage: "needs uppercase"},
		{OriginalPattern: "[0-9]", ExceptionMessage: "needs a digit"},
	}
	buf := encodeRuleList(want)

	var rl RuleList
	cur := NewCursor([][]byte{buf})
	if !rl.Feed(cur) {
		t.Fatal("expected completion")
	}
	got := rl.Rules()
	if len(got) != len(want) {
		t.Fatalf("got %d rules, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rule %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRuleListSplitAcrossDeliveries(t *testing.T) {
	want := []Rule{
		{OriginalPattern: "p1", ExceptionMessage: "m1"},
		{OriginalPattern: "p2", ExceptionMessage: "m2"},
	}
	buf := encodeRuleList(want)

	var rl RuleList
	for _, b := range buf {
		cur := NewCursor([][]byte{{b}})
		rl.Feed(cur)
	}
	if !rl.IsComplete() {
		t.Fatal("expected completion")
	}
	if len(rl.Rules()) != 2 {
		t.Fatalf("got %d rules, want 2", len(rl.Rules()))
	}
}
