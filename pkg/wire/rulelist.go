// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wire

// Rule is one password-complexity rule: a regular expression the password
// must match, and the message to show when it doesn't.
type Rule struct {
	OriginalPattern  string
	ExceptionMessage string
}

// RuleList decodes a VarUint count N followed by N consecutive pairs of
// Strings (original_pattern, exception_message). A count of zero completes
// immediately after the count is read.
type RuleList struct {
	count VarUint
	rules []Rule
	a, b  String // in-progress pair being filled; a=pattern, b=message
	onB   bool   // true once a has completed and b is being filled
}

var _ Reader = (*RuleList)(nil)

// IsComplete reports whether the count and all N pairs have been decoded.
func (r *RuleList) IsComplete() bool {
	return r.count.IsComplete() && len(r.rules) == int(r.count.Value())
}

// Feed decodes the count (if unknown) and then as many complete rule pairs
// as the available bytes allow.
func (r *RuleList) Feed(c *Cursor) bool {
	if !r.count.IsComplete() {
		if !r.count.Feed(c) {
			return false
		}
	}
	for len(r.rules) < int(r.count.Value()) {
		if !r.onB {
			if !r.a.Feed(c) {
				return false
			}
			r.onB = true
		}
		if !r.b.Feed(c) {
			return false
		}
		r.rules = append(r.rules, Rule{
			OriginalPattern:  r.a.Value(),
			ExceptionMessage: r.b.Value(),
		})
		r.a.Reset()
		r.b.Reset()
		r.onB = false
	}
	return true
}

// Rules returns the decoded rule list. Only meaningful once IsComplete.
func (r *RuleList) Rules() []Rule {
	return r.rules
}

// Reset returns the reader to its empty state.
func (r *RuleList) Reset() {
	r.count.Reset()
	r.rules = nil
	r.a.Reset()
	r.b.Reset()
	r.onB = false
}
