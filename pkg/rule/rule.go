// Copyright 2025 SCION Association
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rule defines the OpenFlow-style match entries that every subset
// classifier (learned-index iSet or exact remainder) ultimately reduces to,
// plus the packet header shape and classifier output shared across them.
package rule

import "sort"

// FieldRange is a half-open interval [Lo, Hi) over one u32 packet field.
type FieldRange struct {
	Lo uint32
	Hi uint32
}

// Contains reports whether v falls in the half-open interval.
func (f FieldRange) Contains(v uint32) bool {
	return v >= f.Lo && v < f.Hi
}

// Rule is one OpenFlow-style match entry. Lower Priority wins; priority 0 is
// highest. A Rule is immutable once constructed.
type Rule struct {
	Priority uint32
	Action   uint32
	Fields   []FieldRange
}

// Matches reports whether every field of header falls within the rule's
// corresponding interval.
func (r *Rule) Matches(header []uint32) bool {
	if len(header) < len(r.Fields) {
		return false
	}
	for i, f := range r.Fields {
		if !f.Contains(header[i]) {
			return false
		}
	}
	return true
}

// IsWildcard reports whether the field at idx spans the full u32 domain.
func (r *Rule) IsWildcard(idx int) bool {
	f := r.Fields[idx]
	return f.Lo == 0 && f.Hi == 0xFFFFFFFF
}

// Less orders rules by ascending priority (for sort.Slice on []*Rule / []Rule).
func Less(a, b *Rule) bool { return a.Priority < b.Priority }

// SortByPriority sorts rules ascending by priority (smaller wins first).
func SortByPriority(rules []*Rule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
}

// Header is a fixed-width packet header vector of F u32 fields
// (conventionally srcIP, dstIP, srcPort, dstPort, proto, ...).
type Header []uint32

// Output is the classifier result for one packet. The sentinel {-1, -1}
// means "no match". Priority comparison uses unsigned interpretation, so
// NoMatchPriority (-1, i.e. 0xFFFFFFFF unsigned) never beats a real rule.
type Output struct {
	Priority int32
	Action   int32
}

// NoMatch is the sentinel output for "no rule matched".
var NoMatch = Output{Priority: -1, Action: -1}

// Beats reports whether candidate has strictly higher priority (smaller
// unsigned value) than current, and so should replace it.
func Beats(candidate, current Output) bool {
	return uint32(candidate.Priority) < uint32(current.Priority)
}
