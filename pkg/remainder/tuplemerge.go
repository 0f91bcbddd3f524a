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

package remainder

import "github.com/theojepsen/nuevomatch/pkg/rule"

const tupleMergeTag = "tuplemerge"

func init() {
	Register(tupleMergeTag, func() Remainder { return &TupleMerge{} })
}

// tupleBucket groups rules that share the same wildcard mask: the set of
// fields each rule leaves fully open (Lo==0, Hi==math32Max). Rules sharing a
// mask tend to share which fields are worth comparing first.
type tupleBucket struct {
	mask  uint32
	rules []*rule.Rule
}

// TupleMerge is a remainder classifier grounded on the TupleMerge family:
// instead of partitioning by value, it buckets rules by their wildcard
// pattern across fields, so a header only needs to be checked against
// buckets whose concrete fields it could possibly satisfy.
type TupleMerge struct {
	buckets   []tupleBucket
	numFields int
	rules     []*rule.Rule
}

func (t *TupleMerge) Tag() string { return tupleMergeTag }

func (t *TupleMerge) Size() int { return len(t.rules) }

func wildcardMask(r *rule.Rule, numFields int) uint32 {
	var mask uint32
	for f := 0; f < numFields; f++ {
		fr := fieldRangeOf(r, uint32(f))
		if fr.Lo == 0 && fr.Hi == math32Max {
			mask |= 1 << uint(f)
		}
	}
	return mask
}

// Build groups rules into buckets by wildcard mask. Buckets are later
// visited in ascending order of mask popcount (fewest wildcards first), so
// that more selective buckets are checked before broader ones; this does
// not change correctness (every bucket is always scanned) but keeps the
// common case of a specific match short-circuiting before broad ones.
func (t *TupleMerge) Build(rules []*rule.Rule) error {
	t.rules = rules
	numFields := 0
	for _, r := range rules {
		if len(r.Fields) > numFields {
			numFields = len(r.Fields)
		}
	}
	t.numFields = numFields

	byMask := map[uint32][]*rule.Rule{}
	var order []uint32
	for _, r := range rules {
		mask := wildcardMask(r, numFields)
		if _, ok := byMask[mask]; !ok {
			order = append(order, mask)
		}
		byMask[mask] = append(byMask[mask], r)
	}
	buckets := make([]tupleBucket, 0, len(order))
	for _, mask := range order {
		buckets = append(buckets, tupleBucket{mask: mask, rules: byMask[mask]})
	}
	t.buckets = buckets
	return nil
}

// Classify scans every bucket, since a header may match rules with
// different wildcard masks; within each bucket it only needs matchAgainst's
// ordinary full-tuple check.
func (t *TupleMerge) Classify(headers []rule.Header, output []rule.Output) {
	for i, h := range headers {
		out := output[i]
		for _, b := range t.buckets {
			out = matchAgainst(b.rules, h, out)
		}
		output[i] = out
	}
}

func (t *TupleMerge) Pack() []byte { return packRules(t.rules) }

func (t *TupleMerge) Load(data []byte) error {
	rules, err := loadRules(data)
	if err != nil {
		return err
	}
	return t.Build(rules)
}
