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

import (
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

const (
	cutSplitTag         = "cutsplit"
	cutSplitBucketLimit = 16
	cutSplitMaxDepth    = 24
)

func init() {
	Register(cutSplitTag, func() Remainder { return &CutSplit{} })
}

// cutNode is one node of the recursive value-range partition: it covers
// header[cutField] in [lo, hi) and either holds a bucket of candidate rules
// (leaf) or splits at mid into two children.
type cutNode struct {
	lo, hi   uint32
	rules    []*rule.Rule
	left     *cutNode
	right    *cutNode
}

func (n *cutNode) isLeaf() bool { return n.left == nil }

// CutSplit is a remainder classifier grounded on the CutSplit family of
// decision-tree packet classifiers: it recursively partitions the value
// range of one chosen header field, pushing each rule into every child
// range its interval overlaps, until each leaf's candidate set is small
// enough for a cheap linear scan.
type CutSplit struct {
	field uint32
	root  *cutNode
	rules []*rule.Rule
}

func (c *CutSplit) Tag() string { return cutSplitTag }

func (c *CutSplit) Size() int { return len(c.rules) }

// Build picks the header field with the most distinct interval boundaries
// among rules (the field most likely to discriminate between them) and
// recursively partitions its value range.
func (c *CutSplit) Build(rules []*rule.Rule) error {
	c.rules = rules
	if len(rules) == 0 {
		c.root = &cutNode{lo: 0, hi: math32Max}
		return nil
	}
	c.field = chooseCutField(rules)
	c.root = buildCutNode(rules, c.field, 0, math32Max, 0)
	return nil
}

const math32Max = ^uint32(0)

// chooseCutField returns the field index with the most distinct boundary
// values across rules, breaking ties toward the lowest index. Rules with
// fewer fields than the winning index are treated as wildcard on it.
func chooseCutField(rules []*rule.Rule) uint32 {
	numFields := 0
	for _, r := range rules {
		if len(r.Fields) > numFields {
			numFields = len(r.Fields)
		}
	}
	if numFields == 0 {
		return 0
	}
	bestField, bestCount := 0, -1
	for f := 0; f < numFields; f++ {
		seen := map[uint32]struct{}{}
		for _, r := range rules {
			if f >= len(r.Fields) {
				continue
			}
			seen[r.Fields[f].Lo] = struct{}{}
			seen[r.Fields[f].Hi] = struct{}{}
		}
		if len(seen) > bestCount {
			bestCount = len(seen)
			bestField = f
		}
	}
	return uint32(bestField)
}

func fieldRangeOf(r *rule.Rule, field uint32) rule.FieldRange {
	if int(field) >= len(r.Fields) {
		return rule.FieldRange{Lo: 0, Hi: math32Max}
	}
	return r.Fields[field]
}

func overlaps(a rule.FieldRange, lo, hi uint32) bool {
	return a.Lo < hi && lo < a.Hi
}

func buildCutNode(rules []*rule.Rule, field uint32, lo, hi uint32, depth int) *cutNode {
	node := &cutNode{lo: lo, hi: hi}
	if len(rules) <= cutSplitBucketLimit || depth >= cutSplitMaxDepth || lo >= hi {
		node.rules = rules
		return node
	}
	mid := lo + (hi-lo)/2
	if mid == lo {
		node.rules = rules
		return node
	}
	var leftRules, rightRules []*rule.Rule
	for _, r := range rules {
		fr := fieldRangeOf(r, field)
		if overlaps(fr, lo, mid) {
			leftRules = append(leftRules, r)
		}
		if overlaps(fr, mid, hi) {
			rightRules = append(rightRules, r)
		}
	}
	if len(leftRules) == len(rules) || len(rightRules) == len(rules) {
		// split didn't separate anything (every rule is wildcard on this
		// field); stop recursing to avoid infinite/no-progress splits.
		node.rules = rules
		return node
	}
	node.left = buildCutNode(leftRules, field, lo, mid, depth+1)
	node.right = buildCutNode(rightRules, field, mid, hi, depth+1)
	return node
}

// Classify descends the partition tree once per header, using the header's
// value on the chosen field to pick a single path, then linearly scans that
// leaf's candidate rules.
func (c *CutSplit) Classify(headers []rule.Header, output []rule.Output) {
	for i, h := range headers {
		v := headerField(h, c.field)
		node := c.root
		for node != nil && !node.isLeaf() {
			mid := node.lo + (node.hi-node.lo)/2
			if v < mid {
				node = node.left
			} else {
				node = node.right
			}
		}
		if node == nil {
			continue
		}
		output[i] = matchAgainst(node.rules, h, output[i])
	}
}

func headerField(h rule.Header, field uint32) uint32 {
	if int(field) >= len(h) {
		return 0
	}
	return h[field]
}

// Pack serializes the flat rule list; Load rebuilds the partition tree,
// since it is a deterministic function of the rule list.
func (c *CutSplit) Pack() []byte { return packRules(c.rules) }

func (c *CutSplit) Load(data []byte) error {
	rules, err := loadRules(data)
	if err != nil {
		return err
	}
	return c.Build(rules)
}
