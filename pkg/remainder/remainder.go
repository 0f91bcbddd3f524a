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

// Package remainder defines the pluggable exact-match classifier interface
// that covers the rules an iSet cannot represent (e.g. wildcards on the
// iSet's indexed field), and provides two interchangeable implementations,
// CutSplit and TupleMerge. The core never relies on either implementation's
// internal algorithm; it only ever calls through the Remainder interface.
package remainder

import (
	"github.com/theojepsen/nuevomatch/pkg/objstream"
	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// Remainder is the capability set the engine consumes from an exact-match
// classifier. Implementations must be safe to call Classify concurrently
// with other read-only methods, but need not be safe for concurrent Build.
type Remainder interface {
	// Classify matches headers against the remainder's rules and, for each
	// packet whose match beats the corresponding entry in output (strictly
	// smaller unsigned priority), overwrites that entry in place.
	Classify(headers []rule.Header, output []rule.Output)

	// Build constructs the classifier's internal structure from rules.
	Build(rules []*rule.Rule) error

	// Pack serializes the classifier to bytes suitable for Load.
	Pack() []byte

	// Load replaces this classifier's state with bytes previously produced
	// by Pack (possibly by another instance of the same Tag).
	Load(data []byte) error

	// Size returns the number of rules held by this classifier.
	Size() int

	// Tag identifies which concrete implementation this is ("cutsplit" or
	// "tuplemerge"), matching the image's remainder_type configuration.
	Tag() string
}

// Factory constructs a new, empty Remainder of one concrete kind.
type Factory func() Remainder

var registry = map[string]Factory{}

// Register adds a constructor for a remainder implementation under tag.
// Called from each implementation's init().
func Register(tag string, f Factory) {
	registry[tag] = f
}

// New constructs an empty Remainder for the given tag ("cutsplit" or
// "tuplemerge"). It returns an error if the tag is not registered.
func New(tag string) (Remainder, error) {
	f, ok := registry[tag]
	if !ok {
		return nil, serrors.New("unknown remainder type", "tag", tag)
	}
	return f(), nil
}

// matchAgainst scans candidates (a subset of the full rule list) for the
// minimum-priority rule matching header, and reports whether it beats
// current. Shared by both implementations' leaf/bucket scans.
func matchAgainst(candidates []*rule.Rule, header rule.Header, current rule.Output) rule.Output {
	best := current
	for _, r := range candidates {
		if uint32(r.Priority) >= uint32(best.Priority) {
			continue
		}
		if r.Matches(header) {
			best = rule.Output{Priority: int32(r.Priority), Action: int32(r.Action)}
		}
	}
	return best
}

// packRules/loadRules are the shared wire format for a flat rule list: both
// implementations serialize their input rule list and rebuild their
// internal partitioning from scratch on Load, since the partitioning is a
// pure (and cheap) function of the rule list.
func packRules(rules []*rule.Rule) []byte {
	w := objstream.NewWriter()
	w.PutUint32(uint32(len(rules)))
	for _, r := range rules {
		w.PutUint32(r.Priority)
		w.PutUint32(r.Action)
		w.PutUint32(uint32(len(r.Fields)))
		for _, f := range r.Fields {
			w.PutUint32(f.Lo)
			w.PutUint32(f.Hi)
		}
	}
	return w.Bytes()
}

func loadRules(data []byte) ([]*rule.Rule, error) {
	r := objstream.NewReader(data)
	n, err := r.Uint32()
	if err != nil {
		return nil, serrors.WrapStr("reading rule count", err)
	}
	rules := make([]*rule.Rule, n)
	for i := range rules {
		priority, err := r.Uint32()
		if err != nil {
			return nil, serrors.WrapStr("reading rule priority", err, "rule", i)
		}
		action, err := r.Uint32()
		if err != nil {
			return nil, serrors.WrapStr("reading rule action", err, "rule", i)
		}
		numFields, err := r.Uint32()
		if err != nil {
			return nil, serrors.WrapStr("reading rule field count", err, "rule", i)
		}
		fields := make([]rule.FieldRange, numFields)
		for j := range fields {
			lo, err := r.Uint32()
			if err != nil {
				return nil, serrors.WrapStr("reading field lo", err, "rule", i, "field", j)
			}
			hi, err := r.Uint32()
			if err != nil {
				return nil, serrors.WrapStr("reading field hi", err, "rule", i, "field", j)
			}
			fields[j] = rule.FieldRange{Lo: lo, Hi: hi}
		}
		rules[i] = &rule.Rule{Priority: priority, Action: action, Fields: fields}
	}
	return rules, nil
}
