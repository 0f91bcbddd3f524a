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

// Package iset implements the Interval Set subset classifier: a single
// field-specialised learned index. An iSet owns one RQRMI model plus the
// sorted key/rule arrays the model predicts a position into; it never
// trusts the model's prediction without a bounded local search and a full
// validation against the rule it lands on.
package iset

import (
	"math"

	"github.com/theojepsen/nuevomatch/pkg/objstream"
	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
	"github.com/theojepsen/nuevomatch/pkg/rqrmi"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// Iset is one interval set: a field index, the sorted interval records for
// that field (keys and the rules they came from), and the RQRMI model
// trained to predict a rule's position from its key.
type Iset struct {
	index         uint32
	keys          []uint32
	rules         []*rule.Rule
	model         *rqrmi.Model
	expectedError float64
}

// New constructs an iSet from already-sorted parallel key/rule arrays. The
// caller is responsible for having sorted keys ascending; New does not
// re-sort (doing so would silently desynchronize keys from rules).
func New(fieldIndex uint32, keys []uint32, rules []*rule.Rule, model *rqrmi.Model, expectedError float64) (*Iset, error) {
	if len(keys) != len(rules) {
		return nil, serrors.New("iSet keys/rules length mismatch", "keys", len(keys), "rules", len(rules))
	}
	if model == nil {
		return nil, serrors.New("iSet RQRMI model is nil")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] < keys[i-1] {
			return nil, serrors.New("iSet keys are not non-decreasing", "index", i)
		}
	}
	return &Iset{index: fieldIndex, keys: keys, rules: rules, model: model, expectedError: expectedError}, nil
}

// FieldIndex returns the packet header field this iSet indexes on.
func (s *Iset) FieldIndex() uint32 { return s.index }

// Size returns the number of interval records (S) held by this iSet.
func (s *Iset) Size() int { return len(s.keys) }

// ExpectedError is the model's reported average error, kept only for
// reporting/diagnostics; it plays no role in the search itself.
func (s *Iset) ExpectedError() float64 { return s.expectedError }

// RQRMISearch evaluates the RQRMI model for one packet's indexed field.
func (s *Iset) RQRMISearch(header rule.Header) rqrmi.Info {
	return s.model.Evaluate(header[s.index])
}

// RQRMISearchBatch evaluates the RQRMI model for a batch of packets'
// indexed fields, reusing out to avoid allocation on the hot path.
func (s *Iset) RQRMISearchBatch(headers []rule.Header, out []rqrmi.Info) []rqrmi.Info {
	if cap(out) < len(headers) {
		out = make([]rqrmi.Info, len(headers))
	} else {
		out = out[:len(headers)]
	}
	for i, h := range headers {
		out[i] = s.RQRMISearch(h)
	}
	return out
}

// GetIndex returns the sorted key at position p, bounds-checked. Positions
// at or beyond Size() return math.MaxUint32 (a key that everything compares
// below), and negative positions return 0 (a key that everything compares
// above-or-equal), so that boundary comparisons in the bounded search
// terminate without an out-of-bounds read.
func (s *Iset) GetIndex(p int) uint32 {
	if p < 0 {
		return 0
	}
	if p >= len(s.keys) {
		return math.MaxUint32
	}
	return s.keys[p]
}

// DoValidation fetches the rule at position p and checks every field of
// header against its full tuple of intervals. It returns the rule's
// {priority, action} on a full match, or the NoMatch sentinel otherwise. An
// out-of-range p is treated as a non-match rather than a panic, since the
// model may predict a position beyond an error-widened window.
func (s *Iset) DoValidation(header rule.Header, p int) rule.Output {
	if p < 0 || p >= len(s.rules) {
		return rule.NoMatch
	}
	r := s.rules[p]
	if !r.Matches(header) {
		return rule.NoMatch
	}
	return rule.Output{Priority: int32(r.Priority), Action: int32(r.Action)}
}

// RemapFieldIndex rewrites which header position this iSet reads from. Used
// by the engine's arbitrary_fields filter: when only a subset of fields is
// kept, the surviving iSets must index into the caller's reduced-width
// header rather than the original image's full field list.
func (s *Iset) RemapFieldIndex(newIndex uint32) { s.index = newIndex }

// ExtractRules returns the rules held by this iSet, e.g. to route them into
// the remainder classifier when the iSet is filtered out or disabled.
func (s *Iset) ExtractRules() []*rule.Rule {
	out := make([]*rule.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Pack serializes this iSet: field index, S, keys, rules, RQRMI model.
func (s *Iset) Pack() []byte {
	w := objstream.NewWriter()
	w.PutUint32(s.index)
	w.PutUint32(uint32(len(s.keys)))
	w.PutUint32Slice(s.keys)
	for _, r := range s.rules {
		w.PutUint32(r.Priority)
		w.PutUint32(r.Action)
		w.PutUint32(uint32(len(r.Fields)))
		for _, f := range r.Fields {
			w.PutUint32(f.Lo)
			w.PutUint32(f.Hi)
		}
	}
	w.PutSub(s.model.Pack())
	return w.Bytes()
}

// Load parses an iSet previously produced by Pack.
func Load(r *objstream.Reader) (*Iset, error) {
	fieldIndex, err := r.Uint32()
	if err != nil {
		return nil, serrors.WrapStr("reading field index", err)
	}
	size, err := r.Uint32()
	if err != nil {
		return nil, serrors.WrapStr("reading iSet size", err)
	}
	keys, err := r.Uint32Slice(int(size))
	if err != nil {
		return nil, serrors.WrapStr("reading iSet keys", err)
	}
	rules := make([]*rule.Rule, size)
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
				return nil, serrors.WrapStr("reading rule field lo", err, "rule", i, "field", j)
			}
			hi, err := r.Uint32()
			if err != nil {
				return nil, serrors.WrapStr("reading rule field hi", err, "rule", i, "field", j)
			}
			fields[j] = rule.FieldRange{Lo: lo, Hi: hi}
		}
		rules[i] = &rule.Rule{Priority: priority, Action: action, Fields: fields}
	}
	modelReader, err := r.SubReader()
	if err != nil {
		return nil, serrors.WrapStr("reading RQRMI sub-object", err)
	}
	model, err := rqrmi.Load(modelReader)
	if err != nil {
		return nil, serrors.WrapStr("loading RQRMI model", err)
	}
	return New(fieldIndex, keys, rules, model, 0)
}
