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

// Package rqrmi evaluates a Recursive (Quasi-)Model Index: a two-stage
// hierarchy of piecewise-linear models that predicts the position of a key
// within a sorted array, along with a bounded maximum error for that
// prediction. It is pure and allocation-free on the hot path; it never
// trains or mutates a model, only evaluates one that was built offline.
package rqrmi

import (
	"math"

	"github.com/theojepsen/nuevomatch/pkg/objstream"
	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
)

// Linear is a one-dimensional linear model y = Slope*x + Bias.
type Linear struct {
	Slope float64
	Bias  float64
}

func (l Linear) eval(x float64) float64 {
	return clamp01(l.Slope*x + l.Bias)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Leaf is one second-stage model plus the validity window and error bound
// that apply to inputs it claims.
type Leaf struct {
	Model    Linear
	InputMin float64
	InputMax float64
	MaxError uint32
}

func (l Leaf) valid(x float64) bool {
	return x >= l.InputMin && x <= l.InputMax
}

// Model is the full two-stage hierarchy: a single root model that picks a
// leaf, and the leaves that each cover a sub-range of the normalised input
// domain.
type Model struct {
	Root   Linear
	Leaves []Leaf
}

// Info is the result of evaluating the model for one key. X is the original
// (un-normalised) key, Y is the predicted normalised position in [0,1], Err
// is the leaf's maximum error bound in index slots, and Valid reports
// whether X fell inside the leaf's declared validity window.
type Info struct {
	X     uint32
	Y     float64
	Err   uint32
	Valid bool
}

// Evaluate runs the two-stage model on one raw key. The key is normalised to
// [0,1] by dividing by math.MaxUint32 before being fed to the root and leaf
// linear models, per the RQRMI evaluation contract.
func (m *Model) Evaluate(key uint32) Info {
	x := float64(key) / float64(math.MaxUint32)
	y0 := m.Root.eval(x)
	k := int(math.Floor(y0 * float64(len(m.Leaves))))
	if k < 0 {
		k = 0
	}
	if k >= len(m.Leaves) {
		k = len(m.Leaves) - 1
	}
	leaf := m.Leaves[k]
	y := leaf.Model.eval(x)
	return Info{
		X:     key,
		Y:     y,
		Err:   leaf.MaxError,
		Valid: leaf.valid(x),
	}
}

// EvaluateBatch evaluates the model for every key in keys, writing results
// into out (which must have at least len(keys) capacity) to avoid
// allocating on the hot path. It returns the (possibly grown) out slice.
func (m *Model) EvaluateBatch(keys []uint32, out []Info) []Info {
	if cap(out) < len(keys) {
		out = make([]Info, len(keys))
	} else {
		out = out[:len(keys)]
	}
	for i, k := range keys {
		out[i] = m.Evaluate(k)
	}
	return out
}

// Pack serializes the model: K, root weights, then K leaves (slope, bias,
// input min, input max, max error).
func (m *Model) Pack() []byte {
	w := objstream.NewWriter()
	w.PutUint32(uint32(len(m.Leaves)))
	w.PutFloat64(m.Root.Slope)
	w.PutFloat64(m.Root.Bias)
	for _, l := range m.Leaves {
		w.PutFloat64(l.Model.Slope)
		w.PutFloat64(l.Model.Bias)
		w.PutFloat64(l.InputMin)
		w.PutFloat64(l.InputMax)
		w.PutUint32(l.MaxError)
	}
	return w.Bytes()
}

// Load parses a Model previously produced by Pack.
func Load(r *objstream.Reader) (*Model, error) {
	k, err := r.Uint32()
	if err != nil {
		return nil, serrors.WrapStr("reading leaf count", err)
	}
	rootSlope, err := r.Float64()
	if err != nil {
		return nil, serrors.WrapStr("reading root slope", err)
	}
	rootBias, err := r.Float64()
	if err != nil {
		return nil, serrors.WrapStr("reading root bias", err)
	}
	if k == 0 {
		return nil, serrors.New("RQRMI model has zero leaves")
	}
	leaves := make([]Leaf, k)
	for i := range leaves {
		slope, err := r.Float64()
		if err != nil {
			return nil, serrors.WrapStr("reading leaf slope", err, "leaf", i)
		}
		bias, err := r.Float64()
		if err != nil {
			return nil, serrors.WrapStr("reading leaf bias", err, "leaf", i)
		}
		lo, err := r.Float64()
		if err != nil {
			return nil, serrors.WrapStr("reading leaf input min", err, "leaf", i)
		}
		hi, err := r.Float64()
		if err != nil {
			return nil, serrors.WrapStr("reading leaf input max", err, "leaf", i)
		}
		maxErr, err := r.Uint32()
		if err != nil {
			return nil, serrors.WrapStr("reading leaf max error", err, "leaf", i)
		}
		leaves[i] = Leaf{Model: Linear{Slope: slope, Bias: bias}, InputMin: lo, InputMax: hi, MaxError: maxErr}
	}
	return &Model{Root: Linear{Slope: rootSlope, Bias: rootBias}, Leaves: leaves}, nil
}
