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

package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theojepsen/nuevomatch/pkg/iset"
	"github.com/theojepsen/nuevomatch/pkg/rqrmi"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// identityModel returns a single-leaf RQRMI model whose leaf predicts
// y = x (the normalised key itself) across the whole domain with a
// generously wide error bound, so the bounded search always converges
// regardless of how the keys are actually distributed.
func identityModel(maxError uint32) *rqrmi.Model {
	return &rqrmi.Model{
		Root: rqrmi.Linear{Slope: 0, Bias: 0},
		Leaves: []rqrmi.Leaf{
			{Model: rqrmi.Linear{Slope: 1, Bias: 0}, InputMin: 0, InputMax: 1, MaxError: maxError},
		},
	}
}

// buildTestIset constructs a one-field iSet over fieldIndex with S evenly
// spaced keys (and a matching single-field rule per key), indexed with an
// identity model whose error bound covers the whole key range.
func buildTestIset(t *testing.T, fieldIndex uint32, s int) *iset.Iset {
	t.Helper()
	keys := make([]uint32, s)
	rules := make([]*rule.Rule, s)
	step := uint32(math.MaxUint32) / uint32(s+1)
	for i := 0; i < s; i++ {
		k := uint32(i+1) * step
		keys[i] = k
		fields := make([]rule.FieldRange, fieldIndex+1)
		for f := range fields {
			fields[f] = rule.FieldRange{Lo: 0, Hi: math.MaxUint32}
		}
		fields[fieldIndex] = rule.FieldRange{Lo: k, Hi: k + 1}
		rules[i] = &rule.Rule{
			Priority: uint32(i),
			Action:   uint32(100 + i),
			Fields:   fields,
		}
	}
	is, err := iset.New(fieldIndex, keys, rules, identityModel(uint32(s)), 0)
	require.NoError(t, err)
	return is
}
