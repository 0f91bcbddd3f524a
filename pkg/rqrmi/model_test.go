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

package rqrmi_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theojepsen/nuevomatch/pkg/objstream"
	"github.com/theojepsen/nuevomatch/pkg/rqrmi"
)

func identityModel() *rqrmi.Model {
	return &rqrmi.Model{
		Root: rqrmi.Linear{Slope: 1, Bias: 0},
		Leaves: []rqrmi.Leaf{
			{Model: rqrmi.Linear{Slope: 1, Bias: 0}, InputMin: 0, InputMax: 0.5, MaxError: 4},
			{Model: rqrmi.Linear{Slope: 1, Bias: 0}, InputMin: 0.5, InputMax: 1, MaxError: 4},
		},
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	m := identityModel()

	zero := m.Evaluate(0)
	assert.InDelta(t, 0, zero.Y, 1e-9)
	assert.True(t, zero.Valid)

	max := m.Evaluate(math.MaxUint32)
	assert.InDelta(t, 1, max.Y, 1e-9)
	assert.True(t, max.Valid)
}

func TestEvaluateClampsToZeroOneRange(t *testing.T) {
	m := &rqrmi.Model{
		Root: rqrmi.Linear{Slope: 10, Bias: 10}, // always saturates to 1
		Leaves: []rqrmi.Leaf{
			{Model: rqrmi.Linear{Slope: -10, Bias: -10}, InputMin: 0, InputMax: 1, MaxError: 1},
		},
	}
	info := m.Evaluate(12345)
	assert.GreaterOrEqual(t, info.Y, 0.0)
	assert.LessOrEqual(t, info.Y, 1.0)
}

func TestEvaluateBatchAvoidsReallocatingWhenCapacitySuffices(t *testing.T) {
	m := identityModel()
	keys := []uint32{0, 1000, 2000}
	buf := make([]rqrmi.Info, 0, 8)
	out := m.EvaluateBatch(keys, buf)
	require.Len(t, out, 3)
	assert.Equal(t, keys[0], out[0].X)
	assert.Equal(t, keys[2], out[2].X)
}

func TestLeafOutsideValidityWindowIsFlaggedInvalid(t *testing.T) {
	m := &rqrmi.Model{
		Root: rqrmi.Linear{Slope: 0, Bias: 0}, // always selects leaf 0
		Leaves: []rqrmi.Leaf{
			{Model: rqrmi.Linear{Slope: 1, Bias: 0}, InputMin: 0.9, InputMax: 1.0, MaxError: 2},
		},
	}
	info := m.Evaluate(0) // x = 0, outside [0.9, 1.0]
	assert.False(t, info.Valid)
}

func TestPackLoadRoundTrip(t *testing.T) {
	m := identityModel()
	data := m.Pack()
	loaded, err := rqrmi.Load(objstream.NewReader(data))
	require.NoError(t, err)
	require.Len(t, loaded.Leaves, len(m.Leaves))
	for i := range m.Leaves {
		assert.Equal(t, m.Leaves[i], loaded.Leaves[i])
	}
	assert.Equal(t, m.Root, loaded.Root)
}

func TestLoadRejectsZeroLeaves(t *testing.T) {
	w := objstream.NewWriter()
	w.PutUint32(0)
	w.PutFloat64(0)
	w.PutFloat64(0)
	_, err := rqrmi.Load(objstream.NewReader(w.Bytes()))
	assert.Error(t, err)
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	_, err := rqrmi.Load(objstream.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}
