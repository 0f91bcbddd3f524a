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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theojepsen/nuevomatch/pkg/remainder"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

func TestGroupSubsetsToCoresBalancesBySize(t *testing.T) {
	big := subset{kind: subsetIset, iset: buildTestIset(t, 0, 64)}
	small := subset{kind: subsetIset, iset: buildTestIset(t, 0, 2)}

	core0 := groupSubsetsToCores([]subset{big, small}, 2)
	// The two subsets have different sizes; greedy assignment puts each on
	// its own core, and core 0 gets whichever was placed first (the larger,
	// since sorting is descending by size).
	require.Len(t, core0, 1)
	assert.Equal(t, big.iset, core0[0].iset)
}

func TestGroupSubsetsToCoresSingleCoreGetsEverything(t *testing.T) {
	a := subset{kind: subsetIset, iset: buildTestIset(t, 0, 4)}
	b := subset{kind: subsetIset, iset: buildTestIset(t, 1, 4)}
	core0 := groupSubsetsToCores([]subset{a, b}, 1)
	assert.Len(t, core0, 2)
}

func TestSubsetSizeBytesRemainderUsesRuleCount(t *testing.T) {
	c, err := remainder.New("cutsplit")
	require.NoError(t, err)
	require.NoError(t, c.Build([]*rule.Rule{
		{Priority: 0, Action: 1, Fields: []rule.FieldRange{{Lo: 0, Hi: 5}}},
		{Priority: 1, Action: 2, Fields: []rule.FieldRange{{Lo: 5, Hi: 10}}},
	}))
	s := subset{kind: subsetRemainder, remainder: c}
	assert.Equal(t, 2, s.sizeBytes())
}

func TestSubsetSizeBytesIsetUsesPackedLength(t *testing.T) {
	is := buildTestIset(t, 0, 8)
	s := subset{kind: subsetIset, iset: is}
	assert.Greater(t, s.sizeBytes(), 0)
}
