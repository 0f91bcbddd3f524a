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

package remainder_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theojepsen/nuevomatch/pkg/remainder"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

func sampleRules() []*rule.Rule {
	return []*rule.Rule{
		{Priority: 5, Action: 1, Fields: []rule.FieldRange{{Lo: 0, Hi: 100}, {Lo: 0, Hi: math.MaxUint32}}},
		{Priority: 3, Action: 2, Fields: []rule.FieldRange{{Lo: 50, Hi: 150}, {Lo: 0, Hi: math.MaxUint32}}},
		{Priority: 9, Action: 3, Fields: []rule.FieldRange{{Lo: 0, Hi: math.MaxUint32}, {Lo: 0, Hi: math.MaxUint32}}},
	}
}

func oracle(rules []*rule.Rule, h rule.Header) rule.Output {
	best := rule.NoMatch
	for _, r := range rules {
		if uint32(r.Priority) >= uint32(best.Priority) {
			continue
		}
		if r.Matches(h) {
			best = rule.Output{Priority: int32(r.Priority), Action: int32(r.Action)}
		}
	}
	return best
}

func TestNewUnknownTag(t *testing.T) {
	_, err := remainder.New("not-a-real-tag")
	assert.Error(t, err)
}

func testClassifierAgreesWithOracle(t *testing.T, tag string) {
	t.Helper()
	rules := sampleRules()
	c, err := remainder.New(tag)
	require.NoError(t, err)
	require.NoError(t, c.Build(rules))
	assert.Equal(t, tag, c.Tag())
	assert.Equal(t, len(rules), c.Size())

	rng := rand.New(rand.NewSource(1))
	headers := make([]rule.Header, 256)
	for i := range headers {
		headers[i] = rule.Header{uint32(rng.Intn(300)), uint32(rng.Intn(10))}
	}
	output := make([]rule.Output, len(headers))
	for i := range output {
		output[i] = rule.NoMatch
	}
	c.Classify(headers, output)

	for i, h := range headers {
		assert.Equal(t, oracle(rules, h), output[i], "header %v", h)
	}
}

func TestCutSplitAgreesWithOracle(t *testing.T) {
	testClassifierAgreesWithOracle(t, "cutsplit")
}

func TestTupleMergeAgreesWithOracle(t *testing.T) {
	testClassifierAgreesWithOracle(t, "tuplemerge")
}

func testPackLoadRoundTrip(t *testing.T, tag string) {
	t.Helper()
	rules := sampleRules()
	c, err := remainder.New(tag)
	require.NoError(t, err)
	require.NoError(t, c.Build(rules))
	data := c.Pack()

	loaded, err := remainder.New(tag)
	require.NoError(t, err)
	require.NoError(t, loaded.Load(data))
	assert.Equal(t, c.Size(), loaded.Size())

	h := rule.Header{75, 0}
	out := []rule.Output{rule.NoMatch}
	loadedOut := []rule.Output{rule.NoMatch}
	c.Classify([]rule.Header{h}, out)
	loaded.Classify([]rule.Header{h}, loadedOut)
	assert.Equal(t, out, loadedOut)
}

func TestCutSplitPackLoadRoundTrip(t *testing.T) {
	testPackLoadRoundTrip(t, "cutsplit")
}

func TestTupleMergePackLoadRoundTrip(t *testing.T) {
	testPackLoadRoundTrip(t, "tuplemerge")
}

func TestClassifyNeverOverridesAStrictlyBetterExistingMatch(t *testing.T) {
	rules := sampleRules()
	c, err := remainder.New("cutsplit")
	require.NoError(t, err)
	require.NoError(t, c.Build(rules))

	h := rule.Header{75, 0}
	out := []rule.Output{{Priority: 0, Action: 42}} // priority 0 beats everything
	c.Classify([]rule.Header{h}, out)
	assert.Equal(t, rule.Output{Priority: 0, Action: 42}, out[0])
}

func TestEmptyRuleSetNeverMatches(t *testing.T) {
	for _, tag := range []string{"cutsplit", "tuplemerge"} {
		c, err := remainder.New(tag)
		require.NoError(t, err)
		require.NoError(t, c.Build(nil))
		out := []rule.Output{rule.NoMatch}
		c.Classify([]rule.Header{{1, 2, 3}}, out)
		assert.Equal(t, rule.NoMatch, out[0])
	}
}
