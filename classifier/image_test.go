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

	"github.com/theojepsen/nuevomatch/pkg/objstream"
)

// buildTestImage packs numIsets iSets (each of s interval records, one per
// field) into a minimal image body: header, then one length-prefixed iSet
// sub-object per iSet. No remainder sub-object is appended; callers needing
// one append it themselves after calling this.
func buildTestImage(t *testing.T, s int, numIsets int) []byte {
	t.Helper()
	w := objstream.NewWriter()
	w.PutUint32(uint32(numIsets))
	w.PutUint32(uint32(s * numIsets))
	w.PutUint32(0) // historical packed-size field, ignored on read
	w.PutUint32(0) // build time
	for i := 0; i < numIsets; i++ {
		is := buildTestIset(t, uint32(i), s)
		w.PutSub(is.Pack())
	}
	return w.Bytes()
}

func TestReadImageHeader(t *testing.T) {
	data := buildTestImage(t, 4, 2)
	r := objstream.NewReader(data)
	hdr, err := readImageHeader(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), hdr.numIsets)
	assert.Equal(t, uint32(8), hdr.numRules)
}

func TestReadImageHeaderTruncated(t *testing.T) {
	_, err := readImageHeader(objstream.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestLoadSubsetsKeepsEverythingByDefault(t *testing.T) {
	data := buildTestImage(t, 4, 3)
	r := objstream.NewReader(data)
	hdr, err := readImageHeader(r)
	require.NoError(t, err)

	loaded, err := loadSubsets(r, hdr, Config{MaxSubsets: -1})
	require.NoError(t, err)
	require.Len(t, loaded.isets, 3)
	for _, s := range loaded.isets {
		assert.NotNil(t, s)
	}
	assert.Empty(t, loaded.remainderRules)
}

func TestLoadSubsetsFoldsFilteredIsetsIntoRemainder(t *testing.T) {
	data := buildTestImage(t, 4, 3)
	r := objstream.NewReader(data)
	hdr, err := readImageHeader(r)
	require.NoError(t, err)

	loaded, err := loadSubsets(r, hdr, Config{MaxSubsets: 1})
	require.NoError(t, err)
	require.Len(t, loaded.isets, 3)
	assert.NotNil(t, loaded.isets[0])
	assert.Nil(t, loaded.isets[1])
	assert.Nil(t, loaded.isets[2])
	assert.Len(t, loaded.remainderRules, 8) // 2 folded iSets x 4 rules each
}

func TestLoadSubsetsDisableIsetsFoldsAll(t *testing.T) {
	data := buildTestImage(t, 4, 2)
	r := objstream.NewReader(data)
	hdr, err := readImageHeader(r)
	require.NoError(t, err)

	loaded, err := loadSubsets(r, hdr, Config{MaxSubsets: -1, DisableIsets: true})
	require.NoError(t, err)
	for _, s := range loaded.isets {
		assert.Nil(t, s)
	}
	assert.Len(t, loaded.remainderRules, 8)
}

func TestLoadSubsetsArbitraryFieldsRemapsIndex(t *testing.T) {
	data := buildTestImage(t, 4, 3)
	r := objstream.NewReader(data)
	hdr, err := readImageHeader(r)
	require.NoError(t, err)

	loaded, err := loadSubsets(r, hdr, Config{MaxSubsets: -1, ArbitraryFields: []uint32{2}})
	require.NoError(t, err)
	assert.Nil(t, loaded.isets[0])
	assert.Nil(t, loaded.isets[1])
	require.NotNil(t, loaded.isets[2])
	assert.Equal(t, uint32(0), loaded.isets[2].FieldIndex())
}
