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
	"github.com/theojepsen/nuevomatch/pkg/iset"
	"github.com/theojepsen/nuevomatch/pkg/remainder"
)

// subsetKind distinguishes the two things an engine can load-balance
// across cores: a learned-index iSet, or the (singular) remainder
// classifier wrapped to present the same size-based interface.
type subsetKind int

const (
	subsetIset subsetKind = iota
	subsetRemainder
)

// subset is the size-balanced unit group_subsets_to_cores distributes: one
// iSet, or an adapter around the one remainder classifier. Exactly one
// subset of kind subsetRemainder may ever exist per engine.
type subset struct {
	kind      subsetKind
	iset      *iset.Iset
	remainder remainder.Remainder
}

// sizeBytes approximates the subset's footprint for load-balancing, the
// same quantity the reference implementation calls get_size(): for an
// iSet, its packed byte length; for the remainder, its rule count, since
// remainder implementations don't expose a byte size independent of Pack.
func (s subset) sizeBytes() int {
	switch s.kind {
	case subsetIset:
		return len(s.iset.Pack())
	case subsetRemainder:
		return s.remainder.Size()
	default:
		return 0
	}
}

// sizedSubset pairs a subset with its sizeBytes(), computed once up front
// so the sort and the greedy assignment below never re-pack an iSet to
// learn a size it already knows.
type sizedSubset struct {
	subset subset
	size   int
}

// groupSubsetsToCores load-balances subsets across numCores by greedily
// assigning each (largest-first) subset to the currently lightest core,
// and returns only the subsets assigned to core 0 — the one the serial
// engine (and the pipeline's dedicated worker) actually runs.
func groupSubsetsToCores(subsets []subset, numCores int) []subset {
	ordered := make([]sizedSubset, len(subsets))
	for i, s := range subsets {
		ordered[i] = sizedSubset{subset: s, size: s.sizeBytes()}
	}
	// Sort descending by size (simple insertion sort: subset counts are
	// small — tens of iSets plus one remainder — so O(n^2) is irrelevant).
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].size > ordered[j-1].size; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	coreSize := make([]int, numCores)
	coreAssignment := make([][]subset, numCores)
	for _, s := range ordered {
		current := 0
		for i := 1; i < numCores; i++ {
			if coreSize[i] < coreSize[current] {
				current = i
			}
		}
		coreAssignment[current] = append(coreAssignment[current], s.subset)
		coreSize[current] += s.size
	}
	return coreAssignment[0]
}
