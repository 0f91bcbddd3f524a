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

// Package classifier implements the NuevoMatch learned-index packet
// classification engine: it loads a packed image of interval sets (iSets)
// and a remainder classifier, and answers per-packet classification
// queries by combining a bounded-error RQRMI lookup per iSet with a full
// validation against the rule it lands on, falling back to the remainder
// classifier for anything the iSets can't represent.
package classifier

import "github.com/theojepsen/nuevomatch/pkg/remainder"

// Config controls how an image is loaded and how classification behaves.
// It is intentionally a flat struct of independent toggles, mirroring the
// reference implementation's configuration knobs one-for-one, so that a
// deployment can reproduce any of its debugging/benchmarking modes.
type Config struct {
	// NumCores is the number of cores subsets are load-balanced across.
	// Only core 0's assignment is used by Engine (the serial variant);
	// Pipeline uses a second, dedicated worker for one additional core.
	NumCores int

	// MaxSubsets caps how many leading iSets are kept; -1 means unlimited.
	// iSets at or beyond this index have their rules folded into the
	// remainder classifier instead of being dropped.
	MaxSubsets int32

	// StartFromIset skips the leading iSets below this index the same way,
	// folding their rules into the remainder classifier.
	StartFromIset uint32

	// ArbitraryFields, if non-empty, keeps only iSets whose field index is
	// in this list (remapped into the position it appears at in the list),
	// folding every other iSet's rules into the remainder classifier.
	ArbitraryFields []uint32

	// DisableIsets discards every surviving iSet's structure (but not its
	// rules, which still get folded into the remainder classifier),
	// effectively turning this into a single full linear classifier.
	DisableIsets bool

	// DisableRemainder drops the remainder classifier entirely; any packet
	// not resolved by an iSet is reported as NoMatch.
	DisableRemainder bool

	// DisableBinSearch stops the worker after the inference phase, never
	// running the bounded binary search (used to isolate RQRMI inference
	// cost when benchmarking).
	DisableBinSearch bool

	// DisableValidationPhase stops the worker after the binary search,
	// never validating the candidate position against its rule (used to
	// isolate search cost when benchmarking; classification results are
	// meaningless with this set).
	DisableValidationPhase bool

	// DisableAllClassification short-circuits every packet to NoMatch
	// without touching any subset (used to measure baseline overhead).
	DisableAllClassification bool

	// ForceRebuildingRemainder rebuilds the remainder classifier from the
	// folded rule set even when the image's packed remainder would load
	// successfully.
	ForceRebuildingRemainder bool

	// ExternalRemainder, when set, trusts RemainderClassifier as already
	// loaded and skips both loading the image's packed remainder and any
	// rebuild; RemainderClassifier must be non-nil in this case.
	ExternalRemainder bool

	// RemainderType selects which implementation to rebuild ("cutsplit" or
	// "tuplemerge") when a rebuild is required and no external classifier
	// is supplied.
	RemainderType string

	// RemainderClassifier is either the external classifier to use
	// (ExternalRemainder), or nil to have Load construct one of
	// RemainderType when a rebuild is needed. Left nil with
	// DisableRemainder set, it is simply ignored.
	RemainderClassifier remainder.Remainder

	// QueueSize is the SPSC ring buffer capacity for the Pipeline variant;
	// it must be a power of two. Ignored by Engine.
	QueueSize int
}

func (c Config) validate() error {
	if c.NumCores <= 0 {
		return ErrConfigInvalid
	}
	if !c.DisableRemainder && !c.ExternalRemainder && c.RemainderType == "" {
		return ErrConfigInvalid
	}
	if c.ExternalRemainder && c.RemainderClassifier == nil {
		return ErrConfigInvalid
	}
	return nil
}

func (c Config) isetSkipped(index uint32, fieldIndex uint32) bool {
	if c.MaxSubsets >= 0 && uint32(c.MaxSubsets) <= index {
		return true
	}
	if c.StartFromIset > index {
		return true
	}
	if len(c.ArbitraryFields) > 0 && indexOf(c.ArbitraryFields, fieldIndex) < 0 {
		return true
	}
	return false
}

func indexOf(haystack []uint32, needle uint32) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}
