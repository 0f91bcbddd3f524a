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
	"github.com/theojepsen/nuevomatch/pkg/objstream"
	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// imageHeader is the fixed-format preamble of a packed image, read before
// any iSet or remainder sub-object.
type imageHeader struct {
	numIsets  uint32
	numRules  uint32
	buildTime uint32
}

func readImageHeader(r *objstream.Reader) (imageHeader, error) {
	numIsets, err := r.Uint32()
	if err != nil {
		return imageHeader{}, serrors.WrapStr("reading iSet count", err)
	}
	numRules, err := r.Uint32()
	if err != nil {
		return imageHeader{}, serrors.WrapStr("reading rule count", err)
	}
	// The packed size field is historical: actual size is always
	// recomputed from the loaded iSets, since dynamic filtering
	// (max_subsets, arbitrary_fields, ...) changes which iSets survive.
	if _, err := r.Uint32(); err != nil {
		return imageHeader{}, serrors.WrapStr("reading packed size", err)
	}
	buildTime, err := r.Uint32()
	if err != nil {
		return imageHeader{}, serrors.WrapStr("reading build time", err)
	}
	return imageHeader{numIsets: numIsets, numRules: numRules, buildTime: buildTime}, nil
}

// loadedSubsets is the intermediate result of the iSet-loading pass: the
// iSets that survived filtering (indexed exactly as they appear in the
// image; a nil entry marks one that was filtered out or disabled) and the
// flat rule list folded out of every iSet that didn't survive.
type loadedSubsets struct {
	isets          []*iset.Iset
	remainderRules []*rule.Rule
}

// loadSubsets reads every iSet sub-object from r and applies cfg's
// filtering policy (max_subsets / start_from_iset / arbitrary_fields /
// disable_isets), folding the rules of anything filtered out into the
// returned remainder rule list.
func loadSubsets(r *objstream.Reader, hdr imageHeader, cfg Config) (loadedSubsets, error) {
	result := loadedSubsets{isets: make([]*iset.Iset, hdr.numIsets)}

	for i := uint32(0); i < hdr.numIsets; i++ {
		subReader, err := r.SubReader()
		if err != nil {
			return loadedSubsets{}, serrors.WrapStr("reading iSet sub-object", err, "iset", i)
		}
		s, err := iset.Load(subReader)
		if err != nil {
			return loadedSubsets{}, serrors.WrapStr("loading iSet", err, "iset", i)
		}

		skip := cfg.isetSkipped(i, s.FieldIndex())
		switch {
		case skip, cfg.DisableIsets:
			result.remainderRules = append(result.remainderRules, s.ExtractRules()...)
		default:
			if len(cfg.ArbitraryFields) > 0 {
				s.RemapFieldIndex(uint32(indexOf(cfg.ArbitraryFields, s.FieldIndex())))
			}
			result.isets[i] = s
		}
	}

	rule.SortByPriority(result.remainderRules)
	return result, nil
}
