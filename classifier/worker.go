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
	"time"

	"github.com/theojepsen/nuevomatch/pkg/iset"
	"github.com/theojepsen/nuevomatch/pkg/remainder"
	"github.com/theojepsen/nuevomatch/pkg/rqrmi"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// worker runs the per-packet classification pipeline for the subsets
// assigned to one core: RQRMI inference on every iSet, a bounded search
// interleaved across all of them, a validation pass, and finally the
// remainder classifier. Engine runs one worker inline; Pipeline runs one
// worker per consumer goroutine.
type worker struct {
	isets                  []*iset.Iset
	remainder              remainder.Remainder
	disableBinSearch       bool
	disableValidationPhase bool
	disableRemainder       bool
	disableAll             bool
}

// classifyOne runs the full pipeline for a single header. It is the
// specialised batch-size-1 path every call site above Pipeline uses; the
// RQRMI and iSet layers still expose their batch-oriented signatures so
// that a future wider batch can reuse them without interface changes.
func (w *worker) classifyOne(header rule.Header) rule.Output {
	batch := []rule.Header{header}
	out := []rule.Output{rule.NoMatch}
	w.classifyBatch(batch, out)
	return out[0]
}

// classifyBatch runs the full pipeline for every header in the batch,
// overwriting out in place. out must have the same length as headers and
// should be pre-seeded (typically with rule.NoMatch, or with a prior
// stage's results when this worker's subsets are layered over another's).
func (w *worker) classifyBatch(headers []rule.Header, out []rule.Output) {
	if w.disableAll {
		return
	}

	numIsets := len(w.isets)
	if numIsets > 0 {
		inferenceStart := time.Now()
		infos := make([][]rqrmi.Info, numIsets)
		var buf []rqrmi.Info
		for k, s := range w.isets {
			infos[k] = s.RQRMISearchBatch(headers, buf)
			buf = nil
		}
		observeStage("inference", inferenceStart)

		if !w.disableBinSearch {
			searchStart := time.Now()
			positions := make([][]uint32, len(headers))
			for i := range headers {
				positions[i] = make([]uint32, numIsets)
				w.searchPacket(i, infos, positions[i])
			}
			observeStage("search", searchStart)

			if !w.disableValidationPhase {
				validationStart := time.Now()
				for i := range headers {
					for k, s := range w.isets {
						candidate := s.DoValidation(headers[i], int(positions[i][k]))
						if rule.Beats(candidate, out[i]) {
							out[i] = candidate
						}
					}
				}
				observeStage("validation", validationStart)
			}
		}
	}

	if w.disableRemainder || w.remainder == nil {
		return
	}
	remainderStart := time.Now()
	w.remainder.Classify(headers, out)
	observeStage("remainder", remainderStart)
}

// searchPacket runs the bounded, error-halving binary search across every
// iSet simultaneously for one packet, writing the converged position of
// each iSet into position. The interleaving (searching one step in every
// iSet before moving to the next step in any of them) is deliberate: it is
// what lets independent cache-line fetches across iSets overlap instead of
// serializing behind each other.
func (w *worker) searchPacket(packetIndex int, infos [][]rqrmi.Info, position []uint32) {
	numIsets := len(w.isets)
	key := make([]uint32, numIsets)
	lBound := make([]uint32, numIsets)
	uBound := make([]uint32, numIsets)
	valid := make([]bool, numIsets)
	var maxError uint32

	for k, s := range w.isets {
		info := infos[k][packetIndex]
		key[k] = info.X
		valid[k] = info.Valid
		size := uint32(s.Size())
		if size == 0 {
			continue
		}
		pos := uint32(info.Y * float64(size))
		if pos >= size {
			pos = size - 1
		}
		position[k] = pos

		if info.Err > pos {
			lBound[k] = 0
		} else {
			lBound[k] = pos - info.Err
		}
		if pos+info.Err > size-1 {
			uBound[k] = size - 1
		} else {
			uBound[k] = pos + info.Err
		}
		if info.Err > maxError {
			maxError = info.Err
		}
	}

	for maxError > 0 {
		for k, s := range w.isets {
			current := s.GetIndex(int(position[k])) <= key[k]
			next := s.GetIndex(int(position[k])+1) > key[k]
			switch {
			case current && next:
				// converged; leave position[k] as-is
			case current:
				lBound[k] = position[k]
				sum := lBound[k] + uBound[k]
				position[k] = (sum >> 1) + (sum & 1) // ceil
			case valid[k]:
				uBound[k] = position[k]
				position[k] = (lBound[k] + uBound[k]) >> 1 // floor
			}
		}
		maxError >>= 1
	}
}
