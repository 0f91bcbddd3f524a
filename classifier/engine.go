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
	"sync/atomic"

	"github.com/theojepsen/nuevomatch/pkg/iset"
	"github.com/theojepsen/nuevomatch/pkg/log"
	"github.com/theojepsen/nuevomatch/pkg/objstream"
	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
	"github.com/theojepsen/nuevomatch/pkg/remainder"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// Engine is the serial (single-core) NuevoMatch classifier: it owns every
// iSet and the remainder classifier assigned to core 0 after load-balancing,
// and answers Classify one packet at a time. It corresponds to the
// reference implementation's SerialNuevoMatch.
type Engine struct {
	cfg     Config
	worker  worker
	metrics *Metrics

	packetCounter uint64
}

// Load parses a packed image (as produced by a NuevoMatch build tool; the
// format is documented in pkg/objstream) and constructs an Engine ready to
// classify. cfg controls filtering, remainder behaviour, and core count.
func Load(data []byte, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := log.Root().New("component", "classifier")

	r := objstream.NewReader(data)
	hdr, err := readImageHeader(r)
	if err != nil {
		return nil, serrors.WrapStr("reading image header", err)
	}

	loaded, err := loadSubsets(r, hdr, cfg)
	if err != nil {
		return nil, serrors.WrapStr("loading subsets", err)
	}

	remainderClassifier, err := loadRemainder(r, cfg, loaded)
	if err != nil {
		return nil, err
	}

	subsets := buildSubsetList(loaded.isets, remainderClassifier)
	if len(subsets) == 0 {
		return nil, ErrNoValidSubsets
	}
	myCoreSubsets := groupSubsetsToCores(subsets, cfg.NumCores)

	w, err := assembleWorker(myCoreSubsets, cfg)
	if err != nil {
		return nil, err
	}

	logSubsetCoverage(logger, loaded, hdr)

	return &Engine{cfg: cfg, worker: w, metrics: NewMetrics()}, nil
}

// loadRemainder implements the remainder-classifier load/build/recover
// protocol: disabled → nil; external → trust the caller; otherwise rebuild
// from folded rules if any iSet is missing (or a rebuild is forced), else
// load the image's packed remainder, falling back to exactly one rebuild
// attempt if that load fails.
func loadRemainder(r *objstream.Reader, cfg Config, loaded loadedSubsets) (remainder.Remainder, error) {
	if cfg.DisableRemainder {
		return nil, nil
	}
	if cfg.ExternalRemainder {
		return cfg.RemainderClassifier, nil
	}

	anyMissing := false
	for _, s := range loaded.isets {
		if s == nil {
			anyMissing = true
			break
		}
	}
	needsRebuild := cfg.ForceRebuildingRemainder || anyMissing

	packed, subErr := r.SubReader()
	havePacked := subErr == nil

	classifier := cfg.RemainderClassifier
	if classifier == nil {
		var err error
		classifier, err = remainder.New(cfg.RemainderType)
		if err != nil {
			return nil, serrors.WrapStr("constructing remainder classifier", err)
		}
	}

	if needsRebuild || !havePacked {
		return rebuildRemainder(classifier, cfg.RemainderType, loaded.remainderRules)
	}

	if havePacked {
		if loadErr := classifier.Load(packed.Buffer()); loadErr == nil {
			return classifier, nil
		}
	}

	// Recovery: rebuild once from the folded rule set.
	rebuilt, err := rebuildRemainder(classifier, cfg.RemainderType, loaded.remainderRules)
	if err != nil {
		return nil, serrors.WrapStr("recovering remainder classifier", err, "wrapping", ErrRemainderLoadFailed)
	}
	return rebuilt, nil
}

func rebuildRemainder(classifier remainder.Remainder, tag string, rules []*rule.Rule) (remainder.Remainder, error) {
	if classifier == nil {
		var err error
		classifier, err = remainder.New(tag)
		if err != nil {
			return nil, serrors.WrapStr("constructing remainder classifier for rebuild", err)
		}
	}
	if err := classifier.Build(rules); err != nil {
		return nil, serrors.WrapStr("building remainder classifier", err)
	}
	return classifier, nil
}

// buildSubsetList collects every surviving iSet plus (if present) the
// remainder classifier into the flat list group_subsets_to_cores balances.
func buildSubsetList(isets []*iset.Iset, remainderClassifier remainder.Remainder) []subset {
	var subsets []subset
	for _, s := range isets {
		if s != nil {
			subsets = append(subsets, subset{kind: subsetIset, iset: s})
		}
	}
	if remainderClassifier != nil {
		subsets = append(subsets, subset{kind: subsetRemainder, remainder: remainderClassifier})
	}
	return subsets
}

// assembleWorker splits the core-0 subset assignment back into its iSet
// and remainder-classifier parts and wires up a worker with cfg's
// behaviour toggles.
func assembleWorker(subsets []subset, cfg Config) (worker, error) {
	w := worker{
		disableBinSearch:       cfg.DisableBinSearch,
		disableValidationPhase: cfg.DisableValidationPhase,
		disableRemainder:       cfg.DisableRemainder,
		disableAll:             cfg.DisableAllClassification,
	}
	for _, s := range subsets {
		switch s.kind {
		case subsetIset:
			w.isets = append(w.isets, s.iset)
		case subsetRemainder:
			if w.remainder != nil {
				return worker{}, serrors.New("cannot add two remainder classifiers to the same core")
			}
			w.remainder = s.remainder
		}
	}
	return w, nil
}

func logSubsetCoverage(logger log.Logger, loaded loadedSubsets, hdr imageHeader) {
	kept := 0
	for _, s := range loaded.isets {
		if s != nil {
			kept++
			logger.Debug("iSet kept", "field", s.FieldIndex(), "rules", s.Size())
		}
	}
	logger.Info("loaded classifier image",
		"isets_total", hdr.numIsets,
		"isets_kept", kept,
		"remainder_rules", len(loaded.remainderRules))
}

// Classify classifies one packet header and returns the winning rule's
// {priority, action}, or rule.NoMatch. It increments the packet counter
// exactly once per call, matching advance_counter's contract that the
// counter reflects packets seen, not packets matched.
func (e *Engine) Classify(header rule.Header) rule.Output {
	atomic.AddUint64(&e.packetCounter, 1)
	out := e.worker.classifyOne(header)
	e.metrics.observeClassification(out)
	return out
}

// ResetCounters zeroes the packet counter.
func (e *Engine) ResetCounters() {
	atomic.StoreUint64(&e.packetCounter, 0)
}

// AdvanceCounter increments the packet counter without running
// classification, for callers that skip classification via an external
// cache and still want accurate throughput accounting.
func (e *Engine) AdvanceCounter() {
	atomic.AddUint64(&e.packetCounter, 1)
}

// PacketCount returns the number of packets counted since construction or
// the last ResetCounters.
func (e *Engine) PacketCount() uint64 {
	return atomic.LoadUint64(&e.packetCounter)
}
