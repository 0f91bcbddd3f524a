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

//go:build classifier_profile

package classifier

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// processingMetricsEnabled is a compile-time constant that enables the
// per-stage timing breakdown. Build with: go build -tags classifier_profile
const processingMetricsEnabled = true

var processDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "nuevomatch_stage_duration_seconds",
		Help:    "Time spent per classification stage (requires classifier_profile build tag).",
		Buckets: []float64{.0000001, .0000005, .000001, .000005, .00001, .00005, .0001, .0005},
	},
	[]string{"stage"},
)

// observeStage records how long one classification stage (inference,
// search, validation, remainder) took on the current batch.
func observeStage(stage string, start time.Time) {
	processDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
