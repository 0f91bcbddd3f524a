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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// Metrics holds the classifier's Prometheus instrumentation.
type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	PacketsTotal         prometheus.Counter
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics returns the classifier's metrics, registering them with the
// default registry exactly once per process. Every Engine and Pipeline
// built in the same process shares this one instance, so constructing
// more than one Engine never attempts a duplicate collector registration.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			ClassificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nuevomatch_classifications_total",
					Help: "Total number of packets classified, by outcome.",
				},
				[]string{"result"},
			),
			PacketsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "nuevomatch_packets_total",
					Help: "Total number of packets seen by the classifier.",
				},
			),
		}
	})
	return metrics
}

func (m *Metrics) observeClassification(out rule.Output) {
	if m == nil {
		return
	}
	m.PacketsTotal.Inc()
	if out == rule.NoMatch {
		m.ClassificationsTotal.WithLabelValues("no_match").Inc()
		return
	}
	m.ClassificationsTotal.WithLabelValues("match").Inc()
}
