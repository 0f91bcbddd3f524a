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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theojepsen/nuevomatch/pkg/remainder"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

func buildRemainderSubsets(t *testing.T) []subset {
	t.Helper()
	c, err := remainder.New("cutsplit")
	require.NoError(t, err)
	require.NoError(t, c.Build([]*rule.Rule{
		{Priority: 1, Action: 7, Fields: []rule.FieldRange{{Lo: 0, Hi: 1000}}},
	}))
	return []subset{{kind: subsetRemainder, remainder: c}}
}

func testPipelineConfig() Config {
	return Config{
		NumCores:   1,
		MaxSubsets: -1,
		QueueSize:  4,
	}
}

func TestNewPipelineRejectsNonPowerOfTwoQueueSize(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.QueueSize = 3
	_, err := NewPipeline(0, buildRemainderSubsets(t), cfg, -1)
	assert.ErrorIs(t, err, ErrQueueSizeNotPowerOfTwo)
}

type collectingListener struct {
	mu      sync.Mutex
	batches []uint32
	outputs [][]rule.Output
}

func (l *collectingListener) OnResult(workerIdx uint32, batchID uint32, out []rule.Output) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, batchID)
	outCopy := make([]rule.Output, len(out))
	copy(outCopy, out)
	l.outputs = append(l.outputs, outCopy)
}

func (l *collectingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

func TestPipelineProcessesProducedJobsAndNotifiesListeners(t *testing.T) {
	p, err := NewPipeline(0, buildRemainderSubsets(t), testPipelineConfig(), -1)
	require.NoError(t, err)

	listener := &collectingListener{}
	p.AddListener(listener)
	p.Start()
	defer p.Stop()

	ok := p.Produce(Job{Headers: []rule.Header{{500}}, BatchID: 1})
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return listener.count() == 1
	}, time.Second, time.Millisecond)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	assert.Equal(t, []uint32{1}, listener.batches)
	assert.Equal(t, rule.Output{Priority: 1, Action: 7}, listener.outputs[0][0])
}

func TestPipelineProduceDeclinesWhenQueueIsFull(t *testing.T) {
	p, err := NewPipeline(0, buildRemainderSubsets(t), testPipelineConfig(), -1)
	require.NoError(t, err)
	// Don't start the consumer: the queue fills and stays full.
	for i := 0; i < cap(p.queue); i++ {
		require.True(t, p.Produce(Job{Headers: []rule.Header{{1}}, BatchID: uint32(i)}))
	}
	ok := p.Produce(Job{Headers: []rule.Header{{1}}, BatchID: 999})
	assert.False(t, ok)
	assert.Greater(t, p.Backpressure(), 0.0)
}

func TestPipelineStatsAfterProcessing(t *testing.T) {
	p, err := NewPipeline(0, buildRemainderSubsets(t), testPipelineConfig(), -1)
	require.NoError(t, err)
	listener := &collectingListener{}
	p.AddListener(listener)
	p.Start()
	defer p.Stop()

	for i := 0; i < 5; i++ {
		p.Produce(Job{Headers: []rule.Header{{500}}, BatchID: uint32(i)})
	}
	require.Eventually(t, func() bool {
		return listener.count() == 5
	}, time.Second, time.Millisecond)

	assert.Equal(t, 0.0, p.Backpressure())
	assert.GreaterOrEqual(t, p.Throughput(), 0.0)
	assert.GreaterOrEqual(t, p.Utilization(), 0.0)
	assert.GreaterOrEqual(t, p.AverageWorkTime(), time.Duration(0))
}

func TestPipelineStopDrainsQueueBeforeExiting(t *testing.T) {
	p, err := NewPipeline(0, buildRemainderSubsets(t), testPipelineConfig(), -1)
	require.NoError(t, err)
	listener := &collectingListener{}
	p.AddListener(listener)

	for i := 0; i < cap(p.queue); i++ {
		require.True(t, p.Produce(Job{Headers: []rule.Header{{500}}, BatchID: uint32(i)}))
	}
	p.Start()
	p.Stop()
	assert.Equal(t, cap(p.queue), listener.count())
}

func TestAverageWorkTimeIsZeroBeforeAnyJobCompletes(t *testing.T) {
	p, err := NewPipeline(0, buildRemainderSubsets(t), testPipelineConfig(), -1)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), p.AverageWorkTime())
	assert.Equal(t, 0.0, p.Backpressure())
}
