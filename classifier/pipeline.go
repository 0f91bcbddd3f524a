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
	"sync/atomic"
	"time"

	"github.com/theojepsen/nuevomatch/pkg/log"
	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// ErrQueueSizeNotPowerOfTwo is returned by NewPipeline when Config.QueueSize
// is not a power of two, matching the reference pipeline's restriction (it
// lets the ring index wrap with a mask instead of a modulo).
var ErrQueueSizeNotPowerOfTwo = serrors.New("pipeline queue size must be a power of two")

// Job is one unit of work handed to a Pipeline: a batch of headers sharing a
// caller-assigned batch ID, carried through so results can be correlated
// back to the request that produced them.
type Job struct {
	Headers []rule.Header
	BatchID uint32
}

// ResultListener receives completed batches from a Pipeline's worker
// goroutine, mirroring the reference NuevoMatchWorkerListener::on_new_result
// callback.
type ResultListener interface {
	OnResult(workerIdx uint32, batchID uint32, out []rule.Output)
}

// Pipeline is the parallel worker variant: a bounded single-producer
// single-consumer queue feeding one dedicated goroutine that runs a worker's
// classification pipeline and publishes results to its listeners. It
// corresponds to the reference implementation's NuevoMatchWorkerParallel,
// backed by PipelineThread<Job>.
type Pipeline struct {
	workerIdx uint32
	w         worker
	queue     chan Job
	mask      uint32

	listenersMu sync.RWMutex
	listeners   []ResultListener

	produced  uint64
	declined  uint64
	processed uint64
	workNanos uint64

	startOnce sync.Once
	startTime time.Time
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}

	cpuCore int
}

// NewPipeline builds a Pipeline from the subsets assigned to one core.
// cfg.QueueSize must be a power of two; cpuCore is the preferred CPU to pin
// the consumer goroutine to (best-effort; a negative value disables
// pinning). The pipeline is not running until Start is called.
func NewPipeline(workerIdx uint32, subsets []subset, cfg Config, cpuCore int) (*Pipeline, error) {
	if cfg.QueueSize <= 0 || cfg.QueueSize&(cfg.QueueSize-1) != 0 {
		return nil, ErrQueueSizeNotPowerOfTwo
	}
	w, err := assembleWorker(subsets, cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		workerIdx: workerIdx,
		w:         w,
		queue:     make(chan Job, cfg.QueueSize),
		mask:      uint32(cfg.QueueSize - 1),
		cpuCore:   cpuCore,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// AddListener registers a listener to be notified of every completed batch.
// Must be called before Start; the consumer goroutine reads the listener
// list without further synchronization once running.
func (p *Pipeline) AddListener(l ResultListener) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Start launches the consumer goroutine. Calling Start more than once has no
// effect beyond the first call.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		p.startTime = time.Now()
		go func() {
			defer log.HandlePanic()
			defer close(p.done)
			p.run()
		}()
	})
}

// Stop signals the consumer goroutine to drain the queue and exit, then
// blocks until it has. Produce calls made concurrently with or after Stop
// may be declined.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.done
}

// Produce enqueues a job without blocking. It reports false (and increments
// the backpressure counter) if the queue is full, matching the reference
// PipelineThread::produce's non-blocking contract: a full queue is the
// caller's signal to apply its own backpressure rather than stall the
// producer.
func (p *Pipeline) Produce(job Job) bool {
	select {
	case p.queue <- job:
		atomic.AddUint64(&p.produced, 1)
		return true
	default:
		atomic.AddUint64(&p.declined, 1)
		return false
	}
}

func (p *Pipeline) run() {
	pinCurrentGoroutine(p.cpuCore)
	for {
		select {
		case job := <-p.queue:
			p.process(job)
		case <-p.stopCh:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case job := <-p.queue:
					p.process(job)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline) process(job Job) {
	out := make([]rule.Output, len(job.Headers))
	for i := range out {
		out[i] = rule.NoMatch
	}
	start := time.Now()
	p.w.classifyBatch(job.Headers, out)
	atomic.AddUint64(&p.workNanos, uint64(time.Since(start).Nanoseconds()))
	atomic.AddUint64(&p.processed, 1)

	p.listenersMu.RLock()
	listeners := p.listeners
	p.listenersMu.RUnlock()
	for _, l := range listeners {
		l.OnResult(p.workerIdx, job.BatchID, out)
	}
}

// Throughput returns the number of batches processed per second since Start.
func (p *Pipeline) Throughput() float64 {
	elapsed := time.Since(p.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&p.processed)) / elapsed
}

// Utilization returns the fraction of wall-clock time since Start that the
// consumer goroutine spent inside classifyBatch, in [0, 1].
func (p *Pipeline) Utilization() float64 {
	elapsed := time.Since(p.startTime)
	if elapsed <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&p.workNanos)) / float64(elapsed.Nanoseconds())
}

// Backpressure returns the fraction of Produce calls that were declined
// because the queue was full, in [0, 1].
func (p *Pipeline) Backpressure() float64 {
	produced := atomic.LoadUint64(&p.produced)
	declined := atomic.LoadUint64(&p.declined)
	total := produced + declined
	if total == 0 {
		return 0
	}
	return float64(declined) / float64(total)
}

// AverageWorkTime returns the mean time classifyBatch spent per processed
// job.
func (p *Pipeline) AverageWorkTime() time.Duration {
	processed := atomic.LoadUint64(&p.processed)
	if processed == 0 {
		return 0
	}
	return time.Duration(atomic.LoadUint64(&p.workNanos) / processed)
}
