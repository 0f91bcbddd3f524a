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
	"encoding/binary"

	"github.com/hashicorp/golang-lru/arc/v2"

	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
	"github.com/theojepsen/nuevomatch/pkg/rule"
)

// CachingEngine fronts an Engine with an Adaptive Replacement Cache keyed on
// the packet header, for hosts whose traffic is dominated by a small number
// of repeated flows. This is exactly the "upstream cache" AdvanceCounter is
// documented to support: a cache hit still needs to advance the packet
// counter even though Engine.Classify is never called.
type CachingEngine struct {
	engine *Engine
	cache  *arc.ARCCache[string, rule.Output]
}

// NewCachingEngine wraps engine with an ARC cache of the given size. size
// must be positive.
func NewCachingEngine(engine *Engine, size int) (*CachingEngine, error) {
	cache, err := arc.NewARC[string, rule.Output](size)
	if err != nil {
		return nil, serrors.WrapStr("constructing classification cache", err)
	}
	return &CachingEngine{engine: engine, cache: cache}, nil
}

// headerKey turns a header into a comparable cache key without per-call
// allocation beyond the string conversion itself.
func headerKey(header rule.Header) string {
	buf := make([]byte, 4*len(header))
	for i, v := range header {
		binary.LittleEndian.PutUint32(buf[4*i:], v)
	}
	return string(buf)
}

// Classify returns the cached output for header if present, advancing the
// engine's packet counter without running classification; otherwise it
// classifies normally and caches the result.
func (c *CachingEngine) Classify(header rule.Header) rule.Output {
	key := headerKey(header)
	if out, ok := c.cache.Get(key); ok {
		c.engine.AdvanceCounter()
		return out
	}
	out := c.engine.Classify(header)
	c.cache.Add(key, out)
	return out
}

// Len returns the number of headers currently cached.
func (c *CachingEngine) Len() int { return c.cache.Len() }

// Purge empties the cache, e.g. after the underlying image is reloaded.
func (c *CachingEngine) Purge() { c.cache.Purge() }
