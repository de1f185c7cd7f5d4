/*
 * Copyright 2021 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package datasketches

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

type metricType int

const (
	// The following keep track of mutating operations across a sketch's
	// lifetime.
	updates metricType = iota
	merges
	compactions
	resizes
	rebuilds
	// This should be the final enum. Other enums should be set before this.
	doNotUse
)

func stringFor(t metricType) string {
	switch t {
	case updates:
		return "updates"
	case merges:
		return "merges"
	case compactions:
		return "compactions"
	case resizes:
		return "resizes"
	case rebuilds:
		return "rebuilds"
	default:
		return "unidentified"
	}
}

// Metrics is a snapshot of lifetime activity counters for a single sketch
// instance. It is optional ambient instrumentation: every sketch family
// accepts a *Metrics (possibly nil) and reports through it, the same way
// the teacher's cache reports through an atomic-counter Metrics struct
// rather than a full OTel/Prometheus pipeline.
type Metrics struct {
	all [doNotUse][]*uint64
}

// NewMetrics allocates a zeroed Metrics. Passing nil wherever a *Metrics is
// accepted disables instrumentation entirely; every accessor below
// tolerates a nil receiver.
func NewMetrics() *Metrics {
	s := &Metrics{}
	for i := 0; i < int(doNotUse); i++ {
		s.all[i] = make([]*uint64, 256)
		slice := s.all[i]
		for j := range slice {
			slice[j] = new(uint64)
		}
	}
	return s
}

func (p *Metrics) add(t metricType, hash, delta uint64) {
	if p == nil {
		return
	}
	valp := p.all[t]
	// Avoid false sharing by spreading increments across padded slots.
	idx := (hash % 25) * 10
	atomic.AddUint64(valp[idx], delta)
}

func (p *Metrics) get(t metricType) uint64 {
	if p == nil {
		return 0
	}
	valp := p.all[t]
	var total uint64
	for i := range valp {
		total += atomic.LoadUint64(valp[i])
	}
	return total
}

// RecordUpdate increments the update counter, sharded by hash to avoid
// cache-line contention between concurrent readers (updates themselves are
// required to be single-threaded per spec.md §5, but the counters are read
// concurrently with instrumentation dashboards).
func (p *Metrics) RecordUpdate(hash uint64) {
	p.add(updates, hash, 1)
}

// RecordMerge increments the merge/union counter.
func (p *Metrics) RecordMerge() {
	p.add(merges, 0, 1)
}

// RecordCompaction increments the compaction counter (KLL/Density level
// compaction, Frequent-Items reverse-purge).
func (p *Metrics) RecordCompaction() {
	p.add(compactions, 0, 1)
}

// RecordResize increments the resize counter (Theta hash-table growth,
// Frequent-Items map growth).
func (p *Metrics) RecordResize() {
	p.add(resizes, 0, 1)
}

// RecordRebuild increments the rebuild counter (Theta quickselect rebuild).
func (p *Metrics) RecordRebuild() {
	p.add(rebuilds, 0, 1)
}

// Updates is the total number of Update calls observed.
func (p *Metrics) Updates() uint64 { return p.get(updates) }

// Merges is the total number of Merge/Union calls observed.
func (p *Metrics) Merges() uint64 { return p.get(merges) }

// Compactions is the total number of internal compaction passes.
func (p *Metrics) Compactions() uint64 { return p.get(compactions) }

// Resizes is the total number of backing-array growth events.
func (p *Metrics) Resizes() uint64 { return p.get(resizes) }

// Rebuilds is the total number of full rebuild passes (e.g. Theta
// quickselect rebuild).
func (p *Metrics) Rebuilds() uint64 { return p.get(rebuilds) }

// Clear resets all counters to zero.
func (p *Metrics) Clear() {
	if p == nil {
		return
	}
	for i := 0; i < int(doNotUse); i++ {
		for j := range p.all[i] {
			atomic.StoreUint64(p.all[i][j], 0)
		}
	}
}

// String renders a human-readable summary, using go-humanize for the
// large counters the way the teacher's diagnostics do.
func (p *Metrics) String() string {
	if p == nil {
		return ""
	}
	var buf bytes.Buffer
	for i := 0; i < int(doNotUse); i++ {
		t := metricType(i)
		fmt.Fprintf(&buf, "%s: %s ", stringFor(t), humanize.Comma(int64(p.get(t))))
	}
	return buf.String()
}
