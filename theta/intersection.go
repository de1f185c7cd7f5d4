/*
 * Copyright 2019 Dgraph Labs, Inc. and Contributors
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

package theta

import datasketches "github.com/dgraph-io/datasketches-go"

// intersectionRebuildThreshold is applied when the intersection operator
// sizes its own table from the first sketch it sees, matching
// original_source/datasketches/src/theta/intersection.rs's
// REBUILD_THRESHOLD constant.
const intersectionRebuildThreshold = 15.0 / 16.0

// View is the read surface shared by Sketch and Compact, the minimum an
// Intersection needs to fold a sketch into its running result.
type View interface {
	Theta64() uint64
	Iter() []uint64
	IsEmpty() bool
	SeedHash() uint16
	NumRetained() int
}

// Intersection is the stateful set-intersection operator from spec.md
// section 4.7: repeated calls to Update narrow a running result down to
// the hashes common to every sketch seen so far. Ported from
// original_source/datasketches/src/theta/intersection.rs.
type Intersection struct {
	seed        uint64
	seedHashVal uint16
	hasResult   bool
	isEmpty     bool
	theta       uint64
	entries     map[uint64]struct{}
	metrics     *datasketches.Metrics
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this operator's Update calls. Passing nil disables instrumentation.
func (x *Intersection) SetMetrics(m *datasketches.Metrics) { x.metrics = m }

// NewIntersection returns an Intersection keyed to the default hash seed.
func NewIntersection() *Intersection { return NewIntersectionWithSeed(defaultSeed) }

// NewIntersectionWithSeed returns an Intersection keyed to the given hash
// seed; every sketch passed to Update must share this seed.
func NewIntersectionWithSeed(seed uint64) *Intersection {
	return &Intersection{seed: seed, seedHashVal: datasketches.SeedHash(seed), theta: MaxTheta}
}

// Update folds sketch into the running intersection result. A seed-hash
// mismatch on a non-empty input reports an error rather than corrupting
// the result; an empty input instead puts the operator into a terminal
// empty state that absorbs every later update without change, per
// spec.md section 4.7.
func (x *Intersection) Update(sketch View) error {
	if !sketch.IsEmpty() && sketch.SeedHash() != x.seedHashVal {
		return datasketches.NewInvalidArgument("theta: intersection input seed hash %d does not match operator seed hash %d",
			sketch.SeedHash(), x.seedHashVal)
	}
	defer x.metrics.RecordMerge()

	if !x.hasResult {
		x.hasResult = true
		if sketch.IsEmpty() {
			x.isEmpty = true
			x.theta = MaxTheta
			x.entries = map[uint64]struct{}{}
			return nil
		}
		x.isEmpty = false
		x.theta = sketch.Theta64()
		// Size the table via intersectionRebuildThreshold, matching the
		// reference's REBUILD_THRESHOLD-based first-copy sizing.
		x.entries = make(map[uint64]struct{}, int(float64(sketch.NumRetained())/intersectionRebuildThreshold)+1)
		for _, h := range sketch.Iter() {
			if h < x.theta {
				x.entries[h] = struct{}{}
			}
		}
		return nil
	}

	if x.isEmpty {
		return nil
	}
	if sketch.IsEmpty() {
		x.isEmpty = true
		x.theta = MaxTheta
		x.entries = map[uint64]struct{}{}
		return nil
	}

	if sketch.Theta64() < x.theta {
		x.theta = sketch.Theta64()
	}

	matched := make(map[uint64]struct{})
	for _, h := range sketch.Iter() {
		if h >= x.theta {
			continue
		}
		if _, ok := x.entries[h]; ok {
			matched[h] = struct{}{}
		}
	}
	x.entries = matched

	if len(x.entries) == 0 && x.theta == MaxTheta {
		x.isEmpty = true
	}
	return nil
}

// HasResult reports whether Update has been called at least once; calling
// Result before this panics, matching the Rust reference's assertion that
// a fresh intersection has no meaningful output yet.
func (x *Intersection) HasResult() bool { return x.hasResult }

// Result returns an unordered Compact snapshot of the current
// intersection.
func (x *Intersection) Result() *Compact { return x.ResultWithOrdered(false) }

// ResultWithOrdered returns a Compact snapshot of the current
// intersection, sorted ascending when ordered is true.
func (x *Intersection) ResultWithOrdered(ordered bool) *Compact {
	if !x.hasResult {
		panic("theta: intersection has no result yet")
	}
	entries := make([]uint64, 0, len(x.entries))
	for h := range x.entries {
		entries = append(entries, h)
	}
	if ordered {
		sortUint64s(entries)
	}
	return &Compact{
		theta:        x.theta,
		entries:      entries,
		seedHash:     x.seedHashVal,
		isEmpty:      x.isEmpty,
		ordered:      ordered,
		samplingProb: 1.0,
	}
}
