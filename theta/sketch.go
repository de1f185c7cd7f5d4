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

import (
	"sort"

	datasketches "github.com/dgraph-io/datasketches-go"
	"github.com/dgraph-io/datasketches-go/shared"
)

const defaultSeed uint64 = 9001

// Sketch is a mutable Theta sketch: a bounded sample of sub-theta hashes
// used for cardinality estimation and peer-to-peer set algebra, per
// spec.md section 4.7.
type Sketch struct {
	table *hashTable
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this sketch's Update/Merge/resize/rebuild activity. Passing nil disables
// instrumentation.
func (s *Sketch) SetMetrics(m *datasketches.Metrics) { s.table.metrics = m }

// Builder configures and constructs a Sketch, mirroring the validated
// builder pattern in original_source/datasketches/src/theta/sketch.rs's
// ThetaSketchBuilder.
type Builder struct {
	lgK                 uint8
	resizeFactor        ResizeFactor
	samplingProbability float32
	seed                uint64
}

// NewBuilder returns a Builder with spec.md's documented defaults:
// lg_k=12, resize factor X8, sampling probability 1.0, default seed.
func NewBuilder() *Builder {
	return &Builder{
		lgK:                 DefaultLgK,
		resizeFactor:        X8,
		samplingProbability: 1.0,
		seed:                defaultSeed,
	}
}

// LgK sets the target lg(nominal entries), validated to [MinLgK, MaxLgK].
func (b *Builder) LgK(lgK uint8) *Builder {
	if lgK < MinLgK || lgK > MaxLgK {
		panic("theta: lg_k out of range")
	}
	b.lgK = lgK
	return b
}

// ResizeFactor sets the hash table's growth step while below lg_k.
func (b *Builder) ResizeFactor(rf ResizeFactor) *Builder {
	b.resizeFactor = rf
	return b
}

// SamplingProbability sets the initial theta as a fraction of MaxTheta,
// validated to (0, 1].
func (b *Builder) SamplingProbability(p float32) *Builder {
	if p <= 0 || p > 1 {
		panic("theta: sampling_probability out of range")
	}
	b.samplingProbability = p
	return b
}

// Seed sets the murmur3 hash seed. Two sketches must share a seed to be
// compared or combined meaningfully.
func (b *Builder) Seed(seed uint64) *Builder {
	b.seed = seed
	return b
}

// Build constructs the configured Sketch.
func (b *Builder) Build() *Sketch {
	return &Sketch{table: newHashTable(b.lgK, b.resizeFactor, b.samplingProbability, b.seed)}
}

// NewSketch returns a Sketch built with all default parameters.
func NewSketch() *Sketch { return NewBuilder().Build() }

// NewSketchWithLgK returns a Sketch built with the given lg_k and all
// other defaults, the common case per spec.md's examples.
func NewSketchWithLgK(lgK uint8) *Sketch { return NewBuilder().LgK(lgK).Build() }

// Update folds data into the sketch.
func (s *Sketch) Update(data []byte) {
	h := s.table.hashAndScreen(data)
	if h != 0 {
		s.table.tryInsertHash(h)
	}
	s.table.metrics.RecordUpdate(h)
}

// UpdateUint64 is a convenience wrapper that hashes the little-endian byte
// representation of v.
func (s *Sketch) UpdateUint64(v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s.Update(buf[:])
}

// IsEmpty reports whether the sketch has never observed an item.
func (s *Sketch) IsEmpty() bool { return s.table.isEmptyFlag }

// IsEstimationMode reports whether theta has shrunk below MaxTheta, i.e.
// the estimate is no longer an exact count.
func (s *Sketch) IsEstimationMode() bool { return s.table.theta < MaxTheta && !s.IsEmpty() }

// Theta returns the current inclusion threshold as a fraction of the hash
// space, in [0, 1].
func (s *Sketch) Theta() float64 { return float64(s.table.theta) / float64(MaxTheta) }

// Theta64 returns the raw 64-bit theta value.
func (s *Sketch) Theta64() uint64 { return s.table.theta }

// NumRetained returns the number of hashes currently kept in the sample.
func (s *Sketch) NumRetained() int { return s.table.numRetained }

// LgK returns the configured log2(nominal entries).
func (s *Sketch) LgK() uint8 { return s.table.lgNomSize }

// Estimate returns the unbiased cardinality estimate: retained / theta.
func (s *Sketch) Estimate() float64 {
	if s.IsEmpty() {
		return 0
	}
	if !s.IsEstimationMode() {
		return float64(s.table.numRetained)
	}
	return float64(s.table.numRetained) / s.Theta()
}

// LowerBound returns a lower confidence bound on the cardinality at the
// given standard-deviation multiple, via the shared binomial bound.
func (s *Sketch) LowerBound(kappa shared.NumStdDev) float64 {
	if s.IsEmpty() {
		return 0
	}
	if !s.IsEstimationMode() {
		return float64(s.table.numRetained)
	}
	return shared.BinomialBoundLower(kappa, uint64(s.table.numRetained), s.Theta())
}

// UpperBound returns an upper confidence bound on the cardinality.
func (s *Sketch) UpperBound(kappa shared.NumStdDev) float64 {
	if s.IsEmpty() {
		return 0
	}
	if !s.IsEstimationMode() {
		return float64(s.table.numRetained)
	}
	return shared.BinomialBoundUpper(kappa, uint64(s.table.numRetained), s.Theta())
}

// Trim discards retained entries beyond the nominal size, raising theta
// if necessary. Useful after a batch of updates pushed the table into its
// "over max size" rebuild-threshold zone.
func (s *Sketch) Trim() { s.table.trim() }

// Reset returns the sketch to its just-built, empty state.
func (s *Sketch) Reset() { s.table.reset() }

// Iter returns the retained hashes in no particular order. Callers that
// need a stable order should use ToCompact, which sorts them.
func (s *Sketch) Iter() []uint64 { return s.table.iter() }

func (s *Sketch) seed() uint64 { return s.table.hashSeed }

// ToCompact produces an immutable, read-only projection of the sketch,
// with entries sorted ascending when ordered is true, suitable for serialization or for use as an Intersection input,
// per original_source/datasketches/src/theta/compact.rs.
func (s *Sketch) ToCompact(ordered bool) *Compact {
	entries := s.table.iter()
	if ordered {
		sortUint64s(entries)
	}
	return &Compact{
		theta:        s.table.theta,
		entries:      entries,
		seedHash:     s.table.seedHash(),
		isEmpty:      s.IsEmpty(),
		ordered:      ordered,
		lgK:          s.table.lgNomSize,
		resizeFactor: s.table.resizeFactor,
		samplingProb: s.table.samplingProbability,
	}
}

// Merge is Theta's union: folds other's retained sub-theta entries into s,
// lowering theta to the smaller of the two and then rebuilding/trimming if
// the combined retained count exceeds the nominal size. Theta's union has
// no separate stateful operator (unlike Intersection) — spec.md section
// 4.7 documents it as ordinary peer-to-peer merge.
func (s *Sketch) Merge(other *Sketch) {
	if s.seed() != other.seed() {
		panic("theta: cannot merge sketches with different seeds")
	}
	if other.IsEmpty() {
		return
	}
	if !other.IsEmpty() {
		s.table.isEmptyFlag = false
	}
	if other.table.theta < s.table.theta {
		s.table.theta = other.table.theta
		for _, h := range s.table.iter() {
			if h >= s.table.theta {
				s.removeHash(h)
			}
		}
	}
	minTheta := s.table.theta
	for _, h := range other.table.iter() {
		if h < minTheta {
			s.table.tryInsertHash(h)
		}
	}
	s.table.trim()
	s.table.metrics.RecordMerge()
}

// MergeCompact folds a Compact sketch's entries into s the same way Merge
// does for two mutable sketches.
func (s *Sketch) MergeCompact(other *Compact) {
	if other.IsEmpty() {
		return
	}
	s.table.isEmptyFlag = false
	if other.theta < s.table.theta {
		s.table.theta = other.theta
		for _, h := range s.table.iter() {
			if h >= s.table.theta {
				s.removeHash(h)
			}
		}
	}
	minTheta := s.table.theta
	for _, h := range other.entries {
		if h < minTheta {
			s.table.tryInsertHash(h)
		}
	}
	s.table.trim()
	s.table.metrics.RecordMerge()
}

// removeHash deletes a single entry from the table without triggering a
// resize; used only while lowering theta during Merge.
func (s *Sketch) removeHash(hash uint64) {
	idx, found := findInEntries(s.table.entries, hash, s.table.lgCurSize)
	if found && s.table.entries[idx] == hash {
		s.table.entries[idx] = 0
		s.table.numRetained--
	}
}

func sortUint64s(s []uint64) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
