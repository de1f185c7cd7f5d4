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

// Package density implements a streaming kernel density estimator
// (spec.md section 4.10): a per-level coreset of d-dimensional points,
// compacted by a discrepancy-minimizing random-sign selection whenever
// the sketch holds too many retained points for its current level count,
// the same level-weighted-sample idea kll uses for quantiles. Grounded on
// original_source/datasketches/src/density/{sketch,serialization}.rs.
package density

import (
	"fmt"

	datasketches "github.com/dgraph-io/datasketches-go"
)

// Number is the set of floating-point element types a point's
// coordinates may use, mirroring the reference's DensityValue trait
// (implemented there for f32 and f64 only).
type Number interface {
	~float32 | ~float64
}

// Sketch estimates a kernel density function over a stream of
// dim-dimensional points of type T. Grounded on
// original_source/datasketches/src/density/sketch.rs's DensitySketch.
type Sketch[T Number] struct {
	kernel      Kernel
	rng         datasketches.RandomSource
	k           uint16
	dim         uint32
	numRetained uint32
	n           uint64
	levels      [][][]T
	metrics     *datasketches.Metrics
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this sketch's Update/Merge/compaction activity. Passing nil disables
// instrumentation.
func (s *Sketch[T]) SetMetrics(m *datasketches.Metrics) { s.metrics = m }

// NewSketch creates an empty sketch with the Gaussian kernel. k must be
// at least 2; dim is the fixed dimensionality every point must match.
func NewSketch[T Number](k uint16, dim uint32) *Sketch[T] {
	return NewSketchWithKernel[T](k, dim, Gaussian())
}

// NewSketchWithKernel is NewSketch with an injectable Kernel.
func NewSketchWithKernel[T Number](k uint16, dim uint32, kernel Kernel) *Sketch[T] {
	return NewSketchWithKernelAndRandomSource[T](k, dim, kernel, datasketches.NewDefaultXorShift64())
}

// NewSketchWithKernelAndRandomSource is NewSketchWithKernel with an
// injectable RandomSource, used by tests that need deterministic
// compaction.
func NewSketchWithKernelAndRandomSource[T Number](k uint16, dim uint32, kernel Kernel, rng datasketches.RandomSource) *Sketch[T] {
	if k < MinK {
		panic(fmt.Sprintf("density: k must be > 1. Found: %d", k))
	}
	return &Sketch[T]{
		kernel: kernel,
		rng:    rng,
		k:      k,
		dim:    dim,
		levels: [][][]T{nil},
	}
}

const MinK uint16 = 2

func (s *Sketch[T]) K() uint16              { return s.k }
func (s *Sketch[T]) Dim() uint32            { return s.dim }
func (s *Sketch[T]) N() uint64              { return s.n }
func (s *Sketch[T]) NumRetained() uint32    { return s.numRetained }
func (s *Sketch[T]) IsEmpty() bool          { return s.numRetained == 0 }
func (s *Sketch[T]) IsEstimationMode() bool { return len(s.levels) > 1 }

// Update folds point into the sketch, compacting levels first as needed
// to keep num_retained < k*num_levels.
//
// Panics if point's length does not match the sketch's configured
// dimension.
func (s *Sketch[T]) Update(point []T) {
	if uint32(len(point)) != s.dim {
		panic("density: dimension mismatch")
	}
	for s.numRetained >= uint32(s.k)*uint32(len(s.levels)) {
		s.compact()
	}
	cp := make([]T, len(point))
	copy(cp, point)
	s.levels[0] = append(s.levels[0], cp)
	s.numRetained++
	s.n++
	s.metrics.RecordUpdate(s.n)
}

// Merge absorbs other's retained points into this sketch, concatenating
// level by level and then repeatedly compacting until the retained-count
// invariant holds again.
//
// Panics if the two sketches' dimensions differ.
func (s *Sketch[T]) Merge(other *Sketch[T]) {
	if other.IsEmpty() {
		return
	}
	if other.dim != s.dim {
		panic("density: dimension mismatch")
	}
	for len(s.levels) < len(other.levels) {
		s.levels = append(s.levels, nil)
	}
	for height, level := range other.levels {
		s.levels[height] = append(s.levels[height], level...)
	}
	s.numRetained += other.numRetained
	s.n += other.n
	for s.numRetained >= uint32(s.k)*uint32(len(s.levels)) {
		s.compact()
	}
	s.metrics.RecordMerge()
}

// Estimate returns the kernel density estimate at point:
// (1/n) * sum_level 2^level * sum_p K(p, point).
//
// Panics if the sketch is empty or point's dimension does not match.
func (s *Sketch[T]) Estimate(point []T) T {
	if s.IsEmpty() {
		panic("density: operation is undefined for an empty sketch")
	}
	if uint32(len(point)) != s.dim {
		panic("density: dimension mismatch")
	}
	q := toFloat64Slice(point)
	n := float64(s.n)
	var density float64
	for height, level := range s.levels {
		hw := weightForLevel(height)
		for _, p := range level {
			density += hw * s.kernel.evaluate(toFloat64Slice(p), q) / n
		}
	}
	return T(density)
}

func weightForLevel(level int) float64 {
	return float64(uint64(1) << uint(level))
}

func toFloat64Slice[T Number](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// compact finds the lowest level whose size has reached k and compacts
// it, promoting survivors to the next level up.
func (s *Sketch[T]) compact() {
	for height := range s.levels {
		if len(s.levels[height]) >= int(s.k) {
			if height+1 >= len(s.levels) {
				s.levels = append(s.levels, nil)
			}
			s.compactLevel(height)
			return
		}
	}
}

// compactLevel performs the discrepancy-minimizing random-sign selection
// described in spec.md section 4.10: shuffle the level, draw a random
// first sign bit, then for each subsequent point choose the sign that
// keeps the running kernel-weighted discrepancy against already-decided
// points closest to zero. Points assigned true are promoted to the next
// level; the rest are dropped. This keeps
// sum_level |level|*2^level == n in expectation, since each point
// promoted survives with probability 1/2 independent of its level.
// Grounded on sketch.rs's compact_level.
func (s *Sketch[T]) compactLevel(height int) {
	level := s.levels[height]
	n := len(level)
	if n == 0 {
		return
	}
	s.metrics.RecordCompaction()
	shuffle(s.rng, level)

	points := make([][]float64, n)
	for i, p := range level {
		points[i] = toFloat64Slice(p)
	}

	bits := make([]bool, n)
	bits[0] = s.rng.NextBool()
	for i := 1; i < n; i++ {
		var delta float64
		for j := 0; j < i; j++ {
			sign := -1.0
			if bits[j] {
				sign = 1.0
			}
			delta += sign * s.kernel.evaluate(points[i], points[j])
		}
		bits[i] = delta < 0
	}

	s.levels[height] = nil
	for i, p := range level {
		if bits[i] {
			s.levels[height+1] = append(s.levels[height+1], p)
		} else {
			s.numRetained--
		}
	}
}

func shuffle[T any](rng datasketches.RandomSource, slice []T) {
	for i := len(slice) - 1; i > 0; i-- {
		j := int(rng.NextU64() % uint64(i+1))
		slice[i], slice[j] = slice[j], slice[i]
	}
}
