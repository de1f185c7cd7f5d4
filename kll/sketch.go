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

package kll

import datasketches "github.com/dgraph-io/datasketches-go"

// Sketch estimates quantiles and ranks over a stream of items of type T,
// ported from original_source/datasketches/src/kll/sketch.rs.
type Sketch[T Ordered] struct {
	k                 uint16
	m                 uint8
	minK              uint16
	n                 uint64
	isLevelZeroSorted bool
	levels            [][]T
	minItem           *T
	maxItem           *T
	rng               datasketches.RandomSource
	metrics           *datasketches.Metrics
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this sketch's Update/Merge/compaction activity. Passing nil disables
// instrumentation.
func (s *Sketch[T]) SetMetrics(m *datasketches.Metrics) { s.metrics = m }

// NewSketch constructs a sketch with the given k (8 <= k <= 65535),
// drawing downsampling parity bits from the process default RandomSource.
func NewSketch[T Ordered](k uint16) *Sketch[T] {
	return NewSketchWithRandomSource[T](k, datasketches.NewDefaultXorShift64())
}

// NewSketchWithRandomSource is NewSketch with an injectable RandomSource,
// used by tests that need deterministic downsampling.
func NewSketchWithRandomSource[T Ordered](k uint16, rng datasketches.RandomSource) *Sketch[T] {
	if k < MinK || k > MaxK {
		panic("kll: k must be in [8, 65535]")
	}
	return &Sketch[T]{
		k:      k,
		m:      DefaultM,
		minK:   k,
		levels: [][]T{nil},
		rng:    rng,
	}
}

func (s *Sketch[T]) K() uint16    { return s.k }
func (s *Sketch[T]) MinK() uint16 { return s.minK }
func (s *Sketch[T]) N() uint64    { return s.n }
func (s *Sketch[T]) IsEmpty() bool { return s.n == 0 }

func (s *Sketch[T]) NumRetained() int {
	total := 0
	for _, level := range s.levels {
		total += len(level)
	}
	return total
}

func (s *Sketch[T]) IsEstimationMode() bool { return len(s.levels) > 1 }

func (s *Sketch[T]) MinItem() (T, bool) {
	if s.minItem == nil {
		var zero T
		return zero, false
	}
	return *s.minItem, true
}

func (s *Sketch[T]) MaxItem() (T, bool) {
	if s.maxItem == nil {
		var zero T
		return zero, false
	}
	return *s.maxItem, true
}

// Update adds item to the sketch. NaN values are silently ignored.
func (s *Sketch[T]) Update(item T) {
	if isNaN(item) {
		return
	}
	s.updateMinMax(item)
	s.internalUpdate(item)
	s.metrics.RecordUpdate(s.n)
}

// Merge folds other into s. Panics if the two sketches have incompatible m
// (always true in practice since m is fixed at construction).
func (s *Sketch[T]) Merge(other *Sketch[T]) {
	if other.IsEmpty() {
		return
	}
	if s.m != other.m {
		panic("kll: incompatible m values")
	}

	s.updateMinMaxFromOther(other)

	finalN := s.n + other.n
	for _, item := range other.levels[0] {
		s.internalUpdate(item)
	}

	if len(other.levels) >= 2 {
		s.mergeHigherLevels(other)
	}

	s.n = finalN
	if other.IsEstimationMode() && other.minK < s.minK {
		s.minK = other.minK
	}
	s.metrics.RecordMerge()
}

// Rank returns the normalized rank of item. ok is false on an empty sketch.
func (s *Sketch[T]) Rank(item T, inclusive bool) (rank float64, ok bool) {
	if s.IsEmpty() {
		return 0, false
	}
	view := buildSortedView(s.levels)
	return view.rank(item, inclusive), true
}

// Quantile returns the item at normalized rank r (0<=r<=1). ok is false on
// an empty sketch.
func (s *Sketch[T]) Quantile(r float64, inclusive bool) (item T, ok bool) {
	if s.IsEmpty() {
		var zero T
		return zero, false
	}
	if r < 0.0 || r > 1.0 {
		panic("kll: rank must be in [0.0, 1.0]")
	}
	if r == 0 {
		return *s.minItem, true
	}
	if r == 1 {
		return *s.maxItem, true
	}
	view := buildSortedView(s.levels)
	return view.quantile(r, inclusive), true
}

// Cdf returns the approximate CDF evaluated at splitPoints plus a trailing
// 1.0, or nil on an empty sketch.
func (s *Sketch[T]) Cdf(splitPoints []T, inclusive bool) []float64 {
	if s.IsEmpty() {
		return nil
	}
	view := buildSortedView(s.levels)
	return view.cdf(splitPoints, inclusive)
}

// Pmf returns the approximate PMF over the buckets defined by splitPoints,
// or nil on an empty sketch.
func (s *Sketch[T]) Pmf(splitPoints []T, inclusive bool) []float64 {
	if s.IsEmpty() {
		return nil
	}
	view := buildSortedView(s.levels)
	return view.pmf(splitPoints, inclusive)
}

// NormalizedRankError returns the sketch's closed-form error bound for the
// configured (min) k.
func (s *Sketch[T]) NormalizedRankError(pmf bool) float64 {
	return normalizedRankError(s.minK, pmf)
}

func (s *Sketch[T]) capacity() int {
	return int(computeTotalCapacity(s.k, s.m, len(s.levels)))
}

func (s *Sketch[T]) levelOffsets() []uint32 {
	capacity := uint32(s.capacity())
	retained := uint32(s.NumRetained())
	if capacity < retained {
		panic("kll: capacity must be >= retained")
	}
	offsets := make([]uint32, 0, len(s.levels)+1)
	offset := capacity - retained
	offsets = append(offsets, offset)
	for _, level := range s.levels {
		offset += uint32(len(level))
		offsets = append(offsets, offset)
	}
	return offsets
}

func (s *Sketch[T]) updateMinMax(item T) {
	if s.minItem == nil {
		v := item
		s.minItem = &v
		v2 := item
		s.maxItem = &v2
		return
	}
	if less(item, *s.minItem) {
		v := item
		s.minItem = &v
	}
	if less(*s.maxItem, item) {
		v := item
		s.maxItem = &v
	}
}

func (s *Sketch[T]) updateMinMaxFromOther(other *Sketch[T]) {
	if s.minItem == nil && s.maxItem == nil {
		if other.minItem != nil {
			v := *other.minItem
			s.minItem = &v
		}
		if other.maxItem != nil {
			v := *other.maxItem
			s.maxItem = &v
		}
		return
	}
	if other.minItem != nil && less(*other.minItem, *s.minItem) {
		v := *other.minItem
		s.minItem = &v
	}
	if other.maxItem != nil && less(*s.maxItem, *other.maxItem) {
		v := *other.maxItem
		s.maxItem = &v
	}
}

func (s *Sketch[T]) internalUpdate(item T) {
	if s.NumRetained() >= s.capacity() {
		s.compressWhileUpdating()
	}
	s.n++
	s.isLevelZeroSorted = false
	s.levels[0] = prepend(s.levels[0], item)
}

func prepend[T any](slice []T, item T) []T {
	out := make([]T, 0, len(slice)+1)
	out = append(out, item)
	out = append(out, slice...)
	return out
}

func (s *Sketch[T]) randomBit() bool {
	return s.rng.NextBool()
}

func (s *Sketch[T]) compressWhileUpdating() {
	s.metrics.RecordCompaction()
	level := s.findLevelToCompact()
	if level+1 == len(s.levels) {
		s.levels = append(s.levels, nil)
	}

	current := s.levels[level]
	above := s.levels[level+1]
	s.levels[level] = nil
	s.levels[level+1] = nil

	odd := len(current)%2 == 1
	var leftover *T
	if odd {
		v := current[0]
		leftover = &v
		current = current[1:]
	}

	if level == 0 && !s.isLevelZeroSorted {
		current = sortedCopy(current)
	}

	useUp := len(above) == 0
	promoted := downsample(current, s.randomBit(), useUp)
	if len(above) == 0 {
		above = promoted
	} else {
		above = mergeSortedVec(promoted, above)
	}
	s.levels[level+1] = above

	var newLevel []T
	if leftover != nil {
		newLevel = append(newLevel, *leftover)
	}
	s.levels[level] = newLevel
}

func sortedCopy[T Ordered](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (s *Sketch[T]) findLevelToCompact() int {
	numLevels := len(s.levels)
	for level := 0; level < numLevels; level++ {
		pop := uint32(len(s.levels[level]))
		cap := levelCapacity(s.k, numLevels, level, s.m)
		if pop >= cap {
			return level
		}
	}
	panic("kll: no level to compact")
}

func (s *Sketch[T]) mergeHigherLevels(other *Sketch[T]) {
	provisionalLevels := len(s.levels)
	if len(other.levels) > provisionalLevels {
		provisionalLevels = len(other.levels)
	}
	selfLevels := s.levels
	s.levels = nil
	workLevels := make([][]T, provisionalLevels)
	workLevels[0] = selfLevels[0]

	for level := 1; level < provisionalLevels; level++ {
		var left []T
		if level < len(selfLevels) {
			left = selfLevels[level]
		}
		var right []T
		if level < len(other.levels) {
			right = append([]T(nil), other.levels[level]...)
		}

		switch {
		case len(left) == 0:
			workLevels[level] = right
		case len(right) == 0:
			workLevels[level] = left
		default:
			workLevels[level] = mergeSortedVec(left, right)
		}
	}

	s.levels = generalCompress(workLevels, s.k, s.m, s.isLevelZeroSorted, s.rng)
}

func (s *Sketch[T]) totalWeight() uint64 {
	sizes := make([]int, len(s.levels))
	for i, level := range s.levels {
		sizes[i] = len(level)
	}
	return sumTheSampleWeights(sizes)
}

// generalCompress repeats the compaction pass while the total retained
// count exceeds the target capacity, respecting per-level capacities.
// Ported from original_source/datasketches/src/kll/sketch.rs's
// general_compress, used by Merge to blend levels after a sorted merge.
func generalCompress[T Ordered](levelsIn [][]T, k uint16, m uint8, isLevelZeroSorted bool, rng datasketches.RandomSource) [][]T {
	currentNumLevels := len(levelsIn)
	currentItemCount := 0
	for _, level := range levelsIn {
		currentItemCount += len(level)
	}
	targetItemCount := int(computeTotalCapacity(k, m, currentNumLevels))
	levelsOut := make([][]T, 0, currentNumLevels+1)

	currentLevel := 0
	for currentLevel < currentNumLevels {
		if currentLevel+1 >= len(levelsIn) {
			levelsIn = append(levelsIn, nil)
		}

		rawPop := len(levelsIn[currentLevel])
		cap := int(levelCapacity(k, currentNumLevels, currentLevel, m))

		if currentItemCount < targetItemCount || rawPop < cap {
			levelsOut = append(levelsOut, levelsIn[currentLevel])
			levelsIn[currentLevel] = nil
		} else {
			current := levelsIn[currentLevel]
			above := levelsIn[currentLevel+1]
			levelsIn[currentLevel] = nil
			levelsIn[currentLevel+1] = nil

			odd := len(current)%2 == 1
			var leftover *T
			if odd {
				v := current[0]
				leftover = &v
				current = current[1:]
			}

			if currentLevel == 0 && !isLevelZeroSorted {
				current = sortedCopy(current)
			}

			useUp := len(above) == 0
			promoted := downsample(current, rng.NextBool(), useUp)
			promotedLen := len(promoted)
			if len(above) == 0 {
				above = promoted
			} else {
				above = mergeSortedVec(promoted, above)
			}
			levelsIn[currentLevel+1] = above

			var outLevel []T
			if leftover != nil {
				outLevel = append(outLevel, *leftover)
			}
			levelsOut = append(levelsOut, outLevel)

			currentItemCount -= promotedLen
			if currentItemCount < 0 {
				currentItemCount = 0
			}

			if currentLevel == currentNumLevels-1 {
				currentNumLevels++
				targetItemCount += int(levelCapacity(k, currentNumLevels, 0, m))
				for len(levelsIn) < currentNumLevels+1 {
					levelsIn = append(levelsIn, nil)
				}
			}
		}
		currentLevel++
	}

	if len(levelsOut) > currentNumLevels {
		levelsOut = levelsOut[:currentNumLevels]
	}
	return levelsOut
}
