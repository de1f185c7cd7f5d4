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

import (
	"math"
	"sort"
)

type sortedEntry[T Ordered] struct {
	item   T
	weight uint64
}

// sortedView is a weighted flattening of every level (level i contributes
// weight 2^i), sorted by item with weights turned into a running prefix
// sum, ported from original_source/datasketches/src/kll/sorted_view.rs.
type sortedView[T Ordered] struct {
	entries     []sortedEntry[T]
	totalWeight uint64
}

func buildSortedView[T Ordered](levels [][]T) *sortedView[T] {
	numRetained := 0
	for _, level := range levels {
		numRetained += len(level)
	}
	entries := make([]sortedEntry[T], 0, numRetained)
	for levelIdx, level := range levels {
		weight := uint64(1) << uint(levelIdx)
		for _, item := range level {
			entries = append(entries, sortedEntry[T]{item: item, weight: weight})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return less(entries[i].item, entries[j].item) })
	var total uint64
	for i := range entries {
		total += entries[i].weight
		entries[i].weight = total
	}
	return &sortedView[T]{entries: entries, totalWeight: total}
}

func (v *sortedView[T]) rank(item T, inclusive bool) float64 {
	if len(v.entries) == 0 {
		return 0
	}
	var idx int
	if inclusive {
		idx = upperBound(v.entries, item)
	} else {
		idx = lowerBound(v.entries, item)
	}
	if idx == 0 {
		return 0
	}
	return float64(v.entries[idx-1].weight) / float64(v.totalWeight)
}

func (v *sortedView[T]) quantile(rank float64, inclusive bool) T {
	var weight uint64
	if inclusive {
		weight = uint64(math.Ceil(rank * float64(v.totalWeight)))
	} else {
		weight = uint64(rank * float64(v.totalWeight))
	}

	var idx int
	if inclusive {
		idx = lowerBoundByWeight(v.entries, weight)
	} else {
		idx = upperBoundByWeight(v.entries, weight)
	}

	if idx >= len(v.entries) {
		return v.entries[len(v.entries)-1].item
	}
	return v.entries[idx].item
}

func (v *sortedView[T]) cdf(splitPoints []T, inclusive bool) []float64 {
	checkSplitPoints(splitPoints)
	ranks := make([]float64, 0, len(splitPoints)+1)
	for _, item := range splitPoints {
		ranks = append(ranks, v.rank(item, inclusive))
	}
	ranks = append(ranks, 1.0)
	return ranks
}

func (v *sortedView[T]) pmf(splitPoints []T, inclusive bool) []float64 {
	buckets := v.cdf(splitPoints, inclusive)
	for i := len(buckets) - 1; i >= 1; i-- {
		buckets[i] -= buckets[i-1]
	}
	return buckets
}

func checkSplitPoints[T Ordered](splitPoints []T) {
	n := len(splitPoints)
	if n == 1 && isNaN(splitPoints[0]) {
		panic("kll: split_points must not contain NaN values")
	}
	for i := 0; i < n-1; i++ {
		if isNaN(splitPoints[i]) {
			panic("kll: split_points must not contain NaN values")
		}
		if less(splitPoints[i], splitPoints[i+1]) {
			continue
		}
		panic("kll: split_points must be unique and monotonically increasing")
	}
}

func lowerBound[T Ordered](entries []sortedEntry[T], item T) int {
	left, right := 0, len(entries)
	for left < right {
		mid := left + (right-left)/2
		if less(entries[mid].item, item) {
			left = mid + 1
		} else {
			right = mid
		}
	}
	return left
}

func upperBound[T Ordered](entries []sortedEntry[T], item T) int {
	left, right := 0, len(entries)
	for left < right {
		mid := left + (right-left)/2
		if less(item, entries[mid].item) {
			right = mid
		} else {
			left = mid + 1
		}
	}
	return left
}

func lowerBoundByWeight[T Ordered](entries []sortedEntry[T], weight uint64) int {
	left, right := 0, len(entries)
	for left < right {
		mid := left + (right-left)/2
		if entries[mid].weight < weight {
			left = mid + 1
		} else {
			right = mid
		}
	}
	return left
}

func upperBoundByWeight[T Ordered](entries []sortedEntry[T], weight uint64) int {
	left, right := 0, len(entries)
	for left < right {
		mid := left + (right-left)/2
		if entries[mid].weight > weight {
			right = mid
		} else {
			left = mid + 1
		}
	}
	return left
}
