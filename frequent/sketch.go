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

package frequent

import (
	"sort"

	datasketches "github.com/dgraph-io/datasketches-go"
)

const (
	lgMinMapSize     = 3
	sampleSizeCap    = 1024
	epsilonFactor    = 3.5
	loadFactorNum    = 3
	loadFactorDenom  = 4
)

// ErrorType selects the query guarantee for FrequentItems: NoFalseNegatives
// includes every item whose upper bound exceeds the threshold;
// NoFalsePositives requires the lower bound to exceed it.
type ErrorType int

const (
	NoFalseNegatives ErrorType = iota
	NoFalsePositives
)

// Row is one result of a FrequentItems query.
type Row[T comparable] struct {
	Item       T
	Estimate   int64
	UpperBound int64
	LowerBound int64
}

// Sketch is a Misra-Gries reverse-purge frequent-items sketch over items of
// type T. T must be comparable; hashFn supplies the hash used for probing
// (it need not be cross-language compatible, per spec.md section 4.1 — only
// the wire format needs that property, and Frequent-Items' map layout is
// purely an internal implementation detail).
type Sketch[T comparable] struct {
	lgMaxMapSize uint8
	curMapCap    int
	offset       int64
	streamWeight int64
	sampleSize   int
	hashMap      *hashMap[T]
	hashFn       func(T) uint64
	metrics      *datasketches.Metrics
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this sketch's Update/Merge/resize/purge activity. Passing nil disables
// instrumentation.
func (s *Sketch[T]) SetMetrics(m *datasketches.Metrics) { s.metrics = m }

// NewSketch constructs a sketch whose internal map grows up to
// 2^exactLog2(maxMapSize) slots. maxMapSize must be a power of two.
func NewSketch[T comparable](maxMapSize uint32, hashFn func(T) uint64) (*Sketch[T], error) {
	lgMax, err := exactLog2(maxMapSize)
	if err != nil {
		return nil, err
	}
	return newWithLgMapSizes[T](lgMax, lgMinMapSize, hashFn), nil
}

func exactLog2(v uint32) (uint8, error) {
	if v == 0 || v&(v-1) != 0 {
		return 0, datasketches.NewInvalidArgument("max_map_size %d must be a power of two", v)
	}
	lg := uint8(0)
	for v > 1 {
		v >>= 1
		lg++
	}
	return lg, nil
}

func newWithLgMapSizes[T comparable](lgMaxMapSize, lgCurMapSize uint8, hashFn func(T) uint64) *Sketch[T] {
	lgMax := lgMaxMapSize
	if lgMax < lgMinMapSize {
		lgMax = lgMinMapSize
	}
	lgCur := lgCurMapSize
	if lgCur < lgMinMapSize {
		lgCur = lgMinMapSize
	}
	if lgCur > lgMax {
		panic("frequent: lg_cur_map_size must not exceed lg_max_map_size")
	}
	m := newHashMap[T](1<<lgCur, hashFn)
	maxMapCap := (1 << lgMax) * loadFactorNum / loadFactorDenom
	sampleSize := sampleSizeCap
	if maxMapCap < sampleSize {
		sampleSize = maxMapCap
	}
	return &Sketch[T]{
		lgMaxMapSize: lgMax,
		curMapCap:    m.capacity(),
		sampleSize:   sampleSize,
		hashMap:      m,
		hashFn:       hashFn,
	}
}

// IsEmpty reports whether no items have been retained.
func (s *Sketch[T]) IsEmpty() bool { return s.hashMap.numEntries() == 0 }

// NumActiveItems returns the number of items currently tracked.
func (s *Sketch[T]) NumActiveItems() int { return s.hashMap.numEntries() }

// TotalWeight returns the total weight of the stream observed so far.
func (s *Sketch[T]) TotalWeight() int64 { return s.streamWeight }

// Estimate returns max(0, stored+offset) for item.
func (s *Sketch[T]) Estimate(item T) int64 {
	v := s.hashMap.get(item)
	if v > 0 {
		return v + s.offset
	}
	return 0
}

// LowerBound returns the stored (possibly under-counted) value for item.
func (s *Sketch[T]) LowerBound(item T) int64 { return s.hashMap.get(item) }

// UpperBound returns stored+offset for item, regardless of sign.
func (s *Sketch[T]) UpperBound(item T) int64 { return s.hashMap.get(item) + s.offset }

// MaximumError returns offset, the global bound on upper_bound-lower_bound
// for any item.
func (s *Sketch[T]) MaximumError() int64 { return s.offset }

// Epsilon returns 3.5/max_map_size, the sketch's error guarantee.
func (s *Sketch[T]) Epsilon() float64 {
	return epsilonFactor / float64(uint64(1)<<s.lgMaxMapSize)
}

// MaximumMapCapacity returns the largest number of active entries the
// sketch's map will ever hold before reverse-purging.
func (s *Sketch[T]) MaximumMapCapacity() int {
	return (1 << s.lgMaxMapSize) * loadFactorNum / loadFactorDenom
}

// CurrentMapCapacity returns the load threshold of the current map size.
func (s *Sketch[T]) CurrentMapCapacity() int { return s.curMapCap }

// Update adds item with a count of one.
func (s *Sketch[T]) Update(item T) { s.UpdateWithCount(item, 1) }

// UpdateWithCount adds item with the given count. count must be
// nonnegative; a negative count is a caller contract violation and panics,
// per spec.md section 7's policy that arithmetic builders panic on
// already-invalid input rather than return an error.
func (s *Sketch[T]) UpdateWithCount(item T, count int64) {
	if count == 0 {
		return
	}
	if count < 0 {
		panic("frequent: count may not be negative")
	}
	s.streamWeight += count
	s.hashMap.adjustOrPutValue(item, count)
	s.maybeResizeOrPurge()
	s.metrics.RecordUpdate(s.hashFn(item))
}

func (s *Sketch[T]) maybeResizeOrPurge() {
	if s.hashMap.numEntries() <= s.curMapCap {
		return
	}
	if s.hashMap.lgLength() < s.lgMaxMapSize {
		s.hashMap.resize(s.hashMap.length() * 2)
		s.curMapCap = s.hashMap.capacity()
		s.metrics.RecordResize()
		return
	}
	delta := s.hashMap.purge(s.sampleSize)
	s.offset += delta
	s.metrics.RecordCompaction()
	if s.hashMap.numEntries() > s.MaximumMapCapacity() {
		panic("frequent: purge did not reduce number of active items")
	}
}

// Merge folds other's entries into s. other's stream weight is accounted
// for exactly: streamWeight is restored to the pre-merge sum after folding
// in other's entries, so purges triggered mid-merge do not double-count,
// per spec.md section 4.5.
func (s *Sketch[T]) Merge(other *Sketch[T]) {
	if other.IsEmpty() {
		return
	}
	mergedTotal := s.streamWeight + other.streamWeight
	for _, key := range other.hashMap.activeKeys() {
		s.UpdateWithCount(key, other.hashMap.get(key))
	}
	s.offset += other.offset
	s.streamWeight = mergedTotal
	s.metrics.RecordMerge()
}

// Reset returns the sketch to its initial empty state.
func (s *Sketch[T]) Reset() {
	fresh := newWithLgMapSizes[T](s.lgMaxMapSize, lgMinMapSize, s.hashFn)
	fresh.metrics = s.metrics
	*s = *fresh
}

// FrequentItems returns items exceeding the sketch's own maximum-error
// threshold under errType.
func (s *Sketch[T]) FrequentItems(errType ErrorType) []Row[T] {
	return s.FrequentItemsWithThreshold(errType, s.offset)
}

// FrequentItemsWithThreshold returns items exceeding threshold under errType.
// threshold is clamped up to at least offset: the reference implementation's
// documented behavior (spec.md's Open Questions leaves unspecified whether
// a lower user threshold is honored; this module follows the source clamp).
func (s *Sketch[T]) FrequentItemsWithThreshold(errType ErrorType, threshold int64) []Row[T] {
	if threshold < s.offset {
		threshold = s.offset
	}
	var rows []Row[T]
	for i := range s.hashMap.keys {
		if s.hashMap.states[i] == 0 {
			continue
		}
		lower := s.hashMap.values[i]
		upper := lower + s.offset
		include := false
		switch errType {
		case NoFalseNegatives:
			include = upper > threshold
		case NoFalsePositives:
			include = lower > threshold
		}
		if include {
			rows = append(rows, Row[T]{
				Item:       s.hashMap.keys[i],
				Estimate:   upper,
				UpperBound: upper,
				LowerBound: lower,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Estimate > rows[j].Estimate })
	return rows
}
