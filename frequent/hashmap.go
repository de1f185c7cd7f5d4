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

// Package frequent implements the Misra-Gries reverse-purge Frequent-Items
// sketch (heavy hitters with one-sided error guarantees). The open-addressed
// slot array is adapted from the teacher's store/store.go sharded map shape
// (sharding by hash becomes probing by stride here), and the reverse-purge
// algorithm itself is ported from
// original_source/datasketches/src/frequencies/reverse_purge_long_hash_map.rs.
package frequent

import datasketches "github.com/dgraph-io/datasketches-go"

const loadFactor = 0.75

// hashMap is an open-addressed (key, count, drift) slot array with linear
// probing. Every slot stores a triple; an empty slot has drift (state) 0.
type hashMap[T comparable] struct {
	hashFn        func(T) uint64
	loadThreshold int
	keys          []T
	values        []int64
	states        []uint16
	numActive     int
}

func newHashMap[T comparable](mapSize int, hashFn func(T) uint64) *hashMap[T] {
	return &hashMap[T]{
		hashFn:        hashFn,
		loadThreshold: int(float64(mapSize) * loadFactor),
		keys:          make([]T, mapSize),
		values:        make([]int64, mapSize),
		states:        make([]uint16, mapSize),
	}
}

func (m *hashMap[T]) length() int    { return len(m.keys) }
func (m *hashMap[T]) capacity() int  { return m.loadThreshold }
func (m *hashMap[T]) numEntries() int { return m.numActive }

func (m *hashMap[T]) lgLength() uint8 {
	n := len(m.keys)
	lg := uint8(0)
	for n > 1 {
		n >>= 1
		lg++
	}
	return lg
}

func (m *hashMap[T]) get(key T) int64 {
	probe := m.hashProbe(key)
	if m.states[probe] > 0 {
		return m.values[probe]
	}
	return 0
}

func (m *hashMap[T]) hashProbe(key T) int {
	mask := len(m.keys) - 1
	probe := int(m.hashFn(key)) & mask
	if probe < 0 {
		probe += len(m.keys)
	}
	for m.states[probe] > 0 && m.keys[probe] != key {
		probe = (probe + 1) & mask
	}
	return probe
}

// adjustOrPutValue adds amount to key's stored count, inserting a new
// (key, amount, drift) slot if key is not already present.
func (m *hashMap[T]) adjustOrPutValue(key T, amount int64) {
	mask := len(m.keys) - 1
	probe := int(m.hashFn(key)) & mask
	if probe < 0 {
		probe += len(m.keys)
	}
	drift := 1
	for m.states[probe] != 0 && m.keys[probe] != key {
		probe = (probe + 1) & mask
		drift++
	}
	if m.states[probe] == 0 {
		m.keys[probe] = key
		m.values[probe] = amount
		m.states[probe] = uint16(drift)
		m.numActive++
	} else {
		m.values[probe] += amount
	}
}

func (m *hashMap[T]) keepOnlyPositiveCounts() {
	n := len(m.keys)
	firstProbe := n - 1
	for m.states[firstProbe] > 0 {
		firstProbe--
	}
	for probe := firstProbe - 1; probe >= 0; probe-- {
		if m.states[probe] > 0 && m.values[probe] <= 0 {
			m.hashDelete(probe)
			m.numActive--
		}
	}
	for probe := n - 1; probe >= firstProbe; probe-- {
		if m.states[probe] > 0 && m.values[probe] <= 0 {
			m.hashDelete(probe)
			m.numActive--
		}
	}
}

func (m *hashMap[T]) adjustAllValuesBy(amount int64) {
	for i := range m.values {
		m.values[i] += amount
	}
}

// purge samples up to sampleSize active counts, takes their median, subtracts
// it from every value, drops non-positives, and returns the median so the
// caller can fold it into a global offset.
func (m *hashMap[T]) purge(sampleSize int) int64 {
	const maxSampleSize = 1024
	limit := sampleSize
	if m.numActive < limit {
		limit = m.numActive
	}
	if maxSampleSize < limit {
		limit = maxSampleSize
	}
	samples := make([]int64, 0, limit)
	for i := 0; len(samples) < limit; i++ {
		if m.states[i] > 0 {
			samples = append(samples, m.values[i])
		}
	}
	mid := len(samples) / 2
	median := datasketches.QuickSelectInt64(samples, mid)
	m.adjustAllValuesBy(-median)
	m.keepOnlyPositiveCounts()
	return median
}

func (m *hashMap[T]) resize(newSize int) {
	oldKeys, oldValues, oldStates := m.keys, m.values, m.states
	m.keys = make([]T, newSize)
	m.values = make([]int64, newSize)
	m.states = make([]uint16, newSize)
	m.loadThreshold = int(float64(newSize) * loadFactor)
	m.numActive = 0
	for i := range oldKeys {
		if oldStates[i] > 0 {
			m.adjustOrPutValue(oldKeys[i], oldValues[i])
		}
	}
}

func (m *hashMap[T]) activeKeys() []T {
	out := make([]T, 0, m.numActive)
	for i := range m.keys {
		if m.states[i] > 0 {
			out = append(out, m.keys[i])
		}
	}
	return out
}

func (m *hashMap[T]) activeValues() []int64 {
	out := make([]int64, 0, m.numActive)
	for i := range m.values {
		if m.states[i] > 0 {
			out = append(out, m.values[i])
		}
	}
	return out
}

func (m *hashMap[T]) hashDelete(deleteProbe int) {
	m.states[deleteProbe] = 0
	drift := 1
	mask := len(m.keys) - 1
	probe := (deleteProbe + drift) & mask
	for m.states[probe] != 0 {
		if int(m.states[probe]) > drift {
			m.keys[deleteProbe] = m.keys[probe]
			m.values[deleteProbe] = m.values[probe]
			m.states[deleteProbe] = m.states[probe] - uint16(drift)
			m.states[probe] = 0
			drift = 0
			deleteProbe = probe
		}
		probe = (probe + 1) & mask
		drift++
	}
}
