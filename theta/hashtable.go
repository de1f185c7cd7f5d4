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

// hashTable is the open-addressed sample of sub-theta hashes backing both
// Sketch and Intersection, ported from
// original_source/datasketches/src/theta/hash_table.rs.
type hashTable struct {
	lgCurSize           uint8
	lgNomSize           uint8
	lgMaxSize           uint8
	resizeFactor        ResizeFactor
	samplingProbability float32
	hashSeed            uint64

	isEmptyFlag bool
	theta       uint64
	entries     []uint64
	numRetained int
	metrics     *datasketches.Metrics
}

func newHashTable(lgNomSize uint8, resizeFactor ResizeFactor, samplingProbability float32, hashSeed uint64) *hashTable {
	lgMaxSize := lgNomSize + 1
	lgCurSize := startingSubMultiple(lgMaxSize, MinLgK, resizeFactor.LgValue())
	return newHashTableWithState(lgCurSize, lgNomSize, resizeFactor, samplingProbability,
		startingThetaFromSamplingProbability(samplingProbability), hashSeed, true)
}

func newHashTableWithState(lgCurSize, lgNomSize uint8, resizeFactor ResizeFactor, samplingProbability float32,
	theta uint64, hashSeed uint64, isEmpty bool) *hashTable {
	lgMaxSize := lgNomSize + 1
	if lgCurSize > lgMaxSize {
		panic("theta: lg_cur_size must be <= lg_nom_size + 1")
	}
	size := 0
	if lgCurSize > 0 {
		size = 1 << lgCurSize
	}
	return &hashTable{
		lgCurSize:           lgCurSize,
		lgNomSize:           lgNomSize,
		lgMaxSize:           lgMaxSize,
		resizeFactor:        resizeFactor,
		samplingProbability: samplingProbability,
		hashSeed:            hashSeed,
		isEmptyFlag:         isEmpty,
		theta:               theta,
		entries:             make([]uint64, size),
	}
}

// newHashTableFromEntries reconstructs a table (used by deserialize) sized
// exactly to hold entries without triggering a resize/rebuild.
func newHashTableFromEntries(lgNomSize uint8, hashSeed uint64, theta uint64, entries []uint64) *hashTable {
	lgSize := lgSizeFromCountForRebuild(len(entries), resizeThreshold)
	if lgSize > lgNomSize+1 {
		lgSize = lgNomSize + 1
	}
	t := newHashTableWithState(lgSize, lgNomSize, X1, 1.0, theta, hashSeed, len(entries) == 0)
	for _, h := range entries {
		if !t.tryInsertHash(h) {
			panic("theta: duplicate or corrupted hash entry on deserialize")
		}
	}
	return t
}

// hashAndScreen hashes data under the table's seed, clearing the sign bit
// for Java wire compatibility, and returns 0 if the value would be dropped
// by theta screening (spec.md section 4.7's update contract).
func (t *hashTable) hashAndScreen(data []byte) uint64 {
	t.isEmptyFlag = false
	h := datasketches.HashBytes(data, t.hashSeed).H1 >> 1
	if h == 0 || h >= t.theta {
		return 0
	}
	return h
}

func findInEntries(entries []uint64, key uint64, lgSize uint8) (int, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	size := len(entries)
	mask := uint64(size - 1)
	stride := getStride(key, lgSize)
	index := key & mask
	loopIndex := index
	for {
		probe := entries[index]
		if probe == 0 || probe == key {
			return int(index), true
		}
		index = (index + stride) & mask
		if index == loopIndex {
			return 0, false
		}
	}
}

// tryInsertHash inserts a pre-hashed, pre-screened value. Returns false if
// the hash is zero, at/above theta, or already present.
func (t *hashTable) tryInsertHash(hash uint64) bool {
	t.isEmptyFlag = false
	if hash == 0 || hash >= t.theta {
		return false
	}
	idx, found := findInEntries(t.entries, hash, t.lgCurSize)
	if !found {
		panic("theta: resize or rebuild should guarantee the entry is always found")
	}
	if t.entries[idx] == hash {
		return false
	}
	t.entries[idx] = hash
	t.numRetained++

	capacity := t.capacity()
	if t.numRetained > capacity {
		if t.lgCurSize <= t.lgNomSize {
			t.resize()
			t.metrics.RecordResize()
		} else {
			t.rebuild()
			t.metrics.RecordRebuild()
		}
	}
	return true
}

func (t *hashTable) capacity() int {
	fraction := resizeThreshold
	if t.lgCurSize > t.lgNomSize {
		fraction = rebuildThreshold
	}
	return int(fraction * float64(len(t.entries)))
}

func (t *hashTable) resize() {
	newLgSize := t.lgCurSize + t.resizeFactor.LgValue()
	if newLgSize > t.lgMaxSize {
		newLgSize = t.lgMaxSize
	}
	newEntries := make([]uint64, 1<<newLgSize)
	for _, entry := range t.entries {
		if entry != 0 {
			idx, found := findInEntries(newEntries, entry, newLgSize)
			if !found {
				panic("theta: find_in_entries must find a slot for a non-empty entry")
			}
			newEntries[idx] = entry
		}
	}
	t.entries = newEntries
	t.lgCurSize = newLgSize
}

// rebuild keeps the k = 2^lg_nom_size smallest retained hashes and raises theta
// to the (k+1)-th smallest, using the root package's quickselect.
func (t *hashTable) rebuild() {
	active := make([]uint64, 0, t.numRetained)
	for _, e := range t.entries {
		if e != 0 {
			active = append(active, e)
		}
	}
	k := 1 << t.lgNomSize
	if k >= len(active) {
		t.theta = MaxTheta
	} else {
		t.theta = datasketches.QuickSelectUint64(active, k)
	}

	size := 1 << t.lgCurSize
	newEntries := make([]uint64, size)
	numInserted := 0
	for i := 0; i < len(active) && i < k; i++ {
		entry := active[i]
		idx, found := findInEntries(newEntries, entry, t.lgCurSize)
		if !found {
			panic("theta: find_in_entries must find a slot for a non-empty entry")
		}
		newEntries[idx] = entry
		numInserted++
	}

	t.numRetained = numInserted
	t.entries = newEntries
}

// trim forces a rebuild if more than the nominal size is currently retained.
func (t *hashTable) trim() {
	if t.numRetained > 1<<t.lgNomSize {
		t.rebuild()
		t.metrics.RecordRebuild()
	}
}

func (t *hashTable) reset() {
	initTheta := startingThetaFromSamplingProbability(t.samplingProbability)
	initLgCur := startingSubMultiple(t.lgNomSize+1, MinLgK, t.resizeFactor.LgValue())
	if len(t.entries) != 1<<initLgCur {
		t.entries = make([]uint64, 1<<initLgCur)
	} else {
		for i := range t.entries {
			t.entries[i] = 0
		}
	}
	t.numRetained = 0
	t.theta = initTheta
	t.isEmptyFlag = true
	t.lgCurSize = initLgCur
}

func (t *hashTable) iter() []uint64 {
	out := make([]uint64, 0, t.numRetained)
	for _, e := range t.entries {
		if e != 0 {
			out = append(out, e)
		}
	}
	return out
}

func (t *hashTable) seedHash() uint16 { return datasketches.SeedHash(t.hashSeed) }

// lgSizeFromCountForRebuild picks the smallest table size a count of
// entries can be inserted into without triggering a resize or rebuild
// under the given load factor, used when an intersection operator takes
// ownership of a fresh table sized to its first/matched input.
func lgSizeFromCountForRebuild(count int, loadFactor float64) uint8 {
	lg := MinLgK
	for float64(count) > loadFactor*float64(uint64(1)<<lg) {
		lg++
	}
	return lg
}
