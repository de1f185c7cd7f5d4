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

const (
	familyID      byte = 15
	serialVersion1     = 1
	serialVersion2     = 2
	preambleShort byte = 2
	preambleFull  byte = 5

	flagEmpty            byte = 1 << 0
	flagLevelZeroSorted   byte = 1 << 1
	flagSingleItem        byte = 1 << 2

	emptySizeBytes      = 8
	dataStartSingleItem = 8
	dataStart           = 20
)

// itemCodec adapts Sketch[T]'s wire format to a concrete item type, playing
// the same role as the KllItem trait's serialize/deserialize/serialized_size
// methods in the Rust reference.
type itemCodec[T Ordered] struct {
	size  func(T) int
	write func(*datasketches.ByteBuilder, T)
	read  func(*datasketches.ByteReader) (T, error)
}

func float32Codec() itemCodec[float32] {
	return itemCodec[float32]{
		size:  func(float32) int { return 4 },
		write: func(b *datasketches.ByteBuilder, v float32) { b.WriteF32LE(v) },
		read:  func(r *datasketches.ByteReader) (float32, error) { return r.ReadF32LE("kll_item") },
	}
}

func float64Codec() itemCodec[float64] {
	return itemCodec[float64]{
		size:  func(float64) int { return 8 },
		write: func(b *datasketches.ByteBuilder, v float64) { b.WriteF64LE(v) },
		read:  func(r *datasketches.ByteReader) (float64, error) { return r.ReadF64LE("kll_item") },
	}
}

func int64Codec() itemCodec[int64] {
	return itemCodec[int64]{
		size:  func(int64) int { return 8 },
		write: func(b *datasketches.ByteBuilder, v int64) { b.WriteU64LE(uint64(v)) },
		read: func(r *datasketches.ByteReader) (int64, error) {
			v, err := r.ReadU64LE("kll_item")
			return int64(v), err
		},
	}
}

// Serialize writes s to its wire-compatible byte representation, per
// spec.md section 6's KLL preamble layout.
func serialize[T Ordered](s *Sketch[T], codec itemCodec[T]) []byte {
	isEmpty := s.IsEmpty()
	isSingleItem := s.n == 1

	preambleInts := preambleFull
	if isEmpty || isSingleItem {
		preambleInts = preambleShort
	}
	serialVer := byte(serialVersion1)
	if isSingleItem {
		serialVer = byte(serialVersion2)
	}

	var flags byte
	if isEmpty {
		flags |= flagEmpty
	}
	if s.isLevelZeroSorted {
		flags |= flagLevelZeroSorted
	}
	if isSingleItem {
		flags |= flagSingleItem
	}

	size := estimateSerializedSize(s, codec, isEmpty, isSingleItem)
	b := datasketches.NewByteBuilder(size)
	b.WriteU8(preambleInts)
	b.WriteU8(serialVer)
	b.WriteU8(familyID)
	b.WriteU8(flags)
	b.WriteU16LE(s.k)
	b.WriteU8(s.m)
	b.WriteU8(0)

	if isEmpty {
		return b.Bytes()
	}

	if !isSingleItem {
		b.WriteU64LE(s.n)
		b.WriteU16LE(s.minK)
		b.WriteU8(uint8(len(s.levels)))
		b.WriteU8(0)

		offsets := s.levelOffsets()
		for i := 0; i < len(s.levels); i++ {
			b.WriteU32LE(offsets[i])
		}

		if s.minItem != nil {
			codec.write(b, *s.minItem)
		}
		if s.maxItem != nil {
			codec.write(b, *s.maxItem)
		}
	}

	for _, level := range s.levels {
		for _, item := range level {
			codec.write(b, item)
		}
	}

	return b.Bytes()
}

func estimateSerializedSize[T Ordered](s *Sketch[T], codec itemCodec[T], isEmpty, isSingleItem bool) int {
	if isEmpty {
		return emptySizeBytes
	}
	if isSingleItem {
		return dataStartSingleItem + codec.size(s.levels[0][0])
	}
	size := dataStart + len(s.levels)*4
	if s.minItem != nil {
		size += codec.size(*s.minItem)
	}
	if s.maxItem != nil {
		size += codec.size(*s.maxItem)
	}
	for _, level := range s.levels {
		for _, item := range level {
			size += codec.size(item)
		}
	}
	return size
}

// deserialize parses a byte slice produced by serialize, per spec.md
// section 6's KLL preamble layout.
func deserialize[T Ordered](buf []byte, codec itemCodec[T]) (*Sketch[T], error) {
	r := datasketches.NewByteReader(buf)

	preambleInts, err := r.ReadU8("preamble_ints")
	if err != nil {
		return nil, err
	}
	serialVer, err := r.ReadU8("serial_version")
	if err != nil {
		return nil, err
	}
	fam, err := r.ReadU8("family_id")
	if err != nil {
		return nil, err
	}
	if fam != familyID {
		return nil, datasketches.NewInvalidFamily(familyID, fam, "kll")
	}
	flags, err := r.ReadU8("flags")
	if err != nil {
		return nil, err
	}
	k, err := r.ReadU16LE("k")
	if err != nil {
		return nil, err
	}
	m, err := r.ReadU8("m")
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU8("unused"); err != nil {
		return nil, err
	}
	if m != DefaultM {
		return nil, datasketches.NewInvalidData("invalid m: expected %d, got %d", DefaultM, m)
	}
	if serialVer != serialVersion1 && serialVer != serialVersion2 {
		return nil, datasketches.NewUnsupportedSerialVersion(serialVersion1, serialVer)
	}
	if k < MinK || k > MaxK {
		return nil, datasketches.NewInvalidData("k out of range: %d", k)
	}

	isEmpty := flags&flagEmpty != 0
	isSingleItem := flags&flagSingleItem != 0
	isLevelZeroSorted := flags&flagLevelZeroSorted != 0

	if isEmpty || isSingleItem {
		if preambleInts != preambleShort {
			return nil, datasketches.NewInvalidPreambleLongs([]byte{preambleShort}, preambleInts)
		}
	} else if preambleInts != preambleFull {
		return nil, datasketches.NewInvalidPreambleLongs([]byte{preambleFull}, preambleInts)
	}

	if isEmpty {
		return &Sketch[T]{
			k: k, m: m, minK: k,
			levels:            [][]T{nil},
			isLevelZeroSorted: isLevelZeroSorted,
			rng:               datasketches.NewDefaultXorShift64(),
		}, nil
	}

	var n uint64
	minK := k
	numLevels := 1
	if isSingleItem {
		n = 1
	} else {
		n, err = r.ReadU64LE("n")
		if err != nil {
			return nil, err
		}
		minK, err = r.ReadU16LE("min_k")
		if err != nil {
			return nil, err
		}
		nl, err := r.ReadU8("num_levels")
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadU8("unused2"); err != nil {
			return nil, err
		}
		numLevels = int(nl)
	}

	if numLevels == 0 {
		return nil, datasketches.NewInvalidData("num_levels must be > 0")
	}
	if minK < MinK || minK > k {
		return nil, datasketches.NewInvalidData("min_k must be in [%d, %d], got %d", MinK, k, minK)
	}

	capacity := computeTotalCapacity(k, m, numLevels)
	offsets := make([]uint32, 0, numLevels+1)
	if !isSingleItem {
		for i := 0; i < numLevels; i++ {
			off, err := r.ReadU32LE("level_offset")
			if err != nil {
				return nil, err
			}
			offsets = append(offsets, off)
		}
	} else {
		offsets = append(offsets, capacity-1)
	}
	offsets = append(offsets, capacity)

	if offsets[0] > capacity {
		return nil, datasketches.NewInvalidData("levels[0] exceeds capacity")
	}
	for i := 0; i+1 < len(offsets); i++ {
		if offsets[i+1] < offsets[i] {
			return nil, datasketches.NewInvalidData("levels array must be non-decreasing")
		}
	}
	if offsets[len(offsets)-1] != capacity {
		return nil, datasketches.NewInvalidData("levels last offset must equal capacity")
	}

	var minItem, maxItem *T
	if !isSingleItem {
		v, err := codec.read(r)
		if err != nil {
			return nil, err
		}
		minItem = &v
		v2, err := codec.read(r)
		if err != nil {
			return nil, err
		}
		maxItem = &v2
	}

	levels := make([][]T, numLevels)
	for level := 0; level < numLevels; level++ {
		size := int(offsets[level+1] - offsets[level])
		items := make([]T, size)
		for i := 0; i < size; i++ {
			v, err := codec.read(r)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		levels[level] = items
	}

	s := &Sketch[T]{
		k:                 k,
		m:                 m,
		minK:              minK,
		n:                 n,
		isLevelZeroSorted: isLevelZeroSorted,
		levels:            levels,
		minItem:           minItem,
		maxItem:           maxItem,
		rng:               datasketches.NewDefaultXorShift64(),
	}
	if isSingleItem && len(levels[0]) > 0 {
		v := levels[0][0]
		s.minItem = &v
		v2 := v
		s.maxItem = &v2
	}
	return s, nil
}

// SerializeFloat32 writes a float32-valued sketch to its wire format.
func SerializeFloat32(s *Sketch[float32]) []byte { return serialize(s, float32Codec()) }

// DeserializeFloat32 parses a byte slice produced by SerializeFloat32.
func DeserializeFloat32(buf []byte) (*Sketch[float32], error) { return deserialize(buf, float32Codec()) }

// SerializeFloat64 writes a float64-valued sketch to its wire format.
func SerializeFloat64(s *Sketch[float64]) []byte { return serialize(s, float64Codec()) }

// DeserializeFloat64 parses a byte slice produced by SerializeFloat64.
func DeserializeFloat64(buf []byte) (*Sketch[float64], error) { return deserialize(buf, float64Codec()) }

// SerializeInt64 writes an int64-valued sketch to its wire format.
func SerializeInt64(s *Sketch[int64]) []byte { return serialize(s, int64Codec()) }

// DeserializeInt64 parses a byte slice produced by SerializeInt64.
func DeserializeInt64(buf []byte) (*Sketch[int64], error) { return deserialize(buf, int64Codec()) }
