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

package density

import datasketches "github.com/dgraph-io/datasketches-go"

// Wire layout ported from
// original_source/datasketches/src/density/serialization.rs: preamble_ints
// 3 (empty) or 6 (full), serial_version 1, then k/unused/dim, and for a
// non-empty sketch num_retained, n, and each level's size followed by its
// packed point values.
const (
	familyID      byte = 101 // spec.md: "DENSITY=implementation-assigned but stable"
	serialVersion byte = 1

	preambleIntsShort byte = 3
	preambleIntsLong  byte = 6

	flagEmpty byte = 1 << 2
)

// Serialize32 writes a float32 sketch to its wire-compatible byte
// representation.
func Serialize32(s *Sketch[float32]) []byte {
	return serialize(s, 4, func(b *datasketches.ByteBuilder, v float32) { b.WriteF32LE(v) })
}

// Serialize64 writes a float64 sketch to its wire-compatible byte
// representation.
func Serialize64(s *Sketch[float64]) []byte {
	return serialize(s, 8, func(b *datasketches.ByteBuilder, v float64) { b.WriteF64LE(v) })
}

func serialize[T Number](s *Sketch[T], valueSize int, writeValue func(*datasketches.ByteBuilder, T)) []byte {
	preambleInts := preambleIntsLong
	if s.IsEmpty() {
		preambleInts = preambleIntsShort
	}
	size := int(preambleInts) * 4
	if !s.IsEmpty() {
		for _, level := range s.levels {
			size += 4 + len(level)*int(s.dim)*valueSize
		}
	}

	b := datasketches.NewByteBuilder(size)
	b.WriteU8(preambleInts)
	b.WriteU8(serialVersion)
	b.WriteU8(familyID)
	var flags byte
	if s.IsEmpty() {
		flags = flagEmpty
	}
	b.WriteU8(flags)
	b.WriteU16LE(s.k)
	b.WriteU16LE(0)
	b.WriteU32LE(s.dim)

	if s.IsEmpty() {
		return b.Bytes()
	}

	b.WriteU32LE(s.numRetained)
	b.WriteU64LE(s.n)
	for _, level := range s.levels {
		b.WriteU32LE(uint32(len(level)))
		for _, point := range level {
			for _, v := range point {
				writeValue(b, v)
			}
		}
	}
	return b.Bytes()
}

// Deserialize32 parses a byte slice produced by Serialize32.
func Deserialize32(buf []byte) (*Sketch[float32], error) {
	return deserialize(buf, Gaussian(), datasketches.NewDefaultXorShift64(), func(r *datasketches.ByteReader) (float32, error) {
		return r.ReadF32LE("point_value")
	})
}

// Deserialize64 parses a byte slice produced by Serialize64.
func Deserialize64(buf []byte) (*Sketch[float64], error) {
	return deserialize(buf, Gaussian(), datasketches.NewDefaultXorShift64(), func(r *datasketches.ByteReader) (float64, error) {
		return r.ReadF64LE("point_value")
	})
}

func deserialize[T Number](buf []byte, kernel Kernel, rng datasketches.RandomSource, readValue func(*datasketches.ByteReader) (T, error)) (*Sketch[T], error) {
	r := datasketches.NewByteReader(buf)

	preambleInts, err := r.ReadU8("preamble_ints")
	if err != nil {
		return nil, err
	}
	ver, err := r.ReadU8("serial_version")
	if err != nil {
		return nil, err
	}
	if ver != serialVersion {
		return nil, datasketches.NewUnsupportedSerialVersion(serialVersion, ver)
	}
	fam, err := r.ReadU8("family_id")
	if err != nil {
		return nil, err
	}
	if fam != familyID {
		return nil, datasketches.NewInvalidFamily(familyID, fam, "density")
	}
	flags, err := r.ReadU8("flags")
	if err != nil {
		return nil, err
	}
	k, err := r.ReadU16LE("k")
	if err != nil {
		return nil, err
	}
	if k < MinK {
		return nil, datasketches.NewInvalidArgument("k must be > 1. Found: %d", k)
	}
	if _, err := r.ReadU16LE("unused"); err != nil {
		return nil, err
	}
	dim, err := r.ReadU32LE("dim")
	if err != nil {
		return nil, err
	}

	isEmpty := flags&flagEmpty != 0
	expected := preambleIntsLong
	if isEmpty {
		expected = preambleIntsShort
	}
	if preambleInts != expected {
		return nil, datasketches.NewInvalidPreambleLongs([]byte{expected}, preambleInts)
	}

	s := NewSketchWithKernelAndRandomSource[T](k, dim, kernel, rng)
	if isEmpty {
		return s, nil
	}

	numRetained, err := r.ReadU32LE("num_retained")
	if err != nil {
		return nil, err
	}
	n, err := r.ReadU64LE("n")
	if err != nil {
		return nil, err
	}

	var levels [][][]T
	remaining := int64(numRetained)
	for remaining > 0 {
		levelSize, err := r.ReadU32LE("level_size")
		if err != nil {
			return nil, err
		}
		level := make([][]T, levelSize)
		for i := range level {
			point := make([]T, dim)
			for d := uint32(0); d < dim; d++ {
				v, err := readValue(r)
				if err != nil {
					return nil, err
				}
				point[d] = v
			}
			level[i] = point
		}
		remaining -= int64(levelSize)
		levels = append(levels, level)
	}
	if remaining != 0 {
		return nil, datasketches.NewDeserializationFailed("invalid number of retained points while decoding density sketch")
	}

	s.numRetained = numRetained
	s.n = n
	s.levels = levels
	return s, nil
}
