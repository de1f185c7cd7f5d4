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

import datasketches "github.com/dgraph-io/datasketches-go"

const (
	familyID      byte = 10
	serialVersion byte = 1
	flagEmpty     byte = 0x01
)

// NewInt64Sketch constructs a Frequent-Items sketch over int64 items,
// hashing with murmur3 under seed so the map's internal distribution (and
// the sketch's serialized seed hash) are reproducible across runs.
func NewInt64Sketch(maxMapSize uint32, seed uint64) (*Sketch[int64], error) {
	hashFn := func(v int64) uint64 {
		return datasketches.HashU64(uint64(v), seed).H1
	}
	return NewSketch[int64](maxMapSize, hashFn)
}

// SerializeInt64 writes the wire-compatible byte representation of an
// int64-keyed Frequent-Items sketch, carrying a seed hash so a reader can
// detect it is using a different hash seed (spec.md section 6).
func SerializeInt64(s *Sketch[int64], seed uint64) []byte {
	seedHash := datasketches.SeedHash(seed)
	if s.IsEmpty() {
		b := datasketches.NewByteBuilder(8)
		b.WriteU8(1) // preamble_longs
		b.WriteU8(serialVersion)
		b.WriteU8(familyID)
		b.WriteU8(s.lgMaxMapSize)
		b.WriteU8(s.hashMap.lgLength())
		b.WriteU8(flagEmpty)
		b.WriteU16LE(seedHash)
		return b.Bytes()
	}

	keys := s.hashMap.activeKeys()
	values := s.hashMap.activeValues()
	b := datasketches.NewByteBuilder(5*8 + len(keys)*16)
	b.WriteU8(5) // preamble_longs
	b.WriteU8(serialVersion)
	b.WriteU8(familyID)
	b.WriteU8(s.lgMaxMapSize)
	b.WriteU8(s.hashMap.lgLength())
	b.WriteU8(0) // flags
	b.WriteU16LE(seedHash)

	b.WriteU32LE(uint32(len(keys)))
	b.WriteU32LE(0) // reserved
	b.WriteU64LE(uint64(s.streamWeight))
	b.WriteU64LE(uint64(s.offset))

	for _, v := range values {
		b.WriteU64LE(uint64(v))
	}
	for _, k := range keys {
		b.WriteU64LE(uint64(k))
	}
	return b.Bytes()
}

// DeserializeInt64 parses a byte slice produced by SerializeInt64. seed must
// match the seed used to build the original sketch on a non-empty payload;
// a mismatch returns InvalidArgument.
func DeserializeInt64(buf []byte, seed uint64) (*Sketch[int64], error) {
	r := datasketches.NewByteReader(buf)

	preambleLongs, err := r.ReadU8("preamble_longs")
	if err != nil {
		return nil, err
	}
	sv, err := r.ReadU8("serial_version")
	if err != nil {
		return nil, err
	}
	if sv != serialVersion {
		return nil, datasketches.NewUnsupportedSerialVersion(serialVersion, sv)
	}
	fam, err := r.ReadU8("family_id")
	if err != nil {
		return nil, err
	}
	if fam != familyID {
		return nil, datasketches.NewInvalidFamily(familyID, fam, "frequent-items")
	}
	lgMax, err := r.ReadU8("lg_max_map_size")
	if err != nil {
		return nil, err
	}
	lgCur, err := r.ReadU8("lg_cur_map_size")
	if err != nil {
		return nil, err
	}
	if lgCur > lgMax {
		return nil, datasketches.NewInvalidData("lg_cur_map_size %d exceeds lg_max_map_size %d", lgCur, lgMax)
	}
	flags, err := r.ReadU8("flags")
	if err != nil {
		return nil, err
	}
	empty := flags&flagEmpty != 0
	seedHash, err := r.ReadU16LE("seed_hash")
	if err != nil {
		return nil, err
	}
	if !empty && seedHash != datasketches.SeedHash(seed) {
		return nil, datasketches.NewInvalidArgument(
			"seed hash mismatch: expected %d, got %d", datasketches.SeedHash(seed), seedHash)
	}

	hashFn := func(v int64) uint64 { return datasketches.HashU64(uint64(v), seed).H1 }

	if empty {
		if preambleLongs != 1 {
			return nil, datasketches.NewInvalidPreambleLongs([]byte{1}, preambleLongs)
		}
		return newWithLgMapSizes[int64](lgMax, lgCur, hashFn), nil
	}
	if preambleLongs != 5 {
		return nil, datasketches.NewInvalidPreambleLongs([]byte{5}, preambleLongs)
	}

	activeItems, err := r.ReadU32LE("active_items")
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32LE("reserved"); err != nil {
		return nil, err
	}
	streamWeight, err := r.ReadU64LE("stream_weight")
	if err != nil {
		return nil, err
	}
	offset, err := r.ReadU64LE("offset")
	if err != nil {
		return nil, err
	}

	values := make([]int64, activeItems)
	for i := range values {
		v, err := r.ReadU64LE("value")
		if err != nil {
			return nil, err
		}
		values[i] = int64(v)
	}
	keys := make([]int64, activeItems)
	for i := range keys {
		k, err := r.ReadU64LE("key")
		if err != nil {
			return nil, err
		}
		keys[i] = int64(k)
	}

	s := newWithLgMapSizes[int64](lgMax, lgCur, hashFn)
	for i := range keys {
		s.UpdateWithCount(keys[i], values[i])
	}
	s.streamWeight = int64(streamWeight)
	s.offset = int64(offset)
	return s, nil
}
