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

package countmin

import datasketches "github.com/dgraph-io/datasketches-go"

// Serialize writes a little-endian preamble (2 longs empty, 3 longs
// standard) carrying (d, w, seed_hash), followed by the per-row seeds and
// the row-major counter matrix when non-empty.
func (s *Sketch) Serialize() []byte {
	empty := s.totalWeight == 0
	preambleLongs := byte(2)
	if !empty {
		preambleLongs = 3
	}
	b := datasketches.NewByteBuilder(64)
	b.WriteU8(preambleLongs)
	b.WriteU8(serialVersion)
	b.WriteU8(familyID)
	b.WriteU8(0) // reserved
	var flags byte
	if empty {
		flags = flagEmpty
	}
	b.WriteU8(flags)
	b.WriteU8(0) // reserved
	b.WriteU16LE(datasketches.SeedHash(s.seed))

	b.WriteU16LE(s.numHashes)
	b.WriteU32LE(s.numBuckets)
	b.WriteU16LE(0) // reserved

	if !empty {
		b.WriteU64LE(s.totalWeight)
	}
	for _, rs := range s.rowSeeds {
		b.WriteU64LE(rs)
	}
	if !empty {
		for _, c := range s.counters {
			b.WriteU64LE(c)
		}
	}
	return b.Bytes()
}

// Deserialize parses a byte slice produced by Serialize. seed must match
// the seed used to build the original sketch; a mismatch on a non-empty
// payload returns InvalidArgument, per spec.md's universal seed-hash
// validation property.
func Deserialize(buf []byte, seed uint64) (*Sketch, error) {
	r := datasketches.NewByteReader(buf)

	preambleLongs, err := r.ReadU8("preamble_longs")
	if err != nil {
		return nil, err
	}
	if preambleLongs != 2 && preambleLongs != 3 {
		return nil, datasketches.NewInvalidPreambleLongs([]byte{2, 3}, preambleLongs)
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
		return nil, datasketches.NewInvalidFamily(familyID, fam, "countmin")
	}
	if _, err := r.ReadU8("reserved"); err != nil {
		return nil, err
	}
	flags, err := r.ReadU8("flags")
	if err != nil {
		return nil, err
	}
	empty := flags&flagEmpty != 0
	if _, err := r.ReadU8("reserved"); err != nil {
		return nil, err
	}
	seedHash, err := r.ReadU16LE("seed_hash")
	if err != nil {
		return nil, err
	}
	if seedHash != datasketches.SeedHash(seed) && !empty {
		return nil, datasketches.NewInvalidArgument("seed hash mismatch: expected %d, got %d", datasketches.SeedHash(seed), seedHash)
	}

	numHashes, err := r.ReadU16LE("num_hashes")
	if err != nil {
		return nil, err
	}
	numBuckets, err := r.ReadU32LE("num_buckets")
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU16LE("reserved"); err != nil {
		return nil, err
	}

	s, err := NewSketch(numHashes, numBuckets, seed)
	if err != nil {
		return nil, err
	}
	if !empty {
		tw, err := r.ReadU64LE("total_weight")
		if err != nil {
			return nil, err
		}
		s.totalWeight = tw
	}
	for i := range s.rowSeeds {
		rs, err := r.ReadU64LE("row_seed")
		if err != nil {
			return nil, err
		}
		s.rowSeeds[i] = rs
	}
	if !empty {
		for i := range s.counters {
			c, err := r.ReadU64LE("counter")
			if err != nil {
				return nil, err
			}
			s.counters[i] = c
		}
	}
	return s, nil
}
