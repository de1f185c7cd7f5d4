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

package bloom

import datasketches "github.com/dgraph-io/datasketches-go"

// Serialize writes the wire-compatible byte representation of f: a 3-long
// preamble (4 when non-empty) followed by ceil(m/64) little-endian u64
// words when non-empty, per spec.md section 6's Bloom preamble layout.
func (f *Filter) Serialize() []byte {
	empty := f.IsEmpty()
	preambleLongs := byte(3)
	if !empty {
		preambleLongs = 4
	}
	b := datasketches.NewByteBuilder(int(preambleLongs)*8 + len(f.words)*8)

	b.WriteU8(preambleLongs)
	b.WriteU8(serialVersion)
	b.WriteU8(familyID)
	b.WriteU8(0) // reserved
	b.WriteU8(0) // reserved
	var flags byte
	if empty {
		flags = flagEmpty
	}
	b.WriteU8(flags)
	b.WriteU16LE(f.numHashes)
	b.WriteU64LE(f.seed)
	b.WriteU64LE(f.capacityBits)
	if !empty {
		b.WriteU64LE(f.numBitsSet)
		for _, w := range f.words {
			b.WriteU64LE(w)
		}
	}
	return b.Bytes()
}

// Deserialize parses a byte slice produced by Serialize, validating the
// family id and serial version. Seed-hash validation does not apply to
// Bloom (the wire format carries the raw seed, not a seed hash), so no
// seed argument is required here.
func Deserialize(buf []byte) (*Filter, error) {
	r := datasketches.NewByteReader(buf)

	preambleLongs, err := r.ReadU8("preamble_longs")
	if err != nil {
		return nil, err
	}
	if preambleLongs != 3 && preambleLongs != 4 {
		return nil, datasketches.NewInvalidPreambleLongs([]byte{3, 4}, preambleLongs)
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
		return nil, datasketches.NewInvalidFamily(familyID, fam, "bloom")
	}
	if _, err := r.ReadU8("reserved"); err != nil {
		return nil, err
	}
	if _, err := r.ReadU8("reserved"); err != nil {
		return nil, err
	}
	flags, err := r.ReadU8("flags")
	if err != nil {
		return nil, err
	}
	empty := flags&flagEmpty != 0
	numHashes, err := r.ReadU16LE("num_hashes")
	if err != nil {
		return nil, err
	}
	seed, err := r.ReadU64LE("seed")
	if err != nil {
		return nil, err
	}
	capacityBits, err := r.ReadU64LE("capacity_bits")
	if err != nil {
		return nil, err
	}

	f, err := NewFilter(capacityBits, numHashes, seed)
	if err != nil {
		return nil, err
	}
	if empty {
		if preambleLongs != 3 {
			return nil, datasketches.NewInvalidPreambleLongs([]byte{3}, preambleLongs)
		}
		return f, nil
	}
	if preambleLongs != 4 {
		return nil, datasketches.NewInvalidPreambleLongs([]byte{4}, preambleLongs)
	}
	numBitsSet, err := r.ReadU64LE("num_bits_set")
	if err != nil {
		return nil, err
	}
	for i := range f.words {
		w, err := r.ReadU64LE("word")
		if err != nil {
			return nil, err
		}
		f.words[i] = w
	}
	f.numBitsSet = numBitsSet
	return f, nil
}
