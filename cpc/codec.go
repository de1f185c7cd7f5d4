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

package cpc

import datasketches "github.com/dgraph-io/datasketches-go"

// Wire layout. original_source/datasketches/src/cpc/serialization.rs's
// FLAG_HAS_TABLE=3 is not itself a power of two, so this module does not
// copy those constants literally; it defines its own consistent bitmask
// flags in the const block below, and — since compression.rs in the
// retrieved pack is a pair of struct declarations with no Golomb-Rice
// encoder body — stores table/window entries raw rather than entropy
// coded.
const (
	familyID      byte = 16
	serialVersion byte = 1

	flagEmpty     byte = 1 << 0
	flagMerged    byte = 1 << 1
	flagHasTable  byte = 1 << 2
	flagHasWindow byte = 1 << 3
)

// Serialize writes s to its wire-compatible byte representation.
func Serialize(s *Sketch) []byte {
	var flags byte
	if s.IsEmpty() {
		flags |= flagEmpty
	}
	if s.mergeFlag {
		flags |= flagMerged
	}
	if s.sparse != nil {
		flags |= flagHasTable
	}
	if s.dense != nil {
		flags |= flagHasWindow
	}

	size := 16
	var rows []uint32
	var cols []uint8
	if s.sparse != nil {
		rows, cols = s.sparse.rowColPairs()
		size += 4 + len(rows)*5
	} else if s.dense != nil {
		size += int(s.k)
	}
	if !s.mergeFlag {
		size += 16 // kxp + hip
	}

	b := datasketches.NewByteBuilder(size)
	b.WriteU8(serialVersion)
	b.WriteU8(familyID)
	b.WriteU8(s.lgK)
	b.WriteU8(flags)
	b.WriteU32LE(s.numCoupons)
	b.WriteU8(s.firstInterestingColumn)
	b.WriteU8(s.windowOffset)
	b.WriteU16LE(0)
	b.WriteU32LE(0)

	if !s.mergeFlag {
		b.WriteF64LE(s.kxp)
		b.WriteF64LE(s.hip)
	}

	if s.sparse != nil {
		b.WriteU32LE(uint32(len(rows)))
		for i, r := range rows {
			b.WriteU32LE(r)
			b.WriteU8(cols[i])
		}
	} else if s.dense != nil {
		b.WriteBytes(s.dense)
	}

	return b.Bytes()
}

// Deserialize parses a byte slice produced by Serialize.
func Deserialize(buf []byte, seed uint64) (*Sketch, error) {
	r := datasketches.NewByteReader(buf)

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
		return nil, datasketches.NewInvalidFamily(familyID, fam, "cpc")
	}
	lgK, err := r.ReadU8("lg_k")
	if err != nil {
		return nil, err
	}
	if lgK < MinLgK || lgK > MaxLgK {
		return nil, datasketches.NewInvalidData("lg_k out of range: %d", lgK)
	}
	flags, err := r.ReadU8("flags")
	if err != nil {
		return nil, err
	}
	numCoupons, err := r.ReadU32LE("num_coupons")
	if err != nil {
		return nil, err
	}
	fic, err := r.ReadU8("first_interesting_column")
	if err != nil {
		return nil, err
	}
	windowOffset, err := r.ReadU8("window_offset")
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU16LE("unused0"); err != nil {
		return nil, err
	}
	if _, err := r.ReadU32LE("unused1"); err != nil {
		return nil, err
	}

	s := NewSketchWithSeed(lgK, seed)
	s.numCoupons = numCoupons
	s.firstInterestingColumn = fic
	s.windowOffset = windowOffset
	s.mergeFlag = flags&flagMerged != 0

	if !s.mergeFlag {
		kxp, err := r.ReadF64LE("kxp")
		if err != nil {
			return nil, err
		}
		hip, err := r.ReadF64LE("hip")
		if err != nil {
			return nil, err
		}
		s.kxp = kxp
		s.hip = hip
	}

	switch {
	case flags&flagHasTable != 0:
		n, err := r.ReadU32LE("num_entries")
		if err != nil {
			return nil, err
		}
		lgSize := lgSizeOf(int(n) * 2)
		if lgSize < 5 {
			lgSize = 5
		}
		s.sparse = newPairTable(lgSize)
		for i := uint32(0); i < n; i++ {
			row, err := r.ReadU32LE("row")
			if err != nil {
				return nil, err
			}
			col, err := r.ReadU8("col")
			if err != nil {
				return nil, err
			}
			s.sparse.upsert(row, col)
		}
	case flags&flagHasWindow != 0:
		data, err := r.ReadBytes(int(s.k), "window")
		if err != nil {
			return nil, err
		}
		dense := make([]uint8, s.k)
		copy(dense, data)
		s.dense = dense
		s.sparse = nil
	}

	return s, nil
}
