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

import (
	"math"

	datasketches "github.com/dgraph-io/datasketches-go"
)

// Wire layout, per spec.md section 6: preamble_longs (u8), serial_version
// (u8, =3), family_id (u8, =3), lg_k (u8), lg_resize (u8), flags (u8),
// seed_hash (u16 LE) — 8 bytes. If preamble_longs >= 2: num_entries (u32
// LE), p (u32 LE float bits) — 8 bytes. If preamble_longs >= 3: theta (u64
// LE) — 8 bytes. Then num_entries hashes (u64 LE each), except the
// single-item form (preamble_longs=1, SINGLE_ITEM flag) which is followed
// by exactly one hash with no num_entries field.
const (
	familyID      byte = 3
	serialVersion byte = 3

	preambleLongsEmpty      byte = 1
	preambleLongsExact      byte = 2
	preambleLongsEstimation byte = 3

	flagReadOnly   byte = 1 << 0
	flagEmpty      byte = 1 << 1
	flagCompact    byte = 1 << 2
	flagOrdered    byte = 1 << 3
	flagSingleItem byte = 1 << 4

	headerSize = 8
	wordSize   = 8
)

// SerializeCompact writes a Compact sketch to its wire-compatible byte
// representation, per spec.md section 4.7's wire format.
func SerializeCompact(c *Compact) []byte {
	isSingleItem := !c.isEmpty && len(c.entries) == 1 && c.theta == MaxTheta

	var preambleLongs byte
	switch {
	case c.isEmpty, isSingleItem:
		preambleLongs = preambleLongsEmpty
	case c.theta == MaxTheta:
		preambleLongs = preambleLongsExact
	default:
		preambleLongs = preambleLongsEstimation
	}

	flags := flagReadOnly | flagCompact
	if c.isEmpty {
		flags |= flagEmpty
	}
	if c.ordered {
		flags |= flagOrdered
	}
	if isSingleItem {
		flags |= flagSingleItem
	}

	size := headerSize
	if !c.isEmpty {
		if !isSingleItem {
			size += wordSize // num_entries + p
			if preambleLongs == preambleLongsEstimation {
				size += wordSize // theta
			}
		}
		size += len(c.entries) * wordSize
	}

	b := datasketches.NewByteBuilder(size)
	b.WriteU8(preambleLongs)
	b.WriteU8(serialVersion)
	b.WriteU8(familyID)
	b.WriteU8(c.lgK)
	b.WriteU8(c.resizeFactor.LgValue())
	b.WriteU8(flags)
	b.WriteU16LE(c.seedHash)

	if c.isEmpty {
		return b.Bytes()
	}
	if !isSingleItem {
		b.WriteU32LE(uint32(len(c.entries)))
		b.WriteU32LE(math.Float32bits(c.samplingProb))
		if preambleLongs == preambleLongsEstimation {
			b.WriteU64LE(c.theta)
		}
	}
	for _, h := range c.entries {
		b.WriteU64LE(h)
	}
	return b.Bytes()
}

// DeserializeCompact parses a byte slice produced by SerializeCompact. A
// seed hash of 0 is treated as legacy and replaced with expectedSeedHash.
func DeserializeCompact(buf []byte, expectedSeedHash uint16) (*Compact, error) {
	r := datasketches.NewByteReader(buf)

	preambleLongs, err := r.ReadU8("preamble_longs")
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
		return nil, datasketches.NewInvalidFamily(familyID, fam, "theta")
	}
	lgK, err := r.ReadU8("lg_k")
	if err != nil {
		return nil, err
	}
	lgResize, err := r.ReadU8("lg_resize")
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadU8("flags")
	if err != nil {
		return nil, err
	}
	seedHash, err := r.ReadU16LE("seed_hash")
	if err != nil {
		return nil, err
	}
	if seedHash == 0 {
		seedHash = expectedSeedHash
	}

	isEmpty := flags&flagEmpty != 0
	isSingleItem := flags&flagSingleItem != 0
	isOrdered := flags&flagOrdered != 0
	resizeFactor := resizeFactorFromLgValue(lgResize)

	if isEmpty {
		if preambleLongs != preambleLongsEmpty {
			return nil, datasketches.NewInvalidPreambleLongs([]byte{preambleLongsEmpty}, preambleLongs)
		}
		return &Compact{theta: MaxTheta, seedHash: seedHash, isEmpty: true, lgK: lgK, resizeFactor: resizeFactor, samplingProb: 1.0}, nil
	}

	if isSingleItem {
		if preambleLongs != preambleLongsEmpty {
			return nil, datasketches.NewInvalidPreambleLongs([]byte{preambleLongsEmpty}, preambleLongs)
		}
		h, err := r.ReadU64LE("hash")
		if err != nil {
			return nil, err
		}
		return &Compact{theta: MaxTheta, entries: []uint64{h}, seedHash: seedHash, ordered: true, lgK: lgK, resizeFactor: resizeFactor, samplingProb: 1.0}, nil
	}

	if preambleLongs != preambleLongsExact && preambleLongs != preambleLongsEstimation {
		return nil, datasketches.NewInvalidPreambleLongs([]byte{preambleLongsExact, preambleLongsEstimation}, preambleLongs)
	}

	numEntries, err := r.ReadU32LE("num_entries")
	if err != nil {
		return nil, err
	}
	pBits, err := r.ReadU32LE("p")
	if err != nil {
		return nil, err
	}
	samplingProb := math.Float32frombits(pBits)

	theta := MaxTheta
	if preambleLongs == preambleLongsEstimation {
		theta, err = r.ReadU64LE("theta")
		if err != nil {
			return nil, err
		}
	}

	entries := make([]uint64, numEntries)
	for i := range entries {
		h, err := r.ReadU64LE("hash")
		if err != nil {
			return nil, err
		}
		entries[i] = h
	}

	return &Compact{
		theta:        theta,
		entries:      entries,
		seedHash:     seedHash,
		ordered:      isOrdered,
		lgK:          lgK,
		resizeFactor: resizeFactor,
		samplingProb: samplingProb,
	}, nil
}

func resizeFactorFromLgValue(v byte) ResizeFactor {
	switch v {
	case 0:
		return X1
	case 1:
		return X2
	case 2:
		return X4
	default:
		return X8
	}
}

// Serialize writes s's current state as a Compact projection (ordered, so
// round trips are reproducible), per spec.md section 4.7.
func Serialize(s *Sketch) []byte {
	return SerializeCompact(s.ToCompact(true))
}

// Deserialize parses a byte slice produced by Serialize, reconstructing a
// mutable Sketch sized to hold the decoded entries without an immediate
// resize or rebuild. seed is required because only its 16-bit digest is
// carried on the wire; it must match the seed the sketch was built with.
func Deserialize(buf []byte, seed uint64) (*Sketch, error) {
	expectedSeedHash := datasketches.SeedHash(seed)
	c, err := DeserializeCompact(buf, expectedSeedHash)
	if err != nil {
		return nil, err
	}
	if c.seedHash != expectedSeedHash {
		return nil, datasketches.NewInvalidArgument("theta: seed hash mismatch: expected %d, got %d",
			expectedSeedHash, c.seedHash)
	}
	lgK := c.lgK
	if lgK < MinLgK || lgK > MaxLgK {
		lgK = DefaultLgK
	}
	table := newHashTableFromEntries(lgK, seed, c.theta, c.entries)
	table.isEmptyFlag = c.isEmpty
	table.resizeFactor = c.resizeFactor
	table.samplingProbability = c.samplingProb
	return &Sketch{table: table}, nil
}
