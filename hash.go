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

// Package datasketches implements a family of probabilistic data-stream
// sketches that summarize a stream in sub-linear space and answer
// approximate aggregate queries with provable error bounds. This package
// holds the cross-cutting primitives shared by every sketch family: the
// murmur3-x64-128 hasher, the little-endian byte codec, the error
// taxonomy, and the injectable random source.
package datasketches

import "math"

const (
	c1128 = 0x87c37b91114253d5
	c2128 = 0x4cf5ad432745937f
)

// HashPair is the (h1, h2) output of murmur3-x64-128. Sketches that need a
// single 64-bit hash use h1; sketches that need two independent lanes (HLL
// coupons, CPC row/col) use both.
type HashPair struct {
	H1 uint64
	H2 uint64
}

// HashBytes computes murmur3-x64-128(data, seed) and returns the (h1, h2)
// pair. This is the wire-compatible hash used by every serialized sketch;
// it must match the reference Apache DataSketches implementations byte for
// byte given the same seed and input.
func HashBytes(data []byte, seed uint64) HashPair {
	h1, h2 := seed, seed

	nblocks := len(data) / 16
	for i := 0; i < nblocks; i++ {
		block := data[i*16 : i*16+16]
		k1 := leUint64(block[0:8])
		k2 := leUint64(block[8:16])

		k1 *= c1128
		k1 = rotl64(k1, 31)
		k1 *= c2128
		h1 ^= k1

		h1 = rotl64(h1, 27)
		h1 += h2
		h1 = h1*5 + 0x52dce729

		k2 *= c2128
		k2 = rotl64(k2, 33)
		k2 *= c1128
		h2 ^= k2

		h2 = rotl64(h2, 31)
		h2 += h1
		h2 = h2*5 + 0x38495ab5
	}

	tail := data[nblocks*16:]
	var k1, k2 uint64
	switch len(tail) {
	case 15:
		k2 ^= uint64(tail[14]) << 48
		fallthrough
	case 14:
		k2 ^= uint64(tail[13]) << 40
		fallthrough
	case 13:
		k2 ^= uint64(tail[12]) << 32
		fallthrough
	case 12:
		k2 ^= uint64(tail[11]) << 24
		fallthrough
	case 11:
		k2 ^= uint64(tail[10]) << 16
		fallthrough
	case 10:
		k2 ^= uint64(tail[9]) << 8
		fallthrough
	case 9:
		k2 ^= uint64(tail[8])
		k2 *= c2128
		k2 = rotl64(k2, 33)
		k2 *= c1128
		h2 ^= k2
		fallthrough
	case 8:
		k1 ^= uint64(tail[7]) << 56
		fallthrough
	case 7:
		k1 ^= uint64(tail[6]) << 48
		fallthrough
	case 6:
		k1 ^= uint64(tail[5]) << 40
		fallthrough
	case 5:
		k1 ^= uint64(tail[4]) << 32
		fallthrough
	case 4:
		k1 ^= uint64(tail[3]) << 24
		fallthrough
	case 3:
		k1 ^= uint64(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint64(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint64(tail[0])
		k1 *= c1128
		k1 = rotl64(k1, 31)
		k1 *= c2128
		h1 ^= k1
	}

	h1 ^= uint64(len(data))
	h2 ^= uint64(len(data))

	h1 += h2
	h2 += h1

	h1 = fmix64(h1)
	h2 = fmix64(h2)

	h1 += h2
	h2 += h1

	return HashPair{H1: h1, H2: h2}
}

// HashU64 hashes a single little-endian uint64, the common case for sketches
// that operate on pre-hashed 64-bit keys (Theta probing, Xor filter mixing).
func HashU64(v uint64, seed uint64) HashPair {
	var buf [8]byte
	putLeUint64(buf[:], v)
	return HashBytes(buf[:], seed)
}

// SeedHash returns the low 16 bits of murmur3(seed_as_le_bytes, seed=0). It
// is embedded in every serialized sketch so a reader can detect that it is
// using a different hash seed than the writer.
func SeedHash(seed uint64) uint16 {
	var buf [8]byte
	putLeUint64(buf[:], seed)
	p := HashBytes(buf[:], 0)
	return uint16(p.H1 & 0xffff)
}

// CanonicalizeFloat32 normalizes NaN to a single bit pattern and negative
// zero to positive zero, so that hashing a float produces the same bytes
// across languages regardless of which NaN payload or zero sign the
// platform produced.
func CanonicalizeFloat32(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return float32(math.NaN())
	}
	if v == 0 {
		return 0
	}
	return v
}

// CanonicalizeFloat64 is the float64 analog of CanonicalizeFloat32.
func CanonicalizeFloat64(v float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	if v == 0 {
		return 0
	}
	return v
}

func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

func rotl64(x uint64, r uint) uint64 {
	return (x << r) | (x >> (64 - r))
}

func leUint64(b []byte) uint64 {
	_ = b[7]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

func putLeUint64(b []byte, v uint64) {
	_ = b[7]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
