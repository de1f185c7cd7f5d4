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

package datasketches

import "github.com/cespare/xxhash/v2"

// InternalHash64 hashes data with xxhash64 under a seed. It is used for
// internal bookkeeping (hash-table probing, row selection) that does not
// need to interoperate byte-for-byte with other-language implementations;
// the wire-format-critical paths use HashBytes (murmur3) instead.
func InternalHash64(data []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(data)
	return d.Sum64()
}

// InternalHashU64 is the InternalHash64 analog for a pre-formed uint64 key.
func InternalHashU64(v uint64, seed uint64) uint64 {
	var buf [8]byte
	putLeUint64(buf[:], v)
	return InternalHash64(buf[:], seed)
}
