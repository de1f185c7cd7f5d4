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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	b := NewByteBuilder(0)
	b.WriteU8(0xAB)
	b.WriteU16LE(0x1234)
	b.WriteU32LE(0xDEADBEEF)
	b.WriteU64LE(0x0102030405060708)
	b.WriteF32LE(1.5)
	b.WriteF64LE(-2.25)
	b.WriteBytes([]byte("tail"))

	r := NewByteReader(b.Bytes())
	u8, err := r.ReadU8("u8")
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), u8)

	u16, err := r.ReadU16LE("u16")
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := r.ReadU32LE("u32")
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := r.ReadU64LE("u64")
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	f32, err := r.ReadF32LE("f32")
	require.NoError(t, err)
	require.Equal(t, float32(1.5), f32)

	f64, err := r.ReadF64LE("f64")
	require.NoError(t, err)
	require.Equal(t, float64(-2.25), f64)

	tail, err := r.ReadBytes(4, "tail")
	require.NoError(t, err)
	require.Equal(t, []byte("tail"), tail)

	require.Equal(t, 0, r.Remaining())
}

func TestCodecInsufficientData(t *testing.T) {
	r := NewByteReader([]byte{1, 2})
	_, err := r.ReadU32LE("short")
	require.Error(t, err)
	require.True(t, Is(err, KindInsufficientData))
}
