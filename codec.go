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

import "math"

// ByteReader is a cursor over an immutable byte slice. Every read advances
// the cursor; a short read returns InsufficientData and leaves the cursor
// unspecified (callers must abandon the reader on error).
type ByteReader struct {
	buf []byte
	pos int
}

// NewByteReader wraps buf for sequential little-endian reads.
func NewByteReader(buf []byte) *ByteReader {
	return &ByteReader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *ByteReader) Remaining() int {
	return len(r.buf) - r.pos
}

// Pos returns the current cursor offset.
func (r *ByteReader) Pos() int {
	return r.pos
}

func (r *ByteReader) need(n int, tag string) error {
	if r.Remaining() < n {
		return newError(KindInsufficientData, tag)
	}
	return nil
}

// ReadU8 reads a single byte.
func (r *ByteReader) ReadU8(tag string) (byte, error) {
	if err := r.need(1, tag); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadU16LE reads a little-endian uint16.
func (r *ByteReader) ReadU16LE(tag string) (uint16, error) {
	if err := r.need(2, tag); err != nil {
		return 0, err
	}
	v := uint16(r.buf[r.pos]) | uint16(r.buf[r.pos+1])<<8
	r.pos += 2
	return v, nil
}

// ReadU32LE reads a little-endian uint32.
func (r *ByteReader) ReadU32LE(tag string) (uint32, error) {
	if err := r.need(4, tag); err != nil {
		return 0, err
	}
	v := uint32(r.buf[r.pos]) | uint32(r.buf[r.pos+1])<<8 |
		uint32(r.buf[r.pos+2])<<16 | uint32(r.buf[r.pos+3])<<24
	r.pos += 4
	return v, nil
}

// ReadU64LE reads a little-endian uint64.
func (r *ByteReader) ReadU64LE(tag string) (uint64, error) {
	if err := r.need(8, tag); err != nil {
		return 0, err
	}
	v := leUint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// ReadF32LE reads a little-endian IEEE-754 float32.
func (r *ByteReader) ReadF32LE(tag string) (float32, error) {
	v, err := r.ReadU32LE(tag)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64LE reads a little-endian IEEE-754 float64.
func (r *ByteReader) ReadF64LE(tag string) (float64, error) {
	v, err := r.ReadU64LE(tag)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes reads n raw bytes.
func (r *ByteReader) ReadBytes(n int, tag string) ([]byte, error) {
	if err := r.need(n, tag); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// ByteBuilder is an append-only little-endian byte buffer used to serialize
// sketches. It grows as needed; callers take ownership of Bytes() once
// finished.
type ByteBuilder struct {
	buf []byte
}

// NewByteBuilder returns an empty builder with capacity hint capHint.
func NewByteBuilder(capHint int) *ByteBuilder {
	return &ByteBuilder{buf: make([]byte, 0, capHint)}
}

// WriteU8 appends a single byte.
func (b *ByteBuilder) WriteU8(v byte) {
	b.buf = append(b.buf, v)
}

// WriteU16LE appends a little-endian uint16.
func (b *ByteBuilder) WriteU16LE(v uint16) {
	b.buf = append(b.buf, byte(v), byte(v>>8))
}

// WriteU32LE appends a little-endian uint32.
func (b *ByteBuilder) WriteU32LE(v uint32) {
	b.buf = append(b.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteU64LE appends a little-endian uint64.
func (b *ByteBuilder) WriteU64LE(v uint64) {
	var tmp [8]byte
	putLeUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// WriteF32LE appends a little-endian IEEE-754 float32.
func (b *ByteBuilder) WriteF32LE(v float32) {
	b.WriteU32LE(math.Float32bits(v))
}

// WriteF64LE appends a little-endian IEEE-754 float64.
func (b *ByteBuilder) WriteF64LE(v float64) {
	b.WriteU64LE(math.Float64bits(v))
}

// WriteBytes appends raw bytes verbatim.
func (b *ByteBuilder) WriteBytes(v []byte) {
	b.buf = append(b.buf, v...)
}

// Len returns the number of bytes written so far.
func (b *ByteBuilder) Len() int {
	return len(b.buf)
}

// Bytes returns the accumulated buffer. The builder must not be reused
// after this call if the caller mutates the returned slice.
func (b *ByteBuilder) Bytes() []byte {
	return b.buf
}
