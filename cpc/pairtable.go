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

// emptyRow marks an unoccupied slot. Real row values are always < 2^26,
// so this sentinel never collides with a genuine row.
const emptyRow = ^uint32(0)

// pairTable is the sparse storage backing a CPC sketch below the dense
// promotion threshold: one (row, col) entry per row touched so far,
// where col is the highest column bit observed for that row so far.
// Adapted from original_source/datasketches/src/cpc/pair_table.rs's
// struct shape (parallel key/value slices with open addressing), ported
// to a row-keyed table since CPC needs only the per-row maximum column.
type pairTable struct {
	rows       []uint32
	cols       []uint8
	numEntries int
}

func newPairTable(lgSize uint8) *pairTable {
	size := 1 << lgSize
	rows := make([]uint32, size)
	for i := range rows {
		rows[i] = emptyRow
	}
	return &pairTable{rows: rows, cols: make([]uint8, size)}
}

// upsert records that row's column reached col. It returns the row's
// previous maximum column (0 if the row had no prior entry) so the
// caller can drive the shared HIP/kxp update.
func (t *pairTable) upsert(row uint32, col uint8) (oldCol uint8) {
	mask := uint32(len(t.rows) - 1)
	idx := row & mask
	for {
		if t.rows[idx] == emptyRow {
			t.rows[idx] = row
			t.cols[idx] = col
			t.numEntries++
			if t.numEntries*2 > len(t.rows) {
				t.grow()
			}
			return 0
		}
		if t.rows[idx] == row {
			old := t.cols[idx]
			if col > old {
				t.cols[idx] = col
			}
			return old
		}
		idx = (idx + 1) & mask
	}
}

func (t *pairTable) grow() {
	newTable := newPairTable(lgSizeOf(len(t.rows)) + 1)
	for i, r := range t.rows {
		if r != emptyRow {
			newTable.upsert(r, t.cols[i])
		}
	}
	t.rows = newTable.rows
	t.cols = newTable.cols
}

func lgSizeOf(size int) uint8 {
	lg := uint8(0)
	for 1<<lg < size {
		lg++
	}
	return lg
}

// rowColPairs returns every (row, col) entry currently stored, used when
// promoting to dense storage or when merging into another sketch.
func (t *pairTable) rowColPairs() ([]uint32, []uint8) {
	rows := make([]uint32, 0, t.numEntries)
	cols := make([]uint8, 0, t.numEntries)
	for i, r := range t.rows {
		if r != emptyRow {
			rows = append(rows, r)
			cols = append(cols, t.cols[i])
		}
	}
	return rows, cols
}
