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

import (
	"bytes"
	"fmt"
	"testing"

	datasketches "github.com/dgraph-io/datasketches-go"
)

func TestInsertContains(t *testing.T) {
	f, err := NewFilter(1024, 7, 9001)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	f.Insert([]byte("apple"))
	if !f.Contains([]byte("apple")) {
		t.Fatal("expected apple to be a member")
	}
}

func TestNoFalseNegatives(t *testing.T) {
	f, err := NewFilter(1<<16, 7, 42)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	for i := 0; i < 1000; i++ {
		f.Insert([]byte(fmt.Sprintf("item-%d", i)))
	}
	for i := 0; i < 1000; i++ {
		if !f.Contains([]byte(fmt.Sprintf("item-%d", i))) {
			t.Fatalf("item-%d missing: false negative", i)
		}
	}
}

func TestFalsePositiveRateBounded(t *testing.T) {
	f, err := NewFilter(1024, 7, 9001)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	f.Insert([]byte("apple"))
	falsePositives := 0
	trials := 500
	for i := 0; i < trials; i++ {
		if f.Contains([]byte(fmt.Sprintf("grape-%d", i))) {
			falsePositives++
		}
	}
	// With a single insert into a 1024-bit/7-hash filter, the false
	// positive rate should be tiny; allow generous slack.
	if falsePositives > trials/10 {
		t.Fatalf("false positive rate too high: %d/%d", falsePositives, trials)
	}
}

func TestContainsAndInsert(t *testing.T) {
	f, _ := NewFilter(1024, 4, 1)
	if f.ContainsAndInsert([]byte("x")) {
		t.Fatal("expected prior membership to be false")
	}
	if !f.ContainsAndInsert([]byte("x")) {
		t.Fatal("expected prior membership to be true after insert")
	}
}

func TestReset(t *testing.T) {
	f, _ := NewFilter(1024, 4, 1)
	f.Insert([]byte("x"))
	f.Reset()
	if f.NumBitsSet() != 0 {
		t.Fatalf("expected 0 bits set after reset, got %d", f.NumBitsSet())
	}
	if f.Contains([]byte("x")) {
		t.Fatal("expected x not to be a member after reset")
	}
}

func TestUnionRequiresCompatible(t *testing.T) {
	a, _ := NewFilter(1024, 4, 1)
	b, _ := NewFilter(2048, 4, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected incompatible union to panic")
		}
	}()
	a.Union(b)
}

func TestUnionIsOr(t *testing.T) {
	a, _ := NewFilter(1024, 4, 1)
	b, _ := NewFilter(1024, 4, 1)
	a.Insert([]byte("a"))
	b.Insert([]byte("b"))
	a.Union(b)
	if !a.Contains([]byte("a")) || !a.Contains([]byte("b")) {
		t.Fatal("union should contain both members")
	}
}

func TestIntersectIsAnd(t *testing.T) {
	a, _ := NewFilter(1024, 4, 1)
	b, _ := NewFilter(1024, 4, 1)
	a.Insert([]byte("a"))
	a.Insert([]byte("shared"))
	b.Insert([]byte("shared"))
	a.Intersect(b)
	if !a.Contains([]byte("shared")) {
		t.Fatal("expected shared member to survive intersection")
	}
}

func TestInvertMasksExcessBits(t *testing.T) {
	f, _ := NewFilter(100, 4, 1) // not a multiple of 64
	f.Invert()
	words := wordsFor(100)
	if words != 2 {
		t.Fatalf("expected 2 words for m=100, got %d", words)
	}
	// bits 100..127 in the last word must be masked off.
	last := f.words[1]
	if last&^((uint64(1)<<36)-1) != 0 {
		t.Fatalf("excess bits not masked: %064b", last)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	f, _ := NewFilter(1024, 7, 9001)
	f.Insert([]byte("apple"))
	f.Insert([]byte("banana"))

	buf := f.Serialize()
	got, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Serialize() == nil || !bytes.Equal(buf, got.Serialize()) {
		t.Fatal("round trip did not reproduce identical bytes")
	}
	if !got.Contains([]byte("apple")) || !got.Contains([]byte("banana")) {
		t.Fatal("deserialized filter lost membership")
	}
}

func TestSerializeEmptyPreamble(t *testing.T) {
	f, _ := NewFilter(1024, 7, 9001)
	buf := f.Serialize()
	if buf[0] != 3 {
		t.Fatalf("expected preamble_longs=3 for empty filter, got %d", buf[0])
	}
	if buf[2] != familyID {
		t.Fatalf("expected family id %d, got %d", familyID, buf[2])
	}
}

func TestSetMetricsRecordsInsertAndUnion(t *testing.T) {
	m := datasketches.NewMetrics()
	a, _ := NewFilter(1024, 4, 1)
	b, _ := NewFilter(1024, 4, 1)
	a.SetMetrics(m)

	a.Insert([]byte("x"))
	a.Insert([]byte("y"))
	a.Union(b)

	if got := m.Updates(); got != 2 {
		t.Fatalf("expected 2 recorded updates, got %d", got)
	}
	if got := m.Merges(); got != 1 {
		t.Fatalf("expected 1 recorded merge, got %d", got)
	}
}

func TestDeserializeRejectsBadFamily(t *testing.T) {
	f, _ := NewFilter(1024, 7, 9001)
	buf := f.Serialize()
	buf[2] = 99
	if _, err := Deserialize(buf); err == nil {
		t.Fatal("expected family mismatch error")
	}
}
