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

package xorfilter

import (
	"fmt"
	"testing"
)

func TestBuildContainsAllStringKeys(t *testing.T) {
	strs := make([]string, 5000)
	for i := range strs {
		strs[i] = fmt.Sprintf("item-%d", i)
	}
	keys := KeysFromStrings(strs)
	f, err := NewBuilder(7).Build(keys)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, k := range keys {
		if !f.Contains(k) {
			t.Fatalf("key %d missing: false negative", k)
		}
	}
}

func keysRange(n int) []uint64 {
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = uint64(i)
	}
	return keys
}

func TestBuildContainsAllKeys(t *testing.T) {
	keys := keysRange(10000)
	f, err := NewBuilder(42).Build(keys)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, k := range keys {
		if !f.Contains(k) {
			t.Fatalf("key %d missing: false negative", k)
		}
	}
}

func TestLenIsMultipleOfThreeAndAtLeastN(t *testing.T) {
	keys := keysRange(1000)
	f, err := NewBuilder(1).Build(keys)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f.Len()%3 != 0 {
		t.Fatalf("expected len multiple of 3, got %d", f.Len())
	}
	if f.Len() < len(keys) {
		t.Fatalf("expected len >= n, got %d < %d", f.Len(), len(keys))
	}
}

func TestBitsPerEntryUnderTenForLargeN(t *testing.T) {
	keys := keysRange(100000)
	f, err := NewBuilder(7).Build(keys)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if bpe := f.BitsPerEntry(len(keys)); bpe >= 10 {
		t.Fatalf("expected bits_per_entry < 10, got %f", bpe)
	}
}

func TestEmptyBuild(t *testing.T) {
	f, err := NewBuilder(1).Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !f.IsEmpty() {
		t.Fatal("expected empty filter")
	}
	if f.Contains(42) {
		t.Fatal("empty filter should contain nothing")
	}
}

func TestFalsePositiveRateIsLow(t *testing.T) {
	keys := keysRange(10000)
	f, err := NewBuilder(3).Build(keys)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	falsePositives := 0
	trials := 10000
	for i := 0; i < trials; i++ {
		if f.Contains(uint64(1_000_000 + i)) {
			falsePositives++
		}
	}
	// Xor8 false positive rate is ~1/256; allow generous slack.
	if falsePositives > trials/50 {
		t.Fatalf("false positive rate too high: %d/%d", falsePositives, trials)
	}
}
