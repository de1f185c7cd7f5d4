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

package hll

import "math"

// list is the sequential coupon store used while a sketch holds very few
// distinct coupons: duplicate detection is a linear scan, grounded on
// original_source/src/hll/list.rs. Unlike the Rust reference (which
// silently stops accepting new coupons once its fixed array fills), this
// module grows the backing array by doubling before it
// would otherwise drop an update, since spec.md's invariants require every
// update to be reflected.
type list struct {
	c *container
}

func newList() *list {
	return &list{c: newContainer(lgInitListSize)}
}

// update inserts coupon if it is not already present, growing the backing
// array first if it is full. Returns true if coupon was newly inserted.
func (l *list) update(coupon uint32) bool {
	for {
		for i, v := range l.c.coupons {
			if v == couponEmpty {
				l.c.coupons[i] = coupon
				l.c.length++
				return true
			}
			if v == coupon {
				return false
			}
		}
		l.grow()
	}
}

func (l *list) grow() {
	old := l.c
	grown := newContainer(old.lgSize + 1)
	copy(grown.coupons, old.coupons)
	grown.length = old.length
	l.c = grown
}

func (l *list) length() int { return l.c.length }

func (l *list) coupons() []uint32 {
	out := make([]uint32, 0, l.c.length)
	for _, v := range l.c.coupons {
		if v != couponEmpty {
			out = append(out, v)
		}
	}
	return out
}

func (l *list) estimate() float64 {
	return math.Max(float64(l.c.length), couponCollectorEstimate(l.c.length))
}

func (l *list) upperBound(kappa float64) float64 {
	est := couponCollectorEstimate(l.c.length)
	return math.Max(float64(l.c.length), est*couponBoundFraction(kappa, true))
}

func (l *list) lowerBound(kappa float64) float64 {
	est := couponCollectorEstimate(l.c.length)
	return math.Max(float64(l.c.length), est*couponBoundFraction(kappa, false))
}
