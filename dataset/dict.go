// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

// FreqDict maps keys to dense indices in insertion order and counts how often
// each key has been seen.
type FreqDict[K comparable] struct {
	si  map[K]int
	is  []K
	cnt []int
}

func NewFreqDict[K comparable]() (d *FreqDict[K]) {
	d = &FreqDict[K]{map[K]int{}, []K{}, []int{}}
	return
}

func (d *FreqDict[K]) Count() int {
	return len(d.is)
}

func (d *FreqDict[K]) Id(s K) (y int) {
	if y, ok := d.si[s]; ok {
		d.cnt[y]++
		return y
	}

	y = len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 1)
	return
}

func (d *FreqDict[K]) NotCount(s K) (y int) {
	if y, ok := d.si[s]; ok {
		return y
	}

	y = len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return
}

// Index returns the index of a key without inserting it.
func (d *FreqDict[K]) Index(s K) (int, bool) {
	y, ok := d.si[s]
	return y, ok
}

func (d *FreqDict[K]) Key(id int) (s K, ok bool) {
	if id < 0 || id >= len(d.is) {
		return s, false
	}
	return d.is[id], true
}

func (d *FreqDict[K]) Keys() []K {
	return d.is
}

func (d *FreqDict[K]) Freq(id int) int {
	if id < 0 || id >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}
