// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package bitset is a fixed-size bitmap used throughout the MIR
// analyses: per-statement reachability sets, per-local liveness sets,
// and loop body membership. One bit per element, word-packed.
package bitset

import "sysygo/internal/xerr"

type Set struct {
	data []uint64
	size int
}

func New(size int) *Set {
	return &Set{
		data: make([]uint64, (size+63)/64),
		size: size,
	}
}

func (s *Set) Size() int { return s.size }

func (s *Set) Set(i int) {
	s.data[i/64] |= 1 << uint(i%64)
}

func (s *Set) Reset(i int) {
	s.data[i/64] &^= 1 << uint(i%64)
}

func (s *Set) IsSet(i int) bool {
	return s.data[i/64]&(1<<uint(i%64)) != 0
}

// Union ORs o into s in place, reporting whether s changed.
func (s *Set) Union(o *Set) bool {
	xerr.Assert(s.size == o.size, "bitset size mismatch")
	changed := false
	for i := range s.data {
		nv := s.data[i] | o.data[i]
		if nv != s.data[i] {
			s.data[i] = nv
			changed = true
		}
	}
	return changed
}

// Intersects reports whether s and o share any set bit.
func (s *Set) Intersects(o *Set) bool {
	xerr.Assert(s.size == o.size, "bitset size mismatch")
	for i := range s.data {
		if s.data[i]&o.data[i] != 0 {
			return true
		}
	}
	return false
}

func (s *Set) Intersect(o *Set) bool {
	xerr.Assert(s.size == o.size, "bitset size mismatch")
	changed := false
	for i := range s.data {
		nv := s.data[i] & o.data[i]
		if nv != s.data[i] {
			s.data[i] = nv
			changed = true
		}
	}
	return changed
}

func (s *Set) Clone() *Set {
	data := make([]uint64, len(s.data))
	copy(data, s.data)
	return &Set{data: data, size: s.size}
}

func (s *Set) Clear() {
	for i := range s.data {
		s.data[i] = 0
	}
}

func (s *Set) IsEmpty() bool {
	for _, w := range s.data {
		if w != 0 {
			return false
		}
	}
	return true
}

// Each calls f for every set index in ascending order.
func (s *Set) Each(f func(i int)) {
	for i := 0; i < s.size; i++ {
		if s.IsSet(i) {
			f(i)
		}
	}
}

func (s *Set) PopCount() int {
	n := 0
	s.Each(func(int) { n++ })
	return n
}
