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

// Package regalloc is the graph-coloring allocator of spec 4.5: it
// replaces falcon's linear-scan allocator (compile/codegen/lsra.go)
// while keeping that stage's pipeline shape (liveness -> interference
// -> color -> spill fixup), grounded on original_source/mir/regalloc.cpp's
// MirLocalLiveness construction and its register bitmask idioms,
// reimplemented against internal/riscv's register bank.
package regalloc

import "sysygo/internal/mir"

// liveness holds, per statement position, the set of locals live
// immediately before (in) and after (out) that statement — computed
// by the classic backward iterative dataflow equations.
type liveness struct {
	in, out []map[mir.Local]bool
}

func computeLiveness(fn *mir.Func) *liveness {
	n := len(fn.Stmts)
	lv := &liveness{in: make([]map[mir.Local]bool, n), out: make([]map[mir.Local]bool, n)}
	for i := 0; i < n; i++ {
		lv.in[i] = map[mir.Local]bool{}
		lv.out[i] = map[mir.Local]bool{}
	}

	changed := true
	for changed {
		changed = false
		for pos := n - 1; pos >= 0; pos-- {
			s := &fn.Stmts[pos]
			newOut := map[mir.Local]bool{}
			for _, succ := range s.Successors(fn, pos) {
				for l := range lv.in[succ] {
					newOut[l] = true
				}
			}
			newIn := map[mir.Local]bool{}
			d, hasDef := s.Def()
			for l := range newOut {
				if hasDef && l == d {
					continue
				}
				newIn[l] = true
			}
			for _, u := range s.Uses() {
				if u == mir.NoLocal || u == mir.ZeroReg {
					continue
				}
				newIn[u] = true
			}
			if !setEqual(newIn, lv.in[pos]) {
				lv.in[pos] = newIn
				changed = true
			}
			if !setEqual(newOut, lv.out[pos]) {
				lv.out[pos] = newOut
				changed = true
			}
		}
	}
	return lv
}

func setEqual(a, b map[mir.Local]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// ranges builds, for every local live anywhere, the set of statement
// positions during which it is live (liveIn union liveOut) — the live
// range the interference graph is built from.
func (lv *liveness) ranges(n int) map[mir.Local]map[int]bool {
	out := map[mir.Local]map[int]bool{}
	add := func(l mir.Local, pos int) {
		if out[l] == nil {
			out[l] = map[int]bool{}
		}
		out[l][pos] = true
	}
	for pos := 0; pos < n; pos++ {
		for l := range lv.in[pos] {
			add(l, pos)
		}
		for l := range lv.out[pos] {
			add(l, pos)
		}
	}
	return out
}

func intersects(a, b map[int]bool) bool {
	small, big := a, b
	if len(big) < len(small) {
		small, big = big, small
	}
	for p := range small {
		if big[p] {
			return true
		}
	}
	return false
}
