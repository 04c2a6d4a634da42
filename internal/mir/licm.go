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

package mir

import "sort"

// LICM hoists loop-invariant statements to immediately before their
// loop's header, outer loops first (spec 4.4). A hoisted statement's
// original slot becomes an Empty no-op rather than being physically
// removed, so no other statement position shifts; only the inserted
// preheader block shifts later positions, which insertAt accounts for
// by adjusting every label.
func LICM(fn *Func) {
	for {
		ctx := Prepare(fn)
		if len(ctx.Loops) == 0 {
			return
		}
		progressed := false
		for _, l := range outerFirst(ctx.Loops) {
			if hoistLoop(fn, ctx, l) {
				progressed = true
				break // positions shifted: re-Prepare before continuing
			}
		}
		if !progressed {
			return
		}
	}
}

func outerFirst(loops []*Loop) []*Loop {
	out := append([]*Loop(nil), loops...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Body) > len(out[j].Body) })
	return out
}

// hoistLoop hoists every statement in l whose operands are all defined
// outside l's body, in one batch, and reports whether it hoisted
// anything. Only statements defining a compiler temporary are
// eligible: a real source-level local may be defined on a path that
// doesn't run every iteration, so hoisting its def out of the loop
// would make it run unconditionally. Calls, branches, jumps, returns,
// and stores never hoist; a load only hoists when nothing in the loop
// may write memory (spec 4.4's conservative memory-safety rule for LICM).
func hoistLoop(fn *Func, ctx *FuncContext, l *Loop) bool {
	invariant := map[Local]bool{ZeroReg: true, NoLocal: true}
	for local, defPos := range ctx.DefOf {
		if !l.Body[defPos] {
			invariant[local] = true
		}
	}
	for p := range l.Body {
		if d, ok := fn.Stmts[p].Def(); ok {
			delete(invariant, d)
		}
	}

	positions := make([]int, 0, len(l.Body))
	for p := range l.Body {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	hasStore := false
	for _, p := range positions {
		if fn.Stmts[p].MaybeMemStore() || fn.Stmts[p].IsCall() {
			hasStore = true
			break
		}
	}

	var hoisted []Stmt
	changed := true
	for changed {
		changed = false
		for _, p := range positions {
			s := &fn.Stmts[p]
			if s.Kind == KEmpty {
				continue
			}
			d, hasDef := s.Def()
			if !hasDef || invariant[d] {
				continue
			}
			if d < Local(fn.NumLocals) {
				continue
			}
			if s.IsCall() || s.IsBranch() || s.IsReturn() || s.MaybeMemStore() {
				continue
			}
			if s.Kind == KLoad && hasStore {
				continue
			}
			allInvariant := true
			for _, u := range s.Uses() {
				if !invariant[u] {
					allInvariant = false
					break
				}
			}
			if !allInvariant {
				continue
			}
			hoisted = append(hoisted, *s)
			*s = EmptyStmt()
			invariant[d] = true
			changed = true
		}
	}

	if len(hoisted) == 0 {
		return false
	}
	insertAt(fn, l.Header, hoisted)
	return true
}

// InsertAt splices stmts into fn.Stmts at pos, shifting every label
// whose target is at or after pos by len(stmts). Exported for
// internal/regalloc's spill-code insertion.
func InsertAt(fn *Func, pos int, stmts []Stmt) { insertAt(fn, pos, stmts) }

// insertAt is the unexported implementation shared by every in-package caller.
func insertAt(fn *Func, pos int, stmts []Stmt) {
	if len(stmts) == 0 {
		return
	}
	out := make([]Stmt, 0, len(fn.Stmts)+len(stmts))
	out = append(out, fn.Stmts[:pos]...)
	out = append(out, stmts...)
	out = append(out, fn.Stmts[pos:]...)
	fn.Stmts = out

	shift := len(stmts)
	for i, t := range fn.Labels {
		if t >= pos {
			fn.Labels[i] = t + shift
		}
	}
}
