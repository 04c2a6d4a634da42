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

// StmtInfo carries the per-statement bookkeeping spec 4.3 hangs every
// later analysis off of: its position in linear order and whether it
// defines a local.
type StmtInfo struct {
	Next, Prev int
	Def        Local
	HasDef     bool
	IsCall     bool
}

// UseSite names one operand slot: Stmts[Pos].Uses()[Slot].
type UseSite struct {
	Pos  int
	Slot int
}

// Loop is one natural loop: Header is the loop's re-test statement
// (the back-edge's target), Body is every statement position reverse-
// reachable from the back-edge's source without crossing Header again
// (spec 4.3). Children are loops immediately nested inside this one;
// loop 0 (not present in Loops) is an implicit root standing for the
// whole function.
type Loop struct {
	Header   int
	Body     map[int]bool
	Parent   int // index into FuncContext.Loops, or -1 for the function root
	Children []int
}

// FuncContext is the analysis scaffold the optimizer passes (spec 4.4)
// and the register allocator (spec 4.5) share: linear-order links,
// def/use chains, predecessor edges, and the loop tree.
type FuncContext struct {
	Fn *Func

	Info []StmtInfo

	DefOf  map[Local]int // Local -> defining statement, -1 if none yet
	UsesOf map[Local][]UseSite

	Preds [][]int // Preds[pos] = predecessor statement positions

	Loops  []*Loop
	LoopOf []int // LoopOf[pos] = innermost Loops index containing pos, or -1
}

// Prepare (re)computes a FuncContext from fn's current Stmts. Every
// mir optimizer pass (spec 4.4) re-prepares after mutating Stmts,
// since positions, successors, and the loop tree all depend on the
// exact statement list.
func Prepare(fn *Func) *FuncContext {
	ctx := &FuncContext{Fn: fn}
	n := len(fn.Stmts)
	ctx.Info = make([]StmtInfo, n)
	ctx.DefOf = map[Local]int{}
	ctx.UsesOf = map[Local][]UseSite{}
	ctx.Preds = make([][]int, n)

	for i := range fn.Stmts {
		s := &fn.Stmts[i]
		info := StmtInfo{Next: i + 1, Prev: i - 1, IsCall: s.IsCall()}
		if d, ok := s.Def(); ok {
			info.Def, info.HasDef = d, true
			ctx.DefOf[d] = i
		}
		ctx.Info[i] = info
		for slot, u := range s.Uses() {
			if u == NoLocal {
				continue
			}
			ctx.UsesOf[u] = append(ctx.UsesOf[u], UseSite{Pos: i, Slot: slot})
		}
	}
	for i := range fn.Stmts {
		for _, succ := range fn.Stmts[i].Successors(fn, i) {
			ctx.Preds[succ] = append(ctx.Preds[succ], i)
		}
	}

	ctx.buildLoops()
	return ctx
}

// buildLoops identifies natural loops via reverse BFS from every back
// edge sharing a header at once (an edge pos -> header where header
// dominates-by-position, i.e. header <= pos, approximating a linear
// MIR's structured control flow per spec 4.3) rather than falcon's
// DFS-spanning-tree construction (compile/ssa/loop.go): MIR here is
// still close to the structured hir it was lowered from, so every
// back edge is a While's closing jump or an enclosed continue's jump,
// and its header is exactly that loop's head label.
func (ctx *FuncContext) buildLoops() {
	n := len(ctx.Fn.Stmts)
	ctx.LoopOf = make([]int, n)
	for i := range ctx.LoopOf {
		ctx.LoopOf[i] = -1
	}

	// A header can receive more than one back edge (e.g. a while loop
	// whose body also contains a continue: both the continue's jump and
	// the loop-closing jump target the same head label), and those
	// edges describe one loop, not two. Group sources by header before
	// seeding the reverse BFS, so each header yields exactly one Loop
	// whose body is the union reachable from all of its back-edge
	// sources at once.
	sourcesOf := map[int][]int{}
	var headers []int
	for pos := 0; pos < n; pos++ {
		for _, succ := range ctx.Fn.Stmts[pos].Successors(ctx.Fn, pos) {
			if succ <= pos {
				if _, seen := sourcesOf[succ]; !seen {
					headers = append(headers, succ)
				}
				sourcesOf[succ] = append(sourcesOf[succ], pos)
			}
		}
	}
	sort.Ints(headers)

	for _, header := range headers {
		body := map[int]bool{header: true}
		var queue []int
		for _, src := range sourcesOf[header] {
			if !body[src] {
				body[src] = true
				queue = append(queue, src)
			}
		}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, p := range ctx.Preds[cur] {
				if !body[p] {
					body[p] = true
					queue = append(queue, p)
				}
			}
		}
		ctx.Loops = append(ctx.Loops, &Loop{Header: header, Body: body, Parent: -1})
	}

	// Nest by inclusion: a loop L1 is a child of the smallest loop L2
	// that strictly contains it.
	for i, l := range ctx.Loops {
		best := -1
		for j, other := range ctx.Loops {
			if i == j || !supersetBody(other.Body, l.Body) {
				continue
			}
			if best == -1 || len(other.Body) < len(ctx.Loops[best].Body) {
				best = j
			}
		}
		l.Parent = best
		if best != -1 {
			ctx.Loops[best].Children = append(ctx.Loops[best].Children, i)
		}
	}

	for pos := 0; pos < n; pos++ {
		innermost, size := -1, n+1
		for i, l := range ctx.Loops {
			if l.Body[pos] && len(l.Body) < size {
				innermost, size = i, len(l.Body)
			}
		}
		ctx.LoopOf[pos] = innermost
	}
}

func supersetBody(a, b map[int]bool) bool {
	if len(a) <= len(b) {
		return false
	}
	for p := range b {
		if !a[p] {
			return false
		}
	}
	return true
}

// InLoop reports whether pos lies within some natural loop.
func (ctx *FuncContext) InLoop(pos int) bool { return ctx.LoopOf[pos] != -1 }
