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

package regalloc

import (
	"sysygo/internal/mir"
	"sysygo/internal/riscv"
)

// node is one candidate's state in the interference graph, modeled on
// original_source/mir/regalloc.cpp's MirLocalLiveness (hint/forbid/
// color fields). Liveness and coloring themselves stay at plain
// function scope; the loop tree mir.Prepare computes is only consulted
// later, by spill.go, when a spilled range gets split at loop
// boundaries (spec 4.5).
type node struct {
	local mir.Local
	degree int
	neighbors map[mir.Local]bool

	hint   riscv.RegMask // preferred colors, tried first
	forbid riscv.RegMask // colors this local must not take (pre-colored conflicts)

	crossesCall bool
	remat       *mir.Stmt // non-nil if this local can be rematerialized instead of spilled

	color riscv.Reg
	colored bool
	spilled bool
}

// graph is the interference graph for one function, built once per
// allocation round from a freshly computed liveness.
type graph struct {
	fn    *mir.Func
	ctx   *mir.FuncContext
	nodes map[mir.Local]*node
	order []mir.Local // candidates in ascending local-id order, stable iteration
}

// candidateLocals are every local this allocator colors: every user
// local, temp, and phi except local 0 (the ra pseudo-local, never
// defined or used by any statement by construction) and the ZeroReg/
// NoLocal sentinels, which never enter the graph.
func candidateLocals(fn *mir.Func) []mir.Local {
	var out []mir.Local
	for l := mir.Local(1); l < mir.Local(fn.NumPhis); l++ {
		out = append(out, l)
	}
	return out
}

func buildGraph(fn *mir.Func) *graph {
	ctx := mir.Prepare(fn)
	lv := computeLiveness(fn)
	ranges := lv.ranges(len(fn.Stmts))

	g := &graph{fn: fn, ctx: ctx, nodes: map[mir.Local]*node{}}
	for _, l := range candidateLocals(fn) {
		if _, live := ranges[l]; !live {
			continue
		}
		n := &node{local: l, neighbors: map[mir.Local]bool{}, color: riscv.UND}
		if defPos, ok := ctx.DefOf[l]; ok {
			s := &fn.Stmts[defPos]
			if s.CanRematerialize() {
				cp := *s
				n.remat = &cp
			}
		}
		g.nodes[l] = n
		g.order = append(g.order, l)
	}

	for i, a := range g.order {
		for _, b := range g.order[i+1:] {
			if intersects(ranges[a], ranges[b]) {
				g.addEdge(a, b)
			}
		}
	}

	g.computeHints(ranges)
	return g
}

func (g *graph) addEdge(a, b mir.Local) {
	na, nb := g.nodes[a], g.nodes[b]
	if na.neighbors[b] {
		return
	}
	na.neighbors[b] = true
	nb.neighbors[a] = true
	na.degree++
	nb.degree++
}

// computeHints assigns the spec 4.5 register hints: a local carried
// live across a call is hinted toward the callee-saved bank and
// forbidden from the caller-saved bank (nothing saves/restores
// caller-saved registers around a call, so picking one would clobber
// the value); a local defined by a call's return value is hinted
// toward a0; an argument local is hinted toward its
// own incoming argument register.
func (g *graph) computeHints(ranges map[mir.Local]map[int]bool) {
	abi := riscv.DefaultABI
	argRegs := abi.ArgRegs()

	for l := mir.Local(1); l < mir.Local(g.fn.NumArgs); l++ {
		if n, ok := g.nodes[l]; ok && int(l)-1 < len(argRegs) {
			n.hint |= riscv.Bit(argRegs[l-1])
		}
	}

	for pos := range g.fn.Stmts {
		s := &g.fn.Stmts[pos]
		if !s.IsCall() {
			continue
		}
		if s.HasDst {
			if n, ok := g.nodes[s.Dst]; ok {
				n.hint |= riscv.Bit(abi.ReturnReg())
			}
		}
	}

	for local, positions := range ranges {
		n, ok := g.nodes[local]
		if !ok {
			continue
		}
		for pos := range positions {
			if g.fn.Stmts[pos].IsCall() {
				n.crossesCall = true
				n.hint |= riscv.MaskCallee
				n.forbid |= riscv.MaskCaller
				break
			}
		}
	}
}
