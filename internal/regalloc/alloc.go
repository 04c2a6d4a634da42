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

// Assignment is the outcome of allocating one function: a physical
// register for every candidate local. Local 0 (the ra pseudo-local)
// and ZeroReg never appear here; asmgen materializes those directly as
// riscv.RA / riscv.X0.
type Assignment struct {
	Colors map[mir.Local]riscv.Reg

	// Callee lists every callee-saved register this function actually
	// assigned, in ascending order — what the prologue/epilogue must
	// save and restore (spec 4.6).
	Callee []riscv.Reg
}

// Reg reports the register assigned to l. Argument-slot 0 and ZeroReg
// resolve to ra and x0 directly; everything else must have been colored.
func (a *Assignment) Reg(l mir.Local) riscv.Reg {
	if l == 0 {
		return riscv.RA
	}
	if l == mir.ZeroReg {
		return riscv.X0
	}
	return a.Colors[l]
}

// Allocate colors every candidate local in fn with a physical register,
// inserting whatever spill/rematerialization code is needed, and
// iterating the whole liveness -> interference -> color computation
// from scratch after each round that produces spills (spec 4.5). It
// mutates fn in place (new locals, new Array spill slots, new Stmts)
// and returns the final coloring.
func Allocate(fn *mir.Func) *Assignment {
	const maxRounds = 64
	var g *graph
	for round := 0; round < maxRounds; round++ {
		g = buildGraph(fn)
		spills := colorGraph(g)
		if len(spills) == 0 {
			break
		}
		rewriteSpills(fn, g, spills)
	}

	colors := make(map[mir.Local]riscv.Reg, len(g.order))
	calleeUsed := map[riscv.Reg]bool{}
	for _, l := range g.order {
		n := g.nodes[l]
		if !n.colored {
			continue // unreachable after the fixpoint loop above, kept defensive
		}
		colors[l] = n.color
		if riscv.MaskCallee.Has(n.color) {
			calleeUsed[n.color] = true
		}
	}

	var callee []riscv.Reg
	for r := riscv.S0; r <= riscv.TP; r++ {
		if calleeUsed[r] {
			callee = append(callee, r)
		}
	}

	return &Assignment{Colors: colors, Callee: callee}
}
