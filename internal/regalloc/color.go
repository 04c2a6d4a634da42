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

// colorable is the pool of physical registers the allocator may assign
// to a candidate. Local 0 (the ra pseudo-local) never becomes a graph
// node, so ra itself stays reserved and out of this pool (spec 4.5).
var colorable = riscv.MaskAll &^ riscv.Bit(riscv.RA)

// colorGraph runs Chaitin-Briggs simplify/select over g: repeatedly
// remove a node of degree below the color count (an always-colorable
// node), and when none remains, optimistically push a spill candidate
// anyway (preferring a rematerializable local, else the highest-degree
// node) rather than giving up — many such nodes still find a free
// color once their higher-degree neighbors are popped and colored.
// Returns the locals that still have no color once the stack empties.
func colorGraph(g *graph) []mir.Local {
	k := colorable.Count()

	removed := map[mir.Local]bool{}
	degree := make(map[mir.Local]int, len(g.order))
	for _, l := range g.order {
		degree[l] = g.nodes[l].degree
	}

	var stack []mir.Local
	remaining := len(g.order)
	for remaining > 0 {
		progressed := false
		for _, l := range g.order {
			if removed[l] || degree[l] >= k {
				continue
			}
			removed[l] = true
			stack = append(stack, l)
			remaining--
			progressed = true
			for nb := range g.nodes[l].neighbors {
				if !removed[nb] {
					degree[nb]--
				}
			}
		}
		if progressed {
			continue
		}

		victim := mir.Local(-1)
		for _, l := range g.order {
			if removed[l] {
				continue
			}
			if victim == -1 {
				victim = l
				continue
			}
			if betterSpillCandidate(g, l, victim, degree) {
				victim = l
			}
		}
		removed[victim] = true
		stack = append(stack, victim)
		remaining--
		for nb := range g.nodes[victim].neighbors {
			if !removed[nb] {
				degree[nb]--
			}
		}
	}

	// betterSpillCandidate prefers a rematerializable local over one
	// that would need a real memory spill, and within the same tier
	// prefers the highest current degree (spec 4.5: a documented
	// simplification of the original's composite spill-cost metric,
	// since this allocator does not track per-use loop-nesting weight).
	var spilled []mir.Local
	for i := len(stack) - 1; i >= 0; i-- {
		l := stack[i]
		n := g.nodes[l]

		used := riscv.RegMask(0)
		for nb := range n.neighbors {
			if nbNode := g.nodes[nb]; nbNode.colored {
				used |= riscv.Bit(nbNode.color)
			}
		}
		avail := colorable &^ used &^ n.forbid

		var (
			chosen riscv.Reg
			ok     bool
		)
		if hinted := avail & n.hint; !hinted.IsEmpty() {
			chosen, ok = hinted.Lowest()
		} else {
			chosen, ok = avail.Lowest()
		}
		if !ok {
			n.spilled = true
			spilled = append(spilled, l)
			continue
		}
		n.color = chosen
		n.colored = true
	}
	return spilled
}

func betterSpillCandidate(g *graph, a, b mir.Local, degree map[mir.Local]int) bool {
	an, bn := g.nodes[a], g.nodes[b]
	aRemat, bRemat := an.remat != nil, bn.remat != nil
	if aRemat != bRemat {
		return aRemat
	}
	return degree[a] > degree[b]
}
