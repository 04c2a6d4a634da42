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

// blockGraph is a leader-based basic-block partition of fn.Stmts,
// used by SSA construction and GVN's scope-stack rule removal.
type blockGraph struct {
	leaders []int // ascending statement positions, one per block
	blockOf []int // blockOf[pos] = index into leaders
	preds   [][]int
	succs   [][]int
}

func computeBlocks(fn *Func) *blockGraph {
	n := len(fn.Stmts)
	leaderSet := map[int]bool{0: true}
	for _, l := range fn.Labels {
		leaderSet[l] = true
	}
	for i := 0; i < n; i++ {
		if fn.Stmts[i].IsBranch() || fn.Stmts[i].Kind == KJump {
			if i+1 < n {
				leaderSet[i+1] = true
			}
		}
	}
	leaders := make([]int, 0, len(leaderSet))
	for l := range leaderSet {
		leaders = append(leaders, l)
	}
	sort.Ints(leaders)

	blockOf := make([]int, n)
	bi := -1
	for pos := 0; pos < n; pos++ {
		for bi+1 < len(leaders) && leaders[bi+1] == pos {
			bi++
		}
		blockOf[pos] = bi
	}

	g := &blockGraph{leaders: leaders, blockOf: blockOf}
	g.preds = make([][]int, len(leaders))
	g.succs = make([][]int, len(leaders))
	seen := make([]map[int]bool, len(leaders))
	for i := range seen {
		seen[i] = map[int]bool{}
	}
	for pos := 0; pos < n; pos++ {
		end := n
		if blockOf[pos]+1 < len(leaders) {
			end = leaders[blockOf[pos]+1]
		}
		if pos != end-1 {
			continue // only the block's last statement has cross-block successors
		}
		for _, succPos := range fn.Stmts[pos].Successors(fn, pos) {
			sb := blockOf[succPos]
			b := blockOf[pos]
			if !seen[sb][b] {
				seen[sb][b] = true
				g.preds[sb] = append(g.preds[sb], b)
				g.succs[b] = append(g.succs[b], sb)
			}
		}
	}
	return g
}

func (g *blockGraph) blockEnd(b int) int {
	if b+1 < len(g.leaders) {
		return g.leaders[b+1]
	}
	return -1 // caller must know fn's length
}
