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

// ConstructSSA gives every block whose predecessors disagree on a user
// local's reaching definition a freshly allocated phi local, defined by
// a predecessor-side Nop move on each incoming edge, and rewrites the
// uses that value reaches (until the next redefinition) to read the
// phi local (spec 4.4). Definitions themselves are not renamed: a user
// local assigned more than once keeps every one of its definitions,
// and a phi local has one defining move per predecessor. Unlike
// falcon's HIR-level Braun-style construction (compile/ssa/graph.go),
// this runs on already-flattened MIR: reaching definitions are tracked
// per basic block as integer tags (an original statement position, a
// synthetic per-local function-entry tag, or a synthetic per-phi tag)
// and merged block by block until the tag assignment stabilizes.
func ConstructSSA(fn *Func) {
	g := computeBlocks(fn)
	nb := len(g.leaders)
	if nb == 0 {
		return
	}

	entry := make([]map[Local]int, nb)
	exit := make([]map[Local]int, nb)
	for i := range entry {
		entry[i] = map[Local]int{}
		exit[i] = map[Local]int{}
	}
	phis := map[phiKey]Local{}
	nextLocal := Local(fn.NumPhis)

	userLocals := make([]Local, 0, fn.NumLocals)
	for l := 1; l < fn.NumLocals; l++ {
		userLocals = append(userLocals, Local(l))
	}

	blockEnd := func(b int) int {
		if b+1 < nb {
			return g.leaders[b+1]
		}
		return len(fn.Stmts)
	}

	const maxIters = 64
	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for b := 0; b < nb; b++ {
			newEntry := map[Local]int{}
			for _, l := range userLocals {
				if len(g.preds[b]) == 0 {
					newEntry[l] = argTag(l)
					continue
				}
				var tag int
				agree := true
				first := true
				for _, p := range g.preds[b] {
					pt, ok := exit[p][l]
					if !ok {
						pt = argTag(l)
					}
					if first {
						tag, first = pt, false
					} else if pt != tag {
						agree = false
					}
				}
				if agree {
					newEntry[l] = tag
					continue
				}
				key := phiKey{block: b, local: l}
				ph, ok := phis[key]
				if !ok {
					ph = nextLocal
					nextLocal++
					phis[key] = ph
				}
				newEntry[l] = phiTag(ph)
			}
			if !mapsEqual(newEntry, entry[b]) {
				entry[b] = newEntry
				changed = true
			}

			cur := map[Local]int{}
			for l, t := range entry[b] {
				cur[l] = t
			}
			for pos := g.leaders[b]; pos < blockEnd(b); pos++ {
				if d, ok := fn.Stmts[pos].Def(); ok && d >= 1 && int(d) < fn.NumLocals {
					cur[d] = pos
				}
			}
			if !mapsEqual(cur, exit[b]) {
				exit[b] = cur
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// Rewrite uses: within each block, a local whose block-entry tag is
	// a phi reads that phi local until the block redefines it.
	for b := 0; b < nb; b++ {
		sub := map[Local]Local{}
		for l, t := range entry[b] {
			if ph, ok := tagIsPhi(t); ok {
				sub[l] = ph
			}
		}
		for pos := g.leaders[b]; pos < blockEnd(b); pos++ {
			s := &fn.Stmts[pos]
			rewriteUses(s, sub)
			if d, ok := s.Def(); ok {
				delete(sub, d)
			}
		}
	}

	// Insert predecessor-side moves realizing each phi.
	type move struct {
		block int
		stmt  Stmt
	}
	var moves []move
	for key, ph := range phis {
		for _, p := range g.preds[key.block] {
			t, ok := exit[p][key.local]
			if !ok {
				t = argTag(key.local)
			}
			src := key.local
			if srcPh, isPhi := tagIsPhi(t); isPhi {
				src = srcPh
			}
			end := blockEnd(p)
			insertPos := end
			if end > g.leaders[p] {
				last := &fn.Stmts[end-1]
				if last.IsBranch() || last.Kind == KJump || last.IsReturn() {
					insertPos = end - 1
				}
			}
			moves = append(moves, move{block: insertPos, stmt: UnaryStmt(ph, src, Nop)})
		}
	}
	// Insert highest position first so earlier insertions' shifts don't
	// invalidate later positions queued from the same pass.
	for i := 0; i < len(moves); i++ {
		for j := i + 1; j < len(moves); j++ {
			if moves[j].block > moves[i].block {
				moves[i], moves[j] = moves[j], moves[i]
			}
		}
	}
	for _, m := range moves {
		insertAt(fn, m.block, []Stmt{m.stmt})
	}

	fn.NumPhis = int(nextLocal)
}

type phiKey struct {
	block int
	local Local
}

func argTag(l Local) int   { return -(2 + int(l)) }
func phiTag(p Local) int   { return -1000000 - int(p) }
func tagIsPhi(t int) (Local, bool) {
	if t <= -1000000 {
		return Local(-1000000 - t), true
	}
	return 0, false
}

func mapsEqual(a, b map[Local]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func rewriteUses(s *Stmt, sub map[Local]Local) {
	if len(sub) == 0 {
		return
	}
	switch s.Kind {
	case KBinary:
		if r, ok := sub[s.S1]; ok {
			s.S1 = r
		}
		if r, ok := sub[s.S2]; ok {
			s.S2 = r
		}
	case KBinaryImm, KUnary:
		if r, ok := sub[s.S1]; ok {
			s.S1 = r
		}
	case KCall:
		for i, a := range s.Args {
			if r, ok := sub[a]; ok {
				s.Args[i] = r
			}
		}
	case KBranch:
		if r, ok := sub[s.S1]; ok {
			s.S1 = r
		}
		if r, ok := sub[s.S2]; ok {
			s.S2 = r
		}
	case KStore:
		if r, ok := sub[s.S1]; ok {
			s.S1 = r
		}
		if r, ok := sub[s.S2]; ok {
			s.S2 = r
		}
	case KLoad:
		if r, ok := sub[s.S1]; ok {
			s.S1 = r
		}
	case KReturn:
		if r, ok := sub[s.S1]; ok {
			s.S1 = r
		}
	}
}
