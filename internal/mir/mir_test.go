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

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysygo/internal/hir"
	"sysygo/internal/parser"
	"sysygo/internal/sema"
	"sysygo/internal/symtab"
)

// lowerFuncFromSource runs the whole frontend (lex/parse/check/HIR
// lower+fold) and returns the single function's freshly lowered MIR,
// before any of Optimize's passes run.
func lowerFuncFromSource(t *testing.T, src string) *Func {
	t.Helper()
	p, err := parser.New(strings.NewReader(src))
	require.NoError(t, err)
	prog, err := p.ParseProgram()
	require.NoError(t, err)
	unit, err := sema.Check(prog, symtab.New())
	require.NoError(t, err)
	hcu := hir.Lower(unit)
	hir.FoldConstants(hcu)
	cu := Lower(hcu)
	require.Len(t, cu.Funcs, 1)
	return cu.Funcs[0]
}

// countDefs walks a function and counts, for every local, how many
// statements define it.
func countDefs(fn *Func) map[Local]int {
	counts := map[Local]int{}
	for i := range fn.Stmts {
		if d, ok := fn.Stmts[i].Def(); ok {
			counts[d]++
		}
	}
	return counts
}

// TestSSADefinitionalUniqueness is universal law 2 (spec 8): after
// SSA, every phi local (id >= the pre-SSA NumPhis) has exactly one
// defining statement.
func TestSSADefinitionalUniqueness(t *testing.T) {
	fn := lowerFuncFromSource(t, `
		int f(int n) {
			int r = 0;
			int i = 0;
			while (i < n) {
				if (i < 2) {
					r = r + i;
				} else {
					r = r - i;
				}
				i = i + 1;
			}
			return r;
		}
	`)
	preNumPhis := fn.NumPhis
	ConstructSSA(fn)
	require.Greater(t, fn.NumPhis, preNumPhis, "branching def of r and i should force at least one phi local")

	defs := countDefs(fn)
	for l := Local(preNumPhis); l < Local(fn.NumPhis); l++ {
		assert.Equal(t, 1, defs[l], "phi local %d must have exactly one definition", l)
	}
}

// TestDCEDropsUnusedComputation exercises the dead-code elimination
// pass: a side-effect-free local that is never read is erased, along
// with the statement that defined it.
func TestDCEDropsUnusedComputation(t *testing.T) {
	fn := lowerFuncFromSource(t, `
		int f(int n) {
			int dead = n * n;
			return n;
		}
	`)
	deadLocal := NoLocal
	for pos := range fn.Stmts {
		if fn.Stmts[pos].Kind == KBinary {
			deadLocal, _ = fn.Stmts[pos].Def()
		}
	}
	require.NotEqual(t, NoLocal, deadLocal)

	DCE(fn)

	for pos := range fn.Stmts {
		d, ok := fn.Stmts[pos].Def()
		if ok {
			assert.NotEqual(t, deadLocal, d, "DCE must erase the dead multiply's defining statement")
		}
	}
}

// TestOptimizeFuncIsIdempotentOnAlreadyOptimizedInput runs the full
// pipeline twice; the second run leaves the statement count unchanged.
func TestOptimizeFuncIsIdempotentOnAlreadyOptimizedInput(t *testing.T) {
	fn := lowerFuncFromSource(t, `
		int f(int n) {
			int s = 0;
			int i = 0;
			while (i < n) {
				s = s + i;
				i = i + 1;
			}
			return s;
		}
	`)
	OptimizeFunc(fn)
	firstLen := len(fn.Stmts)
	OptimizeFunc(fn)
	assert.Equal(t, firstLen, len(fn.Stmts))
}
