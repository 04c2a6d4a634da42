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

package hir

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sysygo/internal/parser"
	"sysygo/internal/sema"
	"sysygo/internal/symtab"
)

func lowerSource(t *testing.T, src string) *CompUnit {
	t.Helper()
	p, err := parser.New(strings.NewReader(src))
	require.NoError(t, err)
	prog, err := p.ParseProgram()
	require.NoError(t, err)
	unit, err := sema.Check(prog, symtab.New())
	require.NoError(t, err)
	return Lower(unit)
}

// TestFoldConstantsIsIdempotent is universal law 1 (spec 8): running
// const-eval twice yields the same tree as running it once.
func TestFoldConstantsIsIdempotent(t *testing.T) {
	cu := lowerSource(t, `
		int f(int x) {
			int a = 1 + 2 * 3;
			int b = (a - a) + x;
			if (1 < 2) {
				return a + b;
			}
			return 0;
		}
	`)
	FoldConstants(cu)
	once := cu.Funcs[0].Body

	FoldConstants(cu)
	twice := cu.Funcs[0].Body

	assert := require.New(t)
	assert.True(reflect.DeepEqual(once, twice), "second fold pass changed the tree")
}

// TestFoldConstantsLeavesDivisionByZeroUnfolded honors spec 9: a
// constant division by zero must trap at runtime, not fold away or
// error at compile time.
func TestFoldConstantsLeavesDivisionByZeroUnfolded(t *testing.T) {
	cu := lowerSource(t, `
		int f() {
			return 1 / 0;
		}
	`)
	FoldConstants(cu)
	body := cu.Funcs[0].Body.Stmts
	ret, ok := body[len(body)-1].(*ReturnStmt)
	require.True(t, ok)
	_, isBinary := ret.Val.(*BinaryExpr)
	require.True(t, isBinary, "division by a folded-zero literal must stay a runtime Div, not fold to a constant")
}
