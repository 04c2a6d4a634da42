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

package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysygo/internal/ast"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p, err := New(strings.NewReader(src))
	require.NoError(t, err)
	prog, err := p.ParseProgram()
	require.NoError(t, err)
	return prog
}

func TestParseGlobalScalarAndArrayDecls(t *testing.T) {
	prog := parseProgram(t, "const int n = 4; int a[n][2];")
	require.Len(t, prog.Items, 2)

	n, ok := prog.Items[0].(*ast.VarDecl)
	require.True(t, ok)
	assert.True(t, n.IsConst)
	assert.Empty(t, n.Dims)

	a, ok := prog.Items[1].(*ast.VarDecl)
	require.True(t, ok)
	assert.False(t, a.IsConst)
	assert.Len(t, a.Dims, 2)
}

func TestParseFuncDeclWithParamsAndBody(t *testing.T) {
	prog := parseProgram(t, `
		int add(int a, int b) {
			return a + b;
		}
	`)
	require.Len(t, prog.Items, 1)
	fn, ok := prog.Items[0].(*ast.FuncDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.False(t, fn.RetVoid)
	require.Len(t, fn.Params, 2)
	require.Len(t, fn.Body.Stmts, 1)

	ret, ok := fn.Body.Stmts[0].(*ast.ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.Add, bin.Op)
}

func TestParseIfWhileBreakContinue(t *testing.T) {
	prog := parseProgram(t, `
		void f() {
			while (1) {
				if (1) {
					break;
				} else {
					continue;
				}
			}
		}
	`)
	fn := prog.Items[0].(*ast.FuncDecl)
	ws, ok := fn.Body.Stmts[0].(*ast.WhileStmt)
	require.True(t, ok)
	ifs, ok := ws.Body.(*ast.BlockStmt).Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	_, ok = ifs.Then.(*ast.BlockStmt).Stmts[0].(*ast.BreakStmt)
	assert.True(t, ok)
	_, ok = ifs.Else.(*ast.BlockStmt).Stmts[0].(*ast.ContinueStmt)
	assert.True(t, ok)
}

func TestParseArrayParamAndCallArgs(t *testing.T) {
	prog := parseProgram(t, `
		int sum(int a[], int n) {
			return a[0] + putarray(n, a);
		}
	`)
	fn := prog.Items[0].(*ast.FuncDecl)
	require.True(t, fn.Params[0].IsArray)

	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	bin := ret.Value.(*ast.BinaryExpr)
	idx, ok := bin.Left.(*ast.IndexExpr)
	require.True(t, ok)
	_, ok = idx.Array.(*ast.Ident)
	assert.True(t, ok)

	call, ok := bin.Right.(*ast.CallExpr)
	require.True(t, ok)
	assert.Equal(t, "putarray", call.Callee)
	assert.Len(t, call.Args, 2)
}

func TestOperatorPrecedenceAndAssociativity(t *testing.T) {
	prog := parseProgram(t, "int x() { return 1 + 2 * 3; }")
	fn := prog.Items[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	add, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.Add, add.Op)
	_, ok = add.Left.(*ast.IntLit)
	assert.True(t, ok)
	mul, ok := add.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.Mul, mul.Op)
}

func TestMissingExpectedTokenIsParseError(t *testing.T) {
	p, err := New(strings.NewReader("int main( { return 0; }"))
	require.NoError(t, err)
	_, err = p.ParseProgram()
	assert.Error(t, err)
}
