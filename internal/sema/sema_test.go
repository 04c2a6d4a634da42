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

package sema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysygo/internal/diag"
	"sysygo/internal/parser"
	"sysygo/internal/symtab"
)

func check(t *testing.T, src string) (*Unit, error) {
	t.Helper()
	p, err := parser.New(strings.NewReader(src))
	require.NoError(t, err)
	prog, err := p.ParseProgram()
	require.NoError(t, err)
	return Check(prog, symtab.New())
}

func TestCheckAcceptsWellFormedProgram(t *testing.T) {
	unit, err := check(t, `
		int g[4];
		int add(int a, int b) {
			int t = a + b;
			return t;
		}
	`)
	require.NoError(t, err)
	require.Len(t, unit.Globals, 1)
	require.Len(t, unit.Funcs, 1)
}

func TestCheckRejectsUndeclaredIdentifier(t *testing.T) {
	_, err := check(t, "int f() { return x; }")
	require.Error(t, err)
	var derr *diag.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, diag.Name, derr.Kind)
}

func TestCheckRejectsDuplicateDefinitionInScope(t *testing.T) {
	_, err := check(t, "int f() { int a = 1; int a = 2; return a; }")
	require.Error(t, err)
	var derr *diag.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, diag.Name, derr.Kind)
}

func TestCheckRejectsBreakOutsideLoop(t *testing.T) {
	_, err := check(t, "void f() { break; }")
	require.Error(t, err)
}

func TestCheckRejectsTooManyArguments(t *testing.T) {
	var b strings.Builder
	b.WriteString("int f(")
	for i := 0; i < 9; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("int a")
		b.WriteByte(byte('0' + i))
	}
	b.WriteString(") { return 0; }")
	_, err := check(t, b.String())
	require.Error(t, err)
	var derr *diag.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, diag.Type, derr.Kind)
}

func TestCheckRejectsNonPositiveArraySize(t *testing.T) {
	_, err := check(t, "int a[0];")
	require.Error(t, err)
}

func TestCheckRejectsDivisionByZeroInConstExpr(t *testing.T) {
	_, err := check(t, "const int n = 1 / 0;")
	require.Error(t, err)
	var derr *diag.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, diag.Const, derr.Kind)
}

func TestCheckRejectsFunctionCallInConstExpr(t *testing.T) {
	_, err := check(t, "int f() { return 0; } const int n = f();")
	require.Error(t, err)
}
