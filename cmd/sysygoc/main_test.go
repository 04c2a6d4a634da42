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

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompileEmitsWellFormedAssembly drives the whole pipeline end to
// end on a small parameter-arithmetic program and checks the emitted
// text has the shape spec 4.6/ch.6 promise: a .globl'd label per
// function, a balanced frame adjustment, and a final jr ra.
func TestCompileEmitsWellFormedAssembly(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "add.sy")
	out := filepath.Join(dir, "add.s")
	require.NoError(t, os.WriteFile(in, []byte(`
		int add(int a, int b) {
			int t = a + b;
			return t;
		}

		int main() {
			return add(1, 2);
		}
	`), 0644))

	require.NoError(t, compile(in, out))

	text, rerr := os.ReadFile(out)
	require.NoError(t, rerr)
	asm := string(text)

	assert.Contains(t, asm, ".globl add")
	assert.Contains(t, asm, "add:")
	assert.Contains(t, asm, ".globl main")
	assert.Contains(t, asm, "main:")
	assert.Contains(t, asm, "call add")
	assert.Contains(t, asm, "jr ra")

	addBody := asm[strings.Index(asm, "add:"):strings.Index(asm, "main:")]
	assert.Equal(t, 2, strings.Count(addBody, "addi sp, sp,"), "one frame-reserve and one frame-release addi")
}

// TestCompileSurfacesDiagnosticsAsError confirms a user-facing semantic
// error (not an internal panic) comes back as a plain error, not a
// crash, and writes nothing to the requested output file.
func TestCompileSurfacesDiagnosticsAsError(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bad.sy")
	out := filepath.Join(dir, "bad.s")
	require.NoError(t, os.WriteFile(in, []byte("int f() { return undefined_name; }"), 0644))

	err := compile(in, out)
	require.Error(t, err)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

// TestCompileRejectsMissingInputFile exercises the plain filesystem
// error path, before any parsing happens.
func TestCompileRejectsMissingInputFile(t *testing.T) {
	err := compile(filepath.Join(t.TempDir(), "missing.sy"), "")
	assert.Error(t, err)
}
