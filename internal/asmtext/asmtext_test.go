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

package asmtext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysygo/internal/asmgen"
	"sysygo/internal/riscv"
	"sysygo/internal/symtab"
)

func TestFormatFuncEmitsLabelsAndInstructions(t *testing.T) {
	in := symtab.New()
	fSym := in.Intern("add")

	f := &asmgen.FuncAsm{
		Symbol: fSym,
		Labels: []int{1},
		Instrs: []asmgen.Instr{
			asmgen.BinaryInstr(asmgen.Add, riscv.A0, riscv.A0, riscv.A1),
			asmgen.JumpInstr(0),
		},
	}
	out := Format(&asmgen.Program{Funcs: []*asmgen.FuncAsm{f}}, in)

	assert.Contains(t, out, ".globl add")
	assert.Contains(t, out, "add:")
	assert.Contains(t, out, "add a0, a0, a1")

	beforeLabel := strings.Index(out, "add a0, a0, a1")
	labelPos := strings.Index(out, ".L0:")
	jumpPos := strings.Index(out, "j .L0")
	require.NotEqual(t, -1, labelPos)
	require.NotEqual(t, -1, jumpPos)
	assert.Less(t, beforeLabel, labelPos, "the label for position 1 must print between the two instructions")
	assert.Less(t, labelPos, jumpPos)
}

func TestFormatInstrCoversEveryOp(t *testing.T) {
	in := symtab.New()
	sym := in.Intern("g")

	cases := []struct {
		instr    asmgen.Instr
		contains string
	}{
		{asmgen.EmptyInstr(), ""},
		{asmgen.BinaryInstr(asmgen.Mul, riscv.A0, riscv.A1, riscv.A2), "mul a0, a1, a2"},
		{asmgen.BinaryImmInstr(asmgen.Slli, riscv.A0, riscv.A1, 3), "slli a0, a1, 3"},
		{asmgen.UnaryInstr(asmgen.Neg, riscv.A0, riscv.A1), "neg a0, a1"},
		{asmgen.LoadInstr(riscv.A0, riscv.SP, 8), "lw a0, 8(sp)"},
		{asmgen.StoreInstr(riscv.A0, riscv.SP, -4), "sw a0, -4(sp)"},
		{asmgen.LaInstr(riscv.A0, sym, 0), "la a0, g"},
		{asmgen.LaInstr(riscv.A0, sym, 4), "la a0, g+4"},
		{asmgen.LaInstr(riscv.A0, sym, -4), "la a0, g-4"},
		{asmgen.LiInstr(riscv.A0, 42), "li a0, 42"},
		{asmgen.BranchInstr(asmgen.Blt, riscv.A0, riscv.A1, 2), "blt a0, a1, .L2"},
		{asmgen.JumpInstr(1), "j .L1"},
		{asmgen.CallInstr(sym), "call g"},
		{asmgen.JrInstr(riscv.RA), "jr ra"},
	}
	for _, c := range cases {
		var b strings.Builder
		formatInstr(&b, c.instr, in)
		if c.contains == "" {
			assert.Empty(t, b.String())
			continue
		}
		assert.Contains(t, b.String(), c.contains)
	}
}

func TestFormatDataEmitsSparseRunsAsSkip(t *testing.T) {
	in := symtab.New()
	sym := in.Intern("arr")
	d := asmgen.DataAsm{
		Symbol:    sym,
		Kind:      asmgen.Data_,
		ElemCount: 5,
		Init:      []asmgen.InitElem{{Index: 0, Value: 7}, {Index: 3, Value: 9}},
	}
	out := Format(&asmgen.Program{Datas: []asmgen.DataAsm{d}}, in)

	assert.Contains(t, out, ".section .data")
	assert.Contains(t, out, ".long 7")
	assert.Contains(t, out, ".skip 8") // two zero words between index 0 and index 3
	assert.Contains(t, out, ".long 9")
	assert.Contains(t, out, ".skip 4") // one trailing zero word after index 3
}

func TestFormatDataBssEmitsOneSkipForWholeRegion(t *testing.T) {
	in := symtab.New()
	sym := in.Intern("buf")
	d := asmgen.DataAsm{Symbol: sym, Kind: asmgen.Bss, ElemCount: 16}
	out := Format(&asmgen.Program{Datas: []asmgen.DataAsm{d}}, in)

	assert.Contains(t, out, ".section .bss")
	assert.Contains(t, out, ".skip 64")
	assert.NotContains(t, out, ".long")
}

func TestFormatDataRodataSectionName(t *testing.T) {
	in := symtab.New()
	sym := in.Intern("k")
	d := asmgen.DataAsm{Symbol: sym, Kind: asmgen.Rodata, ElemCount: 1, Init: []asmgen.InitElem{{Index: 0, Value: 1}}}
	out := Format(&asmgen.Program{Datas: []asmgen.DataAsm{d}}, in)

	assert.Contains(t, out, ".section .rodata")
}
