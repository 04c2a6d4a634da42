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

// Package asmtext renders an internal/asmgen.Program as the textual
// assembly spec 6 describes: sections opened by a .globl + label pair,
// .long/.skip for data, and the fixed RISC-V mnemonic set. The shape
// is falcon's buf-accumulating Assembler (compile/codegen/asm_x86.go),
// the two-space indent and per-instruction line layout is
// original_source/asm/output.cpp's AsmFile printer retargeted from
// x86-AT&T to these RV32 mnemonics.
package asmtext

import (
	"fmt"
	"strings"

	"sysygo/internal/asmgen"
	"sysygo/internal/symtab"
)

// Format renders the whole program as one assembly source string.
func Format(p *asmgen.Program, in *symtab.Interner) string {
	var b strings.Builder
	for _, fn := range p.Funcs {
		formatFunc(&b, fn, in)
	}
	for _, d := range p.Datas {
		formatData(&b, d, in)
	}
	return b.String()
}

func formatFunc(b *strings.Builder, f *asmgen.FuncAsm, in *symtab.Interner) {
	name := in.Name(f.Symbol)
	fmt.Fprintf(b, "  .text\n")
	fmt.Fprintf(b, "  .globl %s\n", name)
	fmt.Fprintf(b, "%s:\n", name)

	// labelsAt[pos] lists every label (in its final, renumbered order)
	// targeting instruction index pos, including the one-past-the-end
	// position a label on the function's fallthrough exit would use.
	labelsAt := make(map[int][]int)
	for li, pos := range f.Labels {
		labelsAt[pos] = append(labelsAt[pos], li)
	}

	for i, instr := range f.Instrs {
		for _, li := range labelsAt[i] {
			fmt.Fprintf(b, ".L%d:\n", li)
		}
		formatInstr(b, instr, in)
	}
	for _, li := range labelsAt[len(f.Instrs)] {
		fmt.Fprintf(b, ".L%d:\n", li)
	}
}

func formatInstr(b *strings.Builder, ins asmgen.Instr, in *symtab.Interner) {
	switch ins.Op {
	case asmgen.OpEmpty:
		// dropped by peephole; prints nothing

	case asmgen.OpBinary:
		fmt.Fprintf(b, "  %s %s, %s, %s\n", ins.BOp, ins.Rd, ins.Rs1, ins.Rs2)

	case asmgen.OpBinaryImm:
		fmt.Fprintf(b, "  %s %s, %s, %d\n", ins.BIOp, ins.Rd, ins.Rs1, ins.Imm)

	case asmgen.OpUnary:
		fmt.Fprintf(b, "  %s %s, %s\n", ins.UOp, ins.Rd, ins.Rs1)

	case asmgen.OpLoad:
		fmt.Fprintf(b, "  lw %s, %d(%s)\n", ins.Rd, ins.Imm, ins.Rs1)

	case asmgen.OpStore:
		fmt.Fprintf(b, "  sw %s, %d(%s)\n", ins.Rs1, ins.Imm, ins.Rs2)

	case asmgen.OpLa:
		sym := in.Name(ins.Sym)
		switch {
		case ins.Off == 0:
			fmt.Fprintf(b, "  la %s, %s\n", ins.Rd, sym)
		case ins.Off > 0:
			fmt.Fprintf(b, "  la %s, %s+%d\n", ins.Rd, sym, ins.Off)
		default:
			fmt.Fprintf(b, "  la %s, %s%d\n", ins.Rd, sym, ins.Off)
		}

	case asmgen.OpLi:
		fmt.Fprintf(b, "  li %s, %d\n", ins.Rd, ins.Imm)

	case asmgen.OpBranch:
		fmt.Fprintf(b, "  %s %s, %s, .L%d\n", ins.Br, ins.Rs1, ins.Rs2, ins.Target)

	case asmgen.OpJump:
		fmt.Fprintf(b, "  j .L%d\n", ins.Target)

	case asmgen.OpCall:
		fmt.Fprintf(b, "  call %s\n", in.Name(ins.Sym))

	case asmgen.OpJr:
		fmt.Fprintf(b, "  jr %s\n", ins.Rs1)
	}
}

func formatData(b *strings.Builder, d asmgen.DataAsm, in *symtab.Interner) {
	name := in.Name(d.Symbol)
	fmt.Fprintf(b, "  .section %s\n", sectionName(d.Kind))
	fmt.Fprintf(b, "  .globl %s\n", name)
	fmt.Fprintf(b, "%s:\n", name)

	if d.Kind == asmgen.Bss {
		fmt.Fprintf(b, "  .skip %d\n", d.ElemCount*4)
		return
	}

	byIndex := make(map[int]int32, len(d.Init))
	for _, e := range d.Init {
		byIndex[e.Index] = e.Value
	}

	for i := 0; i < d.ElemCount; {
		if v, ok := byIndex[i]; ok {
			fmt.Fprintf(b, "  .long %d\n", v)
			i++
			continue
		}
		run := 0
		for i+run < d.ElemCount {
			if _, ok := byIndex[i+run]; ok {
				break
			}
			run++
		}
		fmt.Fprintf(b, "  .skip %d\n", run*4)
		i += run
	}
}

func sectionName(k asmgen.DataKind) string {
	switch k {
	case asmgen.Rodata:
		return ".rodata"
	case asmgen.Bss:
		return ".bss"
	default:
		return ".data"
	}
}
