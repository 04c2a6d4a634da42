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

// Package asmgen selects one or more assembly Instrs per MIR statement
// (spec 4.6), grounded on falcon's per-LIR-op emission shape
// (compile/codegen/asm_x86.go) re-targeted to the RISC-V mnemonics in
// original_source/asm/output.cpp, and runs the peephole and relabel
// passes the emitted Program requires before internal/asmtext prints it.
package asmgen

import (
	"sysygo/internal/riscv"
	"sysygo/internal/symtab"
)

type Op int

const (
	// OpEmpty is a true no-op, printed as nothing by internal/asmtext:
	// the peephole pass rewrites a dropped instruction in place to
	// OpEmpty rather than physically removing it, so instruction
	// indices (and therefore every Label pointing at one) never shift.
	OpEmpty Op = iota
	OpBinary
	OpBinaryImm
	OpUnary
	OpLoad
	OpStore
	OpLa
	OpLi
	OpBranch
	OpJump
	OpCall
	OpJr
)

type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Rem
	Slt
)

func (op BinaryOp) String() string {
	switch op {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case Rem:
		return "rem"
	case Slt:
		return "slt"
	}
	return "?"
}

type BinaryImmOp int

const (
	Addi BinaryImmOp = iota
	Slli
	Slti
)

func (op BinaryImmOp) String() string {
	switch op {
	case Addi:
		return "addi"
	case Slli:
		return "slli"
	case Slti:
		return "slti"
	}
	return "?"
}

// UnaryOp covers the single-source moves/sign-independent tests this
// emitter needs: Mv is the canonical register copy (realizing every
// MIR Nop and every spill reload), Neg/Seqz/Snez realize HIR's
// arithmetic negation and the Eqz/Nez comparison-as-value forms.
type UnaryOp int

const (
	Mv UnaryOp = iota
	Neg
	Seqz
	Snez
)

func (op UnaryOp) String() string {
	switch op {
	case Mv:
		return "mv"
	case Neg:
		return "neg"
	case Seqz:
		return "seqz"
	case Snez:
		return "snez"
	}
	return "?"
}

// BranchOp is the four comparisons mir.BranchOp maps onto directly.
type BranchOp int

const (
	Blt BranchOp = iota
	Ble
	Beq
	Bne
)

func (op BranchOp) String() string {
	switch op {
	case Blt:
		return "blt"
	case Ble:
		return "ble"
	case Beq:
		return "beq"
	case Bne:
		return "bne"
	}
	return "?"
}

// Label indexes into a FuncAsm's Labels table, itself a pointer into
// Instrs, mirroring mir.Label/Func.Labels.
type Label int

// Instr is one assembly line. Only the fields relevant to Op are
// meaningful.
type Instr struct {
	Op Op

	Rd, Rs1, Rs2 riscv.Reg

	Imm int32 // Li's value, BinaryImm's immediate, Load/Store's offset

	Sym symtab.Symbol // La's address symbol, Call's callee
	Off int32         // La's byte offset from Sym

	BOp  BinaryOp
	BIOp BinaryImmOp
	UOp  UnaryOp
	Br   BranchOp

	Target Label // Branch/Jump's target
}

func EmptyInstr() Instr { return Instr{Op: OpEmpty} }

func BinaryInstr(op BinaryOp, rd, rs1, rs2 riscv.Reg) Instr {
	return Instr{Op: OpBinary, BOp: op, Rd: rd, Rs1: rs1, Rs2: rs2}
}

func BinaryImmInstr(op BinaryImmOp, rd, rs1 riscv.Reg, imm int32) Instr {
	return Instr{Op: OpBinaryImm, BIOp: op, Rd: rd, Rs1: rs1, Imm: imm}
}

func UnaryInstr(op UnaryOp, rd, rs1 riscv.Reg) Instr {
	return Instr{Op: OpUnary, UOp: op, Rd: rd, Rs1: rs1}
}

func LoadInstr(rd, rs1 riscv.Reg, off int32) Instr {
	return Instr{Op: OpLoad, Rd: rd, Rs1: rs1, Imm: off}
}

func StoreInstr(rs1Val, rs2Addr riscv.Reg, off int32) Instr {
	return Instr{Op: OpStore, Rs1: rs1Val, Rs2: rs2Addr, Imm: off}
}

func LaInstr(rd riscv.Reg, sym symtab.Symbol, off int32) Instr {
	return Instr{Op: OpLa, Rd: rd, Sym: sym, Off: off}
}

func LiInstr(rd riscv.Reg, imm int32) Instr {
	return Instr{Op: OpLi, Rd: rd, Imm: imm}
}

func BranchInstr(op BranchOp, rs1, rs2 riscv.Reg, target Label) Instr {
	return Instr{Op: OpBranch, Br: op, Rs1: rs1, Rs2: rs2, Target: target}
}

func JumpInstr(target Label) Instr { return Instr{Op: OpJump, Target: target} }

func CallInstr(sym symtab.Symbol) Instr { return Instr{Op: OpCall, Sym: sym} }

func JrInstr(rs1 riscv.Reg) Instr { return Instr{Op: OpJr, Rs1: rs1} }

// FuncAsm is one function's emitted assembly.
type FuncAsm struct {
	Symbol symtab.Symbol
	Labels []int
	Instrs []Instr
}

// DataAsm mirrors mir.Data, carried unchanged into the asm program.
type DataAsm struct {
	Symbol    symtab.Symbol
	Kind      DataKind
	ElemCount int
	Init      []InitElem
}

type DataKind int

const (
	Data_ DataKind = iota
	Rodata
	Bss
)

type InitElem struct {
	Index int
	Value int32
}

// Program is the whole emitted unit, ready for internal/asmtext.
type Program struct {
	Funcs []*FuncAsm
	Datas []DataAsm
}
