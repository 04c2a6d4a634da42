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

package asmgen

import (
	"sysygo/internal/mir"
	"sysygo/internal/regalloc"
	"sysygo/internal/riscv"
)

type builder struct {
	instrs []Instr
}

func (b *builder) emit(i Instr) { b.instrs = append(b.instrs, i) }

func (b *builder) emitAll(is []Instr) { b.instrs = append(b.instrs, is...) }

// selectFunc lowers every mir.Stmt in fn to zero or more Instrs,
// materializes the prologue/epilogue around them (spec 4.6), and
// builds the asm-level label table by recording, for every mir
// statement position, the instruction index selection started at.
func selectFunc(fn *mir.Func, asn *regalloc.Assignment) *FuncAsm {
	frame := buildFrame(fn, asn)
	abi := riscv.DefaultABI
	reg := asn.Reg

	b := &builder{}
	emitPrologue(b, fn, frame, asn)

	asmPosOf := make([]int, len(fn.Stmts)+1)
	for pos := range fn.Stmts {
		asmPosOf[pos] = len(b.instrs)
		selectStmt(b, fn, frame, reg, abi, pos)
	}
	asmPosOf[len(fn.Stmts)] = len(b.instrs)

	labels := make([]int, len(fn.Labels))
	for i, p := range fn.Labels {
		labels[i] = asmPosOf[p]
	}

	return &FuncAsm{Symbol: fn.Symbol, Labels: labels, Instrs: b.instrs}
}

func selectStmt(b *builder, fn *mir.Func, frame *Frame, reg func(mir.Local) riscv.Reg, abi riscv.ABI, pos int) {
	s := &fn.Stmts[pos]
	switch s.Kind {
	case mir.KEmpty:
		// no-op; a label may still target this position

	case mir.KSymbolAddr:
		b.emit(LaInstr(reg(s.Dst), s.Sym, s.AddrOff))

	case mir.KArrayAddr:
		b.emitAll(arrayAddr(fn, frame, reg(s.Dst), s.Array, s.AddrOff))

	case mir.KImm:
		b.emit(LiInstr(reg(s.Dst), s.Imm))

	case mir.KBinary:
		b.emit(BinaryInstr(toBinaryOp(s.BOp), reg(s.Dst), reg(s.S1), reg(s.S2)))

	case mir.KBinaryImm:
		b.emitAll(selectBinaryImm(s, reg))

	case mir.KUnary:
		b.emitAll(selectUnary(s, reg))

	case mir.KCall:
		selectCall(b, fn, frame, reg, abi, s)

	case mir.KBranch:
		b.emit(BranchInstr(toBranchOp(s.Br), reg(s.S1), reg(s.S2), Label(s.Target)))

	case mir.KJump:
		b.emit(JumpInstr(Label(s.Target)))

	case mir.KStore:
		b.emit(StoreInstr(reg(s.S1), reg(s.S2), s.Imm))

	case mir.KLoad:
		b.emit(LoadInstr(reg(s.Dst), reg(s.S1), s.Imm))

	case mir.KReturn:
		selectReturn(b, fn, frame, reg, abi, s)
	}
}

func toBinaryOp(op mir.BinOp) BinaryOp {
	switch op {
	case mir.Add:
		return Add
	case mir.Sub:
		return Sub
	case mir.Mul:
		return Mul
	case mir.Div:
		return Div
	case mir.Mod:
		return Rem
	case mir.Lt:
		return Slt
	}
	return Add
}

func toBranchOp(op mir.BranchOp) BranchOp {
	switch op {
	case mir.BrLt:
		return Blt
	case mir.BrLeq:
		return Ble
	case mir.BrEq:
		return Beq
	case mir.BrNe:
		return Bne
	}
	return Beq
}

// selectBinaryImm realizes an Add/Sub/Mul/Lt-by-immediate, all of
// which mir/lower.go already range-checked before choosing BinaryImm
// over plain Binary (spec 4.2): Mul's immediate is always a power of
// two (realized as slli), Add/Lt's fits [-2048,2047] directly, and
// lowering already rewrote Sub-by-literal into Add-by-negated-literal.
func selectBinaryImm(s *mir.Stmt, reg func(mir.Local) riscv.Reg) []Instr {
	rd, rs1 := reg(s.Dst), reg(s.S1)
	switch s.BOp {
	case mir.Add:
		return []Instr{BinaryImmInstr(Addi, rd, rs1, s.Imm)}
	case mir.Mul:
		return []Instr{BinaryImmInstr(Slli, rd, rs1, log2(s.Imm))}
	case mir.Lt:
		return []Instr{BinaryImmInstr(Slti, rd, rs1, s.Imm)}
	}
	return []Instr{BinaryImmInstr(Addi, rd, rs1, s.Imm)}
}

func log2(v int32) int32 {
	n := int32(0)
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

func selectUnary(s *mir.Stmt, reg func(mir.Local) riscv.Reg) []Instr {
	rd, rs1 := reg(s.Dst), reg(s.S1)
	switch s.UOp {
	case mir.Nop:
		return []Instr{UnaryInstr(Mv, rd, rs1)}
	case mir.Neg:
		return []Instr{UnaryInstr(Neg, rd, rs1)}
	case mir.Eqz:
		return []Instr{UnaryInstr(Seqz, rd, rs1)}
	case mir.Nez:
		return []Instr{UnaryInstr(Snez, rd, rs1)}
	}
	return []Instr{UnaryInstr(Mv, rd, rs1)}
}

// selectCall materializes every argument into its ABI register (the
// first 8 directly, the rest into this frame's outgoing-argument area
// at sp+0 upward, where the callee finds them just above its own
// frame), issues the call, and if the callee
// returns a value, moves a0 into the destination.
func selectCall(b *builder, fn *mir.Func, frame *Frame, reg func(mir.Local) riscv.Reg, abi riscv.ABI, s *mir.Stmt) {
	argRegs := abi.ArgRegs()
	for i, a := range s.Args {
		if i < len(argRegs) {
			b.emit(UnaryInstr(Mv, argRegs[i], reg(a)))
		} else {
			off := int32(i-len(argRegs)) * 4
			b.emit(StoreInstr(reg(a), riscv.SP, off))
		}
	}
	b.emit(CallInstr(s.Sym))
	if s.HasDst {
		b.emit(UnaryInstr(Mv, reg(s.Dst), abi.ReturnReg()))
	}
}

// selectReturn moves the function's result (if any) into a0, restores
// every callee-saved register and the caller's return address, releases
// the frame, and jumps through the restored return address (spec 4.6:
// "Function exit is a jr to the local register that holds the saved
// return-address" — here always a0's sibling, ra itself, reloaded from
// the frame's dedicated slot).
func selectReturn(b *builder, fn *mir.Func, frame *Frame, reg func(mir.Local) riscv.Reg, abi riscv.ABI, s *mir.Stmt) {
	if !fn.RetVoid && s.S1 != mir.NoLocal {
		b.emit(UnaryInstr(Mv, abi.ReturnReg(), reg(s.S1)))
	}
	emitEpilogue(b, frame)
}
