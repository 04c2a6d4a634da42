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

// emitPrologue reserves the frame, saves the incoming return address
// and every callee-saved register this function assigns, and
// materializes every argument into its colored destination (spec 4.6:
// "materializes argument registers into their allocated destinations
// and runs any spill-stores for the entry" — the spill-stores
// themselves are ordinary mir.KStore statements inserted by
// internal/regalloc's spillToMemory and so are emitted by selectStmt
// like any other statement, immediately after this prologue runs).
func emitPrologue(b *builder, fn *mir.Func, frame *Frame, asn *regalloc.Assignment) {
	b.emitAll(adjustSP(-frame.Size))
	b.emit(StoreInstr(riscv.RA, riscv.SP, frame.RaOffset))
	for _, r := range frame.Callee {
		b.emit(StoreInstr(r, riscv.SP, frame.CalleeOffset[r]))
	}

	abi := riscv.DefaultABI
	argRegs := abi.ArgRegs()
	for k := 1; k < fn.NumArgs; k++ {
		dst := asn.Reg(mir.Local(k))
		i := k - 1
		if i < len(argRegs) {
			b.emit(UnaryInstr(Mv, dst, argRegs[i]))
		} else {
			off := int32(i-len(argRegs))*4 + frame.Size
			b.emit(LoadInstr(dst, riscv.SP, off))
		}
	}
}

// emitEpilogue restores every callee-saved register and the caller's
// return address, releases the frame, and jumps through ra.
func emitEpilogue(b *builder, frame *Frame) {
	for _, r := range frame.Callee {
		b.emit(LoadInstr(r, riscv.SP, frame.CalleeOffset[r]))
	}
	b.emit(LoadInstr(riscv.RA, riscv.SP, frame.RaOffset))
	b.emitAll(adjustSP(frame.Size))
	b.emit(JrInstr(riscv.RA))
}

// adjustSP emits addi sp, sp, delta, splitting into li+add/sub when
// delta falls outside the 12-bit immediate range a single addi allows.
func adjustSP(delta int32) []Instr {
	if fitsImm12(delta) {
		return []Instr{BinaryImmInstr(Addi, riscv.SP, riscv.SP, delta)}
	}
	if delta < 0 {
		return []Instr{
			LiInstr(riscv.T0, -delta),
			BinaryInstr(Sub, riscv.SP, riscv.SP, riscv.T0),
		}
	}
	return []Instr{
		LiInstr(riscv.T0, delta),
		BinaryInstr(Add, riscv.SP, riscv.SP, riscv.T0),
	}
}
