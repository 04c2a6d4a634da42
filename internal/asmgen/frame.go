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

// Frame is one function's stack layout: a fixed-size block reserved by
// the prologue and released by the epilogue (spec 4.6: "(arrays +
// callee_saves + spills) x 4"). This allocator folds spill slots into
// fn.Arrays directly (internal/regalloc's spillToMemory appends
// synthetic one-word arrays rather than tracking a separate spill
// region), so the array region below already counts spills; a
// dedicated word at RaOffset, just above the outgoing-argument area
// (so at offset 0 when that area is empty), holds the incoming return
// address.
type Frame struct {
	Size int32

	// OutgoingWords reserves space, at offset 0, for the excess
	// arguments (beyond the 8 integer argument registers) of whichever
	// call in this function passes the most of them; the callee on the
	// far side of such a call reads them back at Size+offset from its
	// own (further-decremented) sp, so this region is where the two
	// frames' argument hand-off actually lives.
	OutgoingWords int32

	RaOffset     int32
	Callee       []riscv.Reg
	CalleeOffset map[riscv.Reg]int32
	ArrayBase    int32
}

func buildFrame(fn *mir.Func, asn *regalloc.Assignment) *Frame {
	f := &Frame{Callee: asn.Callee, CalleeOffset: map[riscv.Reg]int32{}}
	f.OutgoingWords = maxOutgoingWords(fn)

	off := f.OutgoingWords * 4
	f.RaOffset = off
	off += 4
	for _, r := range asn.Callee {
		f.CalleeOffset[r] = off
		off += 4
	}
	f.ArrayBase = off
	off += int32(fn.FrameWords() * 4)
	f.Size = off
	return f
}

func maxOutgoingWords(fn *mir.Func) int32 {
	const numArgRegs = 8
	max := int32(0)
	for _, s := range fn.Stmts {
		if s.Kind != mir.KCall {
			continue
		}
		if extra := int32(len(s.Args)) - numArgRegs; extra > max {
			max = extra
		}
	}
	return max
}

// arrayAddr returns the instructions materializing the address of
// fn.Arrays[array]+off into rd: sp plus the frame's array-region base
// plus that array's byte offset, as a single addi when it fits the
// 12-bit immediate range, else a li+add pair.
func arrayAddr(fn *mir.Func, f *Frame, rd riscv.Reg, array int, off int32) []Instr {
	total := f.ArrayBase + int32(fn.ArrayOffs[array]) + off
	return spRelative(rd, total)
}

func spRelative(rd riscv.Reg, total int32) []Instr {
	if fitsImm12(total) {
		return []Instr{BinaryImmInstr(Addi, rd, riscv.SP, total)}
	}
	return []Instr{
		LiInstr(rd, total),
		BinaryInstr(Add, rd, rd, riscv.SP),
	}
}

func fitsImm12(v int32) bool { return v >= -2048 && v <= 2047 }
