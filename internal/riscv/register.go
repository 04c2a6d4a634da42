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

// Package riscv describes the RV32 register bank and calling
// convention the allocator (internal/regalloc) colors against and the
// emitter (internal/asmgen, internal/asmtext) targets. The bank layout
// — 16 caller-saved (ra, a0-a7, t0-t6) plus 14 callee-saved (s0-s11,
// gp, tp), with sp/x0/und as non-allocatable sentinels — is grounded
// on original_source/asm/register.h's Register enum and its
// MASK_REG_CALLER/MASK_REG_CALLEE split.
package riscv

// Reg indexes one physical register.
type Reg int

const (
	RA Reg = iota
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	T0
	T1
	T2
	T3
	T4
	T5
	T6
	S0
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	GP
	TP
	SP
	X0
	UND
)

var names = [...]string{
	"ra",
	"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
	"gp", "tp", "sp",
	"x0",
	"und",
}

func (r Reg) String() string {
	if int(r) < 0 || int(r) >= len(names) {
		return "?"
	}
	return names[r]
}

// NumCaller, NumCallee are the allocatable-bank sizes; NumAllocatable
// is their sum (spec 4.5/4.6's "29 allocatable + sentinels" — this
// dialect additionally allocates gp/tp as ordinary callee-saved
// registers, giving 30, matching NR_REGISTERS in register.h).
const (
	NumCaller      = 16 // RA, A0-A7, T0-T6
	NumCallee      = 14 // S0-S11, GP, TP
	NumAllocatable = NumCaller + NumCallee
)

// RegMask is a bitset over Reg, one bit per allocatable register.
type RegMask uint32

func Bit(r Reg) RegMask { return RegMask(1) << uint(r) }

const (
	MaskCaller RegMask = (1 << NumCaller) - 1
	MaskCallee RegMask = ((1 << NumAllocatable) - 1) &^ MaskCaller
	MaskAll    RegMask = (1 << NumAllocatable) - 1
)

func (m RegMask) Has(r Reg) bool { return m&Bit(r) != 0 }

func (m RegMask) IsEmpty() bool { return m == 0 }

// Lowest returns the lowest-numbered register set in m, and whether m
// was non-empty. The allocator uses this after intersecting a local's
// forbid mask with its hint mask (spec 4.5: callee-saved-hint-first
// coloring, so callers pass a mask already biased toward MaskCallee
// when the candidate crosses a call).
func (m RegMask) Lowest() (Reg, bool) {
	if m == 0 {
		return UND, false
	}
	for r := Reg(0); r < NumAllocatable; r++ {
		if m.Has(r) {
			return r, true
		}
	}
	return UND, false
}

func (m RegMask) Count() int {
	n := 0
	for m != 0 {
		m &= m - 1
		n++
	}
	return n
}

// ABI factors the argument/return register assignment behind a small
// description (an Open Question in spec 4.5/4.6: whether arg-register
// order should be hard-coded as enum numeric order). The first 8
// integer arguments go in A0-A7; the 9th and later spill to the
// caller's outgoing stack slots, addressed by asmgen.
type ABI struct{}

var DefaultABI = ABI{}

func (ABI) ArgRegs() []Reg {
	return []Reg{A0, A1, A2, A3, A4, A5, A6, A7}
}

func (ABI) ReturnReg() Reg { return A0 }

func (ABI) ReturnAddrReg() Reg { return RA }

func (ABI) StackPtrReg() Reg { return SP }

func (ABI) ZeroReg() Reg { return X0 }

// CalleeSaved lists the registers a function must restore before
// returning if it ever assigns them (s0-s11, gp, tp).
func (ABI) CalleeSaved() []Reg {
	regs := make([]Reg, 0, NumCallee)
	for r := S0; r <= TP; r++ {
		regs = append(regs, r)
	}
	return regs
}
