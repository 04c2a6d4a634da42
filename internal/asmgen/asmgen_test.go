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
	"testing"

	"github.com/stretchr/testify/assert"

	"sysygo/internal/riscv"
)

func TestPeepholeDropsSelfMove(t *testing.T) {
	f := &FuncAsm{Instrs: []Instr{UnaryInstr(Mv, riscv.A0, riscv.A0)}}
	peephole(f)
	assert.Equal(t, OpEmpty, f.Instrs[0].Op)
}

func TestPeepholeDropsAddSubZero(t *testing.T) {
	f := &FuncAsm{Instrs: []Instr{
		BinaryInstr(Add, riscv.A0, riscv.A0, riscv.X0),
		BinaryInstr(Sub, riscv.A0, riscv.A0, riscv.X0),
		BinaryInstr(Add, riscv.A0, riscv.A1, riscv.X0), // different rs1: must survive
	}}
	peephole(f)
	assert.Equal(t, OpEmpty, f.Instrs[0].Op)
	assert.Equal(t, OpEmpty, f.Instrs[1].Op)
	assert.Equal(t, OpBinary, f.Instrs[2].Op)
}

func TestPeepholeDropsIdentityImmediate(t *testing.T) {
	f := &FuncAsm{Instrs: []Instr{
		BinaryImmInstr(Addi, riscv.A0, riscv.A0, 0),
		BinaryImmInstr(Slli, riscv.A0, riscv.A0, 0),
		BinaryImmInstr(Addi, riscv.A0, riscv.A0, 1), // non-zero: must survive
	}}
	peephole(f)
	assert.Equal(t, OpEmpty, f.Instrs[0].Op)
	assert.Equal(t, OpEmpty, f.Instrs[1].Op)
	assert.Equal(t, OpBinaryImm, f.Instrs[2].Op)
}

func TestPeepholeDegenerateBranchOnEqualOperands(t *testing.T) {
	f := &FuncAsm{Instrs: []Instr{
		BranchInstr(Beq, riscv.A0, riscv.A0, 3),
		BranchInstr(Ble, riscv.A0, riscv.A0, 4),
		BranchInstr(Blt, riscv.A0, riscv.A0, 5),
		BranchInstr(Bne, riscv.A0, riscv.A0, 6),
	}}
	peephole(f)
	assert.Equal(t, OpJump, f.Instrs[0].Op, "beq x,x is always taken")
	assert.Equal(t, Label(3), f.Instrs[0].Target)
	assert.Equal(t, OpJump, f.Instrs[1].Op, "ble x,x is always taken")
	assert.Equal(t, Label(4), f.Instrs[1].Target)
	assert.Equal(t, OpEmpty, f.Instrs[2].Op, "blt x,x is never taken")
	assert.Equal(t, OpEmpty, f.Instrs[3].Op, "bne x,x is never taken")
}

// TestRelabelThreadsJumpChains exercises the first relabel step: a
// jump to a jump is rewritten to jump straight to the final target.
func TestRelabelThreadsJumpChains(t *testing.T) {
	// .L0: j .L1
	// .L1: j .L2
	// .L2: add a0, a0, a0
	f := &FuncAsm{
		Labels: []int{0, 1, 2},
		Instrs: []Instr{
			JumpInstr(1),
			JumpInstr(2),
			BinaryInstr(Add, riscv.A0, riscv.A0, riscv.A0),
		},
	}
	relabel(f)
	// threading rewrites .L0's jump straight to .L2; the fallthrough
	// step then drops the now-unreachable `j .L2` at .L1 (it sits right
	// before .L2); renumbering leaves exactly one surviving label,
	// which becomes label 0.
	assert.Equal(t, Label(0), f.Instrs[0].Target)
	assert.Equal(t, OpEmpty, f.Instrs[1].Op)
	assert.Len(t, f.Labels, 1)
}

// TestRelabelDropsFallthroughJump exercises the second relabel step: a
// jump to the very next instruction is removed.
func TestRelabelDropsFallthroughJump(t *testing.T) {
	// .L0 labels the instruction right after the jump, so the jump is a
	// pure fallthrough and must be erased.
	f := &FuncAsm{
		Labels: []int{1},
		Instrs: []Instr{
			JumpInstr(0),
			BinaryInstr(Add, riscv.A0, riscv.A0, riscv.A0),
		},
	}
	relabel(f)
	assert.Equal(t, OpEmpty, f.Instrs[0].Op, "a jump straight to the following instruction is a no-op")
}

// TestRelabelRenumbersAndDropsUnusedLabels exercises the third relabel
// step: surviving labels are renumbered in order of first appearance,
// and a label nothing jumps to is dropped from the table.
func TestRelabelRenumbersAndDropsUnusedLabels(t *testing.T) {
	f := &FuncAsm{
		Labels: []int{2, 0}, // label 1 unused by any branch/jump below
		Instrs: []Instr{
			BranchInstr(Beq, riscv.A0, riscv.A1, 0),
			UnaryInstr(Mv, riscv.A0, riscv.A1),
			BinaryInstr(Add, riscv.A0, riscv.A0, riscv.A0),
		},
	}
	relabel(f)
	assert.Len(t, f.Labels, 1, "the unreferenced label must be dropped")
	assert.Equal(t, Label(0), f.Instrs[0].Target, "the surviving label renumbers to 0")
}

// TestRelabelSecondPassIsNoOp is universal law 6 (spec 8): once
// relabel has run, running it again changes nothing.
func TestRelabelSecondPassIsNoOp(t *testing.T) {
	f := &FuncAsm{
		Labels: []int{0, 1, 2},
		Instrs: []Instr{
			JumpInstr(1),
			JumpInstr(2),
			BinaryInstr(Add, riscv.A0, riscv.A0, riscv.A0),
		},
	}
	relabel(f)
	before := append([]Instr(nil), f.Instrs...)
	beforeLabels := append([]int(nil), f.Labels...)

	relabel(f)
	assert.Equal(t, before, f.Instrs)
	assert.Equal(t, beforeLabels, f.Labels)
}

// TestAssemblyImmediatesStayInRange is universal law 5 (spec 8):
// addi/slti immediates fit in [-2048, 2047]. Exercised through the
// frame's range-checked sp-adjustment helper, since a single addi must
// split into li+add (li+sub when moving sp down) once the frame no longer
// fits a 12-bit displacement.
func TestAssemblyImmediatesStayInRange(t *testing.T) {
	small := adjustSP(2000)
	assert := assert.New(t)
	assert.Len(small, 1)
	assert.Equal(OpBinaryImm, small[0].Op)
	assert.True(small[0].Imm >= -2048 && small[0].Imm <= 2047)

	big := adjustSP(-5000)
	assert.Len(big, 2)
	assert.Equal(OpLi, big[0].Op)
	assert.Equal(OpBinary, big[1].Op)
}
