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

import "sysygo/internal/riscv"

// peephole runs the three builder-level simplifications of spec 4.6
// plus its degenerate-branch rule over every instruction in place,
// rewriting anything it drops to OpEmpty rather than removing it so
// no Label position ever needs to shift.
func peephole(f *FuncAsm) {
	for i := range f.Instrs {
		in := &f.Instrs[i]
		switch in.Op {
		case OpUnary:
			// drop r <- r
			if in.UOp == Mv && in.Rd == in.Rs1 {
				*in = EmptyInstr()
			}

		case OpBinary:
			// drop add/sub with x0 that is a no-op: rd == rs1 and the
			// other operand is the zero register.
			if in.Rd == in.Rs1 && in.Rs2 == riscv.X0 && (in.BOp == Add || in.BOp == Sub) {
				*in = EmptyInstr()
			}

		case OpBinaryImm:
			// drop addi/slli rd, rd, 0
			if in.Rd == in.Rs1 && in.Imm == 0 && (in.BIOp == Addi || in.BIOp == Slli) {
				*in = EmptyInstr()
			}

		case OpBranch:
			if in.Rs1 == in.Rs2 {
				switch in.Br {
				case Ble, Beq:
					// always true: degenerates to an unconditional jump
					*in = JumpInstr(in.Target)
				case Blt, Bne:
					// always false: degenerates to nothing
					*in = EmptyInstr()
				}
			}
		}
	}
}
