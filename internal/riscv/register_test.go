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

package riscv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterNames(t *testing.T) {
	assert.Equal(t, "ra", RA.String())
	assert.Equal(t, "a0", A0.String())
	assert.Equal(t, "s11", S11.String())
	assert.Equal(t, "sp", SP.String())
	assert.Equal(t, "x0", X0.String())
	assert.Equal(t, "?", Reg(-1).String())
}

func TestMaskCallerAndCalleeArePartitionAndCoverAll(t *testing.T) {
	assert.Equal(t, MaskAll, MaskCaller|MaskCallee)
	assert.True(t, (MaskCaller&MaskCallee).IsEmpty())
	assert.Equal(t, NumAllocatable, MaskAll.Count())
	assert.Equal(t, NumCaller, MaskCaller.Count())
	assert.Equal(t, NumCallee, MaskCallee.Count())
}

func TestMaskHasAndLowest(t *testing.T) {
	m := Bit(A0) | Bit(S0)
	assert.True(t, m.Has(A0))
	assert.True(t, m.Has(S0))
	assert.False(t, m.Has(A1))

	r, ok := m.Lowest()
	assert.True(t, ok)
	assert.Equal(t, A0, r)

	empty := RegMask(0)
	_, ok = empty.Lowest()
	assert.False(t, ok)
}

func TestDefaultABI(t *testing.T) {
	abi := DefaultABI
	assert.Len(t, abi.ArgRegs(), 8)
	assert.Equal(t, A0, abi.ArgRegs()[0])
	assert.Equal(t, A0, abi.ReturnReg())
	assert.Equal(t, RA, abi.ReturnAddrReg())
	assert.Equal(t, SP, abi.StackPtrReg())
	assert.Equal(t, X0, abi.ZeroReg())
	assert.Len(t, abi.CalleeSaved(), NumCallee)
}
