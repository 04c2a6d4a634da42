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

package mir

// Optimize runs the fixed pipeline of spec 4.4 over every function in
// cu: loop-invariant code motion, then SSA construction (so a value
// merged at a join is read through its own phi local), then global
// value numbering,
// then dead-code elimination.
func Optimize(cu *CompUnit) {
	for _, fn := range cu.Funcs {
		OptimizeFunc(fn)
	}
}

func OptimizeFunc(fn *Func) {
	LICM(fn)
	ConstructSSA(fn)
	GVN(fn)
	DCE(fn)
}
