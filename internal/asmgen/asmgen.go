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
)

// Emit lowers a whole mir.CompUnit into a Program ready for
// internal/asmtext. Each function is allocated, selected, simplified
// and relabeled independently (spec 5: no shared mutable state across
// functions); data items pass through unchanged.
func Emit(cu *mir.CompUnit) *Program {
	p := &Program{}
	for _, fn := range cu.Funcs {
		asn := regalloc.Allocate(fn)
		fa := selectFunc(fn, asn)
		peephole(fa)
		relabel(fa)
		relabel(fa)
		p.Funcs = append(p.Funcs, fa)
	}
	for _, d := range cu.Datas {
		p.Datas = append(p.Datas, DataAsm{
			Symbol:    d.Symbol,
			Kind:      DataKind(d.Kind),
			ElemCount: d.ElemCount,
			Init:      toInitElems(d.Init),
		})
	}
	return p
}

func toInitElems(in []mir.InitElem) []InitElem {
	out := make([]InitElem, len(in))
	for i, e := range in {
		out[i] = InitElem{Index: e.Index, Value: e.Value}
	}
	return out
}
