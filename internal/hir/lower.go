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

package hir

import (
	"sysygo/internal/ast"
	"sysygo/internal/sema"
	"sysygo/internal/xerr"
)

// Lower builds the structured HIR of spec 3.2 from a checked sema.Unit.
// It resolves every surface identifier into explicit local/array/global
// addressing via unit.Bindings; it does not fold constants (that is
// FoldConstants, spec 4.1, run separately so the two passes stay
// independently testable for idempotence).
func Lower(unit *sema.Unit) *CompUnit {
	cu := &CompUnit{}
	for _, g := range unit.Globals {
		cu.Datas = append(cu.Datas, lowerGlobal(g))
	}
	for _, fn := range unit.Funcs {
		cu.Funcs = append(cu.Funcs, lowerFunc(unit, fn))
	}
	return cu
}

func lowerGlobal(g *sema.Global) *DataItem {
	d := &DataItem{Symbol: g.Symbol, ElemCount: g.ElemCount}
	switch g.Section {
	case sema.SectionData:
		d.Kind = Data
	case sema.SectionRodata:
		d.Kind = Rodata
	case sema.SectionBss:
		d.Kind = Bss
	}
	for _, e := range g.Init {
		d.Init = append(d.Init, InitElem{Index: e.Index, Value: e.Value})
	}
	return d
}

type funcLowerer struct {
	unit *sema.Unit
}

func lowerFunc(unit *sema.Unit, fn *sema.Func) *FuncItem {
	fl := &funcLowerer{unit: unit}
	item := &FuncItem{
		Symbol:     fn.Symbol,
		RetVoid:    fn.RetVoid,
		ArgCount:   len(fn.Params),
		LocalCount: fn.NumLocals,
	}
	for id := 0; id < fn.NumArrays; id++ {
		dims := fn.ArrayDims[id]
		elemCount := 1
		for _, d := range dims {
			elemCount *= int(d)
		}
		elemSize := 1
		for i := 1; i < len(dims); i++ {
			elemSize *= int(dims[i])
		}
		item.Arrays = append(item.Arrays, ArraySlot{ElemCount: elemCount, ElemSize: elemSize})
	}
	item.Body = fl.lowerBlock(fn.Body)
	return item
}

func (fl *funcLowerer) lowerBlock(b *ast.BlockStmt) *BlockStmt {
	out := &BlockStmt{}
	for _, s := range b.Stmts {
		out.Stmts = append(out.Stmts, fl.lowerStmt(s))
	}
	return out
}

func (fl *funcLowerer) lowerStmt(s ast.Stmt) Stmt {
	switch st := s.(type) {
	case *ast.BlockStmt:
		return fl.lowerBlock(st)
	case *ast.DeclStmt:
		return fl.lowerDeclStmt(st.Decl)
	case *ast.AssignStmt:
		return fl.lowerAssign(st)
	case *ast.ExprStmt:
		return &ExprStmt{X: fl.lowerExpr(st.X)}
	case *ast.IfStmt:
		cond := fl.lowerCond(st.Cond)
		then := fl.lowerStmt(st.Then)
		if st.Else != nil {
			return &IfElseStmt{Cond: cond, Then: then, Else: fl.lowerStmt(st.Else)}
		}
		return &IfStmt{Cond: cond, Then: then}
	case *ast.WhileStmt:
		return &WhileStmt{Cond: fl.lowerCond(st.Cond), Body: fl.lowerStmt(st.Body)}
	case *ast.BreakStmt:
		return BreakStmt{}
	case *ast.ContinueStmt:
		return ContinueStmt{}
	case *ast.ReturnStmt:
		if st.Value == nil {
			return &ReturnStmt{}
		}
		return &ReturnStmt{Val: fl.lowerExpr(st.Value)}
	}
	xerr.ShouldNotReachHere()
	return nil
}

// lowerDeclStmt handles a local declaration statement. A scalar local
// needs an Assign only when it has an initializer and isn't a const
// (consts have no storage; their uses were already folded to literals
// by lowerExpr). An array local with an initializer gets one Store per
// element: the initializer's non-zero values, and a literal zero for
// every element the sparse list leaves out. The prologue does not
// clear the frame, so an array declared without an initializer is not
// written here at all.
func (fl *funcLowerer) lowerDeclStmt(d *ast.VarDecl) Stmt {
	b := fl.unit.DeclBindings[d]
	blk := &BlockStmt{}
	if !b.IsArray {
		if b.Kind != sema.BindConst && d.HasInit {
			blk.Stmts = append(blk.Stmts, &AssignStmt{Local: HirLocalId(b.LocalID), Val: fl.lowerExpr(d.ScalarOp)})
		}
		return blk
	}
	for _, e := range b.Init {
		addr := &ArrayAddrExpr{Array: HirArrayId(b.ArrayID), Offset: int32(e.Index * 4)}
		blk.Stmts = append(blk.Stmts, &StoreStmt{Addr: addr, Val: &LitExpr{Value: e.Value}})
	}
	if d.HasInit {
		given := map[int]bool{}
		for _, e := range b.Init {
			given[e.Index] = true
		}
		count := 1
		for _, dim := range b.Dims {
			count *= int(dim)
		}
		for i := 0; i < count; i++ {
			if !given[i] {
				addr := &ArrayAddrExpr{Array: HirArrayId(b.ArrayID), Offset: int32(i * 4)}
				blk.Stmts = append(blk.Stmts, &StoreStmt{Addr: addr, Val: &LitExpr{Value: 0}})
			}
		}
	}
	return blk
}

func (fl *funcLowerer) lowerAssign(st *ast.AssignStmt) Stmt {
	switch tgt := st.Target.(type) {
	case *ast.Ident:
		b := fl.unit.Bindings[tgt]
		val := fl.lowerExpr(st.Value)
		if b.Kind == sema.BindGlobal {
			return &StoreStmt{Addr: &GlobalAddrExpr{Sym: b.Symbol}, Val: val}
		}
		return &AssignStmt{Local: HirLocalId(b.LocalID), Val: val}
	case *ast.IndexExpr:
		addr := fl.lowerAddr(tgt)
		return &StoreStmt{Addr: addr, Val: fl.lowerExpr(st.Value)}
	}
	xerr.ShouldNotReachHere()
	return nil
}

func (fl *funcLowerer) lowerExpr(e ast.Expr) Expr {
	switch x := e.(type) {
	case *ast.IntLit:
		return &LitExpr{Value: x.Value}
	case *ast.Ident:
		b := fl.unit.Bindings[x]
		switch {
		case b.Kind == sema.BindConst:
			return &LitExpr{Value: b.ConstVal}
		case b.Kind == sema.BindGlobal:
			return &UnaryExpr{Op: Load, X: &GlobalAddrExpr{Sym: b.Symbol}}
		default:
			return &LocalExpr{Local: HirLocalId(b.LocalID)}
		}
	case *ast.IndexExpr:
		return &UnaryExpr{Op: Load, X: fl.lowerAddr(x)}
	case *ast.UnaryExpr:
		op := Neg
		if x.Op == ast.Not {
			op = Not
		}
		return &UnaryExpr{Op: op, X: fl.lowerExpr(x.Operand)}
	case *ast.BinaryExpr:
		if x.Op == ast.And || x.Op == ast.Or {
			return fl.condAsValue(fl.lowerCond(x))
		}
		return &BinaryExpr{Op: toHirBinOp(x.Op), L: fl.lowerExpr(x.Left), R: fl.lowerExpr(x.Right)}
	case *ast.CallExpr:
		sym, _ := fl.unit.Interner.Lookup(x.Callee)
		call := &CallExpr{Callee: sym}
		for _, a := range x.Args {
			call.Args = append(call.Args, fl.lowerExpr(a))
		}
		return call
	}
	xerr.ShouldNotReachHere()
	return nil
}

// condAsValue materializes a Cond as a 0/1 integer value; used only
// when a logical expression appears outside an if/while condition
// position (the surface grammar allows `x = a || b;`).
func (fl *funcLowerer) condAsValue(c Cond) Expr {
	switch cc := c.(type) {
	case TrueCond:
		return &LitExpr{Value: 1}
	case FalseCond:
		return &LitExpr{Value: 0}
	case *CmpCond:
		return &BinaryExpr{Op: cc.Op, L: cc.L, R: cc.R}
	case *AndCond:
		return &BinaryExpr{Op: Mul, L: fl.condAsValue(cc.L), R: fl.condAsValue(cc.R)}
	case *OrCond:
		// or(a,b) = 1 - (1-a)*(1-b); expressed with the operators HIR
		// already has: not(and(not a, not b)).
		notL := &UnaryExpr{Op: Not, X: fl.condAsValue(cc.L)}
		notR := &UnaryExpr{Op: Not, X: fl.condAsValue(cc.R)}
		return &UnaryExpr{Op: Not, X: &BinaryExpr{Op: Mul, L: notL, R: notR}}
	}
	xerr.ShouldNotReachHere()
	return nil
}

func (fl *funcLowerer) lowerCond(e ast.Expr) Cond {
	if be, ok := e.(*ast.BinaryExpr); ok {
		switch be.Op {
		case ast.And:
			return &AndCond{L: fl.lowerCond(be.Left), R: fl.lowerCond(be.Right)}
		case ast.Or:
			return &OrCond{L: fl.lowerCond(be.Left), R: fl.lowerCond(be.Right)}
		case ast.Lt, ast.Gt, ast.Leq, ast.Geq, ast.Eq, ast.Ne:
			return &CmpCond{Op: toHirBinOp(be.Op), L: fl.lowerExpr(be.Left), R: fl.lowerExpr(be.Right)}
		}
	}
	// A bare value in condition context: `v` means `v != 0`.
	return &CmpCond{Op: Ne, L: fl.lowerExpr(e), R: &LitExpr{Value: 0}}
}

// lowerAddr computes the address Expr for an *ast.IndexExpr chain:
// ArrayAddrExpr/GlobalAddrExpr (or, for a decayed-array parameter, the
// pointer-valued LocalExpr) plus accumulated byte offsets, with
// dynamic index contributions folded in as Binary Add/Mul nodes.
func (fl *funcLowerer) lowerAddr(e *ast.IndexExpr) Expr {
	b := fl.unit.Bindings[e]
	chain := sema.IndexChain(e)

	var base Expr
	switch {
	case b.Kind == sema.BindGlobal:
		base = &GlobalAddrExpr{Sym: b.Symbol}
	case b.IsPtrParam:
		base = &LocalExpr{Local: HirLocalId(b.LocalID)}
	default:
		base = &ArrayAddrExpr{Array: HirArrayId(b.ArrayID)}
	}

	dims := b.Dims
	for i, idxExpr := range chain {
		stride := 1
		for j := i + 1; j < len(dims); j++ {
			stride *= int(dims[j])
		}
		idx := fl.lowerExpr(idxExpr)
		byteStride := int32(stride * 4)
		offset := &BinaryExpr{Op: Mul, L: idx, R: &LitExpr{Value: byteStride}}
		base = &BinaryExpr{Op: Add, L: base, R: offset}
	}
	return base
}

func toHirBinOp(op ast.BinOp) BinOp {
	switch op {
	case ast.Add:
		return Add
	case ast.Sub:
		return Sub
	case ast.Mul:
		return Mul
	case ast.Div:
		return Div
	case ast.Mod:
		return Mod
	case ast.Lt:
		return Lt
	case ast.Gt:
		return Gt
	case ast.Leq:
		return Leq
	case ast.Geq:
		return Geq
	case ast.Eq:
		return Eq
	case ast.Ne:
		return Ne
	}
	xerr.ShouldNotReachHere()
	return Add
}
