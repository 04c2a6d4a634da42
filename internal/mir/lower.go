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

import (
	"sysygo/internal/hir"
	"sysygo/internal/xerr"
)

// Lower flattens every hir.FuncItem into an mir.Func (spec 4.2). HIR
// local ids carry over unchanged: HIR already reserves id 0 for the
// return address, so MIR local 0 is the return-address pseudo-local
// and occupies the same [0, NumArgs) numbering band the rest of the
// calling convention's arguments do (spec 3.3), even though no MIR
// statement ever defines
// or uses it directly — asmgen always materializes it through the `ra`
// register in the prologue/epilogue.
func Lower(cu *hir.CompUnit) *CompUnit {
	out := &CompUnit{}
	for _, d := range cu.Datas {
		out.Datas = append(out.Datas, lowerData(d))
	}
	for _, fn := range cu.Funcs {
		out.Funcs = append(out.Funcs, lowerFunc(fn))
	}
	return out
}

func lowerData(d *hir.DataItem) Data {
	out := Data{Symbol: d.Symbol, ElemCount: d.ElemCount}
	switch d.Kind {
	case hir.Data:
		out.Kind = Data_
	case hir.Rodata:
		out.Kind = Rodata
	case hir.Bss:
		out.Kind = Bss
	}
	for _, e := range d.Init {
		out.Init = append(out.Init, InitElem{Index: e.Index, Value: e.Value})
	}
	return out
}

func mirLocal(h hir.HirLocalId) Local { return Local(h) }

type loopLabels struct{ cont, brk Label }

type builder struct {
	nextLocal Local
	stmts     []Stmt
	labels    []int
	loops     []loopLabels
}

func (b *builder) emit(s Stmt) int {
	b.stmts = append(b.stmts, s)
	return len(b.stmts) - 1
}

func (b *builder) newTemp() Local {
	t := b.nextLocal
	b.nextLocal++
	return t
}

func (b *builder) newLabel() Label {
	b.labels = append(b.labels, -1)
	return Label(len(b.labels) - 1)
}

func (b *builder) placeLabel(l Label) { b.labels[l] = len(b.stmts) }

func (b *builder) pushLoop(cont, brk Label) { b.loops = append(b.loops, loopLabels{cont, brk}) }
func (b *builder) popLoop()                 { b.loops = b.loops[:len(b.loops)-1] }

func (b *builder) currentContinue() Label {
	if len(b.loops) == 0 {
		xerr.ShouldNotReachHere()
	}
	return b.loops[len(b.loops)-1].cont
}

func (b *builder) currentBreak() Label {
	if len(b.loops) == 0 {
		xerr.ShouldNotReachHere()
	}
	return b.loops[len(b.loops)-1].brk
}

func lowerFunc(fn *hir.FuncItem) *Func {
	b := &builder{nextLocal: Local(fn.LocalCount)}
	b.emit(EmptyStmt())

	b.lowerStmt(fn.Body)
	if fn.RetVoid {
		b.emit(ReturnStmt(NoLocal))
	}
	b.emit(EmptyStmt())

	out := &Func{
		Symbol:    fn.Symbol,
		RetVoid:   fn.RetVoid,
		NumArgs:   fn.ArgCount + 1,
		NumLocals: fn.LocalCount,
		NumTemps:  int(b.nextLocal),
		NumPhis:   int(b.nextLocal),
		Stmts:     b.stmts,
		Labels:    b.labels,
	}
	off := 0
	for _, a := range fn.Arrays {
		out.Arrays = append(out.Arrays, ArraySlot{ElemCount: a.ElemCount, ElemSize: a.ElemSize})
		out.ArrayOffs = append(out.ArrayOffs, off*4)
		off += a.ElemCount
	}
	return out
}

func (b *builder) lowerStmt(s hir.Stmt) {
	switch st := s.(type) {
	case *hir.BlockStmt:
		for _, child := range st.Stmts {
			b.lowerStmt(child)
		}
	case *hir.StoreStmt:
		addr, off := b.lowerMemAddr(st.Addr)
		val := b.lowerExpr(st.Val)
		b.emit(StoreStmt(val, addr, off))
	case *hir.AssignStmt:
		val := b.lowerExpr(st.Val)
		b.emit(UnaryStmt(mirLocal(st.Local), val, Nop))
	case *hir.ExprStmt:
		b.lowerExpr(st.X)
	case *hir.ReturnStmt:
		if st.Val == nil {
			b.emit(ReturnStmt(NoLocal))
			return
		}
		b.emit(ReturnStmt(b.lowerExpr(st.Val)))
	case *hir.IfStmt:
		end := b.newLabel()
		b.jumpIfFalse(st.Cond, end)
		b.lowerStmt(st.Then)
		b.placeLabel(end)
	case *hir.IfElseStmt:
		elseLabel, end := b.newLabel(), b.newLabel()
		b.jumpIfFalse(st.Cond, elseLabel)
		b.lowerStmt(st.Then)
		b.emit(JumpStmt(end))
		b.placeLabel(elseLabel)
		b.lowerStmt(st.Else)
		b.placeLabel(end)
	case *hir.WhileStmt:
		head, tail := b.newLabel(), b.newLabel()
		b.emit(EmptyStmt()) // preheader slot: labels placed before the loop target this, not head
		b.placeLabel(head)
		b.jumpIfFalse(st.Cond, tail)
		b.pushLoop(head, tail)
		b.lowerStmt(st.Body)
		b.popLoop()
		b.emit(JumpStmt(head))
		b.placeLabel(tail)
	case hir.BreakStmt:
		b.emit(JumpStmt(b.currentBreak()))
	case hir.ContinueStmt:
		b.emit(JumpStmt(b.currentContinue()))
	default:
		xerr.ShouldNotReachHere()
	}
}

// lowerMemAddr computes the address operand for a Load/Store, peeling
// a trailing `Add(base, literal)` into the instruction's own byte
// offset when one survived constant folding (spec 3.3's Store/Load
// each carry an offset field precisely so this is usually a no-op:
// hir's fold pass already absorbs literal offsets into ArrayAddr/
// GlobalAddr, so the peel below is a safety net, not the common path).
func (b *builder) lowerMemAddr(e hir.Expr) (Local, int32) {
	if be, ok := e.(*hir.BinaryExpr); ok && be.Op == hir.Add {
		if lit, ok := litOf(be.R); ok {
			return b.lowerExpr(be.L), lit
		}
	}
	return b.lowerExpr(e), 0
}

func litOf(e hir.Expr) (int32, bool) {
	if l, ok := e.(*hir.LitExpr); ok {
		return l.Value, true
	}
	return 0, false
}

func isPow2(v int32) bool { return v > 0 && v&(v-1) == 0 }

// fitsImm reports whether v fits the Add/Lt immediate range of spec
// 3.3, [-2048, 2047] (a RISC-V 12-bit signed immediate).
func fitsImm(v int32) bool { return v >= -2048 && v <= 2047 }

func (b *builder) lowerExpr(e hir.Expr) Local {
	switch x := e.(type) {
	case *hir.LocalExpr:
		return mirLocal(x.Local)
	case *hir.LitExpr:
		if x.Value == 0 {
			return ZeroReg
		}
		t := b.newTemp()
		b.emit(ImmStmt(t, x.Value))
		return t
	case *hir.ArrayAddrExpr:
		t := b.newTemp()
		b.emit(ArrayAddrStmt(t, int(x.Array), x.Offset))
		return t
	case *hir.GlobalAddrExpr:
		t := b.newTemp()
		b.emit(SymbolAddrStmt(t, x.Sym, x.Offset))
		return t
	case *hir.UnaryExpr:
		return b.lowerUnary(x)
	case *hir.BinaryExpr:
		return b.lowerBinary(x)
	case *hir.CallExpr:
		args := make([]Local, len(x.Args))
		for i, a := range x.Args {
			args[i] = b.lowerExpr(a)
		}
		t := b.newTemp()
		b.emit(CallStmt(t, x.Callee, args))
		return t
	}
	xerr.ShouldNotReachHere()
	return NoLocal
}

func (b *builder) lowerUnary(x *hir.UnaryExpr) Local {
	switch x.Op {
	case hir.Load:
		addr, off := b.lowerMemAddr(x.X)
		t := b.newTemp()
		b.emit(LoadStmt(t, addr, off))
		return t
	case hir.Neg:
		s := b.lowerExpr(x.X)
		t := b.newTemp()
		b.emit(UnaryStmt(t, s, Neg))
		return t
	case hir.Not:
		s := b.lowerExpr(x.X)
		t := b.newTemp()
		b.emit(UnaryStmt(t, s, Eqz))
		return t
	}
	xerr.ShouldNotReachHere()
	return NoLocal
}

// lowerBinary lowers a BinaryExpr used as an ordinary value (outside
// condition position). By the time fold.go has run, Op is never
// Gt/Leq/Geq (those were rewritten to Lt-based compositions), so only
// Add/Sub/Mul/Div/Mod/Lt/Eq/Ne need handling here.
func (b *builder) lowerBinary(x *hir.BinaryExpr) Local {
	switch x.Op {
	case hir.Add:
		if lit, ok := litOf(x.R); ok && fitsImm(lit) {
			l := b.lowerExpr(x.L)
			t := b.newTemp()
			b.emit(BinaryImmStmt(t, l, lit, Add))
			return t
		}
		if lit, ok := litOf(x.L); ok && fitsImm(lit) {
			r := b.lowerExpr(x.R)
			t := b.newTemp()
			b.emit(BinaryImmStmt(t, r, lit, Add))
			return t
		}
	case hir.Sub:
		if lit, ok := litOf(x.R); ok && fitsImm(-lit) {
			l := b.lowerExpr(x.L)
			t := b.newTemp()
			b.emit(BinaryImmStmt(t, l, -lit, Add))
			return t
		}
	case hir.Mul:
		if lit, ok := litOf(x.R); ok && isPow2(lit) {
			l := b.lowerExpr(x.L)
			t := b.newTemp()
			b.emit(BinaryImmStmt(t, l, lit, Mul))
			return t
		}
		if lit, ok := litOf(x.L); ok && isPow2(lit) {
			r := b.lowerExpr(x.R)
			t := b.newTemp()
			b.emit(BinaryImmStmt(t, r, lit, Mul))
			return t
		}
	case hir.Lt:
		if lit, ok := litOf(x.R); ok && fitsImm(lit) {
			l := b.lowerExpr(x.L)
			t := b.newTemp()
			b.emit(BinaryImmStmt(t, l, lit, Lt))
			return t
		}
	}

	switch x.Op {
	case hir.Add, hir.Sub, hir.Mul, hir.Div, hir.Mod, hir.Lt:
		l, r := b.lowerExpr(x.L), b.lowerExpr(x.R)
		t := b.newTemp()
		b.emit(BinaryStmt(t, l, r, toMirBinOp(x.Op)))
		return t
	case hir.Eq, hir.Ne:
		l := b.lowerExpr(x.L)
		var diff Local
		if lit, ok := litOf(x.R); ok && lit == 0 {
			diff = l
		} else {
			r := b.lowerExpr(x.R)
			diff = b.newTemp()
			b.emit(BinaryStmt(diff, l, r, Sub))
		}
		t := b.newTemp()
		if x.Op == hir.Eq {
			b.emit(UnaryStmt(t, diff, Eqz))
		} else {
			b.emit(UnaryStmt(t, diff, Nez))
		}
		return t
	}
	xerr.ShouldNotReachHere()
	return NoLocal
}

func toMirBinOp(op hir.BinOp) BinOp {
	switch op {
	case hir.Add:
		return Add
	case hir.Sub:
		return Sub
	case hir.Mul:
		return Mul
	case hir.Div:
		return Div
	case hir.Mod:
		return Mod
	case hir.Lt:
		return Lt
	}
	xerr.ShouldNotReachHere()
	return Add
}

// normalizeBranch maps an hir comparison to one of the four MIR branch
// tests, swapping operands for Gt/Geq since MIR only carries Lt/Leq
// (spec 3.3).
func normalizeBranch(op hir.BinOp) (BranchOp, bool) {
	switch op {
	case hir.Lt:
		return BrLt, false
	case hir.Gt:
		return BrLt, true
	case hir.Leq:
		return BrLeq, false
	case hir.Geq:
		return BrLeq, true
	case hir.Eq:
		return BrEq, false
	case hir.Ne:
		return BrNe, false
	}
	xerr.ShouldNotReachHere()
	return BrEq, false
}

// negateBranch returns the branch test for "not (op applied in the
// given operand order)" — still expressible with one of the four MIR
// tests: not(Lt) is Leq with swapped operands and vice versa, not(Eq)
// is Ne, not(Ne) is Eq.
func negateBranch(op BranchOp, swap bool) (BranchOp, bool) {
	switch op {
	case BrLt:
		return BrLeq, !swap
	case BrLeq:
		return BrLt, !swap
	case BrEq:
		return BrNe, swap
	case BrNe:
		return BrEq, swap
	}
	xerr.ShouldNotReachHere()
	return BrEq, swap
}

func (b *builder) operands(l, r Local, swap bool) (Local, Local) {
	if swap {
		return r, l
	}
	return l, r
}

// jumpIfFalse emits code that branches to falseLabel when c evaluates
// false, falling through otherwise.
func (b *builder) jumpIfFalse(c hir.Cond, falseLabel Label) {
	switch cc := c.(type) {
	case hir.TrueCond:
	case hir.FalseCond:
		b.emit(JumpStmt(falseLabel))
	case *hir.CmpCond:
		l, r := b.lowerExpr(cc.L), b.lowerExpr(cc.R)
		op, swap := normalizeBranch(cc.Op)
		negOp, negSwap := negateBranch(op, swap)
		s1, s2 := b.operands(l, r, negSwap)
		b.emit(BranchStmt(s1, s2, falseLabel, negOp))
	case *hir.AndCond:
		b.jumpIfFalse(cc.L, falseLabel)
		b.jumpIfFalse(cc.R, falseLabel)
	case *hir.OrCond:
		trueLabel := b.newLabel()
		b.jumpIfTrue(cc.L, trueLabel)
		b.jumpIfFalse(cc.R, falseLabel)
		b.placeLabel(trueLabel)
	default:
		xerr.ShouldNotReachHere()
	}
}

// jumpIfTrue emits code that branches to trueLabel when c evaluates
// true, falling through otherwise — the mirror image of jumpIfFalse.
func (b *builder) jumpIfTrue(c hir.Cond, trueLabel Label) {
	switch cc := c.(type) {
	case hir.TrueCond:
		b.emit(JumpStmt(trueLabel))
	case hir.FalseCond:
	case *hir.CmpCond:
		l, r := b.lowerExpr(cc.L), b.lowerExpr(cc.R)
		op, swap := normalizeBranch(cc.Op)
		s1, s2 := b.operands(l, r, swap)
		b.emit(BranchStmt(s1, s2, trueLabel, op))
	case *hir.AndCond:
		mid := b.newLabel()
		b.jumpIfFalse(cc.L, mid)
		b.jumpIfTrue(cc.R, trueLabel)
		b.placeLabel(mid)
	case *hir.OrCond:
		b.jumpIfTrue(cc.L, trueLabel)
		b.jumpIfTrue(cc.R, trueLabel)
	default:
		xerr.ShouldNotReachHere()
	}
}
