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

// FoldConstants runs the bottom-up constant-folding pass of spec 4.1
// over every function body in cu, in place. The transform is
// idempotent: running it twice yields the same tree as running it
// once (spec 8, universal law 1), and it never folds away a division
// or modulo by a literal zero, preserving the source's runtime trap
// (spec 9).
func FoldConstants(cu *CompUnit) {
	for _, fn := range cu.Funcs {
		fn.Body = foldBlock(fn.Body)
	}
}

func foldBlock(b *BlockStmt) *BlockStmt {
	out := &BlockStmt{Stmts: make([]Stmt, len(b.Stmts))}
	for i, s := range b.Stmts {
		out.Stmts[i] = foldStmt(s)
	}
	return out
}

func foldStmt(s Stmt) Stmt {
	switch st := s.(type) {
	case *StoreStmt:
		return &StoreStmt{Addr: foldExpr(st.Addr), Val: foldExpr(st.Val)}
	case *ReturnStmt:
		if st.Val == nil {
			return st
		}
		return &ReturnStmt{Val: foldExpr(st.Val)}
	case *BlockStmt:
		return foldBlock(st)
	case *IfStmt:
		return &IfStmt{Cond: foldCond(st.Cond), Then: foldStmt(st.Then)}
	case *IfElseStmt:
		return &IfElseStmt{Cond: foldCond(st.Cond), Then: foldStmt(st.Then), Else: foldStmt(st.Else)}
	case *WhileStmt:
		return &WhileStmt{Cond: foldCond(st.Cond), Body: foldStmt(st.Body)}
	case *ExprStmt:
		return &ExprStmt{X: foldExpr(st.X)}
	case *AssignStmt:
		return &AssignStmt{Local: st.Local, Val: foldExpr(st.Val)}
	case BreakStmt, ContinueStmt:
		return st
	}
	return s
}

// foldExpr recurses into children first, then applies the local
// rewrite rules of spec 4.1 to the resulting node.
func foldExpr(e Expr) Expr {
	switch x := e.(type) {
	case *LitExpr, *LocalExpr:
		return x
	case *ArrayAddrExpr:
		return x
	case *GlobalAddrExpr:
		return x
	case *UnaryExpr:
		return foldUnary(&UnaryExpr{Op: x.Op, X: foldExpr(x.X)})
	case *BinaryExpr:
		return foldBinary(&BinaryExpr{Op: x.Op, L: foldExpr(x.L), R: foldExpr(x.R)})
	case *CallExpr:
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = foldExpr(a)
		}
		return &CallExpr{Callee: x.Callee, Args: args}
	}
	return e
}

func litVal(e Expr) (int32, bool) {
	if l, ok := e.(*LitExpr); ok {
		return l.Value, true
	}
	return 0, false
}

func foldUnary(u *UnaryExpr) Expr {
	switch u.Op {
	case Neg:
		// Address folding: Neg pushes through a literal, and
		// Neg(Neg(x)) cancels — the parser never emits the latter but
		// an earlier fold round might via algebraic rewrite elsewhere.
		if v, ok := litVal(u.X); ok {
			return &LitExpr{Value: -v}
		}
		if inner, ok := u.X.(*UnaryExpr); ok && inner.Op == Neg {
			return inner.X
		}
	case Not:
		if v, ok := litVal(u.X); ok {
			return &LitExpr{Value: boolLit(v == 0)}
		}
	case Load:
		// Nothing to fold: a load's address may itself have folded to
		// a literal-offset ArrayAddr/GlobalAddr, which is as far as
		// this pass goes (the value behind the address is not known
		// at compile time in general).
	}
	return u
}

func foldBinary(b *BinaryExpr) Expr {
	// Literal algebra, with the division/modulo-by-zero exception.
	if lv, lok := litVal(b.L); lok {
		if rv, rok := litVal(b.R); rok {
			switch b.Op {
			case Add:
				return &LitExpr{Value: lv + rv}
			case Sub:
				return &LitExpr{Value: lv - rv}
			case Mul:
				return &LitExpr{Value: lv * rv}
			case Div:
				if rv != 0 {
					return &LitExpr{Value: lv / rv}
				}
			case Mod:
				if rv != 0 {
					return &LitExpr{Value: lv % rv}
				}
			case Lt:
				return &LitExpr{Value: boolLit(lv < rv)}
			case Gt:
				return &LitExpr{Value: boolLit(lv > rv)}
			case Leq:
				return &LitExpr{Value: boolLit(lv <= rv)}
			case Geq:
				return &LitExpr{Value: boolLit(lv >= rv)}
			case Eq:
				return &LitExpr{Value: boolLit(lv == rv)}
			case Ne:
				return &LitExpr{Value: boolLit(lv != rv)}
			}
			// fell through only for Div/Mod by zero: leave unfolded
		}
	}

	// Address folding: Addr(base,k) + literal n -> Addr(base, k+n);
	// same through Sub by negating n.
	if addr, _, ok := asAddrPlusLit(b); ok {
		return addr
	}

	// Comparison normalization: rewrite Geq/Gt/Leq into Lt.
	switch b.Op {
	case Geq:
		// a >= b  <=>  !(a < b)
		return foldUnary(&UnaryExpr{Op: Not, X: &BinaryExpr{Op: Lt, L: b.L, R: b.R}})
	case Gt:
		// a > b  <=>  b < a
		return &BinaryExpr{Op: Lt, L: b.R, R: b.L}
	case Leq:
		// a <= b  <=>  !(b < a)
		return foldUnary(&UnaryExpr{Op: Not, X: &BinaryExpr{Op: Lt, L: b.R, R: b.L}})
	}

	// Normalize `a Eq 0` / `a Ne 0`: fold constants into the LHS so the
	// RHS becomes 0 whenever possible (spec 4.1).
	if b.Op == Eq || b.Op == Ne {
		if rv, ok := litVal(b.R); ok && rv != 0 {
			return &BinaryExpr{Op: b.Op, L: &BinaryExpr{Op: Sub, L: b.L, R: &LitExpr{Value: rv}}, R: &LitExpr{Value: 0}}
		}
	}

	// Algebraic identities.
	if rv, ok := litVal(b.R); ok {
		switch {
		case b.Op == Add && rv == 0:
			return b.L
		case b.Op == Sub && rv == 0:
			return b.L
		case b.Op == Mul && rv == 1:
			return b.L
		case b.Op == Div && rv == 1:
			return b.L
		case b.Op == Mul && rv == 0:
			return &LitExpr{Value: 0}
		}
	}
	if lv, ok := litVal(b.L); ok {
		switch {
		case b.Op == Mul && lv == 0:
			return &LitExpr{Value: 0}
		}
	}
	if _, ok := litVal(b.R); ok && b.Op == Mod {
		if rv, _ := litVal(b.R); rv == 1 {
			return &LitExpr{Value: 0}
		}
	}

	// Swap-to-RHS-literal for commutative ops.
	if b.Op.IsCommutative() {
		if _, lok := litVal(b.L); lok {
			if _, rok := litVal(b.R); !rok {
				return foldBinary(&BinaryExpr{Op: b.Op, L: b.R, R: b.L})
			}
		}
	}

	return b
}

// asAddrPlusLit recognizes `AddrExpr + literal` / `literal + AddrExpr`
// / `AddrExpr - literal` and folds the literal into the address's
// byte offset.
func asAddrPlusLit(b *BinaryExpr) (Expr, int32, bool) {
	if b.Op != Add && b.Op != Sub {
		return nil, 0, false
	}
	if addr, n, ok := addrOffset(b.L); ok {
		if lit, ok := litVal(b.R); ok && b.Op == Add {
			return withOffset(addr, n+lit), lit, true
		}
		if lit, ok := litVal(b.R); ok && b.Op == Sub {
			return withOffset(addr, n-lit), lit, true
		}
	}
	if b.Op == Add {
		if addr, n, ok := addrOffset(b.R); ok {
			if lit, ok := litVal(b.L); ok {
				return withOffset(addr, n+lit), lit, true
			}
		}
	}
	return nil, 0, false
}

func addrOffset(e Expr) (Expr, int32, bool) {
	switch a := e.(type) {
	case *ArrayAddrExpr:
		return a, a.Offset, true
	case *GlobalAddrExpr:
		return a, a.Offset, true
	}
	return nil, 0, false
}

func withOffset(addr Expr, off int32) Expr {
	switch a := addr.(type) {
	case *ArrayAddrExpr:
		return &ArrayAddrExpr{Array: a.Array, Offset: off}
	case *GlobalAddrExpr:
		return &GlobalAddrExpr{Sym: a.Sym, Offset: off}
	}
	return addr
}

func boolLit(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// foldCond applies the short-circuit simplification rule (spec 4.1):
// when one side of And/Or is a compile-time-known literal, reduce.
func foldCond(c Cond) Cond {
	switch cc := c.(type) {
	case TrueCond, FalseCond:
		return cc
	case *CmpCond:
		l, r := foldExpr(cc.L), foldExpr(cc.R)
		if lv, lok := litVal(l); lok {
			if rv, rok := litVal(r); rok {
				switch cc.Op {
				case Lt:
					return boolCond(lv < rv)
				case Gt:
					return boolCond(lv > rv)
				case Leq:
					return boolCond(lv <= rv)
				case Geq:
					return boolCond(lv >= rv)
				case Eq:
					return boolCond(lv == rv)
				case Ne:
					return boolCond(lv != rv)
				}
			}
		}
		return &CmpCond{Op: cc.Op, L: l, R: r}
	case *AndCond:
		l, r := foldCond(cc.L), foldCond(cc.R)
		if isFalse(l) || isFalse(r) {
			return FalseCond{}
		}
		if isTrue(l) {
			return r
		}
		if isTrue(r) {
			return l
		}
		return &AndCond{L: l, R: r}
	case *OrCond:
		l, r := foldCond(cc.L), foldCond(cc.R)
		if isTrue(l) || isTrue(r) {
			return TrueCond{}
		}
		if isFalse(l) {
			return r
		}
		if isFalse(r) {
			return l
		}
		return &OrCond{L: l, R: r}
	}
	return c
}

func isTrue(c Cond) bool  { _, ok := c.(TrueCond); return ok }
func isFalse(c Cond) bool { _, ok := c.(FalseCond); return ok }

func boolCond(b bool) Cond {
	if b {
		return TrueCond{}
	}
	return FalseCond{}
}
