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

// Package sema resolves names, checks types and folds constant
// expressions over the raw internal/ast tree (spec ch.1: "name
// resolution, type checking and constant folding over the AST produce
// a typed AST plus resolved symbol table" — the frontend's external
// responsibility). Its output, a Unit, is what internal/hir lowers
// into the structured HIR the backend owns.
package sema

import (
	"sysygo/internal/ast"
	"sysygo/internal/diag"
	"sysygo/internal/symtab"
)

// BindKind classifies how an identifier resolved.
type BindKind int

const (
	BindLocal BindKind = iota
	BindGlobal
	BindConst
)

// Binding is the resolution recorded for one *ast.Ident or the root
// identifier of an *ast.IndexExpr chain.
type Binding struct {
	Kind BindKind

	LocalID int // valid when Kind == BindLocal and not IsArray
	ArrayID int // valid when IsArray

	Symbol symtab.Symbol // valid when Kind == BindGlobal

	IsArray  bool
	ElemSize int // words per element one index deep, for offset math
	Dims     []int32 // folded dimension sizes, outermost first

	// IsPtrParam marks a decayed-array parameter: its LocalID holds a
	// pointer value (the argument register), not a frame-slot index,
	// so addressing it starts from a LocalExpr rather than an
	// ArrayAddrExpr (spec ch.1: arrays decay to pointers at the
	// outermost dimension only). Dims then holds a leading placeholder
	// entry followed by the dimensions after the first.
	IsPtrParam bool

	// ConstVal is set when Kind == BindConst and the identifier names a
	// scalar const (its uses are inlined as literals by the caller).
	ConstVal int32

	// Init holds the flattened sparse initializer for a local array
	// declaration (spec 3.2's (elem-index, value) list).
	Init []InitElem
}

// Section mirrors spec 3.2's three global-item kinds.
type Section int

const (
	SectionData Section = iota
	SectionRodata
	SectionBss
)

// InitElem is one sparse (element-index, value) pair (spec 3.2).
type InitElem struct {
	Index int
	Value int32
}

type Global struct {
	Symbol    symtab.Symbol
	ElemCount int
	Section   Section
	Init      []InitElem
}

type Param struct {
	Name      string
	IsArray   bool
	LocalID   int
	ArrayID   int // valid when IsArray
	ElemSize  int // words per element, valid when IsArray
}

type Func struct {
	Symbol    symtab.Symbol
	RetVoid   bool
	Params    []Param
	NumLocals int // next free local id (0 reserved for return address)
	NumArrays int // next free array id
	ArrayDims map[int][]int32 // array id -> folded dims, for sizing the frame
	Body      *ast.BlockStmt
}

type Unit struct {
	Globals []*Global
	Funcs   []*Func
	// Bindings maps every *ast.Ident and every *ast.IndexExpr (keyed by
	// the outermost node of an index chain) to its resolution.
	Bindings map[ast.Expr]*Binding
	// DeclBindings maps a local *ast.VarDecl to the Binding assigned to
	// it, for statements lowering the declaration itself rather than a
	// later use.
	DeclBindings map[*ast.VarDecl]*Binding
	// Interner is the symbol table shared with the lexer/parser/hir
	// stages, exposed so later passes can resolve call targets by name.
	Interner *symtab.Interner
}

type scope map[string]*Binding

type checker struct {
	interner     *symtab.Interner
	globals      scope
	funcSigs     map[string]*Func
	bindings     map[ast.Expr]*Binding
	declBindings map[*ast.VarDecl]*Binding

	scopes    []scope
	nextLocal int
	nextArray int
	arrayDims map[int][]int32

	loopDepth int
}

func Check(prog *ast.Program, interner *symtab.Interner) (*Unit, error) {
	c := &checker{
		interner:     interner,
		globals:      scope{},
		funcSigs:     map[string]*Func{},
		bindings:     map[ast.Expr]*Binding{},
		declBindings: map[*ast.VarDecl]*Binding{},
	}
	unit := &Unit{Bindings: c.bindings, DeclBindings: c.declBindings, Interner: interner}

	for _, item := range prog.Items {
		if fn, ok := item.(*ast.FuncDecl); ok {
			if _, dup := c.funcSigs[fn.Name]; dup {
				return nil, diag.Errorf(diag.Name, fn.Pos(), "duplicate definition of function %q", fn.Name)
			}
			if len(fn.Params) > 8 {
				return nil, diag.Errorf(diag.Type, fn.Pos(), "function %q takes too many arguments (max 8)", fn.Name)
			}
			c.funcSigs[fn.Name] = &Func{Symbol: c.interner.Intern(fn.Name), RetVoid: fn.RetVoid}
		}
	}
	for _, p := range symtab.Prelude {
		if _, dup := c.funcSigs[p.Name]; dup {
			continue
		}
		c.funcSigs[p.Name] = &Func{Symbol: c.interner.Intern(p.Name), RetVoid: !p.HasResult}
	}

	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.VarDecl:
			g, err := c.checkGlobalDecl(it)
			if err != nil {
				return nil, err
			}
			unit.Globals = append(unit.Globals, g)
		case *ast.FuncDecl:
			fn, err := c.checkFunc(it)
			if err != nil {
				return nil, err
			}
			unit.Funcs = append(unit.Funcs, fn)
		}
	}
	return unit, nil
}

func (c *checker) pushScope() { c.scopes = append(c.scopes, scope{}) }
func (c *checker) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *checker) declare(name string, b *Binding, pos diag.Pos) error {
	top := c.scopes[len(c.scopes)-1]
	if _, dup := top[name]; dup {
		return diag.Errorf(diag.Name, pos, "duplicate definition of %q in this scope", name)
	}
	top[name] = b
	return nil
}

func (c *checker) lookup(name string) (*Binding, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if b, ok := c.scopes[i][name]; ok {
			return b, true
		}
	}
	if b, ok := c.globals[name]; ok {
		return b, true
	}
	return nil, false
}

func dimsElemSize(dims []int32, from int) int {
	n := 1
	for i := from; i < len(dims); i++ {
		n *= int(dims[i])
	}
	return n
}

func (c *checker) checkGlobalDecl(d *ast.VarDecl) (*Global, error) {
	if _, dup := c.globals[d.Name]; dup {
		return nil, diag.Errorf(diag.Name, d.Pos(), "duplicate definition of %q", d.Name)
	}
	sym := c.interner.Intern(d.Name)

	var dims []int32
	for _, dimExpr := range d.Dims {
		v, err := c.constEval(dimExpr)
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, diag.Errorf(diag.Type, dimExpr.Pos(), "array size must be positive")
		}
		dims = append(dims, v)
	}
	elemCount := 1
	for _, d := range dims {
		elemCount *= int(d)
	}

	bind := &Binding{Kind: BindGlobal, Symbol: sym, IsArray: len(dims) > 0, Dims: dims}
	if len(dims) > 0 {
		bind.ElemSize = dimsElemSize(dims, 1)
	}

	g := &Global{Symbol: sym, ElemCount: elemCount}
	switch {
	case d.IsConst:
		g.Section = SectionRodata
	case d.HasInit:
		g.Section = SectionData
	default:
		g.Section = SectionBss
	}

	if d.HasInit {
		if len(dims) == 0 {
			v, err := c.constEval(d.ScalarOp)
			if err != nil {
				return nil, err
			}
			g.Init = []InitElem{{Index: 0, Value: v}}
			if d.IsConst {
				bind.Kind = BindConst
				bind.ConstVal = v
			}
		} else {
			init, err := c.flattenInit(d.Init, dims)
			if err != nil {
				return nil, err
			}
			g.Init = init
		}
	}

	c.globals[d.Name] = bind
	return g, nil
}

// flattenInit walks the brace-delimited initializer leaves and assigns
// each scalar a flat element index, honoring the sparse/nested-brace
// semantics of spec S4: an inner `{...}` pads the remainder of its
// sub-array with zero (i.e. is simply skipped over in the index
// stream), values outside any brace continue the outer cursor.
func (c *checker) flattenInit(elems []ast.ArrayInitElem, dims []int32) ([]InitElem, error) {
	var out []InitElem
	// cursor stack: cursor[d] is the next flat index to fill while inside
	// a brace opened at nesting depth d (d==0 is the implicit outer list).
	type frame struct {
		depth  int
		cursor int
		stride int
	}
	stack := []frame{{depth: 0, cursor: 0, stride: dimsElemSize(dims, 0)}}

	for _, e := range elems {
		switch {
		case e.OpenBrace:
			top := stack[len(stack)-1]
			sub := frame{depth: top.depth + 1, cursor: top.cursor}
			if top.depth < len(dims) {
				sub.stride = dimsElemSize(dims, top.depth+1)
			} else {
				sub.stride = 1
			}
			stack = append(stack, sub)
		case e.CloseBrace:
			closed := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			parent := &stack[len(stack)-1]
			// Round the parent's cursor up to the next multiple of the
			// sub-array stride the brace represents, padding with zero.
			aligned := ((closed.cursor - (closed.cursor % closed.stride)) + closed.stride)
			if closed.stride == 0 {
				aligned = closed.cursor
			}
			if aligned > parent.cursor {
				parent.cursor = aligned
			} else {
				parent.cursor++
			}
		default:
			v, err := c.constEval(e.Value)
			if err != nil {
				return nil, err
			}
			top := &stack[len(stack)-1]
			if v != 0 {
				out = append(out, InitElem{Index: top.cursor, Value: v})
			}
			top.cursor++
		}
	}
	return out, nil
}

func (c *checker) checkFunc(fn *ast.FuncDecl) (*Func, error) {
	info := c.funcSigs[fn.Name]
	c.scopes = nil
	c.pushScope()
	c.nextLocal = 1 // slot 0 reserved for the return address
	c.nextArray = 0
	c.arrayDims = map[int][]int32{}

	for _, p := range fn.Params {
		localID := c.nextLocal
		c.nextLocal++
		b := &Binding{Kind: BindLocal, LocalID: localID}
		param := Param{Name: p.Name, LocalID: localID}
		if p.IsArray {
			var extra []int32
			for _, e := range p.ExtraDims {
				v, err := c.constEval(e)
				if err != nil {
					return nil, err
				}
				extra = append(extra, v)
			}
			b.IsArray = true
			b.IsPtrParam = true
			b.Dims = append([]int32{0}, extra...)
			b.ElemSize = dimsElemSize(extra, 0)
			param.IsArray = true
			param.ElemSize = b.ElemSize
		}
		if err := c.declare(p.Name, b, p.Pos()); err != nil {
			return nil, err
		}
		info.Params = append(info.Params, param)
	}

	if err := c.checkBlock(fn.Body); err != nil {
		return nil, err
	}
	c.popScope()

	info.NumLocals = c.nextLocal
	info.NumArrays = c.nextArray
	info.ArrayDims = c.arrayDims
	info.Body = fn.Body
	return info, nil
}

func (c *checker) checkBlock(b *ast.BlockStmt) error {
	c.pushScope()
	defer c.popScope()
	for _, s := range b.Stmts {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.BlockStmt:
		return c.checkBlock(st)
	case *ast.DeclStmt:
		return c.checkLocalDecl(st.Decl)
	case *ast.AssignStmt:
		if err := c.checkExpr(st.Target); err != nil {
			return err
		}
		return c.checkExpr(st.Value)
	case *ast.ExprStmt:
		return c.checkExpr(st.X)
	case *ast.IfStmt:
		if err := c.checkExpr(st.Cond); err != nil {
			return err
		}
		if err := c.checkStmt(st.Then); err != nil {
			return err
		}
		if st.Else != nil {
			return c.checkStmt(st.Else)
		}
		return nil
	case *ast.WhileStmt:
		if err := c.checkExpr(st.Cond); err != nil {
			return err
		}
		c.loopDepth++
		err := c.checkStmt(st.Body)
		c.loopDepth--
		return err
	case *ast.BreakStmt:
		if c.loopDepth == 0 {
			return diag.Errorf(diag.Name, st.Pos(), "break outside a loop")
		}
		return nil
	case *ast.ContinueStmt:
		if c.loopDepth == 0 {
			return diag.Errorf(diag.Name, st.Pos(), "continue outside a loop")
		}
		return nil
	case *ast.ReturnStmt:
		if st.Value != nil {
			return c.checkExpr(st.Value)
		}
		return nil
	}
	return nil
}

func (c *checker) checkLocalDecl(d *ast.VarDecl) error {
	var dims []int32
	for _, dimExpr := range d.Dims {
		v, err := c.constEval(dimExpr)
		if err != nil {
			return err
		}
		if v <= 0 {
			return diag.Errorf(diag.Type, dimExpr.Pos(), "array size must be positive")
		}
		dims = append(dims, v)
	}

	b := &Binding{Kind: BindLocal, Dims: dims, IsArray: len(dims) > 0}
	if len(dims) > 0 {
		arrayID := c.nextArray
		c.nextArray++
		c.arrayDims[arrayID] = dims
		b.ArrayID = arrayID
		b.ElemSize = dimsElemSize(dims, 1)
		if d.HasInit {
			for _, e := range d.Init {
				if e.Value != nil {
					if err := c.checkExpr(e.Value); err != nil {
						return err
					}
				}
			}
			init, err := c.flattenInit(d.Init, dims)
			if err != nil {
				return err
			}
			b.Init = init
		}
	} else if d.HasInit {
		if err := c.checkExpr(d.ScalarOp); err != nil {
			return err
		}
		if d.IsConst {
			v, err := c.constEval(d.ScalarOp)
			if err != nil {
				return err
			}
			b.Kind = BindConst
			b.ConstVal = v
		} else {
			b.LocalID = c.nextLocal
			c.nextLocal++
		}
	} else {
		b.LocalID = c.nextLocal
		c.nextLocal++
	}

	c.declBindings[d] = b
	return c.declare(d.Name, b, d.Pos())
}

func (c *checker) checkExpr(e ast.Expr) error {
	switch x := e.(type) {
	case *ast.IntLit:
		return nil
	case *ast.Ident:
		b, ok := c.lookup(x.Name)
		if !ok {
			return diag.Errorf(diag.Name, x.Pos(), "undeclared identifier %q", x.Name)
		}
		c.bindings[x] = b
		return nil
	case *ast.IndexExpr:
		root, chain := unwindIndex(x)
		ident, ok := root.(*ast.Ident)
		if !ok {
			return diag.Errorf(diag.Type, x.Pos(), "cannot index a non-array expression")
		}
		b, ok := c.lookup(ident.Name)
		if !ok {
			return diag.Errorf(diag.Name, ident.Pos(), "undeclared identifier %q", ident.Name)
		}
		if !b.IsArray {
			return diag.Errorf(diag.Type, x.Pos(), "%q is not an array", ident.Name)
		}
		c.bindings[x] = b
		for _, idx := range chain {
			if err := c.checkExpr(idx); err != nil {
				return err
			}
		}
		return nil
	case *ast.UnaryExpr:
		return c.checkExpr(x.Operand)
	case *ast.BinaryExpr:
		if err := c.checkExpr(x.Left); err != nil {
			return err
		}
		return c.checkExpr(x.Right)
	case *ast.CallExpr:
		sig, ok := c.funcSigs[x.Callee]
		if !ok {
			return diag.Errorf(diag.Name, x.Pos(), "call to undeclared function %q", x.Callee)
		}
		if arity, isPrelude := c.preludeArity(x.Callee); isPrelude {
			if len(x.Args) != arity {
				return diag.Errorf(diag.Type, x.Pos(), "%q expects %d argument(s), got %d", x.Callee, arity, len(x.Args))
			}
		} else if len(sig.Params) != len(x.Args) {
			return diag.Errorf(diag.Type, x.Pos(), "%q expects %d argument(s), got %d", x.Callee, len(sig.Params), len(x.Args))
		}
		for _, a := range x.Args {
			if err := c.checkExpr(a); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (c *checker) preludeArity(name string) (int, bool) {
	for _, p := range symtab.Prelude {
		if p.Name == name {
			return p.Arity, true
		}
	}
	return 0, false
}

// unwindIndex walks a chain of nested IndexExprs down to its root
// identifier, returning the indices outermost-first.
// IndexChain returns the index expressions of a (possibly nested)
// IndexExpr chain, outermost first, without its root identifier —
// for use by callers that already resolved the binding via the
// chain's outermost node.
func IndexChain(e *ast.IndexExpr) []ast.Expr {
	_, chain := unwindIndex(e)
	return chain
}

func unwindIndex(e *ast.IndexExpr) (ast.Expr, []ast.Expr) {
	var chain []ast.Expr
	cur := e
	for {
		chain = append([]ast.Expr{cur.Index}, chain...)
		if inner, ok := cur.Array.(*ast.IndexExpr); ok {
			cur = inner
			continue
		}
		return cur.Array, chain
	}
}

// constEval evaluates a compile-time constant expression (spec ch.7:
// const-eval errors for division by zero, calls, or array accesses in
// a constant context).
func (c *checker) constEval(e ast.Expr) (int32, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		return x.Value, nil
	case *ast.Ident:
		b, ok := c.lookup(x.Name)
		if !ok {
			return 0, diag.Errorf(diag.Name, x.Pos(), "undeclared identifier %q", x.Name)
		}
		if b.Kind != BindConst {
			return 0, diag.Errorf(diag.Const, x.Pos(), "%q is not a constant expression", x.Name)
		}
		c.bindings[x] = b
		return b.ConstVal, nil
	case *ast.UnaryExpr:
		v, err := c.constEval(x.Operand)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case ast.Neg:
			return -v, nil
		case ast.Not:
			if v == 0 {
				return 1, nil
			}
			return 0, nil
		default:
			return v, nil
		}
	case *ast.BinaryExpr:
		l, err := c.constEval(x.Left)
		if err != nil {
			return 0, err
		}
		r, err := c.constEval(x.Right)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case ast.Add:
			return l + r, nil
		case ast.Sub:
			return l - r, nil
		case ast.Mul:
			return l * r, nil
		case ast.Div:
			if r == 0 {
				return 0, diag.Errorf(diag.Const, x.Pos(), "division by zero in constant expression")
			}
			return l / r, nil
		case ast.Mod:
			if r == 0 {
				return 0, diag.Errorf(diag.Const, x.Pos(), "division by zero in constant expression")
			}
			return l % r, nil
		case ast.Lt:
			return boolInt(l < r), nil
		case ast.Gt:
			return boolInt(l > r), nil
		case ast.Leq:
			return boolInt(l <= r), nil
		case ast.Geq:
			return boolInt(l >= r), nil
		case ast.Eq:
			return boolInt(l == r), nil
		case ast.Ne:
			return boolInt(l != r), nil
		case ast.And:
			return boolInt(l != 0 && r != 0), nil
		case ast.Or:
			return boolInt(l != 0 || r != 0), nil
		}
	case *ast.CallExpr:
		return 0, diag.Errorf(diag.Const, x.Pos(), "function call is not a constant expression")
	case *ast.IndexExpr:
		return 0, diag.Errorf(diag.Const, x.Pos(), "array access is not a constant expression")
	}
	return 0, diag.Errorf(diag.Const, e.Pos(), "not a constant expression")
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
