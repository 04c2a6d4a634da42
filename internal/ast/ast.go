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

// Package ast is the untyped syntax tree produced by the parser (spec
// ch.6 grammar). Name resolution, typing and constant folding over
// this tree (internal/sema) produce the HIR the backend consumes; per
// spec ch.1 the frontend is an external collaborator, so this tree
// stays intentionally thin.
package ast

import "sysygo/internal/diag"

type Node interface {
	Pos() diag.Pos
}

// BinOp is the surface binary/relational operator set (spec ch.6).
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	Lt
	Gt
	Leq
	Geq
	Eq
	Ne
	And
	Or
)

type UnOp int

const (
	Plus UnOp = iota
	Neg
	Not
)

// Expr nodes.

type Expr interface {
	Node
	exprNode()
}

// Base carries source position and is embedded by every node. Its
// field is exported so the parser (a different package) can set it
// with a struct literal.
type Base struct{ P diag.Pos }

func (b Base) Pos() diag.Pos { return b.P }

// BaseAt constructs a Base at the given position.
func BaseAt(p diag.Pos) Base { return Base{P: p} }

type IntLit struct {
	Base
	Value int32
}

type Ident struct {
	Base
	Name string
}

type IndexExpr struct {
	Base
	Array Expr
	Index Expr
}

type UnaryExpr struct {
	Base
	Op      UnOp
	Operand Expr
}

type BinaryExpr struct {
	Base
	Op          BinOp
	Left, Right Expr
}

type CallExpr struct {
	Base
	Callee string
	Args   []Expr
}

func (*IntLit) exprNode()     {}
func (*Ident) exprNode()      {}
func (*IndexExpr) exprNode()  {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*CallExpr) exprNode()   {}

// Stmt nodes.

type Stmt interface {
	Node
	stmtNode()
}

type BlockStmt struct {
	Base
	Stmts []Stmt
}

type DeclStmt struct {
	Base
	Decl *VarDecl
}

type AssignStmt struct {
	Base
	Target Expr // *Ident or *IndexExpr
	Value  Expr
}

type ExprStmt struct {
	Base
	X Expr
}

type IfStmt struct {
	Base
	Cond       Expr
	Then, Else Stmt // Else may be nil
}

type WhileStmt struct {
	Base
	Cond Expr
	Body Stmt
}

type BreakStmt struct{ Base }
type ContinueStmt struct{ Base }

type ReturnStmt struct {
	Base
	Value Expr // nil for bare return
}

func (*BlockStmt) stmtNode()    {}
func (*DeclStmt) stmtNode()     {}
func (*AssignStmt) stmtNode()   {}
func (*ExprStmt) stmtNode()     {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()   {}

// Declarations and top-level items.

// VarDecl covers both scalar and array declarations, global or local.
// Dims is empty for a scalar. Init holds a flat list of initializer
// expressions in source order (braces are structural only at parse
// time; sema flattens nested-brace array initializers into a sparse
// (index, value) list per spec 3.2).
type VarDecl struct {
	Base
	Name     string
	IsConst  bool
	Dims     []Expr // array dimension expressions, outermost first
	Init     []ArrayInitElem
	HasInit  bool
	ScalarOp Expr // scalar initializer, when Dims is empty
}

// ArrayInitElem is one leaf of a (possibly nested-brace) initializer
// list, paired with its flat element index once sema resolves it.
type ArrayInitElem struct {
	Value Expr
	// Braces records the brace nesting depth markers from the parser:
	// an empty sub-list `{}` is represented as a nil Value with
	// OpenBrace/CloseBrace set, matching spec S4's `{4}`/`{}` cases.
	OpenBrace, CloseBrace bool
}

type Param struct {
	Base
	Name string
	// IsArray marks a decayed-array parameter (`int a[]` or
	// `int a[][N]...`); ExtraDims holds dimension expressions for
	// every dimension after the first (spec ch.1: arrays decay to
	// pointers only at the outermost dimension).
	IsArray   bool
	ExtraDims []Expr
}

type FuncDecl struct {
	Base
	Name      string
	RetVoid   bool
	Params    []*Param
	Body      *BlockStmt
}

// Item is a top-level declaration: *VarDecl or *FuncDecl.
type Item interface {
	Node
	itemNode()
}

func (*VarDecl) itemNode()  {}
func (*FuncDecl) itemNode() {}

type Program struct {
	Base
	Items []Item
}
