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

// Package parser is a recursive-descent parser for the surface grammar
// (spec ch.6). It builds an internal/ast tree and otherwise performs no
// semantic analysis (that is internal/sema's job).
package parser

import (
	"io"

	"sysygo/internal/ast"
	"sysygo/internal/diag"
	"sysygo/internal/lexer"
	"sysygo/internal/token"
)

type Parser struct {
	lex  *lexer.Lexer
	tok  token.Token
	next *token.Token
}

func New(r io.Reader) (*Parser, error) {
	p := &Parser{lex: lexer.New(r)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	if p.next != nil {
		p.tok = *p.next
		p.next = nil
		return nil
	}
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) peek() (token.Token, error) {
	if p.next == nil {
		t, err := p.lex.Next()
		if err != nil {
			return token.Token{}, err
		}
		p.next = &t
	}
	return *p.next, nil
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.tok.Kind != k {
		return token.Token{}, diag.Errorf(diag.Parse, diag.Pos{Line: p.tok.Line, Col: p.tok.Col},
			"expected %s, found %s", k, p.tok.Kind)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token.Token{}, err
	}
	return t, nil
}

func (p *Parser) pos() diag.Pos { return diag.Pos{Line: p.tok.Line, Col: p.tok.Col} }

// ParseProgram parses a full translation unit (spec ch.6 top-level
// grammar: const/var declarations and function definitions).
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.tok.Kind != token.EOF {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		prog.Items = append(prog.Items, item)
	}
	return prog, nil
}

func (p *Parser) parseItem() (ast.Item, error) {
	pos := p.pos()
	isConst := false
	if p.tok.Kind == token.KW_CONST {
		isConst = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	var retVoid bool
	switch p.tok.Kind {
	case token.KW_INT:
		retVoid = false
	case token.KW_VOID:
		if isConst {
			return nil, diag.Errorf(diag.Parse, pos, "const void is not a valid declaration")
		}
		retVoid = true
	default:
		return nil, diag.Errorf(diag.Parse, pos, "expected a type, found %s", p.tok.Kind)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}

	if p.tok.Kind == token.LPAREN {
		return p.parseFuncDecl(pos, nameTok.Text, retVoid)
	}
	if retVoid {
		return nil, diag.Errorf(diag.Parse, pos, "void is only valid as a function return type")
	}
	return p.parseVarDeclTail(pos, nameTok.Text, isConst)
}

func (p *Parser) parseFuncDecl(pos diag.Pos, name string, retVoid bool) (*ast.FuncDecl, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []*ast.Param
	for p.tok.Kind != token.RPAREN {
		if len(params) > 0 {
			if _, err := p.expect(token.COMMA); err != nil {
				return nil, err
			}
		}
		param, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: name, RetVoid: retVoid, Params: params, Body: body}, nil
}

func (p *Parser) parseParam() (*ast.Param, error) {
	ppos := p.pos()
	if _, err := p.expect(token.KW_INT); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	param := &ast.Param{Name: nameTok.Text}
	param.P.Line, param.P.Col = ppos.Line, ppos.Col
	if p.tok.Kind != token.LBRACKET {
		return param, nil
	}
	param.IsArray = true
	if _, err := p.expect(token.LBRACKET); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	for p.tok.Kind == token.LBRACKET {
		if err := p.advance(); err != nil {
			return nil, err
		}
		dim, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		param.ExtraDims = append(param.ExtraDims, dim)
	}
	return param, nil
}

func (p *Parser) parseVarDeclTail(pos diag.Pos, name string, isConst bool) (*ast.VarDecl, error) {
	decl := &ast.VarDecl{Name: name, IsConst: isConst}
	decl.P.Line, decl.P.Col = pos.Line, pos.Col

	for p.tok.Kind == token.LBRACKET {
		if err := p.advance(); err != nil {
			return nil, err
		}
		dim, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		decl.Dims = append(decl.Dims, dim)
	}

	if p.tok.Kind == token.ASSIGN {
		if err := p.advance(); err != nil {
			return nil, err
		}
		decl.HasInit = true
		if len(decl.Dims) == 0 {
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			decl.ScalarOp = val
		} else {
			elems, err := p.parseInitList()
			if err != nil {
				return nil, err
			}
			decl.Init = elems
		}
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseInitList flattens a (possibly nested) brace initializer into a
// sequence of leaves, recording brace-open/close markers so sema can
// track sparse per-sub-array positions (spec S4).
func (p *Parser) parseInitList() ([]ast.ArrayInitElem, error) {
	var out []ast.ArrayInitElem
	var rec func() error
	rec = func() error {
		if _, err := p.expect(token.LBRACE); err != nil {
			return err
		}
		out = append(out, ast.ArrayInitElem{OpenBrace: true})
		for p.tok.Kind != token.RBRACE {
			if len(out) > 1 {
				// allow a leading comma only between sibling elements
			}
			if p.tok.Kind == token.LBRACE {
				if err := rec(); err != nil {
					return err
				}
			} else {
				v, err := p.parseExpr()
				if err != nil {
					return err
				}
				out = append(out, ast.ArrayInitElem{Value: v})
			}
			if p.tok.Kind == token.COMMA {
				if err := p.advance(); err != nil {
					return err
				}
			} else {
				break
			}
		}
		if _, err := p.expect(token.RBRACE); err != nil {
			return err
		}
		out = append(out, ast.ArrayInitElem{CloseBrace: true})
		return nil
	}
	if err := rec(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	pos := p.pos()
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	blk := &ast.BlockStmt{}
	blk.P.Line, blk.P.Col = pos.Line, pos.Col
	for p.tok.Kind != token.RBRACE {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, stmt)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return blk, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case token.LBRACE:
		return p.parseBlock()
	case token.KW_IF:
		return p.parseIf(pos)
	case token.KW_WHILE:
		return p.parseWhile(pos)
	case token.KW_BREAK:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		s := &ast.BreakStmt{}
		s.P = pos
		return s, nil
	case token.KW_CONTINUE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		s := &ast.ContinueStmt{}
		s.P = pos
		return s, nil
	case token.KW_RETURN:
		return p.parseReturn(pos)
	case token.SEMI:
		if err := p.advance(); err != nil {
			return nil, err
		}
		blk := &ast.BlockStmt{}
		blk.P = pos
		return blk, nil
	case token.KW_INT, token.KW_CONST:
		return p.parseLocalDecl(pos)
	default:
		return p.parseAssignOrExprStmt(pos)
	}
}

func (p *Parser) parseIf(pos diag.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Cond: cond, Then: then}
	stmt.P = pos
	if p.tok.Kind == token.KW_ELSE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		els, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmt.Else = els
	}
	return stmt, nil
}

func (p *Parser) parseWhile(pos diag.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	stmt := &ast.WhileStmt{Cond: cond, Body: body}
	stmt.P = pos
	return stmt, nil
}

func (p *Parser) parseReturn(pos diag.Pos) (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmt := &ast.ReturnStmt{}
	stmt.P = pos
	if p.tok.Kind != token.SEMI {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Value = v
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseLocalDecl(pos diag.Pos) (ast.Stmt, error) {
	isConst := false
	if p.tok.Kind == token.KW_CONST {
		isConst = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.KW_INT); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	decl, err := p.parseVarDeclTail(pos, nameTok.Text, isConst)
	if err != nil {
		return nil, err
	}
	stmt := &ast.DeclStmt{Decl: decl}
	stmt.P = pos
	return stmt, nil
}

// parseAssignOrExprStmt disambiguates `lvalue = expr;` from a bare
// expression statement by parsing a unary/postfix expression first and
// checking whether `=` follows.
func (p *Parser) parseAssignOrExprStmt(pos diag.Pos) (ast.Stmt, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == token.ASSIGN {
		switch x.(type) {
		case *ast.Ident, *ast.IndexExpr:
		default:
			return nil, diag.Errorf(diag.Parse, pos, "invalid assignment target")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		stmt := &ast.AssignStmt{Target: x, Value: val}
		stmt.P = pos
		return stmt, nil
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	stmt := &ast.ExprStmt{X: x}
	stmt.P = pos
	return stmt, nil
}

// Expression grammar, precedence low to high:
//   || -> && -> == != -> < > <= >= -> + - -> * / % -> unary -> postfix

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.OR {
		pos := p.pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.Or, Left: left, Right: right, Base: ast.BaseAt(pos)}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.AND {
		pos := p.pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.And, Left: left, Right: right, Base: ast.BaseAt(pos)}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.EQ || p.tok.Kind == token.NE {
		op, pos := ast.Eq, p.pos()
		if p.tok.Kind == token.NE {
			op = ast.Ne
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Base: ast.BaseAt(pos)}
	}
	return left, nil
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.LT || p.tok.Kind == token.GT || p.tok.Kind == token.LE || p.tok.Kind == token.GE {
		var op ast.BinOp
		switch p.tok.Kind {
		case token.LT:
			op = ast.Lt
		case token.GT:
			op = ast.Gt
		case token.LE:
			op = ast.Leq
		case token.GE:
			op = ast.Geq
		}
		pos := p.pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Base: ast.BaseAt(pos)}
	}
	return left, nil
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.PLUS || p.tok.Kind == token.MINUS {
		op, pos := ast.Add, p.pos()
		if p.tok.Kind == token.MINUS {
			op = ast.Sub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Base: ast.BaseAt(pos)}
	}
	return left, nil
}

func (p *Parser) parseMul() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.STAR || p.tok.Kind == token.SLASH || p.tok.Kind == token.PERCENT {
		var op ast.BinOp
		switch p.tok.Kind {
		case token.STAR:
			op = ast.Mul
		case token.SLASH:
			op = ast.Div
		case token.PERCENT:
			op = ast.Mod
		}
		pos := p.pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Base: ast.BaseAt(pos)}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case token.PLUS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseUnary()
	case token.MINUS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.Neg, Operand: x, Base: ast.BaseAt(pos)}, nil
	case token.NOT:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.Not, Operand: x, Base: ast.BaseAt(pos)}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case token.INTCONST:
		v := p.tok.IntVal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.IntLit{Value: v, Base: ast.BaseAt(pos)}, nil
	case token.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return x, nil
	case token.IDENT:
		name := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind == token.LPAREN {
			if err := p.advance(); err != nil {
				return nil, err
			}
			var args []ast.Expr
			for p.tok.Kind != token.RPAREN {
				if len(args) > 0 {
					if _, err := p.expect(token.COMMA); err != nil {
						return nil, err
					}
				}
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			return &ast.CallExpr{Callee: name, Args: args, Base: ast.BaseAt(pos)}, nil
		}
		var x ast.Expr = &ast.Ident{Name: name, Base: ast.BaseAt(pos)}
		for p.tok.Kind == token.LBRACKET {
			ipos := p.pos()
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			x = &ast.IndexExpr{Array: x, Index: idx, Base: ast.BaseAt(ipos)}
		}
		return x, nil
	}
	return nil, diag.Errorf(diag.Parse, pos, "expected an expression, found %s", p.tok.Kind)
}
