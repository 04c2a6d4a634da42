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

package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysygo/internal/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New(strings.NewReader(src))
	var toks []token.Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestScanKeywordsAndPunctuation(t *testing.T) {
	toks := scanAll(t, "int main() { return 0; }")
	kinds := make([]token.Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []token.Kind{
		token.KW_INT, token.IDENT, token.LPAREN, token.RPAREN,
		token.LBRACE, token.KW_RETURN, token.INTCONST, token.SEMI,
		token.RBRACE, token.EOF,
	}, kinds)
}

func TestScanIntegerLiteralBases(t *testing.T) {
	toks := scanAll(t, "10 010 0x10")
	require.Len(t, toks, 4)
	assert.EqualValues(t, 10, toks[0].IntVal)
	assert.EqualValues(t, 8, toks[1].IntVal)
	assert.EqualValues(t, 16, toks[2].IntVal)
}

func TestScanTwoCharOperators(t *testing.T) {
	toks := scanAll(t, "<= >= == != && ||")
	kinds := make([]token.Kind, 0, len(toks)-1)
	for _, tok := range toks[:len(toks)-1] {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []token.Kind{token.LE, token.GE, token.EQ, token.NE, token.AND, token.OR}, kinds)
}

func TestSkipsLineAndBlockComments(t *testing.T) {
	toks := scanAll(t, "int // trailing comment\n/* block\ncomment */ x")
	kinds := make([]token.Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []token.Kind{token.KW_INT, token.IDENT, token.EOF}, kinds)
}

func TestUnterminatedCommentIsLexError(t *testing.T) {
	l := New(strings.NewReader("/* never closed"))
	_, err := l.Next()
	assert.Error(t, err)
}

func TestUnexpectedCharacterIsLexError(t *testing.T) {
	l := New(strings.NewReader("@"))
	_, err := l.Next()
	assert.Error(t, err)
}

func TestMalformedHexLiteralIsLexError(t *testing.T) {
	l := New(strings.NewReader("0x"))
	_, err := l.Next()
	assert.Error(t, err)
}
