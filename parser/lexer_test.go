package parser

import (
	"strings"
	"testing"

	"github.com/panyam/fsl/decl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper struct for expected token properties
type expectedToken struct {
	tok        int    // Token type (e.g., IDENTIFIER, INT_LITERAL, FUNC, LBRACE)
	text       string // Raw token text as scanned by lexer
	startPos   int    // Expected start byte offset
	endPos     int    // Expected end byte offset
	startLine  int    // Expected start line
	startCol   int    // Expected start column
	literalVal any    // For LiteralExpr: The parsed value
	identName  string // For IdentifierExpr: The name
}

// Helper function to run lexer tests
func runLexerTest(t *testing.T, input string, expectedTokens []expectedToken) (lexer *Lexer) {
	t.Helper()
	lexer = NewLexer(strings.NewReader(input))
	lval := &FSLSymType{}

	for i, exp := range expectedTokens {
		tok := lexer.Lex(lval)
		expTokStr := TokenString(exp.tok)
		assert.Equal(t, exp.tok, tok, "Test %d: Token type mismatch. Expected %s, got %s ('%s')", i, expTokStr, TokenString(tok), lexer.Text())
		assert.Equal(t, exp.text, lexer.Text(), "Test %d: Token text mismatch for %s.", i, expTokStr)
		assert.Equal(t, exp.startPos, lexer.Pos().Pos, "Test %d: Token startPos mismatch for %s.", i, expTokStr)
		assert.Equal(t, exp.endPos, lexer.End().Pos, "Test %d: Token endPos mismatch for %s.", i, expTokStr)
		assert.Equal(t, exp.startLine, lexer.Pos().Line, "Test %d: Token startLine mismatch for %s.", i, expTokStr)
		assert.Equal(t, exp.startCol, lexer.Pos().Col, "Test %d: Token startCol mismatch for %s.", i, expTokStr)

		if exp.literalVal != nil {
			litExpr, ok := lval.expr.(*decl.LiteralExpr)
			require.True(t, ok, "Test %d: Expected LiteralExpr for token %s, got %T", i, expTokStr, lval.expr)
			assert.Equal(t, exp.literalVal, litExpr.Value, "Test %d: Literal value mismatch for %s.", i, expTokStr)
			assert.Equal(t, exp.startPos, litExpr.Pos().Pos)
			assert.Equal(t, exp.endPos, litExpr.End().Pos)
		}
		if exp.identName != "" {
			require.NotNil(t, lval.ident)
			assert.Equal(t, exp.identName, lval.ident.Name, "Test %d: Identifier name mismatch.", i)
			assert.Equal(t, exp.startPos, lval.ident.Pos().Pos)
			assert.Equal(t, exp.endPos, lval.ident.End().Pos)
		}

		switch exp.tok {
		case OR, AND, EQ, NEQ, LT, LTE, GT, GTE, PLUS, MINUS, MUL, DIV, MOD, NOT, PLUS_ASSIGN, ARROW:
			assert.Equal(t, exp.text, lval.sval, "Test %d: Operator sval mismatch for %s", i, expTokStr)
		}
	}

	finalTok := lexer.Lex(lval)
	assert.Equal(t, eof, finalTok, "Expected EOF after all tokens, got %s ('%s')", TokenString(finalTok), lexer.Text())
	return
}

func TestLexerDeclarations(t *testing.T) {
	input := "param width: Int(32) = 640;"
	runLexerTest(t, input, []expectedToken{
		{tok: PARAM, text: "param", startPos: 0, endPos: 5, startLine: 1, startCol: 1},
		{tok: IDENTIFIER, text: "width", startPos: 6, endPos: 11, startLine: 1, startCol: 7, identName: "width"},
		{tok: COLON, text: ":", startPos: 11, endPos: 12, startLine: 1, startCol: 12},
		{tok: IDENTIFIER, text: "Int", startPos: 13, endPos: 16, startLine: 1, startCol: 14, identName: "Int"},
		{tok: LPAREN, text: "(", startPos: 16, endPos: 17, startLine: 1, startCol: 17},
		{tok: INT_LITERAL, text: "32", startPos: 17, endPos: 19, startLine: 1, startCol: 18, literalVal: int64(32)},
		{tok: RPAREN, text: ")", startPos: 19, endPos: 20, startLine: 1, startCol: 20},
		{tok: ASSIGN, text: "=", startPos: 21, endPos: 22, startLine: 1, startCol: 22},
		{tok: INT_LITERAL, text: "640", startPos: 23, endPos: 26, startLine: 1, startCol: 24, literalVal: int64(640)},
		{tok: SEMICOLON, text: ";", startPos: 26, endPos: 27, startLine: 1, startCol: 27},
	})
}

func TestLexerTagsAndOperators(t *testing.T) {
	input := "@update def u(res) {\n  res[x] += 1.5;\n}"
	runLexerTest(t, input, []expectedToken{
		{tok: TAG, text: "@update", startPos: 0, endPos: 7, startLine: 1, startCol: 1},
		{tok: DEF, text: "def", startPos: 8, endPos: 11, startLine: 1, startCol: 9},
		{tok: IDENTIFIER, text: "u", startPos: 12, endPos: 13, startLine: 1, startCol: 13, identName: "u"},
		{tok: LPAREN, text: "(", startPos: 13, endPos: 14, startLine: 1, startCol: 14},
		{tok: IDENTIFIER, text: "res", startPos: 14, endPos: 17, startLine: 1, startCol: 15, identName: "res"},
		{tok: RPAREN, text: ")", startPos: 17, endPos: 18, startLine: 1, startCol: 18},
		{tok: LBRACE, text: "{", startPos: 19, endPos: 20, startLine: 1, startCol: 20},
		{tok: IDENTIFIER, text: "res", startPos: 23, endPos: 26, startLine: 2, startCol: 3, identName: "res"},
		{tok: LBRACKET, text: "[", startPos: 26, endPos: 27, startLine: 2, startCol: 6},
		{tok: IDENTIFIER, text: "x", startPos: 27, endPos: 28, startLine: 2, startCol: 7, identName: "x"},
		{tok: RBRACKET, text: "]", startPos: 28, endPos: 29, startLine: 2, startCol: 8},
		{tok: PLUS_ASSIGN, text: "+=", startPos: 30, endPos: 32, startLine: 2, startCol: 10},
		{tok: FLOAT_LITERAL, text: "1.5", startPos: 33, endPos: 36, startLine: 2, startCol: 13, literalVal: 1.5},
		{tok: SEMICOLON, text: ";", startPos: 36, endPos: 37, startLine: 2, startCol: 16},
		{tok: RBRACE, text: "}", startPos: 38, endPos: 39, startLine: 3, startCol: 1},
	})
}

func TestLexerComments(t *testing.T) {
	input := "// leading\n/* block\n comment */ a->b <= c && !d"
	runLexerTest(t, input, []expectedToken{
		{tok: IDENTIFIER, text: "a", startPos: 32, endPos: 33, startLine: 3, startCol: 13, identName: "a"},
		{tok: ARROW, text: "->", startPos: 33, endPos: 35, startLine: 3, startCol: 14},
		{tok: IDENTIFIER, text: "b", startPos: 35, endPos: 36, startLine: 3, startCol: 16, identName: "b"},
		{tok: LTE, text: "<=", startPos: 37, endPos: 39, startLine: 3, startCol: 18},
		{tok: IDENTIFIER, text: "c", startPos: 40, endPos: 41, startLine: 3, startCol: 21, identName: "c"},
		{tok: AND, text: "&&", startPos: 42, endPos: 44, startLine: 3, startCol: 23},
		{tok: NOT, text: "!", startPos: 45, endPos: 46, startLine: 3, startCol: 26},
		{tok: IDENTIFIER, text: "d", startPos: 46, endPos: 47, startLine: 3, startCol: 27, identName: "d"},
	})
}

func TestLexerLiterals(t *testing.T) {
	input := `"a\"b" true 7`
	runLexerTest(t, input, []expectedToken{
		{tok: STRING_LITERAL, text: `"a\"b"`, startPos: 0, endPos: 6, startLine: 1, startCol: 1, literalVal: `a"b`},
		{tok: BOOL_LITERAL, text: "true", startPos: 7, endPos: 11, startLine: 1, startCol: 8, literalVal: true},
		{tok: INT_LITERAL, text: "7", startPos: 12, endPos: 13, startLine: 1, startCol: 13, literalVal: int64(7)},
	})
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		errorContains string
	}{
		{"unexpected character", "a $ b", "unexpected character '$'"},
		{"unterminated block comment", "a /* never closed", "unterminated block comment"},
		{"bad escape", `"\q"`, "invalid escape sequence"},
		{"bad tag", "@inline", "expected @pure or @update"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(strings.NewReader(tt.input))
			lval := &FSLSymType{}
			for i := 0; i < 10 && lexer.Lex(lval) != eof; i++ {
			}
			require.Error(t, lexer.LastError())
			assert.ErrorContains(t, lexer.LastError(), tt.errorContains)
			assert.ErrorIs(t, lexer.LastError(), decl.ErrSyntaxViolation)
		})
	}
}
