package parser

import "fmt"

// Ensure EOF is defined
const eof = 0

const (
	IDENTIFIER = iota + 57346
	INT_LITERAL
	FLOAT_LITERAL
	STRING_LITERAL
	BOOL_LITERAL

	// Keywords
	FUNC
	DEF
	PIPE
	PARAM
	INPUT
	INSTANCE
	OUTPUT
	SCHEDULE
	IMPORT
	RETURN
	LET
	FOR
	IN

	// Decorator tag, `@pure` / `@update`
	TAG

	// Punctuation
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	COMMA
	SEMICOLON
	DOT
	COLON
	ARROW

	// Assignment
	ASSIGN
	PLUS_ASSIGN
	MINUS_ASSIGN
	MUL_ASSIGN
	DIV_ASSIGN

	// Operators
	OR
	AND
	EQ
	NEQ
	LT
	LTE
	GT
	GTE
	PLUS
	MINUS
	MUL
	DIV
	MOD
	NOT
)

var tokenNames = map[int]string{
	eof:            "EOF",
	IDENTIFIER:     "IDENTIFIER",
	INT_LITERAL:    "INT_LITERAL",
	FLOAT_LITERAL:  "FLOAT_LITERAL",
	STRING_LITERAL: "STRING_LITERAL",
	BOOL_LITERAL:   "BOOL_LITERAL",
	FUNC:           "func",
	DEF:            "def",
	PIPE:           "pipe",
	PARAM:          "param",
	INPUT:          "input",
	INSTANCE:       "instance",
	OUTPUT:         "output",
	SCHEDULE:       "schedule",
	IMPORT:         "import",
	RETURN:         "return",
	LET:            "let",
	FOR:            "for",
	IN:             "in",
	TAG:            "TAG",
	LPAREN:         "(",
	RPAREN:         ")",
	LBRACE:         "{",
	RBRACE:         "}",
	LBRACKET:       "[",
	RBRACKET:       "]",
	COMMA:          ",",
	SEMICOLON:      ";",
	DOT:            ".",
	COLON:          ":",
	ARROW:          "->",
	ASSIGN:         "=",
	PLUS_ASSIGN:    "+=",
	MINUS_ASSIGN:   "-=",
	MUL_ASSIGN:     "*=",
	DIV_ASSIGN:     "/=",
	OR:             "||",
	AND:            "&&",
	EQ:             "==",
	NEQ:            "!=",
	LT:             "<",
	LTE:            "<=",
	GT:             ">",
	GTE:            ">=",
	PLUS:           "+",
	MINUS:          "-",
	MUL:            "*",
	DIV:            "/",
	MOD:            "%",
	NOT:            "!",
}

var keywords = map[string]int{
	"func":     FUNC,
	"def":      DEF,
	"pipe":     PIPE,
	"param":    PARAM,
	"input":    INPUT,
	"instance": INSTANCE,
	"output":   OUTPUT,
	"schedule": SCHEDULE,
	"import":   IMPORT,
	"return":   RETURN,
	"let":      LET,
	"for":      FOR,
	"in":       IN,
	"true":     BOOL_LITERAL,
	"false":    BOOL_LITERAL,
}

// TokenString returns a printable name for a token.
func TokenString(tok int) string {
	if name, ok := tokenNames[tok]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", tok)
}

// isAssignOp is true for tokens that may follow an indexed target.
func isAssignOp(tok int) bool {
	switch tok {
	case ASSIGN, PLUS_ASSIGN, MINUS_ASSIGN, MUL_ASSIGN, DIV_ASSIGN:
		return true
	}
	return false
}
