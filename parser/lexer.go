package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"unicode"

	"github.com/panyam/fsl/decl"
)

// FSLSymType is the semantic value of a lexed token.
type FSLSymType struct {
	expr  decl.Expr
	ident *decl.IdentifierExpr
	sval  string

	start, end decl.Location
}

// Lexer structure
type Lexer struct {
	lookaheadRunes  []rune
	lookaheadWidths []int
	reader          *bufio.Reader
	buf             bytes.Buffer // Temporary buffer for scanned text
	pos             int          // Current byte offset from the beginning of the input
	lastError       error

	// Position tracking for the current token
	tokenStart decl.Location
	tokenText  string // Raw text of the current token

	// Current line and column (rune-based) in the input
	line int
	col  int

	// Source name stamped on every location
	file string
}

// NewLexer creates a new lexer instance
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{
		reader: bufio.NewReader(r),
		pos:    0,
		line:   1,
		col:    1,
	}
}

// SetSource names the source being lexed. Locations produced afterwards
// carry it.
func (l *Lexer) SetSource(name string) { l.file = name }

// Error records a SyntaxViolation at the current token. Only the first error
// is kept.
func (l *Lexer) Error(s string) {
	if l.lastError != nil {
		return
	}
	l.lastError = decl.Errorf(decl.SyntaxViolation, l.tokenStart, "", "near '%s': %s", l.tokenText, s)
	slog.Debug("lexer error", "line", l.tokenStart.Line, "col", l.tokenStart.Col, "err", s)
}

// LastError returns the first error the lexer hit, if any.
func (l *Lexer) LastError() error { return l.lastError }

// Pos returns the start location of the most recently lexed token.
func (l *Lexer) Pos() decl.Location {
	return l.tokenStart
}

// End returns the location just past the most recent token.
func (l *Lexer) End() decl.Location {
	return l.location()
}

// Text returns the raw text of the most recently lexed token.
func (l *Lexer) Text() string {
	return l.tokenText
}

func (l *Lexer) location() decl.Location {
	return decl.Location{Pos: l.pos, Line: l.line, Col: l.col, File: l.file}
}

// --- Rune Reading Helpers (with line/col tracking) ---
func (l *Lexer) read() (r rune, width int) {
	if l.peek() == eof {
		return eof, 0
	}
	r, width = l.lookaheadRunes[0], l.lookaheadWidths[0]
	l.lookaheadRunes, l.lookaheadWidths = l.lookaheadRunes[1:], l.lookaheadWidths[1:]
	l.updatePosition(r, width)
	return r, width
}

func (l *Lexer) updatePosition(r rune, width int) {
	l.pos += width
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) peekN(nthchar int) rune {
	l.ensureLookAhead(nthchar + 1)
	if nthchar >= len(l.lookaheadRunes) {
		return eof
	}
	return l.lookaheadRunes[nthchar]
}

func (l *Lexer) peek() rune {
	return l.peekN(0)
}

func (l *Lexer) ensureLookAhead(numchars int) int {
	for len(l.lookaheadRunes) < numchars {
		r, width, err := l.reader.ReadRune()
		if err != nil {
			break
		}
		l.lookaheadRunes = append(l.lookaheadRunes, r)
		l.lookaheadWidths = append(l.lookaheadWidths, width)
	}
	return len(l.lookaheadRunes)
}

// hasPrefix checks the lookahead for prefix and consumes it if asked to.
func (l *Lexer) hasPrefix(prefix string, consume bool) bool {
	runes := []rune(prefix)
	if l.ensureLookAhead(len(runes)) < len(runes) {
		return false
	}
	for i, r := range runes {
		if l.lookaheadRunes[i] != r {
			return false
		}
	}
	if consume {
		for range runes {
			l.read()
		}
	}
	return true
}

func (l *Lexer) readTill(stop rune) (foundeof bool) {
	for {
		r := l.peek()
		if r == eof {
			return true
		}
		l.read()
		if r == stop {
			return false
		}
	}
}

// --- Scanning Functions ---
func (l *Lexer) skipWhitespace() bool {
	for {
		firstChar := l.peek()
		if firstChar == eof {
			return true
		}
		if unicode.IsSpace(firstChar) {
			l.read()
		} else if l.hasPrefix("//", true) {
			l.readTill('\n')
		} else if l.hasPrefix("/*", true) {
			for {
				if l.hasPrefix("*/", true) {
					break
				}
				if r, _ := l.read(); r == eof {
					l.tokenStart = l.location()
					l.Error("unterminated block comment")
					return true
				}
			}
		} else {
			return false
		}
	}
}

func (l *Lexer) scanIdentifierOrKeyword() (tok int, text string) {
	l.buf.Reset()
	for r := l.peek(); r != eof && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'); r = l.peek() {
		l.read()
		l.buf.WriteRune(r)
	}
	text = l.buf.String()
	if kw, ok := keywords[text]; ok {
		return kw, text
	}
	return IDENTIFIER, text
}

func (l *Lexer) scanNumber() (tok int, text string) {
	l.buf.Reset()
	hasDecimal := false
	for r := l.peek(); r != eof; r = l.peek() {
		if unicode.IsDigit(r) {
			l.read()
			l.buf.WriteRune(r)
		} else if r == '.' && !hasDecimal && unicode.IsDigit(l.peekN(1)) {
			l.read()
			hasDecimal = true
			l.buf.WriteRune(r)
		} else {
			break
		}
	}
	text = l.buf.String()
	if hasDecimal {
		return FLOAT_LITERAL, text
	}
	return INT_LITERAL, text
}

func (l *Lexer) scanString() (ok bool, content string) {
	l.buf.Reset()
	l.read() // Consume opening '"'
	for {
		r, _ := l.read()
		if r == eof || r == '\n' {
			l.Error("unterminated string literal")
			return false, ""
		}
		if r == '"' {
			break
		}
		if r == '\\' {
			esc, _ := l.read()
			switch esc {
			case 'n':
				l.buf.WriteRune('\n')
			case 't':
				l.buf.WriteRune('\t')
			case '\\':
				l.buf.WriteRune('\\')
			case '"':
				l.buf.WriteRune('"')
			default:
				l.Error(fmt.Sprintf("invalid escape sequence \\%c", esc))
				return false, ""
			}
		} else {
			l.buf.WriteRune(r)
		}
	}
	return true, l.buf.String()
}

// operator table, longest match first
var operators = []struct {
	text string
	tok  int
}{
	{"->", ARROW}, {"+=", PLUS_ASSIGN}, {"-=", MINUS_ASSIGN}, {"*=", MUL_ASSIGN}, {"/=", DIV_ASSIGN},
	{"==", EQ}, {"!=", NEQ}, {"<=", LTE}, {">=", GTE}, {"&&", AND}, {"||", OR},
	{"(", LPAREN}, {")", RPAREN}, {"{", LBRACE}, {"}", RBRACE}, {"[", LBRACKET}, {"]", RBRACKET},
	{",", COMMA}, {";", SEMICOLON}, {".", DOT}, {":", COLON}, {"=", ASSIGN},
	{"<", LT}, {">", GT}, {"+", PLUS}, {"-", MINUS}, {"*", MUL}, {"/", DIV}, {"%", MOD}, {"!", NOT},
}

// Lex is the main lexing function called by the parser.
func (l *Lexer) Lex(lval *FSLSymType) int {
	*lval = FSLSymType{}
	if l.lastError != nil {
		return eof
	}
	if l.skipWhitespace() {
		l.tokenStart = l.location()
		l.tokenText = ""
		lval.start, lval.end = l.tokenStart, l.tokenStart
		return eof
	}

	l.tokenStart = l.location()
	l.tokenText = ""
	lval.start = l.tokenStart
	defer func() { lval.end = l.location() }()

	r := l.peek()
	if unicode.IsLetter(r) || r == '_' {
		tok, text := l.scanIdentifierOrKeyword()
		l.tokenText = text
		lval.sval = text
		switch tok {
		case IDENTIFIER:
			lval.ident = decl.NewIdent(text, l.tokenStart, l.location())
			lval.expr = lval.ident
		case BOOL_LITERAL:
			lval.expr = l.literal(decl.BoolLiteral, text == "true")
		}
		return tok
	}

	if r == '@' {
		l.read()
		tok, text := l.scanIdentifierOrKeyword()
		l.tokenText = "@" + text
		if tok != IDENTIFIER || (text != "pure" && text != "update") {
			l.Error("expected @pure or @update")
			return eof
		}
		lval.sval = text
		return TAG
	}

	if unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(l.peekN(1))) {
		numTok, numText := l.scanNumber()
		l.tokenText = numText
		lval.sval = numText
		if numTok == INT_LITERAL {
			intVal, err := strconv.ParseInt(numText, 10, 64)
			if err != nil {
				l.Error(fmt.Sprintf("invalid integer: %s", numText))
				return eof
			}
			lval.expr = l.literal(decl.IntLiteral, intVal)
			return INT_LITERAL
		}
		floatVal, err := strconv.ParseFloat(numText, 64)
		if err != nil {
			l.Error(fmt.Sprintf("invalid float: %s", numText))
			return eof
		}
		lval.expr = l.literal(decl.FloatLiteral, floatVal)
		return FLOAT_LITERAL
	}

	if r == '"' {
		ok, content := l.scanString()
		if !ok {
			return eof
		}
		l.tokenText = strconv.Quote(content)
		lval.sval = content
		lval.expr = l.literal(decl.StringLiteral, content)
		return STRING_LITERAL
	}

	for _, op := range operators {
		if l.hasPrefix(op.text, true) {
			l.tokenText = op.text
			lval.sval = op.text
			return op.tok
		}
	}

	l.tokenText = string(r)
	l.Error(fmt.Sprintf("unexpected character '%c'", r))
	return eof
}

func (l *Lexer) literal(kind decl.LiteralKind, value any) *decl.LiteralExpr {
	return &decl.LiteralExpr{
		ExprBase: decl.ExprBase{NodeInfo: decl.NewNodeInfo(l.tokenStart, l.location())},
		Kind:     kind,
		Value:    value,
	}
}
