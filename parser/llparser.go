package parser

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/panyam/fsl/decl"
	gfn "github.com/panyam/goutils/fn"
)

type LLParser struct {
	lexer            *Lexer
	peekedTokenValue *FSLSymType
	peekedToken      int

	// Name of the func/def being parsed, stamped on errors
	scope string
}

func NewLLParser(lexer *Lexer) *LLParser {
	return &LLParser{lexer: lexer}
}

// Parse reads a whole source file. Duplicate names are reported by the
// returned file's Resolve pass, which Parse runs before returning.
func Parse(r io.Reader, sourceName string) (*decl.FileDecl, error) {
	lexer := NewLexer(r)
	lexer.SetSource(sourceName)
	p := NewLLParser(lexer)
	file := &decl.FileDecl{FullPath: sourceName}
	if err := p.Parse(file); err != nil {
		return nil, decl.WithFile(err, sourceName)
	}
	if err := file.Resolve(); err != nil {
		return nil, decl.WithFile(err, sourceName)
	}
	slog.Debug("parsed file", "file", sourceName, "decls", len(file.Declarations))
	return file, nil
}

func (p *LLParser) Parse(file *decl.FileDecl) (err error) {
	file.NodeInfo.StartPos = p.lexer.location()
	defer func() { file.NodeInfo.StopPos = p.lexer.location() }()
	for {
		peekedToken := p.PeekToken()
		var node decl.Declaration
		switch peekedToken {
		case eof:
			return p.lexer.lastError
		case SEMICOLON:
			p.Advance()
			continue
		case IMPORT:
			node, err = p.ParseImportDecl()
		case PARAM:
			node, err = p.ParseParamDecl()
		case INPUT:
			node, err = p.ParseInputDecl()
		case FUNC:
			node, err = p.ParseFuncDecl()
		case PIPE:
			node, err = p.ParsePipeDecl()
		case INSTANCE:
			node, err = p.ParseInstanceDecl()
		case OUTPUT:
			node, err = p.ParseOutputDecl()
		case SCHEDULE:
			node, err = p.ParseScheduleDecl()
		default:
			return p.Errorf("expected a declaration, found: %s (%s)", TokenString(peekedToken), p.lexer.Text())
		}
		if err != nil {
			return err
		}
		file.Declarations = append(file.Declarations, node)
	}
}

func (p *LLParser) Errorf(format string, args ...any) error {
	s := fmt.Sprintf(format, args...)
	p.lexer.Error(s)
	if ce, ok := p.lexer.lastError.(*decl.CompileError); ok && ce.Def == "" {
		ce.Def = p.scope
	}
	return p.lexer.lastError
}

// violation reports a SyntaxViolation anchored at a node rather than at the
// current token.
func (p *LLParser) violation(pos decl.Location, format string, args ...any) error {
	err := decl.Errorf(decl.SyntaxViolation, pos, p.scope, format, args...)
	if p.lexer.lastError == nil {
		p.lexer.lastError = err
	}
	return err
}

func (p *LLParser) Advance() int {
	p.PeekToken()
	last := p.peekedToken
	p.peekedTokenValue = nil
	p.peekedToken = -1
	return last
}

func (p *LLParser) PeekToken() int {
	if p.peekedTokenValue == nil {
		p.peekedTokenValue = &FSLSymType{}
		p.peekedToken = p.lexer.Lex(p.peekedTokenValue)
	}
	return p.peekedToken
}

// Expect checks if the current peeked token is one of the expected tokens.
// It does NOT advance.
func (p *LLParser) Expect(tokensIn ...int) (foundToken int, err error) {
	peekedToken := p.PeekToken()
	for _, tok := range tokensIn {
		if tok == peekedToken {
			return tok, nil
		}
	}
	var errMsg string
	if len(tokensIn) == 1 {
		errMsg = fmt.Sprintf("expected %s, found: %s", TokenString(tokensIn[0]), TokenString(peekedToken))
	} else {
		expectedStrings := gfn.Map(tokensIn, func(t int) string { return TokenString(t) })
		errMsg = fmt.Sprintf("expected one of: [%s], found: %s", strings.Join(expectedStrings, ", "), TokenString(peekedToken))
	}
	return -1, p.Errorf("%s", errMsg)
}

// AdvanceIf expects one of the given tokens and advances if found.
// Returns the matched token type and its semantic value.
func (p *LLParser) AdvanceIf(tokensIn ...int) (foundToken int, tokenValue *FSLSymType, err error) {
	if _, err = p.Expect(tokensIn...); err != nil {
		return -1, nil, err
	}
	foundToken = p.peekedToken
	tokenValue = p.peekedTokenValue
	p.Advance()
	return
}

// expectWord consumes an identifier used as a contextual keyword (shape, range, seq).
func (p *LLParser) expectWord(word string) (*FSLSymType, error) {
	if p.PeekToken() != IDENTIFIER || p.peekedTokenValue.sval != word {
		return nil, p.Errorf("expected '%s', found: %s (%s)", word, TokenString(p.PeekToken()), p.lexer.Text())
	}
	tv := p.peekedTokenValue
	p.Advance()
	return tv, nil
}

func (p *LLParser) peekWord(word string) bool {
	return p.PeekToken() == IDENTIFIER && p.peekedTokenValue.sval == word
}

// Extract a single identifier
func (p *LLParser) ParseIdentifier() (out *decl.IdentifierExpr, err error) {
	if _, err = p.Expect(IDENTIFIER); err != nil {
		return nil, err
	}
	tokenVal := p.peekedTokenValue
	p.Advance()
	if tokenVal.ident == nil {
		return decl.NewIdent(tokenVal.sval, tokenVal.start, tokenVal.end), nil
	}
	return tokenVal.ident, nil
}

// ParseIdentList parses IDENT (',' IDENT)*
func (p *LLParser) ParseIdentList() (out []*decl.IdentifierExpr, err error) {
	for {
		ident, err := p.ParseIdentifier()
		if err != nil {
			return nil, err
		}
		out = append(out, ident)
		if p.PeekToken() != COMMA {
			return out, nil
		}
		p.Advance()
	}
}

func (p *LLParser) ParseImportDecl() (out *decl.ImportDecl, err error) {
	_, start, err := p.AdvanceIf(IMPORT)
	if err != nil {
		return nil, err
	}
	_, pathTok, err := p.AdvanceIf(STRING_LITERAL)
	if err != nil {
		return nil, err
	}
	_, end, err := p.AdvanceIf(SEMICOLON)
	if err != nil {
		return nil, err
	}
	return &decl.ImportDecl{
		NodeInfo: decl.NewNodeInfo(start.start, end.end),
		Path:     pathTok.expr.(*decl.LiteralExpr),
	}, nil
}

// ParseParamDecl parses `param NAME: Type (= Expr)? ;`
func (p *LLParser) ParseParamDecl() (out *decl.ParamDecl, err error) {
	_, start, err := p.AdvanceIf(PARAM)
	if err != nil {
		return nil, err
	}
	out = &decl.ParamDecl{}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(COLON); err != nil {
		return nil, err
	}
	if out.TypeDecl, err = p.ParseTypeDecl(); err != nil {
		return nil, err
	}
	if p.PeekToken() == ASSIGN {
		p.Advance()
		if out.DefaultValue, err = p.ParseExpression(); err != nil {
			return nil, err
		}
	}
	_, end, err := p.AdvanceIf(SEMICOLON)
	if err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NewNodeInfo(start.start, end.end)
	return out, nil
}

// ParseInputDecl parses
// `input NAME: Type (shape [e, ...])? (range [lo, hi])? ;`
func (p *LLParser) ParseInputDecl() (out *decl.InputDecl, err error) {
	_, start, err := p.AdvanceIf(INPUT)
	if err != nil {
		return nil, err
	}
	out = &decl.InputDecl{}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(COLON); err != nil {
		return nil, err
	}
	if out.TypeDecl, err = p.ParseTypeDecl(); err != nil {
		return nil, err
	}
	if p.peekWord("shape") {
		p.Advance()
		if _, _, err = p.AdvanceIf(LBRACKET); err != nil {
			return nil, err
		}
		if out.Shape, err = p.ParseArgList(); err != nil {
			return nil, err
		}
		if _, _, err = p.AdvanceIf(RBRACKET); err != nil {
			return nil, err
		}
	}
	if p.peekWord("range") {
		p.Advance()
		pair, err := p.parseBoundPair()
		if err != nil {
			return nil, err
		}
		out.RangeMin, out.RangeMax = pair[0], pair[1]
	}
	_, end, err := p.AdvanceIf(SEMICOLON)
	if err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NewNodeInfo(start.start, end.end)
	return out, nil
}

// parseBoundPair parses `[lo, hi]`
func (p *LLParser) parseBoundPair() (out [2]decl.Expr, err error) {
	if _, _, err = p.AdvanceIf(LBRACKET); err != nil {
		return
	}
	if out[0], err = p.ParseExpression(); err != nil {
		return
	}
	if _, _, err = p.AdvanceIf(COMMA); err != nil {
		return
	}
	if out[1], err = p.ParseExpression(); err != nil {
		return
	}
	_, _, err = p.AdvanceIf(RBRACKET)
	return
}

// ParseTypeDecl parses `Name` or `Name(arg, ...)` where args are types or
// integer literals.
func (p *LLParser) ParseTypeDecl() (out *decl.TypeDecl, err error) {
	if p.PeekToken() == INT_LITERAL {
		tv := p.peekedTokenValue
		p.Advance()
		return &decl.TypeDecl{
			NodeInfo: decl.NewNodeInfo(tv.start, tv.end),
			IntArg:   tv.expr.(*decl.LiteralExpr).Value.(int64),
			IsInt:    true,
		}, nil
	}
	name, err := p.ParseIdentifier()
	if err != nil {
		return nil, err
	}
	out = &decl.TypeDecl{NodeInfo: decl.NewNodeInfo(name.Pos(), name.End()), Name: name.Name}
	if p.PeekToken() != LPAREN {
		return out, nil
	}
	p.Advance()
	for {
		arg, err := p.ParseTypeDecl()
		if err != nil {
			return nil, err
		}
		out.Args = append(out.Args, arg)
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
	}
	_, end, err := p.AdvanceIf(RPAREN)
	if err != nil {
		return nil, err
	}
	out.NodeInfo.StopPos = end.end
	return out, nil
}

// ParseFuncDecl parses a func in one of its three body forms.
func (p *LLParser) ParseFuncDecl() (out *decl.FuncDecl, err error) {
	_, start, err := p.AdvanceIf(FUNC)
	if err != nil {
		return nil, err
	}
	out = &decl.FuncDecl{}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	p.scope = out.Name()
	defer func() { p.scope = "" }()

	if _, _, err = p.AdvanceIf(LPAREN); err != nil {
		return nil, err
	}
	for p.PeekToken() != RPAREN {
		dim, err := p.ParseIdentifier()
		if err != nil {
			return nil, err
		}
		// Optional `: Var` annotation
		if p.PeekToken() == COLON {
			p.Advance()
			if _, err := p.expectWord("Var"); err != nil {
				return nil, err
			}
		}
		out.Dims = append(out.Dims, dim)
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
	}
	if _, _, err = p.AdvanceIf(RPAREN); err != nil {
		return nil, err
	}

	if p.PeekToken() == ASSIGN {
		p.Advance()
		if out.Expr, err = p.ParseExpression(); err != nil {
			return nil, err
		}
		_, end, err := p.AdvanceIf(SEMICOLON)
		if err != nil {
			return nil, err
		}
		out.NodeInfo = decl.NewNodeInfo(start.start, end.end)
		return out, nil
	}

	if _, _, err = p.AdvanceIf(LBRACE); err != nil {
		return nil, err
	}
	var stmts []decl.Stmt
	for {
		tok := p.PeekToken()
		if tok == RBRACE {
			break
		}
		if tok == eof {
			if err := p.lexer.lastError; err != nil {
				return nil, err
			}
			return nil, p.Errorf("unexpected eof reading func: %s", out.Name())
		}
		if tok == SEMICOLON {
			p.Advance()
			continue
		}
		if tok == DEF || tok == TAG {
			def, err := p.ParseDefDecl()
			if err != nil {
				return nil, err
			}
			out.Defs = append(out.Defs, def)
			continue
		}
		stmt, err := p.ParseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	_, end, err := p.AdvanceIf(RBRACE)
	if err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NewNodeInfo(start.start, end.end)

	if len(out.Defs) > 0 {
		if len(stmts) > 0 {
			return nil, p.violation(stmts[0].Pos(), "multi-stage func body may only contain defs, found: %s", stmts[0])
		}
		return out, nil
	}
	if err := p.checkBody(stmts); err != nil {
		return nil, err
	}
	out.Body = stmts
	return out, nil
}

// ParseDefDecl parses a nested stage def.
func (p *LLParser) ParseDefDecl() (out *decl.DefDecl, err error) {
	out = &decl.DefDecl{}
	startPos := p.lexer.Pos()
	if p.PeekToken() == TAG {
		tv := p.peekedTokenValue
		startPos = tv.start
		out.Tag = tv.sval
		p.Advance()
	}
	_, defTok, err := p.AdvanceIf(DEF)
	if err != nil {
		return nil, err
	}
	if out.Tag == "" {
		startPos = defTok.start
	}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	outer := p.scope
	p.scope = outer + "." + out.Name()
	defer func() { p.scope = outer }()

	if _, _, err = p.AdvanceIf(LPAREN); err != nil {
		return nil, err
	}
	for p.PeekToken() != RPAREN {
		name, err := p.ParseIdentifier()
		if err != nil {
			return nil, err
		}
		param := &decl.DefParam{NodeInfo: decl.NewNodeInfo(name.Pos(), name.End()), NameNode: name}
		if p.PeekToken() == ASSIGN {
			p.Advance()
			if param.Default, err = p.ParseExpression(); err != nil {
				return nil, err
			}
			param.NodeInfo.StopPos = param.Default.End()
		}
		out.Params = append(out.Params, param)
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
	}
	if _, _, err = p.AdvanceIf(RPAREN); err != nil {
		return nil, err
	}

	if p.PeekToken() == ASSIGN {
		p.Advance()
		if out.Expr, err = p.ParseExpression(); err != nil {
			return nil, err
		}
		_, end, err := p.AdvanceIf(SEMICOLON)
		if err != nil {
			return nil, err
		}
		out.NodeInfo = decl.NewNodeInfo(startPos, end.end)
		return out, nil
	}

	body, end, err := p.ParseBlock()
	if err != nil {
		return nil, err
	}
	if err := p.checkBody(body); err != nil {
		return nil, err
	}
	out.Body = body
	out.NodeInfo = decl.NewNodeInfo(startPos, end)
	return out, nil
}

// ParseBlock parses `{ Stmt* }` and returns the location after the closing brace.
func (p *LLParser) ParseBlock() (stmts []decl.Stmt, end decl.Location, err error) {
	if _, _, err = p.AdvanceIf(LBRACE); err != nil {
		return
	}
	for {
		tok := p.PeekToken()
		if tok == RBRACE {
			break
		}
		if tok == eof {
			if err = p.lexer.lastError; err == nil {
				err = p.Errorf("unexpected eof, expected '}'")
			}
			return
		}
		if tok == SEMICOLON {
			p.Advance()
			continue
		}
		var stmt decl.Stmt
		if stmt, err = p.ParseStmt(); err != nil {
			return
		}
		stmts = append(stmts, stmt)
	}
	_, closer, err := p.AdvanceIf(RBRACE)
	if err != nil {
		return
	}
	return stmts, closer.end, nil
}

// checkBody rejects statements that can never have an effect.
func (p *LLParser) checkBody(stmts []decl.Stmt) (err error) {
	decl.WalkStmts(stmts, func(s decl.Stmt) {
		if err != nil {
			return
		}
		if es, ok := s.(*decl.ExprStmt); ok {
			err = p.violation(es.Pos(), "expression statement has no effect: %s", es.Expression)
		}
	})
	return err
}

// --- Statement Parsing ---

func (p *LLParser) ParseStmt() (out decl.Stmt, err error) {
	switch p.PeekToken() {
	case RETURN:
		return p.ParseReturnStmt()
	case LET:
		return p.ParseLetStmt()
	case FOR:
		return p.ParseForStmt()
	case DEF, TAG:
		return nil, p.Errorf("defs may only appear directly inside a func body")
	}
	return p.ParseAssignOrExprStmt()
}

func (p *LLParser) ParseReturnStmt() (decl.Stmt, error) {
	_, start, err := p.AdvanceIf(RETURN)
	if err != nil {
		return nil, err
	}
	value, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	_, end, err := p.AdvanceIf(SEMICOLON)
	if err != nil {
		return nil, err
	}
	return &decl.ReturnStmt{NodeInfo: decl.NewNodeInfo(start.start, end.end), ReturnValue: value}, nil
}

func (p *LLParser) ParseLetStmt() (decl.Stmt, error) {
	_, start, err := p.AdvanceIf(LET)
	if err != nil {
		return nil, err
	}
	variable, err := p.ParseIdentifier()
	if err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	_, end, err := p.AdvanceIf(SEMICOLON)
	if err != nil {
		return nil, err
	}
	return &decl.LetStmt{NodeInfo: decl.NewNodeInfo(start.start, end.end), Variable: variable, Value: value}, nil
}

// ParseForStmt parses `for r in seq(n) { ... }` or `for r in seq(lo, hi) { ... }`
func (p *LLParser) ParseForStmt() (decl.Stmt, error) {
	_, start, err := p.AdvanceIf(FOR)
	if err != nil {
		return nil, err
	}
	out := &decl.ForStmt{}
	if out.Var, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(IN); err != nil {
		return nil, err
	}
	if _, err = p.expectWord("seq"); err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(LPAREN); err != nil {
		return nil, err
	}
	if out.Lo, err = p.ParseExpression(); err != nil {
		return nil, err
	}
	if p.PeekToken() == COMMA {
		p.Advance()
		if out.Hi, err = p.ParseExpression(); err != nil {
			return nil, err
		}
	}
	if _, _, err = p.AdvanceIf(RPAREN); err != nil {
		return nil, err
	}
	body, end, err := p.ParseBlock()
	if err != nil {
		return nil, err
	}
	out.Body = body
	out.NodeInfo = decl.NewNodeInfo(start.start, end)
	return out, nil
}

// ParseAssignOrExprStmt parses `target op= value;` or a bare expression.
// Only indexed targets are assignable.
func (p *LLParser) ParseAssignOrExprStmt() (decl.Stmt, error) {
	target, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	tok := p.PeekToken()
	if !isAssignOp(tok) {
		_, end, err := p.AdvanceIf(SEMICOLON)
		if err != nil {
			return nil, err
		}
		return &decl.ExprStmt{NodeInfo: decl.NewNodeInfo(target.Pos(), end.end), Expression: target}, nil
	}
	opTok := p.peekedTokenValue
	p.Advance()

	indexed, ok := target.(*decl.IndexExpr)
	if !ok {
		if _, isCall := target.(*decl.CallExpr); isCall {
			return nil, p.violation(target.Pos(), "cannot assign to call %s, use %s[...] to store into a buffer", target, decl.ChainString(target.(*decl.CallExpr).Function))
		}
		return nil, p.violation(target.Pos(), "invalid assignment target: %s", target)
	}
	value, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	_, end, err := p.AdvanceIf(SEMICOLON)
	if err != nil {
		return nil, err
	}
	return &decl.AssignStmt{
		NodeInfo: decl.NewNodeInfo(target.Pos(), end.end),
		Target:   indexed,
		Operator: opTok.sval,
		Value:    value,
	}, nil
}

// --- Pipes and instances ---

// ParsePipeDecl parses
// `pipe NAME(p: T, ...) -> out, ... { func ...; instance ...; return out, ...; }`
func (p *LLParser) ParsePipeDecl() (out *decl.PipeDecl, err error) {
	_, start, err := p.AdvanceIf(PIPE)
	if err != nil {
		return nil, err
	}
	out = &decl.PipeDecl{}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(LPAREN); err != nil {
		return nil, err
	}
	for p.PeekToken() != RPAREN {
		param := &decl.PipeParam{}
		if param.NameNode, err = p.ParseIdentifier(); err != nil {
			return nil, err
		}
		if _, _, err = p.AdvanceIf(COLON); err != nil {
			return nil, err
		}
		if param.TypeDecl, err = p.ParseTypeDecl(); err != nil {
			return nil, err
		}
		param.NodeInfo = decl.NewNodeInfo(param.NameNode.Pos(), param.TypeDecl.End())
		if p.PeekToken() == ASSIGN {
			p.Advance()
			if param.Default, err = p.ParseExpression(); err != nil {
				return nil, err
			}
			param.NodeInfo.StopPos = param.Default.End()
		}
		if out.Param(param.Name()) != nil {
			return nil, p.violation(param.Pos(), "duplicate pipe parameter '%s'", param.Name())
		}
		out.Params = append(out.Params, param)
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
	}
	if _, _, err = p.AdvanceIf(RPAREN); err != nil {
		return nil, err
	}
	if p.PeekToken() == ARROW {
		p.Advance()
		if out.Outputs, err = p.ParseIdentList(); err != nil {
			return nil, err
		}
	}
	if _, _, err = p.AdvanceIf(LBRACE); err != nil {
		return nil, err
	}
	for {
		tok := p.PeekToken()
		if tok == RBRACE {
			break
		}
		switch tok {
		case eof:
			if err := p.lexer.lastError; err != nil {
				return nil, err
			}
			return nil, p.Errorf("unexpected eof reading pipe: %s", out.Name())
		case SEMICOLON:
			p.Advance()
		case FUNC:
			fn, err := p.ParseFuncDecl()
			if err != nil {
				return nil, err
			}
			out.Funcs = append(out.Funcs, fn)
		case INSTANCE:
			inst, err := p.ParseInstanceDecl()
			if err != nil {
				return nil, err
			}
			out.Instances = append(out.Instances, inst)
		case RETURN:
			retPos := p.lexer.Pos()
			p.Advance()
			if len(out.Outputs) > 0 {
				return nil, p.violation(retPos, "pipe '%s' declares its outputs twice", out.Name())
			}
			if out.Outputs, err = p.ParseIdentList(); err != nil {
				return nil, err
			}
			if _, _, err = p.AdvanceIf(SEMICOLON); err != nil {
				return nil, err
			}
		default:
			return nil, p.Errorf("expected func, instance or return in pipe '%s', found: %s (%s)", out.Name(), TokenString(tok), p.lexer.Text())
		}
	}
	_, end, err := p.AdvanceIf(RBRACE)
	if err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NewNodeInfo(start.start, end.end)
	if len(out.Outputs) == 0 {
		return nil, p.violation(out.Pos(), "pipe '%s' declares no outputs", out.Name())
	}
	return out, nil
}

// ParseInstanceDecl parses `instance NAME = PIPE(arg, name = arg, ...);`
func (p *LLParser) ParseInstanceDecl() (out *decl.InstanceDecl, err error) {
	_, start, err := p.AdvanceIf(INSTANCE)
	if err != nil {
		return nil, err
	}
	out = &decl.InstanceDecl{}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(ASSIGN); err != nil {
		return nil, err
	}
	if out.PipeNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(LPAREN); err != nil {
		return nil, err
	}
	for p.PeekToken() != RPAREN {
		value, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		arg := &decl.InstanceArg{NodeInfo: decl.NewNodeInfo(value.Pos(), value.End()), Value: value}
		if p.PeekToken() == ASSIGN {
			name, ok := value.(*decl.IdentifierExpr)
			if !ok {
				return nil, p.violation(value.Pos(), "named argument must be an identifier, found: %s", value)
			}
			p.Advance()
			arg.NameNode = name
			if arg.Value, err = p.ParseExpression(); err != nil {
				return nil, err
			}
			arg.NodeInfo.StopPos = arg.Value.End()
		}
		out.Args = append(out.Args, arg)
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
	}
	if _, _, err = p.AdvanceIf(RPAREN); err != nil {
		return nil, err
	}
	_, end, err := p.AdvanceIf(SEMICOLON)
	if err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NewNodeInfo(start.start, end.end)
	return out, nil
}

// ParseOutputDecl parses `output NAME [lo, hi] ... ;`
func (p *LLParser) ParseOutputDecl() (out *decl.OutputDecl, err error) {
	_, start, err := p.AdvanceIf(OUTPUT)
	if err != nil {
		return nil, err
	}
	out = &decl.OutputDecl{}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	for p.PeekToken() == LBRACKET {
		pair, err := p.parseBoundPair()
		if err != nil {
			return nil, err
		}
		out.Bounds = append(out.Bounds, pair)
	}
	_, end, err := p.AdvanceIf(SEMICOLON)
	if err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NewNodeInfo(start.start, end.end)
	return out, nil
}

// ParseScheduleDecl parses `schedule { subject.directive(args); ... }`
func (p *LLParser) ParseScheduleDecl() (out *decl.ScheduleDecl, err error) {
	_, start, err := p.AdvanceIf(SCHEDULE)
	if err != nil {
		return nil, err
	}
	if _, _, err = p.AdvanceIf(LBRACE); err != nil {
		return nil, err
	}
	out = &decl.ScheduleDecl{}
	for p.PeekToken() != RBRACE {
		if p.PeekToken() == SEMICOLON {
			p.Advance()
			continue
		}
		if p.PeekToken() == eof {
			if err := p.lexer.lastError; err != nil {
				return nil, err
			}
			return nil, p.Errorf("unexpected eof reading schedule")
		}
		expr, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		call, ok := expr.(*decl.CallExpr)
		if !ok {
			return nil, p.violation(expr.Pos(), "schedule entries must be directive calls, found: %s", expr)
		}
		if _, ok := call.Function.(*decl.MemberAccessExpr); !ok {
			return nil, p.violation(expr.Pos(), "directive %s has no subject", expr)
		}
		if _, _, err = p.AdvanceIf(SEMICOLON); err != nil {
			return nil, err
		}
		out.Directives = append(out.Directives, call)
	}
	_, end, err := p.AdvanceIf(RBRACE)
	if err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NewNodeInfo(start.start, end.end)
	return out, nil
}

// --- Expressions ---

// ParseArgList parses Expr (',' Expr)*
func (p *LLParser) ParseArgList() (args []decl.Expr, err error) {
	for {
		arg, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.PeekToken() != COMMA {
			return args, nil
		}
		p.Advance()
	}
}

// ParseExpression is the entry point for parsing any expression.
func (p *LLParser) ParseExpression() (decl.Expr, error) {
	return p.ParseOrExpr()
}

// Generic helper for parsing left-associative binary expressions for a given precedence level.
func (p *LLParser) parseBinaryExpr(parseOperand func() (decl.Expr, error), operators ...int) (decl.Expr, error) {
	left, err := parseOperand()
	if err != nil {
		return nil, err
	}
	for {
		opToken := p.PeekToken()
		matched := false
		for _, op := range operators {
			if op == opToken {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		opTokenVal := p.peekedTokenValue
		p.Advance()

		right, err := parseOperand()
		if err != nil {
			return nil, err
		}
		left = &decl.BinaryExpr{
			ExprBase: decl.ExprBase{NodeInfo: decl.NewNodeInfo(left.Pos(), right.End())},
			Left:     left,
			Operator: opTokenVal.sval,
			Right:    right,
		}
	}
}

// OrExpr: AndExpr ( OR AndExpr )*
func (p *LLParser) ParseOrExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseAndExpr, OR)
}

// AndExpr: EqExpr ( AND EqExpr )*
func (p *LLParser) ParseAndExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseEqExpr, AND)
}

func (p *LLParser) ParseEqExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseCmpExpr, EQ, NEQ)
}

func (p *LLParser) ParseCmpExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseAddExpr, LT, LTE, GT, GTE)
}

// AddExpr: MulExpr ( (PLUS|MINUS) MulExpr )*
func (p *LLParser) ParseAddExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseMulExpr, PLUS, MINUS)
}

// MulExpr: UnaryExpr ( (MUL|DIV|MOD) UnaryExpr )*
func (p *LLParser) ParseMulExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseUnaryExpr, MUL, DIV, MOD)
}

// UnaryExpr: (NOT | MINUS) UnaryExpr | PrimaryExpr
func (p *LLParser) ParseUnaryExpr() (decl.Expr, error) {
	peeked := p.PeekToken()
	if peeked == NOT || peeked == MINUS {
		opTokenVal := p.peekedTokenValue
		p.Advance()
		operand, err := p.ParseUnaryExpr()
		if err != nil {
			return nil, err
		}
		// Fold negative literals so `-1` stays a literal
		if lit, ok := operand.(*decl.LiteralExpr); ok && peeked == MINUS {
			switch v := lit.Value.(type) {
			case int64:
				lit.Value = -v
				lit.NodeInfo.StartPos = opTokenVal.start
				return lit, nil
			case float64:
				lit.Value = -v
				lit.NodeInfo.StartPos = opTokenVal.start
				return lit, nil
			}
		}
		return &decl.UnaryExpr{
			ExprBase: decl.ExprBase{NodeInfo: decl.NewNodeInfo(opTokenVal.start, operand.End())},
			Operator: opTokenVal.sval,
			Right:    operand,
		}, nil
	}
	return p.ParsePrimaryExpr()
}

// PrimaryExpr: Literal | IDENTIFIER | LPAREN Expression RPAREN | (PrimaryExpr PostfixOps)
// PostfixOps: DOT IDENTIFIER | LPAREN ArgListOpt RPAREN | LBRACKET ArgList RBRACKET
func (p *LLParser) ParsePrimaryExpr() (expr decl.Expr, err error) {
	peeked := p.PeekToken()
	switch peeked {
	case INT_LITERAL, FLOAT_LITERAL, STRING_LITERAL, BOOL_LITERAL:
		expr = p.peekedTokenValue.expr
		p.Advance()
	case IDENTIFIER:
		if expr, err = p.ParseIdentifier(); err != nil {
			return nil, err
		}
	case LPAREN:
		p.Advance()
		if expr, err = p.ParseExpression(); err != nil {
			return nil, err
		}
		if _, _, err = p.AdvanceIf(RPAREN); err != nil {
			return nil, err
		}
	default:
		if err := p.lexer.lastError; err != nil {
			return nil, err
		}
		return nil, p.Errorf("unexpected token at start of expression: %s (%s)", TokenString(peeked), p.lexer.Text())
	}

	for {
		switch p.PeekToken() {
		case DOT:
			p.Advance()
			member, err := p.ParseIdentifier()
			if err != nil {
				return nil, err
			}
			expr = &decl.MemberAccessExpr{
				ExprBase: decl.ExprBase{NodeInfo: decl.NewNodeInfo(expr.Pos(), member.End())},
				Receiver: expr,
				Member:   member,
			}
		case LPAREN:
			p.Advance()
			var args []decl.Expr
			if p.PeekToken() != RPAREN {
				if args, err = p.ParseArgList(); err != nil {
					return nil, err
				}
			}
			_, closer, err := p.AdvanceIf(RPAREN)
			if err != nil {
				return nil, err
			}
			expr = &decl.CallExpr{
				ExprBase: decl.ExprBase{NodeInfo: decl.NewNodeInfo(expr.Pos(), closer.end)},
				Function: expr,
				Args:     args,
			}
		case LBRACKET:
			p.Advance()
			indices, err := p.ParseArgList()
			if err != nil {
				return nil, err
			}
			_, closer, err := p.AdvanceIf(RBRACKET)
			if err != nil {
				return nil, err
			}
			expr = &decl.IndexExpr{
				ExprBase: decl.ExprBase{NodeInfo: decl.NewNodeInfo(expr.Pos(), closer.end)},
				Receiver: expr,
				Indices:  indices,
			}
		default:
			return expr, nil
		}
	}
}
