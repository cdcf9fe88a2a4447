package decl

import (
	"fmt"
)

// --- Statements ---

// Stmt represents a statement inside a func or def body.
type Stmt interface {
	Node
	stmtNode() // Marker method for statements
}

// ReturnStmt represents `return e;`
type ReturnStmt struct {
	NodeInfo
	ReturnValue Expr
}

func (r *ReturnStmt) stmtNode()                  {}
func (r *ReturnStmt) String() string             { return fmt.Sprintf("return %s;", r.ReturnValue) }
func (r *ReturnStmt) PrettyPrint(cp CodePrinter) { cp.Print(r.String()) }

// LetStmt binds a scalar intermediate: `let t = e;`
type LetStmt struct {
	NodeInfo
	Variable *IdentifierExpr
	Value    Expr
}

func (l *LetStmt) stmtNode()                  {}
func (l *LetStmt) String() string             { return fmt.Sprintf("let %s = %s;", l.Variable.Name, l.Value) }
func (l *LetStmt) PrettyPrint(cp CodePrinter) { cp.Print(l.String()) }

// ForStmt is a reduction loop header: `for r in seq(lo, hi) { ... }`.
// Hi is nil for the single argument form `seq(n)`.
type ForStmt struct {
	NodeInfo
	Var  *IdentifierExpr
	Lo   Expr
	Hi   Expr
	Body []Stmt
}

func (f *ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	if f.Hi == nil {
		return fmt.Sprintf("for %s in seq(%s)", f.Var.Name, f.Lo)
	}
	return fmt.Sprintf("for %s in seq(%s, %s)", f.Var.Name, f.Lo, f.Hi)
}

func (f *ForStmt) PrettyPrint(cp CodePrinter) {
	cp.Println(f.String() + " {")
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, s := range f.Body {
			s.PrettyPrint(cp)
			cp.Println("")
		}
	})
	cp.Print("}")
}

// AssignStmt is an indexed mutation `buf[i] op= e`.
type AssignStmt struct {
	NodeInfo
	Target   *IndexExpr
	Operator string // "=", "+=", "-=", "*=", "/="
	Value    Expr
}

func (a *AssignStmt) stmtNode()                  {}
func (a *AssignStmt) String() string             { return fmt.Sprintf("%s %s %s;", a.Target, a.Operator, a.Value) }
func (a *AssignStmt) PrettyPrint(cp CodePrinter) { cp.Print(a.String()) }

// ExprStmt is an expression used as a statement. The parser produces it only
// so that the extractor can report where it appeared.
type ExprStmt struct {
	NodeInfo
	Expression Expr
}

func (e *ExprStmt) stmtNode()                  {}
func (e *ExprStmt) String() string             { return e.Expression.String() + ";" }
func (e *ExprStmt) PrettyPrint(cp CodePrinter) { cp.Print(e.String()) }

// WalkStmts visits every statement, descending into loop bodies.
func WalkStmts(stmts []Stmt, visit func(Stmt)) {
	for _, s := range stmts {
		visit(s)
		if f, ok := s.(*ForStmt); ok {
			WalkStmts(f.Body, visit)
		}
	}
}
