package decl

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr represents an expression node.
type Expr interface {
	Node
	exprNode() // Marker method for expressions
}

type ExprBase struct {
	NodeInfo
}

func (e *ExprBase) exprNode() {}

// IdentifierExpr is a bare name.
type IdentifierExpr struct {
	ExprBase
	Name string
}

func NewIdent(name string, start, stop Location) *IdentifierExpr {
	return &IdentifierExpr{ExprBase: ExprBase{NewNodeInfo(start, stop)}, Name: name}
}

func (i *IdentifierExpr) String() string             { return i.Name }
func (i *IdentifierExpr) PrettyPrint(cp CodePrinter) { cp.Print(i.Name) }

type LiteralKind int

const (
	IntLiteral LiteralKind = iota
	FloatLiteral
	StringLiteral
	BoolLiteral
)

// LiteralExpr represents literal values. Value holds an int64, float64,
// string or bool depending on Kind.
type LiteralExpr struct {
	ExprBase
	Kind  LiteralKind
	Value any
}

func NewIntLiteral(v int64) *LiteralExpr { return &LiteralExpr{Kind: IntLiteral, Value: v} }

func (l *LiteralExpr) String() string {
	switch l.Kind {
	case StringLiteral:
		return strconv.Quote(l.Value.(string))
	case FloatLiteral:
		return strconv.FormatFloat(l.Value.(float64), 'g', -1, 64)
	}
	return fmt.Sprintf("%v", l.Value)
}
func (l *LiteralExpr) PrettyPrint(cp CodePrinter) { cp.Print(l.String()) }

// BinaryExpr represents `left operator right`
type BinaryExpr struct {
	ExprBase
	Left     Expr
	Operator string // "||", "&&", "==", "!=", "<", "<=", ">", ">=", "+", "-", "*", "/", "%"
	Right    Expr
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Operator, b.Right)
}
func (b *BinaryExpr) PrettyPrint(cp CodePrinter) { cp.Print(b.String()) }

// UnaryExpr represents `operator operand`
type UnaryExpr struct {
	ExprBase
	Operator string // "!", "-"
	Right    Expr
}

func (u *UnaryExpr) String() string             { return fmt.Sprintf("(%s%s)", u.Operator, u.Right) }
func (u *UnaryExpr) PrettyPrint(cp CodePrinter) { cp.Print(u.String()) }

// CallExpr is `f(args)`. A call is never assignable.
type CallExpr struct {
	ExprBase
	Function Expr
	Args     []Expr
}

func (c *CallExpr) String() string {
	return fmt.Sprintf("%s(%s)", c.Function, joinExprs(c.Args))
}
func (c *CallExpr) PrettyPrint(cp CodePrinter) { cp.Print(c.String()) }

// IndexExpr is `buf[i, j]`, the only assignable form.
type IndexExpr struct {
	ExprBase
	Receiver Expr
	Indices  []Expr
}

func (i *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", i.Receiver, joinExprs(i.Indices))
}
func (i *IndexExpr) PrettyPrint(cp CodePrinter) { cp.Print(i.String()) }

// MemberAccessExpr is `receiver.member`, used for reference chains and
// buffer extents.
type MemberAccessExpr struct {
	ExprBase
	Receiver Expr
	Member   *IdentifierExpr
}

func (m *MemberAccessExpr) String() string             { return fmt.Sprintf("%s.%s", m.Receiver, m.Member.Name) }
func (m *MemberAccessExpr) PrettyPrint(cp CodePrinter) { cp.Print(m.String()) }

// ChainNames flattens `a.b.c` into ["a", "b", "c"]. ok is false when the
// expression is not made only of identifiers and member accesses.
func ChainNames(e Expr) (names []string, ok bool) {
	switch n := e.(type) {
	case *IdentifierExpr:
		return []string{n.Name}, true
	case *MemberAccessExpr:
		head, ok := ChainNames(n.Receiver)
		if !ok {
			return nil, false
		}
		return append(head, n.Member.Name), true
	}
	return nil, false
}

// ChainString renders a chain expression as dotted text.
func ChainString(e Expr) string {
	names, ok := ChainNames(e)
	if !ok {
		return e.String()
	}
	return strings.Join(names, ".")
}

// WalkExpr visits e and all its sub expressions in pre-order.
func WalkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *BinaryExpr:
		WalkExpr(n.Left, visit)
		WalkExpr(n.Right, visit)
	case *UnaryExpr:
		WalkExpr(n.Right, visit)
	case *CallExpr:
		WalkExpr(n.Function, visit)
		for _, a := range n.Args {
			WalkExpr(a, visit)
		}
	case *IndexExpr:
		WalkExpr(n.Receiver, visit)
		for _, a := range n.Indices {
			WalkExpr(a, visit)
		}
	case *MemberAccessExpr:
		WalkExpr(n.Receiver, visit)
	}
}

// FreeIdentifiers returns the distinct identifier names used in e, in order of
// first use. Member names of member accesses are not included.
func FreeIdentifiers(e Expr) []string {
	seen := map[string]bool{}
	var out []string
	WalkExpr(e, func(x Expr) {
		if id, ok := x.(*IdentifierExpr); ok && !seen[id.Name] {
			seen[id.Name] = true
			out = append(out, id.Name)
		}
	})
	return out
}
