package ir

import (
	"fmt"
	"strconv"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// Expr is a lowered expression. Leaves refer to dims, reduction vars,
// params, input buffers and pipelines by name.
type Expr interface {
	String() string
	irExpr()
}

type Const struct {
	Int     int64
	Float   float64
	IsFloat bool
}

func IntConst(v int64) *Const { return &Const{Int: v} }

func (c *Const) irExpr() {}
func (c *Const) String() string {
	if c.IsFloat {
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	}
	return strconv.FormatInt(c.Int, 10)
}

// Undef is an undefined value of a type, used as an initial value that
// updates overwrite.
type Undef struct {
	Type ScalarType
}

func (u *Undef) irExpr()        {}
func (u *Undef) String() string { return fmt.Sprintf("undef(%s)", u.Type) }

// VarRef reads a pure dimension of the enclosing pipeline.
type VarRef struct {
	Var *DimensionVar
}

func (v *VarRef) irExpr()        {}
func (v *VarRef) String() string { return v.Var.Name }

// RVarRef reads a reduction variable of the enclosing update.
type RVarRef struct {
	RVar *RVar
}

func (r *RVarRef) irExpr()        {}
func (r *RVarRef) String() string { return r.RVar.Name }

// ParamRef reads a scalar parameter.
type ParamRef struct {
	Name string
}

func (p *ParamRef) irExpr()        {}
func (p *ParamRef) String() string { return p.Name }

// ExtentRef is the extent of one dimension of an input buffer.
type ExtentRef struct {
	Input string
	Dim   int
}

func (e *ExtentRef) irExpr()        {}
func (e *ExtentRef) String() string { return fmt.Sprintf("%s.dim(%d)", e.Input, e.Dim) }

// Call reads another pipeline at a point.
type Call struct {
	Pipeline string
	Args     []Expr
}

func (c *Call) irExpr()        {}
func (c *Call) String() string { return fmt.Sprintf("%s(%s)", c.Pipeline, joinExprs(c.Args)) }

// InputCall reads an input buffer at a point.
type InputCall struct {
	Input string
	Args  []Expr
}

func (c *InputCall) irExpr()        {}
func (c *InputCall) String() string { return fmt.Sprintf("%s(%s)", c.Input, joinExprs(c.Args)) }

// Load reads the result buffer inside an update.
type Load struct {
	Buffer  string
	Indices []Expr
}

func (l *Load) irExpr()        {}
func (l *Load) String() string { return fmt.Sprintf("%s[%s]", l.Buffer, joinExprs(l.Indices)) }

type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (b *Binary) irExpr()        {}
func (b *Binary) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }

type Unary struct {
	Op      string
	Operand Expr
}

func (u *Unary) irExpr()        {}
func (u *Unary) String() string { return fmt.Sprintf("(%s%s)", u.Op, u.Operand) }

// Builtin is one of min, max, clamp, abs and select.
type Builtin struct {
	Name string
	Args []Expr
}

func (b *Builtin) irExpr()        {}
func (b *Builtin) String() string { return fmt.Sprintf("%s(%s)", b.Name, joinExprs(b.Args)) }

// BuiltinArity lists the builtins and the number of arguments each takes.
var BuiltinArity = map[string]int{
	"min":    2,
	"max":    2,
	"clamp":  3,
	"abs":    1,
	"select": 3,
}

func joinExprs(exprs []Expr) string {
	return strings.Join(gfn.Map(exprs, func(e Expr) string { return e.String() }), ", ")
}

// Walk visits e and its sub expressions in pre-order.
func Walk(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	var children []Expr
	switch n := e.(type) {
	case *Call:
		children = n.Args
	case *InputCall:
		children = n.Args
	case *Load:
		children = n.Indices
	case *Binary:
		children = []Expr{n.Left, n.Right}
	case *Unary:
		children = []Expr{n.Operand}
	case *Builtin:
		children = n.Args
	}
	for _, c := range children {
		Walk(c, visit)
	}
}

// Callees returns the distinct pipelines called from e, in order of first call.
func Callees(e Expr) []string {
	seen := map[string]bool{}
	var out []string
	Walk(e, func(x Expr) {
		if c, ok := x.(*Call); ok && !seen[c.Pipeline] {
			seen[c.Pipeline] = true
			out = append(out, c.Pipeline)
		}
	})
	return out
}
