package lower

import (
	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
)

type mode int

const (
	modeValue  mode = iota
	modeBounds      // loop bounds: constants, params, extents, outer rvars
	modeConst       // param defaults, shapes, ranges and output bounds
)

// exprCtx lowers expressions of one stage, or of a constant context.
type exprCtx struct {
	l     *lowerer
	scope *scope
	env   *decl.Env[ir.Expr] // dims, reduction vars and lets
	def   string
	mode  mode

	result  string // result buffer of the update being lowered
	ndims   int
	loopVar string
}

func (l *lowerer) constExpr(e decl.Expr, sc *scope, def string) (ir.Expr, error) {
	c := &exprCtx{l: l, scope: sc, env: decl.NewEnv[ir.Expr](nil), def: def, mode: modeConst}
	return c.lower(e)
}

func (c *exprCtx) lowerAll(exprs []decl.Expr) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(exprs))
	for i, e := range exprs {
		v, err := c.lower(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *exprCtx) lower(e decl.Expr) (ir.Expr, error) {
	switch n := e.(type) {
	case *decl.LiteralExpr:
		return c.literal(n)
	case *decl.IdentifierExpr:
		return c.ident(n)
	case *decl.BinaryExpr:
		left, err := c.lower(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.lower(n.Right)
		if err != nil {
			return nil, err
		}
		return fold(n.Operator, left, right), nil
	case *decl.UnaryExpr:
		operand, err := c.lower(n.Right)
		if err != nil {
			return nil, err
		}
		if k, ok := operand.(*ir.Const); ok && n.Operator == "-" && !k.IsFloat {
			return ir.IntConst(-k.Int), nil
		}
		return &ir.Unary{Op: n.Operator, Operand: operand}, nil
	case *decl.CallExpr:
		return c.call(n)
	case *decl.IndexExpr:
		return c.index(n)
	case *decl.MemberAccessExpr:
		return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "'%s' is not a value, did you mean %s()?", n, n)
	}
	return nil, decl.Errorf(decl.SyntaxViolation, e.Pos(), c.def, "unsupported expression: %s", e)
}

func (c *exprCtx) literal(n *decl.LiteralExpr) (ir.Expr, error) {
	switch n.Kind {
	case decl.IntLiteral:
		return ir.IntConst(n.Value.(int64)), nil
	case decl.FloatLiteral:
		return &ir.Const{Float: n.Value.(float64), IsFloat: true}, nil
	case decl.BoolLiteral:
		if n.Value.(bool) {
			return ir.IntConst(1), nil
		}
		return ir.IntConst(0), nil
	}
	return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "strings are only allowed in imports")
}

func (c *exprCtx) ident(n *decl.IdentifierExpr) (ir.Expr, error) {
	if v, ok := c.env.Get(n.Name); ok {
		return v, nil
	}
	if p, ok := c.scope.lookupParam(n.Name); ok {
		return p, nil
	}
	if c.mode == modeBounds {
		return nil, c.unbounded(n.Pos(), n.Name)
	}
	if n.Name == c.result && c.result != "" {
		return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "result buffer '%s' must be indexed", n.Name)
	}
	if c.scope.knows(n.Name) {
		return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "'%s' is a buffer, read it with %s(...)", n.Name, n.Name)
	}
	return nil, decl.Errorf(decl.UnknownReferenceError, n.Pos(), c.def, "unknown identifier '%s'", n.Name)
}

func (c *exprCtx) unbounded(pos decl.Location, what string) error {
	return decl.Errorf(decl.UnboundedDomainError, pos, c.def,
		"bound of reduction variable '%s' depends on '%s', only constants, params, input extents and outer reduction variables are allowed", c.loopVar, what)
}

// reads checks that the current context may read a buffer or pipeline.
func (c *exprCtx) reads(pos decl.Location, name string) error {
	switch c.mode {
	case modeBounds:
		return c.unbounded(pos, name)
	case modeConst:
		return decl.Errorf(decl.SyntaxViolation, pos, c.def, "cannot read '%s' in a constant expression", name)
	}
	return nil
}

func (c *exprCtx) call(n *decl.CallExpr) (ir.Expr, error) {
	switch fn := n.Function.(type) {
	case *decl.IdentifierExpr:
		return c.callName(n, fn)
	case *decl.MemberAccessExpr:
		return c.callMember(n, fn)
	}
	return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "cannot call %s", n.Function)
}

func (c *exprCtx) callName(n *decl.CallExpr, fn *decl.IdentifierExpr) (ir.Expr, error) {
	name := fn.Name
	if name == c.result && c.result != "" {
		return c.load(n.Pos(), name, n.Args)
	}
	if _, ok := c.env.Get(name); ok {
		return nil, decl.Errorf(decl.SyntaxViolation, fn.Pos(), c.def, "'%s' is not callable", name)
	}
	if pipeline, ok := c.scope.lookupFunc(name); ok {
		return c.pipelineCall(n, pipeline)
	}
	if in, ok := c.scope.lookupInput(name); ok {
		if err := c.reads(n.Pos(), name); err != nil {
			return nil, err
		}
		input := c.l.prog.Inputs[in]
		if len(n.Args) != input.NDims {
			return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "input '%s' has %d dims, called with %d", name, input.NDims, len(n.Args))
		}
		args, err := c.lowerAll(n.Args)
		if err != nil {
			return nil, err
		}
		return &ir.InputCall{Input: in, Args: args}, nil
	}
	if inst, ok := c.scope.lookupInstance(name); ok {
		pipeline, err := singleOutput(inst, fn.Pos(), c.def)
		if err != nil {
			return nil, err
		}
		return c.pipelineCall(n, pipeline)
	}
	if arity, ok := ir.BuiltinArity[name]; ok {
		if len(n.Args) != arity {
			return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "%s takes %d arguments, found %d", name, arity, len(n.Args))
		}
		args, err := c.lowerAll(n.Args)
		if err != nil {
			return nil, err
		}
		return &ir.Builtin{Name: name, Args: args}, nil
	}
	if name == "undef" {
		return c.undef(n)
	}
	if c.mode == modeBounds {
		return nil, c.unbounded(fn.Pos(), name)
	}
	return nil, decl.Errorf(decl.UnknownReferenceError, fn.Pos(), c.def, "unknown func '%s'", name)
}

func (c *exprCtx) pipelineCall(n *decl.CallExpr, pipeline string) (ir.Expr, error) {
	if err := c.reads(n.Pos(), pipeline); err != nil {
		return nil, err
	}
	args, err := c.lowerAll(n.Args)
	if err != nil {
		return nil, err
	}
	return &ir.Call{Pipeline: pipeline, Args: args}, nil
}

// callMember handles extents like inp.width() and calls into instance
// outputs like blur.out(x, y).
func (c *exprCtx) callMember(n *decl.CallExpr, fn *decl.MemberAccessExpr) (ir.Expr, error) {
	names, ok := decl.ChainNames(fn)
	if !ok || len(names) != 2 {
		return nil, decl.Errorf(decl.UnknownReferenceError, fn.Pos(), c.def, "unknown reference '%s'", fn)
	}
	if in, ok := c.scope.lookupInput(names[0]); ok {
		return c.extent(n, in, names[1])
	}
	if inst, ok := c.scope.lookupInstance(names[0]); ok {
		pipeline, found := inst.Outputs[names[1]]
		if !found {
			return nil, decl.Errorf(decl.UnknownReferenceError, fn.Member.Pos(), c.def, "instance '%s' has no output '%s'", names[0], names[1])
		}
		return c.pipelineCall(n, pipeline)
	}
	if c.mode == modeBounds {
		return nil, c.unbounded(fn.Pos(), fn.String())
	}
	return nil, decl.Errorf(decl.UnknownReferenceError, fn.Pos(), c.def, "unknown reference '%s'", fn)
}

func (c *exprCtx) extent(n *decl.CallExpr, in, member string) (ir.Expr, error) {
	input := c.l.prog.Inputs[in]
	dim := -1
	switch member {
	case "width":
		dim = 0
	case "height":
		dim = 1
	case "dim":
		if len(n.Args) != 1 {
			return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "%s.dim takes one constant argument", in)
		}
		lit, ok := n.Args[0].(*decl.LiteralExpr)
		if !ok || lit.Kind != decl.IntLiteral {
			return nil, decl.Errorf(decl.SyntaxViolation, n.Args[0].Pos(), c.def, "%s.dim takes one constant argument", in)
		}
		dim = int(lit.Value.(int64))
	default:
		return nil, decl.Errorf(decl.UnknownReferenceError, n.Pos(), c.def, "inputs have width(), height() and dim(k), found '%s'", member)
	}
	if member != "dim" && len(n.Args) != 0 {
		return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "%s.%s takes no arguments", in, member)
	}
	if dim < 0 || dim >= input.NDims {
		return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "input '%s' has %d dims, no extent %d", in, input.NDims, dim)
	}
	return &ir.ExtentRef{Input: in, Dim: dim}, nil
}

func (c *exprCtx) index(n *decl.IndexExpr) (ir.Expr, error) {
	id, ok := n.Receiver.(*decl.IdentifierExpr)
	if !ok || id.Name != c.result || c.result == "" {
		if c.mode == modeBounds {
			return nil, c.unbounded(n.Pos(), n.Receiver.String())
		}
		return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "only the result buffer is indexed with [], call %s(...) instead", n.Receiver)
	}
	return c.load(n.Pos(), id.Name, n.Indices)
}

func (c *exprCtx) load(pos decl.Location, buffer string, indices []decl.Expr) (ir.Expr, error) {
	if err := c.reads(pos, buffer); err != nil {
		return nil, err
	}
	if len(indices) != c.ndims {
		return nil, decl.Errorf(decl.SyntaxViolation, pos, c.def, "'%s' has %d dims, read with %d indices", buffer, c.ndims, len(indices))
	}
	args, err := c.lowerAll(indices)
	if err != nil {
		return nil, err
	}
	return &ir.Load{Buffer: buffer, Indices: args}, nil
}

// undef(T) takes a scalar type written as an expression, e.g. undef(Float(32)).
func (c *exprCtx) undef(n *decl.CallExpr) (ir.Expr, error) {
	if len(n.Args) != 1 {
		return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "undef takes a single type")
	}
	td, ok := typeFromExpr(n.Args[0])
	if !ok {
		return nil, decl.Errorf(decl.SyntaxViolation, n.Args[0].Pos(), c.def, "undef takes a scalar type, found %s", n.Args[0])
	}
	typ, err := ir.ScalarTypeOf(td)
	if err != nil {
		return nil, withDef(err, c.def)
	}
	return &ir.Undef{Type: typ}, nil
}

func typeFromExpr(e decl.Expr) (*decl.TypeDecl, bool) {
	switch n := e.(type) {
	case *decl.IdentifierExpr:
		return &decl.TypeDecl{NodeInfo: n.NodeInfo, Name: n.Name}, true
	case *decl.LiteralExpr:
		if n.Kind == decl.IntLiteral {
			return &decl.TypeDecl{NodeInfo: n.NodeInfo, IntArg: n.Value.(int64), IsInt: true}, true
		}
	case *decl.CallExpr:
		fn, ok := n.Function.(*decl.IdentifierExpr)
		if !ok {
			return nil, false
		}
		td := &decl.TypeDecl{NodeInfo: n.NodeInfo, Name: fn.Name}
		for _, a := range n.Args {
			arg, ok := typeFromExpr(a)
			if !ok {
				return nil, false
			}
			td.Args = append(td.Args, arg)
		}
		return td, true
	}
	return nil, false
}

// fold evaluates integer arithmetic on constants so loop bounds like
// seq(10) print as [0, 9].
func fold(op string, left, right ir.Expr) ir.Expr {
	a, aok := left.(*ir.Const)
	b, bok := right.(*ir.Const)
	if aok && bok && !a.IsFloat && !b.IsFloat {
		switch op {
		case "+":
			return ir.IntConst(a.Int + b.Int)
		case "-":
			return ir.IntConst(a.Int - b.Int)
		case "*":
			return ir.IntConst(a.Int * b.Int)
		}
	}
	return &ir.Binary{Op: op, Left: left, Right: right}
}
