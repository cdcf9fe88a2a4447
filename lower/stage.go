package lower

import (
	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/stages"
)

func (l *lowerer) lowerStage(pd *ir.PipelineDef, c *stages.Classified, s *stages.Stage, sc *scope, dimEnv *decl.Env[ir.Expr]) (*ir.Stage, error) {
	def := pd.Name
	if !c.IsPure() {
		def = pd.Name + "." + s.Name
	}
	ctx := &exprCtx{l: l, scope: sc, env: dimEnv.Push(), def: def, ndims: len(pd.Dims)}

	if s.Kind == stages.Init {
		st := &ir.Stage{Kind: ir.InitStage, Name: s.Name, Index: s.Index, Pos: s.Pos, Implicit: s.Implicit, FromDefault: s.FromDefault}
		if err := ctx.bindLets(s.Lets); err != nil {
			return nil, err
		}
		value, err := ctx.lower(s.Value)
		if err != nil {
			return nil, err
		}
		st.Value = value
		return st, nil
	}

	st := &ir.Stage{
		Kind:   ir.UpdateStage,
		Name:   s.Name,
		Index:  s.Index,
		Pos:    s.Pos,
		Result: s.Result,
		Inputs: pd.Dims,
	}
	ctx.result = s.Result
	domain := &ir.ReductionDomain{}

	// Loop bounds only see outer reduction vars
	rvars := decl.NewEnv[ir.Expr](nil)
	body := s.Body
	for {
		loop, err := singleLoop(body, def)
		if err != nil {
			return nil, err
		}
		if loop == nil {
			break
		}
		if domain.Var(loop.Var.Name) != nil {
			return nil, decl.Errorf(decl.SyntaxViolation, loop.Var.Pos(), def, "reduction variable '%s' declared twice", loop.Var.Name)
		}
		rv, err := ctx.reductionVar(loop, rvars, len(domain.Vars))
		if err != nil {
			return nil, err
		}
		domain.Vars = append(domain.Vars, rv)
		ref := &ir.RVarRef{RVar: rv}
		rvars = rvars.Push()
		rvars.Set(rv.Name, ref)
		ctx.env = ctx.env.Push()
		ctx.env.Set(rv.Name, ref)
		body = loop.Body
	}

	for _, stmt := range body {
		switch n := stmt.(type) {
		case *decl.LetStmt:
			if err := ctx.bindLets([]*decl.LetStmt{n}); err != nil {
				return nil, err
			}
		case *decl.AssignStmt:
			store, err := ctx.store(n)
			if err != nil {
				return nil, err
			}
			st.Stores = append(st.Stores, store)
		default:
			return nil, decl.Errorf(decl.SyntaxViolation, stmt.Pos(), def, "unexpected statement in update: %s", stmt)
		}
	}
	if len(domain.Vars) > 0 {
		st.Domain = domain
	}
	return st, nil
}

// singleLoop returns the loop of a body that holds exactly one loop and
// nothing else, nil for a body without loops and an error otherwise.
func singleLoop(body []decl.Stmt, def string) (*decl.ForStmt, error) {
	var loop *decl.ForStmt
	for _, stmt := range body {
		if f, ok := stmt.(*decl.ForStmt); ok {
			if loop != nil {
				return nil, decl.Errorf(decl.SyntaxViolation, f.Pos(), def, "sibling loops are not allowed, loops must be perfectly nested")
			}
			loop = f
		}
	}
	if loop == nil {
		return nil, nil
	}
	for _, stmt := range body {
		if stmt != decl.Stmt(loop) {
			return nil, decl.Errorf(decl.SyntaxViolation, stmt.Pos(), def, "statement between loop headers, loops must be perfectly nested: %s", stmt)
		}
	}
	return loop, nil
}

// reductionVar lowers a loop header. seq(n) covers [0, n-1] and seq(a, b)
// covers [a, b].
func (c *exprCtx) reductionVar(loop *decl.ForStmt, outer *decl.Env[ir.Expr], index int) (*ir.RVar, error) {
	bc := &exprCtx{l: c.l, scope: c.scope, env: outer, def: c.def, mode: modeBounds, loopVar: loop.Var.Name}
	lo, err := bc.lower(loop.Lo)
	if err != nil {
		return nil, err
	}
	rv := &ir.RVar{Name: loop.Var.Name, Index: index, Pos: loop.Pos()}
	if loop.Hi == nil {
		rv.Min, rv.Max = ir.IntConst(0), fold("-", lo, ir.IntConst(1))
		return rv, nil
	}
	hi, err := bc.lower(loop.Hi)
	if err != nil {
		return nil, err
	}
	rv.Min, rv.Max = lo, hi
	return rv, nil
}

func (c *exprCtx) store(n *decl.AssignStmt) (*ir.Store, error) {
	if len(n.Target.Indices) != c.ndims {
		return nil, decl.Errorf(decl.SyntaxViolation, n.Pos(), c.def, "'%s' has %d dims, store uses %d indices", c.result, c.ndims, len(n.Target.Indices))
	}
	indices, err := c.lowerAll(n.Target.Indices)
	if err != nil {
		return nil, err
	}
	value, err := c.lower(n.Value)
	if err != nil {
		return nil, err
	}
	return &ir.Store{Op: n.Operator, Indices: indices, Value: value, Pos: n.Pos()}, nil
}

// bindLets substitutes each let into the expressions that follow it.
func (c *exprCtx) bindLets(lets []*decl.LetStmt) error {
	for _, let := range lets {
		v, err := c.lower(let.Value)
		if err != nil {
			return err
		}
		c.env = c.env.Push()
		c.env.Set(let.Variable.Name, v)
	}
	return nil
}
