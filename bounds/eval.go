package bounds

import (
	"fmt"
	"math"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
)

// bindings give intervals to the dims and reduction vars in scope. The
// callbacks, when set, see every region read while evaluating.
type bindings struct {
	dims  map[*ir.DimensionVar]ir.Interval
	rvars map[*ir.RVar]ir.Interval

	onCall  func(pipeline string, r Region) error
	onInput func(input string, r Region)
	onLoad  func(buffer string, r Region)
}

func newBindings(dims []*ir.DimensionVar, region Region) *bindings {
	b := &bindings{dims: map[*ir.DimensionVar]ir.Interval{}, rvars: map[*ir.RVar]ir.Interval{}}
	for i, d := range dims {
		b.dims[d] = region[i]
	}
	return b
}

// evaluator computes conservative intervals of IR expressions. Values
// read from buffers are bounded by their value ranges.
type evaluator struct {
	prog   *ir.Program
	params map[string]ir.Interval
	values map[string]ir.Interval // value range memo per (pipeline, region)
	stack  map[string]bool
}

func newEvaluator(prog *ir.Program) *evaluator {
	return &evaluator{
		prog:   prog,
		params: map[string]ir.Interval{},
		values: map[string]ir.Interval{},
		stack:  map[string]bool{},
	}
}

// param evaluates a param's value. Params nothing fixes are unbounded.
func (e *evaluator) param(name string) (ir.Interval, error) {
	if v, ok := e.params[name]; ok {
		return v, nil
	}
	p, ok := e.prog.Params[name]
	if !ok {
		return ir.Interval{}, decl.Errorf(decl.UnknownReferenceError, decl.Location{}, "", "no param named '%s'", name)
	}
	if e.stack["param:"+name] {
		return ir.Interval{}, decl.Errorf(decl.RecursionError, decl.Location{}, name, "param '%s' depends on itself", name)
	}
	out := ir.Unbounded()
	if p.Value != nil {
		e.stack["param:"+name] = true
		v, err := e.eval(p.Value, &bindings{})
		delete(e.stack, "param:"+name)
		if err != nil {
			return ir.Interval{}, err
		}
		out = v
	}
	e.params[name] = out
	return out, nil
}

// extent is the number of elements of an input along a dim.
func (e *evaluator) extent(input string, dim int) (ir.Interval, error) {
	in, ok := e.prog.Inputs[input]
	if !ok {
		return ir.Interval{}, decl.Errorf(decl.UnknownReferenceError, decl.Location{}, "", "no input named '%s'", input)
	}
	if dim >= len(in.Shape) || in.Shape[dim] == nil {
		return ir.Interval{Min: 0, Max: ir.PosInf}, nil
	}
	return e.eval(in.Shape[dim], &bindings{})
}

// inputRange is the range of values an input may hold.
func (e *evaluator) inputRange(input string) (ir.Interval, error) {
	in := e.prog.Inputs[input]
	if in.RangeMin == nil {
		return in.Elem.Range(), nil
	}
	lo, err := e.eval(in.RangeMin, &bindings{})
	if err != nil {
		return ir.Interval{}, err
	}
	hi, err := e.eval(in.RangeMax, &bindings{})
	if err != nil {
		return ir.Interval{}, err
	}
	return ir.Interval{Min: lo.Min, Max: hi.Max}, nil
}

func (e *evaluator) evalAll(exprs []ir.Expr, b *bindings) (Region, error) {
	out := make(Region, len(exprs))
	for i, x := range exprs {
		v, err := e.eval(x, b)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *evaluator) eval(x ir.Expr, b *bindings) (ir.Interval, error) {
	switch n := x.(type) {
	case *ir.Const:
		if n.IsFloat {
			return ir.Span(int64(math.Floor(n.Float)), int64(math.Ceil(n.Float))), nil
		}
		return ir.Point(n.Int), nil
	case *ir.Undef:
		return n.Type.Range(), nil
	case *ir.VarRef:
		v, ok := b.dims[n.Var]
		if !ok {
			return ir.Interval{}, fmt.Errorf("dimension '%s' of '%s' is not bound", n.Var.Name, n.Var.Pipeline)
		}
		return v, nil
	case *ir.RVarRef:
		v, ok := b.rvars[n.RVar]
		if !ok {
			return ir.Interval{}, fmt.Errorf("reduction variable '%s' is not bound", n.RVar.Name)
		}
		return v, nil
	case *ir.ParamRef:
		return e.param(n.Name)
	case *ir.ExtentRef:
		return e.extent(n.Input, n.Dim)
	case *ir.InputCall:
		args, err := e.evalAll(n.Args, b)
		if err != nil {
			return ir.Interval{}, err
		}
		if b.onInput != nil {
			b.onInput(n.Input, args)
		}
		return e.inputRange(n.Input)
	case *ir.Call:
		args, err := e.evalAll(n.Args, b)
		if err != nil {
			return ir.Interval{}, err
		}
		if b.onCall != nil {
			if err := b.onCall(n.Pipeline, args); err != nil {
				return ir.Interval{}, err
			}
		}
		return e.valueRange(n.Pipeline, args)
	case *ir.Load:
		args, err := e.evalAll(n.Indices, b)
		if err != nil {
			return ir.Interval{}, err
		}
		if b.onLoad != nil {
			b.onLoad(n.Buffer, args)
		}
		return ir.Unbounded(), nil
	case *ir.Unary:
		v, err := e.eval(n.Operand, b)
		if err != nil {
			return ir.Interval{}, err
		}
		if n.Op == "-" {
			return v.Neg(), nil
		}
		return ir.Bool(), nil
	case *ir.Binary:
		l, err := e.eval(n.Left, b)
		if err != nil {
			return ir.Interval{}, err
		}
		r, err := e.eval(n.Right, b)
		if err != nil {
			return ir.Interval{}, err
		}
		return binary(n.Op, l, r), nil
	case *ir.Builtin:
		args, err := e.evalAll(n.Args, b)
		if err != nil {
			return ir.Interval{}, err
		}
		switch n.Name {
		case "min":
			return args[0].Min2(args[1]), nil
		case "max":
			return args[0].Max2(args[1]), nil
		case "clamp":
			return args[0].Clamp(args[1], args[2]), nil
		case "abs":
			return args[0].Abs(), nil
		case "select":
			return args[1].Union(args[2]), nil
		}
	}
	return ir.Interval{}, fmt.Errorf("cannot evaluate %s", x)
}

func binary(op string, l, r ir.Interval) ir.Interval {
	switch op {
	case "+":
		return l.Add(r)
	case "-":
		return l.Sub(r)
	case "*":
		return l.Mul(r)
	case "/":
		return l.Div(r)
	case "%":
		return l.Mod(r)
	}
	// comparisons and logical ops
	return ir.Bool()
}

// valueRange bounds the values a pipeline produces over a region.
// Updates that accumulate or read their own buffer make it unbounded.
func (e *evaluator) valueRange(pipeline string, region Region) (ir.Interval, error) {
	key := pipeline + " " + region.Key()
	if v, ok := e.values[key]; ok {
		return v, nil
	}
	if e.stack[key] {
		return ir.Interval{}, decl.Errorf(decl.RecursionError, decl.Location{}, pipeline, "'%s' reads its own values", pipeline)
	}
	pd := e.prog.Pipelines[pipeline]
	if pd == nil {
		return ir.Interval{}, decl.Errorf(decl.UnknownReferenceError, decl.Location{}, "", "no pipeline named '%s'", pipeline)
	}
	if len(region) != len(pd.Dims) {
		return ir.Interval{}, decl.Errorf(decl.UnsatisfiableBoundsError, pd.Pos, pipeline, "'%s' has %d dims, read with %d", pipeline, len(pd.Dims), len(region))
	}
	e.stack[key] = true
	defer delete(e.stack, key)

	b := newBindings(pd.Dims, region)
	out, err := e.eval(pd.Init().Value, b)
	if err != nil {
		return ir.Interval{}, err
	}
	for _, s := range pd.Updates() {
		if selfReferential(s) {
			out = ir.Unbounded()
			break
		}
		if err := e.bindDomain(s, b); err != nil {
			return ir.Interval{}, err
		}
		for _, st := range s.Stores {
			v, err := e.eval(st.Value, b)
			if err != nil {
				return ir.Interval{}, err
			}
			out = out.Union(v)
		}
	}
	e.values[key] = out
	return out, nil
}

func selfReferential(s *ir.Stage) bool {
	for _, st := range s.Stores {
		if st.Accumulates() {
			return true
		}
		found := false
		ir.Walk(st.Value, func(x ir.Expr) {
			if _, ok := x.(*ir.Load); ok {
				found = true
			}
		})
		if found {
			return true
		}
	}
	return false
}

// bindDomain binds each reduction var to the hull of its range, outer
// vars first so inner bounds may use them.
func (e *evaluator) bindDomain(s *ir.Stage, b *bindings) error {
	if s.Domain == nil {
		return nil
	}
	for _, rv := range s.Domain.Vars {
		lo, err := e.eval(rv.Min, b)
		if err != nil {
			return err
		}
		hi, err := e.eval(rv.Max, b)
		if err != nil {
			return err
		}
		r := ir.Interval{Min: lo.Min, Max: hi.Max}
		if r.IsEmpty() {
			return decl.Errorf(decl.UnsatisfiableBoundsError, rv.Pos, "", "reduction variable '%s' of stage '%s' has an empty range %s..%s", rv.Name, s.Name, lo, hi)
		}
		b.rvars[rv] = r
	}
	return nil
}
