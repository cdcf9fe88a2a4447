// Package lower turns a resolved file into the pipeline IR.
package lower

import (
	"errors"
	"log/slog"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/internal/graph"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/stages"
)

// Options fix params and input metadata from outside the file. Values
// given here win over defaults and clauses in the source.
type Options struct {
	Params      map[string]int64
	InputShapes map[string][]int64
	InputRanges map[string][2]int64
}

type Option func(*Options)

func WithParam(name string, value int64) Option {
	return func(o *Options) {
		if o.Params == nil {
			o.Params = map[string]int64{}
		}
		o.Params[name] = value
	}
}

func WithInputShape(name string, shape ...int64) Option {
	return func(o *Options) {
		if o.InputShapes == nil {
			o.InputShapes = map[string][]int64{}
		}
		o.InputShapes[name] = shape
	}
}

func WithInputRange(name string, lo, hi int64) Option {
	return func(o *Options) {
		if o.InputRanges == nil {
			o.InputRanges = map[string][2]int64{}
		}
		o.InputRanges[name] = [2]int64{lo, hi}
	}
}

type lowerer struct {
	file   *decl.FileDecl
	opts   Options
	prog   *ir.Program
	global *scope

	// top level instances being or already flattened
	building map[string]bool
}

// Lower builds the program for a file. Funcs become pipelines, pipe
// instances are flattened into pipelines named after the instance and
// output requests and schedule directives are carried over for the later
// passes.
func Lower(file *decl.FileDecl, opts ...Option) (*ir.Program, error) {
	if err := file.Resolve(); err != nil {
		return nil, err
	}
	l := &lowerer{
		file:     file,
		prog:     ir.NewProgram(),
		global:   newScope("", nil),
		building: map[string]bool{},
	}
	for _, opt := range opts {
		opt(&l.opts)
	}
	if err := l.run(); err != nil {
		return nil, decl.WithFile(err, file.FullPath)
	}
	slog.Debug("lowered program", "file", file.FullPath, "pipelines", len(l.prog.Order), "instances", len(l.prog.Instances))
	return l.prog, nil
}

func (l *lowerer) run() error {
	for _, name := range l.file.Order {
		switch l.file.Lookup(name).(type) {
		case *decl.ParamDecl:
			l.global.params[name] = &ir.ParamRef{Name: name}
		case *decl.InputDecl:
			l.global.inputs[name] = name
		case *decl.FuncDecl:
			l.global.funcs[name] = name
		}
	}
	if err := l.checkOverrides(); err != nil {
		return err
	}
	if err := l.checkParamCycles(); err != nil {
		return err
	}
	if err := l.checkPipeCycles(); err != nil {
		return err
	}
	for _, name := range l.file.Order {
		var err error
		switch d := l.file.Lookup(name).(type) {
		case *decl.ParamDecl:
			err = l.lowerParam(d)
		case *decl.InputDecl:
			err = l.lowerInput(d)
		}
		if err != nil {
			return err
		}
	}

	built := map[string]*ir.PipelineDef{}
	for _, name := range l.file.Order {
		if _, ok := l.file.Instances[name]; ok {
			if _, err := l.ensureInstance(name, built); err != nil {
				return err
			}
		}
	}
	for _, name := range l.file.Order {
		fn, ok := l.file.Funcs[name]
		if !ok {
			continue
		}
		pd, err := l.lowerFunc(fn, l.global, name)
		if err != nil {
			return err
		}
		built[name] = pd
	}

	// Declaration order, instances flattened in place
	for _, name := range l.file.Order {
		if _, ok := l.file.Funcs[name]; ok {
			l.prog.AddPipeline(built[name])
		} else if inst, ok := l.prog.Instances[name]; ok {
			for _, p := range inst.Pipelines {
				l.prog.AddPipeline(built[p])
			}
		}
	}
	if err := l.checkCallArity(); err != nil {
		return err
	}
	if err := l.lowerOutputs(); err != nil {
		return err
	}
	for _, s := range l.file.Schedules {
		l.prog.Directives = append(l.prog.Directives, s.Directives...)
	}
	return nil
}

func (l *lowerer) checkOverrides() error {
	for name := range l.opts.Params {
		if _, ok := l.file.Params[name]; !ok {
			return decl.Errorf(decl.UnknownReferenceError, decl.Location{}, "", "no param named '%s'", name)
		}
	}
	for name := range l.opts.InputShapes {
		if _, ok := l.file.Inputs[name]; !ok {
			return decl.Errorf(decl.UnknownReferenceError, decl.Location{}, "", "no input named '%s'", name)
		}
	}
	for name := range l.opts.InputRanges {
		if _, ok := l.file.Inputs[name]; !ok {
			return decl.Errorf(decl.UnknownReferenceError, decl.Location{}, "", "no input named '%s'", name)
		}
	}
	return nil
}

// checkParamCycles rejects params whose defaults depend on themselves.
func (l *lowerer) checkParamCycles() error {
	g := graph.New[string]()
	for _, name := range l.file.Order {
		p, ok := l.file.Params[name]
		if !ok {
			continue
		}
		g.AddNode(name)
		if p.DefaultValue == nil {
			continue
		}
		for _, id := range decl.FreeIdentifiers(p.DefaultValue) {
			if _, ok := l.file.Params[id]; ok {
				g.AddEdge(name, id)
			}
		}
	}
	return cycleError(g.FindCycle(), func(name string) decl.Location { return l.file.Params[name].Pos() }, "param")
}

// checkPipeCycles rejects pipes that instantiate themselves, directly or
// through other pipes.
func (l *lowerer) checkPipeCycles() error {
	g := graph.New[string]()
	for _, name := range l.file.Order {
		p, ok := l.file.Pipes[name]
		if !ok {
			continue
		}
		g.AddNode(name)
		for _, inst := range p.Instances {
			if _, ok := l.file.Pipes[inst.PipeNode.Name]; ok {
				g.AddEdge(name, inst.PipeNode.Name)
			}
		}
	}
	return cycleError(g.FindCycle(), func(name string) decl.Location { return l.file.Pipes[name].Pos() }, "pipe")
}

func cycleError(err error, pos func(string) decl.Location, what string) error {
	if err == nil {
		return nil
	}
	var ce graph.CycleError[string]
	if errors.As(err, &ce) && len(ce.Path) > 0 {
		return decl.Errorf(decl.RecursionError, pos(ce.Path[0]), ce.Path[0], "%s %s", what, ce.Error())
	}
	return decl.Errorf(decl.RecursionError, decl.Location{}, "", "%s %s", what, err)
}

func (l *lowerer) lowerParam(d *decl.ParamDecl) error {
	if d.TypeDecl.IsBuffer() || d.TypeDecl.IsFunc() {
		return decl.Errorf(decl.SyntaxViolation, d.TypeDecl.Pos(), d.Name(), "params are scalars, declare buffers with 'input'")
	}
	typ, err := ir.ScalarTypeOf(d.TypeDecl)
	if err != nil {
		return withDef(err, d.Name())
	}
	param := &ir.Param{Name: d.Name(), Type: typ}
	if v, ok := l.opts.Params[d.Name()]; ok {
		param.Value = ir.IntConst(v)
	} else if d.DefaultValue != nil {
		if param.Value, err = l.constExpr(d.DefaultValue, l.global, d.Name()); err != nil {
			return err
		}
	}
	l.prog.Params[d.Name()] = param
	return nil
}

func (l *lowerer) lowerInput(d *decl.InputDecl) error {
	elem, ndims, err := ir.BufferTypeOf(d.TypeDecl)
	if err != nil {
		return withDef(err, d.Name())
	}
	in := &ir.Input{Name: d.Name(), Elem: elem, NDims: ndims, Shape: make([]ir.Expr, ndims)}
	if shape, ok := l.opts.InputShapes[d.Name()]; ok {
		if len(shape) != ndims {
			return decl.Errorf(decl.SyntaxViolation, d.Pos(), d.Name(), "input '%s' has %d dims, configured shape has %d", d.Name(), ndims, len(shape))
		}
		for i, v := range shape {
			in.Shape[i] = ir.IntConst(v)
		}
	} else if len(d.Shape) > 0 {
		if len(d.Shape) != ndims {
			return decl.Errorf(decl.SyntaxViolation, d.Pos(), d.Name(), "input '%s' has %d dims, shape lists %d", d.Name(), ndims, len(d.Shape))
		}
		for i, e := range d.Shape {
			if in.Shape[i], err = l.constExpr(e, l.global, d.Name()); err != nil {
				return err
			}
		}
	}
	if r, ok := l.opts.InputRanges[d.Name()]; ok {
		in.RangeMin, in.RangeMax = ir.IntConst(r[0]), ir.IntConst(r[1])
	} else if d.RangeMin != nil {
		if in.RangeMin, err = l.constExpr(d.RangeMin, l.global, d.Name()); err != nil {
			return err
		}
		if in.RangeMax, err = l.constExpr(d.RangeMax, l.global, d.Name()); err != nil {
			return err
		}
	}
	l.prog.Inputs[d.Name()] = in
	return nil
}

func (l *lowerer) lowerOutputs() error {
	for _, o := range l.file.Outputs {
		pipeline, err := l.callable(o.NameNode, l.global, o.Name())
		if err != nil {
			return err
		}
		req := &ir.OutputRequest{Pipeline: pipeline, Pos: o.Pos()}
		for _, b := range o.Bounds {
			lo, err := l.constExpr(b[0], l.global, o.Name())
			if err != nil {
				return err
			}
			hi, err := l.constExpr(b[1], l.global, o.Name())
			if err != nil {
				return err
			}
			req.Bounds = append(req.Bounds, [2]ir.Expr{lo, hi})
		}
		l.prog.Outputs = append(l.prog.Outputs, req)
	}
	return nil
}

// callable resolves a bare name to the pipeline it reads.
func (l *lowerer) callable(id *decl.IdentifierExpr, sc *scope, def string) (string, error) {
	if p, ok := sc.lookupFunc(id.Name); ok {
		return p, nil
	}
	if inst, ok := sc.lookupInstance(id.Name); ok {
		return singleOutput(inst, id.Pos(), def)
	}
	return "", decl.Errorf(decl.UnknownReferenceError, id.Pos(), def, "no func or instance named '%s'", id.Name)
}

func singleOutput(inst *ir.Instance, pos decl.Location, def string) (string, error) {
	if len(inst.Order) != 1 {
		return "", decl.Errorf(decl.AmbiguousReferenceError, pos, def,
			"instance '%s' has %d outputs, name one of %v", inst.Name, len(inst.Order), inst.Order)
	}
	return inst.Outputs[inst.Order[0]], nil
}

// checkCallArity makes sure every call passes one argument per dim of
// the callee.
func (l *lowerer) checkCallArity() error {
	for _, name := range l.prog.Order {
		pd := l.prog.Pipelines[name]
		var err error
		visit := func(e ir.Expr) {
			c, ok := e.(*ir.Call)
			if !ok || err != nil {
				return
			}
			callee := l.prog.Pipelines[c.Pipeline]
			if callee != nil && len(callee.Dims) != len(c.Args) {
				err = decl.Errorf(decl.SyntaxViolation, pd.Pos, name, "'%s' takes %d dims, called with %d", c.Pipeline, len(callee.Dims), len(c.Args))
			}
		}
		for _, s := range pd.Stages {
			ir.Walk(s.Value, visit)
			for _, st := range s.Stores {
				ir.Walk(st.Value, visit)
				for _, idx := range st.Indices {
					ir.Walk(idx, visit)
				}
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// lowerFunc classifies a func and lowers each of its stages.
func (l *lowerer) lowerFunc(fn *decl.FuncDecl, sc *scope, name string) (*ir.PipelineDef, error) {
	pd := &ir.PipelineDef{Name: name, Pos: fn.Pos(), File: l.sourceOf(fn.Pos())}
	c, err := stages.Classify(fn)
	if err != nil {
		return nil, decl.WithFile(err, pd.File)
	}
	dimEnv := decl.NewEnv[ir.Expr](nil)
	for i, d := range c.Dims {
		dv := &ir.DimensionVar{Pipeline: name, Name: d, Index: i}
		pd.Dims = append(pd.Dims, dv)
		dimEnv.Set(d, &ir.VarRef{Var: dv})
	}
	for _, s := range c.Stages {
		st, err := l.lowerStage(pd, c, s, sc, dimEnv)
		if err != nil {
			return nil, decl.WithFile(err, pd.File)
		}
		pd.Stages = append(pd.Stages, st)
	}
	slog.Debug("lowered func", "pipeline", name, "dims", len(pd.Dims), "stages", len(pd.Stages))
	return pd, nil
}

// sourceOf is the file a node came from. Imported declarations keep their
// own file after merging.
func (l *lowerer) sourceOf(pos decl.Location) string {
	if pos.File != "" {
		return pos.File
	}
	return l.file.FullPath
}

func withDef(err error, def string) error {
	var ce *decl.CompileError
	if errors.As(err, &ce) && ce.Def == "" {
		ce.Def = def
	}
	return err
}
