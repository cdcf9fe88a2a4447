package lower

import (
	"log/slog"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
)

// ensureInstance flattens a top level instance once. Instances may refer
// to other top level instances in their arguments, in any order.
func (l *lowerer) ensureInstance(name string, built map[string]*ir.PipelineDef) (*ir.Instance, error) {
	if inst, ok := l.global.instances[name]; ok {
		return inst, nil
	}
	d := l.file.Instances[name]
	if l.building[name] {
		return nil, decl.Errorf(decl.RecursionError, d.Pos(), name, "instance '%s' depends on itself through its arguments", name)
	}
	l.building[name] = true
	defer delete(l.building, name)

	for _, arg := range d.Args {
		for _, id := range decl.FreeIdentifiers(arg.Value) {
			if _, ok := l.file.Instances[id]; ok {
				if _, err := l.ensureInstance(id, built); err != nil {
					return nil, err
				}
			}
		}
	}
	inst, err := l.instantiate(d, l.global, built)
	if err != nil {
		return nil, err
	}
	l.global.instances[name] = inst
	return inst, nil
}

// instantiate binds the arguments of an instance to its pipe's params and
// lowers the pipe's funcs under the instance's name.
func (l *lowerer) instantiate(d *decl.InstanceDecl, caller *scope, built map[string]*ir.PipelineDef) (*ir.Instance, error) {
	pipe, ok := l.file.Pipes[d.PipeNode.Name]
	if !ok {
		return nil, decl.Errorf(decl.UnknownReferenceError, d.PipeNode.Pos(), d.Name(), "no pipe named '%s'", d.PipeNode.Name)
	}
	fullName := caller.prefix + d.Name()
	inner := newScope(fullName+".", l.global)
	if err := l.bindArgs(pipe, d, caller, inner); err != nil {
		return nil, err
	}

	inst := &ir.Instance{Name: fullName, Pipe: pipe.Name(), Outputs: map[string]string{}}
	for _, fn := range pipe.Funcs {
		inner.funcs[fn.Name()] = inner.prefix + fn.Name()
	}
	for _, nested := range pipe.Instances {
		sub, err := l.instantiate(nested, inner, built)
		if err != nil {
			return nil, err
		}
		inner.instances[nested.Name()] = sub
		inst.Pipelines = append(inst.Pipelines, sub.Pipelines...)
		l.prog.Instances[sub.Name] = sub
	}
	for _, fn := range pipe.Funcs {
		pd, err := l.lowerFunc(fn, inner, inner.prefix+fn.Name())
		if err != nil {
			return nil, err
		}
		pd.Instance, pd.Pipe = fullName, pipe.Name()
		built[pd.Name] = pd
		inst.Pipelines = append(inst.Pipelines, pd.Name)
	}
	for _, out := range pipe.Outputs {
		pipeline, ok := inner.funcs[out.Name]
		if !ok {
			return nil, decl.Errorf(decl.UnknownReferenceError, out.Pos(), pipe.Name(), "pipe '%s' outputs '%s' but defines no such func", pipe.Name(), out.Name)
		}
		inst.Outputs[out.Name] = pipeline
		inst.Order = append(inst.Order, out.Name)
	}
	l.prog.Instances[fullName] = inst
	slog.Debug("flattened instance", "instance", fullName, "pipe", pipe.Name(), "pipelines", len(inst.Pipelines))
	return inst, nil
}

// bindArgs matches positional then named arguments to the pipe's params.
// Arguments are lowered in the caller's scope and defaults in the pipe's.
func (l *lowerer) bindArgs(pipe *decl.PipeDecl, d *decl.InstanceDecl, caller, inner *scope) error {
	bound := map[string]*decl.InstanceArg{}
	for i, arg := range d.Args {
		var param *decl.PipeParam
		if arg.NameNode == nil {
			if i >= len(pipe.Params) {
				return decl.Errorf(decl.SyntaxViolation, arg.Pos(), d.Name(), "pipe '%s' takes %d arguments, found %d", pipe.Name(), len(pipe.Params), len(d.Args))
			}
			param = pipe.Params[i]
		} else if param = pipe.Param(arg.NameNode.Name); param == nil {
			return decl.Errorf(decl.SyntaxViolation, arg.NameNode.Pos(), d.Name(), "pipe '%s' has no parameter '%s'", pipe.Name(), arg.NameNode.Name)
		}
		if _, dup := bound[param.Name()]; dup {
			return decl.Errorf(decl.SyntaxViolation, arg.Pos(), d.Name(), "parameter '%s' bound twice", param.Name())
		}
		bound[param.Name()] = arg
	}

	for _, param := range pipe.Params {
		value, from := param.Default, inner
		if arg, ok := bound[param.Name()]; ok {
			value, from = arg.Value, caller
		}
		if value == nil {
			return decl.Errorf(decl.UnknownReferenceError, d.Pos(), d.Name(), "missing argument for parameter '%s' of pipe '%s'", param.Name(), pipe.Name())
		}
		var err error
		if param.TypeDecl.IsBuffer() || param.TypeDecl.IsFunc() {
			err = l.bindBuffer(param, value, from, inner, d.Name())
		} else {
			err = l.bindScalar(param, value, from, inner, d.Name())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) bindScalar(param *decl.PipeParam, value decl.Expr, from, inner *scope, def string) error {
	if _, err := ir.ScalarTypeOf(param.TypeDecl); err != nil {
		return withDef(err, def)
	}
	v, err := l.constExpr(value, from, def)
	if err != nil {
		return err
	}
	inner.params[param.Name()] = v
	return nil
}

// bindBuffer binds a Buffer or Func param to an input, a func or an
// instance output visible from the caller.
func (l *lowerer) bindBuffer(param *decl.PipeParam, value decl.Expr, from, inner *scope, def string) error {
	names, ok := decl.ChainNames(value)
	if !ok || len(names) > 2 {
		return decl.Errorf(decl.SyntaxViolation, value.Pos(), def, "parameter '%s' expects a buffer or func name, found %s", param.Name(), value)
	}
	if len(names) == 2 {
		inst, ok := from.lookupInstance(names[0])
		if !ok {
			return decl.Errorf(decl.UnknownReferenceError, value.Pos(), def, "no instance named '%s'", names[0])
		}
		pipeline, ok := inst.Outputs[names[1]]
		if !ok {
			return decl.Errorf(decl.UnknownReferenceError, value.Pos(), def, "instance '%s' has no output '%s'", names[0], names[1])
		}
		inner.funcs[param.Name()] = pipeline
		return nil
	}

	name := names[0]
	if in, ok := from.lookupInput(name); ok {
		if param.TypeDecl.IsBuffer() {
			_, ndims, err := ir.BufferTypeOf(param.TypeDecl)
			if err != nil {
				return withDef(err, def)
			}
			if got := l.prog.Inputs[in].NDims; got != ndims {
				return decl.Errorf(decl.SyntaxViolation, value.Pos(), def, "parameter '%s' expects %d dims, input '%s' has %d", param.Name(), ndims, in, got)
			}
		}
		inner.inputs[param.Name()] = in
		return nil
	}
	if p, ok := from.lookupFunc(name); ok {
		inner.funcs[param.Name()] = p
		return nil
	}
	if inst, ok := from.lookupInstance(name); ok {
		pipeline, err := singleOutput(inst, value.Pos(), def)
		if err != nil {
			return err
		}
		inner.funcs[param.Name()] = pipeline
		return nil
	}
	return decl.Errorf(decl.UnknownReferenceError, value.Pos(), def, "no input, func or instance named '%s'", name)
}
