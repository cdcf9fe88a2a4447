package resolve

import (
	"log/slog"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
)

type directiveSpec struct {
	target bool // takes one loop level reference
	vars   int  // number of variables, -1 for one or more
	factor bool
	whole  bool // subject must be a whole pipeline
}

var directives = map[string]directiveSpec{
	"compute_root":   {whole: true},
	"compute_inline": {whole: true},
	"store_root":     {whole: true},
	"compute_at":     {target: true, whole: true},
	"store_at":       {target: true, whole: true},
	"parallel":       {vars: 1},
	"vectorize":      {vars: 1, factor: true},
	"unroll":         {vars: 1, factor: true},
	"reorder":        {vars: -1},
}

// ResolveSchedule resolves every directive of the program's schedule
// blocks and stores the result on the program.
func (r *Resolver) ResolveSchedule() (*ir.Schedule, error) {
	sched := &ir.Schedule{}
	for _, call := range r.prog.Directives {
		d, err := r.ResolveDirective(call)
		if err != nil {
			return nil, err
		}
		sched.Directives = append(sched.Directives, d)
	}
	r.prog.Schedule = sched
	slog.Debug("resolved schedule", "directives", len(sched.Directives))
	return sched, nil
}

// ResolveDirective resolves one `subject.directive(args)` entry.
func (r *Resolver) ResolveDirective(call *decl.CallExpr) (*ir.Directive, error) {
	member, ok := call.Function.(*decl.MemberAccessExpr)
	if !ok {
		return nil, decl.Errorf(decl.ScheduleError, call.Pos(), "", "expected subject.directive(...), found %s", call)
	}
	name := member.Member.Name
	subjectName := decl.ChainString(member.Receiver)
	spec, ok := directives[name]
	if !ok {
		return nil, decl.Errorf(decl.ScheduleError, member.Member.Pos(), subjectName, "unknown directive '%s'", name)
	}
	subject, err := r.ResolveExpr(member.Receiver)
	if err != nil {
		return nil, withDef(err, subjectName)
	}
	d := &ir.Directive{Name: name, Subject: subject, Pos: call.Pos(), Source: call.String()}
	fail := func(pos decl.Location, format string, args ...any) error {
		return decl.Errorf(decl.ScheduleError, pos, subjectName, format, args...)
	}

	if spec.whole && subject.Kind != ir.RefPipeline {
		return nil, fail(call.Pos(), "%s applies to a whole pipeline, found %s", name, r.prog.RefString(subject))
	}
	if !spec.whole && subject.Kind != ir.RefPipeline && subject.Kind != ir.RefStage {
		return nil, fail(call.Pos(), "%s applies to a pipeline or a stage, found %s", name, r.prog.RefString(subject))
	}
	if name == "compute_inline" && !r.prog.Pipelines[subject.Pipeline].IsPure() {
		return nil, fail(call.Pos(), "'%s' has update stages and cannot be inlined", subject.Pipeline)
	}

	args := call.Args
	want := 0
	if spec.target {
		want = 1
	}
	if spec.vars > 0 {
		want += spec.vars
	}
	if spec.factor {
		want++
	}
	if spec.vars < 0 {
		if len(args) == 0 {
			return nil, fail(call.Pos(), "%s takes at least one variable", name)
		}
	} else if len(args) != want {
		return nil, fail(call.Pos(), "%s takes %d arguments, found %d", name, want, len(args))
	}

	if spec.target {
		target, err := r.target(subject, args[0])
		if err != nil {
			return nil, withDef(err, subjectName)
		}
		d.Target = &target
		return d, nil
	}

	varArgs := args
	if spec.factor {
		varArgs = args[:len(args)-1]
		lit, ok := args[len(args)-1].(*decl.LiteralExpr)
		if !ok || lit.Kind != decl.IntLiteral {
			return nil, fail(args[len(args)-1].Pos(), "%s factor must be an integer constant, found %s", name, args[len(args)-1])
		}
		if d.Factor = lit.Value.(int64); d.Factor <= 0 {
			return nil, fail(lit.Pos(), "%s factor must be positive, found %d", name, d.Factor)
		}
	}
	seen := map[ir.ScheduleRef]bool{}
	for _, a := range varArgs {
		v, err := r.variable(subject, a)
		if err != nil {
			return nil, withDef(err, subjectName)
		}
		if seen[v] {
			return nil, fail(a.Pos(), "%s lists '%s' twice", name, v.Var)
		}
		seen[v] = true
		d.Vars = append(d.Vars, v)
	}
	return d, nil
}

// variable resolves a loop variable argument within the subject.
func (r *Resolver) variable(subject ir.ScheduleRef, arg decl.Expr) (ir.ScheduleRef, error) {
	var v ir.ScheduleRef
	var err error
	if name, ok := bareName(arg); ok {
		v, err = r.resolveIn([]ir.ScheduleRef{subject}, name, arg.Pos())
	} else {
		v, err = r.ResolveExpr(arg)
	}
	if err != nil {
		return v, err
	}
	if v.Kind != ir.RefDim && v.Kind != ir.RefRVar {
		return v, decl.Errorf(decl.ScheduleError, arg.Pos(), "", "expected a variable, found %s", r.prog.RefString(v))
	}
	if v.Pipeline != subject.Pipeline || (subject.Kind == ir.RefStage && v.Stage != subject.Stage) {
		return v, decl.Errorf(decl.ScheduleError, arg.Pos(), "", "'%s' is not a variable of %s", r.prog.RefString(v), r.prog.RefString(subject))
	}
	return v, nil
}

// target resolves the loop level of compute_at and store_at. Bare names
// are searched in every consumer of the subject.
func (r *Resolver) target(subject ir.ScheduleRef, arg decl.Expr) (ir.ScheduleRef, error) {
	consumers := r.prog.Consumers(subject.Pipeline)
	var t ir.ScheduleRef
	var err error
	if name, ok := stringLiteral(arg); ok {
		if len(consumers) == 0 {
			return t, decl.Errorf(decl.ScheduleError, arg.Pos(), "", "'%s' has no consumers to compute at", subject.Pipeline)
		}
		scopes := make([]ir.ScheduleRef, len(consumers))
		for i, c := range consumers {
			scopes[i] = ir.PipelineScope(c)
		}
		t, err = r.resolveIn(scopes, name, arg.Pos())
	} else {
		t, err = r.ResolveExpr(arg)
	}
	if err != nil {
		return t, err
	}
	for _, c := range consumers {
		if c == t.Pipeline {
			return t, nil
		}
	}
	return t, decl.Errorf(decl.ScheduleError, arg.Pos(), "", "'%s' does not consume '%s'", t.Pipeline, subject.Pipeline)
}

// bareName accepts "x" and x as bare variable names.
func bareName(e decl.Expr) (string, bool) {
	if id, ok := e.(*decl.IdentifierExpr); ok {
		return id.Name, true
	}
	return stringLiteral(e)
}

func stringLiteral(e decl.Expr) (string, bool) {
	if lit, ok := e.(*decl.LiteralExpr); ok && lit.Kind == decl.StringLiteral {
		return lit.Value.(string), true
	}
	return "", false
}

func withDef(err error, def string) error {
	if ce, ok := err.(*decl.CompileError); ok && ce.Def == "" {
		ce.Def = def
	}
	return err
}
