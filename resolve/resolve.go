// Package resolve maps schedule references, written as explicit chains or
// bare strings, onto (pipeline, stage, variable) triples.
package resolve

import (
	"strings"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
)

type Resolver struct {
	prog *ir.Program
}

func New(prog *ir.Program) *Resolver {
	return &Resolver{prog: prog}
}

func (r *Resolver) pipeline(name string, pos decl.Location) (*ir.PipelineDef, error) {
	if pd := r.prog.Pipelines[name]; pd != nil {
		return pd, nil
	}
	if inst := r.prog.Instances[name]; inst != nil && len(inst.Order) == 1 {
		return r.prog.Pipelines[inst.Outputs[inst.Order[0]]], nil
	}
	return nil, decl.Errorf(decl.UnknownReferenceError, pos, "", "no pipeline named '%s'", name)
}

// ResolveChain resolves an explicit chain. Empty trailing parts select
// the whole stage or pipeline. A variable without a stage must be a dim
// and refers to the final stage.
func (r *Resolver) ResolveChain(pipeline, stage, variable string) (ir.ScheduleRef, error) {
	return r.resolveChain(pipeline, stage, variable, decl.Location{})
}

func (r *Resolver) resolveChain(pipeline, stage, variable string, pos decl.Location) (ir.ScheduleRef, error) {
	pd, err := r.pipeline(pipeline, pos)
	if err != nil {
		return ir.ScheduleRef{}, err
	}
	if stage == "" {
		if variable == "" {
			return ir.PipelineScope(pd.Name), nil
		}
		if pd.Dim(variable) == nil {
			return ir.ScheduleRef{}, decl.Errorf(decl.UnknownReferenceError, pos, pd.Name,
				"'%s' is not a dim of '%s', name the stage of a reduction variable", variable, pd.Name)
		}
		return ir.ScheduleRef{Pipeline: pd.Name, Stage: len(pd.Stages) - 1, Var: variable, Kind: ir.RefDim}, nil
	}
	s := pd.Stage(stage)
	if s == nil {
		return ir.ScheduleRef{}, decl.Errorf(decl.UnknownReferenceError, pos, pd.Name, "'%s' has no stage '%s'", pd.Name, stage)
	}
	if variable == "" {
		return ir.StageScope(pd.Name, s.Index), nil
	}
	if s.Domain.Var(variable) != nil {
		return ir.ScheduleRef{Pipeline: pd.Name, Stage: s.Index, Var: variable, Kind: ir.RefRVar}, nil
	}
	if pd.Dim(variable) != nil {
		return ir.ScheduleRef{Pipeline: pd.Name, Stage: s.Index, Var: variable, Kind: ir.RefDim}, nil
	}
	return ir.ScheduleRef{}, decl.Errorf(decl.UnknownReferenceError, pos, pd.Name, "stage '%s.%s' has no variable '%s'", pd.Name, stage, variable)
}

// ResolveString resolves a bare name within a scope.
func (r *Resolver) ResolveString(scope ir.ScheduleRef, name string) (ir.ScheduleRef, error) {
	return r.resolveIn([]ir.ScheduleRef{scope}, name, decl.Location{})
}

// resolveIn searches the narrowest namespace of every scope: reduction
// vars of the stage, then the pipeline's dims. A pipeline scope reaches
// every stage. More than one (pipeline, stage) match is ambiguous.
func (r *Resolver) resolveIn(scopes []ir.ScheduleRef, name string, pos decl.Location) (ir.ScheduleRef, error) {
	var matches []ir.ScheduleRef
	seen := map[ir.ScheduleRef]bool{}
	for _, scope := range scopes {
		pd, err := r.pipeline(scope.Pipeline, pos)
		if err != nil {
			return ir.ScheduleRef{}, err
		}
		for _, m := range r.lookup(pd, scope, name) {
			if !seen[m] {
				seen[m] = true
				matches = append(matches, m)
			}
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		names := make([]string, len(scopes))
		for i, s := range scopes {
			names[i] = r.prog.RefString(s)
		}
		return ir.ScheduleRef{}, decl.Errorf(decl.UnknownReferenceError, pos, "", "'%s' is not defined in %s", name, strings.Join(names, ", "))
	}
	found := make([]string, len(matches))
	for i, m := range matches {
		found[i] = r.prog.RefString(m)
	}
	return ir.ScheduleRef{}, decl.Errorf(decl.AmbiguousReferenceError, pos, "", "'%s' is ambiguous, it matches %s", name, strings.Join(found, ", "))
}

func (r *Resolver) lookup(pd *ir.PipelineDef, scope ir.ScheduleRef, name string) []ir.ScheduleRef {
	if scope.Stage >= 0 && scope.Stage < len(pd.Stages) {
		s := pd.Stages[scope.Stage]
		if s.Domain.Var(name) != nil {
			return []ir.ScheduleRef{{Pipeline: pd.Name, Stage: s.Index, Var: name, Kind: ir.RefRVar}}
		}
		if pd.Dim(name) != nil {
			return []ir.ScheduleRef{{Pipeline: pd.Name, Stage: s.Index, Var: name, Kind: ir.RefDim}}
		}
		return nil
	}
	var out []ir.ScheduleRef
	for _, s := range pd.Stages {
		if s.Domain.Var(name) != nil {
			out = append(out, ir.ScheduleRef{Pipeline: pd.Name, Stage: s.Index, Var: name, Kind: ir.RefRVar})
		}
	}
	if pd.Dim(name) == nil {
		return out
	}
	// The dim is still reachable in the last stage no loop var shadows
	for i := len(pd.Stages) - 1; i >= 0; i-- {
		if s := pd.Stages[i]; s.Domain.Var(name) == nil {
			out = append(out, ir.ScheduleRef{Pipeline: pd.Name, Stage: s.Index, Var: name, Kind: ir.RefDim})
			break
		}
	}
	return out
}

// ResolveExpr resolves a parsed reference chain such as hist.upd.x.
func (r *Resolver) ResolveExpr(e decl.Expr) (ir.ScheduleRef, error) {
	names, ok := decl.ChainNames(e)
	if !ok {
		return ir.ScheduleRef{}, decl.Errorf(decl.SyntaxViolation, e.Pos(), "", "expected a reference chain, found %s", e)
	}
	return r.resolveNames(names, e.Pos())
}

// ResolvePath resolves a dotted reference written as text, as typed on
// the command line.
func (r *Resolver) ResolvePath(path string) (ir.ScheduleRef, error) {
	names := strings.Split(path, ".")
	for _, n := range names {
		if n == "" {
			return ir.ScheduleRef{}, decl.Errorf(decl.SyntaxViolation, decl.Location{}, "", "invalid reference '%s'", path)
		}
	}
	return r.resolveNames(names, decl.Location{})
}

// resolveNames matches flattened instance pipelines by their longest
// dotted prefix.
func (r *Resolver) resolveNames(names []string, pos decl.Location) (ir.ScheduleRef, error) {
	for k := len(names); k >= 1; k-- {
		prefix := strings.Join(names[:k], ".")
		pd, err := r.pipeline(prefix, pos)
		if err != nil {
			continue
		}
		rest := names[k:]
		switch len(rest) {
		case 0:
			return r.resolveChain(prefix, "", "", pos)
		case 1:
			if pd.Stage(rest[0]) != nil {
				return r.resolveChain(prefix, rest[0], "", pos)
			}
			return r.resolveChain(prefix, "", rest[0], pos)
		case 2:
			return r.resolveChain(prefix, rest[0], rest[1], pos)
		}
		return ir.ScheduleRef{}, decl.Errorf(decl.UnknownReferenceError, pos, prefix, "'%s' has too many parts after '%s'", strings.Join(names, "."), prefix)
	}
	return ir.ScheduleRef{}, decl.Errorf(decl.UnknownReferenceError, pos, "", "no pipeline named '%s'", names[0])
}
