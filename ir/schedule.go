package ir

import (
	"fmt"
	"strings"

	"github.com/panyam/fsl/decl"
)

type RefKind int

const (
	RefPipeline RefKind = iota
	RefStage
	RefDim
	RefRVar
)

func (k RefKind) String() string {
	return [...]string{"pipeline", "stage", "dim", "rvar"}[k]
}

// ScheduleRef names a (pipeline, stage, variable) triple by identifier.
// Stage is -1 and Var empty for whole-pipeline references; Var is empty for
// stage references.
type ScheduleRef struct {
	Pipeline string
	Stage    int
	Var      string
	Kind     RefKind
}

func PipelineScope(pipeline string) ScheduleRef {
	return ScheduleRef{Pipeline: pipeline, Stage: -1, Kind: RefPipeline}
}

func StageScope(pipeline string, stage int) ScheduleRef {
	return ScheduleRef{Pipeline: pipeline, Stage: stage, Kind: RefStage}
}

func (r ScheduleRef) String() string {
	out := r.Pipeline
	if r.Stage >= 0 {
		out += fmt.Sprintf("[%d]", r.Stage)
	}
	if r.Var != "" {
		out += "." + r.Var
	}
	return out
}

// RefString renders a reference with stage names, e.g. hist.upd.x.
func (p *Program) RefString(r ScheduleRef) string {
	parts := []string{r.Pipeline}
	if pd := p.Pipelines[r.Pipeline]; pd != nil && r.Stage >= 0 && r.Stage < len(pd.Stages) {
		parts = append(parts, pd.Stages[r.Stage].Name)
	}
	if r.Var != "" {
		parts = append(parts, r.Var)
	}
	return strings.Join(parts, ".")
}

// Directive is a resolved scheduling directive.
type Directive struct {
	Name    string
	Subject ScheduleRef
	Target  *ScheduleRef // compute_at and store_at
	Vars    []ScheduleRef
	Factor  int64
	Pos     decl.Location
	Source  string
}

// Schedule holds the resolved directives in source order.
type Schedule struct {
	Directives []*Directive
}

// For returns the directives whose subject is the named pipeline.
func (s *Schedule) For(pipeline string) (out []*Directive) {
	if s == nil {
		return nil
	}
	for _, d := range s.Directives {
		if d.Subject.Pipeline == pipeline {
			out = append(out, d)
		}
	}
	return
}
