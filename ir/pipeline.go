package ir

import (
	"github.com/panyam/fsl/decl"
)

// DimensionVar is a pure dimension of one pipeline. Two pipelines never
// share a DimensionVar even when the names match.
type DimensionVar struct {
	Pipeline string
	Name     string
	Index    int
}

// RVar is one reduction variable. Min and Max are inclusive bounds that may
// only use constants, params, input extents and outer RVars.
type RVar struct {
	Name  string
	Index int
	Min   Expr
	Max   Expr
	Pos   decl.Location
}

// ReductionDomain holds the reduction vars of an update, outermost first.
type ReductionDomain struct {
	Vars []*RVar
}

func (r *ReductionDomain) Var(name string) *RVar {
	if r == nil {
		return nil
	}
	for _, v := range r.Vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Store writes the result buffer: Buffer[Indices] Op Value.
type Store struct {
	Op      string // "=", "+=", "-=", "*=", "/="
	Indices []Expr
	Value   Expr
	Pos     decl.Location
}

// Accumulates is true for compound stores, which read the slot they write.
func (s *Store) Accumulates() bool { return s.Op != "=" }

type StageKind int

const (
	InitStage StageKind = iota
	UpdateStage
)

func (k StageKind) String() string {
	if k == InitStage {
		return "init"
	}
	return "update"
}

// Stage is the Init or one Update of a pipeline.
type Stage struct {
	Kind  StageKind
	Name  string
	Index int
	Pos   decl.Location

	// Init: the value at each point of the pipeline's dims
	Value Expr

	// Update: ordered stores into the result buffer over an optional domain
	Result string
	Stores []*Store
	Domain *ReductionDomain
	Inputs []*DimensionVar

	Implicit    bool
	FromDefault bool
}

// Vars lists the names a schedule can refer to in this stage: reduction
// vars first, then the pipeline's dims.
func (s *Stage) Vars(p *PipelineDef) []string {
	var out []string
	if s.Domain != nil {
		for _, r := range s.Domain.Vars {
			out = append(out, r.Name)
		}
	}
	for _, d := range p.Dims {
		out = append(out, d.Name)
	}
	return out
}

// PipelineDef is a named computation over its dims, built from one func.
type PipelineDef struct {
	Name   string
	Dims   []*DimensionVar
	Stages []*Stage
	Pos    decl.Location
	File   string

	// Set for pipelines flattened out of a pipe instance
	Instance string
	Pipe     string
}

func (p *PipelineDef) Init() *Stage { return p.Stages[0] }

func (p *PipelineDef) Updates() []*Stage { return p.Stages[1:] }

func (p *PipelineDef) IsPure() bool { return len(p.Stages) == 1 }

// FinalStage is the stage whose loops produce the pipeline's value.
func (p *PipelineDef) FinalStage() *Stage { return p.Stages[len(p.Stages)-1] }

func (p *PipelineDef) Dim(name string) *DimensionVar {
	for _, d := range p.Dims {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (p *PipelineDef) DimNames() []string {
	out := make([]string, len(p.Dims))
	for i, d := range p.Dims {
		out[i] = d.Name
	}
	return out
}

func (p *PipelineDef) Stage(name string) *Stage {
	for _, s := range p.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Callees lists the pipelines read by any stage, in order of first call.
func (p *PipelineDef) Callees() []string {
	seen := map[string]bool{}
	var out []string
	add := func(e Expr) {
		for _, c := range Callees(e) {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	for _, s := range p.Stages {
		add(s.Value)
		if s.Domain != nil {
			for _, r := range s.Domain.Vars {
				add(r.Min)
				add(r.Max)
			}
		}
		for _, st := range s.Stores {
			for _, idx := range st.Indices {
				add(idx)
			}
			add(st.Value)
		}
	}
	return out
}
