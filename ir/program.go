package ir

import (
	"sort"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/internal/graph"
)

// Param is a scalar parameter. Value is nil when nothing fixes it.
type Param struct {
	Name  string
	Type  ScalarType
	Value Expr
}

// Input is an input buffer. Shape entries are nil for unknown extents and
// RangeMin/RangeMax are nil when the element type bounds the values.
type Input struct {
	Name     string
	Elem     ScalarType
	NDims    int
	Shape    []Expr
	RangeMin Expr
	RangeMax Expr
}

// OutputRequest is a default region requested of a pipeline.
type OutputRequest struct {
	Pipeline string
	Bounds   [][2]Expr
	Pos      decl.Location
}

// Instance records how a pipe instance was flattened.
type Instance struct {
	Name      string
	Pipe      string
	Outputs   map[string]string // output name -> pipeline
	Order     []string          // output names in declaration order
	Pipelines []string          // every pipeline it produced
}

// Program is the lowered compilation unit.
type Program struct {
	Pipelines map[string]*PipelineDef
	Order     []string // declaration order, instances flattened in place
	Params    map[string]*Param
	Inputs    map[string]*Input
	Instances map[string]*Instance
	Outputs   []*OutputRequest

	// Directives of schedule blocks, resolved by the resolve package
	Directives []*decl.CallExpr
	Schedule   *Schedule
}

func NewProgram() *Program {
	return &Program{
		Pipelines: map[string]*PipelineDef{},
		Params:    map[string]*Param{},
		Inputs:    map[string]*Input{},
		Instances: map[string]*Instance{},
	}
}

// AddPipeline registers a pipeline and keeps its declaration order.
func (p *Program) AddPipeline(pd *PipelineDef) {
	if _, ok := p.Pipelines[pd.Name]; !ok {
		p.Order = append(p.Order, pd.Name)
	}
	p.Pipelines[pd.Name] = pd
}

func (p *Program) Pipeline(name string) *PipelineDef { return p.Pipelines[name] }

// CallGraph has an edge from every pipeline to each pipeline it calls.
func (p *Program) CallGraph() *graph.Graph[string] {
	g := graph.New[string]()
	for _, name := range p.Order {
		g.AddNode(name)
		for _, callee := range p.Pipelines[name].Callees() {
			g.AddEdge(name, callee)
		}
	}
	return g
}

// Consumers returns the pipelines that call name, in declaration order.
func (p *Program) Consumers(name string) []string {
	return p.CallGraph().Predecessors(name)
}

// ParamNames returns the param names sorted.
func (p *Program) ParamNames() []string {
	out := make([]string, 0, len(p.Params))
	for n := range p.Params {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// InputNames returns the input names sorted.
func (p *Program) InputNames() []string {
	out := make([]string, 0, len(p.Inputs))
	for n := range p.Inputs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
