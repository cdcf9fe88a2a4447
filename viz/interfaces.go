// package viz renders the dataflow of a compiled program as a static diagram.
package viz

import (
	"fmt"
	"strings"

	"github.com/panyam/fsl/bounds"
	"github.com/panyam/fsl/ir"
)

// Node is an input buffer or a pipeline.
type Node struct {
	ID    string // Unique identifier for the node
	Name  string // Display name
	Type  string // "input", "pure" or "update"
	Alloc string // Inferred allocation, empty when not computed
}

// Edge runs from a producer to the pipeline that reads it.
type Edge struct {
	FromID string
	ToID   string
	Label  string
}

// StaticDiagramGenerator defines the interface for creating static dataflow diagrams.
type StaticDiagramGenerator interface {
	Generate(title string, nodes []Node, edges []Edge) (string, error)
}

// Generator returns the generator for a format name.
func Generator(format string) (StaticDiagramGenerator, error) {
	switch format {
	case "dot":
		return &DotGenerator{}, nil
	case "mermaid":
		return &MermaidStaticGenerator{}, nil
	}
	return nil, fmt.Errorf("unknown diagram format '%s', use dot or mermaid", format)
}

// FromProgram builds the dataflow graph of prog. res may be nil; when set
// nodes carry their allocation and input edges their footprint.
func FromProgram(prog *ir.Program, res *bounds.Result) (nodes []Node, edges []Edge) {
	for _, name := range prog.InputNames() {
		n := Node{ID: nodeID(name), Name: name, Type: "input"}
		if res != nil {
			if r, ok := res.Inputs[name]; ok {
				n.Alloc = r.String()
			}
		}
		nodes = append(nodes, n)
	}
	for _, name := range prog.Order {
		pd := prog.Pipelines[name]
		n := Node{ID: nodeID(name), Name: fmt.Sprintf("%s(%s)", name, strings.Join(pd.DimNames(), ", ")), Type: "pure"}
		if !pd.IsPure() {
			n.Type = "update"
		}
		if res != nil {
			if r, ok := res.Allocations[name]; ok {
				n.Alloc = r.String()
			}
		}
		nodes = append(nodes, n)

		for _, callee := range pd.Callees() {
			edges = append(edges, Edge{FromID: nodeID(callee), ToID: n.ID})
		}
		for _, input := range inputsRead(pd) {
			edges = append(edges, Edge{FromID: nodeID(input), ToID: n.ID, Label: "reads"})
		}
	}
	return
}

func inputsRead(pd *ir.PipelineDef) []string {
	seen := map[string]bool{}
	var out []string
	visit := func(e ir.Expr) {
		ir.Walk(e, func(x ir.Expr) {
			if c, ok := x.(*ir.InputCall); ok && !seen[c.Input] {
				seen[c.Input] = true
				out = append(out, c.Input)
			}
		})
	}
	for _, s := range pd.Stages {
		visit(s.Value)
		for _, st := range s.Stores {
			for _, idx := range st.Indices {
				visit(idx)
			}
			visit(st.Value)
		}
	}
	return out
}

// nodeID makes names such as b.blur_x safe for both formats.
func nodeID(name string) string {
	return strings.ReplaceAll(name, ".", "__")
}
