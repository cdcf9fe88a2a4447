package viz

import (
	"bytes"
	"fmt"
)

// --- DOT Generator ---

type DotGenerator struct{}

func (g *DotGenerator) Generate(title string, nodes []Node, edges []Edge) (string, error) {
	var b bytes.Buffer
	b.WriteString(fmt.Sprintf("digraph \"%s\" {\n", title))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString(fmt.Sprintf("  label=\"Dataflow of %s\";\n", title))
	b.WriteString("  node [shape=record];\n")

	for _, node := range nodes {
		shape := ""
		if node.Type == "input" {
			shape = ", shape=box"
		}
		label := fmt.Sprintf("%s\\n(%s)", node.Name, node.Type)
		if node.Alloc != "" {
			label += "\\n" + node.Alloc
		}
		b.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\"%s];\n", node.ID, label, shape))
	}

	for _, edge := range edges {
		b.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [label=\"%s\"];\n", edge.FromID, edge.ToID, edge.Label))
	}
	b.WriteString("}\n")
	return b.String(), nil
}
