package viz

import (
	"bytes"
	"fmt"
)

// --- Mermaid Static Generator ---

type MermaidStaticGenerator struct{}

func (g *MermaidStaticGenerator) Generate(title string, nodes []Node, edges []Edge) (string, error) {
	var b bytes.Buffer
	b.WriteString("graph LR;\n")
	b.WriteString(fmt.Sprintf("  subgraph dataflow [\"%s\"]\n", title))

	for _, node := range nodes {
		label := fmt.Sprintf("%s (%s)", node.Name, node.Type)
		if node.Alloc != "" {
			label += "<br/>" + node.Alloc
		}
		b.WriteString(fmt.Sprintf("    %s[\"%s\"];\n", node.ID, label))
	}

	for _, edge := range edges {
		if edge.Label == "" {
			b.WriteString(fmt.Sprintf("    %s --> %s;\n", edge.FromID, edge.ToID))
			continue
		}
		b.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s;\n", edge.FromID, edge.Label, edge.ToID))
	}
	b.WriteString("  end\n")
	return b.String(), nil
}
