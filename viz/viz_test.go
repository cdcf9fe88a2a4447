package viz

import (
	"testing"

	"github.com/panyam/fsl/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = `
input img: Buffer(UInt(8), 1);
pipe smooth(src: Buffer(UInt(8), 1)) -> out {
  func out(x) = src(x - 1) + src(x + 1);
}
instance s = smooth(img);
func h(i) {
  def upd(res) {
    for r in seq(0, 9) {
      res[s(r) % 4] += 1;
    }
  }
}
output h [0, 3];
`

func TestFromProgram(t *testing.T) {
	unit, err := loader.CompileSource(source, "flow.fsl", loader.CompileOptions{})
	require.NoError(t, err)

	nodes, edges := FromProgram(unit.Program, unit.Bounds)
	assert.Equal(t, []Node{
		{ID: "img", Name: "img", Type: "input", Alloc: "[-1, 10]"},
		{ID: "s__out", Name: "s.out(x)", Type: "pure", Alloc: "[0, 9]"},
		{ID: "h", Name: "h(i)", Type: "update", Alloc: "[0, 3]"},
	}, nodes)
	assert.Equal(t, []Edge{
		{FromID: "img", ToID: "s__out", Label: "reads"},
		{FromID: "s__out", ToID: "h"},
	}, edges)

	nodes, _ = FromProgram(unit.Program, nil)
	assert.Empty(t, nodes[0].Alloc)
}

func TestGenerators(t *testing.T) {
	nodes := []Node{{ID: "img", Name: "img", Type: "input"}, {ID: "f", Name: "f(x)", Type: "pure", Alloc: "[0, 9]"}}
	edges := []Edge{{FromID: "img", ToID: "f", Label: "reads"}}

	dot, err := (&DotGenerator{}).Generate("flow", nodes, edges)
	require.NoError(t, err)
	assert.Contains(t, dot, `"img" [label="img\n(input)", shape=box];`)
	assert.Contains(t, dot, `"f" [label="f(x)\n(pure)\n[0, 9]"];`)
	assert.Contains(t, dot, `"img" -> "f" [label="reads"];`)

	g, err := Generator("mermaid")
	require.NoError(t, err)
	mm, err := g.Generate("flow", nodes, edges)
	require.NoError(t, err)
	assert.Contains(t, mm, `f["f(x) (pure)<br/>[0, 9]"];`)
	assert.Contains(t, mm, `img -- "reads" --> f;`)

	_, err = Generator("svg")
	assert.Error(t, err)
}
