package console

import (
	"bytes"
	"testing"

	"github.com/panyam/fsl/bounds"
	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gta "gotest.tools/v3/assert"
)

const histSource = `
param width: Int(32) = 64;
param height: Int(32) = 48;
input inp: Buffer(UInt(16), 2) shape [width, height] range [0, 300];

func hist(i) {
  def init() = 0;
  def upd(res) {
    for y in seq(0, height - 1) {
      for x in seq(0, width - 1) {
        res[inp(x, y)] += 1;
      }
    }
  }
}

output hist [0, 255];
schedule {
  hist.upd.parallel("y");
}
`

func newSession(t *testing.T) *Session {
	t.Helper()
	l := loader.NewLoader(nil, loader.NewMemoryResolver(map[string]string{"hist.fsl": histSource}), 10)
	s := NewSession(l, loader.CompileOptions{})
	require.NoError(t, s.Load("hist.fsl"))
	return s
}

func TestSessionLoad(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, "hist.fsl", s.Path())
	assert.Equal(t, []string{"hist"}, s.Pipelines())
	assert.Equal(t, bounds.Region{ir.Span(0, 300)}, s.Unit().Bounds.Allocations["hist"])

	// A failed load keeps the previous unit
	prev := s.Unit()
	assert.Error(t, s.Load("missing.fsl"))
	assert.Same(t, prev, s.Unit())
	assert.Equal(t, "hist.fsl", s.Path())
}

func TestSessionSetAndRequest(t *testing.T) {
	s := newSession(t)

	require.NoError(t, s.Set("width", 8))
	assert.Equal(t, bounds.Region{ir.Span(0, 7), ir.Span(0, 47)}, s.Unit().Bounds.Inputs["inp"])

	err := s.Set("depth", 3)
	gta.ErrorIs(t, err, decl.ErrUnknownReference)
	assert.Equal(t, bounds.Region{ir.Span(0, 7), ir.Span(0, 47)}, s.Unit().Bounds.Inputs["inp"])

	require.NoError(t, s.Request("hist=0:15"))
	rb := s.Unit().Bounds.Requested("hist")
	require.Len(t, rb, 1)
	assert.Equal(t, bounds.Region{ir.Span(0, 15)}, rb[0].Region)
	assert.Equal(t, bounds.Region{ir.Span(0, 300)}, rb[0].Allocation)

	// Params survive a reload
	require.NoError(t, s.Reload())
	assert.Equal(t, bounds.Region{ir.Span(0, 7), ir.Span(0, 47)}, s.Unit().Bounds.Inputs["inp"])

	assert.Error(t, s.Request("hist"))
	gta.ErrorIs(t, s.Request("hist=0:1,0:1"), decl.ErrUnsatisfiableBounds)
}

func TestSessionResolve(t *testing.T) {
	s := newSession(t)
	ref, err := s.Resolve("hist.upd.x", "")
	require.NoError(t, err)
	assert.Equal(t, ir.RefRVar, ref.Kind)

	ref, err = s.Resolve("y", "hist")
	require.NoError(t, err)
	assert.Equal(t, ir.ScheduleRef{Pipeline: "hist", Stage: 1, Var: "y", Kind: ir.RefRVar}, ref)

	_, err = s.Resolve("x", "hist.upd.x")
	assert.ErrorContains(t, err, "must name a pipeline or a stage")
}

func TestExecute(t *testing.T) {
	s := newSession(t)
	tests := []struct {
		line     string
		contains string
	}{
		{"help", "resolve <ref> [scope]"},
		{"schedule", "hist.upd.parallel(hist.upd.y)"},
		{"resolve i hist", "hist.upd.i (dim)"},
		{"describe hist", "update upd(res)"},
		{"bounds", "1 regions, 0 memo hits"},
		{"", ""},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		require.NoError(t, s.Execute(&out, tt.line), tt.line)
		assert.Contains(t, out.String(), tt.contains, tt.line)
	}

	var out bytes.Buffer
	assert.ErrorContains(t, s.Execute(&out, "explode"), "unknown command 'explode'")
	assert.ErrorContains(t, s.Execute(&out, "set width"), "usage: set")
	assert.ErrorContains(t, s.Execute(&out, "set width wide"), "invalid value")
	assert.Contains(t, Commands(), "request")
}

func TestCommandsNeedALoadedFile(t *testing.T) {
	s := NewSession(loader.NewLoader(nil, loader.NewMemoryResolver(nil), 10), loader.CompileOptions{})
	for _, line := range []string{"reload", "set width 3", "request", "bounds", "describe", "resolve x", "schedule"} {
		var out bytes.Buffer
		assert.ErrorContains(t, s.Execute(&out, line), "no file loaded", line)
	}
	assert.Nil(t, s.Pipelines())
}
