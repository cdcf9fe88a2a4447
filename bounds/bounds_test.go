package bounds

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/lower"
	"github.com/panyam/fsl/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gta "gotest.tools/v3/assert"
)

func compile(t *testing.T, src string) *ir.Program {
	t.Helper()
	file, err := parser.Parse(strings.NewReader(src), "test.fsl")
	require.NoError(t, err)
	prog, err := lower.Lower(file)
	require.NoError(t, err)
	return prog
}

func span(lo, hi int64) Region { return Region{ir.Span(lo, hi)} }

const histSource = `
param width: Int(32) = 640;
param height: Int(32) = 480;
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
`

func TestHistogramAllocation(t *testing.T) {
	prog := compile(t, histSource)
	res, err := Infer(prog, Requests{{Pipeline: "hist", Region: span(0, 255)}})
	require.NoError(t, err)

	alloc, ok := res.Interval("hist", "i")
	require.True(t, ok)
	assert.Equal(t, ir.Span(0, 300), alloc)

	regions := res.Requested("hist")
	require.Len(t, regions, 1)
	assert.Equal(t, span(0, 255), regions[0].Region)
	assert.Equal(t, span(0, 300), regions[0].Allocation)
	assert.True(t, regions[0].Sliced)
	assert.True(t, regions[0].External)
	assert.True(t, regions[0].Allocation.Contains(regions[0].Region))

	assert.Equal(t, Region{ir.Span(0, 639), ir.Span(0, 479)}, res.Inputs["inp"])
}

func TestOutputsAreDefaultRequests(t *testing.T) {
	prog := compile(t, histSource)
	res, err := Infer(prog, nil)
	require.NoError(t, err)
	assert.Equal(t, span(0, 300), res.Allocations["hist"])

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"allocations":{"hist":{"i":[0,300]}}`)
	assert.Contains(t, string(data), `"sliced":true`)
}

func TestPurePipelinesAllocateTheRequest(t *testing.T) {
	prog := compile(t, `
input inp: Buffer(UInt(8), 1);
func f(x) = inp(x);
func g(x) = f(x - 1) + f(x + 1);
`)
	res, err := Infer(prog, Requests{{Pipeline: "g", Region: span(0, 9)}})
	require.NoError(t, err)

	g := res.Requested("g")
	require.Len(t, g, 1)
	assert.Equal(t, g[0].Region, g[0].Allocation)
	assert.False(t, g[0].Sliced)

	assert.Len(t, res.Requested("f"), 2)
	assert.Equal(t, span(-1, 10), res.Allocations["f"])
	assert.Equal(t, span(-1, 10), res.Inputs["inp"])
}

func TestAllocationsAreUnioned(t *testing.T) {
	prog := compile(t, `
func f(x) = x * 2;
func a(x) = f(x);
func b(x) = f(x + 10);
func c(x) = f(x);
`)
	res, err := Infer(prog, Requests{
		{Pipeline: "a", Region: span(0, 3)},
		{Pipeline: "b", Region: span(0, 3)},
		{Pipeline: "c", Region: span(0, 3)},
	})
	require.NoError(t, err)
	assert.Equal(t, span(0, 13), res.Allocations["f"])
	assert.Len(t, res.Requested("f"), 2)
	assert.Equal(t, 1, res.Stats.MemoHits)
	assert.Equal(t, 5, res.Stats.Regions)
}

func TestInitRunsOverTheAllocation(t *testing.T) {
	prog := compile(t, `
func g(x) = x;
func f(x) {
  def init() = g(x);
  def shift(res) { res[x + 1] = 2; }
}
`)
	res, err := Infer(prog, Requests{{Pipeline: "f", Region: span(0, 4)}})
	require.NoError(t, err)
	assert.Equal(t, span(0, 5), res.Allocations["f"])
	assert.Equal(t, span(0, 5), res.Allocations["g"])
}

func TestDataDependentIndexUsesValueRange(t *testing.T) {
	prog := compile(t, `
input inp: Buffer(UInt(8), 1);
func idx(x) = clamp(inp(x), 0, 15);
func h(i) {
  def upd(res) {
    for r in seq(0, 9) {
      res[idx(r)] += 1;
    }
  }
}
`)
	res, err := Infer(prog, Requests{{Pipeline: "h", Region: span(0, 3)}})
	require.NoError(t, err)
	assert.Equal(t, span(0, 15), res.Allocations["h"])
	assert.Equal(t, span(0, 9), res.Allocations["idx"])
	assert.Equal(t, span(0, 9), res.Inputs["inp"])
}

func TestRecursionIsRejectedFirst(t *testing.T) {
	for name, src := range map[string]string{
		"direct":     "func f(x) = f(x - 1);",
		"transitive": "func f(x) = g(x);\nfunc g(x) = h(x);\nfunc h(x) = f(x);",
	} {
		t.Run(name, func(t *testing.T) {
			prog := compile(t, src)
			res, err := Infer(prog, Requests{{Pipeline: "f", Region: span(0, 1)}})
			assert.Nil(t, res)
			gta.ErrorIs(t, err, decl.ErrRecursion)
			assert.ErrorContains(t, err, "cycle detected")
		})
	}
}

func TestUnsatisfiableBounds(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		req      Requests
		contains string
	}{
		{
			name:     "contradictory request",
			src:      "func f(x) = x;",
			req:      Requests{{Pipeline: "f", Region: span(5, 2)}},
			contains: "empty or contradictory",
		},
		{
			name:     "arity mismatch",
			src:      "func f(x, y) = x + y;",
			req:      Requests{{Pipeline: "f", Region: span(0, 2)}},
			contains: "has 2 dims, request has 1",
		},
		{
			name:     "empty reduction range",
			src:      "func f(x) {\n  def upd(res) { for r in seq(5, 2) { res[r] += 1; } }\n}",
			req:      Requests{{Pipeline: "f", Region: span(0, 9)}},
			contains: "empty range",
		},
		{
			name:     "unbounded allocation",
			src:      "param n: Int(32);\nfunc f(x) {\n  def upd(res) { for r in seq(n) { res[r] += 1; } }\n}",
			req:      Requests{{Pipeline: "f", Region: span(0, 9)}},
			contains: "unbounded along 'x'",
		},
		{
			name:     "unbounded request",
			src:      "func f(x) = x;",
			req:      Requests{{Pipeline: "f", Region: Region{ir.Unbounded()}}},
			contains: "is unbounded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := compile(t, tt.src)
			_, err := Infer(prog, tt.req)
			gta.ErrorIs(t, err, decl.ErrUnsatisfiableBounds)
			assert.ErrorContains(t, err, tt.contains)
		})
	}
}

func TestUnknownRequestedPipeline(t *testing.T) {
	prog := compile(t, "func f(x) = x;")
	_, err := Infer(prog, Requests{{Pipeline: "nope", Region: span(0, 1)}})
	gta.ErrorIs(t, err, decl.ErrUnknownReference)
}

func TestMaxRegions(t *testing.T) {
	prog := compile(t, "func f(x) = x;\nfunc g(x) = f(x) + f(x + 1) + f(x + 2);")
	_, err := Infer(prog, Requests{{Pipeline: "g", Region: span(0, 1)}}, WithMaxRegions(2))
	gta.ErrorIs(t, err, decl.ErrUnsatisfiableBounds)

	// Zero or less falls back to the default cap
	for _, n := range []int{0, -1} {
		res, err := Infer(prog, Requests{{Pipeline: "g", Region: span(0, 1)}}, WithMaxRegions(n))
		require.NoError(t, err, n)
		assert.Equal(t, span(0, 3), res.Allocations["f"])
	}
}
