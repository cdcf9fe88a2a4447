package lower

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gta "gotest.tools/v3/assert"
)

func lowerSource(t *testing.T, src string, opts ...Option) (*ir.Program, error) {
	t.Helper()
	file, err := parser.Parse(strings.NewReader(src), "test.fsl")
	require.NoError(t, err)
	return Lower(file, opts...)
}

const histSource = `
param width: Int(32) = 640;
input inp: Buffer(UInt(16), 2) range [0, 300];

func hist(i) {
  def init() = 0;
  def upd(res) {
    for y in seq(inp.height()) {
      for x in seq(0, width - 1) {
        res[inp(x, y)] += 1;
      }
    }
  }
}

output hist [0, 255];
schedule {
  hist.upd.vectorize("x", 8);
}
`

func TestLowerHistogram(t *testing.T) {
	prog, err := lowerSource(t, histSource)
	require.NoError(t, err)

	assert.Equal(t, []string{"hist"}, prog.Order)
	hist := prog.Pipeline("hist")
	require.NotNil(t, hist)
	assert.Equal(t, []string{"i"}, hist.DimNames())
	require.Len(t, hist.Stages, 2)
	assert.Equal(t, "0", hist.Init().Value.String())

	upd := hist.Stages[1]
	assert.Equal(t, ir.UpdateStage, upd.Kind)
	assert.Equal(t, "res", upd.Result)
	assert.Equal(t, hist.Dims, upd.Inputs)
	require.NotNil(t, upd.Domain)
	assert.Equal(t, "{y in [0, (inp.dim(1) - 1)], x in [0, (width - 1)]}", upd.Domain.String())

	require.Len(t, upd.Stores, 1)
	store := upd.Stores[0]
	assert.Equal(t, "+=", store.Op)
	assert.True(t, store.Accumulates())
	call, ok := store.Indices[0].(*ir.InputCall)
	require.True(t, ok)
	assert.Equal(t, "inp", call.Input)
	_, isRVar := call.Args[0].(*ir.RVarRef)
	assert.True(t, isRVar)

	in := prog.Inputs["inp"]
	assert.Equal(t, 2, in.NDims)
	assert.Equal(t, "300", in.RangeMax.String())
	assert.Equal(t, "640", prog.Params["width"].Value.String())

	require.Len(t, prog.Outputs, 1)
	assert.Equal(t, "hist", prog.Outputs[0].Pipeline)
	require.Len(t, prog.Directives, 1)
	assert.Equal(t, `hist.upd.vectorize("x", 8)`, prog.Directives[0].String())
}

func TestLowerPureWithLets(t *testing.T) {
	prog, err := lowerSource(t, `
input inp: Buffer(Float(32), 2);
func blur(x, y) {
  let a = inp(x, y);
  let b = a * 2;
  return clamp(b + a, 0, 1);
}
func twice(x, y) = blur(x + 1, y) - blur(x, y);
`)
	require.NoError(t, err)
	blur := prog.Pipeline("blur")
	assert.True(t, blur.IsPure())
	assert.Equal(t, "clamp(((inp(x, y) * 2) + inp(x, y)), 0, 1)", blur.Init().Value.String())
	assert.Equal(t, []string{"blur"}, prog.Pipeline("twice").Callees())
	assert.Equal(t, []string{"twice"}, prog.Consumers("blur"))
}

func TestLowerDimsAreNotShared(t *testing.T) {
	prog, err := lowerSource(t, `
func f(x) = x;
func g(x) = f(x) + x;
`)
	require.NoError(t, err)
	f, g := prog.Pipeline("f"), prog.Pipeline("g")
	assert.NotSame(t, f.Dims[0], g.Dims[0])
	assert.Equal(t, "g", g.Dims[0].Pipeline)
}

func TestLowerReductionForms(t *testing.T) {
	prog, err := lowerSource(t, `
param n: Int(32) = 4;
input lut: Buffer(UInt(8), 1);
func cdf(i) {
  def init() = undef(Float(32));
  def first(res) { res[0] = lut(0); }
  def scan(res) {
    for i in seq(1, 255) {
      res[i] = res(i - 1) + lut(i);
    }
  }
}
func tri(x) {
  def sum(res = 1) {
    for r in seq(n) {
      for s in seq(r, n * 2) {
        let t = r + s;
        res[x] += t;
      }
    }
  }
}
`)
	require.NoError(t, err)

	cdf := prog.Pipeline("cdf")
	assert.Equal(t, "undef(Float(32))", cdf.Init().Value.String())
	assert.Nil(t, cdf.Stage("first").Domain)
	scan := cdf.Stage("scan")
	assert.Equal(t, "{i in [1, 255]}", scan.Domain.String())
	// The loop var shadows the dim
	_, ok := scan.Stores[0].Indices[0].(*ir.RVarRef)
	assert.True(t, ok)
	assert.Equal(t, "(res[(i - 1)] + lut(i))", scan.Stores[0].Value.String())

	tri := prog.Pipeline("tri")
	require.Len(t, tri.Stages, 2)
	assert.True(t, tri.Init().FromDefault)
	assert.Equal(t, "1", tri.Init().Value.String())
	assert.Equal(t, "{r in [0, (n - 1)], s in [r, (n * 2)]}", tri.Stages[1].Domain.String())
	assert.Equal(t, "(r + s)", tri.Stages[1].Stores[0].Value.String())
}

func TestLowerConstantFolding(t *testing.T) {
	prog, err := lowerSource(t, `
func f(x) {
  def upd(res) {
    for r in seq(10) { res[x] += r; }
  }
}
`)
	require.NoError(t, err)
	f := prog.Pipeline("f")
	assert.True(t, f.Init().Implicit)
	assert.Equal(t, "init", f.Init().Name)
	assert.Equal(t, "{r in [0, 9]}", f.Stages[1].Domain.String())
}

func TestLowerOverrides(t *testing.T) {
	prog, err := lowerSource(t, `
param width: Int(32) = 640;
param half: Int(32) = width / 2;
input inp: Buffer(UInt(8), 2) shape [width, 480];
func f(x, y) = inp(x, y);
`, WithParam("width", 100), WithInputShape("inp", 10, 20), WithInputRange("inp", 0, 9))
	require.NoError(t, err)
	assert.Equal(t, "100", prog.Params["width"].Value.String())
	assert.Equal(t, "(width / 2)", prog.Params["half"].Value.String())
	assert.Equal(t, "input inp: Buffer(UInt(8), 2) shape [10, 20] range [0, 9]", prog.Inputs["inp"].String())

	_, err = lowerSource(t, "param a: Int(32);", WithParam("b", 1))
	assert.ErrorIs(t, err, decl.ErrUnknownReference)
}

const pipeSource = `
input img: Buffer(UInt(8), 2);
pipe brighten(offset: Int(32) = 1, src: Buffer(UInt(8), 2)) -> brighter {
  func brighter(x, y) = src(x, y) + offset;
}
pipe split(src: Func) -> lo, hi {
  func lo(x, y) = min(src(x, y), 128);
  func hi(x, y) = max(src(x, y), 128);
}
pipe twice(src: Buffer(UInt(8), 2)) {
  instance first = brighten(src = src);
  func again(x, y) = first(x, y) + 1;
  return again;
}
instance b = brighten(10, src = img);
instance t = twice(img);
instance s = split(b);
func out(x, y) = b(x, y) + t(x, y) + s.lo(x, y);
`

func TestLowerPipeInstances(t *testing.T) {
	prog, err := lowerSource(t, pipeSource)
	require.NoError(t, err)

	expected := []string{"b.brighter", "t.first.brighter", "t.again", "s.lo", "s.hi", "out"}
	if diff := cmp.Diff(expected, prog.Order); diff != "" {
		t.Errorf("pipeline order mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "(img(x, y) + 10)", prog.Pipeline("b.brighter").Init().Value.String())
	assert.Equal(t, "(img(x, y) + 1)", prog.Pipeline("t.first.brighter").Init().Value.String())
	assert.Equal(t, "(t.first.brighter(x, y) + 1)", prog.Pipeline("t.again").Init().Value.String())
	assert.Equal(t, "min(b.brighter(x, y), 128)", prog.Pipeline("s.lo").Init().Value.String())
	assert.Equal(t, "((b.brighter(x, y) + t.again(x, y)) + s.lo(x, y))", prog.Pipeline("out").Init().Value.String())

	b := prog.Instances["b"]
	require.NotNil(t, b)
	assert.Equal(t, "brighten", b.Pipe)
	assert.Equal(t, map[string]string{"brighter": "b.brighter"}, b.Outputs)
	assert.Equal(t, "t", prog.Pipeline("t.again").Instance)
	assert.Equal(t, "twice", prog.Pipeline("t.again").Pipe)
	assert.NotNil(t, prog.Instances["t.first"])
}

func TestLowerErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		kind     decl.ErrorKind
		contains string
	}{
		{"unknown identifier", "func f(x) = x + y;", decl.UnknownReferenceError, "unknown identifier 'y'"},
		{"unknown func", "func f(x) = g(x);", decl.UnknownReferenceError, "unknown func 'g'"},
		{"builtin arity", "func f(x) = min(x);", decl.SyntaxViolation, "min takes 2 arguments"},
		{"call arity", "func f(x) = x;\nfunc g(x, y) = f(x, y);", decl.SyntaxViolation, "'f' takes 1 dims"},
		{"input arity", "input a: Buffer(UInt(8), 2);\nfunc f(x) = a(x);", decl.SyntaxViolation, "has 2 dims"},
		{"buffer used as value", "input a: Buffer(UInt(8), 1);\nfunc f(x) = a + x;", decl.SyntaxViolation, "is a buffer"},
		{
			"loop bound uses dim",
			"func f(x) {\n  def upd(res) { for r in seq(x) { res[r] += 1; } }\n}",
			decl.UnboundedDomainError, "depends on 'x'",
		},
		{
			"loop bound calls a func",
			"func g(x) = x;\nfunc f(x) {\n  def upd(res) { for r in seq(g(0)) { res[r] += 1; } }\n}",
			decl.UnboundedDomainError, "depends on 'g'",
		},
		{
			"loop bound uses inner var",
			"func f(x) {\n  def upd(res) { for r in seq(s) { for s in seq(3) { res[r] += s; } } }\n}",
			decl.UnboundedDomainError, "depends on 's'",
		},
		{
			"loop bound loads the result",
			"func f(x) {\n  def upd(res) { for r in seq(res(0)) { res[r] += 1; } }\n}",
			decl.UnboundedDomainError, "depends on",
		},
		{
			"sibling loops",
			"func f(x) {\n  def upd(res) {\n    for r in seq(3) { res[r] += 1; }\n    for s in seq(3) { res[s] += 1; }\n  }\n}",
			decl.SyntaxViolation, "perfectly nested",
		},
		{
			"statement between headers",
			"func f(x) {\n  def upd(res) {\n    for r in seq(3) {\n      res[r] = 0;\n      for s in seq(3) { res[s] += 1; }\n    }\n  }\n}",
			decl.SyntaxViolation, "perfectly nested",
		},
		{
			"store arity",
			"func f(x) {\n  def upd(res) { res[x, 0] = 1; }\n}",
			decl.SyntaxViolation, "store uses 2 indices",
		},
		{
			"index a func",
			"func g(x) = x;\nfunc f(x) = g[x];",
			decl.SyntaxViolation, "only the result buffer",
		},
		{
			"param cycle",
			"param a: Int(32) = b;\nparam b: Int(32) = a + 1;",
			decl.RecursionError, "cycle detected",
		},
		{
			"pipe instantiates itself",
			"pipe p(a: Int(32)) -> f {\n  instance q = p(a);\n  func f(x) = x;\n}",
			decl.RecursionError, "p -> p",
		},
		{
			"missing pipe argument",
			"pipe p(a: Int(32)) -> f { func f(x) = x + a; }\ninstance i = p();",
			decl.UnknownReferenceError, "missing argument for parameter 'a'",
		},
		{
			"extra pipe argument",
			"pipe p(a: Int(32)) -> f { func f(x) = x + a; }\ninstance i = p(1, 2);",
			decl.SyntaxViolation, "takes 1 arguments",
		},
		{
			"unknown named argument",
			"pipe p(a: Int(32)) -> f { func f(x) = x + a; }\ninstance i = p(b = 1);",
			decl.SyntaxViolation, "no parameter 'b'",
		},
		{
			"unknown pipe",
			"instance i = nope(1);",
			decl.UnknownReferenceError, "no pipe named 'nope'",
		},
		{
			"multi output instance called directly",
			"pipe p(a: Int(32)) -> f, g {\n  func f(x) = x + a;\n  func g(x) = x - a;\n}\ninstance i = p(1);\nfunc h(x) = i(x);",
			decl.AmbiguousReferenceError, "has 2 outputs",
		},
		{
			"missing instance output",
			"pipe p(a: Int(32)) -> f { func f(x) = x + a; }\ninstance i = p(1);\nfunc h(x) = i.g(x);",
			decl.UnknownReferenceError, "no output 'g'",
		},
		{
			"buffer dims mismatch",
			"input img: Buffer(UInt(8), 1);\npipe p(src: Buffer(UInt(8), 2)) -> f { func f(x, y) = src(x, y); }\ninstance i = p(img);",
			decl.SyntaxViolation, "expects 2 dims",
		},
		{
			"unknown output",
			"output nope [0, 1];",
			decl.UnknownReferenceError, "no func or instance named 'nope'",
		},
		{
			"call in param default",
			"func f(x) = x;\nparam a: Int(32) = f(1);",
			decl.SyntaxViolation, "constant expression",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lowerSource(t, tt.src)
			gta.ErrorContains(t, err, tt.contains)
			kind, ok := decl.KindOf(err)
			gta.Assert(t, ok)
			gta.Equal(t, tt.kind, kind)
			var ce *decl.CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "test.fsl", ce.File)
		})
	}
}
