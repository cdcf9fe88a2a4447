package stages

import (
	"strings"
	"testing"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gtassert "gotest.tools/v3/assert"
)

func classifySource(t *testing.T, src, name string) (*Classified, error) {
	t.Helper()
	file, err := parser.Parse(strings.NewReader(src), "test.fsl")
	require.NoError(t, err)
	fn := file.Funcs[name]
	require.NotNil(t, fn, "func %s not found", name)
	return Classify(fn)
}

func TestClassifyPureFuncs(t *testing.T) {
	c, err := classifySource(t, "func blur_x(x, y) = (x + y) / 3;", "blur_x")
	require.NoError(t, err)
	assert.True(t, c.IsPure())
	assert.Equal(t, []string{"x", "y"}, c.Dims)
	assert.Equal(t, Init, c.Init().Kind)
	assert.Equal(t, "((x + y) / 3)", c.Init().Value.String())

	c, err = classifySource(t, "func g(x) {\n let a = x * 2;\n let b = a + 1;\n return a + b;\n}", "g")
	require.NoError(t, err)
	require.Len(t, c.Init().Lets, 2)
	assert.Equal(t, "(a + b)", c.Init().Value.String())
}

func TestClassifyMultiStage(t *testing.T) {
	src := `
func hist(i) {
  def init() = 0;
  def upd(res) {
    for y in seq(10) { for x in seq(10) { res[x + y] += 1; } }
  }
  @update def twice(res) { for r in seq(4) { res[r] *= 2; } }
}`
	c, err := classifySource(t, src, "hist")
	require.NoError(t, err)
	require.Len(t, c.Stages, 3)
	assert.False(t, c.IsPure())

	init := c.Init()
	assert.Equal(t, "init", init.Name)
	assert.False(t, init.Implicit)
	assert.NotNil(t, init.Def)

	ups := c.Updates()
	require.Len(t, ups, 2)
	assert.Equal(t, []string{"upd", "twice"}, []string{ups[0].Name, ups[1].Name})
	for i, u := range ups {
		assert.Equal(t, Update, u.Kind)
		assert.Equal(t, "res", u.Result)
		assert.Equal(t, []string{"i"}, u.Inputs)
		assert.Equal(t, i+1, u.Index)
	}
}

func TestClassifyImplicitInits(t *testing.T) {
	t.Run("zero init", func(t *testing.T) {
		c, err := classifySource(t, "func blur(x, y) {\n def upd(res) { for i in seq(-1, 1) { res[x, y] += i; } }\n}", "blur")
		require.NoError(t, err)
		require.Len(t, c.Stages, 2)
		assert.True(t, c.Init().Implicit)
		assert.Equal(t, "0", c.Init().Value.String())
	})
	t.Run("buffer default", func(t *testing.T) {
		c, err := classifySource(t, "func blur(x, y) {\n def upd(res = 7) { for i in seq(-1, 1) { res[x, y] += i; } }\n}", "blur")
		require.NoError(t, err)
		assert.True(t, c.Init().FromDefault)
		assert.Equal(t, "7", c.Init().Value.String())
		assert.Equal(t, "upd", c.Updates()[0].Name)
	})
	t.Run("update without loops", func(t *testing.T) {
		c, err := classifySource(t, "func iir(x, y) {\n def init() = undef(Float(32));\n def top(buf) { buf[x, 0] = x; }\n}", "iir")
		require.NoError(t, err)
		assert.Equal(t, "buf", c.Updates()[0].Result)
	})
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		kind     decl.ErrorKind
		contains string
	}{
		{
			"init after update",
			"func f(x) {\n def upd(res) { res[x] = 1; }\n def init() = 0;\n}",
			decl.StageOrderError, "after an update",
		},
		{
			"two inits",
			"func f(x) {\n def a() = 0;\n def b() = 1;\n}",
			decl.StageOrderError, "more than one init",
		},
		{
			"init plus default",
			"func f(x) {\n def init() = 0;\n def upd(res = 1) { res[x] = 1; }\n}",
			decl.StageOrderError, "carries a default",
		},
		{
			"pure after update",
			"func f(x) {\n def upd(res) { res[x] = 1; }\n @pure def p() { return 1; }\n}",
			decl.StageOrderError, "after an update",
		},
		{
			"update param names a dim",
			"func f(x) {\n def init() = 0;\n def upd(x) { x[0] = 1; }\n}",
			decl.SyntaxViolation, "names a dimension",
		},
		{
			"update with two params",
			"func f(x) {\n def init() = 0;\n def upd(a, b) { a[x] = b; }\n}",
			decl.SyntaxViolation, "exactly one result buffer",
		},
		{
			"update never stores",
			"func f(x) {\n def init() = 0;\n def upd(res) = 3;\n}",
			decl.SyntaxViolation, "never stores",
		},
		{
			"store into another buffer",
			"func f(x) {\n def init() = 0;\n def upd(res) { other[x] = 1; }\n}",
			decl.SyntaxViolation, "may only store into 'res'",
		},
		{
			"loop in pure func",
			"func f(x) {\n for r in seq(3) { let t = r; }\n return x;\n}",
			decl.SyntaxViolation, "only lets may precede",
		},
		{
			"duplicate dims",
			"func f(x, x) = x;",
			decl.SyntaxViolation, "declared twice",
		},
		{
			"duplicate stages",
			"func f(x) {\n def init() = 0;\n def upd(res) { res[x] = 1; }\n def upd(res) { res[x] = 2; }\n}",
			decl.SyntaxViolation, "defined twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classifySource(t, tt.src, "f")
			gtassert.ErrorContains(t, err, tt.contains)
			kind, ok := decl.KindOf(err)
			gtassert.Assert(t, ok)
			gtassert.Equal(t, tt.kind, kind)
		})
	}
}
