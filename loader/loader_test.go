package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/panyam/fsl/bounds"
	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/lower"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gta "gotest.tools/v3/assert"
)

var files = map[string]string{
	"lib/common.fsl": `
param width: Int(32) = 16;
input inp: Buffer(UInt(8), 1) shape [width];
`,
	"lib/blur.fsl": `
import "common.fsl";
func blur(x) = inp(x - 1) + inp(x) + inp(x + 1);
`,
	"main.fsl": `
import "lib/blur.fsl";
import "lib/common.fsl";
func out(x) = blur(x) / 3;
output out [0, width - 1];
schedule {
  blur.compute_at(out.x);
}
`,
	"cycle/a.fsl": `import "b.fsl";
func a(x) = x;`,
	"cycle/b.fsl": `import "a.fsl";
func b(x) = x;`,
	"dup.fsl": `import "lib/common.fsl";
param width: Int(32) = 8;`,
	"broken.fsl": `func f(x) = ;`,
	"lib/bad.fsl": `func bad(x) {
  def upd(res) {
    for r in seq(x) {
      res[r] += 1;
    }
  }
}`,
	"usebad.fsl": `import "lib/bad.fsl";
output bad [0, 3];`,
}

func TestLoadMergesImportsFirst(t *testing.T) {
	l := NewLoader(nil, NewMemoryResolver(files), 10)
	res, err := l.LoadRootFile("main.fsl")
	require.NoError(t, err)

	assert.Equal(t, []string{"lib/common.fsl", "lib/blur.fsl", "main.fsl"}, res.Order)
	assert.Len(t, res.LoadedFiles, 3)
	assert.Same(t, res.LoadedFiles["main.fsl"], res.RootFile)
	assert.Equal(t, []string{"width", "inp", "blur", "out"}, res.Merged.Order)
	assert.Len(t, res.Merged.Schedules, 1)
	assert.Empty(t, res.Merged.Imports)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		depth    int
		kind     error
		contains string
	}{
		{"circular import", "cycle/a.fsl", 10, decl.ErrRecursion, "circular import"},
		{"duplicate across files", "dup.fsl", 10, decl.ErrSyntaxViolation, "'width' is already defined"},
		{"syntax", "broken.fsl", 10, decl.ErrSyntaxViolation, "broken.fsl"},
		{"max depth", "main.fsl", 2, decl.ErrRecursion, "lib/blur.fsl:2:1"},
		{"missing file", "nope.fsl", 10, nil, "file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(nil, NewMemoryResolver(files), tt.depth)
			res, err := l.LoadRootFile(tt.root)
			assert.Nil(t, res)
			require.Error(t, err)
			if tt.kind != nil {
				gta.ErrorIs(t, err, tt.kind)
			}
			assert.ErrorContains(t, err, tt.contains)
		})
	}
}

func TestCompile(t *testing.T) {
	l := NewLoader(nil, NewMemoryResolver(files), 10)
	unit, err := l.Compile("main.fsl", CompileOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"lib/common.fsl", "lib/blur.fsl", "main.fsl"}, unit.Files)
	assert.Equal(t, bounds.Region{ir.Span(0, 15)}, unit.Bounds.Allocations["out"])
	assert.Equal(t, bounds.Region{ir.Span(-1, 16)}, unit.Bounds.Inputs["inp"])
	require.Len(t, unit.Schedule.Directives, 1)
	assert.Equal(t, "blur.compute_at(out.init.x)", unit.Program.DirectiveString(unit.Schedule.Directives[0]))
	assert.Equal(t, "lib/blur.fsl", unit.Program.Pipeline("blur").File)
	assert.Equal(t, "main.fsl", unit.Program.Pipeline("out").File)

	// Params and requests from the caller replace the declared ones
	unit, err = l.Compile("main.fsl", CompileOptions{
		Lower:    []lower.Option{lower.WithParam("width", 4)},
		Requests: bounds.Requests{{Pipeline: "blur", Region: bounds.Region{ir.Span(0, 1)}}},
	})
	require.NoError(t, err)
	assert.Equal(t, bounds.Region{ir.Span(-1, 2)}, unit.Bounds.Inputs["inp"])
	_, ok := unit.Bounds.Allocations["out"]
	assert.False(t, ok)
}

func TestErrorsInImportsNameTheirFile(t *testing.T) {
	l := NewLoader(nil, NewMemoryResolver(files), 10)
	_, err := l.Compile("usebad.fsl", CompileOptions{})
	require.Error(t, err)
	gta.ErrorIs(t, err, decl.ErrUnboundedDomain)

	var ce *decl.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "lib/bad.fsl", ce.File)
	assert.Equal(t, 3, ce.Pos.Line)
	assert.ErrorContains(t, err, "lib/bad.fsl:3:18 in 'bad.upd'")
}

func TestCompileSource(t *testing.T) {
	unit, err := CompileSource("func f(x) = x;\noutput f [0, 3];", "inline.fsl", CompileOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"inline.fsl"}, unit.Files)
	assert.NotNil(t, unit.Resolver())

	_, err = CompileSource("func f(x) = f(x);\noutput f [0, 3];", "inline.fsl", CompileOptions{})
	gta.ErrorIs(t, err, decl.ErrRecursion)
}

func TestDefaultFileResolver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "f.fsl"), []byte("func f(x) = x;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.fsl"), []byte("import \"lib/f.fsl\";\nfunc g(x) = f(x);\noutput g [0, 1];"), 0o644))

	unit, err := NewLoader(nil, nil, 0).Compile(filepath.Join(dir, "main.fsl"), CompileOptions{})
	require.NoError(t, err)
	require.Len(t, unit.Files, 2)
	assert.True(t, filepath.IsAbs(unit.Files[0]))
	assert.Equal(t, bounds.Region{ir.Span(0, 1)}, unit.Bounds.Allocations["f"])
}

func TestValidateCollectsErrors(t *testing.T) {
	l := NewLoader(nil, NewMemoryResolver(files), 10)
	errs := &ErrorCollector{}
	ok := l.Validate(errs, CompileOptions{}, "main.fsl", "broken.fsl", "cycle/a.fsl")
	assert.False(t, ok)
	assert.Len(t, errs.Errors, 2)
	counts := errs.CountByKind()
	assert.Equal(t, 1, counts[decl.SyntaxViolation])
	assert.Equal(t, 1, counts[decl.RecursionError])

	errs = &ErrorCollector{MaxErrors: 1}
	l.Validate(errs, CompileOptions{}, "broken.fsl", "cycle/a.fsl")
	assert.Len(t, errs.Errors, 1)
	assert.True(t, errs.Full())
}
