package loader

import (
	"log/slog"

	"github.com/panyam/fsl/bounds"
	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/lower"
	"github.com/panyam/fsl/resolve"
)

// CompileOptions configures the passes after parsing.
type CompileOptions struct {
	Lower  []lower.Option
	Bounds []bounds.Option

	// Requests replace the output declarations when not empty
	Requests bounds.Requests
}

// Unit is one compiled root file with everything the backend needs.
type Unit struct {
	Files    []string // Every loaded file, imports first
	File     *decl.FileDecl
	Program  *ir.Program
	Bounds   *bounds.Result
	Schedule *ir.Schedule
}

// Resolver returns a resolver over the unit's program for further lookups.
func (u *Unit) Resolver() *resolve.Resolver {
	return resolve.New(u.Program)
}

// Compile loads a root file with its imports and runs every pass over
// it. The first failure aborts the unit.
func (l *Loader) Compile(rootPath string, opts CompileOptions) (*Unit, error) {
	res, err := l.LoadRootFile(rootPath)
	if err != nil {
		return nil, err
	}
	unit, err := CompileFile(res.Merged, opts)
	if err != nil {
		return nil, err
	}
	unit.Files = res.Order
	return unit, nil
}

// CompileSource compiles a single source without imports.
func CompileSource(src, name string, opts CompileOptions) (*Unit, error) {
	l := NewLoader(nil, NewMemoryResolver(map[string]string{name: src}), 1)
	return l.Compile(name, opts)
}

// CompileFile runs lowering, bounds inference and schedule resolution
// over a parsed file.
func CompileFile(file *decl.FileDecl, opts CompileOptions) (*Unit, error) {
	prog, err := lower.Lower(file, opts.Lower...)
	if err != nil {
		return nil, err
	}
	result, err := bounds.Infer(prog, opts.Requests, opts.Bounds...)
	if err != nil {
		return nil, err
	}
	sched, err := resolve.New(prog).ResolveSchedule()
	if err != nil {
		return nil, decl.WithFile(err, file.FullPath)
	}
	slog.Debug("compiled", "file", file.FullPath, "pipelines", len(prog.Order), "regions", result.Stats.Regions, "directives", len(sched.Directives))
	return &Unit{
		Files:    []string{file.FullPath},
		File:     file,
		Program:  prog,
		Bounds:   result,
		Schedule: sched,
	}, nil
}

// Validate compiles every file independently and collects the failures.
// It reports whether all of them compiled.
func (l *Loader) Validate(errs *ErrorCollector, opts CompileOptions, paths ...string) bool {
	ok := true
	for _, path := range paths {
		if errs.Full() {
			break
		}
		if _, err := l.Compile(path, opts); err != nil {
			ok = false
			errs.AddErrors(err)
			slog.Debug("validation failed", "file", path, "error", err)
			continue
		}
		slog.Info("validated", "file", path)
	}
	return ok
}
