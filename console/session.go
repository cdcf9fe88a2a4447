package console

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/panyam/fsl/bounds"
	"github.com/panyam/fsl/config"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/loader"
	"github.com/panyam/fsl/lower"
)

// Session is the stateful core behind the interactive console: a loaded
// file, param overrides and region requests, recompiled on every change.
type Session struct {
	loader   *loader.Loader
	base     loader.CompileOptions
	path     string
	params   map[string]int64
	requests bounds.Requests
	unit     *loader.Unit
}

// NewSession creates a session compiling with l. base carries options
// from the config file and command line.
func NewSession(l *loader.Loader, base loader.CompileOptions) *Session {
	return &Session{
		loader:   l,
		base:     base,
		params:   map[string]int64{},
		requests: base.Requests,
	}
}

// Unit is the last successful compilation, nil before a Load.
func (s *Session) Unit() *loader.Unit { return s.unit }

func (s *Session) Path() string { return s.path }

// Load compiles a file and makes it the active one. The previous unit
// stays active when compilation fails.
func (s *Session) Load(path string) error {
	unit, err := s.compile(path, s.params, s.requests)
	if err != nil {
		return err
	}
	s.path, s.unit = path, unit
	return nil
}

func (s *Session) Reload() error {
	if s.path == "" {
		return fmt.Errorf("no file loaded, use 'load <file>' first")
	}
	return s.Load(s.path)
}

// Set overrides a param and recompiles.
func (s *Session) Set(param string, value int64) error {
	if s.unit == nil {
		return fmt.Errorf("no file loaded, use 'load <file>' first")
	}
	params := map[string]int64{param: value}
	for k, v := range s.params {
		if k != param {
			params[k] = v
		}
	}
	unit, err := s.compile(s.path, params, s.requests)
	if err != nil {
		return err
	}
	s.params, s.unit = params, unit
	return nil
}

// Request replaces the region requests, in pipeline=lo:hi form, and
// recompiles. No arguments go back to the output declarations.
func (s *Session) Request(args ...string) error {
	if s.unit == nil {
		return fmt.Errorf("no file loaded, use 'load <file>' first")
	}
	var reqs bounds.Requests
	for _, arg := range args {
		rc, err := config.ParseRequest(arg)
		if err != nil {
			return err
		}
		reqs = append(reqs, rc.Request())
	}
	unit, err := s.compile(s.path, s.params, reqs)
	if err != nil {
		return err
	}
	s.requests, s.unit = reqs, unit
	return nil
}

func (s *Session) compile(path string, params map[string]int64, reqs bounds.Requests) (*loader.Unit, error) {
	opts := s.base
	opts.Lower = append([]lower.Option(nil), s.base.Lower...)
	for k, v := range params {
		opts.Lower = append(opts.Lower, lower.WithParam(k, v))
	}
	opts.Requests = reqs
	return s.loader.Compile(path, opts)
}

// Resolve resolves a chain, or a bare name within scope when scope is set.
func (s *Session) Resolve(ref, scope string) (ir.ScheduleRef, error) {
	if s.unit == nil {
		return ir.ScheduleRef{}, fmt.Errorf("no file loaded, use 'load <file>' first")
	}
	r := s.unit.Resolver()
	if scope == "" {
		return r.ResolvePath(ref)
	}
	sc, err := r.ResolvePath(scope)
	if err != nil {
		return sc, err
	}
	if sc.Kind != ir.RefPipeline && sc.Kind != ir.RefStage {
		return sc, fmt.Errorf("scope '%s' must name a pipeline or a stage", scope)
	}
	return r.ResolveString(sc, ref)
}

// Pipelines lists pipeline and instance names, for completion.
func (s *Session) Pipelines() []string {
	if s.unit == nil {
		return nil
	}
	names := append([]string(nil), s.unit.Program.Order...)
	for name := range s.unit.Program.Instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type command struct {
	Name  string
	Usage string
	Help  string
	run   func(s *Session, w io.Writer, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"help", "help", "Show this message", func(s *Session, w io.Writer, _ []string) error {
			for _, c := range commands {
				fmt.Fprintf(w, "  %-36s %s\n", c.Usage, c.Help)
			}
			return nil
		}},
		{"load", "load <file>", "Compile a file and make it active", func(s *Session, w io.Writer, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: load <file>")
			}
			if err := s.Load(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(w, "loaded %s (%d pipelines)\n", args[0], len(s.unit.Program.Order))
			return nil
		}},
		{"reload", "reload", "Recompile the active file", func(s *Session, w io.Writer, _ []string) error {
			return s.Reload()
		}},
		{"set", "set <param> <value>", "Override a param value", func(s *Session, w io.Writer, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: set <param> <value>")
			}
			v, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value '%s': %w", args[1], err)
			}
			return s.Set(args[0], v)
		}},
		{"request", "request [pipeline=lo:hi[,lo:hi]]...", "Replace region requests, none uses outputs", func(s *Session, w io.Writer, args []string) error {
			return s.Request(args...)
		}},
		{"bounds", "bounds", "Show inferred allocations", func(s *Session, w io.Writer, _ []string) error {
			if s.unit == nil {
				return fmt.Errorf("no file loaded, use 'load <file>' first")
			}
			WriteBounds(w, s.unit)
			return nil
		}},
		{"describe", "describe [pipeline]", "Print the program or one pipeline", func(s *Session, w io.Writer, args []string) error {
			if s.unit == nil {
				return fmt.Errorf("no file loaded, use 'load <file>' first")
			}
			if len(args) == 0 {
				fmt.Fprint(w, s.unit.Program.String())
				return nil
			}
			ref, err := s.Resolve(args[0], "")
			if err != nil {
				return err
			}
			fmt.Fprint(w, s.unit.Program.Pipelines[ref.Pipeline].String())
			return nil
		}},
		{"resolve", "resolve <ref> [scope]", "Resolve a chain, or a bare name in scope", func(s *Session, w io.Writer, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("usage: resolve <ref> [scope]")
			}
			scope := ""
			if len(args) == 2 {
				scope = args[1]
			}
			ref, err := s.Resolve(args[0], scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s (%s)\n", s.unit.Program.RefString(ref), ref.Kind)
			return nil
		}},
		{"schedule", "schedule", "List resolved directives", func(s *Session, w io.Writer, _ []string) error {
			if s.unit == nil {
				return fmt.Errorf("no file loaded, use 'load <file>' first")
			}
			for _, d := range s.unit.Schedule.Directives {
				fmt.Fprintln(w, s.unit.Program.DirectiveString(d))
			}
			return nil
		}},
	}
}

// Commands lists the command names, for completion.
func Commands() []string {
	out := make([]string, len(commands))
	for i, c := range commands {
		out[i] = c.Name
	}
	return out
}

// Execute runs one console line.
func (s *Session) Execute(w io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	for _, c := range commands {
		if c.Name == fields[0] {
			return c.run(s, w, fields[1:])
		}
	}
	return fmt.Errorf("unknown command '%s', type 'help' for the list", fields[0])
}

// WriteBounds prints allocations per pipeline in program order, the
// requests that produced them and the input footprints.
func WriteBounds(w io.Writer, unit *loader.Unit) {
	res := unit.Bounds
	for _, name := range unit.Program.Order {
		alloc, ok := res.Allocations[name]
		if !ok {
			continue
		}
		pd := unit.Program.Pipelines[name]
		dims := make([]string, len(pd.Dims))
		for i, d := range pd.Dims {
			dims[i] = fmt.Sprintf("%s in %s", d.Name, alloc[i])
		}
		fmt.Fprintf(w, "%s  %s\n", color.CyanString(name), strings.Join(dims, ", "))
		for _, rb := range res.Requested(name) {
			line := fmt.Sprintf("    request %s -> allocate %s", rb.Region, rb.Allocation)
			if rb.Sliced {
				line += color.YellowString(" (sliced)")
			}
			if rb.External {
				line += " (external)"
			}
			fmt.Fprintln(w, line)
		}
	}
	inputs := make([]string, 0, len(res.Inputs))
	for name := range res.Inputs {
		inputs = append(inputs, name)
	}
	sort.Strings(inputs)
	for _, name := range inputs {
		fmt.Fprintf(w, "%s  reads %s\n", color.MagentaString(name), res.Inputs[name])
	}
	fmt.Fprintf(w, "%d regions, %d memo hits\n", res.Stats.Regions, res.Stats.MemoHits)
}
