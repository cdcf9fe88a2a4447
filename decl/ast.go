package decl

import (
	"fmt"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// --- Interfaces ---

// Node represents any node in the Abstract Syntax Tree.
type Node interface {
	Pos() Location  // Starting position (for error reporting)
	End() Location  // Ending position
	String() string // String representation for debugging/printing
	PrettyPrint(cp CodePrinter)
}

// Location is a position in a source file.
type Location struct {
	Pos  int    // Byte offset
	Line int    // 1-based
	Col  int    // 1-based, rune based
	File string // Source the node was parsed from, empty for synthesized nodes
}

func (l Location) LineColStr() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

func (l Location) IsZero() bool { return l.Line == 0 && l.Col == 0 && l.Pos == 0 }

// --- Base Struct ---

// NodeInfo embeddable struct for position tracking.
type NodeInfo struct{ StartPos, StopPos Location }

func NewNodeInfo(start, stop Location) NodeInfo { return NodeInfo{StartPos: start, StopPos: stop} }

func (n *NodeInfo) Pos() Location  { return n.StartPos }
func (n *NodeInfo) End() Location  { return n.StopPos }
func (n *NodeInfo) String() string { return "{Node}" } // Default stringer

// Declaration is a top level item in a file.
type Declaration interface {
	Node
	declNode()
}

// --- Top Level declarations ---

// FileDecl represents the top-level node of a parsed file.
type FileDecl struct {
	NodeInfo
	FullPath     string
	Declarations []Declaration

	// Populated by Resolve
	Imports   []*ImportDecl
	Params    map[string]*ParamDecl
	Inputs    map[string]*InputDecl
	Funcs     map[string]*FuncDecl
	Pipes     map[string]*PipeDecl
	Instances map[string]*InstanceDecl
	Outputs   []*OutputDecl
	Schedules []*ScheduleDecl

	// Declaration order of named items so passes stay deterministic
	Order []string

	resolved bool
}

// Resolve indexes the declarations by name. Duplicate names are reported as a
// SyntaxViolation at the second definition.
func (f *FileDecl) Resolve() error {
	if f == nil {
		return fmt.Errorf("cannot resolve nil file")
	}
	if f.resolved {
		return nil
	}
	f.Params = map[string]*ParamDecl{}
	f.Inputs = map[string]*InputDecl{}
	f.Funcs = map[string]*FuncDecl{}
	f.Pipes = map[string]*PipeDecl{}
	f.Instances = map[string]*InstanceDecl{}
	f.Imports = nil
	f.Outputs = nil
	f.Schedules = nil
	f.Order = nil

	for _, d := range f.Declarations {
		switch node := d.(type) {
		case *ImportDecl:
			f.Imports = append(f.Imports, node)
		case *OutputDecl:
			f.Outputs = append(f.Outputs, node)
		case *ScheduleDecl:
			f.Schedules = append(f.Schedules, node)
		default:
			if err := f.register(d); err != nil {
				return err
			}
		}
	}
	f.resolved = true
	return nil
}

// register adds a named declaration making sure names are unique across kinds.
func (f *FileDecl) register(d Declaration) error {
	name := ""
	switch node := d.(type) {
	case *ParamDecl:
		name = node.Name()
	case *InputDecl:
		name = node.Name()
	case *FuncDecl:
		name = node.Name()
	case *PipeDecl:
		name = node.Name()
	case *InstanceDecl:
		name = node.Name()
	default:
		return fmt.Errorf("unsupported declaration %T", d)
	}
	if f.Lookup(name) != nil {
		return Errorf(SyntaxViolation, d.Pos(), name, "'%s' is already defined", name)
	}
	switch node := d.(type) {
	case *ParamDecl:
		f.Params[name] = node
	case *InputDecl:
		f.Inputs[name] = node
	case *FuncDecl:
		f.Funcs[name] = node
	case *PipeDecl:
		f.Pipes[name] = node
	case *InstanceDecl:
		f.Instances[name] = node
	}
	f.Order = append(f.Order, name)
	return nil
}

// Lookup returns the named declaration of any kind.
func (f *FileDecl) Lookup(name string) Declaration {
	if p, ok := f.Params[name]; ok {
		return p
	}
	if i, ok := f.Inputs[name]; ok {
		return i
	}
	if fn, ok := f.Funcs[name]; ok {
		return fn
	}
	if p, ok := f.Pipes[name]; ok {
		return p
	}
	if i, ok := f.Instances[name]; ok {
		return i
	}
	return nil
}

// Merge appends the declarations of an imported file. Imports themselves are
// not carried over since the loader resolves them separately.
func (f *FileDecl) Merge(other *FileDecl) error {
	for _, d := range other.Declarations {
		if _, ok := d.(*ImportDecl); ok {
			continue
		}
		f.Declarations = append(f.Declarations, d)
	}
	f.resolved = false
	return f.Resolve()
}

func (f *FileDecl) String() string {
	return strings.Join(gfn.Map(f.Declarations, func(d Declaration) string { return d.String() }), "\n")
}

func (f *FileDecl) PrettyPrint(cp CodePrinter) {
	for _, d := range f.Declarations {
		d.PrettyPrint(cp)
		cp.Println("")
	}
}

// ImportDecl represents `import "path";`
type ImportDecl struct {
	NodeInfo
	Path *LiteralExpr
}

func (i *ImportDecl) declNode() {}
func (i *ImportDecl) String() string { return fmt.Sprintf("import %s;", i.Path) }
func (i *ImportDecl) PrettyPrint(cp CodePrinter) {
	cp.Print(i.String())
}

// PathString returns the import path literal value.
func (i *ImportDecl) PathString() string {
	if i.Path == nil {
		return ""
	}
	s, _ := i.Path.Value.(string)
	return s
}

// TypeDecl is a type annotation such as `Int(32)`, `UInt(16)` or `Buffer(UInt(8), 2)`.
type TypeDecl struct {
	NodeInfo
	Name string
	Args []*TypeDecl

	// Set for integer arguments like the 16 in UInt(16)
	IntArg int64
	IsInt  bool
}

func (t *TypeDecl) String() string {
	if t == nil {
		return ""
	}
	if t.IsInt {
		return fmt.Sprintf("%d", t.IntArg)
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s(%s)", t.Name, strings.Join(gfn.Map(t.Args, func(a *TypeDecl) string { return a.String() }), ", "))
}

func (t *TypeDecl) PrettyPrint(cp CodePrinter) { cp.Print(t.String()) }

// IsBuffer is true for Buffer(elem, ndims) types.
func (t *TypeDecl) IsBuffer() bool { return t != nil && t.Name == "Buffer" }

// IsFunc is true for Func typed pipe parameters.
func (t *TypeDecl) IsFunc() bool { return t != nil && t.Name == "Func" }

// ParamDecl represents `param width: Int(32) = 640;`
type ParamDecl struct {
	NodeInfo
	NameNode     *IdentifierExpr
	TypeDecl     *TypeDecl
	DefaultValue Expr
}

func (p *ParamDecl) declNode()    {}
func (p *ParamDecl) Name() string { return p.NameNode.Name }
func (p *ParamDecl) String() string {
	if p.DefaultValue != nil {
		return fmt.Sprintf("param %s: %s = %s;", p.Name(), p.TypeDecl, p.DefaultValue)
	}
	return fmt.Sprintf("param %s: %s;", p.Name(), p.TypeDecl)
}
func (p *ParamDecl) PrettyPrint(cp CodePrinter) { cp.Print(p.String()) }

// InputDecl represents `input inp: Buffer(UInt(16), 2) shape [640, 480] range [0, 300];`
type InputDecl struct {
	NodeInfo
	NameNode *IdentifierExpr
	TypeDecl *TypeDecl
	Shape    []Expr
	RangeMin Expr
	RangeMax Expr
}

func (i *InputDecl) declNode()    {}
func (i *InputDecl) Name() string { return i.NameNode.Name }
func (i *InputDecl) String() string {
	out := fmt.Sprintf("input %s: %s", i.Name(), i.TypeDecl)
	if len(i.Shape) > 0 {
		out += fmt.Sprintf(" shape [%s]", joinExprs(i.Shape))
	}
	if i.RangeMin != nil {
		out += fmt.Sprintf(" range [%s, %s]", i.RangeMin, i.RangeMax)
	}
	return out + ";"
}
func (i *InputDecl) PrettyPrint(cp CodePrinter) { cp.Print(i.String()) }

// FuncDecl is a tagged `func` definition. It is either expression bodied,
// a block of lets ending in a return, or a multi-stage body made of defs only.
type FuncDecl struct {
	NodeInfo
	NameNode *IdentifierExpr
	Dims     []*IdentifierExpr

	// Exactly one of the following describes the body
	Expr Expr       // func f(x) = e;
	Body []Stmt     // func f(x) { let ...; return e; }
	Defs []*DefDecl // func f(x) { def init() = ...; def upd(res) {...} }
}

func (f *FuncDecl) declNode()    {}
func (f *FuncDecl) Name() string { return f.NameNode.Name }

// IsMultiStage is true when the body is a list of nested defs.
func (f *FuncDecl) IsMultiStage() bool { return len(f.Defs) > 0 }

// DimNames returns the names of the declared dimensions.
func (f *FuncDecl) DimNames() []string {
	return gfn.Map(f.Dims, func(d *IdentifierExpr) string { return d.Name })
}

func (f *FuncDecl) String() string {
	return fmt.Sprintf("func %s(%s)", f.Name(), strings.Join(f.DimNames(), ", "))
}

func (f *FuncDecl) PrettyPrint(cp CodePrinter) {
	cp.Print(f.String())
	if f.Expr != nil {
		cp.Printf(" = %s;", f.Expr)
		return
	}
	cp.Println(" {")
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, s := range f.Body {
			s.PrettyPrint(cp)
			cp.Println("")
		}
		for _, d := range f.Defs {
			d.PrettyPrint(cp)
			cp.Println("")
		}
	})
	cp.Print("}")
}

// DefParam is a parameter of a nested def, optionally with a default.
type DefParam struct {
	NodeInfo
	NameNode *IdentifierExpr
	Default  Expr
}

func (d *DefParam) Name() string { return d.NameNode.Name }
func (d *DefParam) String() string {
	if d.Default != nil {
		return fmt.Sprintf("%s = %s", d.Name(), d.Default)
	}
	return d.Name()
}
func (d *DefParam) PrettyPrint(cp CodePrinter) { cp.Print(d.String()) }

// DefDecl is a nested stage definition inside a multi-stage func.
type DefDecl struct {
	NodeInfo
	Tag      string // "", "pure" or "update"
	NameNode *IdentifierExpr
	Params   []*DefParam
	Expr     Expr   // def init() = e;
	Body     []Stmt // def upd(res) { ... }
}

func (d *DefDecl) stmtNode()    {}
func (d *DefDecl) Name() string { return d.NameNode.Name }

// IsExprBodied is true for `= e;` bodies and for blocks holding only lets and a return.
func (d *DefDecl) IsExprBodied() bool {
	if d.Expr != nil {
		return true
	}
	if len(d.Body) == 0 {
		return false
	}
	for _, s := range d.Body[:len(d.Body)-1] {
		if _, ok := s.(*LetStmt); !ok {
			return false
		}
	}
	_, ok := d.Body[len(d.Body)-1].(*ReturnStmt)
	return ok
}

// Mutates is true when the body assigns into a buffer anywhere.
func (d *DefDecl) Mutates() bool {
	found := false
	WalkStmts(d.Body, func(s Stmt) {
		if _, ok := s.(*AssignStmt); ok {
			found = true
		}
	})
	return found
}

func (d *DefDecl) String() string {
	tag := ""
	if d.Tag != "" {
		tag = "@" + d.Tag + " "
	}
	return fmt.Sprintf("%sdef %s(%s)", tag, d.Name(), strings.Join(gfn.Map(d.Params, func(p *DefParam) string { return p.String() }), ", "))
}

func (d *DefDecl) PrettyPrint(cp CodePrinter) {
	cp.Print(d.String())
	if d.Expr != nil {
		cp.Printf(" = %s;", d.Expr)
		return
	}
	cp.Println(" {")
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, s := range d.Body {
			s.PrettyPrint(cp)
			cp.Println("")
		}
	})
	cp.Print("}")
}

// PipeParam is a typed input of a pipe.
type PipeParam struct {
	NodeInfo
	NameNode *IdentifierExpr
	TypeDecl *TypeDecl
	Default  Expr
}

func (p *PipeParam) Name() string { return p.NameNode.Name }
func (p *PipeParam) String() string {
	if p.Default != nil {
		return fmt.Sprintf("%s: %s = %s", p.Name(), p.TypeDecl, p.Default)
	}
	return fmt.Sprintf("%s: %s", p.Name(), p.TypeDecl)
}
func (p *PipeParam) PrettyPrint(cp CodePrinter) { cp.Print(p.String()) }

// PipeDecl is a lambda abstraction over a sub-pipeline.
type PipeDecl struct {
	NodeInfo
	NameNode  *IdentifierExpr
	Params    []*PipeParam
	Outputs   []*IdentifierExpr
	Funcs     []*FuncDecl
	Instances []*InstanceDecl
}

func (p *PipeDecl) declNode()    {}
func (p *PipeDecl) Name() string { return p.NameNode.Name }

// Param returns the named parameter.
func (p *PipeDecl) Param(name string) *PipeParam {
	for _, param := range p.Params {
		if param.Name() == name {
			return param
		}
	}
	return nil
}

func (p *PipeDecl) String() string {
	out := fmt.Sprintf("pipe %s(%s)", p.Name(), strings.Join(gfn.Map(p.Params, func(pp *PipeParam) string { return pp.String() }), ", "))
	if len(p.Outputs) > 0 {
		out += " -> " + strings.Join(gfn.Map(p.Outputs, func(o *IdentifierExpr) string { return o.Name }), ", ")
	}
	return out
}

func (p *PipeDecl) PrettyPrint(cp CodePrinter) {
	cp.Println(p.String() + " {")
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, inst := range p.Instances {
			inst.PrettyPrint(cp)
			cp.Println("")
		}
		for _, f := range p.Funcs {
			f.PrettyPrint(cp)
			cp.Println("")
		}
	})
	cp.Print("}")
}

// InstanceArg is a positional or named argument of an instantiation.
type InstanceArg struct {
	NodeInfo
	NameNode *IdentifierExpr // nil for positional arguments
	Value    Expr
}

func (a *InstanceArg) String() string {
	if a.NameNode != nil {
		return fmt.Sprintf("%s = %s", a.NameNode.Name, a.Value)
	}
	return a.Value.String()
}
func (a *InstanceArg) PrettyPrint(cp CodePrinter) { cp.Print(a.String()) }

// InstanceDecl represents `instance b = gen(10, inp);`
type InstanceDecl struct {
	NodeInfo
	NameNode *IdentifierExpr
	PipeNode *IdentifierExpr
	Args     []*InstanceArg
}

func (i *InstanceDecl) declNode()    {}
func (i *InstanceDecl) Name() string { return i.NameNode.Name }
func (i *InstanceDecl) String() string {
	return fmt.Sprintf("instance %s = %s(%s);", i.Name(), i.PipeNode.Name,
		strings.Join(gfn.Map(i.Args, func(a *InstanceArg) string { return a.String() }), ", "))
}
func (i *InstanceDecl) PrettyPrint(cp CodePrinter) { cp.Print(i.String()) }

// OutputDecl represents `output hist [0, 255];`
type OutputDecl struct {
	NodeInfo
	NameNode *IdentifierExpr
	Bounds   [][2]Expr
}

func (o *OutputDecl) declNode()    {}
func (o *OutputDecl) Name() string { return o.NameNode.Name }
func (o *OutputDecl) String() string {
	out := "output " + o.Name()
	for _, b := range o.Bounds {
		out += fmt.Sprintf(" [%s, %s]", b[0], b[1])
	}
	return out + ";"
}
func (o *OutputDecl) PrettyPrint(cp CodePrinter) { cp.Print(o.String()) }

// ScheduleDecl holds scheduling directives, each a call on a reference chain.
type ScheduleDecl struct {
	NodeInfo
	Directives []*CallExpr
}

func (s *ScheduleDecl) declNode() {}
func (s *ScheduleDecl) String() string {
	return fmt.Sprintf("schedule { %s }", strings.Join(gfn.Map(s.Directives, func(c *CallExpr) string { return c.String() + ";" }), " "))
}
func (s *ScheduleDecl) PrettyPrint(cp CodePrinter) {
	cp.Println("schedule {")
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, d := range s.Directives {
			cp.Println(d.String() + ";")
		}
	})
	cp.Print("}")
}

func joinExprs(exprs []Expr) string {
	return strings.Join(gfn.Map(exprs, func(e Expr) string { return e.String() }), ", ")
}
