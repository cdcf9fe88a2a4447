// Package stages splits a func into its Init stage and its ordered Update
// stages.
package stages

import (
	"log/slog"

	"github.com/panyam/fsl/decl"
)

type Kind int

const (
	Init Kind = iota
	Update
)

func (k Kind) String() string {
	if k == Init {
		return "init"
	}
	return "update"
}

// Stage is one classified stage of a func.
type Stage struct {
	Kind  Kind
	Name  string
	Index int
	Pos   decl.Location
	Def   *decl.DefDecl // nil for pure funcs and synthesized inits

	// Init stages: scalar lets followed by the value over the parent's dims
	Lets  []*decl.LetStmt
	Value decl.Expr

	// Update stages. Result names the result buffer parameter and Inputs
	// holds the parent dims, passed explicitly and immutable.
	Result string
	Body   []decl.Stmt
	Inputs []string

	// Set when the Init came from a buffer default or was made up as zero
	FromDefault bool
	Implicit    bool
}

// Classified is a func with its stages in evaluation order. Stages[0] is
// always the Init.
type Classified struct {
	Name   string
	Func   *decl.FuncDecl
	Dims   []string
	Stages []*Stage
}

func (c *Classified) Init() *Stage { return c.Stages[0] }

func (c *Classified) Updates() []*Stage { return c.Stages[1:] }

// IsPure is true when the func has no update stages.
func (c *Classified) IsPure() bool { return len(c.Stages) == 1 }

// Stage returns the named stage.
func (c *Classified) Stage(name string) *Stage {
	for _, s := range c.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Classify assigns each def of a func to the Init or an Update role and
// checks their order. Free identifiers are left alone.
func Classify(fn *decl.FuncDecl) (*Classified, error) {
	out := &Classified{Name: fn.Name(), Func: fn, Dims: fn.DimNames()}
	seen := map[string]bool{}
	for _, d := range fn.Dims {
		if seen[d.Name] {
			return nil, decl.Errorf(decl.SyntaxViolation, d.Pos(), fn.Name(), "dimension '%s' declared twice", d.Name)
		}
		seen[d.Name] = true
	}

	if !fn.IsMultiStage() {
		init, err := pureStage(fn)
		if err != nil {
			return nil, err
		}
		out.Stages = []*Stage{init}
		return out, nil
	}

	c := &classifier{out: out, dims: seen}
	for _, d := range fn.Defs {
		if err := c.add(d); err != nil {
			return nil, err
		}
	}
	for i, s := range out.Stages {
		s.Index = i
	}
	slog.Debug("classified func", "func", fn.Name(), "stages", len(out.Stages))
	return out, nil
}

func pureStage(fn *decl.FuncDecl) (*Stage, error) {
	s := &Stage{Kind: Init, Name: "init", Pos: fn.Pos()}
	if fn.Expr != nil {
		s.Value = fn.Expr
		return s, nil
	}
	lets, value, err := splitLets(fn.Body, fn.Name(), fn.Pos())
	if err != nil {
		return nil, err
	}
	s.Lets, s.Value = lets, value
	return s, nil
}

// splitLets checks that a body is `let*; return e;`.
func splitLets(body []decl.Stmt, owner string, pos decl.Location) (lets []*decl.LetStmt, value decl.Expr, err error) {
	if len(body) == 0 {
		return nil, nil, decl.Errorf(decl.SyntaxViolation, pos, owner, "body has no return")
	}
	for _, st := range body[:len(body)-1] {
		let, ok := st.(*decl.LetStmt)
		if !ok {
			return nil, nil, decl.Errorf(decl.SyntaxViolation, st.Pos(), owner, "only lets may precede the return, found: %s", st)
		}
		lets = append(lets, let)
	}
	ret, ok := body[len(body)-1].(*decl.ReturnStmt)
	if !ok {
		last := body[len(body)-1]
		return nil, nil, decl.Errorf(decl.SyntaxViolation, last.Pos(), owner, "body must end with a return, found: %s", last)
	}
	return lets, ret.ReturnValue, nil
}

type classifier struct {
	out        *Classified
	dims       map[string]bool
	haveInit   bool
	seenUpdate bool
}

func (c *classifier) defName(d *decl.DefDecl) string {
	return c.out.Name + "." + d.Name()
}

func (c *classifier) add(d *decl.DefDecl) error {
	// Synthesized inits only clash with later updates, see addUpdate
	if s := c.out.Stage(d.Name()); s != nil && s.Def != nil {
		return decl.Errorf(decl.SyntaxViolation, d.Pos(), c.defName(d), "stage '%s' defined twice", d.Name())
	}
	initShaped := d.Tag != "update" && len(d.Params) == 0 && d.IsExprBodied()
	if initShaped {
		return c.addInit(d)
	}
	if d.Tag == "pure" {
		if c.seenUpdate {
			return decl.Errorf(decl.StageOrderError, d.Pos(), c.defName(d), "@pure def after an update")
		}
		return decl.Errorf(decl.SyntaxViolation, d.Pos(), c.defName(d), "@pure def must take no parameters and return a value")
	}
	return c.addUpdate(d)
}

func (c *classifier) addInit(d *decl.DefDecl) error {
	if c.seenUpdate {
		return decl.Errorf(decl.StageOrderError, d.Pos(), c.defName(d), "init '%s' appears after an update", d.Name())
	}
	if c.haveInit {
		return decl.Errorf(decl.StageOrderError, d.Pos(), c.defName(d), "func '%s' has more than one init", c.out.Name)
	}
	s := &Stage{Kind: Init, Name: d.Name(), Pos: d.Pos(), Def: d}
	if d.Expr != nil {
		s.Value = d.Expr
	} else {
		lets, value, err := splitLets(d.Body, c.defName(d), d.Pos())
		if err != nil {
			return err
		}
		s.Lets, s.Value = lets, value
	}
	c.haveInit = true
	c.out.Stages = append(c.out.Stages, s)
	return nil
}

func (c *classifier) addUpdate(d *decl.DefDecl) error {
	name := c.defName(d)
	if len(d.Params) != 1 {
		return decl.Errorf(decl.SyntaxViolation, d.Pos(), name, "update must take exactly one result buffer parameter, found %d", len(d.Params))
	}
	param := d.Params[0]
	if c.dims[param.Name()] {
		return decl.Errorf(decl.SyntaxViolation, param.Pos(), name, "update parameter '%s' names a dimension of '%s'", param.Name(), c.out.Name)
	}
	if d.Expr != nil || !d.Mutates() {
		return decl.Errorf(decl.SyntaxViolation, d.Pos(), name, "update never stores into '%s'", param.Name())
	}
	var err error
	decl.WalkStmts(d.Body, func(st decl.Stmt) {
		if err != nil {
			return
		}
		switch n := st.(type) {
		case *decl.AssignStmt:
			if id, ok := n.Target.Receiver.(*decl.IdentifierExpr); !ok || id.Name != param.Name() {
				err = decl.Errorf(decl.SyntaxViolation, n.Pos(), name, "updates may only store into '%s', found: %s", param.Name(), n.Target)
			}
		case *decl.ReturnStmt:
			err = decl.Errorf(decl.SyntaxViolation, n.Pos(), name, "updates cannot return a value")
		}
	})
	if err != nil {
		return err
	}

	if param.Default != nil {
		if c.haveInit {
			return decl.Errorf(decl.StageOrderError, param.Pos(), name, "func '%s' has more than one init: '%s' carries a default", c.out.Name, param.Name())
		}
		c.out.Stages = append(c.out.Stages, &Stage{Kind: Init, Name: "init", Pos: param.Pos(), Value: param.Default, FromDefault: true})
		c.haveInit = true
	} else if !c.haveInit {
		zero := decl.NewIntLiteral(0)
		zero.NodeInfo = decl.NewNodeInfo(d.Pos(), d.Pos())
		c.out.Stages = append(c.out.Stages, &Stage{Kind: Init, Name: "init", Pos: d.Pos(), Value: zero, Implicit: true})
		c.haveInit = true
	}

	if c.out.Stage(d.Name()) != nil {
		return decl.Errorf(decl.SyntaxViolation, d.Pos(), name, "stage '%s' defined twice", d.Name())
	}
	c.seenUpdate = true
	c.out.Stages = append(c.out.Stages, &Stage{
		Kind:   Update,
		Name:   d.Name(),
		Pos:    d.Pos(),
		Def:    d,
		Result: param.Name(),
		Body:   d.Body,
		Inputs: c.out.Dims,
	})
	return nil
}
