package ir

import (
	"fmt"
	"strings"

	"github.com/panyam/fsl/decl"
	gfn "github.com/panyam/goutils/fn"
)

func (p *Program) String() string {
	cp := decl.NewCodePrinter()
	p.PrettyPrint(cp)
	return cp.String()
}

// PrettyPrint writes params, inputs and pipelines in a stable order.
func (p *Program) PrettyPrint(cp decl.CodePrinter) {
	for _, name := range p.ParamNames() {
		param := p.Params[name]
		if param.Value != nil {
			cp.Printf("param %s: %s = %s\n", name, param.Type, param.Value)
		} else {
			cp.Printf("param %s: %s\n", name, param.Type)
		}
	}
	for _, name := range p.InputNames() {
		cp.Println(p.Inputs[name].String())
	}
	for _, name := range p.Order {
		p.Pipelines[name].PrettyPrint(cp)
	}
	if p.Schedule != nil {
		for _, d := range p.Schedule.Directives {
			cp.Println(p.DirectiveString(d))
		}
	}
}

func (in *Input) String() string {
	out := fmt.Sprintf("input %s: Buffer(%s, %d)", in.Name, in.Elem, in.NDims)
	if len(in.Shape) > 0 {
		out += " shape [" + strings.Join(gfn.Map(in.Shape, func(e Expr) string {
			if e == nil {
				return "?"
			}
			return e.String()
		}), ", ") + "]"
	}
	if in.RangeMin != nil {
		out += fmt.Sprintf(" range [%s, %s]", in.RangeMin, in.RangeMax)
	}
	return out
}

func (pd *PipelineDef) String() string {
	cp := decl.NewCodePrinter()
	pd.PrettyPrint(cp)
	return cp.String()
}

func (pd *PipelineDef) PrettyPrint(cp decl.CodePrinter) {
	cp.Printf("pipeline %s(%s)", pd.Name, strings.Join(pd.DimNames(), ", "))
	if pd.Instance != "" {
		cp.Printf(" from %s = %s(...)", pd.Instance, pd.Pipe)
	}
	cp.Println(" {")
	decl.WithIndent(1, cp, func(cp decl.CodePrinter) {
		for _, s := range pd.Stages {
			s.PrettyPrint(cp)
		}
	})
	cp.Println("}")
}

func (s *Stage) PrettyPrint(cp decl.CodePrinter) {
	if s.Kind == InitStage {
		note := ""
		if s.Implicit {
			note = " (implicit)"
		} else if s.FromDefault {
			note = " (default)"
		}
		cp.Printf("init %s%s = %s\n", s.Name, note, s.Value)
		return
	}
	cp.Printf("update %s(%s)", s.Name, s.Result)
	if s.Domain != nil && len(s.Domain.Vars) > 0 {
		cp.Printf(" over %s", s.Domain)
	}
	cp.Println(" {")
	decl.WithIndent(1, cp, func(cp decl.CodePrinter) {
		for _, st := range s.Stores {
			cp.Printf("%s[%s] %s %s\n", s.Result, joinExprs(st.Indices), st.Op, st.Value)
		}
	})
	cp.Println("}")
}

func (r *ReductionDomain) String() string {
	return "{" + strings.Join(gfn.Map(r.Vars, func(v *RVar) string {
		return fmt.Sprintf("%s in [%s, %s]", v.Name, v.Min, v.Max)
	}), ", ") + "}"
}

// DirectiveString renders a resolved directive with stage names.
func (p *Program) DirectiveString(d *Directive) string {
	var args []string
	if d.Target != nil {
		args = append(args, p.RefString(*d.Target))
	}
	for _, v := range d.Vars {
		args = append(args, p.RefString(v))
	}
	if d.Factor > 0 {
		args = append(args, fmt.Sprintf("%d", d.Factor))
	}
	return fmt.Sprintf("%s.%s(%s)", p.RefString(d.Subject), d.Name, strings.Join(args, ", "))
}
