package lower

import (
	"github.com/panyam/fsl/ir"
)

// scope maps the names visible inside a func body to what they denote.
// Pipe instances get their own scope whose outer scope is the file scope.
type scope struct {
	prefix string // prepended to pipeline names declared in this scope

	funcs     map[string]string // local name -> pipeline
	inputs    map[string]string // local name -> input buffer
	params    map[string]ir.Expr
	instances map[string]*ir.Instance

	outer *scope
}

func newScope(prefix string, outer *scope) *scope {
	return &scope{
		prefix:    prefix,
		funcs:     map[string]string{},
		inputs:    map[string]string{},
		params:    map[string]ir.Expr{},
		instances: map[string]*ir.Instance{},
		outer:     outer,
	}
}

func (s *scope) lookupFunc(name string) (string, bool) {
	for sc := s; sc != nil; sc = sc.outer {
		if p, ok := sc.funcs[name]; ok {
			return p, true
		}
		if sc.shadows(name, "func") {
			return "", false
		}
	}
	return "", false
}

func (s *scope) lookupInput(name string) (string, bool) {
	for sc := s; sc != nil; sc = sc.outer {
		if in, ok := sc.inputs[name]; ok {
			return in, true
		}
		if sc.shadows(name, "input") {
			return "", false
		}
	}
	return "", false
}

func (s *scope) lookupParam(name string) (ir.Expr, bool) {
	for sc := s; sc != nil; sc = sc.outer {
		if e, ok := sc.params[name]; ok {
			return e, true
		}
		if sc.shadows(name, "param") {
			return nil, false
		}
	}
	return nil, false
}

func (s *scope) lookupInstance(name string) (*ir.Instance, bool) {
	for sc := s; sc != nil; sc = sc.outer {
		if inst, ok := sc.instances[name]; ok {
			return inst, true
		}
		if sc.shadows(name, "instance") {
			return nil, false
		}
	}
	return nil, false
}

// shadows is true when this layer binds name as something other than kind,
// which hides outer bindings of the same name.
func (s *scope) shadows(name, kind string) bool {
	if _, ok := s.funcs[name]; ok && kind != "func" {
		return true
	}
	if _, ok := s.inputs[name]; ok && kind != "input" {
		return true
	}
	if _, ok := s.params[name]; ok && kind != "param" {
		return true
	}
	if _, ok := s.instances[name]; ok && kind != "instance" {
		return true
	}
	return false
}

// knows is true when name is bound to anything in this scope chain.
func (s *scope) knows(name string) bool {
	if _, ok := s.lookupFunc(name); ok {
		return true
	}
	if _, ok := s.lookupInput(name); ok {
		return true
	}
	if _, ok := s.lookupParam(name); ok {
		return true
	}
	_, ok := s.lookupInstance(name)
	return ok
}
