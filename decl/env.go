package decl

import (
	"fmt"
	"sort"
)

// References to values
type Ref[T any] struct {
	Value T
}

// Env[T] maps identifiers to values with lexical scoping via the 'outer'
// environment. Passes use it for dims, reduction vars and let bindings.
type Env[T any] struct {
	store map[string]*Ref[T]
	outer *Env[T]
}

// NewEnv[T] creates a new environment nested within an outer one.
// If outer is nil then returns a fresh top-level environment.
func NewEnv[T any](outer *Env[T]) *Env[T] {
	s := make(map[string]*Ref[T])
	return &Env[T]{store: s, outer: outer}
}

// GetRef checks the current environment first, then the outer ones.
func (e *Env[T]) GetRef(name string) *Ref[T] {
	if e == nil {
		return nil
	}
	ref, ok := e.store[name]
	if (!ok || ref == nil) && e.outer != nil {
		ref = e.outer.GetRef(name)
	}
	return ref
}

func (e *Env[T]) Get(name string) (out T, found bool) {
	ref := e.GetRef(name)
	if ref != nil {
		out = ref.Value
		found = true
	}
	return
}

// Has reports whether name is bound in this layer only.
func (e *Env[T]) Has(name string) bool {
	_, ok := e.store[name]
	return ok
}

func (e *Env[T]) Set(key string, value T) {
	e.store[key] = &Ref[T]{Value: value}
}

// Push starts a nested scope.
func (e *Env[T]) Push() *Env[T] {
	return NewEnv(e)
}

// Extends our environment by creating a new environment and setting values in it
func (e *Env[T]) Extend(kvpairs map[string]T) *Env[T] {
	out := e.Push()
	for k, v := range kvpairs {
		out.Set(k, v)
	}
	return out
}

// Keys returns the sorted keys of this layer (not including outer environments)
func (e *Env[T]) Keys() []string {
	keys := make([]string, 0, len(e.store))
	for k := range e.store {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String representation for debugging
func (e *Env[T]) String() string {
	return fmt.Sprintf("Env{keys: %v, outer: %v}", e.Keys(), e.outer != nil)
}
