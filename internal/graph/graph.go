// Package graph holds the small directed graph used for call and
// instantiation edges between pipelines.
package graph

import (
	"fmt"
	"strings"
)

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// CycleError reports a cycle as the path that closes it, first node repeated last.
type CycleError[K comparable] struct {
	Path []K
}

func (e CycleError[K]) Error() string {
	parts := make([]string, len(e.Path))
	for i, k := range e.Path {
		parts[i] = fmt.Sprint(k)
	}
	return "cycle detected: " + strings.Join(parts, " -> ")
}

// Graph is a directed graph that remembers insertion order so that every
// walk over it is deterministic.
type Graph[K comparable] struct {
	nodes []K
	index map[K]int
	edges map[K][]K
}

func New[K comparable]() *Graph[K] {
	return &Graph[K]{index: map[K]int{}, edges: map[K][]K{}}
}

// AddNode adds k if it is not already present.
func (g *Graph[K]) AddNode(k K) {
	if _, ok := g.index[k]; ok {
		return
	}
	g.index[k] = len(g.nodes)
	g.nodes = append(g.nodes, k)
}

// AddEdge adds from -> to, adding both nodes as needed. Duplicate edges are dropped.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	for _, e := range g.edges[from] {
		if e == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

func (g *Graph[K]) Has(k K) bool {
	_, ok := g.index[k]
	return ok
}

func (g *Graph[K]) Nodes() []K { return g.nodes }

func (g *Graph[K]) Successors(k K) []K { return g.edges[k] }

// Predecessors returns the nodes with an edge into k, in insertion order.
func (g *Graph[K]) Predecessors(k K) (out []K) {
	for _, n := range g.nodes {
		for _, e := range g.edges[n] {
			if e == k {
				out = append(out, n)
				break
			}
		}
	}
	return
}

// FindCycle walks every node depth first and returns the first cycle found.
func (g *Graph[K]) FindCycle() error {
	states := make(map[K]visitState, len(g.nodes))
	var stack []K
	var visit func(key K) error
	visit = func(key K) error {
		switch states[key] {
		case stateVisiting:
			for i, k := range stack {
				if k == key {
					path := append(append([]K{}, stack[i:]...), key)
					return CycleError[K]{Path: path}
				}
			}
			return CycleError[K]{Path: []K{key, key}}
		case stateDone:
			return nil
		}
		states[key] = stateVisiting
		stack = append(stack, key)
		for _, next := range g.edges[key] {
			if err := visit(next); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		states[key] = stateDone
		return nil
	}
	for _, n := range g.nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// TopoOrder returns the nodes so that every node precedes its successors.
// Nodes on a cycle are left out, so callers check FindCycle first.
func (g *Graph[K]) TopoOrder() []K {
	inDegree := make(map[K]int, len(g.nodes))
	for _, n := range g.nodes {
		for _, e := range g.edges[n] {
			inDegree[e]++
		}
	}
	var queue []K
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	order := make([]K, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		for _, dep := range g.edges[node] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return order
}

// Reachable returns the nodes reachable from start, start included, in
// depth first order.
func (g *Graph[K]) Reachable(start K) []K {
	seen := map[K]bool{}
	var out []K
	var walk func(k K)
	walk = func(k K) {
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
		for _, e := range g.edges[k] {
			walk(e)
		}
	}
	walk(start)
	return out
}
