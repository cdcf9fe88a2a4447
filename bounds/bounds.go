// Package bounds infers how much of every pipeline must be computed to
// answer a set of region requests.
package bounds

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/panyam/fsl/decl"
	"github.com/panyam/fsl/internal/graph"
	"github.com/panyam/fsl/ir"
)

// DefaultMaxRegions is the region cap used when none is set.
const DefaultMaxRegions = 4096

type Options struct {
	// MaxRegions caps the distinct regions evaluated per pipeline. Zero or
	// less selects DefaultMaxRegions.
	MaxRegions int
}

type Option func(*Options)

func WithMaxRegions(n int) Option {
	return func(o *Options) { o.MaxRegions = n }
}

// RegionBounds is the outcome for one distinct region requested of a
// pipeline. The pipeline computes Allocation and the caller gets Region
// back, sliced out of it when the two differ.
type RegionBounds struct {
	Pipeline   string `json:"pipeline"`
	Region     Region `json:"region"`
	Allocation Region `json:"allocation"`
	Sliced     bool   `json:"sliced"`
	External   bool   `json:"external"`
}

type Stats struct {
	Regions  int `json:"regions"`
	MemoHits int `json:"memo_hits"`
}

// Result holds the finalized allocation of every requested pipeline.
type Result struct {
	Allocations map[string]Region // union of all allocations, per pipeline
	Regions     []*RegionBounds   // in evaluation order
	Inputs      map[string]Region // footprint of every input read
	Stats       Stats

	prog *ir.Program
}

// Interval returns the allocation of a pipeline along one of its dims.
func (r *Result) Interval(pipeline, dim string) (ir.Interval, bool) {
	pd := r.prog.Pipelines[pipeline]
	alloc, ok := r.Allocations[pipeline]
	if pd == nil || !ok {
		return ir.Interval{}, false
	}
	d := pd.Dim(dim)
	if d == nil {
		return ir.Interval{}, false
	}
	return alloc[d.Index], true
}

// Requested returns the region records of one pipeline.
func (r *Result) Requested(pipeline string) (out []*RegionBounds) {
	for _, rb := range r.Regions {
		if rb.Pipeline == pipeline {
			out = append(out, rb)
		}
	}
	return
}

func (r *Result) MarshalJSON() ([]byte, error) {
	allocs := map[string]map[string]ir.Interval{}
	for name, alloc := range r.Allocations {
		dims := map[string]ir.Interval{}
		for i, d := range r.prog.Pipelines[name].Dims {
			dims[d.Name] = alloc[i]
		}
		allocs[name] = dims
	}
	return json.Marshal(struct {
		Allocations map[string]map[string]ir.Interval `json:"allocations"`
		Regions     []*RegionBounds                   `json:"regions"`
		Inputs      map[string]Region                 `json:"inputs"`
		Stats       Stats                             `json:"stats"`
	}{allocs, r.Regions, r.Inputs, r.Stats})
}

type pending struct {
	region   Region
	external bool
}

type inferrer struct {
	prog *ir.Program
	opts Options
	ev   *evaluator

	pending map[string][]pending
	memo    map[string]map[string]*RegionBounds
	result  *Result
}

// Infer runs the backward pass from the requests, consumers before
// producers, then unions the allocations producers before consumers.
// With no requests the program's output declarations are used.
func Infer(prog *ir.Program, requests Requests, opts ...Option) (*Result, error) {
	calls := prog.CallGraph()
	if err := calls.FindCycle(); err != nil {
		return nil, recursionError(prog, err)
	}
	inf := &inferrer{
		prog:    prog,
		opts:    Options{MaxRegions: DefaultMaxRegions},
		ev:      newEvaluator(prog),
		pending: map[string][]pending{},
		memo:    map[string]map[string]*RegionBounds{},
		result: &Result{
			Allocations: map[string]Region{},
			Inputs:      map[string]Region{},
			prog:        prog,
		},
	}
	for _, opt := range opts {
		opt(&inf.opts)
	}
	if inf.opts.MaxRegions <= 0 {
		inf.opts.MaxRegions = DefaultMaxRegions
	}
	if len(requests) == 0 {
		var err error
		if requests, err = inf.outputRequests(); err != nil {
			return nil, err
		}
	}
	for _, req := range requests {
		if err := inf.request(req.Pipeline, req.Region, true, decl.Location{}); err != nil {
			return nil, err
		}
	}

	order := calls.TopoOrder()
	for _, name := range order {
		if err := inf.backward(name); err != nil {
			return nil, err
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		inf.forward(order[i])
	}
	slog.Debug("inferred bounds", "requests", len(requests), "regions", inf.result.Stats.Regions, "memo_hits", inf.result.Stats.MemoHits)
	return inf.result, nil
}

func recursionError(prog *ir.Program, err error) error {
	var ce graph.CycleError[string]
	if errors.As(err, &ce) && len(ce.Path) > 0 {
		pd := prog.Pipelines[ce.Path[0]]
		return decl.WithFile(decl.Errorf(decl.RecursionError, pd.Pos, pd.Name, "pipeline calls itself: %s", ce.Error()), pd.File)
	}
	return decl.Errorf(decl.RecursionError, decl.Location{}, "", "%s", err)
}

// outputRequests evaluates the output declarations of the program.
func (inf *inferrer) outputRequests() (Requests, error) {
	var out Requests
	for _, o := range inf.prog.Outputs {
		req := Request{Pipeline: o.Pipeline}
		for _, b := range o.Bounds {
			lo, err := inf.ev.eval(b[0], &bindings{})
			if err != nil {
				return nil, err
			}
			hi, err := inf.ev.eval(b[1], &bindings{})
			if err != nil {
				return nil, err
			}
			req.Region = append(req.Region, ir.Interval{Min: lo.Min, Max: hi.Max})
		}
		out = append(out, req)
	}
	return out, nil
}

// request queues a region of a pipeline for the backward pass.
func (inf *inferrer) request(pipeline string, region Region, external bool, pos decl.Location) error {
	pd := inf.prog.Pipelines[pipeline]
	if pd == nil {
		return decl.Errorf(decl.UnknownReferenceError, pos, "", "no pipeline named '%s'", pipeline)
	}
	if len(region) != len(pd.Dims) {
		return decl.Errorf(decl.UnsatisfiableBoundsError, pos, pipeline, "'%s' has %d dims, request has %d", pipeline, len(pd.Dims), len(region))
	}
	if region.Empty() {
		return decl.Errorf(decl.UnsatisfiableBoundsError, pos, pipeline, "request of '%s' is empty or contradictory", pipeline)
	}
	if external && !region.Bounded() {
		return decl.Errorf(decl.UnsatisfiableBoundsError, pos, pipeline, "request %s of '%s' is unbounded", region, pipeline)
	}
	inf.pending[pipeline] = append(inf.pending[pipeline], pending{region: region.Clone(), external: external})
	return nil
}

// backward evaluates every region requested of a pipeline. All of its
// consumers have run by now.
func (inf *inferrer) backward(name string) error {
	pd := inf.prog.Pipelines[name]
	if inf.memo[name] == nil {
		inf.memo[name] = map[string]*RegionBounds{}
	}
	for _, req := range inf.pending[name] {
		key := req.region.Key()
		if rb, ok := inf.memo[name][key]; ok {
			rb.External = rb.External || req.external
			inf.result.Stats.MemoHits++
			continue
		}
		if len(inf.memo[name]) >= inf.opts.MaxRegions {
			return decl.WithFile(decl.Errorf(decl.UnsatisfiableBoundsError, pd.Pos, name, "more than %d distinct regions requested of '%s'", inf.opts.MaxRegions, name), pd.File)
		}
		alloc, err := inf.allocate(pd, req.region)
		if err != nil {
			return decl.WithFile(withDef(err, name), pd.File)
		}
		rb := &RegionBounds{
			Pipeline:   name,
			Region:     req.region,
			Allocation: alloc,
			Sliced:     !alloc.Equal(req.region),
			External:   req.external,
		}
		inf.memo[name][key] = rb
		inf.result.Regions = append(inf.result.Regions, rb)
		inf.result.Stats.Regions++
	}
	delete(inf.pending, name)
	return nil
}

// allocate computes the allocation for one region: the updates run over
// the requested region and their footprints widen it, then the Init runs
// over the widened region.
func (inf *inferrer) allocate(pd *ir.PipelineDef, region Region) (Region, error) {
	alloc := region.Clone()
	for _, s := range pd.Updates() {
		b := newBindings(pd.Dims, region)
		inf.observe(b, s.Pos)
		b.onLoad = func(buffer string, r Region) {
			if buffer == s.Result {
				alloc = alloc.Union(r)
			}
		}
		if err := inf.ev.bindDomain(s, b); err != nil {
			return nil, err
		}
		for _, st := range s.Stores {
			at, err := inf.ev.evalAll(st.Indices, b)
			if err != nil {
				return nil, err
			}
			alloc = alloc.Union(at)
			if _, err := inf.ev.eval(st.Value, b); err != nil {
				return nil, err
			}
		}
	}

	for i, d := range pd.Dims {
		if !alloc[i].IsBounded() {
			return nil, decl.Errorf(decl.UnsatisfiableBoundsError, pd.Pos, pd.Name, "allocation of '%s' is unbounded along '%s': %s", pd.Name, d.Name, alloc[i])
		}
	}

	b := newBindings(pd.Dims, alloc)
	inf.observe(b, pd.Init().Pos)
	if _, err := inf.ev.eval(pd.Init().Value, b); err != nil {
		return nil, err
	}
	return alloc, nil
}

// observe routes the calls and input reads of a stage to the callees.
func (inf *inferrer) observe(b *bindings, pos decl.Location) {
	b.onCall = func(callee string, r Region) error {
		return inf.request(callee, r, false, pos)
	}
	b.onInput = func(input string, r Region) {
		if prev, ok := inf.result.Inputs[input]; ok {
			inf.result.Inputs[input] = prev.Union(r)
		} else {
			inf.result.Inputs[input] = r.Clone()
		}
	}
}

// forward unions every allocation made of a pipeline. Its producers have
// been finalized already.
func (inf *inferrer) forward(name string) {
	var total Region
	for _, rb := range inf.result.Requested(name) {
		total = total.Union(rb.Allocation)
	}
	if total != nil {
		inf.result.Allocations[name] = total
	}
}

func withDef(err error, def string) error {
	var ce *decl.CompileError
	if errors.As(err, &ce) && ce.Def == "" {
		ce.Def = def
	}
	return err
}
