package bounds

import (
	"strings"

	"github.com/panyam/fsl/ir"
	gfn "github.com/panyam/goutils/fn"
)

// Region is one interval per dimension of a pipeline or input.
type Region []ir.Interval

func (r Region) String() string {
	if len(r) == 0 {
		return "[]"
	}
	return strings.Join(gfn.Map(r, func(i ir.Interval) string { return i.String() }), " x ")
}

// Key identifies a region for memoization.
func (r Region) Key() string { return r.String() }

func (r Region) Clone() Region { return append(Region{}, r...) }

// Union widens r dim by dim. Regions of different arity are not merged.
func (r Region) Union(o Region) Region {
	if r == nil {
		return o.Clone()
	}
	out := r.Clone()
	for i := range out {
		if i < len(o) {
			out[i] = out[i].Union(o[i])
		}
	}
	return out
}

func (r Region) Equal(o Region) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i] != o[i] {
			return false
		}
	}
	return true
}

// Contains is true when o lies inside r in every dim.
func (r Region) Contains(o Region) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Contains(o[i]) {
			return false
		}
	}
	return true
}

// Empty is true when any dim is empty or contradictory.
func (r Region) Empty() bool {
	for _, i := range r {
		if i.IsEmpty() {
			return true
		}
	}
	return false
}

func (r Region) Bounded() bool {
	for _, i := range r {
		if !i.IsBounded() {
			return false
		}
	}
	return true
}

// Request asks for the values of a pipeline over a region.
type Request struct {
	Pipeline string
	Region   Region
}

// Requests are the regions asked of the program from outside, usually
// its outputs.
type Requests []Request
