package ir

import (
	"encoding/json"
	"fmt"
	"math"
)

// Sentinels for unbounded interval ends. Arithmetic on them saturates.
const (
	NegInf int64 = math.MinInt64
	PosInf int64 = math.MaxInt64
)

// Interval is the inclusive range [Min, Max]. Min > Max is the empty interval.
type Interval struct {
	Min int64
	Max int64
}

func Span(lo, hi int64) Interval { return Interval{Min: lo, Max: hi} }

func Point(v int64) Interval { return Interval{Min: v, Max: v} }

func Unbounded() Interval { return Interval{Min: NegInf, Max: PosInf} }

// Empty is the identity of Union.
func Empty() Interval { return Interval{Min: PosInf, Max: NegInf} }

// Bool is the range of a comparison or logical result.
func Bool() Interval { return Interval{Min: 0, Max: 1} }

func (i Interval) IsEmpty() bool { return i.Min > i.Max }

func (i Interval) IsPoint() bool { return !i.IsEmpty() && i.Min == i.Max && i.IsBounded() }

// IsBounded is true when neither end is infinite.
func (i Interval) IsBounded() bool {
	return !i.IsEmpty() && i.Min != NegInf && i.Max != PosInf
}

// Extent is the number of points covered, saturating at PosInf.
func (i Interval) Extent() int64 {
	if i.IsEmpty() {
		return 0
	}
	if !i.IsBounded() {
		return PosInf
	}
	return satAdd(satSub(i.Max, i.Min), 1)
}

// Contains is true when other lies within i. The empty interval is contained
// in everything.
func (i Interval) Contains(other Interval) bool {
	if other.IsEmpty() {
		return true
	}
	return !i.IsEmpty() && i.Min <= other.Min && other.Max <= i.Max
}

func (i Interval) ContainsValue(v int64) bool { return i.Min <= v && v <= i.Max }

func (i Interval) Union(other Interval) Interval {
	if i.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return i
	}
	return Interval{Min: min(i.Min, other.Min), Max: max(i.Max, other.Max)}
}

func (i Interval) Intersect(other Interval) Interval {
	out := Interval{Min: max(i.Min, other.Min), Max: min(i.Max, other.Max)}
	if out.IsEmpty() {
		return Empty()
	}
	return out
}

func (i Interval) Add(o Interval) Interval {
	if i.IsEmpty() || o.IsEmpty() {
		return Empty()
	}
	return Interval{Min: satAdd(i.Min, o.Min), Max: satAdd(i.Max, o.Max)}
}

func (i Interval) Neg() Interval {
	if i.IsEmpty() {
		return Empty()
	}
	return Interval{Min: satNeg(i.Max), Max: satNeg(i.Min)}
}

func (i Interval) Sub(o Interval) Interval { return i.Add(o.Neg()) }

func (i Interval) Mul(o Interval) Interval {
	if i.IsEmpty() || o.IsEmpty() {
		return Empty()
	}
	return corners(satMul, i, o)
}

// Div is floor division. A divisor range that spans zero gives an unbounded
// result unless the dividend is exactly zero.
func (i Interval) Div(o Interval) Interval {
	if i.IsEmpty() || o.IsEmpty() {
		return Empty()
	}
	if i.Min == 0 && i.Max == 0 {
		return Point(0)
	}
	if o.ContainsValue(0) {
		if o.Min == 0 && o.Max > 0 {
			return i.Div(Interval{Min: 1, Max: o.Max})
		}
		if o.Max == 0 && o.Min < 0 {
			return i.Div(Interval{Min: o.Min, Max: -1})
		}
		return Unbounded()
	}
	return corners(floorDiv, i, o)
}

// Mod is the euclidean remainder, always in [0, |divisor| - 1].
func (i Interval) Mod(o Interval) Interval {
	if i.IsEmpty() || o.IsEmpty() {
		return Empty()
	}
	bound := max(satAbs(o.Min), satAbs(o.Max))
	if bound == PosInf {
		if i.Min >= 0 {
			return Interval{Min: 0, Max: i.Max}
		}
		return Interval{Min: 0, Max: PosInf}
	}
	if bound == 0 {
		return Unbounded()
	}
	if o.IsPoint() && i.Min >= 0 && i.Max < bound {
		return i
	}
	return Interval{Min: 0, Max: bound - 1}
}

func (i Interval) Min2(o Interval) Interval {
	if i.IsEmpty() || o.IsEmpty() {
		return Empty()
	}
	return Interval{Min: min(i.Min, o.Min), Max: min(i.Max, o.Max)}
}

func (i Interval) Max2(o Interval) Interval {
	if i.IsEmpty() || o.IsEmpty() {
		return Empty()
	}
	return Interval{Min: max(i.Min, o.Min), Max: max(i.Max, o.Max)}
}

func (i Interval) Abs() Interval {
	if i.IsEmpty() {
		return Empty()
	}
	if i.Min >= 0 {
		return i
	}
	if i.Max <= 0 {
		return i.Neg()
	}
	return Interval{Min: 0, Max: max(satNeg(i.Min), i.Max)}
}

// Clamp bounds i to [lo.Min, hi.Max] the way clamp(x, lo, hi) does.
func (i Interval) Clamp(lo, hi Interval) Interval {
	return i.Min2(hi).Max2(lo)
}

func (i Interval) String() string {
	if i.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("[%s, %s]", endString(i.Min), endString(i.Max))
}

func endString(v int64) string {
	switch v {
	case NegInf:
		return "-inf"
	case PosInf:
		return "+inf"
	}
	return fmt.Sprintf("%d", v)
}

// MarshalJSON writes [min, max] with infinite ends as "-inf" / "+inf" and
// the empty interval as null.
func (i Interval) MarshalJSON() ([]byte, error) {
	if i.IsEmpty() {
		return []byte("null"), nil
	}
	end := func(v int64) any {
		if v == NegInf || v == PosInf {
			return endString(v)
		}
		return v
	}
	return json.Marshal([]any{end(i.Min), end(i.Max)})
}

// --- saturating helpers ---

func isInf(v int64) bool { return v == NegInf || v == PosInf }

func satNeg(v int64) int64 {
	switch v {
	case NegInf:
		return PosInf
	case PosInf:
		return NegInf
	}
	return -v
}

func satAbs(v int64) int64 {
	if v < 0 {
		return satNeg(v)
	}
	return v
}

func satAdd(a, b int64) int64 {
	if isInf(a) || isInf(b) {
		if a == PosInf || b == PosInf {
			if a == NegInf || b == NegInf {
				return 0
			}
			return PosInf
		}
		return NegInf
	}
	s := a + b
	if a > 0 && b > 0 && s < 0 {
		return PosInf
	}
	if a < 0 && b < 0 && s >= 0 {
		return NegInf
	}
	return s
}

func satSub(a, b int64) int64 { return satAdd(a, satNeg(b)) }

func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	neg := (a < 0) != (b < 0)
	if isInf(a) || isInf(b) {
		if neg {
			return NegInf
		}
		return PosInf
	}
	r := a * b
	if r/b != a {
		if neg {
			return NegInf
		}
		return PosInf
	}
	return r
}

// floorDiv assumes b != 0.
func floorDiv(a, b int64) int64 {
	if isInf(a) {
		if (a < 0) != (b < 0) {
			return NegInf
		}
		return PosInf
	}
	if isInf(b) {
		if a == 0 || (a < 0) == (b < 0) {
			return 0
		}
		return -1
	}
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func corners(op func(a, b int64) int64, i, o Interval) Interval {
	vals := [4]int64{op(i.Min, o.Min), op(i.Min, o.Max), op(i.Max, o.Min), op(i.Max, o.Max)}
	out := Interval{Min: vals[0], Max: vals[0]}
	for _, v := range vals[1:] {
		out.Min = min(out.Min, v)
		out.Max = max(out.Max, v)
	}
	return out
}
