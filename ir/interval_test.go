package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		got      Interval
		expected Interval
	}{
		{"add", Span(0, 10).Add(Span(-1, 1)), Span(-1, 11)},
		{"sub", Span(0, 10).Sub(Span(1, 2)), Span(-2, 9)},
		{"neg", Span(-3, 5).Neg(), Span(-5, 3)},
		{"mul mixed signs", Span(-2, 3).Mul(Span(4, 5)), Span(-10, 15)},
		{"div floor", Span(-3, 7).Div(Point(2)), Span(-2, 3)},
		{"div by negative", Span(2, 9).Div(Point(-3)), Span(-3, -1)},
		{"div by range spanning zero", Span(1, 2).Div(Span(-1, 1)), Unbounded()},
		{"div by range starting at zero", Span(4, 8).Div(Span(0, 2)), Span(2, 8)},
		{"mod bounded", Span(-100, 100).Mod(Point(8)), Span(0, 7)},
		{"mod already in range", Span(1, 3).Mod(Point(8)), Span(1, 3)},
		{"min", Span(0, 10).Min2(Span(5, 7)), Span(0, 7)},
		{"max", Span(0, 10).Max2(Span(5, 7)), Span(5, 10)},
		{"abs spanning", Span(-7, 3).Abs(), Span(0, 7)},
		{"abs negative", Span(-7, -3).Abs(), Span(3, 7)},
		{"clamp", Span(-50, 500).Clamp(Point(0), Point(255)), Span(0, 255)},
		{"union", Span(0, 3).Union(Span(10, 12)), Span(0, 12)},
		{"union with empty", Empty().Union(Span(1, 2)), Span(1, 2)},
		{"intersect disjoint", Span(0, 3).Intersect(Span(5, 6)), Empty()},
		{"intersect", Span(0, 5).Intersect(Span(3, 9)), Span(3, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestIntervalSaturation(t *testing.T) {
	half := Interval{Min: 0, Max: PosInf}
	assert.Equal(t, Interval{Min: 1, Max: PosInf}, half.Add(Point(1)))
	assert.Equal(t, Interval{Min: NegInf, Max: 0}, half.Neg())
	assert.Equal(t, Unbounded(), Unbounded().Add(Point(1)))
	assert.Equal(t, Interval{Min: NegInf, Max: PosInf}, half.Mul(Span(-1, 1)))

	big := Point(PosInf - 1)
	assert.Equal(t, PosInf, big.Add(Point(10)).Max)
	assert.Equal(t, PosInf, Point(1<<40).Mul(Point(1<<40)).Max)
	assert.Equal(t, NegInf, Point(-(1 << 40)).Mul(Point(1<<40)).Min)
	assert.False(t, half.IsBounded())
	assert.Equal(t, PosInf, half.Extent())
}

func TestIntervalPredicates(t *testing.T) {
	assert.True(t, Empty().IsEmpty())
	assert.True(t, Point(3).IsPoint())
	assert.Equal(t, int64(256), Span(0, 255).Extent())
	assert.Equal(t, int64(0), Empty().Extent())
	assert.True(t, Span(0, 300).Contains(Span(0, 255)))
	assert.False(t, Span(0, 255).Contains(Span(0, 300)))
	assert.True(t, Span(0, 1).Contains(Empty()))
	assert.Equal(t, "[0, 255]", Span(0, 255).String())
	assert.Equal(t, "[-inf, +inf]", Unbounded().String())
	assert.Equal(t, "empty", Empty().String())
}

func TestIntervalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Interval{"a": Span(0, 255), "b": {Min: 0, Max: PosInf}, "c": Empty()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": [0, 255], "b": [0, "+inf"], "c": null}`, string(data))
}

func TestScalarTypeRanges(t *testing.T) {
	assert.Equal(t, Span(0, 255), ScalarType{Kind: UIntKind, Bits: 8}.Range())
	assert.Equal(t, Span(0, 65535), ScalarType{Kind: UIntKind, Bits: 16}.Range())
	assert.Equal(t, Span(-128, 127), ScalarType{Kind: IntKind, Bits: 8}.Range())
	assert.Equal(t, Span(-2147483648, 2147483647), Int32.Range())
	assert.Equal(t, Unbounded(), Float32.Range())
	assert.Equal(t, Bool(), BoolT.Range())
	assert.Equal(t, "UInt(16)", ScalarType{Kind: UIntKind, Bits: 16}.String())
}
