package ir

import (
	"fmt"

	"github.com/panyam/fsl/decl"
)

type TypeKind int

const (
	IntKind TypeKind = iota
	UIntKind
	FloatKind
	BoolKind
)

// ScalarType is an element type such as Int(32) or UInt(8).
type ScalarType struct {
	Kind TypeKind
	Bits int
}

var (
	Int32   = ScalarType{Kind: IntKind, Bits: 32}
	Float32 = ScalarType{Kind: FloatKind, Bits: 32}
	BoolT   = ScalarType{Kind: BoolKind, Bits: 1}
)

func (t ScalarType) String() string {
	switch t.Kind {
	case IntKind:
		return fmt.Sprintf("Int(%d)", t.Bits)
	case UIntKind:
		return fmt.Sprintf("UInt(%d)", t.Bits)
	case FloatKind:
		return fmt.Sprintf("Float(%d)", t.Bits)
	}
	return "Bool"
}

// Range is the set of values the type can hold. Floats are unbounded.
func (t ScalarType) Range() Interval {
	switch t.Kind {
	case BoolKind:
		return Bool()
	case FloatKind:
		return Unbounded()
	case UIntKind:
		if t.Bits >= 63 {
			return Interval{Min: 0, Max: PosInf}
		}
		return Interval{Min: 0, Max: int64(1)<<t.Bits - 1}
	}
	if t.Bits >= 64 {
		return Unbounded()
	}
	return Interval{Min: -(int64(1) << (t.Bits - 1)), Max: int64(1)<<(t.Bits-1) - 1}
}

// ScalarTypeOf converts a declared scalar type.
func ScalarTypeOf(td *decl.TypeDecl) (ScalarType, error) {
	kinds := map[string]TypeKind{"Int": IntKind, "UInt": UIntKind, "Float": FloatKind, "Bool": BoolKind}
	kind, ok := kinds[td.Name]
	if !ok {
		return ScalarType{}, decl.Errorf(decl.SyntaxViolation, td.Pos(), "", "unknown scalar type '%s'", td)
	}
	if kind == BoolKind {
		if len(td.Args) > 0 {
			return ScalarType{}, decl.Errorf(decl.SyntaxViolation, td.Pos(), "", "Bool takes no arguments")
		}
		return BoolT, nil
	}
	out := ScalarType{Kind: kind, Bits: 32}
	if len(td.Args) > 1 || (len(td.Args) == 1 && !td.Args[0].IsInt) {
		return ScalarType{}, decl.Errorf(decl.SyntaxViolation, td.Pos(), "", "%s takes a single bit width, found %s", td.Name, td)
	}
	if len(td.Args) == 1 {
		out.Bits = int(td.Args[0].IntArg)
	}
	valid := map[int]bool{8: true, 16: true, 32: true, 64: true}
	if kind == FloatKind {
		valid = map[int]bool{16: true, 32: true, 64: true}
	}
	if !valid[out.Bits] {
		return ScalarType{}, decl.Errorf(decl.SyntaxViolation, td.Pos(), "", "unsupported bit width in %s", td)
	}
	return out, nil
}

// BufferTypeOf converts Buffer(elem, ndims).
func BufferTypeOf(td *decl.TypeDecl) (elem ScalarType, ndims int, err error) {
	if !td.IsBuffer() || len(td.Args) != 2 || td.Args[0].IsInt || !td.Args[1].IsInt {
		return elem, 0, decl.Errorf(decl.SyntaxViolation, td.Pos(), "", "expected Buffer(type, ndims), found %s", td)
	}
	if elem, err = ScalarTypeOf(td.Args[0]); err != nil {
		return
	}
	ndims = int(td.Args[1].IntArg)
	if ndims < 1 {
		return elem, 0, decl.Errorf(decl.SyntaxViolation, td.Pos(), "", "buffers need at least one dimension, found %s", td)
	}
	return elem, ndims, nil
}
