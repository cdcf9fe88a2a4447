package decl

import (
	"errors"
	"fmt"
)

// ErrorKind classifies compile errors. Every pass fails fast with one of these.
type ErrorKind string

const (
	SyntaxViolation          ErrorKind = "SyntaxViolation"
	StageOrderError          ErrorKind = "StageOrderError"
	UnboundedDomainError     ErrorKind = "UnboundedDomainError"
	UnsatisfiableBoundsError ErrorKind = "UnsatisfiableBoundsError"
	RecursionError           ErrorKind = "RecursionError"
	AmbiguousReferenceError  ErrorKind = "AmbiguousReferenceError"
	UnknownReferenceError    ErrorKind = "UnknownReferenceError"
	ScheduleError            ErrorKind = "ScheduleError"
)

// Sentinels so callers can use errors.Is(err, decl.ErrRecursion).
var (
	ErrSyntaxViolation     = errors.New(string(SyntaxViolation))
	ErrStageOrder          = errors.New(string(StageOrderError))
	ErrUnboundedDomain     = errors.New(string(UnboundedDomainError))
	ErrUnsatisfiableBounds = errors.New(string(UnsatisfiableBoundsError))
	ErrRecursion           = errors.New(string(RecursionError))
	ErrAmbiguousReference  = errors.New(string(AmbiguousReferenceError))
	ErrUnknownReference    = errors.New(string(UnknownReferenceError))
	ErrSchedule            = errors.New(string(ScheduleError))
)

var sentinels = map[ErrorKind]error{
	SyntaxViolation:          ErrSyntaxViolation,
	StageOrderError:          ErrStageOrder,
	UnboundedDomainError:     ErrUnboundedDomain,
	UnsatisfiableBoundsError: ErrUnsatisfiableBounds,
	RecursionError:           ErrRecursion,
	AmbiguousReferenceError:  ErrAmbiguousReference,
	UnknownReferenceError:    ErrUnknownReference,
	ScheduleError:            ErrSchedule,
}

// CompileError is a failure reported against the originating definition.
type CompileError struct {
	Kind ErrorKind
	Pos  Location
	Def  string // Name of the definition being processed, if any
	File string
	Msg  string
}

// Errorf builds a CompileError. The file is taken from pos when the node
// carries one.
func Errorf(kind ErrorKind, pos Location, def string, format string, args ...any) *CompileError {
	return &CompileError{
		Kind: kind,
		Pos:  pos,
		Def:  def,
		File: pos.File,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (e *CompileError) Error() string {
	out := string(e.Kind)
	if e.File != "" {
		out += " " + e.File
		if !e.Pos.IsZero() {
			out += ":" + e.Pos.LineColStr()
		}
	} else if !e.Pos.IsZero() {
		out += " at " + e.Pos.LineColStr()
	}
	if e.Def != "" {
		out += fmt.Sprintf(" in '%s'", e.Def)
	}
	return out + ": " + e.Msg
}

// Is matches the sentinel of the same kind.
func (e *CompileError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the kind of the first CompileError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// WithFile stamps the file path on a CompileError found in err's chain.
func WithFile(err error, path string) error {
	var ce *CompileError
	if errors.As(err, &ce) && ce.File == "" {
		ce.File = path
	}
	return err
}
