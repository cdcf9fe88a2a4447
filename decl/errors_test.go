package decl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	gta "gotest.tools/v3/assert"
)

func TestCompileErrorFormat(t *testing.T) {
	pos := Location{Pos: 12, Line: 3, Col: 5}
	err := Errorf(RecursionError, pos, "f", "pipeline calls itself")
	assert.Equal(t, "RecursionError at 3:5 in 'f': pipeline calls itself", err.Error())

	wrapped := fmt.Errorf("loading: %w", err)
	assert.Same(t, wrapped, WithFile(wrapped, "a.fsl"))
	assert.Equal(t, "RecursionError a.fsl:3:5 in 'f': pipeline calls itself", err.Error())

	// The first file stamped wins
	WithFile(wrapped, "b.fsl")
	assert.Equal(t, "a.fsl", err.File)

	noPos := Errorf(ScheduleError, Location{}, "", "bad")
	assert.Equal(t, "ScheduleError: bad", noPos.Error())

	// A node parsed from an imported file keeps that file
	imported := Errorf(UnboundedDomainError, Location{Line: 7, Col: 21, File: "lib/bad.fsl"}, "bad.upd", "unbounded")
	WithFile(imported, "main.fsl")
	assert.Equal(t, "UnboundedDomainError lib/bad.fsl:7:21 in 'bad.upd': unbounded", imported.Error())
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("outer: %w", Errorf(AmbiguousReferenceError, Location{}, "", "x"))
	gta.ErrorIs(t, err, ErrAmbiguousReference)
	assert.False(t, errors.Is(err, ErrUnknownReference))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, AmbiguousReferenceError, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
