package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvScoping(t *testing.T) {
	outer := NewEnv[int](nil)
	outer.Set("x", 1)
	outer.Set("y", 2)

	inner := outer.Extend(map[string]int{"y": 20, "z": 30})
	v, ok := inner.Get("x")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	v, _ = inner.Get("y")
	assert.Equal(t, 20, v)
	assert.True(t, inner.Has("z"))
	assert.False(t, inner.Has("x"))
	assert.Equal(t, []string{"y", "z"}, inner.Keys())

	_, ok = outer.Get("z")
	assert.False(t, ok)

	var nilEnv *Env[int]
	assert.Nil(t, nilEnv.GetRef("x"))
}
