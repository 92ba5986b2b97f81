package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	B string `json:"b"`
	A int    `json:"a"`
	C string `json:"c,omitempty"`
}

func TestMarshal(t *testing.T) {
	t.Run("keys are sorted and html is not escaped", func(t *testing.T) {
		out, err := Marshal(sample{B: "<x>", A: 1})
		require.NoError(t, err)
		assert.Equal(t, `{"a":1,"b":"<x>"}`, string(out))
	})

	t.Run("maps and structs with the same content agree", func(t *testing.T) {
		fromStruct, err := Marshal(sample{B: "v", A: 2})
		require.NoError(t, err)
		fromMap, err := Marshal(map[string]any{"a": 2, "b": "v"})
		require.NoError(t, err)
		assert.Equal(t, fromStruct, fromMap)
	})
}

func TestID(t *testing.T) {
	first, err := ID(sample{B: "v", A: 2})
	require.NoError(t, err)
	second, err := ID(map[string]any{"b": "v", "a": 2})
	require.NoError(t, err)
	other, err := ID(sample{B: "w", A: 2})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Equal(t, 5, int(first.Version()))
}

func TestFraction(t *testing.T) {
	for _, v := range []any{"a", 1, sample{B: "x"}, []string{"p", "q"}} {
		f, err := Fraction(v)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)

		again, err := Fraction(v)
		require.NoError(t, err)
		assert.Equal(t, f, again)
	}
}
