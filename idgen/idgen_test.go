package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUnique(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestStableJSONKeyOrderIndependent(t *testing.T) {
	cases := []struct {
		name string
		a    map[string]any
		b    map[string]any
	}{
		{
			name: "flat map different insertion order",
			a:    map[string]any{"b": 1, "a": 2},
			b:    map[string]any{"a": 2, "b": 1},
		},
		{
			name: "nested map",
			a:    map[string]any{"outer": map[string]any{"z": 1, "y": 2}, "id": "x"},
			b:    map[string]any{"id": "x", "outer": map[string]any{"y": 2, "z": 1}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ja, err := StableJSON(tc.a)
			require.NoError(t, err)
			jb, err := StableJSON(tc.b)
			require.NoError(t, err)
			assert.Equal(t, string(ja), string(jb))
		})
	}
}

func TestDigestMatchesForEquivalentValues(t *testing.T) {
	a := map[string]any{"x": 1, "y": []any{1, 2, 3}}
	b := map[string]any{"y": []any{1, 2, 3}, "x": 1}

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
	assert.Len(t, da, 64)
}

func TestDigestDiffersOnChange(t *testing.T) {
	a := map[string]any{"x": 1}
	b := map[string]any{"x": 2}

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)

	assert.NotEqual(t, da, db)
}
