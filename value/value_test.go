package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		expected any
	}{
		{"nil", nil, nil},
		{"int", 42, int64(42)},
		{"int32", int32(-7), int64(-7)},
		{"uint8", uint8(200), uint64(200)},
		{"float32", float32(1.5), float64(1.5)},
		{"json integer", json.Number("12"), int64(12)},
		{"json large unsigned", json.Number("18446744073709551615"), uint64(math.MaxUint64)},
		{"json float", json.Number("1.25"), float64(1.25)},
		{"string", "x", "x"},
		{"typed slice", []string{"a", "b"}, []any{"a", "b"}},
		{"any keyed map", map[any]any{1: "one", "two": 2}, map[string]any{"1": "one", "two": int64(2)}},
		{
			"nested",
			map[string]any{"a": []any{1, map[string]any{"b": float32(2)}}},
			map[string]any{"a": []any{int64(1), map[string]any{"b": float64(2)}}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Normalize(test.in))
		})
	}
}

func TestClone(t *testing.T) {
	original := map[string]any{
		"list": []any{int64(1), "two"},
		"map":  map[string]any{"k": "v"},
		"raw":  []byte("abc"),
	}

	cloned, ok := Clone(original).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, original, cloned)

	cloned["list"].([]any)[0] = int64(99)
	cloned["map"].(map[string]any)["k"] = "changed"
	cloned["raw"].([]byte)[0] = 'z'

	assert.Equal(t, int64(1), original["list"].([]any)[0])
	assert.Equal(t, "v", original["map"].(map[string]any)["k"])
	assert.Equal(t, []byte("abc"), original["raw"])

	assert.Nil(t, CloneMap(nil))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(map[string]any{"a": []any{int64(1)}}, map[string]any{"a": []any{int64(1)}}))
	assert.False(t, Equal(map[string]any{"a": int64(1)}, map[string]any{"a": uint64(1)}))
	assert.False(t, Equal([]any{"a"}, []any{"a", "b"}))
	assert.True(t, Equal(math.NaN(), math.NaN()))
	assert.True(t, Equal([]byte("x"), []byte("x")))
	assert.False(t, Equal("x", []byte("x")))
	assert.True(t, Equal(nil, nil))
}
