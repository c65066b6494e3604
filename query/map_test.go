package query

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	m := M("a", 1, "b", 2)
	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.False(t, m.Has("c"))
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, M("b", 2), m.Without("a"))
	assert.Equal(t, M("a", 3, "b", 2), m.With("a", 3))
	assert.Equal(t, M("a", 1, "b", 2, "c", 4), m.With("c", 4))
	// 原 Map 不变
	assert.Equal(t, M("a", 1, "b", 2), m)

	assert.Panics(t, func() { M("a") })
	assert.Panics(t, func() { M(1, 2) })
}

func TestMap_JSON(t *testing.T) {
	var m Map
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":{"y":[1,"x"],"b":1.5},"ORDER":{"id":"DESC"}}`), &m))
	assert.Equal(t, []string{"z", "a", "ORDER"}, m.Keys())
	assert.Equal(t, M("z", int64(1), "a", M("y", []any{int64(1), "x"}, "b", 1.5), "ORDER", M("id", "DESC")), m)

	data, err := json.Marshal(M("b", 1, "a", 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1,"a":2}`, string(data))
	assert.Equal(t, `{"b":1,"a":2}`, string(data))

	v, err := DecodeJSON([]byte(`["id","name"]`))
	require.NoError(t, err)
	assert.Equal(t, []any{"id", "name"}, v)

	require.Error(t, json.Unmarshal([]byte(`[1]`), &m))
}

func TestEntries(t *testing.T) {
	es, ok := entries([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, Map{{Value: "a"}, {Value: "b"}}, es)

	es, ok = entries(map[string]any{"b": 1, "a": 2})
	require.True(t, ok)
	assert.Equal(t, M("a", 2, "b", 1), es)

	_, ok = entries("x")
	assert.False(t, ok)
	_, ok = entries([]byte("x"))
	assert.False(t, ok)
}

func TestAsMapAndAsList(t *testing.T) {
	m, ok := AsMap(map[string]any{"b": 2, "a": 1})
	assert.True(t, ok)
	assert.Equal(t, M("a", 1, "b", 2), m)

	_, ok = AsMap(42)
	assert.False(t, ok)

	list, ok := AsList([]int{1, 2})
	assert.True(t, ok)
	assert.Equal(t, []any{1, 2}, list)

	list, ok = AsList(Map{{Value: "x"}, {Value: "y"}})
	assert.True(t, ok)
	assert.Equal(t, []any{"x", "y"}, list)

	_, ok = AsList(M("a", 1))
	assert.False(t, ok)
	_, ok = AsList([]byte("raw"))
	assert.False(t, ok)
}
