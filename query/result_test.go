package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestShape_Types(t *testing.T) {
	meta, err := msgpack.Marshal(map[string]any{"k": "v"})
	require.NoError(t, err)

	st := New().PrepareSelect("user", []string{
		"id[Int]", "name(n)", "score[Number]", "ok[Bool]", "tags[JSON]", "meta[Object]", "note",
	})
	res := st.Shape([]Row{{
		"id":    []byte("7"),
		"n":     []byte("bob"),
		"score": []byte("1.5"),
		"ok":    int64(1),
		"tags":  []byte(`{"a":1}`),
		"meta":  meta,
		"note":  nil,
	}})

	require.Equal(t, 1, res.Len())
	assert.Equal(t, Row{
		"id":    int64(7),
		"n":     "bob",
		"score": 1.5,
		"ok":    true,
		"tags":  map[string]any{"a": float64(1)},
		"meta":  map[string]any{"k": "v"},
		"note":  nil,
	}, res.First())
}

func TestShape_Raw(t *testing.T) {
	st := New().PrepareSelect("user", "*")
	res := st.Shape([]Row{{"id": int64(1), "name": []byte("a")}})
	assert.Equal(t, []Row{{"id": int64(1), "name": "a"}}, res.Rows)
}

func TestShape_Single(t *testing.T) {
	st := New().PrepareSelect("user", "age(a)[Int]", M("id[>]", 0))
	res := st.Shape([]Row{{"a": "3"}, {"a": "4"}})
	assert.Equal(t, []any{int64(3), int64(4)}, res.Values)
	assert.Equal(t, int64(3), res.Value())
	assert.Equal(t, 2, res.Len())
}

func TestShape_Index(t *testing.T) {
	st := New().PrepareSelect("user", M("user.id", []string{"name", "age[Int]"}))
	res := st.Shape([]Row{
		{"id": int64(1), "name": "a", "age": "3"},
		{"id": int64(2), "name": "b", "age": "4"},
	})
	assert.Equal(t, []string{"1", "2"}, res.Keys)
	assert.Equal(t, Row{"name": "a", "age": int64(3)}, res.Index["1"])
	assert.Equal(t, Row{"name": "a", "age": int64(3)}, res.First())
	assert.Equal(t, 2, res.Len())
}

func TestShape_Groups(t *testing.T) {
	st := New().PrepareSelect("user", M(
		"base", []any{"id[Int]", []string{"name"}},
		"profile", []string{"bio"},
	))
	res := st.Shape([]Row{{"id": "1", "name": "a", "bio": "x"}})
	assert.Equal(t, Row{
		"base":    Row{"id": int64(1), "name": "a"},
		"profile": Row{"bio": "x"},
	}, res.First())
}

func TestShape_RawColumnSkipsObject(t *testing.T) {
	st := New().PrepareSelect("user", []any{
		"id",
		M("total[Int]", Raw("COUNT(*)", nil)),
		M("doc[JSON]", Raw("<doc>", nil)),
	})
	assert.Equal(t, "SELECT `id`,COUNT(*) AS `total`,`doc` AS `doc` FROM `user`", st.SQL)
	res := st.Shape([]Row{{"id": int64(1), "total": []byte("5"), "doc": "{}"}})
	assert.Equal(t, Row{"id": int64(1), "total": int64(5)}, res.First())
}

func TestResult_Empty(t *testing.T) {
	var res *Result
	assert.Equal(t, 0, res.Len())
	assert.Nil(t, res.First())
	assert.Nil(t, res.Value())

	st := New().PrepareSelect("user", []string{"id"})
	res = st.Shape(nil)
	assert.Nil(t, res.First())
	assert.Equal(t, 0, res.Len())
}
