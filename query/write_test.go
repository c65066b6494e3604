package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/shardsql/xerrors"
)

func TestCompileInsert(t *testing.T) {
	st, err := New(WithPrefix("app_")).CompileInsert("user", []Map{
		M("name", "a", "age", 1),
		M("name", "b", "tags[JSON]", []string{"x", "y"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `app_user` (`name`, `age`, `tags`) VALUES (:p0, :p1, :p2), (:p3, :p4, :p5)", st.SQL)

	p, _ := st.Params.Get(":p2")
	assert.Equal(t, KindNull, p.Kind)
	p, _ = st.Params.Get(":p4")
	assert.Equal(t, KindNull, p.Kind)
	p, _ = st.Params.Get(":p5")
	assert.Equal(t, KindString, p.Kind)
	assert.Equal(t, `["x","y"]`, p.Value)
	p, _ = st.Params.Get(":p1")
	assert.Equal(t, KindInt, p.Kind)
}

func TestCompileInsert_SingleRowAndRaw(t *testing.T) {
	st, err := New().CompileInsert("log", map[string]any{
		"created_at": Raw("NOW()", nil),
		"msg":        "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `log` (`created_at`, `msg`) VALUES (NOW(), :p0)", st.SQL)
}

func TestCompileInsert_Object(t *testing.T) {
	st, err := New().CompileInsert("user", M("meta", M("level", 3)))
	require.NoError(t, err)

	p, ok := st.Params.Get(":p0")
	require.True(t, ok)
	data, ok := p.Value.([]byte)
	require.True(t, ok)

	var decoded map[string]int
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]int{"level": 3}, decoded)
}

func TestCompileInsert_Empty(t *testing.T) {
	_, err := New().CompileInsert("user", nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	_, err = New().CompileInsert("user", []Map{})
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestCompileUpdate(t *testing.T) {
	st, err := New().CompileUpdate("user", M(
		"age[+]", 1,
		"score[*]", 1.5,
		"name", "x",
		"visits[-]", "abc",
		"updated_at", Raw("NOW()", nil),
		"tags [JSON]", []int{1},
	), M("id", 5))
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE `user` SET `age` = `age` + 1, `score` = `score` * 1.5, `name` = :p2, `updated_at` = NOW(), `tags` = :p4 WHERE `id` = :p5",
		st.SQL)

	p, _ := st.Params.Get(":p4")
	assert.Equal(t, "[1]", p.Value)
}

func TestCompileUpdate_Empty(t *testing.T) {
	_, err := New().CompileUpdate("user", M(), nil)
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestCompileReplace(t *testing.T) {
	st, err := New(WithPrefix("app_")).CompileReplace("post", M(
		"title", M("foo", "bar", "baz", "qux"),
		"body", M("http://", "https://"),
		"skipped", "not a map",
	), M("id", 3))
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE `app_post` SET `title` = REPLACE(REPLACE(`title`, :p0, :p1), :p2, :p3), `body` = REPLACE(`body`, :p4, :p5) WHERE `id` = :p6",
		st.SQL)

	p, ok := st.Params.Get(":p4")
	require.True(t, ok)
	assert.Equal(t, Param{Name: ":p4", Value: "http://", Kind: KindString}, p)
	p, _ = st.Params.Get(":p6")
	assert.Equal(t, KindInt, p.Kind)

	for _, columns := range []any{nil, M(), M("title", "x")} {
		_, err := New().CompileReplace("post", columns, nil)
		assert.ErrorIs(t, err, ErrEmptyData)
	}
}

func TestCompileDelete(t *testing.T) {
	st := New(WithPrefix("app_")).CompileDelete("user", M("id[<]", 10, "LIMIT", 100))
	assert.Equal(t, "DELETE FROM `app_user` WHERE `id` < :p0 LIMIT 100", st.SQL)

	st = New().CompileDelete("user", nil)
	assert.Equal(t, "DELETE FROM `user`", st.SQL)
}
