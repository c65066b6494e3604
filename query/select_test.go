package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSelect(t *testing.T) {
	c := New(WithPrefix("app_"))
	sql, params := c.CompileSelect("user", []string{"id", "name"}, M(
		"age[>]", 18,
		"ORDER", M("id", "DESC"),
		"LIMIT", 10,
	))
	assert.Equal(t, "SELECT `id`,`name` FROM `app_user` WHERE `age` > :p0 ORDER BY `id` DESC LIMIT 10", sql)
	require.Equal(t, 1, params.Len())
	assert.Equal(t, Param{Name: ":p0", Value: 18, Kind: KindInt}, params.List()[0])
}

func TestCompileSelect_Deterministic(t *testing.T) {
	c := New()
	where := M("a", 1, "b[~]", "x", "c[<>]", []int{1, 2})
	sql1, p1 := c.CompileSelect("t", "*", where)
	sql2, p2 := c.CompileSelect("t", "*", where)
	assert.Equal(t, sql1, sql2)
	assert.Equal(t, p1.List(), p2.List())
}

func TestCompileSelect_ArgumentRoles(t *testing.T) {
	c := New()
	tests := []struct {
		name string
		args []any
		want string
	}{
		{"table only", nil, "SELECT * FROM `user`"},
		{"columns", []any{"name"}, "SELECT `name` FROM `user`"},
		{"columns and where", []any{[]string{"id"}, M("id", 1)}, "SELECT `id` FROM `user` WHERE `id` = :p0"},
		{
			"join columns where",
			[]any{M("[>]post", M("id", "user_id")), []string{"user.name", "post.title"}, M("user.id", 1)},
			"SELECT `user`.`name`,`post`.`title` FROM `user` LEFT JOIN `post` ON `user`.`id` = `post`.`user_id` WHERE `user`.`id` = :p0",
		},
		{
			"join and columns",
			[]any{M("[><]account", "user_id"), "*"},
			"SELECT * FROM `user` INNER JOIN `account` USING (`user_id`)",
		},
		{
			"aliased table",
			[]any{M("[<]post(p)", []string{"uid", "gid"}), []string{"u.id"}},
			"SELECT `u`.`id` FROM `user` AS `u` RIGHT JOIN `post` AS `p` USING (`uid`, `gid`)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := "user"
			if tt.name == "aliased table" {
				table = "user(u)"
			}
			sql, _ := c.CompileSelect(table, tt.args...)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestCompileJoin(t *testing.T) {
	c := New(WithPrefix("app_"))
	join := M(
		"[>]post(p)", M("id", "user_id", "account.type", "kind"),
		"[<>]tag", "tag_id",
		"bad key", "x",
	)
	assert.Equal(t,
		"LEFT JOIN `app_post` AS `app_p` ON `app_user`.`id` = `app_p`.`user_id` AND `app_account`.`type` = `app_p`.`kind` "+
			"FULL JOIN `app_tag` USING (`tag_id`)",
		c.CompileJoin("`app_user`", join))
}

func TestPrepareSelect_Shaping(t *testing.T) {
	c := New()

	st := c.PrepareSelect("user", "*", M("id", 1))
	assert.True(t, st.Raw)

	st = c.PrepareSelect("user")
	assert.True(t, st.Raw)

	st = c.PrepareSelect("user", []string{"user.*"})
	assert.True(t, st.Raw)

	st = c.PrepareSelect("user", "name", M("id", 1))
	assert.False(t, st.Raw)
	assert.Equal(t, "name", st.Single)

	st = c.PrepareSelect("user", []string{"name"}, M("id", 1))
	assert.Empty(t, st.Single)
}

func TestPrepareGet_StripsLimit(t *testing.T) {
	c := New()
	where := M("id", 1, "ORDER", "id", "LIMIT", 5)

	got := c.PrepareGet("user", "*", where)
	want := c.PrepareSelect("user", "*", where.Without("LIMIT"))
	assert.Equal(t, want.SQL, got.SQL)
	assert.Equal(t, want.Params.List(), got.Params.List())
	assert.Equal(t, "SELECT * FROM `user` WHERE `id` = :p0 ORDER BY `id`", got.SQL)

	// 原参数不被修改
	assert.True(t, where.Has("LIMIT"))

	got = c.PrepareGet("user", M("[>]post", "uid"), "post.title", M("id", 1, "LIMIT", 1))
	assert.Equal(t, "SELECT `post`.`title` FROM `user` LEFT JOIN `post` USING (`uid`) WHERE `id` = :p0", got.SQL)
}

func TestPrepareRand(t *testing.T) {
	c := New()
	tests := []struct {
		name   string
		random string
		args   []any
		want   string
	}{
		{
			name: "columns only",
			args: []any{[]string{"id", "name"}},
			want: "SELECT `id`,`name` FROM `user` ORDER BY RAND()",
		},
		{
			name:   "order replaced",
			random: "RANDOM()",
			args:   []any{"*", M("age[>]", 18, "ORDER", M("id", "DESC"), "LIMIT", 3)},
			want:   "SELECT * FROM `user` WHERE `age` > :p0 ORDER BY RANDOM() LIMIT 3",
		},
		{
			name: "with join",
			args: []any{M("[>]post", "uid"), "post.title", M("id", 1)},
			want: "SELECT `post`.`title` FROM `user` LEFT JOIN `post` USING (`uid`) WHERE `id` = :p0 ORDER BY RAND()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := c.PrepareRand("user", tt.random, tt.args...)
			assert.Equal(t, tt.want, st.SQL)
		})
	}

	st := c.PrepareRand("user", "", "name")
	assert.Equal(t, "name", st.Single)
}

func TestPrepareAggregate(t *testing.T) {
	c := New()
	tests := []struct {
		name string
		fn   string
		args []any
		want string
	}{
		{"count all", FuncCount, nil, "SELECT COUNT(*) FROM `user`"},
		{"count where", FuncCount, []any{M("age[>]", 18)}, "SELECT COUNT(*) FROM `user` WHERE `age` > :p0"},
		{"max column", FuncMax, []any{"age", M("type", "a")}, "SELECT MAX(`age`) FROM `user` WHERE `type` = :p0"},
		{"sum lowercase", "sum", []any{"score"}, "SELECT SUM(`score`) FROM `user`"},
		{"raw column", FuncAvg, []any{Raw("<x>", nil), M("id", 1)}, "SELECT AVG(*) FROM `user` WHERE `id` = :p0"},
		{
			"join",
			FuncMin,
			[]any{M("[>]post", "uid"), "post.score", M("user.id", 1)},
			"SELECT MIN(`post`.`score`) FROM `user` LEFT JOIN `post` USING (`uid`) WHERE `user`.`id` = :p0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := c.PrepareAggregate(tt.fn, "user", tt.args...)
			assert.Equal(t, tt.want, st.SQL)
			assert.True(t, st.Raw)
		})
	}
}

func TestPrepareHas(t *testing.T) {
	c := New()
	assert.Equal(t, "SELECT EXISTS(SELECT 1 FROM `user` WHERE `id` = :p0)", c.PrepareHas("user", M("id", 1)).SQL)
	assert.Equal(t, "SELECT EXISTS(SELECT 1 FROM `user`)", c.PrepareHas("user").SQL)
	assert.Equal(t,
		"SELECT EXISTS(SELECT 1 FROM `user` LEFT JOIN `post` USING (`uid`) WHERE `post`.`id` = :p0)",
		c.PrepareHas("user", M("[>]post", "uid"), M("post.id", 1)).SQL)
}

func TestCompileRaw(t *testing.T) {
	c := New(WithPrefix("app_"))
	st := c.CompileRaw(Raw("SELECT * FROM <user> WHERE <id> = :id AND <name> = :name",
		map[string]any{"id": 7, "name": "bob"}))

	assert.Equal(t, "SELECT * FROM `app_user` WHERE `id` = :id AND `name` = :name", st.SQL)
	assert.True(t, st.Raw)
	require.Equal(t, 2, st.Params.Len())
	assert.Equal(t, Param{Name: ":id", Value: 7, Kind: KindInt}, st.Params.List()[0])
	assert.Equal(t, Param{Name: ":name", Value: "bob", Kind: KindString}, st.Params.List()[1])

	empty := c.CompileRaw(Raw("", nil))
	assert.Equal(t, "", empty.SQL)
	assert.Equal(t, 0, empty.Params.Len())
}
