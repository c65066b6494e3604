package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileColumns(t *testing.T) {
	tests := []struct {
		name    string
		columns any
		want    string
	}{
		{"nil", nil, "*"},
		{"star", "*", "*"},
		{"single string", "name", "`name`"},
		{"list", []string{"id", "name(n)[String]", "user.email"}, "`id`,`name` AS `n`,`app_user`.`email`"},
		{"table star", []string{"user.*", "post.title"}, "`app_user`.*,`app_post`.`title`"},
		{"modifiers", []string{"DISTINCT", "id"}, "DISTINCT `id`"},
		{"raw column", M("total[Int]", Raw("COUNT(<id>)", nil)), "COUNT(`id`) AS `total`"},
		{"index", M("user.id", []string{"name", "age[Int]"}), "`app_user`.`id`,`name`,`age`"},
		{"groups", M("base", []string{"id"}, "profile", []string{"bio"}), "`id`,`bio`"},
		{"nested list", []any{"id", []string{"a", "b"}}, "`id`,`a`,`b`"},
		{"invalid entries skipped", []any{"id", 42, "bad name!"}, "`id`"},
	}
	c := New(WithPrefix("app_"))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.CompileColumns(ResolveColumns(tt.columns), nil))
		})
	}
}

func TestCompileColumns_RawParams(t *testing.T) {
	params := NewParams()
	list := ResolveColumns(M("adult[Bool]", Raw("<age> >= :age", map[string]any{"age": 18})))
	sql := New().CompileColumns(list, params)
	assert.Equal(t, "`age` >= :age AS `adult`", sql)
	p, ok := params.Get(":age")
	assert.True(t, ok)
	assert.Equal(t, KindInt, p.Kind)
}

func TestResultMap(t *testing.T) {
	list := ResolveColumns([]string{"name(n)[String]", "age[Int]", "user.email", "meta [JSON]"})
	assert.Equal(t, map[string]ResultField{
		"name(n)[String]": {Key: "n", Type: "String"},
		"age[Int]":        {Key: "age", Type: "Int"},
		"user.email":      {Key: "email", Type: "String"},
		"meta [JSON]":     {Key: "meta", Type: "JSON"},
	}, list.ResultMap())

	list = ResolveColumns(M("user.id", []any{"name", M("score[Number]", Raw("AVG(<score>)", nil))}))
	assert.Equal(t, map[string]ResultField{
		"name":          {Key: "name", Type: "String"},
		"score[Number]": {Key: "score", Type: "Number"},
	}, list.ResultMap())
}

func TestHasStar(t *testing.T) {
	assert.True(t, HasStar("*"))
	assert.True(t, HasStar("user.*"))
	assert.True(t, HasStar([]string{"id", "post.*"}))
	assert.False(t, HasStar([]string{"id", "name"}))
	assert.False(t, HasStar(nil))

	assert.True(t, ResolveColumns(nil).HasStar())
	assert.True(t, ResolveColumns([]string{"user.*"}).HasStar())
	assert.False(t, ResolveColumns("name").HasStar())
}
