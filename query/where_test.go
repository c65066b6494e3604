package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileWhere(t *testing.T) {
	tests := []struct {
		name  string
		where any
		want  string
	}{
		{"nil", nil, ""},
		{"empty", M(), ""},
		{"conditions", M("id", 1, "name[!]", "x"), " WHERE `id` = :p0 AND `name` != :p1"},
		{"order string", M("ORDER", "id"), " ORDER BY `id`"},
		{"order list", M("ORDER", []string{"a", "b"}), " ORDER BY `a`,`b`"},
		{"order map", M("ORDER", M("a", "ASC", "b", "DESC")), " ORDER BY `a` ASC,`b` DESC"},
		{"order field", M("ORDER", M("status", []string{"open", "closed"})), " ORDER BY FIELD(`status`, :p0_0, :p0_1)"},
		{"order raw", M("ORDER", Raw("RAND()", nil)), " ORDER BY RAND()"},
		{"limit", M("LIMIT", 10), " LIMIT 10"},
		{"limit offset", M("LIMIT", []int{20, 10}), " LIMIT 10 OFFSET 20"},
		{"limit invalid", M("LIMIT", "ten"), ""},
		{"group", M("GROUP", "type"), " GROUP BY `type`"},
		{"group list", M("GROUP", []string{"a", "b"}), " GROUP BY `a`,`b`"},
		{"group having", M("GROUP", "type", "HAVING", M("total[>]", 3)), " GROUP BY `type` HAVING `total` > :p0"},
		{"group raw having", M("GROUP", "type", "HAVING", Raw("COUNT(<id>) > 1", nil)), " GROUP BY `type` HAVING COUNT(`id`) > 1"},
		{"having without group", M("HAVING", M("a", 1)), ""},
		{"lock update", M("id", 1, "LOCK", "UPDATE"), " WHERE `id` = :p0 FOR UPDATE"},
		{"lock share", M("LIMIT", 1, "LOCK", "SHARE"), " LIMIT 1 LOCK IN SHARE MODE"},
		{"lock unknown", M("LOCK", "NOWAIT"), ""},
		{"raw", Raw("WHERE <id> > 1", nil), " WHERE `id` > 1"},
		{
			"full",
			M("id[>]", 1, "GROUP", "type", "ORDER", M("id", "DESC"), "LIMIT", 5, "LOCK", "UPDATE"),
			" WHERE `id` > :p0 GROUP BY `type` ORDER BY `id` DESC LIMIT 5 FOR UPDATE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New().CompileWhere(tt.where, nil))
		})
	}
}

func TestCompileWhere_Match(t *testing.T) {
	params := NewParams()
	sql := New().CompileWhere(M(
		"MATCH", M("columns", []string{"title", "body"}, "keyword", "go", "mode", "boolean"),
	), params)
	assert.Equal(t, " WHERE MATCH (`title`, `body`) AGAINST (:p0 IN BOOLEAN MODE)", sql)
	p, ok := params.Get(":p0")
	require.True(t, ok)
	assert.Equal(t, "go", p.Value)

	sql = New().CompileWhere(M(
		"id", 1,
		"MATCH", M("columns", []string{"title"}, "keyword", "go"),
	), nil)
	assert.Equal(t, " WHERE `id` = :p0 AND MATCH (`title`) AGAINST (:p1)", sql)

	assert.Equal(t, "", New().CompileWhere(M("MATCH", M("columns", []string{"title"})), nil))
}
