// Package query 将查询 DSL 编译为带命名参数的 SQL。
//
// 编译是纯函数：不做 I/O，相同输入得到相同的 SQL 与参数表。
//
//	c := query.New(query.WithPrefix("app_"))
//	sql, params := c.CompileSelect("user", []string{"id", "name"}, query.M(
//	    "age[>]", 18,
//	    "ORDER", query.M("id", "DESC"),
//	    "LIMIT", 10,
//	))
//	// SELECT `id`,`name` FROM `app_user` WHERE `age` > :p0 ORDER BY `id` DESC LIMIT 10
package query

import (
	"strings"

	"github.com/ceyewan/shardsql/internal/dsl"
)

// Compiler 绑定表前缀的编译器，可并发使用
type Compiler struct {
	prefix string
}

// Option 编译器选项
type Option func(*Compiler)

// WithPrefix 设置表前缀
func WithPrefix(prefix string) Option {
	return func(c *Compiler) {
		c.prefix = prefix
	}
}

// New 创建编译器
func New(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prefix 返回表前缀
func (c *Compiler) Prefix() string {
	return c.prefix
}

// TableQuote `prefix + table`
func (c *Compiler) TableQuote(table string) string {
	return "`" + c.prefix + table + "`"
}

// ColumnQuote 带表限定的列会给表加前缀：user.id -> `prefix_user`.`id`
func (c *Compiler) ColumnQuote(column string) string {
	if strings.Contains(column, ".") {
		return "`" + c.prefix + strings.ReplaceAll(column, ".", "`.`") + "`"
	}
	return "`" + column + "`"
}

// builder 持有一次编译的参数表
type builder struct {
	*Compiler
	params *Params
}

func (c *Compiler) builder(params *Params) *builder {
	if params == nil {
		params = NewParams()
	}
	return &builder{Compiler: c, params: params}
}

// raw 展开原始 SQL 并合并其参数，空片段视为不存在
func (b *builder) raw(v any) (string, bool) {
	r, ok := asRaw(v)
	if !ok {
		return "", false
	}
	sql := dsl.RewriteRaw(r.SQL, b.ColumnQuote, b.TableQuote)
	if sql == "" {
		return "", false
	}
	for _, name := range r.paramNames() {
		b.params.bind(name, r.Params[name])
	}
	return sql, true
}

// CompileRaw 展开一条完整的原始 SQL 语句，结果行原样返回
//
//	c.CompileRaw(query.Raw("SELECT * FROM <user> WHERE <id> = :id", map[string]any{"id": 1}))
func (c *Compiler) CompileRaw(r *RawSQL) *Statement {
	b := c.builder(nil)
	sql, _ := b.raw(r)
	return &Statement{SQL: sql, Params: b.params, Raw: true}
}
