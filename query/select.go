package query

import (
	"strings"

	"github.com/ceyewan/shardsql/internal/dsl"
)

// Statement 编译产物，附带解码结果所需的列信息
type Statement struct {
	SQL    string
	Params *Params
	// Columns 解析后的列描述，Shape 依赖它
	Columns ColumnList
	// Raw 列描述含 "*"，结果行原样返回
	Raw bool
	// Single 单个非通配列描述，结果展开为该列的值列表
	Single string
}

// 聚合函数
const (
	FuncCount = "COUNT"
	FuncAvg   = "AVG"
	FuncMax   = "MAX"
	FuncMin   = "MIN"
	FuncSum   = "SUM"
)

// selectArgs 位置参数 (join?, columns?, where?)
type selectArgs struct {
	join, columns, where any
}

func newSelectArgs(args []any) selectArgs {
	var a selectArgs
	if len(args) > 0 {
		a.join = args[0]
	}
	if len(args) > 1 {
		a.columns = args[1]
	}
	if len(args) > 2 {
		a.where = args[2]
	}
	return a
}

// resolve 推断各位置参数的角色：第一个参数的首个 key 形如 "[>]t" 时才是 JOIN，
// 否则参数整体左移，aggregate 为真时单个映射参数视为 where
func (a selectArgs) resolve(aggregate bool) (join, columns, where any) {
	if isJoin(a.join) {
		return a.join, a.columns, a.where
	}
	if a.columns == nil {
		if a.where != nil || (aggregate && isComposite(a.join)) {
			return nil, nil, a.join
		}
		return nil, a.join, nil
	}
	return nil, a.join, a.columns
}

// tableRef 返回 FROM 片段与用于 JOIN 限定的主表引用
func (b *builder) tableRef(table string) (string, string) {
	if t, ok := dsl.ParseTable(table); ok && t.Alias != "" {
		alias := b.TableQuote(t.Alias)
		return b.TableQuote(t.Name) + " AS " + alias, alias
	}
	quoted := b.TableQuote(table)
	return quoted, quoted
}

func (b *builder) from(table string, join any) string {
	ref, alias := b.tableRef(table)
	if join != nil {
		if sql := b.CompileJoin(alias, join); sql != "" {
			ref += " " + sql
		}
	}
	return ref
}

// PrepareSelect 编译 SELECT 并记录结果解码信息
//
//	c.PrepareSelect("user", []string{"id", "name"}, query.M("age[>]", 18))
//	c.PrepareSelect("post", query.M("[>]user", "user_id"), []string{"post.title", "user.name"}, where)
func (c *Compiler) PrepareSelect(table string, args ...any) *Statement {
	b := c.builder(nil)
	join, columns, where := newSelectArgs(args).resolve(false)
	return b.selectStatement(table, join, columns, where)
}

// PrepareGet 与 PrepareSelect 相同，但去掉 where 中的 LIMIT
func (c *Compiler) PrepareGet(table string, args ...any) *Statement {
	b := c.builder(nil)
	join, columns, where := newSelectArgs(args).resolve(false)
	return b.selectStatement(table, join, columns, withoutLimit(where))
}

func (b *builder) selectStatement(table string, join, columns, where any) *Statement {
	list := ResolveColumns(columns)
	sql := "SELECT " + b.columns(list) + " FROM " + b.from(table, join) + b.where(where)

	st := &Statement{
		SQL:     sql,
		Params:  b.params,
		Columns: list,
		Raw:     list.HasStar() || HasStar(columns),
	}
	if s, ok := columns.(string); ok && !st.Raw {
		st.Single = s
	}
	return st
}

// RandomMySQL MySQL 的随机排序函数，SQLite 使用 RANDOM()
const RandomMySQL = "RAND()"

// PrepareRand 与 PrepareSelect 相同，但以 random（为空时为 RAND()）随机排序，覆盖 where 中的 ORDER
//
//	c.PrepareRand("user", "RAND()", []string{"id", "name"}, query.M("LIMIT", 3))
func (c *Compiler) PrepareRand(table, random string, args ...any) *Statement {
	if random == "" {
		random = RandomMySQL
	}
	b := c.builder(nil)
	join, columns, where := newSelectArgs(args).resolve(false)
	return b.selectStatement(table, join, columns, withOrder(where, Raw(random, nil)))
}

// withOrder 用 order 替换 where 中的 ORDER，原始 SQL 形式的 where 保持不变
func withOrder(where any, order *RawSQL) any {
	if where == nil {
		return M("ORDER", order)
	}
	if m, ok := toMap(where); ok {
		return m.Without("ORDER").With("ORDER", order)
	}
	return where
}

// CompileSelect 纯编译，不做 I/O
func (c *Compiler) CompileSelect(table string, args ...any) (string, *Params) {
	st := c.PrepareSelect(table, args...)
	return st.SQL, st.Params
}

// PrepareAggregate 编译 COUNT/AVG/MAX/MIN/SUM，列为空或为原始 SQL 时使用 "*"
func (c *Compiler) PrepareAggregate(fn, table string, args ...any) *Statement {
	b := c.builder(nil)
	join, columns, where := newSelectArgs(args).resolve(true)
	if isEmptyColumns(columns) || isRaw(columns) {
		columns = "*"
	}
	column := strings.ToUpper(fn) + "(" + b.columns(ResolveColumns(columns)) + ")"
	sql := "SELECT " + column + " FROM " + b.from(table, join) + b.where(where)
	return &Statement{SQL: sql, Params: b.params, Raw: true}
}

// PrepareHas 编译 SELECT EXISTS(SELECT 1 FROM ...)，参数为 (where) 或 (join, where)
func (c *Compiler) PrepareHas(table string, args ...any) *Statement {
	b := c.builder(nil)
	var join, where any
	switch {
	case len(args) > 1:
		join, where = args[0], args[1]
		if !isJoin(join) {
			join, where = nil, args[0]
		}
	case len(args) == 1:
		where = args[0]
		if isJoin(where) {
			join, where = where, nil
		}
	}
	sql := "SELECT EXISTS(SELECT 1 FROM " + b.from(table, join) + b.where(where) + ")"
	return &Statement{SQL: sql, Params: b.params, Raw: true}
}

func isEmptyColumns(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	if items, ok := values(v); ok {
		return len(items) == 0
	}
	return false
}

// withoutLimit 单行查询不需要 LIMIT
func withoutLimit(where any) any {
	m, ok := toMap(where)
	if !ok || !m.Has("LIMIT") {
		return where
	}
	return m.Without("LIMIT")
}
