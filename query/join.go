package query

import (
	"strings"

	"github.com/ceyewan/shardsql/internal/dsl"
)

var joinTypes = map[string]string{
	">":  "LEFT",
	"<":  "RIGHT",
	"<>": "FULL",
	"><": "INNER",
}

// CompileJoin 编译 JOIN 子句，baseAlias 为主表引用（已加引号）
//
// 关系值为字符串时生成 USING (col)，列表生成 USING (a, b)，映射生成 ON 条件。
func (c *Compiler) CompileJoin(baseAlias string, join any) string {
	m, ok := toMap(join)
	if !ok {
		return ""
	}

	clauses := make([]string, 0, len(m))
	for _, p := range m {
		j, ok := dsl.ParseJoin(p.Key)
		if !ok {
			continue
		}

		var relation string
		switch {
		case isString(p.Value):
			relation = "USING (`" + p.Value.(string) + "`)"
		case isList(p.Value):
			items, _ := listItems(p.Value)
			cols := make([]string, 0, len(items))
			for _, it := range items {
				if s, ok := it.(string); ok {
					cols = append(cols, s)
				}
			}
			relation = "USING (`" + strings.Join(cols, "`, `") + "`)"
		default:
			on, ok := toMap(p.Value)
			if !ok {
				continue
			}
			target := j.Table
			if j.Alias != "" {
				target = j.Alias
			}
			pairs := make([]string, 0, len(on))
			for _, kv := range on {
				right, _ := kv.Value.(string)
				var left string
				if strings.Index(kv.Key, ".") > 0 {
					left = c.ColumnQuote(kv.Key)
				} else {
					left = baseAlias + ".`" + kv.Key + "`"
				}
				pairs = append(pairs, left+" = "+c.TableQuote(target)+".`"+right+"`")
			}
			relation = "ON " + strings.Join(pairs, " AND ")
		}

		name := c.TableQuote(j.Table) + " "
		if j.Alias != "" {
			name += "AS " + c.TableQuote(j.Alias) + " "
		}
		clauses = append(clauses, joinTypes[j.Op]+" JOIN "+name+relation)
	}
	return strings.Join(clauses, " ")
}

// isJoin 第一个 key 以 "[" 开头时视为 JOIN 描述
func isJoin(v any) bool {
	m, ok := toMap(v)
	return ok && len(m) > 0 && strings.HasPrefix(m[0].Key, "[")
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

// isList 切片或全部为位置项的 Map
func isList(v any) bool {
	_, ok := listItems(v)
	return ok
}
