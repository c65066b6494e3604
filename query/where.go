package query

import (
	"strconv"
	"strings"
)

// 不参与条件编译的尾部 key
var tailKeys = []string{"GROUP", "ORDER", "HAVING", "LIMIT", "LIKE", "MATCH", "LOCK"}

var matchModes = map[string]string{
	"natural":       "IN NATURAL LANGUAGE MODE",
	"natural+query": "IN NATURAL LANGUAGE MODE WITH QUERY EXPANSION",
	"boolean":       "IN BOOLEAN MODE",
	"query":         "WITH QUERY EXPANSION",
}

// CompileWhere 编译完整的 WHERE 子句（含前导空格），包括 MATCH、GROUP、HAVING、ORDER、LIMIT、LOCK
func (c *Compiler) CompileWhere(where any, params *Params) string {
	return c.builder(params).where(where)
}

func (b *builder) where(where any) string {
	if where == nil {
		return ""
	}
	m, ok := toMap(where)
	if !ok {
		if sql, ok := b.raw(where); ok {
			return " " + sql
		}
		return ""
	}

	var clause strings.Builder

	if conditions := m.Without(tailKeys...); len(conditions) > 0 {
		if sql := b.conditions(conditions, "AND"); sql != "" {
			clause.WriteString(" WHERE ")
			clause.WriteString(sql)
		}
	}

	if v, ok := m.Get("MATCH"); ok {
		b.match(&clause, v)
	}

	if v, ok := m.Get("GROUP"); ok {
		clause.WriteString(" GROUP BY ")
		clause.WriteString(b.group(v))
		if having, ok := m.Get("HAVING"); ok {
			if sql, ok := b.raw(having); ok {
				clause.WriteString(" HAVING " + sql)
			} else {
				clause.WriteString(" HAVING " + b.conditions(having, "AND"))
			}
		}
	}

	if v, ok := m.Get("ORDER"); ok {
		clause.WriteString(" ORDER BY ")
		clause.WriteString(b.order(v))
	}

	if v, ok := m.Get("LIMIT"); ok {
		clause.WriteString(limit(v))
	}

	if v, ok := m.Get("LOCK"); ok {
		switch v {
		case "SHARE":
			clause.WriteString(" LOCK IN SHARE MODE")
		case "UPDATE":
			clause.WriteString(" FOR UPDATE")
		}
	}
	return clause.String()
}

func (b *builder) match(clause *strings.Builder, v any) {
	m, ok := toMap(v)
	if !ok {
		return
	}
	columns, ok := m.Get("columns")
	if !ok {
		return
	}
	keyword, ok := m.Get("keyword")
	if !ok {
		return
	}
	items, ok := values(columns)
	if !ok {
		if s, isString := columns.(string); isString {
			items = []any{s}
		}
	}
	quoted := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			quoted = append(quoted, b.ColumnQuote(s))
		}
	}

	mode := ""
	if name, ok := m.Get("mode"); ok {
		if s, ok := name.(string); ok && matchModes[s] != "" {
			mode = " " + matchModes[s]
		}
	}

	mk := b.params.next()
	b.params.Add(mk, keyword, KindString)
	if clause.Len() > 0 {
		clause.WriteString(" AND")
	} else {
		clause.WriteString(" WHERE")
	}
	clause.WriteString(" MATCH (" + strings.Join(quoted, ", ") + ") AGAINST (" + mk + mode + ")")
}

func (b *builder) group(v any) string {
	if items, ok := values(v); ok {
		stack := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				stack = append(stack, b.ColumnQuote(s))
			}
		}
		return strings.Join(stack, ",")
	}
	if sql, ok := b.raw(v); ok {
		return sql
	}
	s, _ := v.(string)
	return b.ColumnQuote(s)
}

// order 支持 列、列列表、列 -> ASC|DESC、列 -> 值列表（FIELD 排序）与原始 SQL
func (b *builder) order(v any) string {
	if sql, ok := b.raw(v); ok {
		return sql
	}
	es, ok := entries(v)
	if !ok {
		s, _ := v.(string)
		return b.ColumnQuote(s)
	}
	stack := make([]string, 0, len(es))
	for _, e := range es {
		switch {
		case e.Key != "" && isComposite(e.Value):
			items, _ := values(e.Value)
			placeholders := make([]string, len(items))
			mk := b.params.next()
			for i, it := range items {
				key := mk + "_" + strconv.Itoa(i)
				placeholders[i] = key
				b.params.bind(key, it)
			}
			stack = append(stack, "FIELD("+b.ColumnQuote(e.Key)+", "+strings.Join(placeholders, ", ")+")")
		case e.Key != "" && (e.Value == "ASC" || e.Value == "DESC"):
			stack = append(stack, b.ColumnQuote(e.Key)+" "+e.Value.(string))
		case e.Key == "":
			if s, ok := e.Value.(string); ok {
				stack = append(stack, b.ColumnQuote(s))
			}
		}
	}
	return strings.Join(stack, ",")
}

// limit n 或 [offset, n]
func limit(v any) string {
	if isNumeric(v) {
		return " LIMIT " + numberLiteral(v)
	}
	items, ok := values(v)
	if ok && len(items) == 2 && isNumeric(items[0]) && isNumeric(items[1]) {
		return " LIMIT " + numberLiteral(items[1]) + " OFFSET " + numberLiteral(items[0])
	}
	return ""
}
