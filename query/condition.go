package query

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ceyewan/shardsql/internal/dsl"
)

// 已含通配符或转义标记的 LIKE 项不再自动加 %
var likeWildcard = regexp.MustCompile(`\[.+\]|[*?!%#^_]|%.+|.+%`)

// CompileCondition 编译条件树，conjunctor 为兄弟片段之间的连接词
func (c *Compiler) CompileCondition(where any, conjunctor string, params *Params) string {
	return c.builder(params).conditions(where, conjunctor)
}

// conditions 按声明顺序编译条件，片段以 " conjunctor " 连接
func (b *builder) conditions(where any, conjunctor string) string {
	data, ok := toMap(where)
	if !ok {
		// 位置列表中的原始 SQL 与列比较
		data, ok = entries(where)
		if !ok {
			return ""
		}
	}

	stack := make([]string, 0, len(data))
	for _, p := range data {
		if frag := b.condition(p, conjunctor); frag != "" {
			stack = append(stack, frag)
		}
	}
	return strings.Join(stack, " "+conjunctor+" ")
}

func (b *builder) condition(p Pair, conjunctor string) string {
	if p.Key != "" && isComposite(p.Value) {
		if relation, ok := dsl.ParseGroup(p.Key); ok {
			if items, ok := listItems(p.Value); ok {
				if inner := b.innerConjunct(items, relation, conjunctor); inner != "" {
					return "(" + inner + ")"
				}
				return ""
			}
			if group := b.conditions(p.Value, relation); group != "" {
				return "(" + group + ")"
			}
			return ""
		}
	}

	if p.Key == "" {
		if sql, ok := b.raw(p.Value); ok {
			return sql
		}
		if s, ok := p.Value.(string); ok {
			if cmp, ok := dsl.ParseComparison(s); ok {
				return b.ColumnQuote(cmp.Left) + " " + cmp.Op + " " + b.ColumnQuote(cmp.Right)
			}
		}
		return ""
	}

	cond, ok := dsl.ParseCondition(p.Key)
	if !ok {
		return ""
	}
	column := b.ColumnQuote(cond.Column)
	mk := b.params.next()

	switch cond.Op {
	case "":
		return b.equality(column, "", mk, p.Value)
	case "!":
		return b.equality(column, "!", mk, p.Value)
	case ">", ">=", "<", "<=":
		return b.compare(column, cond.Op, mk, p.Value)
	case "~", "!~":
		return b.like(column, cond.Op == "!~", mk, p.Value)
	case "<>", "><":
		return b.between(column, cond.Op == "><", mk, p.Value)
	case "REGEXP":
		b.params.Add(mk, p.Value, KindString)
		return column + " REGEXP " + mk
	}
	return ""
}

// innerConjunct 列表中每个条件 Map 用内部连接词编译并加括号，再以外层连接词连接。
// 列表里没有 Map 时，原始 SQL 与列比较直接用内部连接词连接。
func (b *builder) innerConjunct(items []any, relation, outer string) string {
	if !slices.ContainsFunc(items, func(it any) bool { _, ok := toMap(it); return ok }) {
		return b.conditions(items, relation)
	}

	stack := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := toMap(it); !ok {
			if frag := b.condition(Pair{Value: it}, relation); frag != "" {
				stack = append(stack, frag)
			}
			continue
		}
		if frag := b.conditions(it, relation); frag != "" {
			stack = append(stack, "("+frag+")")
		}
	}
	return strings.Join(stack, " "+outer+" ")
}

// equality 无运算符与 [!] 两种情况
func (b *builder) equality(column, op, mk string, value any) string {
	not := op == "!"
	switch {
	case value == nil:
		if not {
			return column + " IS NOT NULL"
		}
		return column + " IS NULL"

	case isRaw(value):
		sql, ok := b.raw(value)
		if !ok {
			return ""
		}
		if not {
			return column + " != " + sql
		}
		return column + " = " + sql

	case isComposite(value):
		items, _ := values(value)
		if len(items) == 0 {
			if not {
				return "1 = 1"
			}
			return "0 = 1"
		}
		placeholders := make([]string, len(items))
		for i, it := range items {
			key := mk + "_" + strconv.Itoa(i)
			placeholders[i] = key
			b.params.bind(key, it)
		}
		if not {
			return column + " NOT IN (" + strings.Join(placeholders, ", ") + ")"
		}
		return column + " IN (" + strings.Join(placeholders, ", ") + ")"
	}

	b.params.bind(mk, value)
	if not {
		return column + " != " + mk
	}
	return column + " = " + mk
}

// compare 数值占位符、原始 SQL、字符串占位符，按此优先级
func (b *builder) compare(column, op, mk string, value any) string {
	condition := column + " " + op + " "
	if isNumeric(value) {
		kind := KindInt
		if isFloat(value) {
			kind = KindString
		}
		b.params.Add(mk, value, kind)
		return condition + mk
	}
	if sql, ok := b.raw(value); ok {
		return condition + sql
	}
	b.params.Add(mk, value, KindString)
	return condition + mk
}

func (b *builder) like(column string, not bool, mk string, value any) string {
	connector := " OR "
	terms := []any{value}

	if m, ok := toMap(value); ok && len(m) > 0 {
		first := m[0]
		if (first.Key == "AND" || first.Key == "OR") && isComposite(first.Value) {
			connector = " " + first.Key + " "
			terms, _ = values(first.Value)
		} else {
			terms, _ = values(m)
		}
	} else if items, ok := listItems(value); ok {
		terms = items
	}

	clauses := make([]string, 0, len(terms))
	for i, term := range terms {
		item := likeText(term)
		if !likeWildcard.MatchString(item) {
			item = "%" + item + "%"
		}
		key := mk + "_L" + strconv.Itoa(i)
		op := " LIKE "
		if not {
			op = " NOT LIKE "
		}
		clauses = append(clauses, column+op+key)
		b.params.Add(key, item, KindString)
	}
	if len(clauses) == 0 {
		return ""
	}
	return "(" + strings.Join(clauses, connector) + ")"
}

func (b *builder) between(column string, not bool, mk string, value any) string {
	items, ok := values(value)
	if !ok || len(items) != 2 {
		return ""
	}
	if not {
		column += " NOT"
	}
	kind := KindString
	if isNumeric(items[0]) && isNumeric(items[1]) {
		kind = KindInt
	}
	b.params.Add(mk+"_a", items[0], kind)
	b.params.Add(mk+"_b", items[1], kind)
	return "(" + column + " BETWEEN " + mk + "_a AND " + mk + "_b)"
}

func likeText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "1"
		}
		return ""
	case float32, float64:
		return numberLiteral(t)
	}
	return fmt.Sprint(v)
}
