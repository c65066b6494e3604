package dsl

import (
	"strings"

	"github.com/maypok86/otter/v2"
)

// Column 列描述 column(alias)[type]
type Column struct {
	Name  string // 可带表限定，如 user.name
	Alias string
	Type  string // 规范化后的类型名，未声明时为空
}

// Field 去掉表限定后的列名
func (c Column) Field() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// Condition 条件 key column[op]，也用于 update 的 column[+] 与 column[JSON]
type Condition struct {
	Column string
	Op     string
}

// Join JOIN key [op]table(alias)
type Join struct {
	Op    string
	Table string
	Alias string
}

// Comparison 列与列比较 left[op]right
type Comparison struct {
	Left  string
	Op    string
	Right string
}

// Table 表描述 table(alias)
type Table struct {
	Name  string
	Alias string
}

var columnTypes = map[string]string{
	"string": "String",
	"bool":   "Bool",
	"int":    "Int",
	"number": "Number",
	"object": "Object",
	"json":   "JSON",
}

var (
	conditionOps  = set(">", ">=", "<", "<=", "!", "<>", "><", "~", "!~", "REGEXP")
	assignmentOps = set("+", "-", "*", "/", "JSON")
	joinOps       = set(">", "<", "<>", "><")
	compareOps    = set(">", ">=", "<", "<=", "!=", "=")
)

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

func has(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}

// isPlainIdent 不含 "." 的标识符
func isPlainIdent(s string) bool {
	return s != "" && !strings.Contains(s, ".")
}

// isColumnRef 由 "." 分隔的非空片段
func isColumnRef(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
	}
	return true
}

type entry[T any] struct {
	value T
	ok    bool
}

func newCache[T any]() *otter.Cache[string, entry[T]] {
	c, err := otter.New(&otter.Options[string, entry[T]]{MaximumSize: 4096})
	if err != nil {
		panic(err)
	}
	return c
}

func cached[T any](c *otter.Cache[string, entry[T]], key string, parse func(string) (T, bool)) (T, bool) {
	if e, ok := c.GetIfPresent(key); ok {
		return e.value, e.ok
	}
	v, ok := parse(key)
	c.Set(key, entry[T]{value: v, ok: ok})
	return v, ok
}

var (
	columnCache     = newCache[Column]()
	conditionCache  = newCache[Condition]()
	assignmentCache = newCache[Condition]()
	joinCache       = newCache[Join]()
	comparisonCache = newCache[Comparison]()
	groupCache      = newCache[string]()
	tableCache      = newCache[Table]()
)

// ParseColumn 解析 column(alias)[type]，类型名不区分大小写
func ParseColumn(s string) (Column, bool) {
	return cached(columnCache, s, func(s string) (Column, bool) {
		ast, err := columnParser.ParseString("", s)
		if err != nil || !isColumnRef(ast.Name) {
			return Column{}, false
		}
		if ast.Alias != "" && !isPlainIdent(ast.Alias) {
			return Column{}, false
		}
		col := Column{Name: ast.Name, Alias: ast.Alias}
		if ast.Type != "" {
			t, ok := columnTypes[strings.ToLower(ast.Type)]
			if !ok {
				return Column{}, false
			}
			col.Type = t
		}
		return col, true
	})
}

// ParseCondition 解析条件 key column[op]
func ParseCondition(s string) (Condition, bool) {
	return cached(conditionCache, s, func(s string) (Condition, bool) {
		return parseOpKey(s, conditionOps)
	})
}

// ParseAssignment 解析写入 key：column、column[+|-|*|/]、column[JSON]
func ParseAssignment(s string) (Condition, bool) {
	return cached(assignmentCache, s, func(s string) (Condition, bool) {
		return parseOpKey(s, assignmentOps)
	})
}

func parseOpKey(s string, ops map[string]struct{}) (Condition, bool) {
	ast, err := conditionParser.ParseString("", s)
	if err != nil || !isColumnRef(ast.Column) {
		return Condition{}, false
	}
	op := ast.Op
	if upper := strings.ToUpper(op); upper == "REGEXP" || upper == "JSON" {
		op = upper
	}
	if op != "" && !has(ops, op) {
		return Condition{}, false
	}
	return Condition{Column: ast.Column, Op: op}, true
}

// ParseJoin 解析 [op]table(alias)
func ParseJoin(s string) (Join, bool) {
	return cached(joinCache, s, func(s string) (Join, bool) {
		ast, err := joinParser.ParseString("", s)
		if err != nil || !has(joinOps, ast.Op) || !isPlainIdent(ast.Table) {
			return Join{}, false
		}
		if ast.Alias != "" && !isPlainIdent(ast.Alias) {
			return Join{}, false
		}
		return Join{Op: ast.Op, Table: ast.Table, Alias: ast.Alias}, true
	})
}

// ParseComparison 解析 left[op]right
func ParseComparison(s string) (Comparison, bool) {
	return cached(comparisonCache, s, func(s string) (Comparison, bool) {
		ast, err := comparisonParser.ParseString("", s)
		if err != nil || !has(compareOps, ast.Op) || !isColumnRef(ast.Left) || !isColumnRef(ast.Right) {
			return Comparison{}, false
		}
		return Comparison{Left: ast.Left, Op: ast.Op, Right: ast.Right}, true
	})
}

// ParseGroup 解析 AND / OR / "AND #tag"，返回连接词
//
// 标签与连接词之间至少要有一个空白。
func ParseGroup(s string) (string, bool) {
	return cached(groupCache, s, func(s string) (string, bool) {
		ast, err := groupParser.ParseString("", s)
		if err != nil {
			return "", false
		}
		if ast.Tag == "" {
			if s != ast.Conjunctor {
				return "", false
			}
			return ast.Conjunctor, true
		}
		rest := strings.TrimPrefix(s, ast.Conjunctor)
		if rest == s || rest == "" || !strings.ContainsAny(rest[:1], " \t\r\n") {
			return "", false
		}
		return ast.Conjunctor, true
	})
}

// ParseTable 解析 table 或 table(alias)
func ParseTable(s string) (Table, bool) {
	return cached(tableCache, s, func(s string) (Table, bool) {
		ast, err := tableParser.ParseString("", s)
		if err != nil || !isPlainIdent(ast.Name) {
			return Table{}, false
		}
		if ast.Alias != "" && !isPlainIdent(ast.Alias) {
			return Table{}, false
		}
		return Table{Name: ast.Name, Alias: ast.Alias}, true
	})
}
