package query

import (
	"strings"

	"github.com/ceyewan/shardsql/internal/dsl"
)

// 列表头部可出现的修饰符
var selectModifiers = []string{"DISTINCT", "SQL_CALC_FOUND_ROWS"}

// ColumnKind 解析后列项的种类
type ColumnKind int

const (
	ColumnStar      ColumnKind = iota // *
	ColumnTableStar                   // table.*
	ColumnPlain                       // column(alias)[type]
	ColumnRaw                         // "key[type]": Raw(...)
	ColumnIndex                       // 根级唯一的 "key": [...]，结果按 key 的值索引
	ColumnGroup                       // "key": [...]，结果嵌套为对象
	ColumnNested                      // 位置上的子列表，结果并入上层
)

// ResolvedColumn 第一遍解析的结果，之后不再修改
type ResolvedColumn struct {
	Kind     ColumnKind
	Spec     string     // 原始列描述或 key，ResultMap 以它为键
	Column   dsl.Column // Plain 与 Raw 有效
	Table    string     // TableStar 有效
	Raw      *RawSQL
	Children []ResolvedColumn
}

// ColumnList 解析后的列描述
type ColumnList struct {
	Items     []ResolvedColumn
	Modifiers []string
	// Star 列描述本身就是 "*"
	Star bool
}

// ResultField 结果映射：行中的 key 与声明类型
type ResultField struct {
	Key  string
	Type string
}

// ResolveColumns 第一遍：把列描述解析为不可变的列表，nil 视为 "*"
//
// 接受 string、[]string、[]any、Map。
func ResolveColumns(columns any) ColumnList {
	if columns == nil {
		return ColumnList{Star: true}
	}
	if s, ok := columns.(string); ok {
		if s == "*" {
			return ColumnList{Star: true}
		}
		columns = []string{s}
	}
	items, mods := resolveColumns(columns, true)
	return ColumnList{Items: items, Modifiers: mods}
}

func resolveColumns(columns any, root bool) ([]ResolvedColumn, []string) {
	es, ok := entries(columns)
	if !ok {
		return nil, nil
	}

	var items []ResolvedColumn
	var mods []string
	for _, e := range es {
		switch {
		case e.Key != "" && isComposite(e.Value) && root && len(es) == 1:
			children, _ := resolveColumns(e.Value, false)
			items = append(items, ResolvedColumn{Kind: ColumnIndex, Spec: e.Key, Children: children})

		case isComposite(e.Value):
			children, _ := resolveColumns(e.Value, false)
			kind := ColumnGroup
			if e.Key == "" {
				kind = ColumnNested
			}
			items = append(items, ResolvedColumn{Kind: kind, Spec: e.Key, Children: children})

		case e.Key != "" && isRaw(e.Value):
			col, ok := dsl.ParseColumn(e.Key)
			if !ok {
				continue
			}
			r, _ := asRaw(e.Value)
			items = append(items, ResolvedColumn{Kind: ColumnRaw, Spec: e.Key, Column: col, Raw: r})

		case e.Key == "":
			s, ok := e.Value.(string)
			if !ok {
				continue
			}
			if item, mod, ok := resolveColumnString(s); ok {
				items = append(items, item)
			} else if mod != "" {
				mods = append(mods, mod)
			}
		}
	}
	return items, mods
}

func resolveColumnString(s string) (ResolvedColumn, string, bool) {
	if contains(selectModifiers, s) {
		return ResolvedColumn{}, s, false
	}
	if s == "*" {
		return ResolvedColumn{Kind: ColumnStar, Spec: s}, "", true
	}
	if table, ok := strings.CutSuffix(s, ".*"); ok {
		if t, ok := dsl.ParseTable(table); ok && t.Alias == "" {
			return ResolvedColumn{Kind: ColumnTableStar, Spec: s, Table: t.Name}, "", true
		}
		return ResolvedColumn{}, "", false
	}
	col, ok := dsl.ParseColumn(s)
	if !ok {
		return ResolvedColumn{}, "", false
	}
	return ResolvedColumn{Kind: ColumnPlain, Spec: s, Column: col}, "", true
}

// HasStar 列描述为 "*"、以 "*" 结尾，或顶层含以 "*" 结尾的项
func HasStar(columns any) bool {
	if columns == nil {
		return false
	}
	if s, ok := columns.(string); ok {
		return strings.HasSuffix(s, "*")
	}
	es, ok := entries(columns)
	if !ok {
		return false
	}
	for _, e := range es {
		if s, ok := e.Value.(string); ok && strings.HasSuffix(s, "*") {
			return true
		}
	}
	return false
}

// HasStar 解析结果是否需要原样返回行
func (l ColumnList) HasStar() bool {
	if l.Star {
		return true
	}
	for _, it := range l.Items {
		if it.Kind == ColumnStar || it.Kind == ColumnTableStar {
			return true
		}
	}
	return false
}

// CompileColumns 第二遍：生成 SELECT 列表，原始 SQL 列的参数写入 params
func (c *Compiler) CompileColumns(list ColumnList, params *Params) string {
	return c.builder(params).columns(list)
}

func (b *builder) columns(list ColumnList) string {
	if list.Star {
		return "*"
	}
	body := b.columnItems(list.Items)
	if len(list.Modifiers) == 0 {
		return body
	}
	return strings.Join(list.Modifiers, " ") + " " + body
}

func (b *builder) columnItems(items []ResolvedColumn) string {
	stack := make([]string, 0, len(items))
	for _, it := range items {
		var frag string
		switch it.Kind {
		case ColumnStar:
			frag = "*"
		case ColumnTableStar:
			frag = b.TableQuote(it.Table) + ".*"
		case ColumnPlain:
			frag = b.ColumnQuote(it.Column.Name)
			if it.Column.Alias != "" {
				frag += " AS " + b.ColumnQuote(it.Column.Alias)
			}
		case ColumnRaw:
			sql, ok := b.raw(it.Raw)
			if !ok {
				continue
			}
			frag = sql + " AS " + b.ColumnQuote(it.Column.Name)
		case ColumnIndex:
			stack = append(stack, b.ColumnQuote(it.Spec))
			frag = b.columnItems(it.Children)
		case ColumnGroup, ColumnNested:
			frag = b.columnItems(it.Children)
		}
		if frag != "" {
			stack = append(stack, frag)
		}
	}
	return strings.Join(stack, ",")
}

// ResultMap 与 CompileColumns 同步遍历，返回 原始描述 -> (结果 key, 类型)
func (l ColumnList) ResultMap() map[string]ResultField {
	out := make(map[string]ResultField)
	resultMap(l.Items, out)
	return out
}

func resultMap(items []ResolvedColumn, out map[string]ResultField) {
	for _, it := range items {
		switch it.Kind {
		case ColumnPlain:
			key := it.Column.Alias
			if key == "" {
				key = it.Column.Field()
			}
			out[it.Spec] = ResultField{Key: key, Type: typeOrDefault(it.Column.Type)}
		case ColumnRaw:
			out[it.Spec] = ResultField{Key: it.Column.Field(), Type: typeOrDefault(it.Column.Type)}
		case ColumnIndex, ColumnGroup, ColumnNested:
			resultMap(it.Children, out)
		}
	}
}

func typeOrDefault(t string) string {
	if t == "" {
		return "String"
	}
	return t
}
