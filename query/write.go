package query

import (
	"reflect"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/shardsql/internal/dsl"
	"github.com/ceyewan/shardsql/xerrors"
)

// ErrEmptyData 写入数据为空
var ErrEmptyData = xerrors.Mark(xerrors.ErrInvalidArgument, xerrors.New("query: empty write data"))

const jsonSuffix = "[JSON]"

// CompileInsert 编译 INSERT，rows 为单行映射或映射列表
//
// 列取所有行 key 的并集（按首次出现顺序），缺失的值绑定 NULL。
func (c *Compiler) CompileInsert(table string, rows any) (*Statement, error) {
	data := insertRows(rows)
	if len(data) == 0 {
		return nil, xerrors.Wrapf(ErrEmptyData, "insert into %s", table)
	}

	var columns []string
	seen := make(map[string]struct{})
	for _, row := range data {
		for _, p := range row {
			if p.Key == "" {
				continue
			}
			if _, ok := seen[p.Key]; !ok {
				seen[p.Key] = struct{}{}
				columns = append(columns, p.Key)
			}
		}
	}
	if len(columns) == 0 {
		return nil, xerrors.Wrapf(ErrEmptyData, "insert into %s", table)
	}

	b := c.builder(nil)
	stack := make([]string, 0, len(data))
	for _, row := range data {
		vals := make([]string, 0, len(columns))
		for _, key := range columns {
			value, _ := row.Get(key)
			if sql, ok := b.raw(value); ok {
				vals = append(vals, sql)
				continue
			}
			mk := b.params.next()
			vals = append(vals, mk)
			if err := b.bindValue(mk, key, value); err != nil {
				return nil, xerrors.Wrapf(err, "insert into %s: column %s", table, key)
			}
		}
		stack = append(stack, "("+strings.Join(vals, ", ")+")")
	}

	fields := make([]string, len(columns))
	for i, key := range columns {
		fields[i] = b.ColumnQuote(stripJSON(key))
	}

	sql := "INSERT INTO " + b.TableQuote(table) + " (" + strings.Join(fields, ", ") + ") VALUES " + strings.Join(stack, ", ")
	return &Statement{SQL: sql, Params: b.params}, nil
}

// CompileUpdate 编译 UPDATE
//
// col[+]、col[-]、col[*]、col[/] 搭配数值时生成 col = col op n。
func (c *Compiler) CompileUpdate(table string, data any, where any) (*Statement, error) {
	m, ok := toMap(data)
	if !ok || len(m) == 0 {
		return nil, xerrors.Wrapf(ErrEmptyData, "update %s", table)
	}

	b := c.builder(nil)
	fields := make([]string, 0, len(m))
	for _, p := range m {
		if p.Key == "" {
			continue
		}
		assign, ok := dsl.ParseAssignment(p.Key)
		if !ok {
			continue
		}
		column := b.ColumnQuote(assign.Column)
		if sql, ok := b.raw(p.Value); ok {
			fields = append(fields, column+" = "+sql)
			continue
		}
		mk := b.params.next()
		switch assign.Op {
		case "+", "-", "*", "/":
			if isNumeric(p.Value) {
				fields = append(fields, column+" = "+column+" "+assign.Op+" "+numberLiteral(p.Value))
			}
		default:
			fields = append(fields, column+" = "+mk)
			if err := b.bindValue(mk, p.Key, p.Value); err != nil {
				return nil, xerrors.Wrapf(err, "update %s: column %s", table, p.Key)
			}
		}
	}
	if len(fields) == 0 {
		return nil, xerrors.Wrapf(ErrEmptyData, "update %s", table)
	}

	sql := "UPDATE " + b.TableQuote(table) + " SET " + strings.Join(fields, ", ") + b.where(where)
	return &Statement{SQL: sql, Params: b.params}, nil
}

// CompileReplace 编译字符串替换的 UPDATE，columns 为列到 {旧值: 新值} 的映射
//
// 同一列的多组替换按声明顺序嵌套：
//
//	UPDATE `t` SET `c` = REPLACE(REPLACE(`c`, :p0, :p1), :p2, :p3)
func (c *Compiler) CompileReplace(table string, columns any, where any) (*Statement, error) {
	m, ok := toMap(columns)
	if !ok || len(m) == 0 {
		return nil, xerrors.Wrapf(ErrEmptyData, "replace %s", table)
	}

	b := c.builder(nil)
	fields := make([]string, 0, len(m))
	for _, p := range m {
		if p.Key == "" {
			continue
		}
		replacements, ok := toMap(p.Value)
		if !ok || len(replacements) == 0 {
			continue
		}
		column := b.ColumnQuote(p.Key)
		expr := column
		for _, r := range replacements {
			from, to := b.params.next(), b.params.next()
			b.params.Add(from, r.Key, KindString)
			b.params.Add(to, r.Value, KindString)
			expr = "REPLACE(" + expr + ", " + from + ", " + to + ")"
		}
		fields = append(fields, column+" = "+expr)
	}
	if len(fields) == 0 {
		return nil, xerrors.Wrapf(ErrEmptyData, "replace %s", table)
	}

	sql := "UPDATE " + b.TableQuote(table) + " SET " + strings.Join(fields, ", ") + b.where(where)
	return &Statement{SQL: sql, Params: b.params}, nil
}

// CompileDelete 编译 DELETE
func (c *Compiler) CompileDelete(table string, where any) *Statement {
	b := c.builder(nil)
	sql := "DELETE FROM " + b.TableQuote(table) + b.where(where)
	return &Statement{SQL: sql, Params: b.params}
}

// bindValue 列表、映射与结构体按 key 后缀编码为 JSON 或 msgpack
func (b *builder) bindValue(mk, key string, value any) error {
	if !isStructured(value) {
		b.params.bind(mk, value)
		return nil
	}
	if strings.HasSuffix(key, jsonSuffix) {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		b.params.Add(mk, string(data), KindString)
		return nil
	}
	data, err := msgpack.Marshal(plain(value))
	if err != nil {
		return err
	}
	b.params.Add(mk, data, KindString)
	return nil
}

func isStructured(v any) bool {
	if v == nil {
		return false
	}
	if isComposite(v) {
		return true
	}
	if _, ok := v.(time.Time); ok {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct || rv.Kind() == reflect.Map
}

func stripJSON(key string) string {
	if trimmed, ok := strings.CutSuffix(key, jsonSuffix); ok {
		return strings.TrimRight(trimmed, " \t")
	}
	return key
}

// insertRows 单行映射或映射列表
func insertRows(rows any) []Map {
	if m, ok := toMap(rows); ok {
		if len(m) == 0 {
			return nil
		}
		if !m.positional() {
			return []Map{m}
		}
	}
	items, ok := listItems(rows)
	if !ok {
		return nil
	}
	out := make([]Map, 0, len(items))
	for _, it := range items {
		if m, ok := toMap(it); ok && len(m) > 0 {
			out = append(out, m)
		}
	}
	return out
}
