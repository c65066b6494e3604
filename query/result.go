package query

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Row 一行结果，key 为列名或别名
type Row map[string]any

// Result 按列描述整理后的结果
type Result struct {
	// Rows 结果行，按索引分组时为空
	Rows []Row
	// Values 单列查询时展开的值
	Values []any
	// Keys 与 Index 根级单个 "key": [...] 描述时按 key 列的值索引
	Keys  []string
	Index map[string]Row
}

// Len 结果条数
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	switch {
	case r.Index != nil:
		return len(r.Keys)
	case r.Values != nil:
		return len(r.Values)
	}
	return len(r.Rows)
}

// First 第一行，没有结果时返回 nil
func (r *Result) First() Row {
	if r == nil {
		return nil
	}
	if r.Index != nil {
		if len(r.Keys) == 0 {
			return nil
		}
		return r.Index[r.Keys[0]]
	}
	if len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Value 单列查询的第一个值
func (r *Result) Value() any {
	if r == nil || len(r.Values) == 0 {
		return nil
	}
	return r.Values[0]
}

// Shape 将驱动返回的行按列描述解码
func (s *Statement) Shape(rows []Row) *Result {
	if s.Raw {
		out := make([]Row, len(rows))
		for i, row := range rows {
			out[i] = normalizeRow(row)
		}
		return &Result{Rows: out}
	}

	resultMap := s.Columns.ResultMap()
	items := s.Columns.Items

	if s.Single != "" {
		field, ok := resultMap[s.Single]
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			shaped := make(Row)
			shapeItems(row, items, resultMap, shaped)
			if ok {
				values = append(values, shaped[field.Key])
			}
		}
		return &Result{Values: values}
	}

	if len(items) == 1 && items[0].Kind == ColumnIndex {
		index := items[0]
		dataKey := index.Spec
		if i := strings.IndexByte(dataKey, '.'); i >= 0 {
			dataKey = dataKey[i+1:]
		}
		res := &Result{Index: make(map[string]Row, len(rows))}
		for _, row := range rows {
			shaped := make(Row)
			shapeItems(row, index.Children, resultMap, shaped)
			key := indexKey(row[dataKey])
			if _, dup := res.Index[key]; !dup {
				res.Keys = append(res.Keys, key)
			}
			res.Index[key] = shaped
		}
		return res
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		shaped := make(Row)
		shapeItems(row, items, resultMap, shaped)
		out = append(out, shaped)
	}
	return &Result{Rows: out}
}

func shapeItems(data Row, items []ResolvedColumn, resultMap map[string]ResultField, stack Row) {
	for _, it := range items {
		switch it.Kind {
		case ColumnPlain, ColumnRaw:
			field := resultMap[it.Spec]
			if it.Kind == ColumnRaw && (field.Type == "Object" || field.Type == "JSON") {
				continue
			}
			stack[field.Key] = decodeValue(data[field.Key], field.Type)
		case ColumnGroup, ColumnIndex:
			nested := make(Row)
			shapeItems(data, it.Children, resultMap, nested)
			stack[it.Spec] = nested
		case ColumnNested:
			shapeItems(data, it.Children, resultMap, stack)
		}
	}
}

// decodeValue 按声明类型解码，NULL 保持 nil，解码失败时返回 nil
func decodeValue(v any, typ string) any {
	if v == nil {
		return nil
	}
	switch typ {
	case "Int":
		return toInt64(v)
	case "Number":
		return toFloat64(v)
	case "Bool":
		return toBool(v)
	case "JSON":
		var out any
		if err := json.Unmarshal(toBytes(v), &out); err != nil {
			return nil
		}
		return out
	case "Object":
		var out any
		if err := msgpack.Unmarshal(toBytes(v), &out); err != nil {
			return nil
		}
		return out
	}
	return normalizeValue(v)
}

func normalizeRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = normalizeValue(v)
	}
	return out
}

// normalizeValue 驱动返回的 []byte 按字符串处理
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toBytes(v any) []byte {
	switch t := v.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	}
	return []byte(fmt.Sprint(v))
}

func toText(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	}
	return fmt.Sprint(v)
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	}
	s := strings.TrimSpace(toText(v))
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func toFloat64(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(toText(v)), 64)
	if err != nil {
		return 0
	}
	return f
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	s := toText(v)
	return s != "" && s != "0"
}

func indexKey(v any) string {
	if v == nil {
		return ""
	}
	return toText(v)
}
