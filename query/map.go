package query

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	json "github.com/goccy/go-json"
)

// Pair 有序映射中的一项，Key 为空表示位置项
type Pair struct {
	Key   string
	Value any
}

// Map 保持声明顺序的映射，条件、JOIN、列分组都依赖它的顺序
//
//	query.M("age[>]", 18, "name[~]", "bob")
//	query.Map{{Value: query.Raw("<a> = <b>", nil)}} // 位置项
type Map []Pair

// M 按 key, value, key, value 构造 Map，key 必须是 string
func M(kv ...any) Map {
	if len(kv)%2 != 0 {
		panic("query.M: odd number of arguments")
	}
	m := make(Map, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("query.M: key %v is not a string", kv[i]))
		}
		m = append(m, Pair{Key: key, Value: kv[i+1]})
	}
	return m
}

// Get 返回 key 对应的值
func (m Map) Get(key string) (any, bool) {
	for _, p := range m {
		if p.Key != "" && p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Has 判断 key 是否存在
func (m Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys 返回所有非位置项的 key
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, p := range m {
		if p.Key != "" {
			keys = append(keys, p.Key)
		}
	}
	return keys
}

// Without 返回去掉指定 key 后的副本
func (m Map) Without(keys ...string) Map {
	out := make(Map, 0, len(m))
	for _, p := range m {
		if p.Key != "" && contains(keys, p.Key) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// With 返回追加或覆盖 key 后的副本
func (m Map) With(key string, value any) Map {
	out := make(Map, 0, len(m)+1)
	replaced := false
	for _, p := range m {
		if p.Key != "" && p.Key == key {
			out = append(out, Pair{Key: key, Value: value})
			replaced = true
			continue
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, Pair{Key: key, Value: value})
	}
	return out
}

// positional 所有项都没有 key 时视为列表
func (m Map) positional() bool {
	for _, p := range m {
		if p.Key != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, it := range list {
		if it == s {
			return true
		}
	}
	return false
}

// AsMap 将 Map、[]Pair、map[string]any 统一为 Map，原生 map 按 key 排序
func AsMap(v any) (Map, bool) {
	return toMap(v)
}

// AsList 将切片或全部为位置项的 Map 展开为 []any
func AsList(v any) ([]any, bool) {
	return listItems(v)
}

// toMap 将 Map、[]Pair、map[string]any 统一为 Map，原生 map 按 key 排序
func toMap(v any) (Map, bool) {
	switch m := v.(type) {
	case Map:
		return m, true
	case []Pair:
		return Map(m), true
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Map, 0, len(m))
		for _, k := range keys {
			out = append(out, Pair{Key: k, Value: m[k]})
		}
		return out, true
	}
	return nil, false
}

// listItems 将切片（[]byte 除外）或全部为位置项的 Map 展开为 []any
func listItems(v any) ([]any, bool) {
	switch l := v.(type) {
	case nil:
		return nil, false
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []byte:
		return nil, false
	case Map:
		if len(l) == 0 || !l.positional() {
			return nil, false
		}
		out := make([]any, len(l))
		for i, p := range l {
			out[i] = p.Value
		}
		return out, true
	case []Pair:
		return listItems(Map(l))
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// entries 按声明顺序遍历 Map 或列表，列表项作为位置项
func entries(v any) (Map, bool) {
	if m, ok := toMap(v); ok {
		return m, true
	}
	if items, ok := listItems(v); ok {
		out := make(Map, len(items))
		for i, it := range items {
			out[i] = Pair{Value: it}
		}
		return out, true
	}
	return nil, false
}

// values 返回列表或 Map 的全部值
func values(v any) ([]any, bool) {
	if items, ok := listItems(v); ok {
		return items, true
	}
	if m, ok := toMap(v); ok {
		out := make([]any, len(m))
		for i, p := range m {
			out[i] = p.Value
		}
		return out, true
	}
	return nil, false
}

// isComposite 值是列表或映射
func isComposite(v any) bool {
	if _, ok := toMap(v); ok {
		return true
	}
	_, ok := listItems(v)
	return ok
}

// plain 将 Map 递归转换为 map[string]any，位置项使用下标作为 key
func plain(v any) any {
	switch t := v.(type) {
	case Map:
		out := make(map[string]any, len(t))
		for i, p := range t {
			key := p.Key
			if key == "" {
				key = fmt.Sprint(i)
			}
			out[key] = plain(p.Value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, it := range t {
			out[i] = plain(it)
		}
		return out
	}
	return v
}

// MarshalJSON 按声明顺序输出对象
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key := p.Key
		if key == "" {
			key = fmt.Sprint(i)
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 保留对象 key 的顺序，嵌套对象解码为 Map，整数解码为 int64
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return err
	}
	out, ok := v.(Map)
	if !ok {
		return fmt.Errorf("query: expected JSON object, got %T", v)
	}
	*m = out
	return nil
}

// DecodeJSON 将任意 JSON 值解码为查询参数：对象为 Map，数组为 []any
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return decodeJSONValue(dec)
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := Map{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("query: invalid object key %v", kt)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				m = append(m, Pair{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			list := []any{}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		}
		return nil, fmt.Errorf("query: unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	}
	return tok, nil
}
