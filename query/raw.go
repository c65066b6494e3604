package query

import (
	"sort"
	"strings"
)

// RawSQL 调用方预先写好的 SQL 片段，原样拼入语句
//
// <column> 与 <table.column> 会被加上列引号，紧跟 FROM/TABLE/INTO/UPDATE/JOIN
// 的 <table> 会被加上表引号（含前缀）。参数名以 ":" 开头，例如 ":id"。
type RawSQL struct {
	SQL    string
	Params map[string]any
}

// Raw 构造原始 SQL 片段
//
//	query.Raw("COUNT(<id>) > :min", map[string]any{"min": 3})
func Raw(sql string, params map[string]any) *RawSQL {
	normalized := make(map[string]any, len(params))
	for k, v := range params {
		if !strings.HasPrefix(k, ":") {
			k = ":" + k
		}
		normalized[k] = v
	}
	return &RawSQL{SQL: sql, Params: normalized}
}

func (r *RawSQL) paramNames() []string {
	names := make([]string, 0, len(r.Params))
	for k := range r.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func asRaw(v any) (*RawSQL, bool) {
	switch r := v.(type) {
	case *RawSQL:
		return r, r != nil
	case RawSQL:
		return &r, true
	}
	return nil, false
}

func isRaw(v any) bool {
	_, ok := asRaw(v)
	return ok
}
