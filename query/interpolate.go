package query

import (
	"fmt"

	"github.com/ceyewan/shardsql/internal/dsl"
)

// Interpolate 将参数值代入 SQL，仅用于日志与调试输出，不能用于执行
//
// 字符串类参数经 quote 转义，NULL 输出为 NULL，引号内的内容与未知占位符保持不变。
func Interpolate(sql string, params *Params, quote func(string) string) string {
	if params.Len() == 0 {
		return sql
	}
	out, err := dsl.ReplaceNamed(sql, func(name string) (string, error) {
		p, ok := params.Get(name)
		if !ok {
			return name, nil
		}
		v := p.DriverValue()
		switch {
		case v == nil:
			return "NULL", nil
		case p.Kind == KindInt:
			return fmt.Sprint(v), nil
		}
		return quote(fmt.Sprint(v)), nil
	})
	if err != nil {
		return sql
	}
	return out
}
