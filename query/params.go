package query

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind 参数绑定类型
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	default:
		return "string"
	}
}

// Param 一个命名参数，Name 含前导 ":"
type Param struct {
	Name  string
	Value any
	Kind  Kind
}

// Params 一次编译产生的有序参数表，占位符名由单调计数器生成，编译内唯一
type Params struct {
	list  []Param
	index map[string]int
	seq   int
}

// NewParams 创建空参数表
func NewParams() *Params {
	return &Params{index: make(map[string]int)}
}

// next 生成新的占位符名
func (p *Params) next() string {
	name := ":p" + strconv.Itoa(p.seq)
	p.seq++
	return name
}

// Add 添加参数，同名时覆盖值并保持原位置
func (p *Params) Add(name string, value any, kind Kind) {
	if i, ok := p.index[name]; ok {
		p.list[i] = Param{Name: name, Value: value, Kind: kind}
		return
	}
	p.index[name] = len(p.list)
	p.list = append(p.list, Param{Name: name, Value: value, Kind: kind})
}

// bind 按运行时类型推断 Kind 后添加
func (p *Params) bind(name string, value any) {
	v, kind := typeOf(value)
	p.Add(name, v, kind)
}

// Get 按名字查找参数
func (p *Params) Get(name string) (Param, bool) {
	if p == nil {
		return Param{}, false
	}
	i, ok := p.index[name]
	if !ok {
		return Param{}, false
	}
	return p.list[i], true
}

// List 按添加顺序返回参数
func (p *Params) List() []Param {
	if p == nil {
		return nil
	}
	return append([]Param(nil), p.list...)
}

// Len 参数个数
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.list)
}

// typeOf 运行时类型到绑定类型：整数与布尔为 Int，浮点与字符串为 String
func typeOf(v any) (any, Kind) {
	switch t := v.(type) {
	case nil:
		return nil, KindNull
	case bool:
		if t {
			return int64(1), KindInt
		}
		return int64(0), KindInt
	case string, []byte, float32, float64, time.Time:
		return v, KindString
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v, KindInt
	}
	return v, KindString
}

// DriverValue 按绑定类型转换为 database/sql 可接受的值
func (p Param) DriverValue() any {
	switch p.Kind {
	case KindNull:
		return nil
	case KindInt:
		return intDriverValue(p.Value)
	default:
		return stringDriverValue(p.Value)
	}
}

func intDriverValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return t
	case float32:
		return floatDriverValue(float64(t))
	case float64:
		return floatDriverValue(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u)
		}
		return strconv.FormatUint(rv.Uint(), 10)
	}
	return fmt.Sprint(v)
}

func floatDriverValue(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return int64(f)
	}
	return f
}

func stringDriverValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case []byte:
		return string(t)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case bool:
		if t {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}

var numericPattern = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?\s*$`)

// isNumeric 数值类型或数值字符串
func isNumeric(v any) bool {
	switch t := v.(type) {
	case nil, bool:
		return false
	case string:
		return numericPattern.MatchString(t)
	case []byte:
		return numericPattern.Match(t)
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		f := reflect.ValueOf(v).Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return false
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

// numberLiteral 将数值格式化为可直接内联到 SQL 的文本
func numberLiteral(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
