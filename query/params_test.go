package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		in    any
		value any
		kind  Kind
	}{
		{nil, nil, KindNull},
		{true, int64(1), KindInt},
		{false, int64(0), KindInt},
		{42, 42, KindInt},
		{uint8(3), uint8(3), KindInt},
		{1.5, 1.5, KindString},
		{"x", "x", KindString},
	}
	for _, tt := range tests {
		v, kind := typeOf(tt.in)
		assert.Equal(t, tt.value, v, "%v", tt.in)
		assert.Equal(t, tt.kind, kind, "%v", tt.in)
	}
}

func TestParam_DriverValue(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	tests := []struct {
		name  string
		param Param
		want  any
	}{
		{"null", Param{Kind: KindNull, Value: "x"}, nil},
		{"int", Param{Kind: KindInt, Value: 7}, int64(7)},
		{"int from string", Param{Kind: KindInt, Value: " 12 "}, int64(12)},
		{"int from float string", Param{Kind: KindInt, Value: "1.5"}, 1.5},
		{"int from whole float", Param{Kind: KindInt, Value: 3.0}, int64(3)},
		{"string float", Param{Kind: KindString, Value: 0.1}, "0.1"},
		{"string bytes", Param{Kind: KindString, Value: []byte("b")}, "b"},
		{"string time", Param{Kind: KindString, Value: at}, "2024-05-06 07:08:09"},
		{"string nil", Param{Kind: KindString}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.param.DriverValue())
		})
	}
}

func TestParams(t *testing.T) {
	p := NewParams()
	assert.Equal(t, ":p0", p.next())
	assert.Equal(t, ":p1", p.next())

	p.Add(":a", 1, KindInt)
	p.Add(":b", "x", KindString)
	p.Add(":a", 2, KindInt)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []Param{
		{Name: ":a", Value: 2, Kind: KindInt},
		{Name: ":b", Value: "x", Kind: KindString},
	}, p.List())
	got, ok := p.Get(":a")
	assert.True(t, ok)
	assert.Equal(t, int64(2), got.DriverValue())

	var nilParams *Params
	assert.Equal(t, 0, nilParams.Len())
	assert.Empty(t, nilParams.List())
}

func TestIsNumeric(t *testing.T) {
	for _, v := range []any{1, int64(-3), 2.5, "10", " -1.5e3 ", ".5"} {
		assert.True(t, isNumeric(v), "%v", v)
	}
	for _, v := range []any{nil, true, "abc", "1a", "", []int{1}} {
		assert.False(t, isNumeric(v), "%v", v)
	}
}

func TestInterpolate(t *testing.T) {
	p := NewParams()
	for i := 0; i < 11; i++ {
		p.next()
	}
	p.Add(":p1", 5, KindInt)
	p.Add(":p10", "o'k", KindString)
	p.Add(":p2", nil, KindNull)

	quote := func(s string) string { return "'" + s + "'" }
	got := Interpolate("SELECT * FROM t WHERE a = :p1 AND b = :p10 AND c = :p2", p, quote)
	assert.Equal(t, "SELECT * FROM t WHERE a = 5 AND b = 'o'k' AND c = NULL", got)

	got = Interpolate("SELECT * FROM t WHERE at = '12:30' AND a = :p1 AND b = :other", p, quote)
	assert.Equal(t, "SELECT * FROM t WHERE at = '12:30' AND a = 5 AND b = :other", got)

	assert.Equal(t, "SELECT 1", Interpolate("SELECT 1", nil, quote))
}
