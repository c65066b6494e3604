// Package dsl 解析查询 DSL 中嵌在 map key 和列描述里的小语法：
//
//	column(alias)[type]   列描述
//	column[op]            条件 key
//	column[op]column      列与列比较
//	[op]table(alias)      JOIN key
//	AND #tag / OR #tag    条件分组 key
//
// 解析结果按原始文本缓存，解析失败同样缓存，调用方据此静默跳过。
package dsl

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var keyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Tag", Pattern: `#[^\n]*`},
	{Name: "Ident", Pattern: `[a-zA-Z0-9_.]+`},
	{Name: "Op", Pattern: `>=|<=|<>|><|!~|!=|[<>!~=+\-*/]`},
	{Name: "Punct", Pattern: `[()\[\]]`},
})

func build[T any]() *participle.Parser[T] {
	return participle.MustBuild[T](
		participle.Lexer(keyLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
}

type columnAST struct {
	Name  string `@Ident`
	Alias string `( "(" @Ident ")" )?`
	Type  string `( "[" @Ident "]" )?`
}

type conditionAST struct {
	Column string `@Ident`
	Op     string `( "[" @(Op | Ident) "]" )?`
}

type joinAST struct {
	Op    string `"[" @Op "]"`
	Table string `@Ident`
	Alias string `( "(" @Ident ")" )?`
}

type comparisonAST struct {
	Left  string `@Ident`
	Op    string `"[" @Op "]"`
	Right string `@Ident`
}

type groupAST struct {
	Conjunctor string `@("AND" | "OR")`
	Tag        string `@Tag?`
}

type tableAST struct {
	Name  string `@Ident`
	Alias string `( "(" @Ident ")" )?`
}

var (
	columnParser     = build[columnAST]()
	conditionParser  = build[conditionAST]()
	joinParser       = build[joinAST]()
	comparisonParser = build[comparisonAST]()
	groupParser      = build[groupAST]()
	tableParser      = build[tableAST]()
)
