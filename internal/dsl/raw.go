package dsl

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var rawLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Quoted", Pattern: `'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"|` + "`[^`]*`"},
	{Name: "Ref", Pattern: `<[a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)?>`},
	{Name: "Word", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Space", Pattern: `\s+`},
	{Name: "Other", Pattern: `.`},
})

var (
	refToken   = rawLexer.Symbols()["Ref"]
	wordToken  = rawLexer.Symbols()["Word"]
	spaceToken = rawLexer.Symbols()["Space"]
)

var tableKeywords = set("FROM", "TABLE", "INTO", "UPDATE", "JOIN")

// RewriteRaw 改写原始 SQL 中的 <name> 引用
//
// 紧跟在 FROM/TABLE/INTO/UPDATE/JOIN 之后的引用按表名处理，
// 其余按列名处理，引号内的内容保持不变。
func RewriteRaw(sql string, column, table func(string) string) string {
	lex, err := rawLexer.LexString("", sql)
	if err != nil {
		return sql
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) + 16)
	// 最近一个非空白 token 的下标与写出位置
	lastWord, lastWordEnd := -1, 0
	for i, tok := range tokens {
		if tok.EOF() {
			break
		}
		switch tok.Type {
		case refToken:
			name := tok.Value[1 : len(tok.Value)-1]
			if lastWord >= 0 && has(tableKeywords, strings.ToUpper(tokens[lastWord].Value)) {
				// 关键字与表名之间统一为一个空格
				out := b.String()[:lastWordEnd]
				b.Reset()
				b.WriteString(out)
				b.WriteString(" ")
				b.WriteString(table(name))
			} else {
				b.WriteString(column(name))
			}
			lastWord = -1
		case spaceToken:
			b.WriteString(tok.Value)
		case wordToken:
			b.WriteString(tok.Value)
			lastWord, lastWordEnd = i, b.Len()
		default:
			b.WriteString(tok.Value)
			lastWord = -1
		}
	}
	return b.String()
}

var namedLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Quoted", Pattern: `'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"|` + "`[^`]*`"},
	{Name: "Cast", Pattern: `::`},
	{Name: "Named", Pattern: `:[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Text", Pattern: "[^'\"`:]+"},
	{Name: "Other", Pattern: `.`},
})

var namedToken = namedLexer.Symbols()["Named"]

// ReplaceNamed 将 SQL 中的 :name 占位符逐个替换为 fn 的返回值
//
// 引号内的内容与 :: 类型转换保持不变，fn 返回错误时中止。
func ReplaceNamed(sql string, fn func(name string) (string, error)) (string, error) {
	lex, err := namedLexer.LexString("", sql)
	if err != nil {
		return "", err
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(sql))
	for _, tok := range tokens {
		if tok.EOF() {
			break
		}
		if tok.Type != namedToken {
			b.WriteString(tok.Value)
			continue
		}
		text, err := fn(tok.Value)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
