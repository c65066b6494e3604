package clog

import "context"

// Logger 日志接口
//
// 每个级别都有带 Context 和不带 Context 的版本，带 Context 的版本会
// 按 WithContextField 注册的规则从 ctx 中提取字段。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 追加命名空间，以 "." 连接
	//
	//   logger.WithNamespace("router").WithNamespace("breaker")
	//   // namespace=shardsql.router.breaker
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别
	SetLevel(level Level) error

	// Flush 强制同步缓冲区
	Flush()
}
