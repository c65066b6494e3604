// Package clog 为 shardsql 提供基于 slog 的结构化日志组件。
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("shard resolved", clog.String("group", "user"), clog.Int("shard", 3))
//
// 组件通过 WithLogger 选项接收 Logger，并追加自己的命名空间：
//
//	routerLogger := logger.WithNamespace("router")
//	// namespace=shardsql.router
//
// 未注入 Logger 时，组件使用 Discard() 静默输出。
package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用开发环境默认配置。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}
