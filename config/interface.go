// Package config 为 shardsql 提供配置加载能力，基于 Viper 实现。
//
// 加载优先级：环境变量 > .env > 环境特定配置 > 基础配置。
// 分片拓扑通常放在配置文件的 database 段下：
//
//	loader, _ := config.New(&config.Config{Name: "shardsql", Paths: []string{"./config"}})
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//	topo, err := topology.FromLoader(loader, "database")
//
// 环境变量前缀默认为 SHARDSQL，例如 SHARDSQL_DATABASE_USER_PASSWORD。
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
type Loader interface {
	// Load 加载配置并初始化内部状态
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，通过 context 取消监听
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置的有效性
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
