package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardsql/connector"
)

// NewSQLiteConfig 返回独立的共享内存 SQLite 配置
//
// 库名带随机后缀，同一测试内多次打开看到同一份数据，测试之间互不干扰。
func NewSQLiteConfig(t *testing.T, commands ...string) *connector.Config {
	return &connector.Config{
		Name:         "sqlite-" + t.Name(),
		Driver:       connector.DriverSQLite,
		Path:         "file:" + NewID() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		Commands:     commands,
	}
}

// NewSQLiteConnection 获取 SQLite 连接，commands 在打开后依次执行（通常是建表语句）
// 生命周期由 t.Cleanup 管理
func NewSQLiteConnection(t *testing.T, commands ...string) connector.Connection {
	t.Helper()
	conn, err := connector.Open(context.Background(), NewSQLiteConfig(t, commands...),
		connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to open sqlite connection")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
