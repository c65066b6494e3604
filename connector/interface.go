// Package connector 提供分片上单个数据库连接的执行能力。
//
// 一个 Connection 对应一个 (分组, 分片, 读写角色) 三元组，由 router 负责创建与缓存。
// Connection 接收 query 包编译出的 SQL 与命名参数，负责：
//   - 命名参数绑定：引号外的 :name 占位符换成 ?，再由 sqlx.Rebind 转换为驱动的绑定形式
//   - 结果读取：一次性读取全部行，值按驱动原样返回（[]byte 由 query 统一处理）
//   - 事务：Begin/Commit/Rollback 作用于整个 Connection，与 PDO 句柄语义一致
//   - 调试：Debug 之后的下一条语句只打印插值后的 SQL，不会执行
//
// 基本使用：
//
//	conn, err := connector.Open(ctx, &connector.Config{
//		Driver:   connector.DriverMySQL,
//		Host:     "127.0.0.1",
//		Username: "root",
//		Database: "shop_1",
//	}, connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	st := query.New().PrepareSelect("user", []string{"id", "name"}, query.M("id", 1))
//	rows, err := conn.Execute(ctx, st.SQL, st.Params)
//
// 资源所有权：
//
//	Connection 拥有底层连接池，Close() 由创建者（通常是 router）调用。
package connector

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/ceyewan/shardsql/query"
)

// Connection 单个分片连接
//
// 执行方法并发安全；事务状态属于整个 Connection，开启事务后所有语句都在事务内执行。
type Connection interface {
	// Execute 执行查询并读取全部行。
	//
	// 调试模式下不执行语句，返回 (nil, nil)，调用方据此区分"没有语句句柄"与"没有结果"。
	Execute(ctx context.Context, sql string, params *query.Params) ([]query.Row, error)

	// Exec 执行写语句。调试模式下返回 (nil, nil)。
	Exec(ctx context.Context, sql string, params *query.Params) (sql.Result, error)

	// Quote 将字符串转义为 SQL 字面量（含外层单引号）
	Quote(s string) string

	// LastInsertID 最近一次 Exec 产生的自增 ID
	LastInsertID() int64

	// Begin 在整个 Connection 上开启事务，之后所有调用方经由该 Connection 的语句都在事务内，
	// 直到 Commit 或 Rollback
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Debug 开启一次性调试模式
	Debug()

	// Last 最近一条语句（参数已插值），仅用于日志
	Last() string

	// Name 连接名称，用于日志与指标
	Name() string

	// Driver 驱动名：mysql 或 sqlite
	Driver() string

	// HealthCheck 检查连接可用性
	HealthCheck(ctx context.Context) error

	// GetClient 返回底层 GORM 实例，用于建表等与查询编译无关的操作
	GetClient() *gorm.DB

	Close() error
}
