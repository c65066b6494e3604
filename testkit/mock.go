package testkit

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardsql/connector"
)

// NewMockConnection 返回基于 sqlmock 的 MySQL 连接，SQL 按全文精确匹配
//
// 测试结束时校验所有期望均已满足。
func NewMockConnection(t *testing.T) (connector.Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err, "failed to create sqlmock")

	conn, err := connector.FromDB(context.Background(), db,
		&connector.Config{Name: "mock", Driver: connector.DriverMySQL},
		connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to wrap sqlmock")

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return conn, mock
}
