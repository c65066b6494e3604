package connector

import (
	"database/sql"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var mysqlEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"'", "\\'",
	"\"", "\\\"",
	"\x00", "\\0",
	"\n", "\\n",
	"\r", "\\r",
	"\x1a", "\\Z",
)

// Quoter 返回驱动对应的字符串转义函数，未知驱动按 MySQL 处理
func Quoter(driver string) func(string) string {
	if driver == DriverSQLite {
		return quoteSQLite
	}
	return quoteMySQL
}

// RandomFunc 返回驱动对应的随机排序表达式
func RandomFunc(driver string) string {
	if driver == DriverSQLite {
		return "RANDOM()"
	}
	return "RAND()"
}

// quoteMySQL 反斜杠转义，与 mysql_real_escape_string 一致
func quoteMySQL(s string) string {
	return "'" + mysqlEscaper.Replace(s) + "'"
}

func mysqlDialector(cfg *Config) gorm.Dialector {
	return mysql.Open(cfg.mysqlDSN())
}

// mysqlConnDialector 包装已有的 *sql.DB，不查询服务器版本
func mysqlConnDialector(db *sql.DB) gorm.Dialector {
	return mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})
}
