package connector

import (
	"database/sql"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// quoteSQLite 单引号加倍
func quoteSQLite(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqliteDialector(cfg *Config) gorm.Dialector {
	return sqlite.Open(cfg.Path)
}

func sqliteConnDialector(db *sql.DB) gorm.Dialector {
	return sqlite.New(sqlite.Config{Conn: db})
}
