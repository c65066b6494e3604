package connector

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// 支持的驱动
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config 连接配置
type Config struct {
	// 基础配置（可选，有默认值）
	Name           string        `mapstructure:"name"`            // 连接名称 (默认: "default")
	Driver         string        `mapstructure:"driver"`          // 驱动 (默认: "mysql")
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // 连接超时 (默认: 5s)
	SlowThreshold  time.Duration `mapstructure:"slow_threshold"`  // 慢查询阈值 (默认: 200ms)

	// MySQL 配置
	DSN       string            `mapstructure:"dsn"`       // 完整 DSN (可选，若提供则忽略 Host/Port 等)
	Host      string            `mapstructure:"host"`      // [必填] 主机地址
	Port      int               `mapstructure:"port"`      // 端口 (默认: 3306)
	Username  string            `mapstructure:"username"`  // 用户名
	Password  string            `mapstructure:"password"`  // 密码
	Database  string            `mapstructure:"database"`  // 数据库名
	Charset   string            `mapstructure:"charset"`   // 字符集 (默认: "utf8")
	Collation string            `mapstructure:"collation"` // 排序规则
	Params    map[string]string `mapstructure:"params"`    // 附加 DSN 参数，每个连接上生效的会话变量

	// SQLite 配置
	Path string `mapstructure:"path"` // 数据库文件路径或 file: URI

	// Commands 连接池建立后依次执行一次的初始化语句
	Commands []string `mapstructure:"commands"`

	// 连接池配置（可选，有默认值）
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数 (默认: 10)
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数 (默认: 100)
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大生命周期 (默认: 1h)
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

// validate 校验配置
func (c *Config) validate() error {
	c.setDefaults()
	switch c.Driver {
	case DriverMySQL:
		if c.DSN == "" && c.Host == "" {
			return fmt.Errorf("主机地址不能为空")
		}
		if c.Port <= 0 {
			return fmt.Errorf("端口必须大于0")
		}
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite 路径不能为空")
		}
	default:
		return fmt.Errorf("不支持的驱动: %s", c.Driver)
	}
	return nil
}

// mysqlDSN 由各字段拼接 DSN，cfg.DSN 优先
func (c *Config) mysqlDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.Timeout = c.ConnectTimeout
	mc.Collation = c.Collation
	mc.Params = map[string]string{"charset": c.Charset}
	for k, v := range c.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}
