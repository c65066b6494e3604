package connector

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/internal/dsl"
	"github.com/ceyewan/shardsql/query"
	"github.com/ceyewan/shardsql/xerrors"
)

type connection struct {
	cfg    *Config
	db     *gorm.DB
	logger clog.Logger
	quote  func(string) string

	mu     sync.Mutex
	tx     *gorm.DB
	closed bool

	debug   atomic.Bool
	lastID  atomic.Int64
	lastSQL atomic.Pointer[string]
}

// Open 按配置打开连接池，完成 ping 并执行初始化语句
func Open(ctx context.Context, cfg *Config, opts ...Option) (Connection, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "nil config")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrapf(ErrConfig, "connector[%s]: %v", cfg.Name, err)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqliteDialector(cfg)
	default:
		dialector = mysqlDialector(cfg)
	}
	return open(ctx, cfg, dialector, opts...)
}

// FromDB 包装已有的 *sql.DB，调用方仍负责其生命周期之外的资源
//
// 常用于测试（sqlmock）或复用应用已有的连接池。
func FromDB(ctx context.Context, db *sql.DB, cfg *Config, opts ...Option) (Connection, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverMySQL:
		dialector = mysqlConnDialector(db)
	case DriverSQLite:
		dialector = sqliteConnDialector(db)
	default:
		return nil, xerrors.Wrapf(ErrConfig, "connector[%s]: unsupported driver %s", cfg.Name, cfg.Driver)
	}
	return open(ctx, cfg, dialector, opts...)
}

func open(ctx context.Context, cfg *Config, dialector gorm.Dialector, opts ...Option) (Connection, error) {
	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	c := &connection{
		cfg:    cfg,
		logger: opt.logger.With(clog.String("driver", cfg.Driver), clog.String("name", cfg.Name)),
		quote:  Quoter(cfg.Driver),
	}

	c.logger.Info("attempting to connect",
		clog.String("host", cfg.Host),
		clog.String("database", cfg.Database))

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(c.logger, cfg.SlowThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		c.logger.Error("failed to open connection", clog.Error(err))
		return nil, xerrors.Wrapf(ErrConnection, "connector[%s]: %v", cfg.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, xerrors.Wrapf(ErrConnection, "connector[%s]: failed to get db instance: %v", cfg.Name, err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		c.logger.Error("failed to ping", clog.Error(err))
		_ = sqlDB.Close()
		return nil, xerrors.Wrapf(ErrConnection, "connector[%s]: ping failed: %v", cfg.Name, err)
	}
	c.db = db

	for _, command := range cfg.Commands {
		if _, err := c.Exec(ctx, command, nil); err != nil {
			_ = sqlDB.Close()
			return nil, xerrors.Wrapf(err, "connector[%s]: init command %q", cfg.Name, command)
		}
	}

	c.logger.Info("successfully connected")
	return c, nil
}

// pool 事务中返回事务句柄
func (c *connection) pool() (gorm.ConnPool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.tx != nil {
		return c.tx.Statement.ConnPool, nil
	}
	return c.db.ConnPool, nil
}

// bind 将 :name 占位符转换为驱动绑定形式
func (c *connection) bind(sqlText string, params *query.Params) (string, []any, error) {
	if params.Len() == 0 {
		return sqlText, nil, nil
	}
	// 引号内的 :xx 属于字面量，不能作为占位符
	args := make([]any, 0, params.Len())
	q, err := dsl.ReplaceNamed(sqlText, func(name string) (string, error) {
		p, ok := params.Get(name)
		if !ok {
			return "", fmt.Errorf("could not find name %s", name)
		}
		args = append(args, p.DriverValue())
		return "?", nil
	})
	if err != nil {
		return "", nil, xerrors.Mark(xerrors.ErrInvalidArgument, xerrors.Wrapf(err, "bind %q", sqlText))
	}
	return sqlx.Rebind(sqlx.BindType(c.cfg.Driver), q), args, nil
}

// prepare 记录 Last，调试模式下打印并跳过执行
func (c *connection) prepare(ctx context.Context, sqlText string, params *query.Params) (skip bool) {
	generated := query.Interpolate(sqlText, params, c.quote)
	c.lastSQL.Store(&generated)
	if c.debug.CompareAndSwap(true, false) {
		c.logger.InfoContext(ctx, "debug sql", clog.String("sql", generated))
		return true
	}
	return false
}

func (c *connection) trace(ctx context.Context, begin time.Time, sqlText string, rows int64, err error) {
	c.db.Logger.Trace(ctx, begin, func() (string, int64) {
		return sqlText, rows
	}, err)
}

func (c *connection) Execute(ctx context.Context, sqlText string, params *query.Params) ([]query.Row, error) {
	if c.prepare(ctx, sqlText, params) {
		return nil, nil
	}
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}
	q, args, err := c.bind(sqlText, params)
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	rows, err := pool.QueryContext(ctx, q, args...)
	if err != nil {
		c.trace(ctx, begin, q, 0, err)
		return nil, executionError(err)
	}
	defer rows.Close()

	out := make([]query.Row, 0)
	for rows.Next() {
		row := make(map[string]any)
		if err := sqlx.MapScan(rows, row); err != nil {
			c.trace(ctx, begin, q, int64(len(out)), err)
			return nil, executionError(err)
		}
		out = append(out, row)
	}
	err = rows.Err()
	c.trace(ctx, begin, q, int64(len(out)), err)
	if err != nil {
		return nil, executionError(err)
	}
	return out, nil
}

func (c *connection) Exec(ctx context.Context, sqlText string, params *query.Params) (sql.Result, error) {
	if c.prepare(ctx, sqlText, params) {
		return nil, nil
	}
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}
	q, args, err := c.bind(sqlText, params)
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	res, err := pool.ExecContext(ctx, q, args...)
	if err != nil {
		c.trace(ctx, begin, q, 0, err)
		return nil, executionError(err)
	}
	affected, _ := res.RowsAffected()
	c.trace(ctx, begin, q, affected, nil)
	if id, err := res.LastInsertId(); err == nil {
		c.lastID.Store(id)
	}
	return res, nil
}

func (c *connection) Quote(s string) string {
	return c.quote(s)
}

func (c *connection) LastInsertID() int64 {
	return c.lastID.Load()
}

func (c *connection) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.tx != nil {
		return ErrTxActive
	}
	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return executionError(tx.Error)
	}
	c.tx = tx
	c.logger.DebugContext(ctx, "transaction started")
	return nil
}

func (c *connection) Commit(ctx context.Context) error {
	tx, err := c.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return executionError(err)
	}
	c.logger.DebugContext(ctx, "transaction committed")
	return nil
}

func (c *connection) Rollback(ctx context.Context) error {
	tx, err := c.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Rollback().Error; err != nil {
		return executionError(err)
	}
	c.logger.DebugContext(ctx, "transaction rolled back")
	return nil
}

func (c *connection) takeTx() (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return nil, ErrNoTx
	}
	tx := c.tx
	c.tx = nil
	return tx, nil
}

func (c *connection) Debug() {
	c.debug.Store(true)
}

func (c *connection) Last() string {
	if p := c.lastSQL.Load(); p != nil {
		return *p
	}
	return ""
}

func (c *connection) Name() string {
	return c.cfg.Name
}

func (c *connection) Driver() string {
	return c.cfg.Driver
}

func (c *connection) HealthCheck(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return xerrors.Wrapf(ErrConnection, "connector[%s]: %v", c.cfg.Name, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		c.logger.Warn("health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "connector[%s]: health check failed: %v", c.cfg.Name, err)
	}
	return nil
}

func (c *connection) GetClient() *gorm.DB {
	return c.db
}

// Close 关闭连接池，未提交的事务会被回滚
func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("closing connection")

	var txErr error
	if c.tx != nil {
		txErr = c.tx.Rollback().Error
		c.tx = nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return xerrors.Combine(txErr, err)
	}
	return xerrors.Combine(txErr, sqlDB.Close())
}
