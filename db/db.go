// Package db 在分片路由之上提供按表操作的数据访问接口。
//
// 每个操作先按 Target 解析分片连接，再用分组前缀编译语句并执行：
//
//	r, _ := router.New(topo, router.WithLogger(logger))
//	defer r.Close()
//
//	database, _ := db.New(r, db.WithLogger(logger), db.WithMeter(meter))
//	users, _ := database.Table("user", "user")
//
//	// 读库，按 user_id 分片
//	res, err := users.Select(ctx, db.Target{ShardKey: uid},
//		[]string{"user_id", "name", "age[Int]"},
//		query.M("age[>]", 18, "ORDER", query.M("user_id", "DESC"), "LIMIT", 10))
//
//	// 写库
//	_, err = users.Insert(ctx, db.Target{ShardKey: uid}, query.M("user_id", uid, "name", "bob"))
//
// ## 结果约定
//
// 连接处于调试模式（Table.Debug）时语句只打印不执行，Select/Get/Find 返回 (nil, nil)，
// Exec 类操作返回 nil 的 sql.Result。驱动错误原样透传，不重试。
package db

import (
	"context"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/metrics"
	"github.com/ceyewan/shardsql/query"
	"github.com/ceyewan/shardsql/router"
	"github.com/ceyewan/shardsql/trace"
	"github.com/ceyewan/shardsql/xerrors"
)

// Target 一次操作的路由目标
//
// 零值表示 0 号分片；读操作默认走读库，PreferWriter 为真时走写库。写操作总是走写库。
type Target struct {
	ShardKey     any
	PreferWriter bool
}

// DB 数据访问入口，借用 router 的连接，不负责其生命周期
type DB struct {
	router   *router.Router
	logger   clog.Logger
	tracer   oteltrace.Tracer
	queries  metrics.Counter
	duration metrics.Histogram
}

// New 创建 DB 实例
func New(r *router.Router, opts ...Option) (*DB, error) {
	if r == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "db: router is required")
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	queries, err := opt.meter.Counter(metrics.MetricQueriesTotal, "按操作统计的查询次数")
	if err != nil {
		return nil, xerrors.Wrap(err, "db: create counter")
	}
	duration, err := opt.meter.Histogram(metrics.MetricQueryDuration, "查询耗时", metrics.WithUnit("s"))
	if err != nil {
		return nil, xerrors.Wrap(err, "db: create histogram")
	}

	return &DB{
		router:   r,
		logger:   opt.logger,
		tracer:   trace.Tracer(opt.tracer),
		queries:  queries,
		duration: duration,
	}, nil
}

// Table 返回逻辑表的操作句柄
//
// 物理表名由分组的 tableNameFormat 决定，编译时加上分组前缀；primary 缺省为 "<table>_id"。
// 未知分组返回 topology.ErrGroupNotFound。
func (d *DB) Table(name, group string, primary ...string) (*Table, error) {
	if name == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "db: table name is required")
	}
	prefix, err := d.router.Prefix(group)
	if err != nil {
		return nil, err
	}
	physical, err := d.router.TableName(group, name)
	if err != nil {
		return nil, err
	}
	if len(primary) == 0 {
		primary = []string{name + "_id"}
	}

	return &Table{
		db:       d,
		name:     name,
		group:    group,
		physical: physical,
		primary:  append([]string(nil), primary...),
		compiler: query.New(query.WithPrefix(prefix)),
		logger:   d.logger.With(clog.String("table", name), clog.String("group", group)),
	}, nil
}

// MustTable 与 Table 相同，出错时 panic，仅用于初始化阶段
func (d *DB) MustTable(name, group string, primary ...string) *Table {
	return xerrors.Must(d.Table(name, group, primary...))
}

func (d *DB) record(ctx context.Context, op, group string, writer bool, outcome string, elapsed time.Duration) {
	d.queries.Inc(ctx,
		metrics.L(metrics.LabelOperation, op),
		metrics.L(metrics.LabelGroup, group),
		metrics.L(metrics.LabelRole, metrics.Role(writer)),
		metrics.L(metrics.LabelOutcome, outcome))
	d.duration.Record(ctx, elapsed.Seconds(),
		metrics.L(metrics.LabelOperation, op),
		metrics.L(metrics.LabelGroup, group))
}
