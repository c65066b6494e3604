package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/connector"
	"github.com/ceyewan/shardsql/metrics"
	"github.com/ceyewan/shardsql/query"
	"github.com/ceyewan/shardsql/trace"
	"github.com/ceyewan/shardsql/xerrors"
)

// 操作名，用作指标标签与 Span 名
const (
	opSelect   = "select"
	opRand     = "rand"
	opReplace  = "replace"
	opGet      = "get"
	opHas      = "has"
	opInsert   = "insert"
	opUpdate   = "update"
	opDelete   = "delete"
	opFind     = "find"
	opQuery    = "query"
	opExec     = "exec"
	opBegin    = "begin"
	opCommit   = "commit"
	opRollback = "rollback"
)

// Table 一张逻辑表的操作句柄，可并发使用
//
// ID、Last 读取的是最近一次操作所用的连接，并发使用时结果只对最后一次调用有意义。
// 事务绑定在分片写库的共享连接上，不属于某个 goroutine，见 Begin。
type Table struct {
	db       *DB
	name     string
	group    string
	physical string
	primary  []string
	compiler *query.Compiler
	logger   clog.Logger

	debug atomic.Bool
	mu    sync.Mutex
	last  connector.Connection
}

// Name 逻辑表名
func (t *Table) Name() string { return t.name }

// Group 所属分组
func (t *Table) Group() string { return t.group }

// Primary 主键列
func (t *Table) Primary() []string { return append([]string(nil), t.primary...) }

// TableName 带前缀的物理表名
func (t *Table) TableName() string { return t.compiler.Prefix() + t.physical }

// Debug 下一次操作只打印插值后的 SQL，不访问数据库
//
//	users.Debug().Select(ctx, target, "*", where) // 返回 (nil, nil)
func (t *Table) Debug() *Table {
	t.debug.Store(true)
	return t
}

// ID 最近一次操作所用连接的 LastInsertID
func (t *Table) ID() int64 {
	if conn := t.lastConn(); conn != nil {
		return conn.LastInsertID()
	}
	return 0
}

// Last 最近一次执行的 SQL，参数已插值
func (t *Table) Last() string {
	if conn := t.lastConn(); conn != nil {
		return conn.Last()
	}
	return ""
}

func (t *Table) lastConn() connector.Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Table) setLast(conn connector.Connection) {
	t.mu.Lock()
	t.last = conn
	t.mu.Unlock()
}

// run 解析连接后执行 fn，统一记录指标、Span 与错误日志
func (t *Table) run(ctx context.Context, op string, target Target, writer bool, fn func(ctx context.Context, conn connector.Connection) error) error {
	ctx, span := trace.StartQuerySpan(ctx, t.db.tracer, trace.QueryMeta{
		Operation: op,
		Table:     t.name,
		Group:     t.group,
	})
	defer span.End()

	begin := time.Now()
	dry := false
	conn, res, err := t.db.router.Resolve(ctx, t.group, target.ShardKey, writer)
	if err == nil {
		t.setLast(conn)
		span.SetAttributes(
			attribute.String(trace.AttrDBSystem, conn.Driver()),
			attribute.String(trace.AttrDBName, res.DatabaseName),
			attribute.Int(trace.AttrShardIndex, res.ShardIndex),
			attribute.String(trace.AttrShardRole, metrics.Role(writer)),
			attribute.String(trace.AttrShardEndpoint, net.JoinHostPort(res.Endpoint.Host, strconv.Itoa(res.Endpoint.Port))),
		)
		if t.debug.CompareAndSwap(true, false) {
			conn.Debug()
			dry = true
		}
		err = fn(ctx, conn)
	}

	outcome := metrics.Outcome(err)
	if dry && err == nil {
		outcome = metrics.OutcomeDryRun
	}
	t.db.record(ctx, op, t.group, writer, outcome, time.Since(begin))

	if err != nil {
		trace.MarkSpanError(span, err)
		t.logger.ErrorContext(ctx, "operation failed",
			clog.String("op", op),
			clog.Bool("writer", writer),
			clog.ErrorWithCode(err, xerrors.GetCode(err)))
	}
	return err
}

func (t *Table) fetch(ctx context.Context, op string, target Target, writer bool, st *query.Statement) ([]query.Row, error) {
	var rows []query.Row
	err := t.run(ctx, op, target, writer, func(ctx context.Context, conn connector.Connection) error {
		var err error
		rows, err = conn.Execute(ctx, st.SQL, st.Params)
		return err
	})
	return rows, err
}

func (t *Table) exec(ctx context.Context, op string, target Target, writer bool, st *query.Statement) (sql.Result, error) {
	var result sql.Result
	err := t.run(ctx, op, target, writer, func(ctx context.Context, conn connector.Connection) error {
		var err error
		result, err = conn.Exec(ctx, st.SQL, st.Params)
		return err
	})
	return result, err
}

// Select 查询多行，参数为 (join?, columns?, where?)
//
// 列描述为 "*" 时结果行原样返回；单个非通配列时结果展开为 Result.Values。
func (t *Table) Select(ctx context.Context, target Target, args ...any) (*query.Result, error) {
	st := t.compiler.PrepareSelect(t.physical, args...)
	rows, err := t.fetch(ctx, opSelect, target, target.PreferWriter, st)
	if err != nil || rows == nil {
		return nil, err
	}
	return st.Shape(rows), nil
}

// Get 与 Select 相同但只取第一行，where 中的 LIMIT 会被忽略；没有结果时返回空的 Result
func (t *Table) Get(ctx context.Context, target Target, args ...any) (*query.Result, error) {
	st := t.compiler.PrepareGet(t.physical, args...)
	rows, err := t.fetch(ctx, opGet, target, target.PreferWriter, st)
	if err != nil || rows == nil {
		return nil, err
	}
	if len(rows) > 1 {
		rows = rows[:1]
	}
	return st.Shape(rows), nil
}

// Rand 与 Select 相同，但按驱动的随机函数排序，where 中的 ORDER 被忽略
func (t *Table) Rand(ctx context.Context, target Target, args ...any) (*query.Result, error) {
	var (
		st   *query.Statement
		rows []query.Row
	)
	err := t.run(ctx, opRand, target, target.PreferWriter, func(ctx context.Context, conn connector.Connection) error {
		st = t.compiler.PrepareRand(t.physical, connector.RandomFunc(conn.Driver()), args...)
		var err error
		rows, err = conn.Execute(ctx, st.SQL, st.Params)
		return err
	})
	if err != nil || rows == nil {
		return nil, err
	}
	return st.Shape(rows), nil
}

// Has 判断是否存在满足条件的行，参数为 (where) 或 (join, where)
func (t *Table) Has(ctx context.Context, target Target, args ...any) (bool, error) {
	st := t.compiler.PrepareHas(t.physical, args...)
	rows, err := t.fetch(ctx, opHas, target, target.PreferWriter, st)
	if err != nil || len(rows) == 0 {
		return false, err
	}
	return truthy(firstValue(st.Shape(rows))), nil
}

// Count 统计行数，参数为 (join?, column?, where?)
func (t *Table) Count(ctx context.Context, target Target, args ...any) (int64, error) {
	v, err := t.aggregate(ctx, query.FuncCount, target, args)
	if err != nil || v == nil {
		return 0, err
	}
	n, err := strconv.ParseInt(fmt.Sprint(v), 10, 64)
	if err != nil {
		return 0, xerrors.Wrapf(err, "db: parse count %v", v)
	}
	return n, nil
}

// Avg 平均值，空集或调试模式下为 nil
func (t *Table) Avg(ctx context.Context, target Target, args ...any) (any, error) {
	return t.aggregate(ctx, query.FuncAvg, target, args)
}

// Max 最大值，空集或调试模式下为 nil
func (t *Table) Max(ctx context.Context, target Target, args ...any) (any, error) {
	return t.aggregate(ctx, query.FuncMax, target, args)
}

// Min 最小值，空集或调试模式下为 nil
func (t *Table) Min(ctx context.Context, target Target, args ...any) (any, error) {
	return t.aggregate(ctx, query.FuncMin, target, args)
}

// Sum 求和，空集或调试模式下为 nil
func (t *Table) Sum(ctx context.Context, target Target, args ...any) (any, error) {
	return t.aggregate(ctx, query.FuncSum, target, args)
}

func (t *Table) aggregate(ctx context.Context, fn string, target Target, args []any) (any, error) {
	st := t.compiler.PrepareAggregate(fn, t.physical, args...)
	rows, err := t.fetch(ctx, strings.ToLower(fn), target, target.PreferWriter, st)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return firstValue(st.Shape(rows)), nil
}

// Insert 插入一行（映射）或多行（映射列表），总是走写库
func (t *Table) Insert(ctx context.Context, target Target, rows any) (sql.Result, error) {
	st, err := t.compiler.CompileInsert(t.physical, rows)
	if err != nil {
		return nil, argumentError(err)
	}
	return t.exec(ctx, opInsert, target, true, st)
}

// InsertID 插入后返回新行的主键
//
//	多行插入              返回 LastInsertId
//	单行、单列主键已给出  返回数据中的主键值
//	单行、单列主键未给出  返回 LastInsertId
//	单行、复合主键        返回数据中出现的主键列
func (t *Table) InsertID(ctx context.Context, target Target, data any) (any, error) {
	result, err := t.Insert(ctx, target, data)
	if err != nil || result == nil {
		return nil, err
	}

	row, single := query.AsMap(data)
	if _, isList := query.AsList(data); isList {
		single = false
	}
	switch {
	case !single:
	case len(t.primary) == 1:
		if v, ok := row.Get(t.primary[0]); ok && v != nil {
			return v, nil
		}
	default:
		keys := make(query.Map, 0, len(t.primary))
		for _, p := range row {
			for _, key := range t.primary {
				if p.Key == key {
					keys = append(keys, p)
				}
			}
		}
		return keys, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, xerrors.Wrap(err, "db: last insert id")
	}
	return id, nil
}

// Update 更新满足 where 的行，支持 "col[+]" 等算术赋值，总是走写库
func (t *Table) Update(ctx context.Context, target Target, data, where any) (sql.Result, error) {
	st, err := t.compiler.CompileUpdate(t.physical, data, where)
	if err != nil {
		return nil, argumentError(err)
	}
	return t.exec(ctx, opUpdate, target, true, st)
}

// Replace 对满足 where 的行做字符串替换，columns 为列到 {旧值: 新值} 的映射，总是走写库
//
//	posts.Replace(ctx, target, query.M("body", query.M("http://", "https://")), query.M("id", 1))
func (t *Table) Replace(ctx context.Context, target Target, columns, where any) (sql.Result, error) {
	st, err := t.compiler.CompileReplace(t.physical, columns, where)
	if err != nil {
		return nil, argumentError(err)
	}
	return t.exec(ctx, opReplace, target, true, st)
}

// Delete 删除满足 where 的行，总是走写库
func (t *Table) Delete(ctx context.Context, target Target, where any) (sql.Result, error) {
	st := t.compiler.CompileDelete(t.physical, where)
	return t.exec(ctx, opDelete, target, true, st)
}

// Find 按主键取一行，没有结果时返回 (nil, nil)
//
// id 可以是单个值、与主键列一一对应的列表，或主键列到值的映射；个数与主键列数不一致时
// 在访问连接之前返回 ErrPrimaryKeyArity。where 中已有 "AND" 时不再追加主键条件。
func (t *Table) Find(ctx context.Context, target Target, id any, where ...query.Map) (query.Row, error) {
	cond, err := t.primaryCondition(id)
	if err != nil {
		return nil, err
	}

	var w query.Map
	for _, m := range where {
		w = append(w, m...)
	}
	if !w.Has("AND") {
		w = w.With("AND", cond)
	}

	st := t.compiler.PrepareGet(t.physical, "*", w)
	rows, err := t.fetch(ctx, opFind, target, target.PreferWriter, st)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return st.Shape(rows[:1]).First(), nil
}

// FindForUpdate 在写库上按主键加锁读取一行（SELECT ... FOR UPDATE），通常在事务中使用
func (t *Table) FindForUpdate(ctx context.Context, shardKey any, id any) (query.Row, error) {
	return t.Find(ctx, Target{ShardKey: shardKey, PreferWriter: true}, id, query.M("LOCK", "UPDATE"))
}

func (t *Table) primaryCondition(id any) (query.Map, error) {
	var cond query.Map
	if ids, ok := query.AsList(id); ok {
		if len(ids) == len(t.primary) {
			for i, key := range t.primary {
				cond = append(cond, query.Pair{Key: key, Value: ids[i]})
			}
		}
		return t.checkArity(cond, len(ids))
	}
	if m, ok := query.AsMap(id); ok {
		return t.checkArity(m, len(m))
	}
	return t.checkArity(query.M(t.primary[0], id), 1)
}

func (t *Table) checkArity(cond query.Map, n int) (query.Map, error) {
	if n != len(t.primary) {
		return nil, argumentError(xerrors.Wrapf(ErrPrimaryKeyArity,
			"table %s: got %d ids for primary key %v", t.name, n, t.primary))
	}
	return cond, nil
}

// Query 执行原始 SQL 并返回结果行
//
// <column>、<table> 会被加上引号与分组前缀，参数以 :name 引用。以 SELECT 开头的语句走
// target 指定的角色，其余语句总是走写库。
//
//	users.Query(ctx, target, "SELECT <name> FROM <user> WHERE <age> > :age", map[string]any{"age": 18})
func (t *Table) Query(ctx context.Context, target Target, sqlText string, params map[string]any) ([]query.Row, error) {
	st := t.compiler.CompileRaw(query.Raw(sqlText, params))
	rows, err := t.fetch(ctx, opQuery, target, target.PreferWriter || !isSelect(sqlText), st)
	if err != nil || rows == nil {
		return nil, err
	}
	return st.Shape(rows).Rows, nil
}

// Exec 执行原始 SQL，写库选择规则与 Query 相同
func (t *Table) Exec(ctx context.Context, target Target, sqlText string, params map[string]any) (sql.Result, error) {
	st := t.compiler.CompileRaw(query.Raw(sqlText, params))
	return t.exec(ctx, opExec, target, target.PreferWriter || !isSelect(sqlText), st)
}

// Quote 按目标连接的驱动规则转义字符串
func (t *Table) Quote(ctx context.Context, target Target, s string) (string, error) {
	conn, _, err := t.db.router.Resolve(ctx, t.group, target.ShardKey, target.PreferWriter)
	if err != nil {
		return "", err
	}
	t.setLast(conn)
	return conn.Quote(s), nil
}

// Begin 在分片写库上开启事务，之后同一分片写库上的操作都在事务内执行
//
// 写库连接由 router 按 (分组, 分片) 共享：事务期间其他 goroutine、其他 Table 句柄
// 对同一分片写库的写入也会进入这个事务，随 Commit 提交或随 Rollback 回滚。
// 需要隔离的写入应避免与事务并发访问同一分片。
func (t *Table) Begin(ctx context.Context, shardKey any) error {
	return t.run(ctx, opBegin, Target{ShardKey: shardKey}, true, func(ctx context.Context, conn connector.Connection) error {
		return conn.Begin(ctx)
	})
}

// Commit 提交分片写库上的事务
func (t *Table) Commit(ctx context.Context, shardKey any) error {
	return t.run(ctx, opCommit, Target{ShardKey: shardKey}, true, func(ctx context.Context, conn connector.Connection) error {
		return conn.Commit(ctx)
	})
}

// Rollback 回滚分片写库上的事务
func (t *Table) Rollback(ctx context.Context, shardKey any) error {
	return t.run(ctx, opRollback, Target{ShardKey: shardKey}, true, func(ctx context.Context, conn connector.Connection) error {
		return conn.Rollback(ctx)
	})
}

// Transaction 在分片写库上执行 fn，fn 返回错误或 panic 时回滚
//
// 事务作用范围与 Begin 相同，是整个分片写库连接，而不只是 fn 内的调用。
func (t *Table) Transaction(ctx context.Context, shardKey any, fn func(ctx context.Context) error) (err error) {
	if err := t.Begin(ctx, shardKey); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = t.Rollback(ctx, shardKey)
			panic(r)
		}
		if err != nil {
			if rbErr := t.Rollback(ctx, shardKey); rbErr != nil {
				err = xerrors.Combine(err, rbErr)
			}
			return
		}
		err = t.Commit(ctx, shardKey)
	}()
	return fn(ctx)
}

// isSelect 语句去掉前导空白后是否以 SELECT 开头（忽略大小写）
func isSelect(sqlText string) bool {
	s := strings.TrimLeft(sqlText, " \t\r\n")
	return len(s) >= 6 && strings.EqualFold(s[:6], "select")
}

// firstValue 单列结果的第一个值
func firstValue(res *query.Result) any {
	for _, v := range res.First() {
		return v
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case string:
		return t != "" && t != "0"
	}
	return fmt.Sprint(v) != "0"
}
