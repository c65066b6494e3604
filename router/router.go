// Package router 把 (group, shardKey, preferWriter) 解析为一个可用的数据库连接。
//
// 连接按 (group, shardIndex, 角色) 缓存，首次使用时打开：
//
//	r, _ := router.New(topo, router.WithLogger(logger))
//	defer r.Close()
//
//	conn, res, err := r.Resolve(ctx, "user", 10086, false)
//	// res.DatabaseName == "user_7"，conn 指向该分片所在的读库
//
// 同一连接的并发首次打开只会真正建连一次，建连不随单个调用方的 ctx 取消；每台服务器（host:port）有独立的熔断器，
// 打开状态下直接返回 ErrUnavailable，不再尝试建连。
package router

import (
	"context"
	"fmt"
	"maps"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ceyewan/shardsql/breaker"
	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/connector"
	"github.com/ceyewan/shardsql/metrics"
	"github.com/ceyewan/shardsql/topology"
	"github.com/ceyewan/shardsql/xerrors"
)

// Router 分片连接路由，可并发使用
type Router struct {
	topo    *topology.Topology
	opener  Opener
	tune    func(*connector.Config)
	breaker breaker.Breaker
	logger  clog.Logger
	gauge   metrics.Gauge

	openRate    rate.Limit
	openBurst   int
	openTimeout time.Duration
	limiters    sync.Map // endpoint -> *rate.Limiter

	sf     singleflight.Group
	mu     sync.RWMutex
	conns  map[string]entry
	closed bool
}

type entry struct {
	conn connector.Connection
	res  topology.Resolution
}

func (e entry) labels() []metrics.Label {
	return []metrics.Label{
		metrics.L(metrics.LabelGroup, e.res.Group),
		metrics.L(metrics.LabelRole, metrics.Role(e.res.Writer)),
	}
}

// New 创建 Router，topo 为空时返回 topology.ErrNotInitialized
func New(topo *topology.Topology, opts ...Option) (*Router, error) {
	if topo == nil {
		return nil, topology.ErrNotInitialized
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	brk, err := breaker.New(opt.breaker, breaker.WithLogger(opt.logger), breaker.WithMeter(opt.meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "router: create breaker")
	}
	gauge, err := opt.meter.Gauge(metrics.MetricOpenConnections, "router 当前缓存的连接数")
	if err != nil {
		return nil, xerrors.Wrap(err, "router: create gauge")
	}

	return &Router{
		topo:    topo,
		opener:  opt.opener,
		tune:    opt.tune,
		breaker: brk,
		logger:  opt.logger,
		gauge:   gauge,
		conns:   make(map[string]entry),

		openRate:    opt.openRate,
		openBurst:   opt.openBurst,
		openTimeout: opt.openTimeout,
	}, nil
}

// Topology 返回路由表
func (r *Router) Topology() *topology.Topology {
	return r.topo
}

// Prefix 返回分组的表名前缀
func (r *Router) Prefix(group string) (string, error) {
	g, err := r.topo.Group(group)
	if err != nil {
		return "", err
	}
	return g.Prefix, nil
}

// TableName 返回逻辑表名对应的物理表名（不含前缀）
func (r *Router) TableName(group, table string) (string, error) {
	return r.topo.TableName(group, table)
}

// Resolve 解析分片并返回对应连接
//
// 未知分组返回 topology.ErrGroupNotFound；分片没有映射到服务器返回 topology.ErrShardUnmapped；
// 建连失败时原样返回 connector 的错误。
func (r *Router) Resolve(ctx context.Context, group string, shardKey any, preferWriter bool) (connector.Connection, topology.Resolution, error) {
	res, err := r.topo.Resolve(group, shardKey, preferWriter)
	if err != nil {
		return nil, topology.Resolution{}, err
	}

	key := cacheKey(res)
	if conn, ok, err := r.cached(key); ok || err != nil {
		return conn, res, err
	}

	// 建连由所有等待者共享，不跟随任何一个调用方的 ctx 取消，只受 openTimeout 限制
	ch := r.sf.DoChan(key, func() (any, error) {
		if conn, ok, err := r.cached(key); ok || err != nil {
			return conn, err
		}
		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.openTimeout)
		defer cancel()
		return r.open(openCtx, key, res)
	})

	select {
	case <-ctx.Done():
		return nil, topology.Resolution{}, xerrors.Wrapf(ctx.Err(), "router: wait for %s", key)
	case ret := <-ch:
		if ret.Err != nil {
			return nil, topology.Resolution{}, ret.Err
		}
		if ret.Shared {
			r.logger.DebugContext(ctx, "connection open shared", clog.String("key", key))
		}
		return ret.Val.(connector.Connection), res, nil
	}
}

func (r *Router) cached(key string) (connector.Connection, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, false, ErrClosed
	}
	e, ok := r.conns[key]
	return e.conn, ok, nil
}

func (r *Router) open(ctx context.Context, key string, res topology.Resolution) (connector.Connection, error) {
	g, err := r.topo.Group(res.Group)
	if err != nil {
		return nil, err
	}
	cfg := connectorConfig(key, g, res)
	if r.tune != nil {
		r.tune(cfg)
	}

	endpoint := endpointKey(res.Endpoint)
	if err := r.limiter(endpoint).Wait(ctx); err != nil {
		return nil, xerrors.Wrapf(err, "router: wait to open %s", endpoint)
	}
	r.logger.InfoContext(ctx, "opening connection",
		clog.String("key", key),
		clog.String("endpoint", endpoint),
		clog.String("database", res.DatabaseName))

	v, err := r.breaker.Execute(ctx, endpoint, func() (any, error) {
		return r.opener(ctx, cfg)
	})
	if err != nil {
		if xerrors.Is(err, breaker.ErrOpenState) {
			return nil, xerrors.Wrapf(ErrUnavailable, "endpoint %s", endpoint)
		}
		r.logger.ErrorContext(ctx, "failed to open connection",
			clog.String("key", key),
			clog.String("endpoint", endpoint),
			clog.Error(err))
		return nil, err
	}
	conn := v.(connector.Connection)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		_ = conn.Close()
		return nil, ErrClosed
	}
	e := entry{conn: conn, res: res}
	r.conns[key] = e
	r.gauge.Inc(ctx, e.labels()...)
	return conn, nil
}

func (r *Router) limiter(endpoint string) *rate.Limiter {
	if v, ok := r.limiters.Load(endpoint); ok {
		return v.(*rate.Limiter)
	}
	v, _ := r.limiters.LoadOrStore(endpoint, rate.NewLimiter(r.openRate, r.openBurst))
	return v.(*rate.Limiter)
}

// Len 返回已缓存的连接数
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close 关闭全部连接，之后的 Resolve 返回 ErrClosed
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()

	var errs []error
	for key, e := range conns {
		r.gauge.Dec(context.Background(), e.labels()...)
		if err := e.conn.Close(); err != nil {
			r.logger.Warn("failed to close connection", clog.String("key", key), clog.Error(err))
			errs = append(errs, xerrors.Wrapf(err, "close %s", key))
		}
	}
	r.logger.Info("router closed", clog.Int("connections", len(conns)))
	return xerrors.Combine(errs...)
}

func cacheKey(res topology.Resolution) string {
	return fmt.Sprintf("%s:%d:%s", res.Group, res.ShardIndex, metrics.Role(res.Writer))
}

func endpointKey(e topology.ServerEndpoint) string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// connectorConfig 由分组配置与解析结果组装 MySQL 连接配置
func connectorConfig(name string, g *topology.GroupConfig, res topology.Resolution) *connector.Config {
	return &connector.Config{
		Name:      name,
		Driver:    connector.DriverMySQL,
		Host:      res.Endpoint.Host,
		Port:      res.Endpoint.Port,
		Username:  g.Username,
		Password:  g.Password,
		Database:  res.DatabaseName,
		Charset:   g.Charset,
		Collation: g.Collation,
		Params:    maps.Clone(g.Options),
	}
}
