package router

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/shardsql/breaker"
	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/connector"
	"github.com/ceyewan/shardsql/metrics"
)

// DefaultOpenTimeout 建连的默认超时
const DefaultOpenTimeout = 10 * time.Second

// Opener 按连接配置建立连接，默认通过 connector.Open 打开 MySQL
type Opener func(ctx context.Context, cfg *connector.Config) (connector.Connection, error)

// Option 配置 Router 的选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	opener  Opener
	breaker *breaker.Config
	// 每台服务器的建连速率，Inf 表示不限制
	openRate    rate.Limit
	openBurst   int
	openTimeout time.Duration
	// 应用于每个新建连接的配置修改，例如连接池大小
	tune func(*connector.Config)
}

// WithLogger 设置日志记录器，内部会自动添加 namespace: "router"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("router")
		}
	}
}

// WithMeter 设置指标
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithOpener 替换连接工厂
func WithOpener(opener Opener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithBreaker 设置按服务器隔离的熔断器配置，未设置时使用 breaker.DefaultConfig
func WithBreaker(cfg *breaker.Config) Option {
	return func(o *options) {
		o.breaker = cfg
	}
}

// WithOpenRate 限制对同一服务器（host:port）的建连速率
//
// 服务器恢复后大量分片同时重连时用来削峰，超出速率的建连会等待，直到 ctx 取消。
func WithOpenRate(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.openRate = limit
		o.openBurst = burst
	}
}

// WithOpenTimeout 设置单次建连（含等待建连令牌）的最长时间，默认 DefaultOpenTimeout
func WithOpenTimeout(d time.Duration) Option {
	return func(o *options) {
		o.openTimeout = d
	}
}

// WithConnectorConfig 在每个连接打开前修改其配置
//
//	router.WithConnectorConfig(func(c *connector.Config) {
//		c.MaxOpenConns = 20
//		c.Commands = []string{"SET time_zone = '+00:00'"}
//	})
func WithConnectorConfig(tune func(*connector.Config)) Option {
	return func(o *options) {
		o.tune = tune
	}
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	if o.breaker == nil {
		o.breaker = breaker.DefaultConfig()
	}
	if o.openRate <= 0 {
		o.openRate = rate.Inf
	}
	if o.openBurst <= 0 {
		o.openBurst = 1
	}
	if o.openTimeout <= 0 {
		o.openTimeout = DefaultOpenTimeout
	}
	if o.opener == nil {
		logger := o.logger
		o.opener = func(ctx context.Context, cfg *connector.Config) (connector.Connection, error) {
			return connector.Open(ctx, cfg, connector.WithLogger(logger))
		}
	}
}
