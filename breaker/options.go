package breaker

import (
	"context"

	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// FallbackFunc 熔断器打开时的降级函数，返回 nil 表示降级成功
type FallbackFunc func(ctx context.Context, key string, err error) (any, error)

type options struct {
	logger   clog.Logger
	meter    metrics.Meter
	fallback FallbackFunc
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "breaker"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置指标，记录状态变更次数
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithFallback 设置降级函数
func WithFallback(fallback FallbackFunc) Option {
	return func(o *options) {
		o.fallback = fallback
	}
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
}
