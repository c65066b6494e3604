package db

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/metrics"
)

// Option 配置 DB 实例的选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	tracer trace.TracerProvider
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("db")
		}
	}
}

// WithMeter 注入指标，记录每个操作的次数与耗时
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// WithTracer 注入 TracerProvider（用于 OpenTelemetry trace），未设置时使用全局 Provider
func WithTracer(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
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
