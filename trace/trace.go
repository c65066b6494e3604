// Package trace 初始化 OpenTelemetry TracerProvider，并提供 db 表操作的标准化 Span。
//
//	shutdown, err := trace.Init(trace.DefaultConfig("shardsql"))
//	if err != nil {
//		return err
//	}
//	defer shutdown(ctx)
//
//	ctx, span := trace.StartQuerySpan(ctx, trace.Tracer(nil), trace.QueryMeta{
//		System: "mysql", Operation: "select", Table: "user", Group: "user",
//	})
//	defer span.End()
package trace

import (
	"context"
	"time"

	"github.com/ceyewan/shardsql/xerrors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

// Init 初始化全局 TracerProvider
//
// 通过 OTLP gRPC 导出到 cfg.Endpoint，并设置为全局 Provider 与 Propagator。
// 返回的 Shutdown 函数应在进程退出时调用以刷新剩余数据。
func Init(cfg *Config) (func(context.Context) error, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	ctx := context.Background()
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(5 * time.Second),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create otlp exporter")
	}

	export := sdktrace.WithBatcher(exporter)
	if cfg.Batcher == "simple" {
		export = sdktrace.WithSyncer(exporter)
	}
	tp, err := newProvider(ctx, cfg.ServiceName, cfg.Sampler, export)
	if err != nil {
		return nil, err
	}
	install(tp)
	return tp.Shutdown, nil
}

// Setup 按 cfg 初始化：启用时等同 Init，否则等同 Discard。cfg 为 nil 视为未启用。
func Setup(cfg *Config, serviceName string) (func(context.Context) error, error) {
	if cfg == nil || !cfg.Enabled {
		return Discard(serviceName)
	}
	cfg.setDefaults(serviceName)
	return Init(cfg)
}

func newProvider(ctx context.Context, serviceName string, sampler float64, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	var resOpts []resource.Option
	if serviceName != "" {
		resOpts = append(resOpts, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	}
	res, err := resource.New(ctx, resOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create resource")
	}

	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampler))),
	)
	return sdktrace.NewTracerProvider(opts...), nil
}

// install 设置全局 Provider，Propagator 使用 W3C TraceContext 与 Baggage
func install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "config is required")
	}
	if cfg.ServiceName == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "service_name is required")
	}
	if cfg.Endpoint == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "endpoint is required")
	}
	if cfg.Sampler < 0 || cfg.Sampler > 1 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "sampler must be between 0 and 1, got %v", cfg.Sampler)
	}
	if cfg.Batcher != "" && cfg.Batcher != "batch" && cfg.Batcher != "simple" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "batcher must be \"batch\" or \"simple\", got %q", cfg.Batcher)
	}
	return nil
}
