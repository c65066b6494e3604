package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// QueryMeta 描述一次表操作的标准化属性
type QueryMeta struct {
	System    string
	Operation string
	Table     string
	Group     string
}

func normalizeContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Tracer 从 provider 获取 Tracer，provider 为空时使用全局 Provider
func Tracer(provider oteltrace.TracerProvider) oteltrace.Tracer {
	if provider == nil {
		return otel.Tracer(InstrumentationName)
	}
	return provider.Tracer(InstrumentationName)
}

func queryAttributes(meta QueryMeta, attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+4)
	if meta.System != "" {
		out = append(out, attribute.String(AttrDBSystem, meta.System))
	}
	if meta.Operation != "" {
		out = append(out, attribute.String(AttrDBOperation, meta.Operation))
	}
	if meta.Table != "" {
		out = append(out, attribute.String(AttrDBTable, meta.Table))
	}
	if meta.Group != "" {
		out = append(out, attribute.String(AttrShardGroup, meta.Group))
	}
	return append(out, attrs...)
}

// StartQuerySpan 启动一个 Client 类型的表操作 Span
func StartQuerySpan(
	ctx context.Context,
	tracer oteltrace.Tracer,
	meta QueryMeta,
	attrs ...attribute.KeyValue,
) (context.Context, oteltrace.Span) {
	ctx = normalizeContext(ctx)
	if tracer == nil {
		tracer = Tracer(nil)
	}
	spanCtx, span := tracer.Start(ctx, SpanNameQuery(meta.Operation, meta.Table),
		oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	span.SetAttributes(queryAttributes(meta, attrs...)...)
	return spanCtx, span
}

// MarkSpanError 当 err 不为 nil 时记录错误并将 Span 标记为失败
func MarkSpanError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
