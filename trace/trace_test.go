package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/shardsql/xerrors"
)

func setupTracerForTest(t *testing.T) (oteltrace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return Tracer(tp), recorder
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestStartQuerySpan(t *testing.T) {
	tracer, recorder := setupTracerForTest(t)

	_, span := StartQuerySpan(context.Background(), tracer, QueryMeta{
		System:    "mysql",
		Operation: "select",
		Table:     "user",
		Group:     "user",
	}, attribute.Int(AttrShardIndex, 3))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "shardsql.select user", spans[0].Name())
	assert.Equal(t, oteltrace.SpanKindClient, spans[0].SpanKind())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "mysql", attrs[AttrDBSystem])
	assert.Equal(t, "select", attrs[AttrDBOperation])
	assert.Equal(t, "user", attrs[AttrDBTable])
	assert.Equal(t, "user", attrs[AttrShardGroup])
	assert.Equal(t, "3", attrs[AttrShardIndex])
}

func TestMarkSpanError(t *testing.T) {
	tracer, recorder := setupTracerForTest(t)

	_, span := StartQuerySpan(context.Background(), tracer, QueryMeta{Operation: "insert"})
	MarkSpanError(span, nil)
	MarkSpanError(span, errors.New("duplicate key"))
	MarkSpanError(nil, errors.New("ignored"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "shardsql.insert", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "duplicate key", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil", cfg: nil, wantErr: true},
		{name: "default", cfg: DefaultConfig("shardsql")},
		{name: "missing service", cfg: &Config{Endpoint: "localhost:4317"}, wantErr: true},
		{name: "missing endpoint", cfg: &Config{ServiceName: "s"}, wantErr: true},
		{name: "sampler out of range", cfg: &Config{ServiceName: "s", Endpoint: "e", Sampler: 1.5}, wantErr: true},
		{name: "unknown batcher", cfg: &Config{ServiceName: "s", Endpoint: "e", Batcher: "async"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDiscard(t *testing.T) {
	shutdown, err := Discard("shardsql-test")
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, span := StartQuerySpan(context.Background(), nil, QueryMeta{Operation: "count", Table: "order"})
	assert.True(t, span.SpanContext().TraceID().IsValid())
	span.End()
}

func TestSetup_Disabled(t *testing.T) {
	for _, cfg := range []*Config{nil, {Enabled: false, Endpoint: "collector:4317"}} {
		shutdown, err := Setup(cfg, "shardsql-test")
		require.NoError(t, err)

		_, span := StartQuerySpan(context.Background(), nil, QueryMeta{Operation: "get", Table: "user"})
		assert.True(t, span.SpanContext().TraceID().IsValid())
		span.End()
		require.NoError(t, shutdown(context.Background()))
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{Enabled: true, Sampler: 0.5}
	cfg.setDefaults("shardsql")

	assert.Equal(t, "shardsql", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "batch", cfg.Batcher)
	assert.Equal(t, 0.5, cfg.Sampler)
	assert.NoError(t, validateConfig(cfg))
}
