package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardsql/metrics"
	"github.com/ceyewan/shardsql/testkit"
	"github.com/ceyewan/shardsql/xerrors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{name: "nil config", cfg: nil, wantErr: ErrConfigNil},
		{name: "ratio above one", cfg: &Config{FailureRatio: 1.5}, wantErr: ErrInvalidRatio},
		{name: "zero config uses defaults", cfg: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brk, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, brk)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 0.6, cfg.FailureRatio)
	assert.Equal(t, uint32(5), cfg.MinimumRequests)
}

func TestExecute_Success(t *testing.T) {
	brk, err := New(DefaultConfig(), WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	v, err := brk.Execute(context.Background(), "10.0.0.1:3306", func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	state, err := brk.State("10.0.0.1:3306")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)
}

func TestExecute_EmptyKey(t *testing.T) {
	brk, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = brk.Execute(context.Background(), "", func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrKeyEmpty)

	_, err = brk.State("")
	assert.ErrorIs(t, err, ErrKeyEmpty)
}

func TestExecute_TripAndRecover(t *testing.T) {
	meter := testkit.NewMeter()
	brk, err := New(&Config{
		Timeout:         50 * time.Millisecond,
		FailureRatio:    0.5,
		MinimumRequests: 2,
	}, WithMeter(meter))
	require.NoError(t, err)

	ctx := context.Background()
	key := "10.0.0.2:3306"
	dialErr := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		_, err := brk.Execute(ctx, key, func() (any, error) { return nil, dialErr })
		assert.ErrorIs(t, err, dialErr)
	}

	state, err := brk.State(key)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)
	assert.Equal(t, float64(1), meter.Value(metrics.MetricBreakerTransitions))
	assert.Equal(t, "open", meter.LastLabels(metrics.MetricBreakerTransitions)[metrics.LabelState])

	called := false
	_, err = brk.Execute(ctx, key, func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpenState)
	assert.False(t, called)

	// 其他键不受影响
	_, err = brk.Execute(ctx, "10.0.0.3:3306", func() (any, error) { return nil, nil })
	assert.NoError(t, err)

	time.Sleep(80 * time.Millisecond)
	_, err = brk.Execute(ctx, key, func() (any, error) { return "up", nil })
	require.NoError(t, err)

	state, err = brk.State(key)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)
}

func TestExecute_CanceledIsNotFailure(t *testing.T) {
	brk, err := New(&Config{FailureRatio: 0.5, MinimumRequests: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := brk.Execute(context.Background(), "k", func() (any, error) { return nil, context.Canceled })
		assert.ErrorIs(t, err, context.Canceled)
	}
	state, err := brk.State("k")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)
}

func TestExecute_Fallback(t *testing.T) {
	brk, err := New(&Config{FailureRatio: 0.5, MinimumRequests: 1, Timeout: time.Minute},
		WithFallback(func(ctx context.Context, key string, err error) (any, error) {
			return "fallback:" + key, nil
		}))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = brk.Execute(ctx, "k", func() (any, error) { return nil, errors.New("boom") })
	require.Error(t, err)

	v, err := brk.Execute(ctx, "k", func() (any, error) { return "unreachable", nil })
	require.NoError(t, err)
	assert.Equal(t, "fallback:k", v)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
