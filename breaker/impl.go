package breaker

import (
	"context"
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/metrics"
	"github.com/ceyewan/shardsql/xerrors"
)

type circuitBreaker struct {
	cfg         *Config
	logger      clog.Logger
	fallback    FallbackFunc
	transitions metrics.Counter

	// 键级熔断器管理
	breakers sync.Map // map[string]*gobreaker.CircuitBreaker[any]
}

func newBreaker(cfg *Config, opt options) (Breaker, error) {
	transitions, err := opt.meter.Counter(metrics.MetricBreakerTransitions, "熔断器状态变更次数")
	if err != nil {
		return nil, xerrors.Wrap(err, "breaker: create transitions counter")
	}
	return &circuitBreaker{
		cfg:         cfg,
		logger:      opt.logger,
		fallback:    opt.fallback,
		transitions: transitions,
	}, nil
}

// Execute 执行受熔断保护的函数
func (cb *circuitBreaker) Execute(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	result, err := cb.getOrCreateBreaker(key).Execute(fn)
	if err == nil {
		return result, nil
	}
	if xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.logger.WarnContext(ctx, "circuit breaker rejected request",
			clog.String("key", key),
			clog.Error(err))
		if cb.fallback != nil {
			return cb.fallback(ctx, key, ErrOpenState)
		}
		return nil, xerrors.Wrapf(ErrOpenState, "key %s", key)
	}
	return result, err
}

// State 获取指定键的熔断器状态
func (cb *circuitBreaker) State(key string) (State, error) {
	if key == "" {
		return StateClosed, ErrKeyEmpty
	}

	val, ok := cb.breakers.Load(key)
	if !ok {
		return StateClosed, nil
	}

	switch val.(*gobreaker.CircuitBreaker[any]).State() {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen, nil
	case gobreaker.StateOpen:
		return StateOpen, nil
	default:
		return StateClosed, nil
	}
}

func (cb *circuitBreaker) getOrCreateBreaker(key string) *gobreaker.CircuitBreaker[any] {
	if val, ok := cb.breakers.Load(key); ok {
		return val.(*gobreaker.CircuitBreaker[any])
	}

	settings := gobreaker.Settings{
		Name:          key,
		MaxRequests:   cb.cfg.MaxRequests,
		Interval:      cb.cfg.Interval,
		Timeout:       cb.cfg.Timeout,
		ReadyToTrip:   cb.readyToTrip,
		IsSuccessful:  isSuccessful,
		OnStateChange: cb.onStateChange,
	}

	// 可能有并发创建，以先存入者为准
	actual, _ := cb.breakers.LoadOrStore(key, gobreaker.NewCircuitBreaker[any](settings))
	return actual.(*gobreaker.CircuitBreaker[any])
}

func (cb *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cb.cfg.MinimumRequests {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return failureRatio >= cb.cfg.FailureRatio
}

// 调用方取消不计为失败
func isSuccessful(err error) bool {
	return err == nil || xerrors.Is(err, context.Canceled)
}

func (cb *circuitBreaker) onStateChange(name string, from gobreaker.State, to gobreaker.State) {
	cb.logger.Info("circuit breaker state changed",
		clog.String("key", name),
		clog.String("from", stateToString(from)),
		clog.String("to", stateToString(to)))
	cb.transitions.Inc(context.Background(),
		metrics.L(metrics.LabelEndpoint, name),
		metrics.L(metrics.LabelState, stateToString(to)))
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half_open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
