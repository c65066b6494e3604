package breaker

import "github.com/ceyewan/shardsql/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.Mark(xerrors.ErrInvalidInput, xerrors.New("breaker: config is nil"))

	// ErrInvalidRatio 失败率阈值超出 (0, 1]
	ErrInvalidRatio = xerrors.Mark(xerrors.ErrInvalidInput, xerrors.New("breaker: failure ratio must be in (0, 1]"))

	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.New("breaker: key is empty")

	// ErrOpenState 熔断器处于打开状态
	ErrOpenState = xerrors.New("breaker: circuit breaker is open")
)
