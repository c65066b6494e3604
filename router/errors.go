package router

import "github.com/ceyewan/shardsql/xerrors"

var (
	// ErrClosed router 已关闭
	ErrClosed = xerrors.New("router: closed")

	// ErrUnavailable 目标服务器的熔断器处于打开状态，未尝试建连
	ErrUnavailable = xerrors.Mark(xerrors.ErrExecution, xerrors.New("router: endpoint unavailable"))
)
