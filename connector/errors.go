package connector

import "github.com/ceyewan/shardsql/xerrors"

// Sentinel Errors - 连接器专用的哨兵错误
var (
	ErrConnection = xerrors.New("connector: connection failed")
	ErrConfig     = xerrors.Mark(xerrors.ErrInvalidInput, xerrors.New("connector: invalid config"))
	ErrClosed     = xerrors.New("connector: already closed")
	ErrTxActive   = xerrors.New("connector: transaction already active")
	ErrNoTx       = xerrors.New("connector: no active transaction")
)

// executionError 驱动错误只包装一次，errors.Is 可直达原始错误
func executionError(err error) error {
	if err == nil {
		return nil
	}
	return xerrors.WithCode(xerrors.Mark(xerrors.ErrExecution, err), xerrors.CodeExecution)
}
