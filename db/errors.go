package db

import "github.com/ceyewan/shardsql/xerrors"

var (
	// ErrPrimaryKeyArity Find 的 id 个数与主键列数不一致，在访问连接之前即失败
	ErrPrimaryKeyArity = xerrors.Mark(xerrors.ErrInvalidArgument, xerrors.New("db: id count is not same as primary key count"))

	// ErrNoConnection 表还没有执行过任何操作，没有可用的最近连接
	ErrNoConnection = xerrors.New("db: no connection used yet")
)

func argumentError(err error) error {
	return xerrors.WithCode(err, xerrors.CodeArgument)
}
