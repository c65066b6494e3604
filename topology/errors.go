package topology

import "github.com/ceyewan/shardsql/xerrors"

var (
	// ErrGroupNotFound 分组不存在
	ErrGroupNotFound = xerrors.Mark(xerrors.ErrNotFound, xerrors.New("topology: group not found"))

	// ErrShardUnmapped 分片索引没有对应的服务器，通常是 range 没有覆盖全部分片
	ErrShardUnmapped = xerrors.Mark(xerrors.ErrInvalidInput, xerrors.New("topology: shard not mapped to any server"))

	// ErrInvalidConfig 分组配置无法解析
	ErrInvalidConfig = xerrors.Mark(xerrors.ErrInvalidInput, xerrors.New("topology: invalid group config"))

	// ErrNotInitialized Holder 尚未初始化
	ErrNotInitialized = xerrors.New("topology: not initialized")
)

func configError(err error) error {
	return xerrors.WithCode(err, xerrors.CodeConfig)
}
