package topology

import (
	"fmt"

	"github.com/ceyewan/shardsql/config"
	"github.com/ceyewan/shardsql/xerrors"
)

// FromLoader 读取配置中 key 下的分组映射并解析
//
//	database:
//	  user:
//	    shards_count: 16
//	    shards_type: hash
//	    servers:
//	      writers: [{server: 10.0.0.1}, {server: 10.0.0.2}]
func FromLoader(loader config.Loader, key string) (*Topology, error) {
	var raw map[string]any
	if err := loader.UnmarshalKey(key, &raw); err != nil {
		return nil, configError(xerrors.Wrapf(err, "load topology from %q", key))
	}
	if len(raw) == 0 {
		return nil, configError(xerrors.Mark(xerrors.ErrNotFound, fmt.Errorf("no groups under %q", key)))
	}
	return Parse(raw)
}

// InitFromLoader 与 FromLoader 相同，但结果缓存到 Holder
func (h *Holder) InitFromLoader(loader config.Loader, key string) (*Topology, error) {
	if t, err := h.Get(); err == nil {
		return t, nil
	}
	var raw map[string]any
	if err := loader.UnmarshalKey(key, &raw); err != nil {
		return nil, configError(xerrors.Wrapf(err, "load topology from %q", key))
	}
	return h.Init(raw)
}
