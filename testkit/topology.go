package testkit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardsql/topology"
)

// SampleTopology 返回示例分组配置：
//
//	user   range 分片，4 个分片分布在两台写库上，读库单独配置，表名加 _v2 后缀
//	order  hash 分片，8 个分片分布在两台服务器上，前缀 shop_
//	log    单库单表
func SampleTopology() map[string]any {
	return map[string]any{
		"user": map[string]any{
			"shards_count":         4,
			"shards_type":          "range",
			"database_name_format": "user_%s",
			"table_name_format":    "%s_v2",
			"username":             "app",
			"password":             "secret",
			"servers": map[string]any{
				"writers": []any{
					map[string]any{"server": "10.0.0.1", "range": []any{0, 1}},
					map[string]any{"server": "10.0.0.2", "range": []any{2, 3}},
				},
				"readers": []any{
					map[string]any{"server": "10.0.1.1", "range": []any{0, 3}},
				},
			},
		},
		"order": map[string]any{
			"shards_count":         8,
			"shards_type":          "hash",
			"database_name_format": "order_%s",
			"prefix":               "shop_",
			"servers": []any{
				map[string]any{"server": "10.0.2.1"},
				map[string]any{"server": "10.0.2.2", "port": 3307},
			},
		},
		"log": map[string]any{
			"servers": map[string]any{"server": "127.0.0.1"},
		},
	}
}

// NewTopology 解析 SampleTopology
func NewTopology(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.Parse(SampleTopology())
	require.NoError(t, err, "failed to parse sample topology")
	return topo
}
