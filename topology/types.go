// Package topology 将声明式的分组配置解析为不可变的路由表，并把
// (group, shardKey, preferWriter) 解析为具体的服务器、库名与分片索引。
//
// 两种分片策略：
//
//	range: groupServers[i] 为最后一个声明的、range 覆盖 i 的服务器下标
//	hash:  groupServers[i] = i % serverCount
//
// 读库池未配置时与写库池相同。Topology 构建后只读，可被并发共享。
package topology

import "strings"

// ShardsType 分片策略
type ShardsType string

const (
	ShardsRange ShardsType = "range"
	ShardsHash  ShardsType = "hash"
)

const (
	DefaultPort      = 3306
	DefaultCharset   = "utf8"
	DefaultCollation = "utf8_general_ci"
)

// ServerEndpoint 单个数据库服务器
type ServerEndpoint struct {
	Host string
	Port int
	// Range 闭区间 [lo, hi]，仅 range 策略使用
	Range [2]int
}

// ServerPool 按下标排列的服务器，以及分片到服务器的映射
type ServerPool struct {
	Endpoints    []ServerEndpoint
	GroupServers map[int]int
}

// ServerIndex 返回分片所在的服务器下标
func (p ServerPool) ServerIndex(shardIndex int) (int, bool) {
	idx, ok := p.GroupServers[shardIndex]
	if !ok || idx < 0 || idx >= len(p.Endpoints) {
		return 0, false
	}
	return idx, true
}

// GroupConfig 一个逻辑分组的完整配置，构建后不可修改
type GroupConfig struct {
	Name               string
	ShardsCount        int
	ShardsType         ShardsType
	DatabaseName       string
	DatabaseNameFormat string
	TableNameFormat    string
	Username           string
	Password           string
	Charset            string
	Collation          string
	Prefix             string
	Options            map[string]string
	Writers            ServerPool
	Readers            ServerPool
}

// Pool 按角色返回服务器池
func (g *GroupConfig) Pool(writer bool) ServerPool {
	if writer {
		return g.Writers
	}
	return g.Readers
}

// Resolution 一次分片解析的结果
type Resolution struct {
	Group        string
	Endpoint     ServerEndpoint
	ShardIndex   int
	ServerIndex  int
	DatabaseName string
	Writer       bool
}

// formatName 用 value 替换模板中第一个 %s 或 %d，模板为空时返回 fallback
func formatName(format, value, fallback string) string {
	if format == "" {
		return fallback
	}
	for _, verb := range []string{"%s", "%d"} {
		if strings.Contains(format, verb) {
			return strings.Replace(format, verb, value, 1)
		}
	}
	return format
}
