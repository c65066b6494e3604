package topology

import (
	"fmt"
	"hash/crc32"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/ceyewan/shardsql/xerrors"
)

// Topology 所有分组的路由表，构建后只读
type Topology struct {
	groups map[string]*GroupConfig
	names  []string
}

// Group 返回分组配置，未知分组返回 ErrGroupNotFound
func (t *Topology) Group(name string) (*GroupConfig, error) {
	g, ok := t.groups[name]
	if !ok {
		return nil, configError(xerrors.Wrapf(ErrGroupNotFound, "group %q", name))
	}
	return g, nil
}

// GroupNames 按字典序返回所有分组名
func (t *Topology) GroupNames() []string {
	return append([]string(nil), t.names...)
}

// Resolve 将分片键解析为具体服务器
//
//	shardIndex   = shardKey 为 nil 时取 0；数值直接取模；其余值取 CRC-32 后取模
//	serverIndex  = 对应角色池的 groupServers[shardIndex]
//	DatabaseName = databaseNameFormat 以 shardIndex+1 格式化，格式为空时取 databaseName
func (t *Topology) Resolve(group string, shardKey any, preferWriter bool) (Resolution, error) {
	g, err := t.Group(group)
	if err != nil {
		return Resolution{}, err
	}

	shardIndex := ShardIndex(shardKey, g.ShardsCount)
	pool := g.Pool(preferWriter)
	serverIndex, ok := pool.ServerIndex(shardIndex)
	if !ok {
		return Resolution{}, configError(xerrors.Wrapf(ErrShardUnmapped, "group %q shard %d", group, shardIndex))
	}

	return Resolution{
		Group:        group,
		Endpoint:     pool.Endpoints[serverIndex],
		ShardIndex:   shardIndex,
		ServerIndex:  serverIndex,
		DatabaseName: formatName(g.DatabaseNameFormat, strconv.Itoa(shardIndex+1), g.DatabaseName),
		Writer:       preferWriter,
	}, nil
}

// TableName 返回逻辑表名对应的物理表名（不含前缀）
func (t *Topology) TableName(group, table string) (string, error) {
	g, err := t.Group(group)
	if err != nil {
		return "", err
	}
	return formatName(g.TableNameFormat, table, table), nil
}

// ShardIndex 计算分片索引，结果总在 [0, shardsCount) 内
func ShardIndex(shardKey any, shardsCount int) int {
	if shardKey == nil || shardsCount <= 1 {
		return 0
	}
	n := int64(shardsCount)
	k := shardValue(shardKey) % n
	if k < 0 {
		k += n
	}
	return int(k)
}

func shardValue(key any) int64 {
	if v, ok := numericValue(key); ok {
		return v
	}
	return int64(crc32.ChecksumIEEE([]byte(shardString(key))))
}

func numericValue(key any) (int64, bool) {
	rv := reflect.ValueOf(key)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint() % math.MaxInt64), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

func shardString(key any) string {
	switch v := key.(type) {
	case bool:
		if v {
			return "1"
		}
		return ""
	case []byte:
		return string(v)
	}
	return fmt.Sprint(key)
}
